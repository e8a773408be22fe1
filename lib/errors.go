package lib

import (
	"os"

	"github.com/boostgo/errorx"
)

var (
	ErrListDirectory = errorx.New("treediff.scan.list")
	ErrStatEntry     = errorx.New("treediff.scan.stat")
	ErrOpenContent   = errorx.New("treediff.compare.open")
	ErrReadContent   = errorx.New("treediff.compare.read")

	ErrEngineState  = errorx.New("treediff.engine.state")
	ErrBadRoot      = errorx.New("treediff.engine.root")
	ErrUnknownNode  = errorx.New("treediff.engine.unknown_node")
	ErrNotDirectory = errorx.New("treediff.engine.not_directory")
	ErrNotFilePair  = errorx.New("treediff.engine.not_file_pair")
)

type pathErrorContext struct {
	Path  string `json:"path"`
	Side  string `json:"side"`
	Error error  `json:"error"`
}

func newListDirectoryError(path string, side Side, err error) error {
	return ErrListDirectory.
		SetError(err).
		SetData(pathErrorContext{
			Path:  path,
			Side:  side.String(),
			Error: err,
		})
}

func newStatEntryError(path string, side Side, err error) error {
	return ErrStatEntry.
		SetError(err).
		SetData(pathErrorContext{
			Path:  path,
			Side:  side.String(),
			Error: err,
		})
}

func newOpenContentError(path string, side Side, err error) error {
	return ErrOpenContent.
		SetError(err).
		SetData(pathErrorContext{
			Path:  path,
			Side:  side.String(),
			Error: err,
		})
}

func newReadContentError(path string, side Side, err error) error {
	return ErrReadContent.
		SetError(err).
		SetData(pathErrorContext{
			Path:  path,
			Side:  side.String(),
			Error: err,
		})
}

type engineStateContext struct {
	Op    string `json:"op"`
	State string `json:"state"`
}

func newEngineStateError(op string, state EngineState) error {
	return ErrEngineState.
		SetData(engineStateContext{
			Op:    op,
			State: state.String(),
		})
}

type rootContext struct {
	Path   string `json:"path"`
	Side   string `json:"side"`
	Reason string `json:"reason"`
}

func newBadRootError(path string, side Side, reason string) error {
	return ErrBadRoot.
		SetData(rootContext{
			Path:   path,
			Side:   side.String(),
			Reason: reason,
		})
}

type relContext struct {
	Rel string `json:"rel"`
	Op  string `json:"op"`
}

func newUnknownPathError(op, rel string) error {
	return ErrUnknownNode.
		SetData(relContext{
			Rel: rel,
			Op:  op,
		})
}

func newNotDirectoryError(op, rel string) error {
	return ErrNotDirectory.
		SetData(relContext{
			Rel: rel,
			Op:  op,
		})
}

func newNotFilePairError(op, rel string) error {
	return ErrNotFilePair.
		SetData(relContext{
			Rel: rel,
			Op:  op,
		})
}

// errKind buckets a raw filesystem error for the engine: permission
// problems stay on the node as an access failure, vanished paths drop the
// task, anything else is a plain I/O failure.
type errKind int

const (
	kindAccess errKind = iota
	kindVanished
	kindIO
)

func classifyFSError(err error) errKind {
	switch {
	case os.IsPermission(err):
		return kindAccess
	case os.IsNotExist(err):
		return kindVanished
	default:
		return kindIO
	}
}
