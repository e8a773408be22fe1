package lib

import (
	"bytes"
	"io"
	"sort"
	"time"
)

// memPath is an in-memory Path for tests. Directories hold children, files
// hold bytes; the err fields inject failures into single operations.
type memPath struct {
	name     string
	dir      bool
	data     []byte
	mtime    time.Time
	children []*memPath

	listErr error
	statErr error
	openErr error
	absent  bool
}

func memFile(name, content string) *memPath {
	return &memPath{
		name:  name,
		data:  []byte(content),
		mtime: time.Unix(1700000000, 0),
	}
}

func memDir(name string, children ...*memPath) *memPath {
	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })
	return &memPath{name: name, dir: true, children: children}
}

func (p *memPath) child(name string) *memPath {
	for _, c := range p.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (p *memPath) Name() string   { return p.name }
func (p *memPath) String() string { return "mem:" + p.name }
func (p *memPath) Exists() bool   { return !p.absent }
func (p *memPath) IsDir() bool    { return p.dir }

func (p *memPath) List() ([]Path, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	out := make([]Path, 0, len(p.children))
	for _, c := range p.children {
		out = append(out, c)
	}
	return out, nil
}

func (p *memPath) Stat() (Stat, error) {
	if p.statErr != nil {
		return Stat{}, p.statErr
	}
	return Stat{Size: int64(len(p.data)), MTime: p.mtime}, nil
}

func (p *memPath) Open() (io.ReadCloser, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	return io.NopCloser(bytes.NewReader(p.data)), nil
}
