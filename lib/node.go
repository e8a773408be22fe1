package lib

// NodeID addresses a node in the tree arena. IDs are stable for the life of
// the engine; the root is always ID 0.
type NodeID int

// NoNode is the parent of the root and the result of failed lookups.
const NoNode NodeID = -1

// DifferenceType classifies one node of the merged tree.
type DifferenceType int

const (
	// DiffPending means the node has not been compared (files) or its own
	// level has not been scanned (directories).
	DiffPending DifferenceType = iota
	DiffIdentical
	DiffOnlyLeft
	DiffOnlyRight
	DiffContentDifferent
	// DiffContainsDifference marks a directory with at least one known
	// differing descendant.
	DiffContainsDifference
)

func (d DifferenceType) String() string {
	switch d {
	case DiffPending:
		return "pending"
	case DiffIdentical:
		return "identical"
	case DiffOnlyLeft:
		return "only-left"
	case DiffOnlyRight:
		return "only-right"
	case DiffContentDifferent:
		return "different"
	case DiffContainsDifference:
		return "contains-difference"
	}
	return "unknown"
}

// Differs reports whether d marks a definite difference between the sides.
func (d DifferenceType) Differs() bool {
	switch d {
	case DiffOnlyLeft, DiffOnlyRight, DiffContentDifferent, DiffContainsDifference:
		return true
	}
	return false
}

// FileState tracks a file node's comparison progress.
type FileState int

const (
	FilePending FileState = iota
	FileCompared
)

// DirState tracks a directory node's scan progress. DirScanning covers both
// a background scan pulled from the queue and the synchronous expand path.
type DirState int

const (
	DirUnscanned DirState = iota
	DirScanning
	DirScanned
)

// node is the arena representation. Every field is guarded by the owning
// Tree's lock. Parent and children are IDs into the same arena, never
// pointers.
type node struct {
	id     NodeID
	parent NodeID
	name   string
	rel    string
	depth  int
	isDir  bool

	left      Path // nil when the path exists only on the right
	right     Path // nil when the path exists only on the left
	leftInfo  *FileInfo
	rightInfo *FileInfo

	diff      DifferenceType
	fileState FileState
	dirState  DirState
	expanded  bool

	inaccessible bool
	errMsg       string

	// determined is true once diff can no longer change: one-sided and
	// structural-mismatch nodes at birth, files once compared, directories
	// once scanned with undetermined == 0. undetermined counts direct
	// children whose determined bit is false.
	determined   bool
	undetermined int

	children []NodeID // sorted by name
}

// hasBothSides reports whether the path was seen on both trees.
func (n *node) hasBothSides() bool {
	return n.left != nil && n.right != nil
}

// Node is the read-only snapshot handed to consumers. The FileInfo pointers
// reference immutable per-scan snapshots and are safe to retain.
type Node struct {
	ID     NodeID
	Parent NodeID
	Name   string
	Rel    string
	Depth  int
	IsDir  bool

	Diff DifferenceType
	// Provisional is true while Diff can still change as deeper scans and
	// comparisons complete. A directory can report identical before its
	// descendants are fully compared; Provisional flags exactly that.
	Provisional bool
	Expanded    bool

	ChildrenScanned bool
	ScanInProgress  bool
	ContentCompared bool

	Inaccessible bool
	Err          string

	LeftPath  string
	RightPath string
	Left      *FileInfo
	Right     *FileInfo

	Children []NodeID
}

// HasLeft reports presence on the left tree.
func (n Node) HasLeft() bool { return n.LeftPath != "" }

// HasRight reports presence on the right tree.
func (n Node) HasRight() bool { return n.RightPath != "" }

// Size returns the larger of the two sides' sizes, for display.
func (n Node) Size() int64 {
	var l, r int64
	if n.Left != nil {
		l = n.Left.Size
	}
	if n.Right != nil {
		r = n.Right.Size
	}
	if r > l {
		return r
	}
	return l
}
