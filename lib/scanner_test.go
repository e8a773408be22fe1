package lib

import (
	"errors"
	"testing"
)

// panicPath simulates a backend whose listing blows up rather than
// returning an error.
type panicPath struct {
	*memPath
}

func (p *panicPath) List() ([]Path, error) {
	panic("backend gone")
}

type collectedWork struct {
	scans    []ScanTask
	compares []CompareTask
	origins  []Priority
}

func newTestScanner(tree *Tree, patterns ...string) (*scanner, *collectedWork) {
	collected := &collectedWork{}
	var exclude *excludeSet
	if len(patterns) > 0 {
		var err error
		exclude, err = CompileExcludes(patterns)
		if err != nil {
			panic(err)
		}
	}
	s := &scanner{
		tree:     tree,
		meta:     newMetaStore(NewPathPool()),
		exclude:  exclude,
		log:      NewDiscardLogger(),
		counters: &Counters{},
		util:     NewWorkerUtilization(1, 0, 10),
		submit: func(work scanWork, origin Priority) {
			collected.scans = append(collected.scans, work.scans...)
			collected.compares = append(collected.compares, work.compares...)
			collected.origins = append(collected.origins, origin)
		},
		onDone: func() {},
	}
	return s, collected
}

func rootedTree(left, right *memPath) *Tree {
	tree := NewTree()
	tree.addRoot(".", seenPair(".", left, right))
	return tree
}

func TestScanner_scanMergesBothListings(t *testing.T) {
	left := memDir("left",
		memFile("a.txt", "same"),
		memFile("gone.txt", "bye"),
		memDir("sub"),
	)
	right := memDir("right",
		memFile("a.txt", "same"),
		memFile("new.txt", "hi"),
		memDir("sub"),
	)
	tree := rootedTree(left, right)
	s, collected := newTestScanner(tree)

	s.scan(0, PriorityNormal)

	if n := mustFind(t, tree, "a.txt"); n.Diff != DiffPending {
		t.Errorf("a.txt = %v, want pending pair", n.Diff)
	}
	if n := mustFind(t, tree, "gone.txt"); n.Diff != DiffOnlyLeft {
		t.Errorf("gone.txt = %v, want %v", n.Diff, DiffOnlyLeft)
	}
	if n := mustFind(t, tree, "new.txt"); n.Diff != DiffOnlyRight {
		t.Errorf("new.txt = %v, want %v", n.Diff, DiffOnlyRight)
	}
	if n := mustFind(t, tree, "sub"); !n.IsDir || n.ChildrenScanned {
		t.Errorf("sub = %+v, want unscanned directory pair", n)
	}

	if len(collected.compares) != 1 || collected.compares[0].Rel != "a.txt" {
		t.Errorf("compares = %+v, want one for a.txt", collected.compares)
	}
	if len(collected.scans) != 1 || collected.scans[0].Rel != "sub" {
		t.Fatalf("scans = %+v, want one for sub", collected.scans)
	}
	if collected.scans[0].Priority != PriorityNormal {
		t.Errorf("two-sided dir priority = %v, want %v", collected.scans[0].Priority, PriorityNormal)
	}
	if got := s.counters.DirsScanned.Load(); got != 1 {
		t.Errorf("DirsScanned = %d, want 1", got)
	}
}

func TestScanner_scanPassesOriginThrough(t *testing.T) {
	left := memDir("left", memDir("sub"))
	right := memDir("right", memDir("sub"))
	tree := rootedTree(left, right)
	s, collected := newTestScanner(tree)

	s.scan(0, PriorityImmediate)

	if len(collected.origins) != 1 || collected.origins[0] != PriorityImmediate {
		t.Errorf("origins = %v, want the scan's own priority", collected.origins)
	}
}

func TestScanner_excludedNamesNeverBecomeNodes(t *testing.T) {
	left := memDir("left", memFile("keep.txt", "x"), memFile("noise.log", "y"))
	right := memDir("right", memFile("keep.txt", "x"), memFile("noise.log", "z"))
	tree := rootedTree(left, right)
	s, _ := newTestScanner(tree, "*.log")

	s.scan(0, PriorityNormal)

	if _, ok := tree.Find("noise.log"); ok {
		t.Error("excluded name produced a node")
	}
	if _, ok := tree.Find("keep.txt"); !ok {
		t.Error("non-excluded sibling went missing")
	}
	if tree.Len() != 2 {
		t.Errorf("Len = %d, want root plus keep.txt", tree.Len())
	}
}

func TestScanner_statFailureOnlyMarksTheEntry(t *testing.T) {
	broken := memFile("broken.txt", "x")
	broken.statErr = errors.New("stat: permission denied")
	left := memDir("left", broken, memFile("fine.txt", "ok"))
	right := memDir("right", memFile("broken.txt", "x"), memFile("fine.txt", "ok"))
	tree := rootedTree(left, right)
	s, collected := newTestScanner(tree)

	s.scan(0, PriorityNormal)

	n := mustFind(t, tree, "broken.txt")
	if !n.Inaccessible || n.Err == "" {
		t.Errorf("broken.txt = %v %q, want inaccessible with the cause", n.Inaccessible, n.Err)
	}
	if n.Diff.Differs() {
		t.Errorf("broken.txt = %v; a stat failure is not a difference", n.Diff)
	}
	if fine := mustFind(t, tree, "fine.txt"); fine.Inaccessible {
		t.Error("sibling of a failed stat was marked inaccessible")
	}
	// The unreadable pair is never queued for comparison.
	if len(collected.compares) != 1 || collected.compares[0].Rel != "fine.txt" {
		t.Errorf("compares = %+v, want only fine.txt", collected.compares)
	}
	if s.counters.Errors.Load() == 0 {
		t.Error("stat failure did not count as an error")
	}
}

func TestScanner_listFailureAbortsTheScan(t *testing.T) {
	left := memDir("left", memFile("a", "x"))
	left.listErr = errors.New("open left: permission denied")
	right := memDir("right", memFile("a", "x"))
	tree := rootedTree(left, right)
	s, collected := newTestScanner(tree)

	s.scan(0, PriorityNormal)

	root, _ := tree.Root()
	if !root.Inaccessible || root.Err == "" {
		t.Errorf("root = %v %q, want marked inaccessible", root.Inaccessible, root.Err)
	}
	if root.ChildrenScanned || root.ScanInProgress {
		t.Error("failed scan left the directory claimed")
	}
	if tree.Len() != 1 {
		t.Errorf("Len = %d, want no children from a failed scan", tree.Len())
	}
	if len(collected.scans)+len(collected.compares) != 0 {
		t.Error("failed scan submitted follow-up work")
	}
	if s.counters.DirsScanned.Load() != 0 {
		t.Error("failed scan counted as scanned")
	}
	if s.counters.Errors.Load() != 1 {
		t.Errorf("Errors = %d, want 1", s.counters.Errors.Load())
	}
}

func TestScanner_oneSidedDirectoryListsItsOnlySide(t *testing.T) {
	left := memDir("left", memDir("only", memFile("inner.txt", "x")))
	right := memDir("right")
	tree := rootedTree(left, right)
	s, collected := newTestScanner(tree)

	s.scan(0, PriorityNormal)
	only := mustFind(t, tree, "only")
	if only.Diff != DiffOnlyLeft {
		t.Fatalf("only = %v, want %v", only.Diff, DiffOnlyLeft)
	}
	if len(collected.scans) != 1 || collected.scans[0].Priority != PriorityLow {
		t.Fatalf("scans = %+v, want one low-priority task", collected.scans)
	}

	s.scan(only.ID, collected.scans[0].Priority)
	inner := mustFind(t, tree, "only/inner.txt")
	if inner.Diff != DiffOnlyLeft {
		t.Errorf("only/inner.txt = %v, want inherited %v", inner.Diff, DiffOnlyLeft)
	}
	if only = mustFind(t, tree, "only"); only.Diff != DiffOnlyLeft {
		t.Errorf("only = %v; listing a one-sided dir must not reclassify it", only.Diff)
	}
}

func TestScanner_processSurvivesPanickingBackend(t *testing.T) {
	left := &panicPath{memDir("left")}
	right := memDir("right")
	tree := rootedTree(left.memPath, right)
	// Hand the node the panicking wrapper in place of the plain side.
	tree.mu.Lock()
	tree.nodes[0].left = left
	tree.mu.Unlock()
	s, _ := newTestScanner(tree)

	s.process(ScanTask{Node: 0, Rel: "", Priority: PriorityNormal})

	root, _ := tree.Root()
	if !root.Inaccessible {
		t.Error("panicking backend left no error mark")
	}
	if s.counters.Errors.Load() != 1 {
		t.Errorf("Errors = %d, want 1", s.counters.Errors.Load())
	}
}
