package lib

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// childSeen is what one directory listing observed for one name: per-side
// presence with metadata snapshots. Either side may be nil.
type childSeen struct {
	name      string
	left      Path
	right     Path
	leftInfo  *FileInfo
	rightInfo *FileInfo
}

// scanWork collects the follow-up tasks one applied scan produced. The
// caller enqueues them only after the tree lock is released.
type scanWork struct {
	scans    []ScanTask
	compares []CompareTask
}

// Tree owns every node of the merged comparison in a dense arena addressed
// by NodeID. A single RWMutex guards the arena; methods hold it briefly and
// never across I/O. Where a queue lock and the tree lock serve one logical
// step they are taken strictly in the order queue, metadata, tree, each
// released before the next I/O.
type Tree struct {
	mu    sync.RWMutex
	nodes []*node

	dirty   atomic.Bool
	changes chan struct{}
}

// NewTree returns an empty tree; addRoot seeds it.
func NewTree() *Tree {
	return &Tree{changes: make(chan struct{}, 1)}
}

// Dirty reports whether the tree changed since the last ClearDirty.
func (t *Tree) Dirty() bool { return t.dirty.Load() }

// ClearDirty is called by the consumer after it has rendered.
func (t *Tree) ClearDirty() { t.dirty.Store(false) }

// Changes pulses when the tree becomes dirty; at most one pulse is pending.
func (t *Tree) Changes() <-chan struct{} { return t.changes }

func (t *Tree) markDirty() {
	t.dirty.Store(true)
	select {
	case t.changes <- struct{}{}:
	default:
	}
}

func (t *Tree) nodeLocked(id NodeID) *node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// addRoot seeds the arena with the comparison root, expanded so the first
// level renders immediately. Call once, before any scan.
func (t *Tree) addRoot(name string, seen childSeen) NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := &node{id: 0, parent: NoNode, name: name, rel: "", depth: 0, expanded: true}
	t.nodes = append(t.nodes, n)
	t.initNodeLocked(n, seen, nil)
	t.markDirty()
	return n.id
}

// childByNameLocked finds parent's child with the given name. Children are
// sorted by name, so this is a binary search.
func (t *Tree) childByNameLocked(parent *node, name string) (NodeID, bool) {
	idx := sort.Search(len(parent.children), func(i int) bool {
		return t.nodes[parent.children[i]].name >= name
	})
	if idx < len(parent.children) && t.nodes[parent.children[idx]].name == name {
		return parent.children[idx], true
	}
	return NoNode, false
}

// initNodeLocked sets sides, kind, and initial classification for a fresh
// node, and records any follow-up task in work. One-sided nodes and
// file-vs-directory mismatches are determined at birth; two-sided files
// await comparison and two-sided directories await their own scan.
func (t *Tree) initNodeLocked(n *node, seen childSeen, work *scanWork) {
	n.left, n.right = seen.left, seen.right
	n.leftInfo, n.rightInfo = seen.leftInfo, seen.rightInfo
	n.fileState = FilePending
	n.dirState = DirUnscanned
	n.inaccessible = false
	n.errMsg = ""

	leftDir := seen.left != nil && seen.leftInfo != nil && seen.leftInfo.IsDir
	rightDir := seen.right != nil && seen.rightInfo != nil && seen.rightInfo.IsDir
	switch {
	case seen.left == nil:
		n.isDir = rightDir
		n.diff = DiffOnlyRight
	case seen.right == nil:
		n.isDir = leftDir
		n.diff = DiffOnlyLeft
	case leftDir != rightDir:
		// Directory on one side, file on the other: classified different
		// at this node, never recursed into.
		n.isDir = false
		n.diff = DiffContentDifferent
		n.fileState = FileCompared
	case leftDir:
		n.isDir = true
		n.diff = DiffPending
	default:
		n.isDir = false
		n.diff = DiffPending
	}

	if msg := inaccessibleMsg(seen); msg != "" {
		n.inaccessible = true
		n.errMsg = msg
	}

	// Keep the counter invariant across re-initialization: undetermined
	// always equals the number of children whose bit is unset.
	n.undetermined = 0
	for _, cid := range n.children {
		if !t.nodes[cid].determined {
			n.undetermined++
		}
	}

	if work != nil {
		t.queueFollowUpLocked(n, work)
	}
	n.determined = t.isDeterminedLocked(n)
}

// queueFollowUpLocked appends the task a node still needs: a scan for an
// unscanned directory (low priority when one-sided, since nothing in it can
// change the classification) or a comparison for a pending two-sided file.
func (t *Tree) queueFollowUpLocked(n *node, work *scanWork) {
	if n.inaccessible {
		return
	}
	if n.isDir && n.dirState == DirUnscanned {
		p := PriorityNormal
		if !n.hasBothSides() {
			p = PriorityLow
		}
		work.scans = append(work.scans, ScanTask{Node: n.id, Rel: n.rel, Priority: p})
		return
	}
	if !n.isDir && n.hasBothSides() && n.fileState == FilePending {
		work.compares = append(work.compares, CompareTask{Node: n.id, Rel: n.rel, Priority: PriorityNormal})
	}
}

func inaccessibleMsg(seen childSeen) string {
	if seen.leftInfo != nil && !seen.leftInfo.Accessible {
		return seen.leftInfo.Err
	}
	if seen.rightInfo != nil && !seen.rightInfo.Accessible {
		return seen.rightInfo.Err
	}
	return ""
}

// sameMeta reports whether two snapshots agree on everything a comparison
// depends on.
func sameMeta(a, b *FileInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IsDir == b.IsDir && a.Size == b.Size && a.Mtime.Equal(b.Mtime) &&
		a.Accessible == b.Accessible
}

// upsertChildLocked merges one observed child into parent. New names create
// nodes; known names are reconciled in place so re-scanning an unchanged
// directory leaves classifications alone.
func (t *Tree) upsertChildLocked(parent *node, seen childSeen, work *scanWork) {
	id, ok := t.childByNameLocked(parent, seen.name)
	if !ok {
		id = NodeID(len(t.nodes))
		n := &node{
			id:     id,
			parent: parent.id,
			name:   seen.name,
			rel:    childRel(parent.rel, seen.name),
			depth:  parent.depth + 1,
		}
		t.nodes = append(t.nodes, n)
		idx := sort.Search(len(parent.children), func(i int) bool {
			return t.nodes[parent.children[i]].name >= seen.name
		})
		parent.children = append(parent.children, NoNode)
		copy(parent.children[idx+1:], parent.children[idx:])
		parent.children[idx] = id
		t.initNodeLocked(n, seen, work)
		if !n.determined {
			parent.undetermined++
		}
		return
	}

	n := t.nodes[id]
	if sameMeta(n.leftInfo, seen.leftInfo) && sameMeta(n.rightInfo, seen.rightInfo) {
		// Nothing observable changed; swap in the fresh handles only.
		n.left, n.right = seen.left, seen.right
		n.leftInfo, n.rightInfo = seen.leftInfo, seen.rightInfo
		return
	}

	stillDirPair := n.isDir && n.hasBothSides() &&
		seen.left != nil && seen.leftInfo != nil && seen.leftInfo.IsDir &&
		seen.right != nil && seen.rightInfo != nil && seen.rightInfo.IsDir
	if stillDirPair {
		// Same directory pair, fresher metadata: children and scan state
		// survive (directory mtimes move whenever entries do).
		n.left, n.right = seen.left, seen.right
		n.leftInfo, n.rightInfo = seen.leftInfo, seen.rightInfo
		return
	}

	// Sidedness or kind changed underneath us, or a file pair's metadata
	// moved: reinitialize in place. Children are kept (nodes are never
	// destroyed); a directory that needs rescanning is re-queued.
	wasDetermined := n.determined
	t.initNodeLocked(n, seen, work)
	if wasDetermined != n.determined {
		if n.determined {
			parent.undetermined--
		} else {
			parent.undetermined++
		}
	}
}

// isDeterminedLocked reports whether n's classification can no longer
// change: inaccessible and one-sided nodes immediately, files once
// compared, directories once scanned with no undetermined children left.
func (t *Tree) isDeterminedLocked(n *node) bool {
	if n.inaccessible {
		return true
	}
	if !n.hasBothSides() {
		return true
	}
	if !n.isDir {
		return n.fileState == FileCompared
	}
	return n.dirState == DirScanned && n.undetermined == 0
}

// recomputeDeterminedLocked re-evaluates n's determined bit and cascades
// upward while parents flip, keeping every ancestor's undetermined count in
// step.
func (t *Tree) recomputeDeterminedLocked(id NodeID) {
	for id != NoNode {
		n := t.nodes[id]
		det := t.isDeterminedLocked(n)
		if det == n.determined {
			return
		}
		n.determined = det
		if n.parent == NoNode {
			return
		}
		p := t.nodes[n.parent]
		if det {
			p.undetermined--
		} else {
			p.undetermined++
		}
		id = n.parent
	}
}

// classifyDirLocked derives a directory's classification from its sidedness,
// its own scan state, and the currently known children. A directory with no
// known differing child reports identical as soon as its own level is
// scanned, even while descendants are still being worked; the determined
// bit tracks whether that can still change.
func (t *Tree) classifyDirLocked(n *node) DifferenceType {
	if n.left == nil {
		return DiffOnlyRight
	}
	if n.right == nil {
		return DiffOnlyLeft
	}
	for _, cid := range n.children {
		if t.nodes[cid].diff.Differs() {
			return DiffContainsDifference
		}
	}
	if n.dirState == DirScanned {
		return DiffIdentical
	}
	return DiffPending
}

// propagateLocked re-classifies ancestors after id's classification
// changed, stopping at the first ancestor whose status holds steady.
func (t *Tree) propagateLocked(id NodeID) {
	for cur := t.nodes[id].parent; cur != NoNode; {
		n := t.nodes[cur]
		next := t.classifyDirLocked(n)
		if next == n.diff {
			return
		}
		n.diff = next
		cur = n.parent
	}
}

// beginScan transitions a directory to DirScanning and hands back what the
// scanner needs so the listing runs with no lock held. ok is false when the
// task is stale: unknown node, not a directory, already scanned, or a scan
// already in flight.
func (t *Tree) beginScan(id NodeID) (left, right Path, rel string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.nodeLocked(id)
	if n == nil || !n.isDir || n.dirState != DirUnscanned {
		return nil, nil, "", false
	}
	n.dirState = DirScanning
	t.markDirty()
	return n.left, n.right, n.rel, true
}

// abortScan reverts a failed scan. The node keeps the error and is not
// retried automatically; a later expand may try again by hand.
func (t *Tree) abortScan(id NodeID, msg string) {
	t.mu.Lock()
	n := t.nodeLocked(id)
	if n == nil || n.dirState != DirScanning {
		t.mu.Unlock()
		return
	}
	n.dirState = DirUnscanned
	n.inaccessible = true
	n.errMsg = msg
	t.recomputeDeterminedLocked(id)
	t.mu.Unlock()
	t.markDirty()
}

// applyScan merges one completed directory listing into the tree: upserts
// the observed children, marks the node scanned, reclassifies it, and
// returns the follow-up tasks to enqueue once no lock is held. A successful
// scan clears an earlier failure mark.
func (t *Tree) applyScan(id NodeID, seen []childSeen) (scanWork, bool) {
	var work scanWork
	t.mu.Lock()
	n := t.nodeLocked(id)
	if n == nil || !n.isDir || n.dirState != DirScanning {
		t.mu.Unlock()
		return work, false
	}
	for _, s := range seen {
		t.upsertChildLocked(n, s, &work)
	}
	n.dirState = DirScanned
	n.inaccessible = false
	n.errMsg = ""
	n.diff = t.classifyDirLocked(n)
	t.propagateLocked(id)
	t.recomputeDeterminedLocked(id)
	t.mu.Unlock()
	t.markDirty()
	return work, true
}

// beginCompare fetches what the comparator needs for one pending two-sided
// file. ok is false for stale tasks, so a pair is never re-classified.
func (t *Tree) beginCompare(id NodeID) (left, right Path, rel string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.nodeLocked(id)
	if n == nil || n.isDir || !n.hasBothSides() || n.inaccessible || n.fileState != FilePending {
		return nil, nil, "", false
	}
	return n.left, n.right, n.rel, true
}

// finishCompare records a comparison outcome and propagates it upward. A
// read failure conservatively classifies the pair as different and flags
// the node.
func (t *Tree) finishCompare(id NodeID, identical bool, errMsg string) {
	t.mu.Lock()
	n := t.nodeLocked(id)
	if n == nil || n.isDir || n.fileState == FileCompared {
		t.mu.Unlock()
		return
	}
	n.fileState = FileCompared
	switch {
	case errMsg != "":
		n.inaccessible = true
		n.errMsg = errMsg
		n.diff = DiffContentDifferent
	case identical:
		n.diff = DiffIdentical
	default:
		n.diff = DiffContentDifferent
	}
	t.propagateLocked(id)
	t.recomputeDeterminedLocked(id)
	t.mu.Unlock()
	t.markDirty()
}

// setExpanded flips presentation state only; scanned data is never
// discarded on collapse.
func (t *Tree) setExpanded(id NodeID, expanded bool) bool {
	t.mu.Lock()
	n := t.nodeLocked(id)
	if n == nil || !n.isDir || n.expanded == expanded {
		t.mu.Unlock()
		return false
	}
	n.expanded = expanded
	t.mu.Unlock()
	t.markDirty()
	return true
}

func (t *Tree) snapshotLocked(n *node) Node {
	out := Node{
		ID:              n.id,
		Parent:          n.parent,
		Name:            n.name,
		Rel:             n.rel,
		Depth:           n.depth,
		IsDir:           n.isDir,
		Diff:            n.diff,
		Provisional:     !n.determined,
		Expanded:        n.expanded,
		ChildrenScanned: n.dirState == DirScanned,
		ScanInProgress:  n.dirState == DirScanning,
		ContentCompared: !n.isDir && n.fileState == FileCompared,
		Inaccessible:    n.inaccessible,
		Err:             n.errMsg,
		Left:            n.leftInfo,
		Right:           n.rightInfo,
	}
	if n.left != nil {
		out.LeftPath = n.left.String()
	}
	if n.right != nil {
		out.RightPath = n.right.String()
	}
	if len(n.children) > 0 {
		out.Children = make([]NodeID, len(n.children))
		copy(out.Children, n.children)
	}
	return out
}

// Node returns a snapshot of one node.
func (t *Tree) Node(id NodeID) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.nodeLocked(id)
	if n == nil {
		return Node{}, false
	}
	return t.snapshotLocked(n), true
}

// Root returns a snapshot of the comparison root.
func (t *Tree) Root() (Node, bool) {
	return t.Node(0)
}

// ChildrenOf returns snapshots of id's children in name order.
func (t *Tree) ChildrenOf(id NodeID) []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.nodeLocked(id)
	if n == nil {
		return nil
	}
	out := make([]Node, 0, len(n.children))
	for _, cid := range n.children {
		out = append(out, t.snapshotLocked(t.nodes[cid]))
	}
	return out
}

// Find resolves a slash-separated relative path to a node snapshot.
func (t *Tree) Find(rel string) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.nodes) == 0 {
		return Node{}, false
	}
	n := t.nodes[0]
	if rel != "" {
		for _, part := range strings.Split(rel, "/") {
			id, ok := t.childByNameLocked(n, part)
			if !ok {
				return Node{}, false
			}
			n = t.nodes[id]
		}
	}
	return t.snapshotLocked(n), true
}

// Flatten returns the rows a tree view renders: the root, then recursively
// the children of every expanded directory, in name order.
func (t *Tree) Flatten() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.nodes) == 0 {
		return nil
	}
	out := make([]Node, 0, 64)
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := t.nodes[id]
		out = append(out, t.snapshotLocked(n))
		if n.isDir && n.expanded {
			for _, cid := range n.children {
				walk(cid)
			}
		}
	}
	walk(0)
	return out
}

// All returns every node in depth-first name order, ignoring expansion.
// Batch reports use this; tree views use Flatten.
func (t *Tree) All() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.nodes) == 0 {
		return nil
	}
	out := make([]Node, 0, len(t.nodes))
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := t.nodes[id]
		out = append(out, t.snapshotLocked(n))
		for _, cid := range n.children {
			walk(cid)
		}
	}
	walk(0)
	return out
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Summary tallies the whole tree by classification. Inaccessible nodes are
// counted separately from their classification.
type Summary struct {
	Files int
	Dirs  int

	Pending            int
	Identical          int
	OnlyLeft           int
	OnlyRight          int
	ContentDifferent   int
	ContainsDifference int

	Inaccessible int
	Provisional  int
}

// Differences reports how many nodes differ in any way.
func (s Summary) Differences() int {
	return s.OnlyLeft + s.OnlyRight + s.ContentDifferent + s.ContainsDifference
}

// Summarize walks the arena and tallies it.
func (t *Tree) Summarize() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var s Summary
	for _, n := range t.nodes {
		if n.isDir {
			s.Dirs++
		} else {
			s.Files++
		}
		switch n.diff {
		case DiffPending:
			s.Pending++
		case DiffIdentical:
			s.Identical++
		case DiffOnlyLeft:
			s.OnlyLeft++
		case DiffOnlyRight:
			s.OnlyRight++
		case DiffContentDifferent:
			s.ContentDifferent++
		case DiffContainsDifference:
			s.ContainsDifference++
		}
		if n.inaccessible {
			s.Inaccessible++
		}
		if !n.determined {
			s.Provisional++
		}
	}
	return s
}
