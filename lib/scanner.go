package lib

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// scanner is the directory-scan worker. Each task lists one level of both
// sides in parallel, merges the listings by name, and applies the result to
// the tree; discovered subdirectories and file pairs go back through the
// queues. A task never recurses past its own level.
type scanner struct {
	tree     *Tree
	meta     *metaStore
	queue    *taskQueue[ScanTask]
	exclude  *excludeSet
	log      *Logger
	counters *Counters
	util     *WorkerUtilization
	submit   func(work scanWork, origin Priority)
	onDone   func()
}

// run is one worker loop; slot identifies it to the utilization tracker.
// Only queue close ends the loop.
func (s *scanner) run(slot int) {
	for {
		task, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.util.Poke(slot)
		s.process(task)
		s.counters.Processed.Add(1)
		s.onDone()
	}
}

// process adds the per-task failure boundary: a panicking path backend
// loses its task, never the worker.
func (s *scanner) process(task ScanTask) {
	defer func() {
		if r := recover(); r != nil {
			s.counters.Errors.Add(1)
			s.log.ErrorWith(map[string]interface{}{"rel": task.Rel, "panic": fmt.Sprint(r)}, "scan task failed")
			s.tree.abortScan(task.Node, fmt.Sprint(r))
		}
	}()
	s.scan(task.Node, task.Priority)
}

// scan lists one directory level and merges it into the tree. It is also
// the synchronous expand path, called with PriorityImmediate on the
// consumer's goroutine. An absent side is an empty listing; a listing
// failure drops the whole task after marking the node, and is not retried
// automatically.
func (s *scanner) scan(id NodeID, origin Priority) {
	left, right, rel, ok := s.tree.beginScan(id)
	if !ok {
		return
	}
	s.counters.MarkStart()

	var leftChildren, rightChildren []Path
	g := new(errgroup.Group)
	g.Go(func() error {
		if left == nil {
			return nil
		}
		children, err := left.List()
		if err != nil {
			return newListDirectoryError(left.String(), SideLeft, err)
		}
		leftChildren = children
		return nil
	})
	g.Go(func() error {
		if right == nil {
			return nil
		}
		children, err := right.List()
		if err != nil {
			return newListDirectoryError(right.String(), SideRight, err)
		}
		rightChildren = children
		return nil
	})
	if err := g.Wait(); err != nil {
		s.counters.Errors.Add(1)
		s.log.ErrorWith(map[string]interface{}{"rel": rel}, err.Error())
		s.tree.abortScan(id, err.Error())
		return
	}

	seen := s.merge(rel, leftChildren, rightChildren)
	work, ok := s.tree.applyScan(id, seen)
	if !ok {
		return
	}
	s.counters.DirsScanned.Add(1)
	s.submit(work, origin)
}

// merge walks the two name-sorted listings in step and stats every present
// side. Listings from Path.List are sorted, so one pass pairs the sides.
func (s *scanner) merge(parentRel string, left, right []Path) []childSeen {
	out := make([]childSeen, 0, len(left)+len(right))
	i, j := 0, 0
	for i < len(left) || j < len(right) {
		var cmp int
		switch {
		case j >= len(right):
			cmp = -1
		case i >= len(left):
			cmp = 1
		default:
			cmp = strings.Compare(left[i].Name(), right[j].Name())
		}
		var seen childSeen
		switch cmp {
		case -1:
			seen = s.observe(parentRel, left[i], nil)
			i++
		case 1:
			seen = s.observe(parentRel, nil, right[j])
			j++
		default:
			seen = s.observe(parentRel, left[i], right[j])
			i++
			j++
		}
		if seen.name != "" {
			out = append(out, seen)
		}
	}
	return out
}

// observe builds one merged observation, or a zero value when the name is
// excluded by config.
func (s *scanner) observe(parentRel string, left, right Path) childSeen {
	var name string
	if left != nil {
		name = left.Name()
	} else {
		name = right.Name()
	}
	rel := childRel(parentRel, name)
	if s.exclude.Match(name, rel) {
		return childSeen{}
	}
	seen := childSeen{name: name}
	if left != nil {
		seen.left = left
		seen.leftInfo = s.statSide(left, rel, SideLeft)
	}
	if right != nil {
		seen.right = right
		seen.rightInfo = s.statSide(right, rel, SideRight)
	}
	return seen
}

// statSide captures one side's snapshot and records it in the metadata
// store. A failed stat yields an inaccessible snapshot and the siblings
// carry on; the scan itself is not aborted.
func (s *scanner) statSide(p Path, rel string, side Side) *FileInfo {
	info := &FileInfo{Path: p.String(), Rel: rel, IsDir: p.IsDir()}
	st, err := p.Stat()
	if err != nil {
		info.Err = err.Error()
		s.counters.Errors.Add(1)
		s.log.ErrorWith(map[string]interface{}{"rel": rel, "side": side.String()},
			newStatEntryError(p.String(), side, err).Error())
	} else {
		info.Accessible = true
		info.Size = st.Size
		info.Mtime = st.MTime
	}
	info.Rel = s.meta.Record(rel, side, *info)
	return info
}
