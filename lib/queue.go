package lib

import (
	"sort"
	"sync"
)

// Priority orders queued work; higher levels run first. PriorityImmediate
// is the synchronous expand path and never enters a queue.
type Priority int

const (
	// PriorityLow is for one-sided directories, scanned only after
	// everything else since nothing inside can change a classification.
	PriorityLow Priority = iota
	PriorityNormal
	// PriorityExpanded covers nodes under an expanded directory that have
	// scrolled out of view.
	PriorityExpanded
	// PriorityVisible covers nodes in the current viewport.
	PriorityVisible
	PriorityImmediate
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityExpanded:
		return "expanded"
	case PriorityVisible:
		return "visible"
	case PriorityImmediate:
		return "immediate"
	}
	return "unknown"
}

// ScanTask names one directory level to list on both sides.
type ScanTask struct {
	Node     NodeID
	Rel      string
	Priority Priority
	Visible  bool
}

func (t ScanTask) taskNode() NodeID { return t.Node }
func (t ScanTask) priority() Priority { return t.Priority }
func (t ScanTask) at(p Priority) ScanTask {
	t.Priority = p
	t.Visible = p >= PriorityVisible
	return t
}

// CompareTask names one two-sided file pair to content-compare.
type CompareTask struct {
	Node     NodeID
	Rel      string
	Priority Priority
	Visible  bool
}

func (t CompareTask) taskNode() NodeID { return t.Node }
func (t CompareTask) priority() Priority { return t.Priority }
func (t CompareTask) at(p Priority) CompareTask {
	t.Priority = p
	t.Visible = p >= PriorityVisible
	return t
}

// queueTask is what the queue needs from a task type.
type queueTask[T any] interface {
	taskNode() NodeID
	priority() Priority
	at(Priority) T
}

// queueItem tags a task with its submission sequence so equal priorities
// keep their order even after re-insertion.
type queueItem[T any] struct {
	task T
	pri  Priority
	seq  uint64
}

// taskQueue is the blocking queue feeding one worker. It keeps three lanes:
// a priority lane ordered by (level, submission order) that always drains
// first, a FIFO lane of normal work, and a low lane drained last. Promote
// implements priority re-insertion: queued tasks move into the priority
// lane ahead of normally-queued work. Close wakes every waiter; Pop then
// reports done even when items remain, which is the cancel semantic.
type taskQueue[T queueTask[T]] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	seq    uint64

	prio []queueItem[T]
	fifo []queueItem[T]
	low  []queueItem[T]
}

func newTaskQueue[T queueTask[T]]() *taskQueue[T] {
	q := &taskQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push routes t into its lane by priority.
func (q *taskQueue[T]) Push(t T) {
	q.mu.Lock()
	q.seq++
	q.insertLocked(queueItem[T]{task: t, pri: t.priority(), seq: q.seq})
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *taskQueue[T]) insertLocked(item queueItem[T]) {
	switch {
	case item.pri >= PriorityExpanded:
		idx := sort.Search(len(q.prio), func(i int) bool {
			if q.prio[i].pri != item.pri {
				return q.prio[i].pri < item.pri
			}
			return q.prio[i].seq > item.seq
		})
		q.prio = append(q.prio, queueItem[T]{})
		copy(q.prio[idx+1:], q.prio[idx:])
		q.prio[idx] = item
	case item.pri == PriorityNormal:
		q.fifo = append(q.fifo, item)
	default:
		q.low = append(q.low, item)
	}
}

// Pop blocks until a task is available or the queue is closed.
func (q *taskQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			var zero T
			return zero, false
		}
		if len(q.prio) > 0 {
			item := q.prio[0]
			q.prio = q.prio[1:]
			return item.task, true
		}
		if len(q.fifo) > 0 {
			item := q.fifo[0]
			q.fifo = q.fifo[1:]
			return item.task, true
		}
		if len(q.low) > 0 {
			item := q.low[0]
			q.low = q.low[1:]
			return item.task, true
		}
		q.cond.Wait()
	}
}

// Promote moves queued tasks for the given nodes to level p, preserving
// their relative submission order. Tasks already at or above p stay put.
// Returns how many tasks moved.
func (q *taskQueue[T]) Promote(ids map[NodeID]bool, p Priority) int {
	if len(ids) == 0 || p < PriorityExpanded {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var bump []queueItem[T]
	filter := func(items []queueItem[T]) []queueItem[T] {
		out := items[:0]
		for _, it := range items {
			if ids[it.task.taskNode()] && it.pri < p {
				bump = append(bump, it)
			} else {
				out = append(out, it)
			}
		}
		return out
	}
	q.prio = filter(q.prio)
	q.fifo = filter(q.fifo)
	q.low = filter(q.low)
	for _, it := range bump {
		it.task = it.task.at(p)
		it.pri = p
		q.insertLocked(it)
	}
	return len(bump)
}

// Close wakes every blocked Pop; later Pops report done immediately.
func (q *taskQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len reports queued tasks across all lanes.
func (q *taskQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.prio) + len(q.fifo) + len(q.low)
}
