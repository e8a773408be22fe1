package lib

import (
	"sync"
	"time"
)

// priorityHandler keeps the queues aligned with what the consumer is
// looking at. It wakes on viewport changes and on a steady tick, walks the
// rows a tree view would render, and promotes queued work: tasks for rows
// inside the viewport to PriorityVisible, tasks for other expanded rows to
// PriorityExpanded. Promotion never demotes, so work the user scrolled
// away from keeps its earned place in line.
type priorityHandler struct {
	tree     *Tree
	scans    *taskQueue[ScanTask]
	compares *taskQueue[CompareTask]
	interval time.Duration
	notify   chan struct{}
	done     chan struct{}

	mu    sync.Mutex
	first int
	count int
}

func newPriorityHandler(tree *Tree, scans *taskQueue[ScanTask], compares *taskQueue[CompareTask], interval time.Duration, done chan struct{}) *priorityHandler {
	return &priorityHandler{
		tree:     tree,
		scans:    scans,
		compares: compares,
		interval: interval,
		notify:   make(chan struct{}, 1),
		done:     done,
	}
}

// setViewport records the visible row range in flattened-row coordinates
// and nudges the handler awake.
func (h *priorityHandler) setViewport(first, count int) {
	h.mu.Lock()
	h.first, h.count = first, count
	h.mu.Unlock()
	h.nudge()
}

// nudge asks for a reprioritize pass soon; extra nudges coalesce.
func (h *priorityHandler) nudge() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *priorityHandler) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-h.notify:
		case <-ticker.C:
		}
		h.reprioritize()
	}
}

// reprioritize promotes queued tasks for the current viewport. Rows with
// nothing queued promote to nothing; the node sets are cheap enough to
// rebuild every pass rather than track incrementally.
func (h *priorityHandler) reprioritize() {
	h.mu.Lock()
	first, count := h.first, h.count
	h.mu.Unlock()
	if count <= 0 {
		return
	}

	flat := h.tree.Flatten()
	if len(flat) == 0 {
		return
	}
	if first < 0 {
		first = 0
	}
	if first >= len(flat) {
		first = len(flat) - 1
	}

	visible := make(map[NodeID]bool, count)
	expanded := make(map[NodeID]bool, len(flat))
	for i, n := range flat {
		if i >= first && i < first+count {
			visible[n.ID] = true
		} else {
			expanded[n.ID] = true
		}
	}
	if len(visible) > 0 {
		h.scans.Promote(visible, PriorityVisible)
		h.compares.Promote(visible, PriorityVisible)
	}
	if len(expanded) > 0 {
		h.scans.Promote(expanded, PriorityExpanded)
		h.compares.Promote(expanded, PriorityExpanded)
	}
}
