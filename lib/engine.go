package lib

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// EngineState is the engine's lifecycle position. There is no terminal
// "done": running out of queued work is a quiescent point and more work can
// arrive through Expand, so only cancellation ends a run.
type EngineState int32

const (
	StateNew      EngineState = iota
	StateScanning             // synchronous top-level scan inside Start
	StateRunning              // background workers active
	StateCanceling            // cancel requested, workers draining
	StateStopped
)

func (s EngineState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateScanning:
		return "scanning"
	case StateRunning:
		return "running"
	case StateCanceling:
		return "canceling"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const utilizationWindowTicks = 10

// Engine drives one progressive comparison of two directory trees. Scan
// workers reveal structure level by level, compare workers resolve file
// pairs, and the priority handler steers both toward whatever the consumer
// is looking at. Results accumulate in the Tree, which consumers read at
// any time through snapshots.
type Engine struct {
	cfg  Config
	log  *Logger
	tree *Tree
	meta *metaStore
	pool *PathPool

	scans    *taskQueue[ScanTask]
	compares *taskQueue[CompareTask]
	scan     *scanner
	cmp      *comparator
	prio     *priorityHandler

	counters *Counters
	util     *WorkerUtilization

	state   atomic.Int32
	done    chan struct{}
	wg      sync.WaitGroup
	backlog atomic.Int64
	idle    chan struct{}
}

// New builds an engine over two on-disk roots. Both must exist and be
// directories. Nothing runs until Start.
func New(leftRoot, rightRoot string, cfg Config, log *Logger) (*Engine, error) {
	full, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	left := NewOSPath(filepath.Clean(leftRoot), full.DirBatchSize)
	right := NewOSPath(filepath.Clean(rightRoot), full.DirBatchSize)
	return NewWithPaths(left, right, full, log)
}

// NewWithPaths builds an engine over any Path implementation, which is how
// tests drive it against an in-memory tree.
func NewWithPaths(left, right Path, cfg Config, log *Logger) (*Engine, error) {
	full, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = NewDiscardLogger()
	}

	e := &Engine{
		cfg:      full,
		log:      log,
		tree:     NewTree(),
		pool:     NewPathPool(),
		scans:    newTaskQueue[ScanTask](),
		compares: newTaskQueue[CompareTask](),
		counters: &Counters{},
		done:     make(chan struct{}),
		idle:     make(chan struct{}, 1),
	}
	e.meta = newMetaStore(e.pool)
	e.util = NewWorkerUtilization(full.ScanWorkers, full.CompareWorkers, utilizationWindowTicks)
	e.scan = &scanner{
		tree:     e.tree,
		meta:     e.meta,
		queue:    e.scans,
		exclude:  full.excludes,
		log:      log,
		counters: e.counters,
		util:     e.util,
		submit:   e.submit,
		onDone:   e.taskDone,
	}
	e.cmp = &comparator{
		tree:      e.tree,
		meta:      e.meta,
		queue:     e.compares,
		mode:      full.CompareMode,
		chunkSize: full.ChunkSize,
		threshold: full.HashThreshold,
		log:       log,
		counters:  e.counters,
		util:      e.util,
		onDone:    e.taskDone,
	}
	e.prio = newPriorityHandler(e.tree, e.scans, e.compares, full.pollInterval(), e.done)

	seen, err := e.rootSeen(left, right)
	if err != nil {
		return nil, err
	}
	e.tree.addRoot(".", seen)
	return e, nil
}

func pathString(p Path) string {
	if p == nil {
		return ""
	}
	return p.String()
}

func (e *Engine) rootSeen(left, right Path) (childSeen, error) {
	for _, r := range []struct {
		p    Path
		side Side
	}{{left, SideLeft}, {right, SideRight}} {
		if r.p == nil || !r.p.Exists() {
			return childSeen{}, newBadRootError(pathString(r.p), r.side, "not found")
		}
		if !r.p.IsDir() {
			return childSeen{}, newBadRootError(r.p.String(), r.side, "not a directory")
		}
	}
	return childSeen{
		name:      ".",
		left:      left,
		right:     right,
		leftInfo:  e.scan.statSide(left, "", SideLeft),
		rightInfo: e.scan.statSide(right, "", SideRight),
	}, nil
}

// State returns the engine's lifecycle position.
func (e *Engine) State() EngineState {
	return EngineState(e.state.Load())
}

// Tree exposes the result tree for snapshot reads.
func (e *Engine) Tree() *Tree { return e.tree }

// Changes pulses when the tree has changed since the consumer last looked.
func (e *Engine) Changes() <-chan struct{} { return e.tree.Changes() }

// Progress copies the activity counters.
func (e *Engine) Progress() Progress { return e.counters.Snapshot() }

// Utilization exposes the worker utilization tracker for display loops.
func (e *Engine) Utilization() *WorkerUtilization { return e.util }

// PendingTasks reports how many scans and comparisons are queued.
func (e *Engine) PendingTasks() (scans, compares int) {
	return e.scans.Len(), e.compares.Len()
}

// Flatten returns the rows a tree view renders right now.
func (e *Engine) Flatten() []Node { return e.tree.Flatten() }

// Find resolves a slash-separated relative path to a node snapshot.
func (e *Engine) Find(rel string) (Node, bool) { return e.tree.Find(rel) }

// Summarize tallies the tree by classification.
func (e *Engine) Summarize() Summary { return e.tree.Summarize() }

// Start spawns the workers and scans the root synchronously, so the first
// level of the comparison is present when it returns.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(int32(StateNew), int32(StateScanning)) {
		return newEngineStateError("start", e.State())
	}
	e.log.Infof("comparing with %v scan and %v compare workers, mode %v",
		e.cfg.ScanWorkers, e.cfg.CompareWorkers, e.cfg.CompareMode)

	for i := 0; i < e.cfg.ScanWorkers; i++ {
		slot := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.scan.run(slot)
		}()
	}
	for i := 0; i < e.cfg.CompareWorkers; i++ {
		slot := e.cfg.ScanWorkers + i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.cmp.run(slot)
		}()
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.prio.run()
	}()

	e.backlog.Add(1)
	e.scan.scan(0, PriorityImmediate)
	e.taskDone()

	// Cancel during the top-level scan wins; the run is already over.
	if !e.state.CompareAndSwap(int32(StateScanning), int32(StateRunning)) {
		return newEngineStateError("start", e.State())
	}
	return nil
}

// Expand marks a directory expanded and guarantees its first level: an
// unscanned directory is scanned synchronously on the caller's goroutine,
// ahead of every queue. Expanding a failed directory retries its scan.
func (e *Engine) Expand(rel string) (Node, error) {
	if e.State() != StateRunning {
		return Node{}, newEngineStateError("expand", e.State())
	}
	n, ok := e.tree.Find(rel)
	if !ok {
		return Node{}, newUnknownPathError("expand", rel)
	}
	if !n.IsDir {
		return n, newNotDirectoryError("expand", rel)
	}
	e.tree.setExpanded(n.ID, true)
	if !n.ChildrenScanned && !n.ScanInProgress {
		e.backlog.Add(1)
		e.scan.scan(n.ID, PriorityImmediate)
		e.taskDone()
	}
	e.prio.nudge()
	n, _ = e.tree.Node(n.ID)
	return n, nil
}

// Collapse hides a directory's children. Presentation only; nothing
// already learned is discarded and queued work keeps running.
func (e *Engine) Collapse(rel string) (Node, error) {
	n, ok := e.tree.Find(rel)
	if !ok {
		return Node{}, newUnknownPathError("collapse", rel)
	}
	if !n.IsDir {
		return n, newNotDirectoryError("collapse", rel)
	}
	e.tree.setExpanded(n.ID, false)
	e.prio.nudge()
	n, _ = e.tree.Node(n.ID)
	return n, nil
}

// SetViewport tells the engine which flattened rows the consumer can see,
// so pending work under them jumps the queues.
func (e *Engine) SetViewport(first, count int) {
	e.prio.setViewport(first, count)
}

// DiffPair resolves the two concrete paths behind a content-differing file
// so the caller can hand them to an external diff viewer. The engine never
// renders file contents itself.
func (e *Engine) DiffPair(rel string) (left, right string, err error) {
	n, ok := e.tree.Find(rel)
	if !ok {
		return "", "", newUnknownPathError("diff", rel)
	}
	if n.IsDir || !n.HasLeft() || !n.HasRight() || n.Diff != DiffContentDifferent {
		return "", "", newNotFilePairError("diff", rel)
	}
	return n.LeftPath, n.RightPath, nil
}

// Cancel stops the engine: workers finish their current task, drop the
// rest, and exit. Safe to call more than once; the tree keeps whatever
// progress was made. Returns an error if workers fail to stop in time.
func (e *Engine) Cancel() error {
	for {
		s := e.State()
		if s != StateScanning && s != StateRunning {
			return nil
		}
		if e.state.CompareAndSwap(int32(s), int32(StateCanceling)) {
			break
		}
	}
	close(e.done)
	e.scans.Close()
	e.compares.Close()

	joined := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
		e.state.Store(int32(StateStopped))
		return nil
	case <-time.After(e.cfg.joinTimeout()):
		// Proceed regardless; a straggler holds nothing beyond file
		// handles that close with its current read.
		e.log.Errorf("cancel: workers still busy after %v", e.cfg.joinTimeout())
		err := newEngineStateError("cancel", e.State())
		e.state.Store(int32(StateStopped))
		return err
	}
}

// Wait blocks until the engine has no queued or in-flight work. More work
// can arrive afterwards through Expand; exhaustion is a quiescent point,
// not a terminal state.
func (e *Engine) Wait(ctx context.Context) error {
	for {
		if e.backlog.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return newEngineStateError("wait", e.State())
		case <-e.idle:
			// Pass the wakeup along in case someone else is waiting too.
			e.signalIdle()
		}
	}
}

// submit enqueues the follow-up work one scan produced. Children inherit
// the urgency of the scan that revealed them, capped at PriorityVisible
// since PriorityImmediate work never queues.
func (e *Engine) submit(work scanWork, origin Priority) {
	bump := origin
	if bump > PriorityVisible {
		bump = PriorityVisible
	}
	for _, st := range work.scans {
		if bump > st.Priority {
			st = st.at(bump)
		}
		e.enqueueScan(st)
	}
	for _, ct := range work.compares {
		if bump > ct.Priority {
			ct = ct.at(bump)
		}
		e.enqueueCompare(ct)
	}
}

func (e *Engine) enqueueScan(t ScanTask) {
	e.backlog.Add(1)
	e.counters.Enqueued.Add(1)
	e.scans.Push(t)
}

func (e *Engine) enqueueCompare(t CompareTask) {
	e.backlog.Add(1)
	e.counters.Enqueued.Add(1)
	e.compares.Push(t)
}

// taskDone retires one unit of work. Follow-up tasks are always enqueued
// before their producer retires, so a zero backlog really means exhausted.
func (e *Engine) taskDone() {
	if e.backlog.Add(-1) == 0 {
		e.signalIdle()
	}
}

func (e *Engine) signalIdle() {
	select {
	case e.idle <- struct{}{}:
	default:
	}
}

// DiffPaths compares two directory trees to completion: the one-call form
// of the engine for batch use. The returned tree is fully classified
// unless ctx expired first.
func DiffPaths(ctx context.Context, leftRoot, rightRoot string, cfg Config, log *Logger) (*Tree, Summary, error) {
	e, err := New(leftRoot, rightRoot, cfg, log)
	if err != nil {
		return nil, Summary{}, err
	}
	if err := e.Start(); err != nil {
		return nil, Summary{}, err
	}
	defer e.Cancel()
	if err := e.Wait(ctx); err != nil {
		return nil, Summary{}, err
	}
	return e.Tree(), e.Summarize(), nil
}
