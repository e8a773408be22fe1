package lib

import "fmt"

// comparator is the file-comparison worker. A task resolves one pending
// pair: cheap size check first, content only when the sizes agree, then
// classification and upward propagation through the tree.
type comparator struct {
	tree      *Tree
	meta      *metaStore
	queue     *taskQueue[CompareTask]
	mode      string
	chunkSize int
	threshold int
	log       *Logger
	counters  *Counters
	util      *WorkerUtilization
	onDone    func()
}

// run is one worker loop; slot identifies it to the utilization tracker.
func (c *comparator) run(slot int) {
	for {
		task, ok := c.queue.Pop()
		if !ok {
			return
		}
		c.util.Poke(slot)
		c.process(task)
		c.counters.Processed.Add(1)
		c.onDone()
	}
}

// process wraps one comparison in the worker's failure boundary. A panic
// classifies the pair conservatively instead of killing the loop.
func (c *comparator) process(task CompareTask) {
	defer func() {
		if r := recover(); r != nil {
			c.counters.Errors.Add(1)
			c.log.ErrorWith(map[string]interface{}{"rel": task.Rel, "panic": fmt.Sprint(r)}, "compare task failed")
			c.tree.finishCompare(task.Node, false, fmt.Sprint(r))
		}
	}()
	c.compare(task.Node)
}

// compare resolves one file pair. Read failures mean the pair cannot be
// shown identical, so the node is marked different and inaccessible.
func (c *comparator) compare(id NodeID) {
	left, right, rel, ok := c.tree.beginCompare(id)
	if !ok {
		return
	}
	c.counters.MarkStart()

	cached, _ := c.meta.PairCachedInfo(rel)
	identical, err := compareContent(left, right, c.mode, c.chunkSize, c.threshold, cached)
	if err != nil {
		c.counters.Errors.Add(1)
		c.log.ErrorWith(map[string]interface{}{"rel": rel}, err.Error())
		c.tree.finishCompare(id, false, err.Error())
		return
	}

	if cached != nil && cached.LeftSize == cached.RightSize {
		c.counters.BytesCompared.Add(cached.LeftSize)
	}
	c.counters.FilesCompared.Add(1)
	c.tree.finishCompare(id, identical, "")
}
