package lib

import (
	"math"
	"sync/atomic"
	"time"
)

// Counters aggregates engine activity. All fields are atomic and safe to
// bump from any worker; Snapshot copies them for display.
type Counters struct {
	DirsScanned   atomic.Int64
	FilesCompared atomic.Int64
	BytesCompared atomic.Int64
	Enqueued      atomic.Int64
	Processed     atomic.Int64
	Errors        atomic.Int64

	startUnixNano atomic.Int64
}

// MarkStart stamps the first unit of work; later calls are no-ops.
func (c *Counters) MarkStart() {
	c.startUnixNano.CompareAndSwap(0, time.Now().UnixNano())
}

// Elapsed is the time since the first unit of work, zero before any.
func (c *Counters) Elapsed() time.Duration {
	start := c.startUnixNano.Load()
	if start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}

// Progress is a point-in-time copy of the counters.
type Progress struct {
	DirsScanned   int64
	FilesCompared int64
	BytesCompared int64
	Enqueued      int64
	Processed     int64
	Errors        int64
	Elapsed       time.Duration
}

// Snapshot copies the counters for a progress line or summary.
func (c *Counters) Snapshot() Progress {
	return Progress{
		DirsScanned:   c.DirsScanned.Load(),
		FilesCompared: c.FilesCompared.Load(),
		BytesCompared: c.BytesCompared.Load(),
		Enqueued:      c.Enqueued.Load(),
		Processed:     c.Processed.Load(),
		Errors:        c.Errors.Load(),
		Elapsed:       c.Elapsed(),
	}
}

// WorkerUtilization reports what share of the engine's processing workers
// did work over a sliding window of ticks. Slots are laid out scanners
// first, comparators after. Workers Poke their slot once per task; a
// display loop calls Tick each interval for the windowed percent.
type WorkerUtilization struct {
	hits    []int32
	history [][]int32
	ticks   int
}

// NewWorkerUtilization sizes the tracker for the engine's worker layout.
// windowTicks is how many Tick snapshots the sliding window keeps
// (e.g. 10 ticks at 100ms is about one second).
func NewWorkerUtilization(scanWorkers, compareWorkers, windowTicks int) *WorkerUtilization {
	n := scanWorkers + compareWorkers
	if n <= 0 {
		n = 1
	}
	if windowTicks <= 0 {
		windowTicks = 10
	}
	return &WorkerUtilization{hits: make([]int32, n), ticks: windowTicks}
}

// Poke records that the worker in slot did a unit of work. Out-of-range
// slots are ignored.
func (u *WorkerUtilization) Poke(slot int) {
	if slot < 0 || slot >= len(u.hits) {
		return
	}
	atomic.AddInt32(&u.hits[slot], 1)
}

// Tick snapshots current hits into the window and returns the percentage of
// workers with at least one hit since the window's oldest snapshot, rounded
// up to a whole percent. Call from a single goroutine.
func (u *WorkerUtilization) Tick() int {
	n := len(u.hits)
	if n == 0 {
		return 0
	}
	cur := make([]int32, n)
	for i := range u.hits {
		cur[i] = atomic.LoadInt32(&u.hits[i])
	}
	u.history = append(u.history, cur)
	if len(u.history) > u.ticks {
		u.history = u.history[1:]
	}
	active := 0
	if len(u.history) >= 2 {
		oldest := u.history[0]
		for i := range cur {
			if cur[i] > oldest[i] {
				active++
			}
		}
	} else {
		for _, c := range cur {
			if c > 0 {
				active++
			}
		}
	}
	return int(math.Ceil(100.0 * float64(active) / float64(n)))
}

// UtilizedPercentWholeRun is the percentage of workers that did any work at
// all, for the final summary.
func (u *WorkerUtilization) UtilizedPercentWholeRun() int {
	n := len(u.hits)
	if n == 0 {
		return 0
	}
	active := 0
	for i := range u.hits {
		if atomic.LoadInt32(&u.hits[i]) > 0 {
			active++
		}
	}
	return int(math.Ceil(100.0 * float64(active) / float64(n)))
}
