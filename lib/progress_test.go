package lib

import (
	"testing"
	"time"
)

func TestCounters_markStartOnlyOnce(t *testing.T) {
	c := &Counters{}
	if c.Elapsed() != 0 {
		t.Error("Elapsed before MarkStart should be zero")
	}
	c.MarkStart()
	first := c.startUnixNano.Load()
	time.Sleep(5 * time.Millisecond)
	c.MarkStart()
	if c.startUnixNano.Load() != first {
		t.Error("second MarkStart moved the start time")
	}
	if c.Elapsed() <= 0 {
		t.Error("Elapsed after MarkStart should grow")
	}
}

func TestCounters_snapshotCopies(t *testing.T) {
	c := &Counters{}
	c.DirsScanned.Add(3)
	c.FilesCompared.Add(5)
	c.BytesCompared.Add(777)
	c.Enqueued.Add(9)
	c.Processed.Add(8)
	c.Errors.Add(1)

	p := c.Snapshot()
	if p.DirsScanned != 3 || p.FilesCompared != 5 || p.BytesCompared != 777 {
		t.Errorf("snapshot = %+v", p)
	}
	if p.Enqueued != 9 || p.Processed != 8 || p.Errors != 1 {
		t.Errorf("snapshot = %+v", p)
	}
}

func TestNewWorkerUtilization_slotLayout(t *testing.T) {
	u := NewWorkerUtilization(2, 3, 10)
	if len(u.hits) != 5 {
		t.Errorf("hits length = %d, want 5", len(u.hits))
	}
	u = NewWorkerUtilization(0, 0, 10)
	if len(u.hits) != 1 {
		t.Errorf("hits length = %d, want at least one slot", len(u.hits))
	}
}

func TestWorkerUtilization_pokeOutOfRangeIgnored(t *testing.T) {
	u := NewWorkerUtilization(1, 1, 10)
	u.Poke(-1)
	u.Poke(2)
	u.Poke(100)
	if u.Tick() != 0 {
		t.Error("out-of-range pokes counted as activity")
	}
}

func TestWorkerUtilization_tickReflectsActiveShare(t *testing.T) {
	u := NewWorkerUtilization(2, 2, 10)
	u.Poke(0)
	u.Poke(2)
	// First tick has no window yet and reports on current hits.
	if pct := u.Tick(); pct != 50 {
		t.Errorf("Tick = %d, want 50", pct)
	}
	// No new activity: the window's oldest and newest agree, so idle.
	if pct := u.Tick(); pct != 0 {
		t.Errorf("Tick with no new pokes = %d, want 0", pct)
	}
	u.Poke(1)
	if pct := u.Tick(); pct != 25 {
		t.Errorf("Tick after one worker woke = %d, want 25", pct)
	}
}

func TestWorkerUtilization_wholeRunPercent(t *testing.T) {
	u := NewWorkerUtilization(2, 2, 10)
	u.Poke(0)
	u.Poke(0)
	u.Poke(3)
	if pct := u.UtilizedPercentWholeRun(); pct != 50 {
		t.Errorf("UtilizedPercentWholeRun = %d, want 50", pct)
	}
}
