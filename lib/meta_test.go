package lib

import (
	"testing"
	"time"
)

func newTestMeta() *metaStore {
	return newMetaStore(NewPathPool())
}

func TestMetaStore_recordAndLookup(t *testing.T) {
	m := newTestMeta()
	mtime := time.Unix(1700000000, 0)
	m.Record("sub/f.txt", SideLeft, FileInfo{Rel: "sub/f.txt", Size: 10, Mtime: mtime, Accessible: true})

	info, ok := m.Lookup("sub/f.txt", SideLeft)
	if !ok || info.Size != 10 || !info.Mtime.Equal(mtime) {
		t.Errorf("Lookup = %+v %v", info, ok)
	}
	if _, ok := m.Lookup("sub/f.txt", SideRight); ok {
		t.Error("Lookup found a snapshot on the unrecorded side")
	}
}

func TestMetaStore_recordNormalizesSeparators(t *testing.T) {
	m := newTestMeta()
	rel := m.Record("sub\\win.txt", SideLeft, FileInfo{Size: 1, Accessible: true})
	if rel != "sub\\win.txt" && rel != "sub/win.txt" {
		t.Errorf("Record returned %q", rel)
	}
	// On every platform the returned key is the one lookups use.
	if _, ok := m.Lookup(rel, SideLeft); !ok {
		t.Error("returned rel does not look itself up")
	}
}

func TestMetaStore_pairRequiresBothSides(t *testing.T) {
	m := newTestMeta()
	m.Record("f", SideLeft, FileInfo{Size: 5, Mtime: time.Unix(10, 0), Accessible: true})
	if _, ok := m.PairCachedInfo("f"); ok {
		t.Error("half-recorded pair reported cached info")
	}

	m.Record("f", SideRight, FileInfo{Size: 7, Mtime: time.Unix(20, 0), Accessible: true})
	pair, ok := m.PairCachedInfo("f")
	if !ok {
		t.Fatal("full pair reported no cached info")
	}
	if pair.LeftSize != 5 || pair.RightSize != 7 {
		t.Errorf("pair sizes = %d/%d, want 5/7", pair.LeftSize, pair.RightSize)
	}
	if !pair.LeftMtime.Equal(time.Unix(10, 0)) || !pair.RightMtime.Equal(time.Unix(20, 0)) {
		t.Errorf("pair mtimes = %v/%v", pair.LeftMtime, pair.RightMtime)
	}
}

func TestMetaStore_rescanReplacesSnapshot(t *testing.T) {
	m := newTestMeta()
	m.Record("f", SideLeft, FileInfo{Size: 5, Accessible: true})
	m.Record("f", SideLeft, FileInfo{Size: 50, Accessible: true})
	info, _ := m.Lookup("f", SideLeft)
	if info.Size != 50 {
		t.Errorf("Size = %d, want the replacement", info.Size)
	}
}

func TestMetaStore_bytesSeenSkipsDirsAndUnreadable(t *testing.T) {
	m := newTestMeta()
	m.Record("a", SideLeft, FileInfo{Size: 10, Accessible: true})
	m.Record("b", SideLeft, FileInfo{Size: 20, Accessible: true})
	m.Record("d", SideLeft, FileInfo{Size: 5, IsDir: true, Accessible: true})
	m.Record("x", SideLeft, FileInfo{Size: 100, Accessible: false})
	m.Record("r", SideRight, FileInfo{Size: 1000, Accessible: true})

	if got := m.BytesSeen(SideLeft); got != 30 {
		t.Errorf("BytesSeen(left) = %d, want 30", got)
	}
	if got := m.BytesSeen(SideRight); got != 1000 {
		t.Errorf("BytesSeen(right) = %d, want 1000", got)
	}
}
