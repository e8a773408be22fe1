package lib

import (
	"path/filepath"
	"sync"
	"time"
)

// PairInfo holds cached size and mtime for both sides of a two-sided file
// (from the scan that discovered it).
type PairInfo struct {
	LeftSize   int64
	LeftMtime  time.Time
	RightSize  int64
	RightMtime time.Time
}

// metaStore keeps the per-side FileInfo snapshots recorded during directory
// scans, keyed by interned relative path. It backs the comparator's cheap
// size check and the summary byte totals. It has its own lock, which is
// never held together with a queue or tree lock.
type metaStore struct {
	mu    sync.Mutex
	pool  *PathPool
	left  map[string]FileInfo
	right map[string]FileInfo
}

// newMetaStore returns an empty store using the given path pool.
func newMetaStore(pool *PathPool) *metaStore {
	return &metaStore{
		pool:  pool,
		left:  make(map[string]FileInfo),
		right: make(map[string]FileInfo),
	}
}

// Record stores info for rel on the given side, replacing any earlier
// snapshot for the same path. Returns the interned rel.
func (m *metaStore) Record(rel string, side Side, info FileInfo) string {
	rel = m.pool.Intern(filepath.ToSlash(rel))
	m.mu.Lock()
	defer m.mu.Unlock()
	if side == SideLeft {
		m.left[rel] = info
	} else {
		m.right[rel] = info
	}
	return rel
}

// Lookup returns the snapshot for rel on side, if one was recorded.
func (m *metaStore) Lookup(rel string, side Side) (FileInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if side == SideLeft {
		info, ok := m.left[rel]
		return info, ok
	}
	info, ok := m.right[rel]
	return info, ok
}

// PairCachedInfo returns cached size and mtime for both sides of the pair, if present.
func (m *metaStore) PairCachedInfo(rel string) (*PairInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	leftInfo, hasLeft := m.left[rel]
	rightInfo, hasRight := m.right[rel]
	if !hasLeft || !hasRight {
		return nil, false
	}
	return &PairInfo{
		LeftSize:   leftInfo.Size,
		LeftMtime:  leftInfo.Mtime,
		RightSize:  rightInfo.Size,
		RightMtime: rightInfo.Mtime,
	}, true
}

// BytesSeen sums the file sizes recorded for one side.
func (m *metaStore) BytesSeen(side Side) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := m.left
	if side == SideRight {
		infos = m.right
	}
	var total int64
	for _, info := range infos {
		if !info.IsDir && info.Accessible {
			total += info.Size
		}
	}
	return total
}
