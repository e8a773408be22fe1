package lib

import "time"

// Side indicates which tree (left or right) a path was seen on.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// FileInfo is a one-sided metadata snapshot captured during a scan: full
// path, relative path from the comparison root, directory flag, size, and
// mtime normalized to 1-second granularity. Captured once per scan and
// never mutated afterward; re-scanning produces a replacement snapshot.
type FileInfo struct {
	Path       string
	Rel        string
	IsDir      bool
	Size       int64
	Mtime      time.Time
	Accessible bool
	Err        string // why the path could not be read, empty when Accessible
}

// NormalizeMtime truncates t to 1-second granularity for consistent comparison across filesystems.
func NormalizeMtime(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
