package lib

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Stat is the per-path metadata the engine reads: byte size and modification
// time. Directories report Size 0.
type Stat struct {
	Size  int64
	MTime time.Time
}

// Path is a read-only handle into one side of a comparison. Implementations
// wrap the local filesystem or a virtual one; the engine never mutates
// through it. List returns immediate children only (one level, sorted by
// name). Errors from List/Stat/Open must stay classifiable with
// os.IsPermission and os.IsNotExist so callers can tell access failures
// from missing paths.
type Path interface {
	// Name is the base name for display.
	Name() string
	// String is the full path for logs and the diff-viewer handoff.
	String() string
	Exists() bool
	IsDir() bool
	List() ([]Path, error)
	Stat() (Stat, error)
	Open() (io.ReadCloser, error)
}

// defaultDirBatchSize is used when caller passes <= 0; ReadDir(batchSize) uses fewer syscalls than reading one entry at a time.
const defaultDirBatchSize = 4096

// OSPath implements Path over the local filesystem. Listing skips symlinks
// and non-regular files.
type OSPath struct {
	path      string
	batchSize int
}

// NewOSPath returns a handle on path. batchSize bounds how many directory
// entries each ReadDir call pulls (<= 0 selects the default).
func NewOSPath(path string, batchSize int) *OSPath {
	if batchSize <= 0 {
		batchSize = defaultDirBatchSize
	}
	return &OSPath{path: filepath.Clean(path), batchSize: batchSize}
}

func (p *OSPath) Name() string   { return filepath.Base(p.path) }
func (p *OSPath) String() string { return p.path }

func (p *OSPath) Exists() bool {
	_, err := os.Lstat(p.path)
	return err == nil
}

func (p *OSPath) IsDir() bool {
	info, err := os.Lstat(p.path)
	return err == nil && info.IsDir()
}

// List reads one directory level in batches via File.ReadDir(batchSize).
// Skips . and .., symlinks, and non-regular files. Does not call Info();
// callers Stat children when they need size/mtime.
func (p *OSPath) List() ([]Path, error) {
	dirFile, err := os.Open(p.path)
	if err != nil {
		return nil, err
	}
	defer dirFile.Close()
	var out []Path
	for {
		entries, err := dirFile.ReadDir(p.batchSize)
		for _, entry := range entries {
			name := entry.Name()
			if name == "." || name == ".." {
				continue
			}
			if !entry.IsDir() {
				if entry.Type()&fs.ModeSymlink != 0 {
					continue
				}
				if entry.Type()&fs.ModeType != 0 {
					continue
				}
			}
			out = append(out, &OSPath{path: filepath.Join(p.path, name), batchSize: p.batchSize})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (p *OSPath) Stat() (Stat, error) {
	info, err := os.Lstat(p.path)
	if err != nil {
		return Stat{}, err
	}
	size := info.Size()
	if info.IsDir() {
		size = 0
	}
	return Stat{Size: size, MTime: NormalizeMtime(info.ModTime())}, nil
}

func (p *OSPath) Open() (io.ReadCloser, error) {
	return os.Open(p.path)
}

// PathPool interns relative path strings so both sides of a large
// comparison share storage for equal paths.
type PathPool struct {
	mu   sync.Mutex
	seen map[string]string
}

// NewPathPool returns a new path pool.
func NewPathPool() *PathPool {
	return &PathPool{seen: make(map[string]string)}
}

// Intern returns the same string for equal inputs, deduplicating storage.
func (p *PathPool) Intern(rel string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.seen[rel]; ok {
		return cached
	}
	p.seen[rel] = rel
	return rel
}

// EnsureDir returns nil if path is an existing directory; otherwise an error.
func EnsureDir(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}

// childRel joins a parent's relative path with a child name.
func childRel(parentRel, name string) string {
	if parentRel == "" {
		return name
	}
	return parentRel + "/" + name
}
