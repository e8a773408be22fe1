package lib

import (
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// Estimate is a rough forecast of how much work a comparison will find,
// built by racing a plain walk over both roots while the engine does the
// real comparison. Progress displays use it for "of roughly N" totals.
type Estimate struct {
	leftFiles  atomic.Int64
	rightFiles atomic.Int64
	leftDirs   atomic.Int64
	rightDirs  atomic.Int64
	bytes      atomic.Int64
	done       atomic.Bool
}

// Done reports whether both walks finished.
func (e *Estimate) Done() bool { return e.done.Load() }

// Bytes is the total size seen so far across both roots.
func (e *Estimate) Bytes() int64 { return e.bytes.Load() }

// ApproxTasks is a rough bound on the scans plus comparisons the engine
// will run: the larger side's directory count plus the larger side's file
// count, plus the root scan.
func (e *Estimate) ApproxTasks() int64 {
	dirs := max(e.leftDirs.Load(), e.rightDirs.Load())
	files := max(e.leftFiles.Load(), e.rightFiles.Load())
	return dirs + files + 1
}

// EstimateTotals walks both roots in the background with fastwalk,
// filling in the estimate as it goes. Entries that cannot be read are
// simply not counted; the numbers are advisory, never load-bearing.
func EstimateTotals(leftRoot, rightRoot string, workers int, excludePatterns []string) *Estimate {
	exclude, _ := CompileExcludes(excludePatterns)
	est := &Estimate{}
	go func() {
		defer est.done.Store(true)
		var wg sync.WaitGroup
		walk := func(root string, files, dirs *atomic.Int64) {
			defer wg.Done()
			root = filepath.Clean(root)
			conf := &fastwalk.Config{
				Follow:     false,
				NumWorkers: workers,
			}
			fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if path == root {
					return nil
				}
				rel, relErr := filepath.Rel(root, path)
				if relErr == nil && exclude.Match(d.Name(), filepath.ToSlash(rel)) {
					if d.IsDir() {
						return fs.SkipDir
					}
					return nil
				}
				if d.IsDir() {
					dirs.Add(1)
					return nil
				}
				if !d.Type().IsRegular() {
					return nil
				}
				files.Add(1)
				if info, infoErr := d.Info(); infoErr == nil {
					est.bytes.Add(info.Size())
				}
				return nil
			})
		}
		wg.Add(2)
		go walk(leftRoot, &est.leftFiles, &est.leftDirs)
		go walk(rightRoot, &est.rightFiles, &est.rightDirs)
		wg.Wait()
	}()
	return est
}
