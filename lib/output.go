package lib

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// DiffEntry is one reportable row of a comparison: a differing or
// unreadable path with the metadata the report formats need.
type DiffEntry struct {
	Rel    string
	IsDir  bool
	Status string
	Size   int64
	Mtime  time.Time
	Err    string
}

func entryStatus(n Node) string {
	switch n.Diff {
	case DiffOnlyLeft:
		return "left only"
	case DiffOnlyRight:
		return "right only"
	case DiffContentDifferent:
		if n.Left != nil && n.Right != nil && n.Left.IsDir != n.Right.IsDir {
			return "file/directory mismatch"
		}
		return "content differs"
	}
	if n.Inaccessible {
		return "unreadable"
	}
	return n.Diff.String()
}

func entrySizeMtime(n Node) (int64, time.Time) {
	info := n.Left
	if info == nil {
		info = n.Right
	}
	if info == nil {
		return 0, time.Time{}
	}
	return info.Size, info.Mtime
}

// CollectDifferences walks the whole tree and returns the rows worth
// reporting: every definite difference plus every unreadable path.
// Directories that merely contain differences are left out; the report's
// tree shape carries that.
func CollectDifferences(t *Tree) []DiffEntry {
	var out []DiffEntry
	for _, n := range t.All() {
		if n.ID == 0 {
			continue
		}
		if n.Diff == DiffContainsDifference {
			continue
		}
		if !n.Diff.Differs() && !n.Inaccessible {
			continue
		}
		size, mtime := entrySizeMtime(n)
		out = append(out, DiffEntry{
			Rel:    n.Rel,
			IsDir:  n.IsDir,
			Status: entryStatus(n),
			Size:   size,
			Mtime:  mtime,
			Err:    n.Err,
		})
	}
	return out
}

// FormatTextTree writes diffs as an ASCII tree to w. Case-sensitive sort by path.
func FormatTextTree(diffs []DiffEntry, w *os.File) {
	if len(diffs) == 0 {
		return
	}
	sort.Slice(diffs, func(firstDiffIndex, secondDiffIndex int) bool { return diffs[firstDiffIndex].Rel < diffs[secondDiffIndex].Rel })
	seenDirs := make(map[string]bool)
	for _, diff := range diffs {
		parts := strings.Split(filepath.ToSlash(diff.Rel), "/")
		for partIdx := 1; partIdx < len(parts); partIdx++ {
			prefix := strings.Join(parts[:partIdx], "/")
			if !seenDirs[prefix] {
				seenDirs[prefix] = true
				indent := strings.Repeat("  ", partIdx-1)
				fmt.Fprintf(w, "%s%s/\n", indent, parts[partIdx-1])
			}
		}
		indent := strings.Repeat("  ", len(parts)-1)
		name := parts[len(parts)-1]
		if diff.IsDir {
			name += "/"
			seenDirs[filepath.ToSlash(diff.Rel)] = true
		}
		mtimeStr := ""
		if !diff.Mtime.IsZero() {
			mtimeStr = diff.Mtime.Format(time.RFC3339)
		}
		line := fmt.Sprintf("%s%s  size=%s  mtime=%s  %s", indent, name, humanize.Bytes(uint64(diff.Size)), mtimeStr, diff.Status)
		if diff.Err != "" {
			line += "  error=" + diff.Err
		}
		fmt.Fprintln(w, line)
	}
}

// FormatTable writes diffs as tab-separated columns to w.
func FormatTable(diffs []DiffEntry, w *os.File) {
	sort.Slice(diffs, func(firstDiffIndex, secondDiffIndex int) bool { return diffs[firstDiffIndex].Rel < diffs[secondDiffIndex].Rel })
	fmt.Fprintln(w, "path\tkind\tsize\tmtime\tstatus\terror")
	for _, diff := range diffs {
		mtimeStr := ""
		if !diff.Mtime.IsZero() {
			mtimeStr = diff.Mtime.Format(time.RFC3339)
		}
		kind := "file"
		if diff.IsDir {
			kind = "dir"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", diff.Rel, kind, diff.Size, mtimeStr, diff.Status, diff.Err)
	}
}

// FormatJSON writes diffs as a JSON array to w.
func FormatJSON(diffs []DiffEntry, w *os.File) {
	sort.Slice(diffs, func(firstDiffIndex, secondDiffIndex int) bool { return diffs[firstDiffIndex].Rel < diffs[secondDiffIndex].Rel })
	type item struct {
		Path   string `json:"path"`
		Kind   string `json:"kind"`
		Size   int64  `json:"size"`
		Mtime  string `json:"mtime"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	var items []item
	for _, diff := range diffs {
		mtimeStr := ""
		if !diff.Mtime.IsZero() {
			mtimeStr = diff.Mtime.Format(time.RFC3339)
		}
		kind := "file"
		if diff.IsDir {
			kind = "dir"
		}
		items = append(items, item{diff.Rel, kind, diff.Size, mtimeStr, diff.Status, diff.Err})
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(items)
}

// FormatYAML writes diffs as YAML to w.
func FormatYAML(diffs []DiffEntry, w *os.File) {
	sort.Slice(diffs, func(firstDiffIndex, secondDiffIndex int) bool { return diffs[firstDiffIndex].Rel < diffs[secondDiffIndex].Rel })
	type item struct {
		Path   string `yaml:"path"`
		Kind   string `yaml:"kind"`
		Size   int64  `yaml:"size"`
		Mtime  string `yaml:"mtime"`
		Status string `yaml:"status"`
		Error  string `yaml:"error,omitempty"`
	}
	var items []item
	for _, diff := range diffs {
		mtimeStr := ""
		if !diff.Mtime.IsZero() {
			mtimeStr = diff.Mtime.Format(time.RFC3339)
		}
		kind := "file"
		if diff.IsDir {
			kind = "dir"
		}
		items = append(items, item{diff.Rel, kind, diff.Size, mtimeStr, diff.Status, diff.Err})
	}
	encoder := yaml.NewEncoder(w)
	encoder.Encode(items)
}
