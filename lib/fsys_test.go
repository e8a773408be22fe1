package lib

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOSPath_listIsSortedOneLevel(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "zebra.txt"), []byte("z"), 0644)
	os.WriteFile(filepath.Join(dir, "apple.txt"), []byte("a"), 0644)
	os.MkdirAll(filepath.Join(dir, "mango", "inner"), 0755)

	p := NewOSPath(dir, 0)
	children, err := p.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 3 {
		t.Fatalf("len = %d, want 3 (one level only)", len(children))
	}
	want := []string{"apple.txt", "mango", "zebra.txt"}
	for i, name := range want {
		if children[i].Name() != name {
			t.Errorf("children[%d] = %q, want %q", i, children[i].Name(), name)
		}
	}
	if !children[1].IsDir() {
		t.Error("mango should be a directory")
	}
}

func TestOSPath_listSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	os.WriteFile(target, []byte("x"), 0644)
	if err := os.Symlink(target, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	children, err := NewOSPath(dir, 0).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 1 || children[0].Name() != "real.txt" {
		t.Errorf("children = %d, want the regular file only", len(children))
	}
}

func TestOSPath_listSmallBatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		os.WriteFile(filepath.Join(dir, name), []byte(name), 0644)
	}
	// A batch smaller than the entry count forces several reads.
	children, err := NewOSPath(dir, 2).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 7 {
		t.Errorf("len = %d, want 7", len(children))
	}
}

func TestOSPath_listMissingDirFails(t *testing.T) {
	p := NewOSPath(filepath.Join(t.TempDir(), "gone"), 0)
	if _, err := p.List(); err == nil {
		t.Error("List on a missing directory succeeded")
	}
}

func TestOSPath_statNormalizesMtime(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	os.WriteFile(file, []byte("hello"), 0644)

	st, err := NewOSPath(file, 0).Stat()
	if err != nil {
		t.Fatal(err)
	}
	if st.Size != 5 {
		t.Errorf("Size = %d, want 5", st.Size)
	}
	if st.MTime.Nanosecond() != 0 {
		t.Errorf("MTime = %v, want second precision", st.MTime)
	}
}

func TestOSPath_existsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	os.WriteFile(file, []byte("x"), 0644)

	if p := NewOSPath(dir, 0); !p.Exists() || !p.IsDir() {
		t.Error("directory misreported")
	}
	if p := NewOSPath(file, 0); !p.Exists() || p.IsDir() {
		t.Error("file misreported")
	}
	if p := NewOSPath(filepath.Join(dir, "missing"), 0); p.Exists() {
		t.Error("missing path reported as existing")
	}
}

func TestOSPath_openReadsContent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	os.WriteFile(file, []byte("payload"), 0644)

	r, err := NewOSPath(file, 0).Open()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("read %q", data)
	}
}

func TestChildRel_joins(t *testing.T) {
	if got := childRel("", "a"); got != "a" {
		t.Errorf("childRel(root) = %q", got)
	}
	if got := childRel("a/b", "c"); got != "a/b/c" {
		t.Errorf("childRel(nested) = %q", got)
	}
}

func TestPathPool_internReturnsSharedString(t *testing.T) {
	pool := NewPathPool()
	first := pool.Intern("some/long/relative/path")
	second := pool.Intern("some/long" + "/relative/path")
	if first != second {
		t.Error("equal inputs interned to different strings")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir(dir) = %v", err)
	}
	file := filepath.Join(dir, "f")
	os.WriteFile(file, []byte("x"), 0644)
	if err := EnsureDir(file); err == nil {
		t.Error("EnsureDir accepted a file")
	}
	if err := EnsureDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("EnsureDir accepted a missing path")
	}
	if err := EnsureDir(""); err == nil {
		t.Error("EnsureDir accepted an empty path")
	}
}

func TestNormalizeMtime_truncatesToSecond(t *testing.T) {
	withNanos := time.Unix(1000, 123456789)
	got := NormalizeMtime(withNanos)
	if !got.Equal(time.Unix(1000, 0)) {
		t.Errorf("NormalizeMtime(%v) = %v", withNanos, got)
	}
	exact := time.Unix(2000, 0)
	if !NormalizeMtime(exact).Equal(exact) {
		t.Errorf("NormalizeMtime(%v) changed an exact value", exact)
	}
}

func TestSide_string(t *testing.T) {
	if SideLeft.String() != "left" || SideRight.String() != "right" {
		t.Errorf("sides = %q/%q", SideLeft.String(), SideRight.String())
	}
}
