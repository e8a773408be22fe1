package lib

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_createsLogFiles(t *testing.T) {
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() err = %v", err)
	}
	defer logger.Close()
	defer os.RemoveAll(logger.TempDir())
	if logger.TempDir() == "" {
		t.Error("TempDir() is empty")
	}
	info, err := os.Stat(logger.TempDir())
	if err != nil || !info.IsDir() {
		t.Errorf("temp dir missing or not dir: %v", err)
	}
	entries, _ := os.ReadDir(logger.TempDir())
	if len(entries) != 2 {
		t.Errorf("expected 2 files in temp dir, got %d", len(entries))
	}
}

func readLogFile(t *testing.T, logger *Logger, match string) string {
	t.Helper()
	entries, _ := os.ReadDir(logger.TempDir())
	for _, entry := range entries {
		if strings.Contains(entry.Name(), match) && !entry.IsDir() {
			data, _ := os.ReadFile(filepath.Join(logger.TempDir(), entry.Name()))
			return string(data)
		}
	}
	t.Fatalf("no %s log file found", match)
	return ""
}

func TestLogger_infofWritesToMainOnly(t *testing.T) {
	logger, _ := NewLogger()
	defer logger.Close()
	defer os.RemoveAll(logger.TempDir())
	logger.Infof("scanned %d directories", 42)

	if !strings.Contains(readLogFile(t, logger, "main"), "scanned 42 directories") {
		t.Error("main log does not contain the info line")
	}
	if strings.Contains(readLogFile(t, logger, "errors"), "scanned 42 directories") {
		t.Error("errors log contains an info line")
	}
	if logger.NonFatalCount() != 0 {
		t.Errorf("NonFatalCount = %d after Infof", logger.NonFatalCount())
	}
}

func TestLogger_errorfWritesBothAndCounts(t *testing.T) {
	logger, _ := NewLogger()
	defer logger.Close()
	defer os.RemoveAll(logger.TempDir())
	logger.Errorf("stat %s: %v", "broken.txt", os.ErrPermission)
	if logger.NonFatalCount() != 1 {
		t.Errorf("NonFatalCount = %d, want 1", logger.NonFatalCount())
	}
	logger.ErrorWith(map[string]interface{}{"rel": "other.txt"}, "listing failed")
	if logger.NonFatalCount() != 2 {
		t.Errorf("NonFatalCount = %d, want 2", logger.NonFatalCount())
	}

	errLog := readLogFile(t, logger, "errors")
	if !strings.Contains(errLog, "broken.txt") || !strings.Contains(errLog, "listing failed") {
		t.Error("errors log is missing entries")
	}
	mainLog := readLogFile(t, logger, "main")
	if !strings.Contains(mainLog, "broken.txt") {
		t.Error("main log is missing the error entry")
	}
}

func TestDiscardLogger_countsWithoutFiles(t *testing.T) {
	logger := NewDiscardLogger()
	logger.Errorf("dropped")
	if logger.NonFatalCount() != 1 {
		t.Errorf("NonFatalCount = %d, want 1", logger.NonFatalCount())
	}
	if logger.TempDir() != "" {
		t.Error("discard logger should have no temp dir")
	}
}

func TestLogger_closeIdempotent(t *testing.T) {
	logger, _ := NewLogger()
	defer os.RemoveAll(logger.TempDir())
	logger.Close()
	logger.Close()
}
