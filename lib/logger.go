package lib

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const FatalExitCode = 2

// Logger writes a full main log and an errors-only log under a per-run temp
// directory, and counts non-fatal errors so the caller can pick an exit
// code. Both streams are logrus loggers, so call sites can attach fields.
type Logger struct {
	tempDir   string
	mainPath  string
	errorPath string
	mainFile  *os.File
	errorFile *os.File

	main *logrus.Logger
	errs *logrus.Logger

	mu       sync.Mutex
	nonFatal int
}

func newFileLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.DebugLevel)
	return l
}

// NewLogger creates the per-run log files. Callers should defer Close and
// PrintLogPaths when errors occurred.
func NewLogger() (*Logger, error) {
	tmp, err := os.MkdirTemp("", "treediff-*")
	if err != nil {
		return nil, err
	}
	date := time.Now().Format("20060102")
	base := filepath.Join(tmp, fmt.Sprintf("treediff-%s-001", date))
	mainPath := base + "-main.log"
	errorPath := base + "-errors.log"
	mainFile, err := os.Create(mainPath)
	if err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	errorFile, err := os.Create(errorPath)
	if err != nil {
		mainFile.Close()
		os.RemoveAll(tmp)
		return nil, err
	}
	return &Logger{
		tempDir:   tmp,
		mainPath:  mainPath,
		errorPath: errorPath,
		mainFile:  mainFile,
		errorFile: errorFile,
		main:      newFileLogger(mainFile),
		errs:      newFileLogger(errorFile),
	}, nil
}

// NewDiscardLogger returns a logger that keeps counts but writes nowhere.
func NewDiscardLogger() *Logger {
	return &Logger{
		main: newFileLogger(io.Discard),
		errs: newFileLogger(io.Discard),
	}
}

func (logger *Logger) TempDir() string { return logger.tempDir }

// Infof records normal progress in the main log only.
func (logger *Logger) Infof(format string, args ...interface{}) {
	logger.main.Infof(format, args...)
}

// Errorf records a non-fatal error in both logs and bumps the count.
func (logger *Logger) Errorf(format string, args ...interface{}) {
	logger.mu.Lock()
	logger.nonFatal++
	logger.mu.Unlock()
	logger.main.Errorf(format, args...)
	logger.errs.Errorf(format, args...)
}

// ErrorWith is Errorf with structured fields attached to both streams.
func (logger *Logger) ErrorWith(fields map[string]interface{}, msg string) {
	logger.mu.Lock()
	logger.nonFatal++
	logger.mu.Unlock()
	logger.main.WithFields(logrus.Fields(fields)).Error(msg)
	logger.errs.WithFields(logrus.Fields(fields)).Error(msg)
}

// Fatal records err in both logs, echoes it to stderr, and exits.
func (logger *Logger) Fatal(err error) {
	logger.main.Error("fatal: " + err.Error())
	logger.errs.Error(err.Error())
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(FatalExitCode)
}

// PrintLogPaths tells an interactive user where the logs went.
func (logger *Logger) PrintLogPaths() {
	if !IsTTY(os.Stdout) {
		return
	}
	if logger.mainPath != "" {
		fmt.Fprintln(os.Stderr, "Main log:", logger.mainPath)
	}
	if logger.errorPath != "" {
		fmt.Fprintln(os.Stderr, "Error log:", logger.errorPath)
	}
}

// NonFatalCount returns how many errors were logged.
func (logger *Logger) NonFatalCount() int {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	return logger.nonFatal
}

// Close flushes and closes the log files.
func (logger *Logger) Close() error {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	var closeError error
	if logger.mainFile != nil {
		if closeErr := logger.mainFile.Close(); closeErr != nil && closeError == nil {
			closeError = closeErr
		}
		logger.mainFile = nil
	}
	if logger.errorFile != nil {
		if closeErr := logger.errorFile.Close(); closeErr != nil && closeError == nil {
			closeError = closeErr
		}
		logger.errorFile = nil
	}
	return closeError
}

// IsTTY reports whether file is a character device (an interactive
// terminal rather than a pipe or file).
func IsTTY(file *os.File) bool {
	if file == nil {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
