// Package logger provides the leveled logging interface used throughout
// committrail, with an slog-backed default implementation that can write
// through a size-rotated file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the leveled logging interface. Debug output is suppressed
// unless verbose mode is enabled.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})

	// Close flushes and releases any file sink.
	Close() error
}

// DefaultLogger writes slog text records to stderr and, when file logging
// is enabled, to a rotating log file as well.
type DefaultLogger struct {
	mu      sync.Mutex
	logger  *slog.Logger
	rotator *lumberjack.Logger
	verbose bool
}

// New creates a logger. When fileLoggingEnabled is true, records are also
// written to logFile with rotation (10 MB per file, 3 backups).
func New(fileLoggingEnabled bool, logFile string, verbose bool) *DefaultLogger {
	return NewWithOutput(fileLoggingEnabled, logFile, verbose, os.Stderr)
}

// NewWithOutput creates a logger with a custom console writer. Primarily
// for tests.
func NewWithOutput(fileLoggingEnabled bool, logFile string, verbose bool, console io.Writer) *DefaultLogger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	l := &DefaultLogger{verbose: verbose}

	w := console
	if fileLoggingEnabled && logFile != "" {
		l.rotator = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		w = io.MultiWriter(console, l.rotator)
	}

	l.logger = slog.New(slog.NewTextHandler(w, opts))
	return l
}

// Debug logs a debug message. Suppressed unless verbose mode is on.
func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Error(fmt.Sprintf(format, args...))
}

// Close closes the rotating file sink, if any.
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Nop is a Logger that discards everything. Useful as a test default.
type Nop struct{}

func (Nop) Debug(string, ...interface{}) {}
func (Nop) Info(string, ...interface{})  {}
func (Nop) Warn(string, ...interface{})  {}
func (Nop) Error(string, ...interface{}) {}
func (Nop) Close() error                 { return nil }
