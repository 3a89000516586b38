package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(false, "", false, &buf)
	defer l.Close()

	l.Debug("debug %s", "message")
	l.Info("info %s", "message")
	l.Warn("warn %s", "message")
	l.Error("error %s", "message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug output should be suppressed without verbose mode")
	}
	for _, want := range []string{"info message", "warn message", "error message"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoggerVerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(false, "", true, &buf)
	defer l.Close()

	l.Debug("debug %s", "message")

	if !strings.Contains(buf.String(), "debug message") {
		t.Error("verbose mode should emit debug output")
	}
}

func TestLoggerFileSink(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "committrail.log")

	l := NewWithOutput(true, logFile, false, &buf)
	l.Info("written to both sinks")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), "written to both sinks") {
		t.Errorf("log file missing record:\n%s", data)
	}
	if !strings.Contains(buf.String(), "written to both sinks") {
		t.Error("console sink missing record")
	}
}
