package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerRetainsEntries(t *testing.T) {
	logger := NewLoggerWithOutput(LevelInfo, io.Discard)

	logger.Info("started", map[string]string{"relay_id": "3"})

	entries := logger.Recent()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Message != "started" {
		t.Fatalf("expected message started, got %q", entry.Message)
	}
	if entry.Context["relay_id"] != "3" {
		t.Fatalf("expected context relay_id=3, got %v", entry.Context)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	logger := NewLoggerWithOutput(LevelWarning, io.Discard)

	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := logger.Recent()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestLoggerWithAddsBaseContext(t *testing.T) {
	logger := NewLoggerWithOutput(LevelDebug, io.Discard).With(map[string]string{
		"component": "receive",
	})

	logger.Debug("probe", map[string]string{"tag": "0"})

	entries := logger.Recent()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	context := entries[0].Context
	if context["component"] != "receive" || context["tag"] != "0" {
		t.Fatalf("unexpected context: %v", context)
	}
}

func TestFromVerbosity(t *testing.T) {
	cases := []struct {
		verbosity int
		want      Level
	}{
		{0, LevelDebug},
		{1, LevelInfo},
		{2, LevelWarning},
		{3, LevelError},
		{4, LevelError},
		{9, LevelInfo},
	}
	for _, tc := range cases {
		if got := FromVerbosity(tc.verbosity); got != tc.want {
			t.Fatalf("verbosity %d: expected %q, got %q", tc.verbosity, tc.want, got)
		}
	}
}

func TestNewFileLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, closeLog, err := NewFileLogger(dir, "orchestrator", 1)
	if err != nil {
		t.Fatalf("new file logger: %v", err)
	}

	logger.Info("run begins", map[string]string{"run_id": "abc"})
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "orchestrator.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `msg="run begins"`) {
		t.Fatalf("log file missing entry: %q", string(data))
	}
	if !strings.Contains(string(data), `run_id="abc"`) {
		t.Fatalf("log file missing field: %q", string(data))
	}
}

func TestRecentEntriesWrapAround(t *testing.T) {
	recent := newRecentEntries(3)
	for _, message := range []string{"a", "b", "c", "d"} {
		recent.add(Entry{Message: message})
	}

	entries := recent.list()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	got := []string{entries[0].Message, entries[1].Message, entries[2].Message}
	want := []string{"b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFormatEntrySortsKeys(t *testing.T) {
	entry := Entry{
		Level:   LevelInfo,
		Message: "flush",
		Context: map[string]string{"windows": "3", "file": "save_3.npy"},
	}
	formatted := FormatEntry(entry)
	want := `level=info msg="flush" file="save_3.npy" windows="3"`
	if formatted != want {
		t.Fatalf("expected %q, got %q", want, formatted)
	}
}
