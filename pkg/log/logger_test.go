package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":      LevelDebug,
		"INFO":       LevelInfo,
		"WaRn":       LevelWarn,
		"error":      LevelError,
		"fatal":      LevelFatal,
		"  debug   ": LevelDebug,
		"verbose":    LevelInfo,
		"":           LevelInfo,
	}

	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", input, got, want)
		}
	}
}

func TestFileLoggerFiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewFileLogger(path, LevelWarn)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(raw)

	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Fatalf("messages below the configured level were written: %s", content)
	}
	if !strings.Contains(content, "warn message") || !strings.Contains(content, "error message") {
		t.Fatalf("expected warn and error messages, got: %s", content)
	}
	if !strings.Contains(content, "[WARN]") {
		t.Fatalf("expected level tag in output, got: %s", content)
	}
}

func TestSetLevelTakesEffect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewFileLogger(path, LevelError)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	logger.Info("before")
	logger.SetLevel(LevelDebug)
	logger.Info("after")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(raw), "before") {
		t.Fatalf("message logged before lowering the level: %s", raw)
	}
	if !strings.Contains(string(raw), "after") {
		t.Fatalf("message missing after lowering the level: %s", raw)
	}
}
