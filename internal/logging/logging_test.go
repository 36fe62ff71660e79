package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONLines(t *testing.T) {
	path := Path(filepath.Join(t.TempDir(), "nested"))

	logger, lvl, err := New(path, "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if lvl.Level() != zapcore.DebugLevel {
		t.Fatalf("level = %v, want debug", lvl.Level())
	}
	logger.Debug("poll skipped", zap.String("instance", "agente"))
	logger.Info("command completed", zap.String("command", "connect"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if entry["level"] != "info" || entry["msg"] != "command completed" || entry["command"] != "connect" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["ts"].(string); !ok {
		t.Fatalf("ts = %v, want ISO8601 string", entry["ts"])
	}
}

func TestNew_LevelFiltersAndAdjusts(t *testing.T) {
	path := Path(t.TempDir())

	logger, lvl, err := New(path, "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	lvl.SetLevel(zapcore.InfoLevel)
	logger.Info("visible")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "visible") {
		t.Fatalf("unexpected log contents:\n%s", data)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, _, err := New(Path(t.TempDir()), "chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
