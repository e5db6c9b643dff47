package utils

import (
	"os"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true, "")
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if !logger.Core().Enabled(-1) {
			t.Error("debug logger should enable debug level")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false, "")
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger.Core().Enabled(-1) {
			t.Error("production logger should not enable debug level")
		}
		_ = logger.Sync()
	})

	t.Run("log directory receives a JSON file", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := NewLogger(false, dir)
		if err != nil {
			t.Fatalf("NewLogger error: %v", err)
		}
		logger.Info("index created")
		_ = logger.Sync()

		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) != 1 {
			t.Fatalf("expected one log file, got %v (%v)", entries, err)
		}
		data, err := os.ReadFile(dir + "/" + entries[0].Name())
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"msg":"index created"`) {
			t.Errorf("log file content: %s", data)
		}
	})
}
