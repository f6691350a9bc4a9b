package backend

import (
	"path/filepath"
	"testing"

	"budgetwise/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "/tmp/x.db"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLite || cfg.SQLiteDBPath != "/tmp/x.db" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("unknown backend should be rejected")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil app config should be rejected")
	}
}

func TestFactory_Open(t *testing.T) {
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		result, err := f.Open(Config{Type: Memory})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer result.Close()
		if result.Store == nil {
			t.Fatal("store is nil")
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		result, err := f.Open(Config{Type: SQLite, SQLiteDBPath: filepath.Join(t.TempDir(), "test.db")})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if result.Store == nil {
			t.Fatal("store is nil")
		}
		if err := result.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	t.Run("sqlite without path", func(t *testing.T) {
		if _, err := f.Open(Config{Type: SQLite}); err == nil {
			t.Error("missing path should be rejected")
		}
	})
}
