package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewReturnsDefaults(t *testing.T) {
	cfg := New()
	if cfg.Database.Path != "pulsearc.db" {
		t.Errorf("Database.Path = %q, want pulsearc.db", cfg.Database.Path)
	}
	if cfg.Metrics.DogStatsDAddr != "127.0.0.1:8125" {
		t.Errorf("Metrics.DogStatsDAddr = %q, want 127.0.0.1:8125", cfg.Metrics.DogStatsDAddr)
	}
	if cfg.Classification.Timeout != 30*time.Second {
		t.Errorf("Classification.Timeout = %v, want 30s", cfg.Classification.Timeout)
	}
}

func TestLoadFileOverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "database:\n  path: /tmp/custom.db\nclassification:\n  model: gpt-4o-mini\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("WriteFile() err = %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() err = %v", err)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("Database.Path = %q, want /tmp/custom.db", cfg.Database.Path)
	}
	if cfg.Classification.Model != "gpt-4o-mini" {
		t.Errorf("Classification.Model = %q, want gpt-4o-mini", cfg.Classification.Model)
	}
	// Untouched defaults survive the partial override.
	if cfg.Metrics.Namespace != "pulsearc." {
		t.Errorf("Metrics.Namespace = %q, want pulsearc.", cfg.Metrics.Namespace)
	}
}

func TestLoadFileMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() err = %v", err)
	}
	if cfg.Database.Path != "pulsearc.db" {
		t.Errorf("Database.Path = %q, want default pulsearc.db", cfg.Database.Path)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/var/lib/pulsearc/agent.db")
	t.Setenv("CLASSIFICATION_MODEL", "gpt-4o")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if cfg.Database.Path != "/var/lib/pulsearc/agent.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Classification.Model != "gpt-4o" {
		t.Errorf("Classification.Model = %q, want env override", cfg.Classification.Model)
	}
}
