package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingExplicitPath(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("explicit missing path should error")
	}
}

func TestLoadConfigDefaultsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "nargo_path: /opt/noir/bin/nargo\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NargoPath != "/opt/noir/bin/nargo" {
		t.Fatalf("NargoPath = %q", cfg.NargoPath)
	}
	// Fields absent from the file keep their defaults.
	if !cfg.EnableLSP || !cfg.EnableCodeLens {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadConfigRejectsRelativeNargoPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("nargo_path: bin/nargo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("relative nargo_path should be rejected")
	}
}

func TestLoadConfigRejectsUnknownLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("unknown log_level should be rejected")
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.NargoFlags = []string{"--program-dir", "/proj"}
	cfg.EnableCodeLens = false

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.EnableCodeLens {
		t.Fatal("EnableCodeLens should survive the round trip as false")
	}
	if len(loaded.NargoFlags) != 2 || loaded.NargoFlags[0] != "--program-dir" {
		t.Fatalf("NargoFlags = %v", loaded.NargoFlags)
	}
}
