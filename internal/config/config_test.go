package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Edits.MaxParallelApplies != defaults.Edits.MaxParallelApplies {
		t.Errorf("edits.maxParallelApplies = %d, want default %d",
			cfg.Edits.MaxParallelApplies, defaults.Edits.MaxParallelApplies)
	}
	if cfg.Probe.ExportCompression != defaults.Probe.ExportCompression {
		t.Errorf("probe.exportCompression = %q", cfg.Probe.ExportCompression)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Edits.MaxParallelApplies = 2
	cfg.Logging.Level = "debug"
	if err := cfg.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Edits.MaxParallelApplies != 2 {
		t.Errorf("edits.maxParallelApplies = %d, want 2", loaded.Edits.MaxParallelApplies)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", loaded.Logging.Level)
	}
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AIDE_LOGGING_LEVEL", "error")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("logging.level = %q, want env override error", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	cfg.Edits.MaxParallelApplies = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero maxParallelApplies passed validation")
	}

	cfg = DefaultConfig()
	cfg.Probe.ExportCompression = "brotli"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown compression passed validation")
	}
}

func TestParseProbesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProbesDeclarationFile)

	content := `
version = 1

[[probe]]
name = "auth-flow"
goal = "map how login requests reach the session store"
roots = ["internal/auth", "internal/session"]
include = ["*.go"]
max_files = 50

[[probe]]
name = "unrooted"
goal = "defaults check"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	file, err := ParseProbesFile(path)
	if err != nil {
		t.Fatalf("ParseProbesFile: %v", err)
	}
	if len(file.Probes) != 2 {
		t.Fatalf("parsed %d probes, want 2", len(file.Probes))
	}
	if file.Probes[0].Name != "auth-flow" || file.Probes[0].MaxFiles != 50 {
		t.Errorf("first probe = %+v", file.Probes[0])
	}
	if len(file.Probes[1].Roots) != 1 || file.Probes[1].Roots[0] != "." {
		t.Errorf("missing roots not defaulted: %+v", file.Probes[1].Roots)
	}
}

func TestLoadDeclaredProbesMissingFile(t *testing.T) {
	probes, err := LoadDeclaredProbes(t.TempDir())
	if err != nil {
		t.Fatalf("missing probes.toml should not error: %v", err)
	}
	if probes != nil {
		t.Errorf("got %v, want nil", probes)
	}
}
