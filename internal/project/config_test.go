package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	cfg, err := LoadConfigFor(dir)
	if err != nil {
		t.Fatalf("LoadConfigFor: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("empty config = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[diagnostics]
max = 50
debounce_ms = 100
include_side_effect_producers = false

[check]
cache = false
jobs = 4

[template]
dialect = "shorthand"
`)

	cfg, err := LoadConfigFor(dir)
	if err != nil {
		t.Fatalf("LoadConfigFor: %v", err)
	}
	if cfg.Diagnostics.Max != 50 || cfg.Diagnostics.DebounceMS != 100 {
		t.Errorf("diagnostics = %+v", cfg.Diagnostics)
	}
	if cfg.Diagnostics.IncludeSideEffectProducers {
		t.Errorf("include_side_effect_producers not applied")
	}
	if cfg.Check.Cache || cfg.Check.Jobs != 4 {
		t.Errorf("check = %+v", cfg.Check)
	}
	if cfg.Template.Dialect != "shorthand" {
		t.Errorf("dialect = %q", cfg.Template.Dialect)
	}
}

func TestLoadConfigForWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[diagnostics]\nmax = 7\n")
	nested := filepath.Join(root, "src", "components")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg, err := LoadConfigFor(nested)
	if err != nil {
		t.Fatalf("LoadConfigFor: %v", err)
	}
	if cfg.Diagnostics.Max != 7 {
		t.Errorf("max = %d, want 7", cfg.Diagnostics.Max)
	}
}

func TestLoadConfigForMissing(t *testing.T) {
	// TempDir has no sfcls.toml anywhere above it in practice; if one exists
	// higher up the walk still terminates, so just assert no error.
	cfg, err := LoadConfigFor(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigFor: %v", err)
	}
	if cfg.Template.Dialect == "" {
		t.Errorf("missing config produced empty dialect")
	}
}
