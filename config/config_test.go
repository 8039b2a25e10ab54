package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileAppliesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenes.toml")
	content := `
time_zone = "Europe/Berlin"

[format]
default = "csv"

[interval]
auto_min_interval = "1m"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TimeZone != "Europe/Berlin" {
		t.Fatalf("expected time zone from file, got %q", cfg.TimeZone)
	}
	if cfg.Format.Default != "csv" {
		t.Fatalf("expected csv format, got %q", cfg.Format.Default)
	}
	if cfg.Interval.AutoMinInterval != "1m" {
		t.Fatalf("expected 1m auto min interval, got %q", cfg.Interval.AutoMinInterval)
	}
	if cfg.Interval.AutoStepCount != 30 {
		t.Fatalf("expected default step count 30, got %d", cfg.Interval.AutoStepCount)
	}
	if cfg.Query.Engine != "expr" {
		t.Fatalf("expected default engine expr, got %q", cfg.Query.Engine)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenes.toml")
	if err := os.WriteFile(path, []byte("[query]\nengine = \"expr\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCENES_CONFIG", path)
	t.Setenv("SCENES_QUERY_ENGINE", "cel")
	t.Setenv("SCENES_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Query.Engine != "cel" {
		t.Fatalf("expected env override cel, got %q", cfg.Query.Engine)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENES_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileMissingIsError(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	cfg := Defaults()
	cfg.Query.Engine = "lua"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
