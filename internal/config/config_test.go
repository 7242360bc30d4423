package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Model.Topics != 8 {
		t.Errorf("expected 8 topics, got %d", cfg.Model.Topics)
	}
	if cfg.Model.VocabularyCap != 6000 {
		t.Errorf("expected vocabulary cap 6000, got %d", cfg.Model.VocabularyCap)
	}
	if cfg.Model.Seed != 9 {
		t.Errorf("expected seed 9, got %d", cfg.Model.Seed)
	}
	if !cfg.Scaling.WithMean || !cfg.Scaling.WithStd {
		t.Error("expected scaling enabled by default")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
model:
  topics: 12
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Model.Topics != 12 {
		t.Errorf("expected 12 topics, got %d", cfg.Model.Topics)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Model.MaxIterations != 250 {
		t.Errorf("expected default max_iterations, got %d", cfg.Model.MaxIterations)
	}
	if cfg.Text.MinTokenLength != 2 {
		t.Errorf("expected default min_token_length, got %d", cfg.Text.MinTokenLength)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero topics", "model:\n  topics: 0\n"},
		{"negative cap", "model:\n  vocabulary_cap: -1\n"},
		{"bad port", "server:\n  port: 99999\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parse([]byte(tc.yaml)); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			} else if !strings.Contains(err.Error(), "invalid config") {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Model.Topics != 8 {
		t.Errorf("expected 8 topics from file, got %d", cfg.Model.Topics)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DBPath() != filepath.Join("/custom/path", "trailscout.db") {
		t.Errorf("unexpected db path %q", cfg.DBPath())
	}
}
