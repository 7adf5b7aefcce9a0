package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeouts.MetadataSeconds != 30 || cfg.Timeouts.ReshapeSeconds != 900 {
		t.Errorf("timeouts = %+v, want defaults", cfg.Timeouts)
	}
	if cfg.Output.Format != "table" || cfg.Output.MinSegmentWidth != 2 {
		t.Errorf("output = %+v, want defaults", cfg.Output)
	}
	if cfg.BusAddress != "" {
		t.Errorf("bus address = %q, want empty", cfg.BusAddress)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
bus_address: unix:path=/run/test_bus
timeouts:
  metadata_seconds: 10
  reshape_seconds: 600
output:
  format: json
  min_segment_width: 4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BusAddress != "unix:path=/run/test_bus" {
		t.Errorf("bus address = %q", cfg.BusAddress)
	}
	if cfg.MetadataTimeout() != 10*time.Second {
		t.Errorf("metadata timeout = %v, want 10s", cfg.MetadataTimeout())
	}
	if cfg.ReshapeTimeout() != 600*time.Second {
		t.Errorf("reshape timeout = %v, want 10m", cfg.ReshapeTimeout())
	}
	if cfg.Output.Format != "json" || cfg.Output.MinSegmentWidth != 4 {
		t.Errorf("output = %+v", cfg.Output)
	}
}

func TestLoadPartialAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
timeouts:
  metadata_seconds: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeouts.MetadataSeconds != 5 {
		t.Errorf("metadata = %d, want 5", cfg.Timeouts.MetadataSeconds)
	}
	if cfg.Timeouts.ReshapeSeconds != 900 {
		t.Errorf("reshape = %d, want default 900", cfg.Timeouts.ReshapeSeconds)
	}
	if cfg.Output.Format != "table" {
		t.Errorf("format = %q, want default table", cfg.Output.Format)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"negative metadata timeout",
			"timeouts:\n  metadata_seconds: -1\n",
		},
		{
			"reshape shorter than metadata",
			"timeouts:\n  metadata_seconds: 60\n  reshape_seconds: 30\n",
		},
		{
			"unknown format",
			"output:\n  format: xml\n",
		},
		{
			"zero-width segments",
			"output:\n  min_segment_width: -3\n",
		},
		{
			"malformed yaml",
			"timeouts: [",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
