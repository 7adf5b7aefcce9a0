// Package config loads the tool's configuration from an optional YAML
// file. Every field has a working default; a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete tool configuration.
type Config struct {
	// BusAddress overrides the bus the storage service is reached on.
	// Empty means the system bus.
	BusAddress string `yaml:"bus_address,omitempty"`

	// Timeouts bounds operation calls per class.
	Timeouts TimeoutConfig `yaml:"timeouts,omitempty"`

	// Output controls presentation defaults.
	Output OutputConfig `yaml:"output,omitempty"`
}

// TimeoutConfig bounds service calls. Metadata covers mount, unmount,
// lock, unlock and similar quick calls; Reshape covers format, resize,
// partition creation and repair.
type TimeoutConfig struct {
	MetadataSeconds int `yaml:"metadata_seconds,omitempty"`
	ReshapeSeconds  int `yaml:"reshape_seconds,omitempty"`
}

// OutputConfig holds presentation defaults.
type OutputConfig struct {
	// Format is the default output format: table, yaml or json.
	Format string `yaml:"format,omitempty"`
	// MinSegmentWidth is the minimum rendered width of one layout segment.
	MinSegmentWidth int `yaml:"min_segment_width,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Timeouts: TimeoutConfig{
			MetadataSeconds: 30,
			ReshapeSeconds:  900,
		},
		Output: OutputConfig{
			Format:          "table",
			MinSegmentWidth: 2,
		},
	}
}

// Load reads the configuration file at path, applying defaults for
// anything left unset. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Timeouts.MetadataSeconds == 0 {
		cfg.Timeouts.MetadataSeconds = def.Timeouts.MetadataSeconds
	}
	if cfg.Timeouts.ReshapeSeconds == 0 {
		cfg.Timeouts.ReshapeSeconds = def.Timeouts.ReshapeSeconds
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = def.Output.Format
	}
	if cfg.Output.MinSegmentWidth == 0 {
		cfg.Output.MinSegmentWidth = def.Output.MinSegmentWidth
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Timeouts.MetadataSeconds < 0 {
		return fmt.Errorf("timeouts.metadata_seconds must be >= 0, got %d", c.Timeouts.MetadataSeconds)
	}
	if c.Timeouts.ReshapeSeconds < 0 {
		return fmt.Errorf("timeouts.reshape_seconds must be >= 0, got %d", c.Timeouts.ReshapeSeconds)
	}
	if c.Timeouts.ReshapeSeconds != 0 && c.Timeouts.ReshapeSeconds < c.Timeouts.MetadataSeconds {
		return fmt.Errorf("timeouts.reshape_seconds must not be shorter than metadata_seconds")
	}
	switch c.Output.Format {
	case "table", "yaml", "json":
	default:
		return fmt.Errorf("output.format must be table, yaml or json, got %q", c.Output.Format)
	}
	if c.Output.MinSegmentWidth < 1 {
		return fmt.Errorf("output.min_segment_width must be >= 1, got %d", c.Output.MinSegmentWidth)
	}
	return nil
}

// MetadataTimeout returns the metadata-class timeout as a duration.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Timeouts.MetadataSeconds) * time.Second
}

// ReshapeTimeout returns the reshape-class timeout as a duration.
func (c *Config) ReshapeTimeout() time.Duration {
	return time.Duration(c.Timeouts.ReshapeSeconds) * time.Second
}
