// Package output provides formatters for displaying the storage topology
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/blockyard/internal/model"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats topology views for output.
type Formatter interface {
	// FormatDisks formats the enumerated disk records.
	FormatDisks(disks []model.DiskRecord) (string, error)

	// FormatTree formats one disk's volume tree.
	FormatTree(root *model.VolumeNode) (string, error)

	// FormatLayout formats one disk's segment layout.
	FormatLayout(disk model.DiskRecord, segments []model.Segment) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
	// MinSegmentWidth is the minimum rendered width of one layout
	// segment in table format.
	MinSegmentWidth int
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders, MinSegmentWidth: opts.MinSegmentWidth}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
