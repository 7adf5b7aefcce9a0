package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/blockyard/internal/model"
)

// YAMLFormatter formats topology views as YAML.
type YAMLFormatter struct{}

func marshalYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return string(data), nil
}

// FormatDisks formats the disk records as a YAML sequence.
func (f *YAMLFormatter) FormatDisks(disks []model.DiskRecord) (string, error) {
	if len(disks) == 0 {
		return "", nil
	}
	return marshalYAML(disks)
}

// FormatTree formats the volume tree as nested YAML.
func (f *YAMLFormatter) FormatTree(root *model.VolumeNode) (string, error) {
	return marshalYAML(root)
}

// FormatLayout formats the segment layout as a YAML document.
func (f *YAMLFormatter) FormatLayout(disk model.DiskRecord, segments []model.Segment) (string, error) {
	return marshalYAML(map[string]interface{}{
		"device":   disk.Device,
		"size":     disk.Size,
		"segments": segments,
	})
}
