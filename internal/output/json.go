package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/blockyard/internal/model"
)

// JSONFormatter formats topology views as JSON.
type JSONFormatter struct{}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// FormatDisks formats the disk records as a JSON array.
func (f *JSONFormatter) FormatDisks(disks []model.DiskRecord) (string, error) {
	if len(disks) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(disks)
}

// FormatTree formats the volume tree as nested JSON.
func (f *JSONFormatter) FormatTree(root *model.VolumeNode) (string, error) {
	return marshalJSON(root)
}

// FormatLayout formats the segment layout as a JSON object.
func (f *JSONFormatter) FormatLayout(disk model.DiskRecord, segments []model.Segment) (string, error) {
	return marshalJSON(map[string]interface{}{
		"device":   disk.Device,
		"size":     disk.Size,
		"segments": segments,
	})
}
