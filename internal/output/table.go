package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/jbweber/blockyard/internal/model"
	"github.com/jbweber/blockyard/internal/segment"
)

// TableFormatter formats topology views as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
	// MinSegmentWidth is the minimum rendered width of one layout segment.
	MinSegmentWidth int
}

// layoutBarWidth is the total character width of the layout bar.
const layoutBarWidth = 60

// FormatDisks formats the disk records as a table.
func (f *TableFormatter) FormatDisks(disks []model.DiskRecord) (string, error) {
	if len(disks) == 0 {
		return "No disks found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "DEVICE\tSIZE\tTABLE\tBUS\tMODEL\tSERIAL\tFLAGS")
	}

	for _, d := range disks {
		table := string(d.Table)
		if table == "" {
			table = "-"
		}
		bus := string(d.Bus)
		if bus == "" {
			bus = "-"
		}
		modelName := d.Model
		if modelName == "" {
			modelName = "-"
		}
		serial := d.Serial
		if serial == "" {
			serial = "-"
		}

		var flags []string
		if d.Removable {
			flags = append(flags, "removable")
		}
		if d.Rotational {
			flags = append(flags, "rotational")
		}
		if d.BackingFile != "" {
			flags = append(flags, "virtual")
		}
		flagCol := strings.Join(flags, ",")
		if flagCol == "" {
			flagCol = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Device, humanize.IBytes(d.Size), table, bus, modelName, serial, flagCol)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatTree formats the volume tree with indentation reflecting nesting.
func (f *TableFormatter) FormatTree(root *model.VolumeNode) (string, error) {
	if root == nil {
		return "No tree available\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "DEVICE\tKIND\tSIZE\tLABEL\tMOUNTED AT\tSTATE")
	}
	writeTreeRows(w, root, 0)
	_ = w.Flush()
	return buf.String(), nil
}

func writeTreeRows(w *tabwriter.Writer, n *model.VolumeNode, depth int) {
	device := n.Device
	if device == "" {
		device = n.Label
	}
	if device == "" {
		device = n.ObjectPath
	}

	label := n.Label
	if label == "" {
		label = "-"
	}

	mounted := "-"
	if len(n.MountPoints) > 0 {
		mounted = n.MountPoints[0]
	}

	state := "-"
	switch {
	case n.Unresolved:
		state = "unresolved"
	case n.Kind == model.KindCrypto && n.Locked:
		state = "locked"
	case n.Kind == model.KindCrypto:
		state = "unlocked"
	}

	indent := strings.Repeat("  ", depth)
	_, _ = fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\t%s\n",
		indent, device, n.Kind, humanize.IBytes(n.Size), label, mounted, state)

	for _, c := range n.Children {
		writeTreeRows(w, c, depth+1)
	}
}

// FormatLayout formats the segment layout: a width-scaled bar followed by
// one row per segment. The bar widths use the logarithmic display scale;
// the rows report exact byte accounting.
func (f *TableFormatter) FormatLayout(disk model.DiskRecord, segments []model.Segment) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %s\n", disk.Device, humanize.IBytes(disk.Size))

	if len(segments) == 0 {
		buf.WriteString("No layout available\n")
		return buf.String(), nil
	}

	min := f.MinSegmentWidth
	if min < 1 {
		min = 1
	}
	widths := segment.DisplayWidths(segments, layoutBarWidth, min)

	buf.WriteByte('[')
	for i, s := range segments {
		buf.WriteString(strings.Repeat(barRune(s.Kind), widths[i]))
	}
	buf.WriteString("]\n")

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "KIND\tSTART\tEND\tSIZE")
	}
	for _, s := range segments {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			s.Kind, s.Start, s.End(), humanize.IBytes(s.Length))
	}
	_ = w.Flush()
	return buf.String(), nil
}

func barRune(k model.SegmentKind) string {
	switch k {
	case model.SegmentOccupied:
		return "#"
	case model.SegmentAnomaly:
		return "!"
	default:
		return "."
	}
}
