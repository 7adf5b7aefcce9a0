package segment

import (
	"testing"

	"github.com/jbweber/blockyard/internal/model"
)

func part(offset, size uint64) model.PartitionRecord {
	return model.PartitionRecord{Offset: offset, Size: size}
}

// checkCover verifies the core layout guarantees: contiguous, disjoint,
// gapless cover of exactly [0, diskSize).
func checkCover(t *testing.T, diskSize uint64, segments []model.Segment) {
	t.Helper()

	if diskSize == 0 {
		if len(segments) != 0 {
			t.Fatalf("expected empty layout for zero-size disk, got %d segments", len(segments))
		}
		return
	}
	if len(segments) == 0 {
		t.Fatalf("expected non-empty layout for disk of %d bytes", diskSize)
	}

	cursor := uint64(0)
	var total uint64
	for i, s := range segments {
		if s.Start != cursor {
			t.Errorf("segment %d starts at %d, want %d (gap or overlap)", i, s.Start, cursor)
		}
		if s.Length == 0 {
			t.Errorf("segment %d has zero length", i)
		}
		cursor = s.End()
		total += s.Length
	}
	if total != diskSize {
		t.Errorf("segments sum to %d, want %d", total, diskSize)
	}
	if cursor != diskSize {
		t.Errorf("layout ends at %d, want %d", cursor, diskSize)
	}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		name          string
		diskSize      uint64
		parts         []model.PartitionRecord
		wantKinds     []model.SegmentKind
		wantAnomalies int
	}{
		{
			name:      "empty disk",
			diskSize:  1000,
			parts:     nil,
			wantKinds: []model.SegmentKind{model.SegmentFree},
		},
		{
			name:      "single partition at offset zero",
			diskSize:  1000,
			parts:     []model.PartitionRecord{part(0, 400)},
			wantKinds: []model.SegmentKind{model.SegmentOccupied, model.SegmentFree},
		},
		{
			name:      "partition covering whole disk",
			diskSize:  1000,
			parts:     []model.PartitionRecord{part(0, 1000)},
			wantKinds: []model.SegmentKind{model.SegmentOccupied},
		},
		{
			name:     "gap between partitions",
			diskSize: 1000,
			parts:    []model.PartitionRecord{part(0, 100), part(500, 200)},
			wantKinds: []model.SegmentKind{
				model.SegmentOccupied, model.SegmentFree,
				model.SegmentOccupied, model.SegmentFree,
			},
		},
		{
			name:     "unsorted input is re-sorted",
			diskSize: 1000,
			parts:    []model.PartitionRecord{part(500, 200), part(0, 100)},
			wantKinds: []model.SegmentKind{
				model.SegmentOccupied, model.SegmentFree,
				model.SegmentOccupied, model.SegmentFree,
			},
		},
		{
			name:     "partition runs past end of disk",
			diskSize: 1000,
			parts:    []model.PartitionRecord{part(800, 900)},
			wantKinds: []model.SegmentKind{
				model.SegmentFree, model.SegmentAnomaly,
			},
			wantAnomalies: 1,
		},
		{
			name:     "partition starts past end of disk",
			diskSize: 1000,
			parts:    []model.PartitionRecord{part(2000, 100)},
			wantKinds: []model.SegmentKind{
				model.SegmentFree,
			},
			wantAnomalies: 1,
		},
		{
			name:     "overlapping partitions",
			diskSize: 1000,
			parts:    []model.PartitionRecord{part(0, 500), part(300, 400)},
			wantKinds: []model.SegmentKind{
				model.SegmentOccupied, model.SegmentAnomaly, model.SegmentFree,
			},
			wantAnomalies: 1,
		},
		{
			name:     "partition swallowed by predecessor",
			diskSize: 1000,
			parts:    []model.PartitionRecord{part(0, 500), part(100, 200)},
			wantKinds: []model.SegmentKind{
				model.SegmentOccupied, model.SegmentFree,
			},
			wantAnomalies: 1,
		},
		{
			name:     "zero-length partition",
			diskSize: 1000,
			parts:    []model.PartitionRecord{part(100, 0)},
			wantKinds: []model.SegmentKind{
				model.SegmentFree,
			},
			wantAnomalies: 1,
		},
		{
			name:     "offset plus size overflows",
			diskSize: 1000,
			parts:    []model.PartitionRecord{part(500, ^uint64(0))},
			wantKinds: []model.SegmentKind{
				model.SegmentFree, model.SegmentAnomaly,
			},
			wantAnomalies: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, anomalies := Layout(tt.diskSize, tt.parts)

			checkCover(t, tt.diskSize, segments)

			if len(segments) != len(tt.wantKinds) {
				t.Fatalf("got %d segments, want %d: %+v", len(segments), len(tt.wantKinds), segments)
			}
			for i, k := range tt.wantKinds {
				if segments[i].Kind != k {
					t.Errorf("segment %d kind = %s, want %s", i, segments[i].Kind, k)
				}
			}
			if len(anomalies) != tt.wantAnomalies {
				t.Errorf("got %d anomalies, want %d: %v", len(anomalies), tt.wantAnomalies, anomalies)
			}
		})
	}
}

func TestLayoutZeroDisk(t *testing.T) {
	segments, anomalies := Layout(0, []model.PartitionRecord{part(0, 100)})
	if segments != nil || anomalies != nil {
		t.Errorf("expected empty layout for zero-size disk, got %v / %v", segments, anomalies)
	}
}

func TestLayoutOnePartitionExactSegments(t *testing.T) {
	// A disk of size D with one partition of size S<D at offset 0 yields
	// exactly occupied [0,S) and free [S,D).
	const d, s = 1 << 30, 1 << 20

	segments, anomalies := Layout(d, []model.PartitionRecord{part(0, s)})
	if len(anomalies) != 0 {
		t.Fatalf("unexpected anomalies: %v", anomalies)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Kind != model.SegmentOccupied || segments[0].Start != 0 || segments[0].Length != s {
		t.Errorf("first segment = %+v, want occupied [0,%d)", segments[0], s)
	}
	if segments[1].Kind != model.SegmentFree || segments[1].Start != s || segments[1].End() != d {
		t.Errorf("second segment = %+v, want free [%d,%d)", segments[1], s, d)
	}
	if segments[0].Partition != 0 {
		t.Errorf("occupied segment points at partition %d, want 0", segments[0].Partition)
	}
}

func TestLayoutDoesNotMutateInput(t *testing.T) {
	parts := []model.PartitionRecord{part(500, 100), part(0, 100)}
	Layout(1000, parts)
	if parts[0].Offset != 500 || parts[1].Offset != 0 {
		t.Errorf("input slice was reordered: %+v", parts)
	}
}

func TestDisplayWidths(t *testing.T) {
	tests := []struct {
		name     string
		segments []model.Segment
		total    int
		min      int
	}{
		{
			name: "tiny next to huge",
			segments: []model.Segment{
				{Kind: model.SegmentOccupied, Length: 1 << 40},
				{Kind: model.SegmentFree, Length: 512},
			},
			total: 60,
			min:   2,
		},
		{
			name: "equal segments",
			segments: []model.Segment{
				{Length: 1000}, {Length: 1000}, {Length: 1000},
			},
			total: 30,
			min:   1,
		},
		{
			name:     "single segment",
			segments: []model.Segment{{Length: 42}},
			total:    60,
			min:      2,
		},
		{
			// Many clamped small segments push the assigned sum past the
			// total; trimming the excess must not leave the longest
			// segment narrower than the runner-up.
			name: "many clamped small segments",
			segments: append([]model.Segment{
				{Kind: model.SegmentOccupied, Length: 32 << 40},
				{Kind: model.SegmentOccupied, Length: 16 << 40},
			}, smallSegments(22, 512)...),
			total: 60,
			min:   2,
		},
		{
			// One spare column on two near-tied widths must land on the
			// longer segment.
			name: "spare column at tiny total",
			segments: []model.Segment{
				{Length: 1 << 20},
				{Length: 32 << 30},
			},
			total: 3,
			min:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			widths := DisplayWidths(tt.segments, tt.total, tt.min)
			if len(widths) != len(tt.segments) {
				t.Fatalf("got %d widths, want %d", len(widths), len(tt.segments))
			}

			sum := 0
			for i, w := range widths {
				if w < tt.min {
					t.Errorf("width %d = %d, below minimum %d", i, w, tt.min)
				}
				sum += w
			}
			if sum != tt.total {
				t.Errorf("widths sum to %d, want %d", sum, tt.total)
			}

			// Monotonic: a longer segment never renders narrower.
			for i := range tt.segments {
				for j := range tt.segments {
					if tt.segments[i].Length > tt.segments[j].Length && widths[i] < widths[j] {
						t.Errorf("segment %d (longer) got width %d < segment %d width %d",
							i, widths[i], j, widths[j])
					}
				}
			}
		})
	}
}

func smallSegments(n int, length uint64) []model.Segment {
	out := make([]model.Segment, n)
	for i := range out {
		out[i] = model.Segment{Kind: model.SegmentFree, Length: length}
	}
	return out
}

func TestDisplayWidthsMinWins(t *testing.T) {
	// Three segments cannot fit a total of 3 at minimum width 2; the
	// minimum wins and the sum exceeds the total.
	segments := []model.Segment{{Length: 100}, {Length: 200}, {Length: 300}}
	widths := DisplayWidths(segments, 3, 2)
	for i, w := range widths {
		if w != 2 {
			t.Errorf("width %d = %d, want the minimum 2", i, w)
		}
	}
}

func TestDisplayWidthsEmpty(t *testing.T) {
	if widths := DisplayWidths(nil, 60, 2); widths != nil {
		t.Errorf("expected nil widths for empty layout, got %v", widths)
	}
}
