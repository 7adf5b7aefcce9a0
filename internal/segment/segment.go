// Package segment computes a byte-accurate, gap-free layout of a disk from
// its partition records, and maps byte lengths to display widths.
//
// Layout is a pure function: it never contacts the storage service and
// never fails. Malformed partition geometry (overlap, out-of-range) is
// clamped and reported as anomaly segments so that destructive operations
// always see every byte of the disk accounted for.
package segment

import (
	"fmt"
	"math"
	"sort"

	"github.com/jbweber/blockyard/internal/model"
)

// Anomaly records one partition whose geometry could not be honored
// verbatim. The layout still covers the affected bytes; the anomaly exists
// for diagnostics only.
type Anomaly struct {
	Partition int // Index into the caller's partition list
	Reason    string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("partition %d: %s", a.Partition, a.Reason)
}

// Layout computes the ordered segment cover of [0, diskSize).
//
// Guarantees, for any input:
//   - segments are contiguous, pairwise disjoint and sum exactly to diskSize
//   - partition order is untrusted and re-sorted by start offset
//   - overlapping or out-of-range partitions are clamped and emitted as
//     anomaly segments, never rejected
//   - gaps between partitions and trailing space are emitted as free
//
// A diskSize of zero yields an empty layout.
func Layout(diskSize uint64, parts []model.PartitionRecord) ([]model.Segment, []Anomaly) {
	if diskSize == 0 {
		return nil, nil
	}

	// Sort without mutating the caller's slice. Indexes must keep pointing
	// into the original order, so sort indexes, not records.
	order := make([]int, len(parts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return parts[order[a]].Offset < parts[order[b]].Offset
	})

	var segments []model.Segment
	var anomalies []Anomaly
	cursor := uint64(0)

	for _, idx := range order {
		p := parts[idx]
		start, length := p.Offset, p.Size
		kind := model.SegmentOccupied

		if length == 0 {
			anomalies = append(anomalies, Anomaly{Partition: idx, Reason: "zero-length partition"})
			continue
		}
		if start >= diskSize {
			anomalies = append(anomalies, Anomaly{
				Partition: idx,
				Reason:    fmt.Sprintf("starts at %d, past end of disk (%d)", start, diskSize),
			})
			continue
		}

		end := start + length
		if end < start || end > diskSize {
			// Overflow or runs past the disk end; clamp to the disk.
			end = diskSize
			kind = model.SegmentAnomaly
			anomalies = append(anomalies, Anomaly{
				Partition: idx,
				Reason:    fmt.Sprintf("extends past end of disk (%d)", diskSize),
			})
		}

		if start < cursor {
			// Overlaps its predecessor; clamp to the unclaimed region.
			kind = model.SegmentAnomaly
			anomalies = append(anomalies, Anomaly{
				Partition: idx,
				Reason:    fmt.Sprintf("overlaps preceding partition at %d", cursor),
			})
			start = cursor
			if end <= start {
				// Entirely swallowed by the predecessor.
				continue
			}
		}

		if start > cursor {
			segments = append(segments, model.Segment{
				Kind: model.SegmentFree, Start: cursor, Length: start - cursor, Partition: -1,
			})
		}
		segments = append(segments, model.Segment{
			Kind: kind, Start: start, Length: end - start, Partition: idx,
		})
		cursor = end
	}

	if cursor < diskSize {
		// Final free segment absorbs any rounding remainder.
		segments = append(segments, model.Segment{
			Kind: model.SegmentFree, Start: cursor, Length: diskSize - cursor, Partition: -1,
		})
	}

	return segments, anomalies
}

// DisplayWidths maps segment byte lengths to rendering widths using a
// logarithmic scale with an enforced minimum width per segment. The widths
// sum exactly to total and are monotonic: a longer segment never renders
// narrower than a shorter one. Byte accounting is untouched.
//
// When total cannot accommodate min per segment, min wins and the sum
// exceeds total; callers should size total accordingly.
func DisplayWidths(segments []model.Segment, total, min int) []int {
	if len(segments) == 0 {
		return nil
	}
	if min < 1 {
		min = 1
	}

	// Weight each segment by log2(1+length) so huge partitions do not
	// flatten small ones into invisibility.
	weights := make([]float64, len(segments))
	var sum float64
	for i, s := range segments {
		weights[i] = math.Log2(1 + float64(s.Length))
		sum += weights[i]
	}

	widths := make([]int, len(segments))
	if sum == 0 {
		for i := range widths {
			widths[i] = min
		}
		return widths
	}

	assigned := 0
	for i, w := range weights {
		widths[i] = int(float64(total) * w / sum)
		if widths[i] < min {
			widths[i] = min
		}
		assigned += widths[i]
	}

	// Settle the remainder one column at a time so the sum matches total
	// without dropping anything below the minimum or reordering widths:
	// extra columns go to the widest (longest on ties) segment, excess
	// comes off the widest (shortest on ties) segment.
	for assigned < total {
		widths[pickWidest(widths, segments, true)]++
		assigned++
	}
	for assigned > total {
		i := pickShrinkable(widths, segments, min)
		if i < 0 {
			// Everything is at the minimum; min wins over total.
			break
		}
		widths[i]--
		assigned--
	}

	return widths
}

// pickWidest returns the index of the widest segment. Ties go to the
// longest segment when longest is set, the shortest otherwise, so that
// adjusting the winner by one column cannot invert the width ordering.
func pickWidest(widths []int, segments []model.Segment, longest bool) int {
	best := 0
	for i := 1; i < len(widths); i++ {
		if widths[i] > widths[best] {
			best = i
			continue
		}
		if widths[i] == widths[best] {
			if longest && segments[i].Length > segments[best].Length {
				best = i
			}
			if !longest && segments[i].Length < segments[best].Length {
				best = i
			}
		}
	}
	return best
}

// pickShrinkable returns the index of the widest segment still above min,
// shortest on ties, or -1 when every segment sits at min.
func pickShrinkable(widths []int, segments []model.Segment, min int) int {
	best := -1
	for i := range widths {
		if widths[i] <= min {
			continue
		}
		if best < 0 || widths[i] > widths[best] {
			best = i
			continue
		}
		if widths[i] == widths[best] && segments[i].Length < segments[best].Length {
			best = i
		}
	}
	return best
}
