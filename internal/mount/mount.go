// Package mount derives mount state from the model and samples filesystem
// usage from local statistics.
//
// The two concerns are deliberately independent: mount state comes solely
// from the mount points the storage service reported on the node, while
// usage is a best-effort local statfs reading whose failure must never be
// read as "unmounted".
package mount

import (
	"log"

	"golang.org/x/sys/unix"

	"github.com/jbweber/blockyard/internal/model"
)

// State is a node's derived mount state.
type State struct {
	Mounted     bool
	MountPoints []string
}

// Canonical returns the mount point to display when several exist.
func (s State) Canonical() string {
	if len(s.MountPoints) == 0 {
		return ""
	}
	return s.MountPoints[0]
}

// Of derives the mount state of a node: mounted exactly when the node
// reports at least one mount point.
func Of(n *model.VolumeNode) State {
	if n == nil || len(n.MountPoints) == 0 {
		return State{}
	}
	return State{Mounted: true, MountPoints: n.MountPoints}
}

// statfs is swapped out in tests.
var statfs = unix.Statfs

// Usage samples filesystem usage at the given mount point. Any failure
// yields nil; it never implies anything about mount state.
func Usage(mountPoint string) *model.UsageSample {
	var st unix.Statfs_t
	if err := statfs(mountPoint, &st); err != nil {
		log.Printf("usage sample for %s unavailable: %v", mountPoint, err)
		return nil
	}

	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	free := st.Bfree * bsize
	if free > total {
		// Malformed statistics; report nothing rather than a negative use.
		return nil
	}
	return &model.UsageSample{
		BytesTotal: total,
		BytesUsed:  total - free,
	}
}
