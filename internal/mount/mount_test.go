package mount

import (
	"fmt"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/jbweber/blockyard/internal/model"
)

func TestOf(t *testing.T) {
	tests := []struct {
		name        string
		node        *model.VolumeNode
		wantMounted bool
	}{
		{"nil node", nil, false},
		{"no mount points", &model.VolumeNode{Device: "/dev/sda1"}, false},
		{"one mount point", &model.VolumeNode{MountPoints: []string{"/data"}}, true},
		{"several mount points", &model.VolumeNode{MountPoints: []string{"/data", "/srv/data"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Of(tt.node)
			if got.Mounted != tt.wantMounted {
				t.Errorf("Mounted = %v, want %v", got.Mounted, tt.wantMounted)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	if got := (State{}).Canonical(); got != "" {
		t.Errorf("Canonical of empty state = %q, want empty", got)
	}
	s := State{Mounted: true, MountPoints: []string{"/data", "/srv/data"}}
	if got := s.Canonical(); got != "/data" {
		t.Errorf("Canonical = %q, want /data", got)
	}
}

func TestUsage(t *testing.T) {
	defer func(orig func(string, *unix.Statfs_t) error) { statfs = orig }(statfs)

	statfs = func(_ string, st *unix.Statfs_t) error {
		st.Bsize = 4096
		st.Blocks = 1000
		st.Bfree = 250
		return nil
	}

	got := Usage("/data")
	if got == nil {
		t.Fatal("Usage returned nil")
	}
	if got.BytesTotal != 4096*1000 {
		t.Errorf("BytesTotal = %d, want %d", got.BytesTotal, 4096*1000)
	}
	if got.BytesUsed != 4096*750 {
		t.Errorf("BytesUsed = %d, want %d", got.BytesUsed, 4096*750)
	}
}

func TestUsageStatfsFailure(t *testing.T) {
	defer func(orig func(string, *unix.Statfs_t) error) { statfs = orig }(statfs)

	statfs = func(string, *unix.Statfs_t) error {
		return fmt.Errorf("permission denied")
	}

	if got := Usage("/data"); got != nil {
		t.Errorf("Usage = %+v, want nil on statfs failure", got)
	}
}

func TestUsageMalformedStatistics(t *testing.T) {
	defer func(orig func(string, *unix.Statfs_t) error) { statfs = orig }(statfs)

	statfs = func(_ string, st *unix.Statfs_t) error {
		st.Bsize = 4096
		st.Blocks = 100
		st.Bfree = 200
		return nil
	}

	if got := Usage("/data"); got != nil {
		t.Errorf("Usage = %+v, want nil when free exceeds total", got)
	}
}

func TestUsageFailureIsNotUnmounted(t *testing.T) {
	defer func(orig func(string, *unix.Statfs_t) error) { statfs = orig }(statfs)
	statfs = func(string, *unix.Statfs_t) error { return fmt.Errorf("stale handle") }

	node := &model.VolumeNode{MountPoints: []string{"/data"}}
	state := Of(node)
	sample := Usage(state.Canonical())

	if !state.Mounted {
		t.Error("node with mount points must report mounted")
	}
	if sample != nil {
		t.Errorf("sample = %+v, want nil", sample)
	}
}
