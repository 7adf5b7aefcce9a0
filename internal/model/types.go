package model

import "fmt"

// TableKind identifies a disk's partition-table format.
type TableKind string

const (
	TableNone TableKind = ""    // Unpartitioned
	TableDOS  TableKind = "dos" // MBR
	TableGPT  TableKind = "gpt" // GUID partition table
)

// ConnectionBus identifies how a drive is attached to the host.
type ConnectionBus string

const (
	BusUnknown ConnectionBus = ""
	BusATA     ConnectionBus = "ata"
	BusUSB     ConnectionBus = "usb"
	BusNVMe    ConnectionBus = "nvme"
	BusSDIO    ConnectionBus = "sdio"
	BusLoop    ConnectionBus = "loop" // Backed by a local file
)

// DiskRecord describes one whole disk as reported by the storage service.
// Records are rebuilt wholesale on each refresh and never mutated; the
// device path is the stable identity across refreshes.
type DiskRecord struct {
	Device      string // e.g. /dev/sda
	ObjectPath  string // Service object path for the backing block
	DrivePath   string // Service object path for the drive, if any
	Vendor      string
	Model       string
	Serial      string
	Size        uint64 // Bytes
	Removable   bool
	MediaIn     bool
	Rotational  bool
	Table       TableKind
	BackingFile string // Non-empty for loop-backed virtual disks
	Bus         ConnectionBus
}

// PartitionRecord describes one partition of a disk. Offset/Size come from
// the service unchecked: out-of-range values are tolerated here and flagged
// by the segmentation engine, never rejected upstream.
type PartitionRecord struct {
	Disk       string // Device path of the owning disk
	Device     string // e.g. /dev/sda1
	ObjectPath string
	Number     uint32
	Offset     uint64 // Bytes from the start of the disk
	Size       uint64 // Bytes
	TypeID     string // Table-specific type identifier (GUID or MBR id)
	Flags      uint64
	FSType     string // Filesystem type as probed, may be empty
}

// NodeKind is the closed set of VolumeNode classifications. A block object
// exposing several capabilities is classified once, by precedence:
// encrypted container, then LVM physical volume, then filesystem, then
// generic block.
type NodeKind string

const (
	KindPartition  NodeKind = "partition"
	KindCrypto     NodeKind = "crypto"     // Encrypted container
	KindFilesystem NodeKind = "filesystem" // Cleartext filesystem-capable device
	KindLVMPV      NodeKind = "lvm-pv"
	KindLVMLV      NodeKind = "lvm-lv"
	KindBlock      NodeKind = "block" // Generic fallback
)

// VolumeNode is one node of a disk's volume tree. Children exhaustively
// represent what is nested beneath the node: an unlocked container has
// exactly one cleartext child, a locked one has none. Trees are replaced
// atomically on refresh and must not be mutated afterwards.
type VolumeNode struct {
	Device      string
	ObjectPath  string
	Kind        NodeKind
	Size        uint64
	Label       string
	FSType      string
	MountPoints []string // Empty when not mounted; first entry is canonical
	Locked      bool     // Only meaningful for KindCrypto
	Unresolved  bool     // Object vanished or failed to decode mid-build
	Mountable   bool     // False for unmapped LVs and unresolved nodes
	ParentPath  string   // Non-owning back-reference, empty at the root
	Children    []*VolumeNode
}

// Walk visits the node and every descendant in depth-first order.
func (n *VolumeNode) Walk(fn func(*VolumeNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// SegmentKind classifies one byte range of a disk layout.
type SegmentKind string

const (
	SegmentOccupied SegmentKind = "occupied"
	SegmentFree     SegmentKind = "free"
	SegmentAnomaly  SegmentKind = "anomaly" // Overlap or out-of-range region
)

// Segment is one contiguous byte range of a disk. Segments are derived on
// demand from a DiskRecord and its partitions and are never persisted.
type Segment struct {
	Kind      SegmentKind
	Start     uint64
	Length    uint64
	Partition int // Index into the source partition list, -1 when none
}

// End returns the first byte past the segment.
func (s Segment) End() uint64 { return s.Start + s.Length }

// UsageSample is a best-effort filesystem usage reading. Its absence never
// implies "unmounted".
type UsageSample struct {
	BytesTotal uint64
	BytesUsed  uint64
}

// OpKind identifies a mutating operation.
//
// Cancellation before the remote call is dispatched is safe for every kind.
// After dispatch: mount, unmount, lock, unlock and the power kinds are safe
// to cancel (the next refresh re-observes whatever state resulted); format,
// resize, create-partition and repair are not undone by cancelling the local
// call — the remote side effect may complete regardless.
type OpKind string

const (
	OpMount            OpKind = "mount"
	OpUnmount          OpKind = "unmount"
	OpUnlock           OpKind = "unlock"
	OpLock             OpKind = "lock"
	OpChangePassphrase OpKind = "change-passphrase"
	OpFormat           OpKind = "format"
	OpResize           OpKind = "resize"
	OpCheck            OpKind = "check"
	OpRepair           OpKind = "repair"
	OpSetLabel         OpKind = "set-label"
	OpCreatePartition  OpKind = "create-partition"
	OpDeletePartition  OpKind = "delete-partition"
	OpSetFlags         OpKind = "set-flags"
	OpPowerOff         OpKind = "power-off"
	OpStandby          OpKind = "standby"
	OpWake             OpKind = "wake"
	OpSelfTest         OpKind = "self-test"
)

// OperationRequest describes one requested mutation. Requests are created
// per call and never retained.
type OperationRequest struct {
	Kind   OpKind
	Target string // Service object path of the device or drive
	// Parameters; which ones matter depends on Kind.
	FSType        string // format
	Label         string // format, set-label
	Size          uint64 // resize, create-partition
	Offset        uint64 // create-partition
	TypeID        string // create-partition
	Flags         uint64 // set-flags
	Force         bool   // unmount
	Passphrase    string // unlock, change-passphrase (current), create-partition (encrypt when non-empty)
	NewPassphrase string // change-passphrase
	Confirm       string // change-passphrase
	TestKind      string // self-test: short, extended, conveyance
}

// Outcome is the classified result of an operation.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeValidation  Outcome = "validation-error"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeFailed      Outcome = "remote-error"
	OutcomeTimedOut    Outcome = "timed-out"
)

// OperationResult reports how one request ended. Err is nil exactly when
// Outcome is OutcomeOK or OutcomeUnsupported.
type OperationResult struct {
	ID      string // Unique per request
	Kind    OpKind
	Target  string
	Outcome Outcome
	Err     error
	// Mount reports the mount point chosen by the service for OpMount.
	Mount string
	// Cleartext reports the cleartext device object path for OpUnlock.
	Cleartext string
}

func (r OperationResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", r.Kind, r.Target, r.Outcome, r.Err)
	}
	return fmt.Sprintf("%s %s: %s", r.Kind, r.Target, r.Outcome)
}
