package udisks

import (
	"bytes"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Interface names exposed by the storage-management service on its objects.
const (
	ifaceDrive          = "org.freedesktop.UDisks2.Drive"
	ifaceDriveAta       = "org.freedesktop.UDisks2.Drive.Ata"
	ifaceBlock          = "org.freedesktop.UDisks2.Block"
	ifacePartitionTable = "org.freedesktop.UDisks2.PartitionTable"
	ifacePartition      = "org.freedesktop.UDisks2.Partition"
	ifaceFilesystem     = "org.freedesktop.UDisks2.Filesystem"
	ifaceEncrypted      = "org.freedesktop.UDisks2.Encrypted"
	ifaceLoop           = "org.freedesktop.UDisks2.Loop"
	ifacePhysicalVolume = "org.freedesktop.UDisks2.PhysicalVolume"
	ifaceLogicalVolume  = "org.freedesktop.UDisks2.LogicalVolume"
)

// noObject is the object path the service uses for "no reference".
const noObject = "/"

// Object is the typed description of one service object. Exactly the
// interfaces the object exposes are non-nil.
type Object struct {
	Path           string
	Drive          *DriveProps
	Ata            *AtaProps
	Block          *BlockProps
	PartitionTable *PartitionTableProps
	Partition      *PartitionProps
	Filesystem     *FilesystemProps
	Encrypted      *EncryptedProps
	Loop           *LoopProps
	PhysicalVolume *PhysicalVolumeProps
	LogicalVolume  *LogicalVolumeProps
}

// DriveProps mirrors the service's Drive interface.
type DriveProps struct {
	Vendor         string
	Model          string
	Serial         string
	Size           uint64
	Removable      bool
	MediaAvailable bool
	RotationRate   int32 // 0 means non-rotational, -1 unknown rate
	ConnectionBus  string
	CanPowerOff    bool
}

// AtaProps mirrors the service's Drive.Ata interface (SMART summary).
type AtaProps struct {
	SmartSupported      bool
	SmartEnabled        bool
	SmartFailing        bool
	SmartPowerOnSeconds uint64
	SmartTemperature    float64
	SelftestStatus      string
	SelftestPercent     int32
}

// BlockProps mirrors the service's Block interface.
type BlockProps struct {
	Device              string // Decoded device path, e.g. /dev/sda
	Size                uint64
	Drive               string // Object path of the owning drive, "/" if none
	IDType              string
	IDLabel             string
	IDUsage             string
	CryptoBackingDevice string // Object path of the container this is the cleartext of, "/" if none
	HintIgnore          bool
}

// PartitionTableProps mirrors the service's PartitionTable interface.
type PartitionTableProps struct {
	Type string // "dos" or "gpt"
}

// PartitionProps mirrors the service's Partition interface.
type PartitionProps struct {
	Number uint32
	Offset uint64
	Size   uint64
	Type   string
	Flags  uint64
	Table  string // Object path of the owning table block
}

// FilesystemProps mirrors the service's Filesystem interface.
type FilesystemProps struct {
	MountPoints []string
}

// EncryptedProps mirrors the service's Encrypted interface.
type EncryptedProps struct {
	CleartextDevice string // Object path of the unlocked device, "/" while locked
}

// LoopProps mirrors the service's Loop interface.
type LoopProps struct {
	BackingFile string
}

// PhysicalVolumeProps mirrors the service's PhysicalVolume interface.
type PhysicalVolumeProps struct {
	VolumeGroup string // Object path
}

// LogicalVolumeProps mirrors the service's LogicalVolume interface.
type LogicalVolumeProps struct {
	Name        string
	VolumeGroup string // Object path
	Size        uint64
	Active      bool
	Device      string // Device path of the mapped block, empty when inactive
}

// DecodeFailure records one object that could not be translated. One
// malformed object must never abort enumeration of the rest.
type DecodeFailure struct {
	Path string
	Err  error
}

func (f DecodeFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

// props is one interface's property map as delivered by the bus.
type props map[string]dbus.Variant

func (p props) str(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", nil
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("property %s: expected string, got %T", name, v.Value())
	}
	return s, nil
}

func (p props) objectPath(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", nil
	}
	op, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return "", fmt.Errorf("property %s: expected object path, got %T", name, v.Value())
	}
	return string(op), nil
}

func (p props) u64(name string) (uint64, error) {
	v, ok := p[name]
	if !ok {
		return 0, nil
	}
	switch n := v.Value().(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("property %s: expected uint64, got %T", name, v.Value())
	}
}

func (p props) u32(name string) (uint32, error) {
	v, ok := p[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.Value().(uint32)
	if !ok {
		return 0, fmt.Errorf("property %s: expected uint32, got %T", name, v.Value())
	}
	return n, nil
}

func (p props) i32(name string) (int32, error) {
	v, ok := p[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.Value().(int32)
	if !ok {
		return 0, fmt.Errorf("property %s: expected int32, got %T", name, v.Value())
	}
	return n, nil
}

func (p props) f64(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("property %s: expected float64, got %T", name, v.Value())
	}
	return n, nil
}

func (p props) boolean(name string) (bool, error) {
	v, ok := p[name]
	if !ok {
		return false, nil
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s: expected bool, got %T", name, v.Value())
	}
	return b, nil
}

// byteString decodes a NUL-terminated byte-array property (the service
// reports device paths this way).
func (p props) byteString(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", nil
	}
	b, ok := v.Value().([]byte)
	if !ok {
		return "", fmt.Errorf("property %s: expected byte array, got %T", name, v.Value())
	}
	return string(bytes.TrimRight(b, "\x00")), nil
}

// byteStrings decodes an array of NUL-terminated byte arrays (mount points).
func (p props) byteStrings(name string) ([]string, error) {
	v, ok := p[name]
	if !ok {
		return nil, nil
	}
	raw, ok := v.Value().([][]byte)
	if !ok {
		return nil, fmt.Errorf("property %s: expected array of byte arrays, got %T", name, v.Value())
	}
	out := make([]string, 0, len(raw))
	for _, b := range raw {
		s := string(bytes.TrimRight(b, "\x00"))
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
