package udisks

import (
	"context"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
)

// ManagedObjects fetches and decodes the service's full object tree.
//
// Objects that fail to decode are reported as DecodeFailure entries; the
// call itself only errors when the service cannot be reached at all. The
// returned objects are sorted by object path for determinism.
func (c *Client) ManagedObjects(ctx context.Context) ([]Object, []DecodeFailure, error) {
	var raw map[dbus.ObjectPath]map[string]map[string]dbus.Variant

	call := c.conn.Object(busName, managerPath).CallWithContext(
		ctx, ifaceObjectManager+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, nil, fmt.Errorf("failed to enumerate storage objects: %w", call.Err)
	}
	if err := call.Store(&raw); err != nil {
		return nil, nil, fmt.Errorf("failed to decode object tree: %w", err)
	}

	objects := make([]Object, 0, len(raw))
	var failures []DecodeFailure
	for path, ifaces := range raw {
		obj, err := decodeObject(string(path), ifaces)
		if err != nil {
			failures = append(failures, DecodeFailure{Path: string(path), Err: err})
			continue
		}
		objects = append(objects, obj)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return objects, failures, nil
}

// decodeObject translates one object's interface map. Unknown interfaces
// are ignored; a malformed known interface fails the whole object so the
// caller can report it.
func decodeObject(path string, ifaces map[string]map[string]dbus.Variant) (Object, error) {
	obj := Object{Path: path}

	for name, raw := range ifaces {
		p := props(raw)
		var err error
		switch name {
		case ifaceDrive:
			obj.Drive, err = decodeDrive(p)
		case ifaceDriveAta:
			obj.Ata, err = decodeAta(p)
		case ifaceBlock:
			obj.Block, err = decodeBlock(p)
		case ifacePartitionTable:
			obj.PartitionTable, err = decodePartitionTable(p)
		case ifacePartition:
			obj.Partition, err = decodePartition(p)
		case ifaceFilesystem:
			obj.Filesystem, err = decodeFilesystem(p)
		case ifaceEncrypted:
			obj.Encrypted, err = decodeEncrypted(p)
		case ifaceLoop:
			obj.Loop, err = decodeLoop(p)
		case ifacePhysicalVolume:
			obj.PhysicalVolume, err = decodePhysicalVolume(p)
		case ifaceLogicalVolume:
			obj.LogicalVolume, err = decodeLogicalVolume(p)
		}
		if err != nil {
			return Object{}, fmt.Errorf("interface %s: %w", name, err)
		}
	}

	return obj, nil
}

func decodeDrive(p props) (*DriveProps, error) {
	d := &DriveProps{}
	var err error
	if d.Vendor, err = p.str("Vendor"); err != nil {
		return nil, err
	}
	if d.Model, err = p.str("Model"); err != nil {
		return nil, err
	}
	if d.Serial, err = p.str("Serial"); err != nil {
		return nil, err
	}
	if d.Size, err = p.u64("Size"); err != nil {
		return nil, err
	}
	if d.Removable, err = p.boolean("Removable"); err != nil {
		return nil, err
	}
	if d.MediaAvailable, err = p.boolean("MediaAvailable"); err != nil {
		return nil, err
	}
	if d.RotationRate, err = p.i32("RotationRate"); err != nil {
		return nil, err
	}
	if d.ConnectionBus, err = p.str("ConnectionBus"); err != nil {
		return nil, err
	}
	if d.CanPowerOff, err = p.boolean("CanPowerOff"); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeAta(p props) (*AtaProps, error) {
	a := &AtaProps{}
	var err error
	if a.SmartSupported, err = p.boolean("SmartSupported"); err != nil {
		return nil, err
	}
	if a.SmartEnabled, err = p.boolean("SmartEnabled"); err != nil {
		return nil, err
	}
	if a.SmartFailing, err = p.boolean("SmartFailing"); err != nil {
		return nil, err
	}
	if a.SmartPowerOnSeconds, err = p.u64("SmartPowerOnSeconds"); err != nil {
		return nil, err
	}
	if a.SmartTemperature, err = p.f64("SmartTemperature"); err != nil {
		return nil, err
	}
	if a.SelftestStatus, err = p.str("SmartSelftestStatus"); err != nil {
		return nil, err
	}
	if a.SelftestPercent, err = p.i32("SmartSelftestPercentRemaining"); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeBlock(p props) (*BlockProps, error) {
	b := &BlockProps{}
	var err error
	if b.Device, err = p.byteString("Device"); err != nil {
		return nil, err
	}
	if b.Size, err = p.u64("Size"); err != nil {
		return nil, err
	}
	if b.Drive, err = p.objectPath("Drive"); err != nil {
		return nil, err
	}
	if b.IDType, err = p.str("IdType"); err != nil {
		return nil, err
	}
	if b.IDLabel, err = p.str("IdLabel"); err != nil {
		return nil, err
	}
	if b.IDUsage, err = p.str("IdUsage"); err != nil {
		return nil, err
	}
	if b.CryptoBackingDevice, err = p.objectPath("CryptoBackingDevice"); err != nil {
		return nil, err
	}
	if b.HintIgnore, err = p.boolean("HintIgnore"); err != nil {
		return nil, err
	}
	if b.Device == "" {
		return nil, fmt.Errorf("block object without device path")
	}
	return b, nil
}

func decodePartitionTable(p props) (*PartitionTableProps, error) {
	t := &PartitionTableProps{}
	var err error
	if t.Type, err = p.str("Type"); err != nil {
		return nil, err
	}
	return t, nil
}

func decodePartition(p props) (*PartitionProps, error) {
	pt := &PartitionProps{}
	var err error
	if pt.Number, err = p.u32("Number"); err != nil {
		return nil, err
	}
	if pt.Offset, err = p.u64("Offset"); err != nil {
		return nil, err
	}
	if pt.Size, err = p.u64("Size"); err != nil {
		return nil, err
	}
	if pt.Type, err = p.str("Type"); err != nil {
		return nil, err
	}
	if pt.Flags, err = p.u64("Flags"); err != nil {
		return nil, err
	}
	if pt.Table, err = p.objectPath("Table"); err != nil {
		return nil, err
	}
	return pt, nil
}

func decodeFilesystem(p props) (*FilesystemProps, error) {
	f := &FilesystemProps{}
	var err error
	if f.MountPoints, err = p.byteStrings("MountPoints"); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeEncrypted(p props) (*EncryptedProps, error) {
	e := &EncryptedProps{}
	var err error
	if e.CleartextDevice, err = p.objectPath("CleartextDevice"); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeLoop(p props) (*LoopProps, error) {
	l := &LoopProps{}
	var err error
	if l.BackingFile, err = p.byteString("BackingFile"); err != nil {
		return nil, err
	}
	return l, nil
}

func decodePhysicalVolume(p props) (*PhysicalVolumeProps, error) {
	pv := &PhysicalVolumeProps{}
	var err error
	if pv.VolumeGroup, err = p.objectPath("VolumeGroup"); err != nil {
		return nil, err
	}
	return pv, nil
}

func decodeLogicalVolume(p props) (*LogicalVolumeProps, error) {
	lv := &LogicalVolumeProps{}
	var err error
	if lv.Name, err = p.str("Name"); err != nil {
		return nil, err
	}
	if lv.VolumeGroup, err = p.objectPath("VolumeGroup"); err != nil {
		return nil, err
	}
	if lv.Size, err = p.u64("Size"); err != nil {
		return nil, err
	}
	if lv.Active, err = p.boolean("Active"); err != nil {
		return nil, err
	}
	if lv.Device, err = p.byteString("BlockDevice"); err != nil {
		return nil, err
	}
	return lv, nil
}
