// Package directory enumerates the storage service's disks into typed
// records.
//
// Enumeration is deliberately shallow: it builds one DiskRecord per disk
// and leaves partition and nesting detail to the tree builder, which works
// from the same object snapshot. One malformed service object never aborts
// enumeration of the rest; such objects surface in a
// PartialEnumerationError alongside the records that did build.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jbweber/blockyard/internal/model"
	"github.com/jbweber/blockyard/internal/udisks"
)

// ErrServiceUnavailable reports that the storage service could not be
// reached at all.
var ErrServiceUnavailable = errors.New("storage service unavailable")

// PartialEnumerationError reports per-object translation failures. The
// successfully built records accompany it on the Enumerate return.
type PartialEnumerationError struct {
	Failures []udisks.DecodeFailure
}

func (e *PartialEnumerationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%d object(s) failed to translate: %s", len(e.Failures), strings.Join(parts, "; "))
}

// objectBrowser is the slice of the service client this package needs.
// Satisfied by *udisks.Client.
type objectBrowser interface {
	ManagedObjects(ctx context.Context) ([]udisks.Object, []udisks.DecodeFailure, error)
}

// Directory builds DiskRecords from the service's object tree.
type Directory struct {
	client objectBrowser
}

// New creates a Directory backed by the given service client.
func New(client objectBrowser) *Directory {
	return &Directory{client: client}
}

// Enumerate returns one record per disk, sorted by device path for
// determinism. On per-object failures the records that did build are
// returned together with a *PartialEnumerationError; only total service
// unreachability yields records == nil.
func (d *Directory) Enumerate(ctx context.Context) ([]model.DiskRecord, error) {
	objects, failures, err := d.client.ManagedObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	disks := DisksFrom(objects)
	if len(failures) > 0 {
		return disks, &PartialEnumerationError{Failures: failures}
	}
	return disks, nil
}

// DisksFrom translates an object snapshot into disk records. A disk is a
// block object that is not a partition, not a cleartext device and not a
// mapped logical volume: the top of its own hierarchy.
func DisksFrom(objects []udisks.Object) []model.DiskRecord {
	drives := make(map[string]*udisks.DriveProps)
	for _, o := range objects {
		if o.Drive != nil {
			drives[o.Path] = o.Drive
		}
	}

	var disks []model.DiskRecord
	for _, o := range objects {
		if !isWholeDisk(o) {
			continue
		}
		disks = append(disks, diskRecord(o, drives))
	}

	sort.Slice(disks, func(i, j int) bool { return disks[i].Device < disks[j].Device })
	return disks
}

func isWholeDisk(o udisks.Object) bool {
	if o.Block == nil || o.Block.HintIgnore {
		return false
	}
	if o.Partition != nil {
		return false
	}
	if o.Block.CryptoBackingDevice != "" && o.Block.CryptoBackingDevice != "/" {
		return false
	}
	if o.LogicalVolume != nil {
		return false
	}
	return true
}

func diskRecord(o udisks.Object, drives map[string]*udisks.DriveProps) model.DiskRecord {
	rec := model.DiskRecord{
		Device:     o.Block.Device,
		ObjectPath: o.Path,
		Size:       o.Block.Size,
	}

	if o.PartitionTable != nil {
		switch o.PartitionTable.Type {
		case "dos":
			rec.Table = model.TableDOS
		case "gpt":
			rec.Table = model.TableGPT
		}
	}

	if o.Loop != nil {
		rec.BackingFile = o.Loop.BackingFile
		rec.Bus = model.BusLoop
	}

	if o.Block.Drive != "" && o.Block.Drive != "/" {
		if drv, ok := drives[o.Block.Drive]; ok {
			rec.DrivePath = o.Block.Drive
			rec.Vendor = drv.Vendor
			rec.Model = drv.Model
			rec.Serial = drv.Serial
			rec.Removable = drv.Removable
			rec.MediaIn = drv.MediaAvailable
			rec.Rotational = drv.RotationRate != 0
			if rec.Bus == model.BusUnknown {
				rec.Bus = inferBus(drv.ConnectionBus, o.Block.Device)
			}
		}
	}

	return rec
}

// inferBus maps the drive's reported connection medium, falling back to
// what the device path suggests when the drive does not say.
func inferBus(reported, device string) model.ConnectionBus {
	switch reported {
	case "ata", "sata":
		return model.BusATA
	case "usb":
		return model.BusUSB
	case "nvme":
		return model.BusNVMe
	case "sdio":
		return model.BusSDIO
	}
	switch {
	case strings.HasPrefix(device, "/dev/nvme"):
		return model.BusNVMe
	case strings.HasPrefix(device, "/dev/mmcblk"):
		return model.BusSDIO
	}
	return model.BusUnknown
}
