package udisks

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// options is the a{sv} parameter every service operation accepts.
type options map[string]dbus.Variant

func noOptions() options { return options{} }

func (c *Client) call(ctx context.Context, path, method string, args ...interface{}) *dbus.Call {
	return c.conn.Object(busName, dbus.ObjectPath(path)).CallWithContext(ctx, method, 0, args...)
}

// Mount mounts the filesystem on the given block object and returns the
// mount point chosen by the service.
func (c *Client) Mount(ctx context.Context, path string) (string, error) {
	call := c.call(ctx, path, ifaceFilesystem+".Mount", noOptions())
	if call.Err != nil {
		return "", call.Err
	}
	var mountPoint string
	if err := call.Store(&mountPoint); err != nil {
		return "", err
	}
	return mountPoint, nil
}

// Unmount unmounts the filesystem on the given block object.
func (c *Client) Unmount(ctx context.Context, path string, force bool) error {
	opts := noOptions()
	if force {
		opts["force"] = dbus.MakeVariant(true)
	}
	return c.call(ctx, path, ifaceFilesystem+".Unmount", opts).Err
}

// Format formats the block object with the given filesystem type. A
// non-empty label is applied; a non-empty passphrase requests an encrypted
// container holding the filesystem.
func (c *Client) Format(ctx context.Context, path, fstype, label, passphrase string) error {
	opts := noOptions()
	if label != "" {
		opts["label"] = dbus.MakeVariant(label)
	}
	if passphrase != "" {
		opts["encrypt.passphrase"] = dbus.MakeVariant(passphrase)
	}
	return c.call(ctx, path, ifaceBlock+".Format", fstype, opts).Err
}

// Resize resizes the filesystem on the block object to size bytes.
func (c *Client) Resize(ctx context.Context, path string, size uint64) error {
	return c.call(ctx, path, ifaceFilesystem+".Resize", size, noOptions()).Err
}

// Check runs a filesystem consistency check; the result reports whether the
// filesystem is consistent.
func (c *Client) Check(ctx context.Context, path string) (bool, error) {
	call := c.call(ctx, path, ifaceFilesystem+".Check", noOptions())
	if call.Err != nil {
		return false, call.Err
	}
	var consistent bool
	if err := call.Store(&consistent); err != nil {
		return false, err
	}
	return consistent, nil
}

// Repair attempts a filesystem repair; the result reports whether the
// repair succeeded.
func (c *Client) Repair(ctx context.Context, path string) (bool, error) {
	call := c.call(ctx, path, ifaceFilesystem+".Repair", noOptions())
	if call.Err != nil {
		return false, call.Err
	}
	var repaired bool
	if err := call.Store(&repaired); err != nil {
		return false, err
	}
	return repaired, nil
}

// SetLabel changes the filesystem label on the block object.
func (c *Client) SetLabel(ctx context.Context, path, label string) error {
	return c.call(ctx, path, ifaceFilesystem+".SetLabel", label, noOptions()).Err
}

// CreatePartition creates a partition on the given partition-table object
// and returns the new partition's object path. When fstype is non-empty the
// partition is formatted in the same service transaction; a non-empty
// passphrase additionally wraps the filesystem in an encrypted container.
func (c *Client) CreatePartition(ctx context.Context, path string, offset, size uint64, typeID, fstype, passphrase string) (string, error) {
	var call *dbus.Call
	if fstype == "" {
		call = c.call(ctx, path, ifacePartitionTable+".CreatePartition",
			offset, size, typeID, "", noOptions())
	} else {
		formatOpts := noOptions()
		if passphrase != "" {
			formatOpts["encrypt.passphrase"] = dbus.MakeVariant(passphrase)
		}
		call = c.call(ctx, path, ifacePartitionTable+".CreatePartitionAndFormat",
			offset, size, typeID, "", noOptions(), fstype, formatOpts)
	}
	if call.Err != nil {
		return "", call.Err
	}
	var created dbus.ObjectPath
	if err := call.Store(&created); err != nil {
		return "", err
	}
	return string(created), nil
}

// DeletePartition removes the partition object from its table.
func (c *Client) DeletePartition(ctx context.Context, path string) error {
	return c.call(ctx, path, ifacePartition+".Delete", noOptions()).Err
}

// SetPartitionFlags replaces the partition's table flags.
func (c *Client) SetPartitionFlags(ctx context.Context, path string, flags uint64) error {
	return c.call(ctx, path, ifacePartition+".SetFlags", flags, noOptions()).Err
}

// Unlock unlocks the encrypted block object and returns the cleartext
// device's object path.
func (c *Client) Unlock(ctx context.Context, path, passphrase string) (string, error) {
	call := c.call(ctx, path, ifaceEncrypted+".Unlock", passphrase, noOptions())
	if call.Err != nil {
		return "", call.Err
	}
	var cleartext dbus.ObjectPath
	if err := call.Store(&cleartext); err != nil {
		return "", err
	}
	return string(cleartext), nil
}

// Lock locks the encrypted block object, tearing down its cleartext device.
func (c *Client) Lock(ctx context.Context, path string) error {
	return c.call(ctx, path, ifaceEncrypted+".Lock", noOptions()).Err
}

// ChangePassphrase replaces the passphrase of the encrypted block object.
func (c *Client) ChangePassphrase(ctx context.Context, path, current, next string) error {
	return c.call(ctx, path, ifaceEncrypted+".ChangePassphrase", current, next, noOptions()).Err
}

// PowerOff powers off the drive object.
func (c *Client) PowerOff(ctx context.Context, path string) error {
	return c.call(ctx, path, ifaceDrive+".PowerOff", noOptions()).Err
}

// Standby puts the drive into a low-power state.
func (c *Client) Standby(ctx context.Context, path string) error {
	return c.call(ctx, path, ifaceDriveAta+".PmStandby", noOptions()).Err
}

// Wakeup spins the drive back up from standby.
func (c *Client) Wakeup(ctx context.Context, path string) error {
	return c.call(ctx, path, ifaceDriveAta+".PmWakeup", noOptions()).Err
}

// SmartSelftestStart starts a SMART self-test of the given kind
// (short, extended or conveyance).
func (c *Client) SmartSelftestStart(ctx context.Context, path, kind string) error {
	return c.call(ctx, path, ifaceDriveAta+".SmartSelftestStart", kind, noOptions()).Err
}

// SmartGet reads the drive's current SMART summary.
func (c *Client) SmartGet(ctx context.Context, path string) (*AtaProps, error) {
	call := c.call(ctx, path, ifaceProperties+".GetAll", ifaceDriveAta)
	if call.Err != nil {
		return nil, call.Err
	}
	var raw map[string]dbus.Variant
	if err := call.Store(&raw); err != nil {
		return nil, err
	}
	return decodeAta(props(raw))
}
