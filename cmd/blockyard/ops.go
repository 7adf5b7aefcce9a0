package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jbweber/blockyard/internal/engine"
	"github.com/jbweber/blockyard/internal/model"
	"github.com/jbweber/blockyard/internal/ops"
)

// findNode resolves a device path to its node in the current snapshot.
func findNode(snap *engine.Snapshot, device string) *model.VolumeNode {
	var found *model.VolumeNode
	for _, root := range snap.Trees {
		root.Walk(func(n *model.VolumeNode) {
			if found == nil && n.Device == device {
				found = n
			}
		})
		if found != nil {
			break
		}
	}
	return found
}

// resolveTarget maps a device path argument to the service object path the
// operation needs. Drive-level operations resolve to the disk's drive
// object instead of its block object.
func resolveTarget(snap *engine.Snapshot, device string, kind model.OpKind) (string, error) {
	switch kind {
	case model.OpPowerOff, model.OpStandby, model.OpWake, model.OpSelfTest:
		for _, d := range snap.Disks {
			if d.Device == device {
				if d.DrivePath == "" {
					return "", fmt.Errorf("no drive known for %s", device)
				}
				return d.DrivePath, nil
			}
		}
		return "", fmt.Errorf("unknown disk: %s", device)
	default:
		if n := findNode(snap, device); n != nil {
			return n.ObjectPath, nil
		}
		return "", fmt.Errorf("unknown device: %s", device)
	}
}

// runOp executes one operation end to end: refresh, resolve, dispatch,
// report. A non-ok outcome exits non-zero through the returned error.
func runOp(device string, build func(target string) model.OperationRequest) error {
	cfg, client, eng, release, err := setup()
	if err != nil {
		return err
	}
	defer release()

	ctx := context.Background()
	if err := eng.Refresh(ctx); err != nil {
		return err
	}

	probe := build("")
	target, err := resolveTarget(eng.Snapshot(), device, probe.Kind)
	if err != nil {
		return err
	}
	req := build(target)

	exec := ops.NewExecutor(client, eng, cfg.MetadataTimeout(), cfg.ReshapeTimeout())
	res := exec.Do(ctx, req)

	switch res.Outcome {
	case model.OutcomeOK:
		switch req.Kind {
		case model.OpMount:
			fmt.Printf("mounted at %s\n", res.Mount)
		case model.OpUnlock:
			fmt.Printf("unlocked as %s\n", res.Cleartext)
		default:
			fmt.Println("ok")
		}
		return nil
	case model.OutcomeUnsupported:
		return fmt.Errorf("%s is not supported by %s", req.Kind, device)
	default:
		return res.Err
	}
}

// readPassphrase prompts without echo when stdin is a terminal.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(secret), nil
	}
	var secret string
	if _, err := fmt.Fscanln(os.Stdin, &secret); err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return secret, nil
}

func opCommands() []*cobra.Command {
	var (
		force    bool
		fstype   string
		label    string
		size     uint64
		offset   uint64
		typeID   string
		flags    uint64
		encrypt  bool
		testKind string
	)

	mountCmd := &cobra.Command{
		Use:   "mount <device>",
		Short: "Mount a filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpMount, Target: target}
			})
		},
	}

	unmountCmd := &cobra.Command{
		Use:   "unmount <device>",
		Short: "Unmount a filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpUnmount, Target: target, Force: force}
			})
		},
	}
	unmountCmd.Flags().BoolVar(&force, "force", false, "unmount even with busy holders")

	unlockCmd := &cobra.Command{
		Use:   "unlock <device>",
		Short: "Unlock an encrypted container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpUnlock, Target: target, Passphrase: passphrase}
			})
		},
	}

	lockCmd := &cobra.Command{
		Use:   "lock <device>",
		Short: "Lock an encrypted container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpLock, Target: target}
			})
		},
	}

	changePassCmd := &cobra.Command{
		Use:   "change-passphrase <device>",
		Short: "Change an encrypted container's passphrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := readPassphrase("Current passphrase: ")
			if err != nil {
				return err
			}
			next, err := readPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			confirm, err := readPassphrase("Confirm new passphrase: ")
			if err != nil {
				return err
			}
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{
					Kind: model.OpChangePassphrase, Target: target,
					Passphrase: current, NewPassphrase: next, Confirm: confirm,
				}
			})
		},
	}

	formatCmd := &cobra.Command{
		Use:   "format <device>",
		Short: "Format a block device",
		Long: `Format a block device with a new filesystem. This destroys the
device's contents. With --encrypt the filesystem is created inside a new
encrypted container.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var passphrase string
			if encrypt {
				var err error
				if passphrase, err = readPassphrase("Passphrase for new container: "); err != nil {
					return err
				}
			}
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{
					Kind: model.OpFormat, Target: target,
					FSType: fstype, Label: label, Passphrase: passphrase,
				}
			})
		},
	}
	formatCmd.Flags().StringVar(&fstype, "type", "", "filesystem type (required)")
	formatCmd.Flags().StringVar(&label, "label", "", "filesystem label")
	formatCmd.Flags().BoolVar(&encrypt, "encrypt", false, "create inside an encrypted container")

	resizeCmd := &cobra.Command{
		Use:   "resize <device>",
		Short: "Resize a filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpResize, Target: target, Size: size}
			})
		},
	}
	resizeCmd.Flags().Uint64Var(&size, "size", 0, "new size in bytes (required)")

	mkpartCmd := &cobra.Command{
		Use:   "mkpart <disk>",
		Short: "Create a partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var passphrase string
			if encrypt {
				var err error
				if passphrase, err = readPassphrase("Passphrase for new container: "); err != nil {
					return err
				}
			}
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{
					Kind: model.OpCreatePartition, Target: target,
					Offset: offset, Size: size, TypeID: typeID,
					FSType: fstype, Passphrase: passphrase,
				}
			})
		},
	}
	mkpartCmd.Flags().Uint64Var(&offset, "offset", 0, "start offset in bytes")
	mkpartCmd.Flags().Uint64Var(&size, "size", 0, "size in bytes (required)")
	mkpartCmd.Flags().StringVar(&typeID, "type-id", "", "partition type identifier")
	mkpartCmd.Flags().StringVar(&fstype, "fs", "", "format the new partition with this filesystem")
	mkpartCmd.Flags().BoolVar(&encrypt, "encrypt", false, "create inside an encrypted container")

	rmpartCmd := &cobra.Command{
		Use:   "rmpart <device>",
		Short: "Delete a partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpDeletePartition, Target: target}
			})
		},
	}

	setFlagsCmd := &cobra.Command{
		Use:   "set-flags <device>",
		Short: "Set a partition's table flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpSetFlags, Target: target, Flags: flags}
			})
		},
	}
	setFlagsCmd.Flags().Uint64Var(&flags, "flags", 0, "flag bits to set")

	setLabelCmd := &cobra.Command{
		Use:   "set-label <device>",
		Short: "Change a filesystem label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpSetLabel, Target: target, Label: label}
			})
		},
	}
	setLabelCmd.Flags().StringVar(&label, "label", "", "new label")

	powerOffCmd := &cobra.Command{
		Use:   "power-off <disk>",
		Short: "Power off a drive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpPowerOff, Target: target}
			})
		},
	}

	standbyCmd := &cobra.Command{
		Use:   "standby <disk>",
		Short: "Put a drive into standby",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpStandby, Target: target}
			})
		},
	}

	wakeCmd := &cobra.Command{
		Use:   "wake <disk>",
		Short: "Wake a drive from standby",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpWake, Target: target}
			})
		},
	}

	selfTestCmd := &cobra.Command{
		Use:   "self-test <disk>",
		Short: "Start a SMART self-test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(args[0], func(target string) model.OperationRequest {
				return model.OperationRequest{Kind: model.OpSelfTest, Target: target, TestKind: testKind}
			})
		},
	}
	selfTestCmd.Flags().StringVar(&testKind, "kind", "short", "test kind: short, extended, conveyance")

	return []*cobra.Command{
		mountCmd, unmountCmd, unlockCmd, lockCmd, changePassCmd,
		formatCmd, resizeCmd, mkpartCmd, rmpartCmd, setFlagsCmd,
		setLabelCmd, powerOffCmd, standbyCmd, wakeCmd, selfTestCmd,
	}
}
