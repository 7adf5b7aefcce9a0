package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jbweber/blockyard/internal/config"
	"github.com/jbweber/blockyard/internal/engine"
	"github.com/jbweber/blockyard/internal/mount"
	"github.com/jbweber/blockyard/internal/output"
)

// refreshed runs setup plus an initial refresh and hands the snapshot and
// formatter to fn.
func refreshed(fn func(cfg *config.Config, snap *engine.Snapshot, f output.Formatter) error) error {
	cfg, _, eng, release, err := setup()
	if err != nil {
		return err
	}
	defer release()

	if err := output.ValidateFormat(outputFormat); err != nil {
		return err
	}
	formatter, err := output.NewFormatter(output.Options{
		Format:          output.Format(outputFormat),
		NoHeaders:       noHeaders,
		MinSegmentWidth: cfg.Output.MinSegmentWidth,
	})
	if err != nil {
		return err
	}

	if err := eng.Refresh(context.Background()); err != nil {
		return err
	}
	return fn(cfg, eng.Snapshot(), formatter)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List disks",
	Long: `List the disks known to the storage service.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML records
  -o json   JSON records`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return refreshed(func(cfg *config.Config, snap *engine.Snapshot, f output.Formatter) error {
			result, err := f.FormatDisks(snap.Disks)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Print(result)
			for _, fail := range snap.Failures {
				fmt.Printf("warning: skipped object %s\n", fail.String())
			}
			return nil
		})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <device>",
	Short: "Show a disk's volume tree",
	Long: `Show the nested volume tree of one disk: partitions, encrypted
containers, LVM volumes and filesystems.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := args[0]
		return refreshed(func(cfg *config.Config, snap *engine.Snapshot, f output.Formatter) error {
			root, ok := snap.Trees[device]
			if !ok {
				return fmt.Errorf("unknown disk: %s", device)
			}
			result, err := f.FormatTree(root)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Print(result)
			return nil
		})
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout <device>",
	Short: "Show a disk's byte layout",
	Long: `Show the gap-free byte layout of one disk: occupied, free and
anomalous regions, covering every byte of the disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := args[0]
		return refreshed(func(cfg *config.Config, snap *engine.Snapshot, f output.Formatter) error {
			segments, ok := snap.Layouts[device]
			if !ok {
				return fmt.Errorf("unknown disk: %s", device)
			}
			disk := -1
			for i, d := range snap.Disks {
				if d.Device == device {
					disk = i
					break
				}
			}
			if disk == -1 {
				return fmt.Errorf("unknown disk: %s", device)
			}

			result, err := f.FormatLayout(snap.Disks[disk], segments)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Print(result)
			for _, a := range snap.Anomalies[device] {
				fmt.Printf("warning: %s\n", a.String())
			}
			return nil
		})
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage <device>",
	Short: "Show mount state and usage of a volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := args[0]
		return refreshed(func(cfg *config.Config, snap *engine.Snapshot, f output.Formatter) error {
			node := findNode(snap, device)
			if node == nil {
				return fmt.Errorf("unknown volume: %s", device)
			}

			state := mount.Of(node)
			if !state.Mounted {
				fmt.Printf("%s: not mounted\n", device)
				return nil
			}

			fmt.Printf("%s: mounted at %s\n", device, state.Canonical())
			if sample := mount.Usage(state.Canonical()); sample != nil {
				fmt.Printf("used %s of %s\n",
					humanize.IBytes(sample.BytesUsed), humanize.IBytes(sample.BytesTotal))
			} else {
				fmt.Println("usage unavailable")
			}
			return nil
		})
	},
}

var smartCmd = &cobra.Command{
	Use:   "smart <device>",
	Short: "Show a drive's SMART summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device := args[0]
		cfg, client, eng, release, err := setup()
		if err != nil {
			return err
		}
		defer release()

		ctx := context.Background()
		if err := eng.Refresh(ctx); err != nil {
			return err
		}
		snap := eng.Snapshot()

		drivePath := ""
		for _, d := range snap.Disks {
			if d.Device == device {
				drivePath = d.DrivePath
				break
			}
		}
		if drivePath == "" {
			return fmt.Errorf("no drive known for %s", device)
		}

		opCtx, cancel := context.WithTimeout(ctx, cfg.MetadataTimeout())
		defer cancel()
		ata, err := client.SmartGet(opCtx, drivePath)
		if err != nil {
			return fmt.Errorf("failed to read SMART data: %w", err)
		}

		fmt.Printf("supported: %v  enabled: %v  failing: %v\n",
			ata.SmartSupported, ata.SmartEnabled, ata.SmartFailing)
		fmt.Printf("power-on hours: %d  temperature: %.1fK\n",
			ata.SmartPowerOnSeconds/3600, ata.SmartTemperature)
		if ata.SelftestStatus != "" {
			fmt.Printf("self-test: %s (%d%% remaining)\n", ata.SelftestStatus, ata.SelftestPercent)
		}
		return nil
	},
}
