package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/blockyard/internal/config"
	"github.com/jbweber/blockyard/internal/engine"
	"github.com/jbweber/blockyard/internal/udisks"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath   string
	outputFormat string
	noHeaders    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "blockyard",
	Short: "Blockyard - storage topology and device management tool",
	Long: `Blockyard maintains a live model of the host's storage devices, sourced
from the system storage-management service, and runs validated operations
(mount, unlock, format, resize, partitioning, power) against it.

It never touches block devices itself; all mutations go through the
privileged storage service.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, yaml, json")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "omit headers in table output")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(smartCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(opCommands()...)
}

// setup loads the config, acquires the shared service client and builds a
// fresh engine. The returned release must be called when done.
func setup() (*config.Config, *udisks.Client, *engine.Engine, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if outputFormat == "" {
		outputFormat = cfg.Output.Format
	}

	client, err := udisks.Acquire(cfg.BusAddress)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	eng := engine.New(client)
	release := func() { _ = client.Release() }
	return cfg, client, eng, release, nil
}
