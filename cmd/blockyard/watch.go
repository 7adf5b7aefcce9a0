package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbweber/blockyard/internal/engine"
	"github.com/jbweber/blockyard/internal/notify"
	"github.com/jbweber/blockyard/internal/output"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow storage topology changes",
	Long: `Subscribe to the storage service's change notifications and print the
topology after every change.

There is no polling fallback: if the subscription cannot be established or
is dropped by the transport, watch reports the degraded state and exits
non-zero. One explicit resubscribe is attempted after a drop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, eng, release, err := setup()
		if err != nil {
			return err
		}
		defer release()

		formatter, err := output.NewFormatter(output.Options{
			Format:          output.FormatTable,
			NoHeaders:       noHeaders,
			MinSegmentWidth: cfg.Output.MinSegmentWidth,
		})
		if err != nil {
			return err
		}
		eng.OnUpdate = func(snap *engine.Snapshot) {
			if text, err := formatter.FormatDisks(snap.Disks); err == nil {
				fmt.Print(text)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		resubscribed := false
		for {
			sub, err := notify.Subscribe(client)
			if err != nil {
				return fmt.Errorf("degraded: change subscription unavailable: %w", err)
			}

			err = eng.Run(ctx, sub)
			sub.Close()

			switch {
			case errors.Is(err, context.Canceled):
				return nil
			case errors.Is(err, notify.ErrSubscriptionLost) && !resubscribed:
				// One explicit resubscribe; never a timer-driven loop.
				fmt.Println("subscription lost, resubscribing once")
				resubscribed = true
			default:
				return err
			}
		}
	},
}
