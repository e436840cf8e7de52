package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// recv: fetch queued protocol messages and run them through the engine.
func recvCmd() *cobra.Command {
	var (
		limit int
		purge time.Duration
	)
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and process your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Relay == nil {
				return fmt.Errorf("no relay configured. use --relay")
			}

			n, err := a.Trust.Receive(context.Background(), limit)
			fmt.Printf("Processed %d message(s)\n", n)
			if err != nil {
				return err
			}
			if purge > 0 {
				removed, err := a.Trust.PurgePending(purge)
				if err != nil {
					return err
				}
				if removed > 0 {
					fmt.Printf("Dropped %d stale parked message(s)\n", removed)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages to fetch (0 for all)")
	cmd.Flags().DurationVar(&purge, "purge-older", 0, "drop parked messages older than this")
	return cmd
}
