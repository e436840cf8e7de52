package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sastrust/internal/app"
)

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Announce this device to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			w, err := app.NewWire(cfg)
			if err != nil {
				return err
			}
			defer w.Close()
			if w.Relay == nil {
				return fmt.Errorf("no relay configured. use --relay")
			}

			devices, err := w.Identity.RegisterDevice(context.Background(), passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Registered with relay; identity has %d device(s):\n", len(devices))
			for _, d := range devices {
				fmt.Printf("  %s\n", d)
			}
			return nil
		},
	}
	return cmd
}
