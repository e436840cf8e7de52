package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sastrust/internal/app"
	"sastrust/internal/crypto"
)

func linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link [keystore]",
		Short: "Add this device to the identity in another device's keystore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			w, err := app.NewWire(cfg)
			if err != nil {
				return err
			}
			defer w.Close()

			id, err := w.Identity.LinkDevice(passphrase, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Device linked to %s\nFingerprint: %s\n", id.Identity.Short(), crypto.Fingerprint(id.Identity))
			fmt.Println("Run register on every device so they learn about each other.")
			return nil
		},
	}
}
