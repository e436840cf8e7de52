package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sastrust/internal/app"
	"sastrust/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity and fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			w, err := app.NewWire(cfg)
			if err != nil {
				return err
			}
			defer w.Close()

			id, err := w.Identity.LoadIdentity(passphrase)
			if err != nil {
				return err
			}
			_, device, err := w.DB.LocalIdentity()
			if err != nil {
				return err
			}
			fmt.Printf("Identity: %s\nFingerprint: %s\nDevice: %s\n",
				id.Identity, crypto.Fingerprint(id.Identity), device)
			return nil
		},
	}
	return cmd
}
