package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sastrust/internal/crypto"
)

func contactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List trusted contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			contacts, err := a.Trust.Contacts()
			if err != nil {
				return err
			}
			for _, c := range contacts {
				name := c.Details.FullDisplayName()
				if name == "" {
					name = "(no name)"
				}
				fmt.Printf("%s  %s  trust=%s devices=%d\n",
					crypto.Fingerprint(c.Identity), name, c.TrustLevel(), len(c.Devices))
			}
			return nil
		},
	}
}
