package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sastrust/internal/app"
	"sastrust/internal/domain"
)

func initCmd() *cobra.Command {
	var details domain.CoreDetails
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			w, err := app.NewWire(cfg)
			if err != nil {
				return err
			}
			defer w.Close()

			id, fp, err := w.Identity.GenerateIdentity(passphrase, details)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nIdentity: %s\nFingerprint: %s\n", id.Identity, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&details.FirstName, "first-name", "", "first name shown to contacts")
	cmd.Flags().StringVar(&details.LastName, "last-name", "", "last name shown to contacts")
	cmd.Flags().StringVar(&details.Company, "company", "", "company shown to contacts")
	cmd.Flags().StringVar(&details.Position, "position", "", "position shown to contacts")
	return cmd
}
