package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sastrust/internal/domain"
)

func inviteCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "invite [identity]",
		Short: "Invite a contact to establish trust",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contact, err := domain.ParseCryptoIdentityHex(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			instance, err := a.Trust.Invite(context.Background(), contact, name)
			if err != nil {
				return err
			}
			fmt.Printf("Invitation sent (instance %s)\n", instance)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name to show for the contact")
	return cmd
}
