package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func dialogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dialogs",
		Short: "List pending dialogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dialogs, err := a.Trust.Dialogs()
			if err != nil {
				return err
			}
			if len(dialogs) == 0 {
				fmt.Println("No dialogs")
			}
			for _, d := range dialogs {
				printDialog(d)
			}
			return nil
		},
	}
}

func acceptCmd() *cobra.Command { return respondCmd("accept", true) }
func rejectCmd() *cobra.Command { return respondCmd("reject", false) }

func respondCmd(verb string, accept bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [dialog]",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an invitation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDialogID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Trust.RespondToInvite(context.Background(), id, accept)
		},
	}
}

func sasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sas [dialog] [digits]",
		Short: "Enter the code shown on your contact's device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDialogID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Trust.EnterSAS(context.Background(), id, args[1])
			if err != nil {
				return err
			}
			if d.BadAttempts > 0 {
				return fmt.Errorf("wrong code, try again")
			}
			return nil
		},
	}
}
