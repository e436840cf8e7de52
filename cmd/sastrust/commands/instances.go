package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sastrust/internal/domain"
)

func instancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instances",
		Short: "List running protocol instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.Trust.Instances()
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Printf("%s  state=%d  updated=%s\n", r.UID, r.StateID, r.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func abortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort [instance]",
		Short: "Abandon a running protocol instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := domain.ParseUID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Trust.Abort(uid)
		},
	}
}
