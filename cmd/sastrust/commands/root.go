package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sastrust/internal/app"
	"sastrust/internal/domain"
)

var (
	home       string
	passphrase string
	relayURL   string
	configFile string
	logLevel   string

	cfg *app.Config
)

// Execute runs the CLI.
func Execute() error {
	root := &cobra.Command{
		Use:          "sastrust",
		Short:        "Establish trust between identities by comparing short codes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if configFile != "" {
				if cfg, err = app.LoadFile(configFile); err != nil {
					return err
				}
			} else {
				cfg = new(app.Config)
			}
			if home != "" {
				cfg.Home = home
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			if logLevel != "" {
				if cfg.Logging == nil {
					cfg.Logging = new(app.Logging)
				}
				cfg.Logging.Level = logLevel
			}
			return cfg.FixupAndValidate()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "device directory (default ~/.sastrust)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (ERROR, WARNING, NOTICE, INFO, DEBUG)")

	root.AddCommand(
		initCmd(), linkCmd(), fingerprintCmd(), registerCmd(),
		inviteCmd(), recvCmd(), dialogsCmd(), acceptCmd(), rejectCmd(), sasCmd(),
		contactsCmd(), instancesCmd(), abortCmd(), demoCmd(),
	)
	return root.Execute()
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}

// openApp unlocks the device and prints every dialog change.
func openApp() (*app.App, error) {
	if err := requirePassphrase(); err != nil {
		return nil, err
	}
	return app.Open(cfg, passphrase, printDialog)
}

func printDialog(d domain.Dialog) {
	switch d.Category {
	case domain.DialogDelete:
		fmt.Printf("Dialog %s closed\n", d.ID)
	case domain.DialogSasExchange:
		fmt.Printf("Dialog %s: %s with %s, tell them %s", d.ID, d.Category, contactLabel(d), d.SasToDisplay)
		if d.BadAttempts > 0 {
			fmt.Printf(" (wrong code entered %d times)", d.BadAttempts)
		}
		fmt.Println()
	default:
		fmt.Printf("Dialog %s: %s with %s\n", d.ID, d.Category, contactLabel(d))
	}
}

func contactLabel(d domain.Dialog) string {
	if d.ContactName != "" {
		return d.ContactName
	}
	return d.ContactIdentity.Short()
}

func parseDialogID(s string) (domain.DialogID, error) {
	var id domain.DialogID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return id, fmt.Errorf("bad dialog id %q: %w", s, err)
	}
	return id, nil
}
