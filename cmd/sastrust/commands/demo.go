package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"sastrust/internal/app"
	"sastrust/internal/log"
)

func demoCmd() *cobra.Command {
	var bobDevices int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Establish trust between Alice and Bob in-process",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.MkdirTemp("", "sastrust-demo-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)

			lb, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
			if err != nil {
				return err
			}
			defer lb.Close()

			return app.RunDemo(context.Background(), app.DemoConfig{
				Dir:        dir,
				Log:        lb,
				Out:        os.Stdout,
				SASDigits:  cfg.Protocol.SASDigits,
				BobDevices: bobDevices,
			})
		},
	}
	cmd.Flags().IntVar(&bobDevices, "bob-devices", 2, "number of devices Bob uses")
	return cmd
}
