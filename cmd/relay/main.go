package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"sastrust/internal/log"
	"sastrust/internal/relay"
)

func main() {
	var (
		listen   string
		logFile  string
		logLevel string
	)
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Store-and-forward relay for sastrust devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := log.New(logFile, logLevel, false)
			if err != nil {
				return err
			}
			defer lb.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := relay.NewServer(lb.GetLogger("relay"), reg)

			lb.GetLogger("relay").Noticef("relay listening on %s", listen)
			return http.ListenAndServe(listen, srv)
		},
	}
	root.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	root.Flags().StringVar(&logFile, "log-file", "", "log file (default stdout)")
	root.Flags().StringVar(&logLevel, "log-level", "NOTICE", "log level")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
