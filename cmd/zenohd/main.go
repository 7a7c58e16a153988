// zenohd is a standalone router for the peer protocol: it accepts publisher
// and subscriber connections, answers scout probes and fans published frames
// out to matching subscriptions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/InfraSecConsult/zenoh-extcap-go/internal/bus"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/logging"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/version"
)

func newRootCmd() *cobra.Command {
	var (
		listen   string
		scout    string
		logLevel string
		logFile  string
	)

	rootCmd := &cobra.Command{
		Use:          "zenohd",
		Short:        "Standalone router for Zenoh capture peers",
		Version:      version.GetFullVersion(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Setup(logLevel, logFile)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := bus.NewRouter(listen, scout, log)
			return router.Run(ctx)
		},
	}

	rootCmd.Flags().StringVar(&listen, "listen", bus.DefaultLocator, "TCP locator to listen on")
	rootCmd.Flags().StringVar(&scout, "scout", bus.DefaultScoutAddr, "UDP address for scout probes; empty disables")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Also write logs to this rotated file")
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
