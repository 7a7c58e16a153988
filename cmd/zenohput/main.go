// zenohput publishes a single message on a Zenoh channel. Companion tool for
// exercising zenohdump captures.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/InfraSecConsult/zenoh-extcap-go/internal/bus"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/config"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/logging"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/version"
)

func newRootCmd() *cobra.Command {
	var (
		channel    string
		locator    string
		configPath string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:          "zenohput <message>",
		Short:        "Publish one message on a Zenoh channel",
		Version:      version.GetFullVersion(),
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if locator != "" {
				cfg.Locator = locator
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log := logging.Setup(cfg.LogLevel, cfg.LogFile)

			ctx := cmd.Context()
			if cfg.Locator == "" {
				cfg.Locator, err = bus.Scout(ctx, cfg.ScoutAddr, cfg.ScoutTimeout)
				if err != nil {
					return err
				}
				log.Info().Str("locator", cfg.Locator).Msg("router discovered by scouting")
			}

			session, err := bus.Dial(ctx, cfg.Locator, log)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Publish(channel, []byte(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d bytes on %q\n", len(args[0]), channel)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&channel, "channel", "c", "*", "Channel to publish on")
	rootCmd.Flags().StringVar(&locator, "locator", "", "Router locator (host:port); empty enables scouting")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to the zenohdump config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
