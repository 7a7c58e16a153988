// zenohdump is a Wireshark extcap plugin that captures Zenoh pub/sub traffic
// as raw pcap records. Wireshark drives it through the extcap flag protocol:
// interface listing, DLT and config queries on stdout, then a capture run
// writing pcap frames to the handed-over fifo.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/InfraSecConsult/zenoh-extcap-go/internal/bus"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/capture"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/config"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/extcap"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/journal"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/logging"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/pcap"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/version"
)

// DependencyProvider allows injection for testability
// (in production, use real implementations)
type DependencyProvider struct {
	Subscriber bus.Subscriber
	// Context replaces the signal-bound capture context in tests.
	Context context.Context
}

type options struct {
	listInterfaces bool
	listDLTs       bool
	listConfig     bool
	doCapture      bool

	iface         string
	extcapVersion string
	captureFilter string
	fifo          string
	channels      string

	locator     string
	configPath  string
	journalPath string
	logLevel    string
}

// newRootCmd wires up the CLI with the given dependencies
func newRootCmd(provider *DependencyProvider) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "zenohdump",
		Short:        "Wireshark extcap bridge for Zenoh pub/sub channels",
		Version:      version.GetFullVersion(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.listInterfaces:
				return printLines(cmd, extcap.Interfaces(version.GetVersion()), nil)
			case opts.listDLTs:
				lines, err := extcap.DLTs(opts.iface)
				return printLines(cmd, lines, err)
			case opts.listConfig:
				cfg, err := config.Load(opts.configPath)
				if err != nil {
					return err
				}
				lines, err := extcap.ConfigArgs(opts.iface, cfg.Locator)
				return printLines(cmd, lines, err)
			case opts.doCapture:
				return runCapture(provider, opts)
			}
			return cmd.Help()
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&opts.listInterfaces, "extcap-interfaces", false, "List the available interfaces")
	flags.StringVar(&opts.iface, "extcap-interface", extcap.InterfaceName, "Select a specific interface")
	flags.BoolVar(&opts.listDLTs, "extcap-dlts", false, "List DLTs of the selected interface")
	flags.BoolVar(&opts.listConfig, "extcap-config", false, "List configuration options of the selected interface")
	flags.BoolVar(&opts.doCapture, "capture", false, "Start capturing")
	flags.StringVar(&opts.extcapVersion, "extcap-version", "", "Wireshark version (informational)")
	flags.StringVar(&opts.captureFilter, "extcap-capture-filter", "", "Capture filter (accepted, unused)")
	flags.StringVar(&opts.fifo, "fifo", "", "Write the pcap stream to this path instead of stdout")
	flags.StringVar(&opts.channels, "channels", "*", "Comma-separated channels to listen on")
	flags.StringVar(&opts.locator, "locator", "", "Router locator (host:port); empty enables scouting")
	flags.StringVar(&opts.configPath, "config", "", "Path to the zenohdump config file")
	flags.StringVar(&opts.journalPath, "journal", "", "Path to the SQLite capture journal")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	return rootCmd
}

func printLines(cmd *cobra.Command, lines []string, err error) error {
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

// splitChannels turns the --channels value into a clean channel list.
func splitChannels(value string) []string {
	var channels []string
	for _, ch := range strings.Split(value, ",") {
		ch = strings.TrimSpace(ch)
		if ch != "" {
			channels = append(channels, ch)
		}
	}
	return channels
}

func runCapture(provider *DependencyProvider, opts *options) error {
	if opts.iface != extcap.InterfaceName {
		return fmt.Errorf("%w: %q", extcap.ErrUnknownInterface, opts.iface)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.locator != "" {
		cfg.Locator = opts.locator
	}
	if opts.journalPath != "" {
		cfg.Journal = opts.journalPath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	log := logging.Setup(cfg.LogLevel, cfg.LogFile)
	log.Info().
		Str("version", version.GetFullVersion()).
		Str("wireshark", opts.extcapVersion).
		Str("channels", opts.channels).
		Str("fifo", opts.fifo).
		Msg("starting capture")

	ctx := provider.Context
	if ctx == nil {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	subscriber := provider.Subscriber
	if subscriber == nil {
		locator := cfg.Locator
		if locator == "" {
			locator, err = bus.Scout(ctx, cfg.ScoutAddr, cfg.ScoutTimeout)
			if err != nil {
				return err
			}
			log.Info().Str("locator", locator).Msg("router discovered by scouting")
		}
		session, err := bus.Dial(ctx, locator, log)
		if err != nil {
			return err
		}
		defer session.Close()
		subscriber = session
	}

	writer, err := pcap.OpenSink(opts.fifo, cfg.Snaplen)
	if err != nil {
		return err
	}
	defer writer.Close()

	adapter := &capture.Adapter{
		Subscriber: subscriber,
		Writer:     writer,
		Log:        log,
		SessionID:  uuid.NewString(),
		Interface:  opts.iface,
	}
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer j.Close()
		adapter.Journal = j
	}

	return adapter.Run(ctx, splitChannels(opts.channels))
}

func main() {
	provider := &DependencyProvider{}
	rootCmd := newRootCmd(provider)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
