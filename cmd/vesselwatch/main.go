package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rajasatyajit/VesselWatch/config"
	"github.com/rajasatyajit/VesselWatch/internal/geocoder"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg      *config.Config
		logLevel string
	)

	root := &cobra.Command{
		Use:   "vesselwatch",
		Short: "VesselWatch - vessel position ingestion, voyage tracking and alerting",
		Long: `Ingests AIS position reports from polling and streaming providers,
segments them into voyages, evaluates subscriber alerts and fans out
notifications. Configuration is read from the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if logLevel != "" {
				loaded.Logging.Level = logLevel
			}
			logger.Init(loaded.Logging.Level, loaded.Logging.Format)
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	current := func() *config.Config { return cfg }
	root.AddCommand(serveCmd(current))
	root.AddCommand(replayCmd(current))
	root.AddCommand(portsCmd(current))
	root.AddCommand(versionCmd())
	return root
}

// portsCmd prints the port table used for nearest-port resolution
func portsCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the reference ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			idx, err := geocoder.Load(c.Ports.File, c.Ports.RadiusKm)
			if err != nil {
				return fmt.Errorf("load ports: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCOUNTRY\tLATITUDE\tLONGITUDE")
			for _, p := range idx.Ports() {
				fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\n", p.Name, p.Country, p.Latitude, p.Longitude)
			}
			fmt.Fprintf(tw, "\n%d ports, radius %.0f km\n", len(idx.Ports()), idx.RadiusKm())
			return tw.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vesselwatch %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		},
	}
}
