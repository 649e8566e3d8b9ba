package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rajasatyajit/VesselWatch/config"
	"github.com/rajasatyajit/VesselWatch/internal/database"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/provider"
	"github.com/rajasatyajit/VesselWatch/internal/store"
)

func replayCmd(cfg func() *config.Config) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Feed a recorded CSV or JSON-lines file through the pipeline",
		Long: `Replays recorded position reports through validation, voyage
segmentation and alert evaluation, then prints the resulting voyages and
alerts. Files ending in .csv need a header row; anything else is read as
one JSON object per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cfg(), args[0], cmd.OutOrStdout(), quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the summary")
	return cmd
}

func runReplay(ctx context.Context, cfg *config.Config, path string, out io.Writer, quiet bool) error {
	st, closeStore, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Recorded time is not wall time, so the idle sweep stays off.
	replayCfg := *cfg
	replayCfg.Pipeline.SweepInterval = 0
	replayCfg.Pipeline.TrackedVessels = nil

	p, err := buildPipeline(&replayCfg, st, rdb, false)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(runCtx)
	}()

	start := time.Now()
	submitted, rejected := 0, 0
	skipped, replayErr := provider.NewFileReplay(path).Replay(ctx, func(r models.PositionReport) {
		if err := p.Submit(ctx, r); err != nil {
			rejected++
			logger.Debug("Replayed report rejected", "vessel_id", r.VesselID, "error", err)
			return
		}
		submitted++
	})

	cancel()
	if err := <-done; err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if replayErr != nil {
		return fmt.Errorf("replay %s: %w", path, replayErr)
	}

	s := p.Stats()
	fmt.Fprintf(out, "replayed %s in %s\n", path, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "reports: %d submitted, %d rejected, %d skipped\n", submitted, rejected, skipped)
	fmt.Fprintf(out, "pipeline: %d accepted, %d stale, %d persisted, %d voyages opened, %d closed, %d alerts\n",
		s.Accepted, s.Stale, s.Persisted, s.VoyagesOpened, s.VoyagesClosed, s.Alerts)
	if quiet {
		return nil
	}

	voyages, err := st.QueryVoyages(ctx, models.VoyageQuery{})
	if err != nil {
		return fmt.Errorf("query voyages: %w", err)
	}
	alerts, err := st.QueryAlerts(ctx, models.AlertQuery{})
	if err != nil {
		return fmt.Errorf("query alerts: %w", err)
	}
	printVoyages(out, voyages)
	printAlerts(out, alerts)
	return nil
}

func printVoyages(out io.Writer, voyages []models.Voyage) {
	fmt.Fprintf(out, "\nvoyages (%d)\n", len(voyages))
	if len(voyages) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VESSEL\tSTATE\tSTART\tFROM\tTO\tKM\tHOURS\tKNOTS")
	for _, v := range voyages {
		to := v.EndPort
		if v.IsActive() {
			to = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1f\t%.1f\t%.1f\n",
			v.VesselID, v.State, v.StartTime.UTC().Format(time.RFC3339),
			orDash(v.StartPort), orDash(to), v.DistanceKm, v.DurationHours, v.AvgSpeedKnots)
	}
	tw.Flush()
}

func printAlerts(out io.Writer, alerts []models.Alert) {
	fmt.Fprintf(out, "\nalerts (%d)\n", len(alerts))
	if len(alerts) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tVESSEL\tTYPE\tMESSAGE")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.TriggeredAt.UTC().Format(time.RFC3339), a.UserID, a.VesselID, a.AlertType, a.Message)
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
