// Command fplpipe collects FPL and FBRef season data, reconciles player
// identities and ships the results to object storage and the warehouse.
//
// Usage:
//
//	fplpipe run --season 2024-25
//	fplpipe run-seasons 2021-22 2022-23 2023-24
//	fplpipe reconcile --season 2023-24
//	fplpipe upload --season 2024-25 --full
//	fplpipe load --season 2024-25
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/objectstore"
	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/warehouse"
	"github.com/charleschow/fpl-pipeline/internal/config"
	"github.com/charleschow/fpl-pipeline/internal/process"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
	"github.com/spf13/cobra"
)

type app struct {
	cfg    *config.Config
	season string
	runner *process.Runner
}

func main() {
	a := &app{cfg: config.Load()}
	telemetry.Init(telemetry.ParseLogLevel(a.cfg.LogLevel))

	root := &cobra.Command{
		Use:           "fplpipe",
		Short:         "FPL and FBRef season data pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Season = a.season
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.runner = process.Build(a.cfg, os.Stdin, os.Stdout)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.season, "season", a.cfg.Season, "Season label, e.g. 2024-25")

	root.AddCommand(
		a.scrapeCmd(),
		a.idsCmd(),
		a.reconcileCmd(),
		a.matchLogsCmd(),
		a.gameweeksCmd(),
		a.finalizeCmd(),
		a.runCmd(),
		a.runSeasonsCmd(),
		a.uploadCmd(),
		a.downloadCmd(),
		a.loadCmd(),
		a.predictionsCmd(),
		a.pingCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start := time.Now()
	err := root.ExecuteContext(ctx)
	stop()

	telemetry.LogSummary()
	if err != nil {
		telemetry.Errorf("%v", err)
		os.Exit(1)
	}
	telemetry.Infof("Done in %s", time.Since(start).Round(time.Second))
}

func (a *app) scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Collect FPL files for the season (live API or archive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runner.CollectFPL(cmd.Context(), a.season)
		},
	}
}

func (a *app) idsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "Scrape FBRef team pages into fbref_ids.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runner.CollectFBRefIDs(cmd.Context(), a.season)
		},
	}
}

func (a *app) reconcileCmd() *cobra.Command {
	var interactive, manual bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match FPL players to FBRef ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("interactive") || cmd.Flags().Changed("manual") {
				a.cfg.Interactive = a.cfg.Interactive || interactive
				a.cfg.ManualFallback = a.cfg.ManualFallback || manual
				a.runner = process.Build(a.cfg, os.Stdin, os.Stdout)
			}
			res, err := a.runner.Reconcile(a.season)
			if err != nil {
				return err
			}
			if len(res.Missing) > 0 {
				telemetry.Warnf("%d players still unmatched, see %s", len(res.Missing),
					filepath.Join(a.runner.SeasonDir(a.season), "missing_fbref_ids.json"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Prompt for sift pass selections")
	cmd.Flags().BoolVar(&manual, "manual", false, "Prompt for FBRef profile URLs as a last resort")
	return cmd
}

func (a *app) matchLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matchlogs",
		Short: "Fetch FBRef match logs for every matched player",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runner.CollectMatchLogs(cmd.Context(), a.season)
		},
	}
}

func (a *app) gameweeksCmd() *cobra.Command {
	var gw, only int
	cmd := &cobra.Command{
		Use:   "gameweeks",
		Short: "Rebuild gws/gw_N.csv and merged_gw.csv from player histories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gw <= 0 {
				current, err := a.runner.CurrentGameweek(cmd.Context())
				if err != nil {
					return err
				}
				gw = current
			}
			if only > 0 {
				return a.runner.Gameweek(a.season, only, gw)
			}
			return a.runner.Gameweeks(a.season, gw)
		},
	}
	cmd.Flags().IntVar(&gw, "gw", 0, "Last gameweek to build (default: current gameweek from the API)")
	cmd.Flags().IntVar(&only, "only", 0, "Rebuild just this gameweek before merging")
	return cmd
}

func (a *app) finalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize",
		Short: "Apply the final CSV edits for the season",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runner.Finalize(a.season)
		},
	}
}

func (a *app) runCmd() *cobra.Command {
	var skipIDs bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline for one season",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runner.RunSeason(cmd.Context(), a.season, !skipIDs)
		},
	}
	cmd.Flags().BoolVar(&skipIDs, "skip-ids", false, "Reuse fbref_ids.csv and the existing player mapping")
	return cmd
}

func (a *app) runSeasonsCmd() *cobra.Command {
	var skipIDs bool
	cmd := &cobra.Command{
		Use:   "run-seasons SEASON...",
		Short: "Run the pipeline for several seasons, reconciling oldest first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runner.RunSeasons(cmd.Context(), args, !skipIDs)
		},
	}
	cmd.Flags().BoolVar(&skipIDs, "skip-ids", false, "Reuse fbref_ids.csv and the existing player mappings")
	return cmd
}

func (a *app) store(ctx context.Context) (*objectstore.Store, error) {
	if a.cfg.S3Bucket == "" {
		return nil, &config.Error{Key: "S3_BUCKET", Value: "", Rule: "required for object storage commands"}
	}
	return objectstore.New(ctx, a.cfg.S3Bucket, a.cfg.S3Prefix)
}

func (a *app) uploadCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload season files to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := s.UploadSeason(cmd.Context(), a.cfg.DataDir, a.season, !full)
			if err != nil {
				return err
			}
			telemetry.Infof("uploaded %d files, %d missing locally", len(rep.Done), len(rep.Missing))
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Upload every season file rather than the weekly update set")
	return cmd
}

func (a *app) downloadCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download season files from S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.runner.SeasonDir(a.season)
			}
			rep, err := s.Download(cmd.Context(), objectstore.FullFiles, a.season, dir)
			if err != nil {
				return err
			}
			telemetry.Infof("downloaded %d files to %s, %d not in the bucket", len(rep.Done), dir, len(rep.Missing))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Local directory (default: the season's data directory)")
	return cmd
}

func (a *app) openWarehouse(ctx context.Context) (*warehouse.Warehouse, error) {
	if a.cfg.WarehouseDSN == "" {
		return nil, &config.Error{Key: "WAREHOUSE_DSN", Value: "", Rule: "required for warehouse commands"}
	}
	return warehouse.Open(ctx, a.cfg.WarehouseDSN)
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load season CSVs into the warehouse staging tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.openWarehouse(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()
			results, err := w.LoadSeason(cmd.Context(), a.cfg.DataDir, a.season)
			if err != nil {
				return err
			}
			for _, r := range results {
				telemetry.Infof("%-22s %6d rows  run=%s", r.Table, r.Rows, r.RunID)
			}
			return nil
		},
	}
}

var predictionTables = map[string]string{
	"goals":   warehouse.GoalPredictions,
	"assists": warehouse.AssistPredictions,
}

func (a *app) predictionsCmd() *cobra.Command {
	var kind, file string
	cmd := &cobra.Command{
		Use:   "predictions",
		Short: "Write model predictions into the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, ok := predictionTables[kind]
			if !ok {
				return fmt.Errorf("unknown prediction kind %q (want goals or assists)", kind)
			}
			preds, err := warehouse.ReadPredictions(file)
			if err != nil {
				return err
			}
			w, err := a.openWarehouse(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()
			n, err := w.WritePredictions(cmd.Context(), table, a.season, preds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d %s predictions for %s\n", n, kind, a.season)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "goals", "Prediction kind: goals or assists")
	cmd.Flags().StringVar(&file, "file", "", "CSV with gw, id_fpl, player, predicted")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
