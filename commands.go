package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"activity-sync/services"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "activity-sync",
		Short:         "activity-sync mirrors recreation booking sites into an activity store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to the YAML configuration file.")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging.")

	root.AddCommand(
		newSyncCmd(opts),
		newScheduleCmd(opts),
		newRunsCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// setup loads the config and opens the store for a command
func setup(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	a, err := newApp(opts.configPath, opts.verbose, cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}
	if err := a.openStore(cmd.Context()); err != nil {
		a.Close()
		return nil, fmt.Errorf("cannot open %s store: %w", a.cfg.Store, err)
	}
	return a, nil
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var insights bool
	cmd := &cobra.Command{
		Use:   "sync [source-id...]",
		Short: "Runs one sync for the given sources, or for every configured source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			sources, err := a.sources(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var report io.Writer
			if insights {
				report = out
			}
			syncer, err := a.newSyncer(report)
			if err != nil {
				return err
			}

			runs, err := syncer.RunAll(cmd.Context(), sources)
			for _, run := range runs {
				services.PrintRunReport(out, run)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&insights, "insights", true, "Print an insight report of each run's activities.")
	return cmd
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Syncs every configured source on an interval and serves Prometheus metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			syncer, err := a.newSyncer(nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				a.logger.Info("Serving metrics on %s/metrics", a.cfg.MetricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("Metrics server stopped: %v", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if _, err := syncer.RunAll(ctx, a.cfg.Sources); err != nil && ctx.Err() == nil {
					a.logger.Error("Scheduled sync finished with errors: %v", err)
				}
				a.logger.Info("Next sync in %v", interval)
				select {
				case <-ctx.Done():
					a.logger.Info("Scheduler stopped")
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 6*time.Hour, "Time between sync rounds.")
	return cmd
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "runs <source-id>",
		Short: "Lists the most recent sync runs of a source.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "markdown" {
				return fmt.Errorf("unknown format %q (want text or markdown)", format)
			}
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.store.ListRuns(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if format == "markdown" {
				return services.WriteRunsMarkdown(cmd.OutOrStdout(), args[0], runs)
			}
			services.PrintRunsTable(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show.")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or markdown.")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates the store's tables if they don't exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			a.Close()
			return nil
		},
	}
}
