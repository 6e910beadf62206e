package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/stagefetch"
)

var (
	fetchSources   []string
	fetchLayout    string
	fetchRateLimit string
	fetchTempDir   string
	fetchMetrics   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and stage the dataset unless a previous run completed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("source") {
			cfg.Sources = fetchSources
		}
		if flags.Changed("layout") {
			cfg.Layout = fetchLayout
		}
		if flags.Changed("rate-limit") {
			cfg.RateLimit = fetchRateLimit
		}
		if flags.Changed("temp-dir") {
			cfg.TempDir = fetchTempDir
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		sources, err := newResolver(cmd.Context(), cfg).ResolveAll(cfg.Sources)
		if err != nil {
			return err
		}

		metrics := &stagefetch.BasicMetricsCollector{}
		ds, err := newDataset(cfg, sources,
			stagefetch.WithLogger(logger),
			stagefetch.WithMetricsCollector(metrics),
		)
		if err != nil {
			return err
		}
		if err := ds.Fetch(cmd.Context(), cmd.OutOrStdout()); err != nil {
			return err
		}
		if fetchMetrics {
			printStats(cmd, metrics.GetStats())
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the staged splits and their label counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		ds, err := newDataset(cfg, nil, stagefetch.WithLogger(logger))
		if err != nil {
			return err
		}
		if !ds.Done() {
			return fmt.Errorf("%s: %w, run stagefetch fetch first", cfg.BaseDir, stagefetch.ErrNotFetched)
		}
		return ds.Info(cmd.OutOrStdout())
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every split folder so the next fetch starts over",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		ds, err := newDataset(cfg, nil, stagefetch.WithLogger(logger))
		if err != nil {
			return err
		}
		if err := ds.Clean(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed splits under %s\n", cfg.BaseDir)
		return nil
	},
}

func printStats(cmd *cobra.Command, s stagefetch.BasicMetricsStats) {
	fmt.Fprintf(cmd.OutOrStdout(), "attempts=%d failed=%d downloaded=%s registrations=%d cached=%d\n",
		s.AttemptCount, s.AttemptErrors, humanize.Bytes(uint64(s.DownloadBytes)), s.RegistrationCount, s.FetchCached)
}

func init() {
	fetchCmd.Flags().StringSliceVarP(&fetchSources, "source", "s", nil, "Archive location, tried in order (repeatable)")
	fetchCmd.Flags().StringVar(&fetchLayout, "layout", "", "Record layout (flat, hierarchical)")
	fetchCmd.Flags().StringVar(&fetchRateLimit, "rate-limit", "", "Download rate limit per second, e.g. 10MB")
	fetchCmd.Flags().StringVar(&fetchTempDir, "temp-dir", "", "Directory for the downloaded archive")
	fetchCmd.Flags().BoolVar(&fetchMetrics, "metrics", false, "Print fetch counters when done")
}
