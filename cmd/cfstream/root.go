package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Noofbiz/cfstream/config"
	"github.com/Noofbiz/cfstream/datasets"
	"github.com/Noofbiz/cfstream/logging"
	"github.com/Noofbiz/cfstream/report"
)

// errStop ends a stream early once --max-batches is reached.
var errStop = errors.New("stop")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cfstream",
		Short:        "Stream ColabFit dataset records in training batches",
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.String("config", "cfstream.yaml", "path to YAML config file (missing file uses defaults)")
	f.String("base-url", "", "streaming service base URL")
	f.StringSlice("dataset", nil, "dataset id to stream (repeatable)")
	f.Duration("timeout", 0, "per-request HTTP timeout (0 = none)")
	f.String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newCountCmd(), newStreamCmd(), newPlotCmd())
	return cmd
}

// setup loads the config file and applies flags that were set explicitly.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	if flags.Changed("base-url") {
		cfg.Service.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("dataset") {
		cfg.Datasets, _ = flags.GetStringSlice("dataset")
	}
	if flags.Changed("timeout") {
		cfg.Service.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Lookup("batch-size") != nil && flags.Changed("batch-size") {
		cfg.Loader.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Loader.Workers, _ = flags.GetInt("workers")
	}
	if flags.Lookup("shuffle") != nil && flags.Changed("shuffle") {
		cfg.Loader.Shuffle, _ = flags.GetBool("shuffle")
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Loader.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Lookup("drop-last") != nil && flags.Changed("drop-last") {
		cfg.Loader.DropLast, _ = flags.GetBool("drop-last")
	}

	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.Logging.Level, cmd.ErrOrStderr()), nil
}

func newClient(cfg *config.Config, logger zerolog.Logger) *datasets.Client {
	return datasets.NewClient(cfg.Service.BaseURL,
		datasets.WithPaths(cfg.Service.ResolvePath, cfg.Service.FetchPath),
		datasets.WithTimeout(cfg.Service.Timeout),
		datasets.WithLogger(logger),
	)
}

func newCatalog(ctx context.Context, cfg *config.Config, client *datasets.Client) (*datasets.Catalog, error) {
	mode := datasets.InMemory
	if !cfg.ListInMemory {
		mode = datasets.OnDisk
	}
	return datasets.NewCatalog(ctx, client, cfg.Datasets, mode)
}

func addLoaderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("batch-size", datasets.DefaultBatchSize, "records per fetch request")
	f.Int("workers", datasets.DefaultWorkers, "batches fetched concurrently")
	f.Bool("shuffle", false, "shuffle record order")
	f.Int64("seed", 0, "shuffle seed (0 = time based)")
	f.Bool("drop-last", false, "drop a trailing short batch")
	f.Int("max-batches", 0, "stop after this many batches (0 = all)")
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Resolve the selected datasets and print the number of records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			cat, err := newCatalog(cmd.Context(), cfg, newClient(cfg, logger))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, id := range cat.Datasets().IDs() {
				fmt.Fprintf(out, "dataset %d: %s\n", i, id)
			}
			fmt.Fprintf(out, "records: %d\n", cat.Len())
			return nil
		},
	}
}

// stream runs one epoch and returns the collected summary.
func stream(cmd *cobra.Command) (*report.Summary, *datasets.Catalog, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	maxBatches, _ := cmd.Flags().GetInt("max-batches")

	ctx := cmd.Context()
	client := newClient(cfg, logger)
	cat, err := newCatalog(ctx, cfg, client)
	if err != nil {
		return nil, nil, err
	}

	opts := []datasets.LoaderOption{
		datasets.WithBatchSize(cfg.Loader.BatchSize),
		datasets.WithWorkers(cfg.Loader.Workers),
		datasets.WithLoaderLogger(logger),
		datasets.WithYieldContext(ctx),
	}
	if cfg.Loader.Shuffle {
		opts = append(opts, datasets.WithShuffle(cfg.Loader.Seed))
	}
	if cfg.Loader.DropLast {
		opts = append(opts, datasets.WithDropLast())
	}
	loader, err := datasets.NewLoader(cat, client, opts...)
	if err != nil {
		return nil, nil, err
	}

	logger.Info().
		Int("records", cat.Len()).
		Int("batches", loader.NumBatches()).
		Int("batch_size", loader.BatchSize).
		Int("workers", loader.Workers).
		Msg("streaming")

	summary := report.NewSummary(time.Now())
	err = loader.Iterate(ctx, func(b int, batch []*datasets.Structure) error {
		summary.Add(batch, time.Now())
		logger.Info().Int("batch", b).Int("records", len(batch)).Msg("batch received")
		if maxBatches > 0 && summary.Batches >= maxBatches {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, nil, err
	}
	return summary, cat, nil
}

func printSummary(w io.Writer, s *report.Summary, cat *datasets.Catalog) {
	fmt.Fprintf(w, "batches: %d\n", s.Batches)
	fmt.Fprintf(w, "structures: %d\n", s.Structures)
	fmt.Fprintf(w, "atoms: %d\n", s.Atoms)
	fmt.Fprintf(w, "mean batch time: %s\n", s.MeanBatchTime())
	if lo, hi, ok := s.EnergyRange(); ok {
		fmt.Fprintf(w, "energy range: [%g, %g]\n", lo, hi)
	}
	ids := cat.Datasets().IDs()
	for _, idx := range s.DatasetIndices() {
		fmt.Fprintf(w, "  %s: %d\n", ids[idx], s.PerDataset[idx])
	}
}

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream every batch once and report timing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, cat, err := stream(cmd)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary, cat)
			return nil
		},
	}
	addLoaderFlags(cmd)
	return cmd
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Stream the selected datasets and plot their energy distribution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, cat, err := stream(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			bins, _ := cmd.Flags().GetInt("bins")
			if err := report.EnergyHistogram(summary.Energies(), bins, out); err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary, cat)
			fmt.Fprintf(cmd.OutOrStdout(), "plot: %s\n", out)
			return nil
		},
	}
	addLoaderFlags(cmd)
	cmd.Flags().String("out", "plots/energy.png", "output image path")
	cmd.Flags().Int("bins", 50, "histogram bins")
	return cmd
}
