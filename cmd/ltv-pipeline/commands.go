package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"example.com/ltvpipeline/internal/config"
	"example.com/ltvpipeline/internal/logger"
	"example.com/ltvpipeline/internal/metrics"
	"example.com/ltvpipeline/internal/pipeline"
	"example.com/ltvpipeline/internal/storage"
)

// flag name -> config key
var flagKeys = map[string]string{
	"input":            "input",
	"output":           "output",
	"top-n":            "top_n",
	"reset":            "reset",
	"store":            "store.driver",
	"sqlite-path":      "store.sqlite_path",
	"postgres-dsn":     "store.postgres_dsn",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"metrics-textfile": "metrics.textfile",
}

func newRootCmd() *cobra.Command {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:   "ltv-pipeline",
		Short: "Ingest customer activity events and rank customers by lifetime value",
		Long: `ltv-pipeline loads CUSTOMER, SITE_VISIT, IMAGE and ORDER events into a
relational store, derives each customer's lifetime value, and writes the
top N customers as a JSON array of [customer_id, clv] pairs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("output", "", "result path, - for stdout (default output/output.txt)")
	pf.Int("top-n", 0, "number of customers to return (default 3)")
	pf.String("store", "", "store driver: sqlite, memory or postgres (default sqlite)")
	pf.String("sqlite-path", "", "sqlite database path (default :memory:)")
	pf.String("postgres-dsn", "", "postgres connection string")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "console or json")
	pf.String("metrics-textfile", "", "write run metrics to this file in Prometheus text format")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest an event file, rebuild LTV and write the top N customers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), v)
		},
	}
	runCmd.Flags().String("input", "", "event file, - for stdin (default input/input.txt)")
	runCmd.Flags().Bool("reset", false, "empty every table before ingesting")

	topCmd := &cobra.Command{
		Use:   "top",
		Short: "Write the top N customers from the LTV records already stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTop(cmd.Context(), v)
		},
	}

	rootCmd.AddCommand(runCmd, topCmd)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, v)
	}
	return rootCmd
}

// bindFlags lets explicitly set flags override file and env values.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// setup loads config and builds the logger.
func setup(v *viper.Viper) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

func openStore(ctx context.Context, cfg config.Config, reset bool, log *zap.Logger) (storage.Store, error) {
	s, err := pipeline.OpenStore(ctx, cfg.Store, reset, log)
	if err != nil {
		log.Error("unable to open store", zap.Error(err))
		return nil, err
	}
	return s, nil
}

// runPipeline parses the whole input before the store is opened, so a bad
// input never reaches a --reset.
func runPipeline(ctx context.Context, v *viper.Viper) error {
	cfg, log, err := setup(v)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	events, err := pipeline.ReadEvents(cfg.InputPath)
	if err != nil {
		log.Error("unable to load events", zap.String("input", cfg.InputPath), zap.Error(err))
		return err
	}

	s, err := openStore(ctx, cfg, cfg.Reset, log)
	if err != nil {
		return err
	}
	defer s.Close()

	m := metrics.New()
	res, err := pipeline.New(s, log, m).Run(ctx, events, cfg.TopN)
	if err != nil {
		log.Error("pipeline failed", zap.Error(err))
		return err
	}

	if err := pipeline.WriteTop(cfg.OutputPath, res.Top); err != nil {
		log.Error("unable to write result", zap.String("output", cfg.OutputPath), zap.Error(err))
		return err
	}
	log.Info("result written", zap.String("output", cfg.OutputPath), zap.Int("entries", len(res.Top)))

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("metrics not written", zap.Error(err))
		}
	}
	return nil
}

// runTop reads LTV records left by an earlier run, so it needs a store that
// outlives the process.
func runTop(ctx context.Context, v *viper.Viper) error {
	cfg, log, err := setup(v)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Store.Persistent() {
		return fmt.Errorf("top needs a persistent store: driver %q with sqlite path %q keeps no records between runs",
			cfg.Store.Driver, cfg.Store.SQLitePath)
	}

	s, err := openStore(ctx, cfg, false, log)
	if err != nil {
		return err
	}
	defer s.Close()

	top, err := pipeline.New(s, log, nil).Top(ctx, cfg.TopN)
	if err != nil {
		log.Error("unable to rank customers", zap.Error(err))
		return err
	}
	if err := pipeline.WriteTop(cfg.OutputPath, top); err != nil {
		log.Error("unable to write result", zap.String("output", cfg.OutputPath), zap.Error(err))
		return err
	}
	return nil
}
