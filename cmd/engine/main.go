package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "engine",
		Short:        "USD valuation and aggregation engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Apply a decoded event stream to the aggregate entities",
		RunE:  runProcess,
	}

	processCmd.Flags().String("in", "", "input decoded events JSONL")
	processCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	processCmd.Flags().String("redis-addr", "", "Redis address for the pool lookup cache (empty uses the file cache)")
	processCmd.Flags().String("lookup-cache-file", "./data/pool_lookup.json", "pool lookup file cache path")
	processCmd.Flags().String("skipped-out", "", "optional JSONL sidecar for skipped events")
	processCmd.Flags().String("cursor-name", "engine", "cursor name for resume")
	processCmd.Flags().Int("batch-size", 256, "events per batch")
	processCmd.Flags().Int("collect-workers", 8, "concurrent collect workers per batch")
	processCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(processCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
