package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammLedger/internal/chain"
	"ammLedger/internal/config"
	"ammLedger/internal/engine"
	"ammLedger/internal/lookup"
	"ammLedger/internal/oracle"
	"ammLedger/internal/position"
	"ammLedger/internal/storage"
	"ammLedger/internal/store/postgres"
)

func runProcess(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients := chain.NewSet()
	defer clients.Close()
	callers := make(map[uint64]chain.Caller, len(cfg.Chains))
	for _, chainCfg := range cfg.Chains {
		if chainCfg.RPCURL == "" {
			logger.Warn("chain has no rpc url, prices resolve to unknown",
				zap.Uint64("chain_id", chainCfg.ChainID),
			)
			continue
		}
		if err := clients.Dial(ctx, chainCfg.ChainID, chainCfg.RPCURL); err != nil {
			return err
		}
		callers[chainCfg.ChainID] = clients.Client(chainCfg.ChainID)
	}

	entityStore, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer entityStore.Close()

	var lookupCache lookup.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := lookup.NewRedisCache(ctx, cfg.RedisAddr, "", 0)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()
		lookupCache = redisCache
	} else {
		lookupCache = lookup.NewFileCache(cfg.LookupCacheFile)
	}
	poolLookup, err := lookup.New(ctx, lookupCache, logger)
	if err != nil {
		return fmt.Errorf("load pool lookup: %w", err)
	}

	resolver := oracle.NewResolver(cfg.Chains, callers, logger)
	prices := oracle.NewPriceCache(resolver, entityStore, logger)
	reconciler := position.NewReconciler(entityStore, logger)

	eng := engine.New(entityStore, prices, poolLookup, reconciler, callers, cfg.Chains, logger)
	if cfg.SkippedOut != "" {
		eng.SetSkippedSink(storage.NewJsonlSink(cfg.SkippedOut))
	}
	processor := engine.NewProcessor(eng, entityStore, cfg.CursorName, cfg.BatchSize, cfg.CollectWorkers, logger)

	logger.Info("process start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("cursor", cfg.CursorName),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("collect_workers", cfg.CollectWorkers),
		zap.Int("chains", len(cfg.Chains)),
	)

	return processor.Run(ctx, cfg.Input)
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
