package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swappiIndexer/internal/chain"
	"swappiIndexer/internal/config"
	"swappiIndexer/internal/dex"
	"swappiIndexer/internal/entity"
	"swappiIndexer/internal/mapping"
	"swappiIndexer/internal/metrics"
	"swappiIndexer/internal/network"
	"swappiIndexer/internal/storage"
	"swappiIndexer/internal/storage/memory"
	"swappiIndexer/internal/storage/postgres"
)

func runApply(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadApply(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return errors.New("input path is required")
	}
	policy, err := mapping.ParseErrorPolicy(cfg.OnError)
	if err != nil {
		return err
	}
	if err := checkStores(cfg.PGDSN, cfg.StateFile); err != nil {
		return err
	}
	if cfg.PGDSN == "" {
		logger.Warn("no pg-dsn: entities and progress are kept in memory only")
	}

	registry, err := network.NewRegistry(cfg.Network)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var caller dex.ContractCaller
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		caller = chainClient
	} else {
		logger.Warn("no rpc url: only tokens with static overrides resolve")
	}

	resolver, err := dex.NewTokenResolver(cfg.Network, caller, logger)
	if err != nil {
		return err
	}

	var (
		store      storage.EntityStore
		stateStore mapping.StateStore
	)
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store = pg
		stateStore = &mapping.DBStateStore{Store: pg, Name: "apply:" + string(cfg.Network)}
	} else {
		store = memory.NewEntityStore()
	}
	if cfg.StateFile != "" {
		stateStore = &mapping.FileStateStore{Path: cfg.StateFile}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
	}

	var sink mapping.ErrorSink
	if policy == mapping.PolicySkip && cfg.Errors != "" {
		errWriter, err := storage.NewJSONLWriter(cfg.Errors, true)
		if err != nil {
			return err
		}
		defer errWriter.Close()
		sink = errWriter
	}

	manager := entity.NewManager(store, resolver, logger)
	handler := mapping.NewHandler(manager, registry, m, logger)
	applier := mapping.NewApplier(mapping.Config{
		BatchSize:  cfg.BatchSize,
		OnError:    policy,
		StateStore: stateStore,
		Errors:     sink,
	}, handler, m, logger)

	logger.Info("apply start",
		zap.String("network", string(cfg.Network)),
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("state_file", cfg.StateFile),
		zap.String("on_error", string(policy)),
		zap.Int("batch_size", cfg.BatchSize),
	)

	return applier.Run(ctx, cfg.Input)
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", zap.Error(err))
	}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

// checkStores rejects a state file without a database. The memory store starts
// empty on every run, so a resumed cursor would skip events whose entities
// were never rebuilt.
func checkStores(pgDSN, stateFile string) error {
	if stateFile != "" && pgDSN == "" {
		return errors.New("state-file requires pg-dsn: the memory store starts empty on every run")
	}
	return nil
}
