package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swappiIndexer/internal/chain"
	"swappiIndexer/internal/config"
	"swappiIndexer/internal/dex"
	"swappiIndexer/internal/indexer"
	"swappiIndexer/internal/model"
	"swappiIndexer/internal/network"
	"swappiIndexer/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Swappi DEX indexer for Conflux eSpace",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("network", "mainnet", "network (mainnet, testnet)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch raw factory and pair logs",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "eSpace RPC URL")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated), default factory and known pairs")
	runCmd.Flags().StringSlice("topic0", nil, "topic0 signatures (comma-separated), default V2 events")
	runCmd.Flags().Bool("discover", true, "follow pairs created by the factory")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Duration("retry-max-wait", 30*time.Second, "maximum retry backoff")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")

	root.AddCommand(decodeCmd)

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply typed events to the entity store",
		RunE:  runApply,
	}

	applyCmd.Flags().String("rpc", "", "eSpace RPC URL for token metadata")
	applyCmd.Flags().String("in", "", "input typed events JSONL")
	applyCmd.Flags().String("pg-dsn", "", "Postgres DSN, empty keeps entities in memory")
	applyCmd.Flags().Int("batch-size", 1000, "events between progress saves")
	applyCmd.Flags().String("state-file", "", "optional local state file for progress tracking (requires --pg-dsn)")
	applyCmd.Flags().String("on-error", "abort", "error policy (abort, skip)")
	applyCmd.Flags().String("errors", "./data/apply_errors.jsonl", "skipped events JSONL")
	applyCmd.Flags().String("metrics-addr", "", "prometheus listen address, e.g. :9102")

	root.AddCommand(applyCmd)

	tokenCmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Resolve token metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	}
	tokenCmd.Flags().String("rpc", "", "eSpace RPC URL")
	root.AddCommand(tokenCmd)

	pairCmd := &cobra.Command{
		Use:   "pair <tokenA> <tokenB>",
		Short: "Look up a curated pair address",
		Args:  cobra.ExactArgs(2),
		RunE:  runPair,
	}
	root.AddCommand(pairCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
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

	if cfg.RPCURL == "" {
		return errors.New("rpc url is required")
	}

	registry, err := network.NewRegistry(cfg.Network)
	if err != nil {
		return err
	}

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		addresses = indexer.DefaultAddresses(registry)
	}

	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}
	decoder, err := dex.NewV2PairDecoder(dex.DecoderConfig{Factory: registry.Factory()})
	if err != nil {
		return err
	}
	if len(topic0) == 0 {
		topic0 = decoder.Topics()
	}

	runCfg := indexer.RunConfig{
		Network:           string(cfg.Network),
		ExpectedChainID:   cfg.Network.ChainID(),
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		Retry: indexer.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBackoff,
			MaxDelay:   cfg.RetryMaxWait,
		},
	}
	if cfg.Discover {
		factoryABI, err := dex.V2FactoryABI()
		if err != nil {
			return err
		}
		runCfg.Factory = registry.Factory()
		runCfg.PairCreatedTopic = factoryABI.Events[model.EventPairCreated].ID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	runner := indexer.NewRunner(runCfg, chainClient, storage.NewJsonlStorage(cfg.Out), logger)

	logger.Info("indexer start",
		zap.String("network", string(cfg.Network)),
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Bool("discover", cfg.Discover),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
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
