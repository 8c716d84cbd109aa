package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swappiIndexer/internal/model"
	"swappiIndexer/internal/storage"
)

// LogSource is the chain access needed to stream logs.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Network string
	// ExpectedChainID, when non-zero, must match the node's chain id.
	ExpectedChainID   uint64
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	Retry             RetryPolicy

	// Factory and PairCreatedTopic enable pair discovery: pairs announced
	// by the factory are added to the address filter.
	Factory          common.Address
	PairCreatedTopic common.Hash
}

// Runner streams logs from the chain and writes them to storage.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	storage    storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore

	addresses  []common.Address
	known      map[common.Address]struct{}
	discovered []common.Address
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source LogSource, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:        cfg,
		source:     source,
		storage:    storageSink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled, cfg.Network),
		known:      make(map[common.Address]struct{}),
	}
	r.track(cfg.Addresses)
	return r
}

func (r *Runner) discovery() bool {
	return r.cfg.Factory != (common.Address{}) && r.cfg.PairCreatedTopic != (common.Hash{})
}

// track adds addresses to the filter and returns the ones not seen before.
func (r *Runner) track(addresses []common.Address) []common.Address {
	var added []common.Address
	for _, addr := range addresses {
		if _, ok := r.known[addr]; ok {
			continue
		}
		r.known[addr] = struct{}{}
		r.addresses = append(r.addresses, addr)
		added = append(added, addr)
	}
	return added
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("log source is nil")
	}
	if r.storage == nil {
		return errors.New("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return errors.New("batch size must be greater than zero")
	}
	if len(r.addresses) == 0 {
		return errors.New("at least one address is required")
	}

	chainID, err := retryValue(ctx, r.cfg.Retry, r.source.GetChainID)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()
	if r.cfg.ExpectedChainID != 0 && chainIDValue != r.cfg.ExpectedChainID {
		return fmt.Errorf("chain id %d does not match network %s (%d)", chainIDValue, r.cfg.Network, r.cfg.ExpectedChainID)
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := retryValue(ctx, r.cfg.Retry, r.source.LatestBlockNumber)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		pairs, err := ParseAddresses(cp.DiscoveredPairs)
		if err != nil {
			return fmt.Errorf("checkpoint pairs: %w", err)
		}
		r.discovered = r.track(pairs)
		if cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint",
				zap.Uint64("last_processed", cp.LastProcessedBlock),
				zap.Uint64("from", from),
				zap.Int("discovered_pairs", len(r.discovered)),
			)
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.fetchRange(ctx, blockRange)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		ingestedAt := time.Now().UTC()
		records := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			record := buildLogRecord(chainIDValue, log, 0, ingestedAt)
			if r.isDuplicate(record) {
				continue
			}
			record.Timestamp, err = retryValue(ctx, r.cfg.Retry, func(ctx context.Context) (uint64, error) {
				return r.source.BlockTimestamp(ctx, log.BlockNumber)
			})
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			records = append(records, record)
		}
		sortRecords(records)

		if err := r.storage.PutLogBatch(records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}

		if err := r.checkpoint.Save(Checkpoint{
			ChainID:            chainIDValue,
			LastProcessedBlock: blockRange.To,
			DiscoveredPairs:    r.discoveredHex(),
		}); err != nil {
			return err
		}

		r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

// fetchRange filters the range for the tracked addresses. Pairs created in
// the range are tracked and the range is fetched again for them, so their
// first events in the same range are not lost.
func (r *Runner) fetchRange(ctx context.Context, blockRange BlockRange) ([]types.Log, error) {
	logs, err := r.filterAdaptive(ctx, blockRange, r.addresses)
	if err != nil {
		return nil, err
	}
	if !r.discovery() {
		return logs, nil
	}

	pending := logs
	for len(pending) > 0 {
		var created []common.Address
		for _, log := range pending {
			if pair, ok := createdPair(log, r.cfg.Factory, r.cfg.PairCreatedTopic); ok {
				created = append(created, pair)
			}
		}
		added := r.track(created)
		if len(added) == 0 {
			break
		}
		r.discovered = append(r.discovered, added...)
		r.logger.Info("pairs discovered", zap.Int("count", len(added)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		pending, err = r.filterAdaptive(ctx, blockRange, added)
		if err != nil {
			return nil, err
		}
		logs = append(logs, pending...)
	}
	return logs, nil
}

// filterAdaptive retries a range and halves it when the node keeps failing,
// which is how oversized result sets are usually reported.
func (r *Runner) filterAdaptive(ctx context.Context, blockRange BlockRange, addresses []common.Address) ([]types.Log, error) {
	logs, err := retryValue(ctx, r.cfg.Retry, func(ctx context.Context) ([]types.Log, error) {
		logs, err := r.source.FilterLogs(ctx, blockRange.From, blockRange.To, addresses, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return logs, err
	})
	if err == nil {
		return logs, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	left, right, ok := blockRange.Halves()
	if !ok {
		return nil, err
	}
	r.logger.Info("split range", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	first, err := r.filterAdaptive(ctx, left, addresses)
	if err != nil {
		return nil, err
	}
	second, err := r.filterAdaptive(ctx, right, addresses)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

func (r *Runner) discoveredHex() []string {
	if len(r.discovered) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.discovered))
	for _, addr := range r.discovered {
		out = append(out, addr.Hex())
	}
	return out
}

func (r *Runner) isDuplicate(record model.LogRecord) bool {
	id := record.Key()
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
