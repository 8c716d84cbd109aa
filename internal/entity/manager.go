package entity

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swappiIndexer/internal/model"
	"swappiIndexer/internal/network"
	"swappiIndexer/internal/numeric"
	"swappiIndexer/internal/storage"
)

// Entity kinds used in integrity errors.
const (
	KindPair     = "pair"
	KindToken    = "token"
	KindBundle   = "bundle"
	KindFactory  = "factory"
)

// MetadataResolver resolves ERC20 metadata for new tokens.
type MetadataResolver interface {
	Resolve(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// Manager creates and mutates long-lived entities. It assumes a single
// writer applying events in chain order.
type Manager struct {
	store    storage.EntityStore
	resolver MetadataResolver
	logger   *zap.Logger
}

func NewManager(store storage.EntityStore, resolver MetadataResolver, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, resolver: resolver, logger: logger}
}

// Store returns the underlying entity store.
func (m *Manager) Store() storage.EntityStore {
	return m.store
}

// PositionID is the id of the position of user in pair.
func PositionID(pair, user common.Address) string {
	return network.Key(pair) + "-" + network.Key(user)
}

// SnapshotID is the id of a position snapshot taken at timestamp.
func SnapshotID(positionID string, timestamp uint64) string {
	return positionID + strconv.FormatUint(timestamp, 10)
}

// EnsureUser creates the user with zero usdSwapped if absent.
func (m *Manager) EnsureUser(ctx context.Context, addr common.Address) (*model.User, error) {
	id := network.Key(addr)
	user, err := m.store.GetUser(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}

	user = &model.User{ID: id, UsdSwapped: numeric.Zero}
	if err := m.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save user %s: %w", id, err)
	}
	return user, nil
}

// EnsureLiquidityPosition returns the position of user in pair, creating it
// with a zero balance on first sight. Creation bumps the pair's provider count
// exactly once. The pair must already exist.
func (m *Manager) EnsureLiquidityPosition(ctx context.Context, pairAddr, userAddr common.Address) (*model.LiquidityPosition, error) {
	id := PositionID(pairAddr, userAddr)
	position, err := m.store.GetLiquidityPosition(ctx, id)
	if err == nil {
		return position, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load position %s: %w", id, err)
	}

	pairID := network.Key(pairAddr)
	pair, err := m.store.GetPair(ctx, pairID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, integrity(KindPair, pairID, err)
		}
		return nil, fmt.Errorf("load pair %s: %w", pairID, err)
	}
	if _, err := m.EnsureUser(ctx, userAddr); err != nil {
		return nil, err
	}

	position = &model.LiquidityPosition{
		ID:                    id,
		Pair:                  pairID,
		User:                  network.Key(userAddr),
		LiquidityTokenBalance: numeric.Zero,
	}
	// The pair goes first: a position is only visible once its count landed,
	// so a failed save is retried as a fresh creation.
	pair.LiquidityProviderCount++
	if err := m.store.SavePair(ctx, pair); err != nil {
		return nil, fmt.Errorf("save pair %s: %w", pairID, err)
	}
	if err := m.store.SaveLiquidityPosition(ctx, position); err != nil {
		return nil, fmt.Errorf("save position %s: %w", id, err)
	}

	m.logger.Debug("liquidity position created",
		zap.String("position", id),
		zap.Uint64("providers", pair.LiquidityProviderCount),
	)
	return position, nil
}

// RecordSnapshot appends a snapshot of position valued at the current
// bundle price and re-saves the position. A snapshot already recorded for
// the same timestamp is kept as is.
func (m *Manager) RecordSnapshot(ctx context.Context, position *model.LiquidityPosition, blockTimestamp, blockNumber uint64) (*model.LiquidityPositionSnapshot, error) {
	if position == nil || position.ID == "" {
		return nil, fmt.Errorf("snapshot: %w", storage.ErrInvalidInput)
	}

	bundle, err := m.store.GetBundle(ctx, model.BundleID)
	if err != nil {
		return nil, m.requireErr(KindBundle, model.BundleID, err)
	}
	pair, err := m.store.GetPair(ctx, position.Pair)
	if err != nil {
		return nil, m.requireErr(KindPair, position.Pair, err)
	}
	token0, err := m.store.GetToken(ctx, pair.Token0)
	if err != nil {
		return nil, m.requireErr(KindToken, pair.Token0, err)
	}
	token1, err := m.store.GetToken(ctx, pair.Token1)
	if err != nil {
		return nil, m.requireErr(KindToken, pair.Token1, err)
	}

	snapshot := &model.LiquidityPositionSnapshot{
		ID:                        SnapshotID(position.ID, blockTimestamp),
		LiquidityPosition:         position.ID,
		Timestamp:                 blockTimestamp,
		Block:                     blockNumber,
		User:                      position.User,
		Pair:                      position.Pair,
		Token0PriceUSD:            token0.DerivedETH.Mul(bundle.EthPrice),
		Token1PriceUSD:            token1.DerivedETH.Mul(bundle.EthPrice),
		Reserve0:                  pair.Reserve0,
		Reserve1:                  pair.Reserve1,
		ReserveUSD:                pair.ReserveUSD,
		LiquidityTokenTotalSupply: pair.TotalSupply,
		LiquidityTokenBalance:     position.LiquidityTokenBalance,
	}
	if err := m.store.InsertSnapshot(ctx, snapshot); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("insert snapshot %s: %w", snapshot.ID, err)
		}
		m.logger.Debug("snapshot already recorded", zap.String("snapshot", snapshot.ID))
	}
	if err := m.store.SaveLiquidityPosition(ctx, position); err != nil {
		return nil, fmt.Errorf("save position %s: %w", position.ID, err)
	}
	return snapshot, nil
}

// EnsureToken returns the token, resolving its metadata on first sight.
// Existing tokens are never re-resolved so decimals stay fixed.
func (m *Manager) EnsureToken(ctx context.Context, addr common.Address) (*model.Token, error) {
	id := network.Key(addr)
	token, err := m.store.GetToken(ctx, id)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load token %s: %w", id, err)
	}
	if m.resolver == nil {
		return nil, fmt.Errorf("token %s: no metadata resolver", id)
	}

	meta, err := m.resolver.Resolve(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("resolve token %s: %w", id, err)
	}
	supply, ok := numeric.ParseBigInt(meta.TotalSupply)
	if !ok {
		supply = big.NewInt(0)
	}

	token = &model.Token{
		ID:             id,
		Symbol:         meta.Symbol,
		Name:           meta.Name,
		Decimals:       meta.Decimals,
		TotalSupply:    supply,
		DerivedETH:     numeric.Zero,
		TradeVolume:    numeric.Zero,
		TradeVolumeUSD: numeric.Zero,
		TotalLiquidity: numeric.Zero,
	}
	if err := m.store.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("save token %s: %w", id, err)
	}
	m.logger.Info("token created",
		zap.String("token", id),
		zap.String("symbol", token.Symbol),
		zap.Uint8("decimals", token.Decimals),
		zap.Bool("static", meta.Static),
	)
	return token, nil
}

// EnsureBundle returns the bundle singleton, creating it with a zero price.
func (m *Manager) EnsureBundle(ctx context.Context) (*model.Bundle, error) {
	bundle, err := m.store.GetBundle(ctx, model.BundleID)
	if err == nil {
		return bundle, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	bundle = &model.Bundle{ID: model.BundleID, EthPrice: numeric.Zero}
	if err := m.store.SaveBundle(ctx, bundle); err != nil {
		return nil, fmt.Errorf("save bundle: %w", err)
	}
	return bundle, nil
}

// EnsureFactory returns the factory entity for addr, creating it empty.
func (m *Manager) EnsureFactory(ctx context.Context, addr common.Address) (*model.Factory, error) {
	id := network.Key(addr)
	factory, err := m.store.GetFactory(ctx, id)
	if err == nil {
		return factory, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load factory %s: %w", id, err)
	}
	factory = &model.Factory{
		ID:                id,
		TotalVolumeUSD:    numeric.Zero,
		TotalLiquidityETH: numeric.Zero,
		TotalLiquidityUSD: numeric.Zero,
	}
	if err := m.store.SaveFactory(ctx, factory); err != nil {
		return nil, fmt.Errorf("save factory %s: %w", id, err)
	}
	return factory, nil
}

// RequirePair loads a pair that must exist.
func (m *Manager) RequirePair(ctx context.Context, addr common.Address) (*model.Pair, error) {
	id := network.Key(addr)
	pair, err := m.store.GetPair(ctx, id)
	if err != nil {
		return nil, m.requireErr(KindPair, id, err)
	}
	return pair, nil
}

// RequireToken loads a token that must exist.
func (m *Manager) RequireToken(ctx context.Context, id string) (*model.Token, error) {
	token, err := m.store.GetToken(ctx, id)
	if err != nil {
		return nil, m.requireErr(KindToken, id, err)
	}
	return token, nil
}

func (m *Manager) requireErr(kind, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return integrity(kind, id, err)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
