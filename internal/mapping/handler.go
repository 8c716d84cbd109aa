package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swappiIndexer/internal/entity"
	"swappiIndexer/internal/metrics"
	"swappiIndexer/internal/model"
	"swappiIndexer/internal/network"
	"swappiIndexer/internal/numeric"
	"swappiIndexer/internal/storage"
)

var (
	// ErrUnsupportedEvent is returned for event names the handler does not know.
	ErrUnsupportedEvent = errors.New("unsupported event")

	// ErrMalformedPayload is returned when a decoded payload cannot be read.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Handler applies typed events to the entity store. It is not safe for
// concurrent use.
type Handler struct {
	manager  *entity.Manager
	store    storage.EntityStore
	pricer   *Pricer
	registry *network.Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewHandler(manager *entity.Manager, registry *network.Registry, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager:  manager,
		store:    manager.Store(),
		pricer:   NewPricer(registry, manager.Store()),
		registry: registry,
		metrics:  m,
		logger:   logger,
	}
}

// Apply dispatches one typed event by name.
func (h *Handler) Apply(ctx context.Context, record model.TypedEventRecord) error {
	switch record.EventName {
	case model.EventPairCreated:
		var data model.PairCreatedEventData
		if err := decodePayload(record, &data); err != nil {
			return err
		}
		return h.handlePairCreated(ctx, record, data)
	case model.EventTransfer:
		var data model.TransferEventData
		if err := decodePayload(record, &data); err != nil {
			return err
		}
		return h.handleTransfer(ctx, record, data)
	case model.EventMint:
		var data model.MintEventData
		if err := decodePayload(record, &data); err != nil {
			return err
		}
		return h.handleMint(ctx, record, data)
	case model.EventBurn:
		var data model.BurnEventData
		if err := decodePayload(record, &data); err != nil {
			return err
		}
		return h.handleBurn(ctx, record, data)
	case model.EventSwap:
		var data model.SwapEventData
		if err := decodePayload(record, &data); err != nil {
			return err
		}
		return h.handleSwap(ctx, record, data)
	case model.EventSync:
		var data model.SyncEventData
		if err := decodePayload(record, &data); err != nil {
			return err
		}
		return h.handleSync(ctx, record, data)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, record.EventName)
	}
}

func (h *Handler) handlePairCreated(ctx context.Context, record model.TypedEventRecord, data model.PairCreatedEventData) error {
	pairAddr, err := parseAddress("pair", data.Pair)
	if err != nil {
		return err
	}
	token0Addr, err := parseAddress("token0", data.Token0)
	if err != nil {
		return err
	}
	token1Addr, err := parseAddress("token1", data.Token1)
	if err != nil {
		return err
	}

	pairID := network.Key(pairAddr)
	if _, err := h.store.GetPair(ctx, pairID); err == nil {
		h.logger.Debug("pair already created", zap.String("pair", pairID))
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load pair %s: %w", pairID, err)
	}

	factory, err := h.manager.EnsureFactory(ctx, h.registry.Factory())
	if err != nil {
		return err
	}
	if _, err := h.manager.EnsureBundle(ctx); err != nil {
		return err
	}
	token0, err := h.manager.EnsureToken(ctx, token0Addr)
	if err != nil {
		return err
	}
	token1, err := h.manager.EnsureToken(ctx, token1Addr)
	if err != nil {
		return err
	}

	pair := &model.Pair{
		ID:                 pairID,
		Token0:             token0.ID,
		Token1:             token1.ID,
		CreatedAtTimestamp: record.Timestamp,
		CreatedAtBlock:     record.BlockNumber,
	}
	if err := h.store.SavePair(ctx, pair); err != nil {
		return fmt.Errorf("save pair %s: %w", pairID, err)
	}
	factory.PairCount++
	if err := h.store.SaveFactory(ctx, factory); err != nil {
		return fmt.Errorf("save factory %s: %w", factory.ID, err)
	}

	h.metrics.ObserveCreated("pair")
	h.logger.Info("pair created",
		zap.String("pair", pairID),
		zap.String("token0", token0.Symbol),
		zap.String("token1", token1.Symbol),
		zap.Uint64("block", record.BlockNumber),
	)
	return nil
}

func (h *Handler) handleTransfer(ctx context.Context, record model.TypedEventRecord, data model.TransferEventData) error {
	pairAddr, err := parseAddress("pair", record.Address)
	if err != nil {
		return err
	}
	from, err := parseAddress("from", data.From)
	if err != nil {
		return err
	}
	to, err := parseAddress("to", data.To)
	if err != nil {
		return err
	}
	raw, err := parseAmount("value", data.Value)
	if err != nil {
		return err
	}
	value := numeric.ConvertEthToDecimal(raw)

	pair, err := h.manager.RequirePair(ctx, pairAddr)
	if err != nil {
		return err
	}
	// A burn moves LP tokens from the pair to zero. A mint to zero is the
	// locked minimum liquidity and still counts as supply.
	if from == network.ZeroAddress {
		pair.TotalSupply = pair.TotalSupply.Add(value)
	}
	if to == network.ZeroAddress && from == pairAddr {
		pair.TotalSupply = pair.TotalSupply.Sub(value)
	}
	if err := h.store.SavePair(ctx, pair); err != nil {
		return fmt.Errorf("save pair %s: %w", pair.ID, err)
	}

	if err := h.adjustPosition(ctx, record, pairAddr, from, value.Neg()); err != nil {
		return err
	}
	return h.adjustPosition(ctx, record, pairAddr, to, value)
}

// adjustPosition moves the LP balance of holder by delta and snapshots it.
// The zero address and the pair itself hold no position.
func (h *Handler) adjustPosition(ctx context.Context, record model.TypedEventRecord, pairAddr, holder common.Address, delta decimal.Decimal) error {
	if holder == network.ZeroAddress || holder == pairAddr {
		return nil
	}
	position, err := h.manager.EnsureLiquidityPosition(ctx, pairAddr, holder)
	if err != nil {
		return err
	}
	position.LiquidityTokenBalance = position.LiquidityTokenBalance.Add(delta)
	_, err = h.manager.RecordSnapshot(ctx, position, record.Timestamp, record.BlockNumber)
	return err
}

func (h *Handler) handleMint(ctx context.Context, record model.TypedEventRecord, data model.MintEventData) error {
	pairAddr, err := parseAddress("pair", record.Address)
	if err != nil {
		return err
	}
	sender, err := parseAddress("sender", data.Sender)
	if err != nil {
		return err
	}
	raw0, err := parseAmount("amount0", data.Amount0)
	if err != nil {
		return err
	}
	raw1, err := parseAmount("amount1", data.Amount1)
	if err != nil {
		return err
	}

	// Position first: it bumps the provider count on the stored pair.
	if _, err := h.manager.EnsureLiquidityPosition(ctx, pairAddr, sender); err != nil {
		return err
	}

	st, err := h.loadPair(ctx, pairAddr)
	if err != nil {
		return err
	}
	if needsDelta(st.pair, record.TxHash) {
		amount0 := numeric.ToDecimal(raw0, st.token0.Decimals)
		amount1 := numeric.ToDecimal(raw1, st.token1.Decimals)
		st.setReserves(st.pair.Reserve0.Add(amount0), st.pair.Reserve1.Add(amount1))
	}
	st.countTx()
	return h.refresh(ctx, st)
}

func (h *Handler) handleBurn(ctx context.Context, record model.TypedEventRecord, data model.BurnEventData) error {
	pairAddr, err := parseAddress("pair", record.Address)
	if err != nil {
		return err
	}
	sender, err := parseAddress("sender", data.Sender)
	if err != nil {
		return err
	}
	raw0, err := parseAmount("amount0", data.Amount0)
	if err != nil {
		return err
	}
	raw1, err := parseAmount("amount1", data.Amount1)
	if err != nil {
		return err
	}

	st, err := h.loadPair(ctx, pairAddr)
	if err != nil {
		return err
	}
	if _, err := h.manager.EnsureUser(ctx, sender); err != nil {
		return err
	}
	if needsDelta(st.pair, record.TxHash) {
		amount0 := numeric.ToDecimal(raw0, st.token0.Decimals)
		amount1 := numeric.ToDecimal(raw1, st.token1.Decimals)
		st.setReserves(st.pair.Reserve0.Sub(amount0), st.pair.Reserve1.Sub(amount1))
	}
	st.countTx()
	return h.refresh(ctx, st)
}

func (h *Handler) handleSwap(ctx context.Context, record model.TypedEventRecord, data model.SwapEventData) error {
	pairAddr, err := parseAddress("pair", record.Address)
	if err != nil {
		return err
	}
	to, err := parseAddress("to", data.To)
	if err != nil {
		return err
	}
	raws := make([]*big.Int, 4)
	for i, field := range []struct{ name, value string }{
		{"amount0In", data.Amount0In},
		{"amount1In", data.Amount1In},
		{"amount0Out", data.Amount0Out},
		{"amount1Out", data.Amount1Out},
	} {
		if raws[i], err = parseAmount(field.name, field.value); err != nil {
			return err
		}
	}

	st, err := h.loadPair(ctx, pairAddr)
	if err != nil {
		return err
	}
	bundle, err := h.manager.EnsureBundle(ctx)
	if err != nil {
		return err
	}

	amount0In := numeric.ToDecimal(raws[0], st.token0.Decimals)
	amount1In := numeric.ToDecimal(raws[1], st.token1.Decimals)
	amount0Out := numeric.ToDecimal(raws[2], st.token0.Decimals)
	amount1Out := numeric.ToDecimal(raws[3], st.token1.Decimals)

	if needsDelta(st.pair, record.TxHash) {
		st.setReserves(
			st.pair.Reserve0.Add(amount0In).Sub(amount0Out),
			st.pair.Reserve1.Add(amount1In).Sub(amount1Out),
		)
	}

	amount0 := amount0In.Add(amount0Out)
	amount1 := amount1In.Add(amount1Out)
	volumeUSD := trackedVolumeUSD(amount0, st.token0, amount1, st.token1, bundle.EthPrice)

	st.pair.VolumeToken0 = st.pair.VolumeToken0.Add(amount0)
	st.pair.VolumeToken1 = st.pair.VolumeToken1.Add(amount1)
	st.pair.VolumeUSD = st.pair.VolumeUSD.Add(volumeUSD)
	st.token0.TradeVolume = st.token0.TradeVolume.Add(amount0)
	st.token1.TradeVolume = st.token1.TradeVolume.Add(amount1)
	st.token0.TradeVolumeUSD = st.token0.TradeVolumeUSD.Add(volumeUSD)
	st.token1.TradeVolumeUSD = st.token1.TradeVolumeUSD.Add(volumeUSD)
	st.factory.TotalVolumeUSD = st.factory.TotalVolumeUSD.Add(volumeUSD)
	st.countTx()

	user, err := h.manager.EnsureUser(ctx, to)
	if err != nil {
		return err
	}
	user.UsdSwapped = user.UsdSwapped.Add(volumeUSD)
	if err := h.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	return h.refresh(ctx, st)
}

func (h *Handler) handleSync(ctx context.Context, record model.TypedEventRecord, data model.SyncEventData) error {
	pairAddr, err := parseAddress("pair", record.Address)
	if err != nil {
		return err
	}
	raw0, err := parseAmount("reserve0", data.Reserve0)
	if err != nil {
		return err
	}
	raw1, err := parseAmount("reserve1", data.Reserve1)
	if err != nil {
		return err
	}

	st, err := h.loadPair(ctx, pairAddr)
	if err != nil {
		return err
	}
	st.setReserves(numeric.ToDecimal(raw0, st.token0.Decimals), numeric.ToDecimal(raw1, st.token1.Decimals))
	st.pair.LastSyncTx = strings.ToLower(record.TxHash)
	return h.refresh(ctx, st)
}

// needsDelta reports whether an event must move the reserves itself. A Sync
// already carries the reserves of the Mint, Burn or Swap that follows it in
// the same tx. The marker lives on the pair so it survives a restart.
func needsDelta(pair *model.Pair, txHash string) bool {
	return pair.LastSyncTx == "" || pair.LastSyncTx != strings.ToLower(txHash)
}

// refresh persists the pair, then recomputes the bundle price, the derived
// prices of both tokens and the pair's reserve valuations.
func (h *Handler) refresh(ctx context.Context, st *pairState) error {
	// Prices are read back from the store, so the pair goes first.
	if err := h.savePairState(ctx, st); err != nil {
		return err
	}

	bundle, err := h.manager.EnsureBundle(ctx)
	if err != nil {
		return err
	}
	ethPrice, err := h.pricer.EthPriceInUSD(ctx)
	if err != nil {
		return fmt.Errorf("eth price: %w", err)
	}
	bundle.EthPrice = ethPrice
	if err := h.store.SaveBundle(ctx, bundle); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}

	if st.token0.DerivedETH, err = h.pricer.DerivedETH(ctx, st.token0); err != nil {
		return fmt.Errorf("derived eth %s: %w", st.token0.ID, err)
	}
	if st.token1.DerivedETH, err = h.pricer.DerivedETH(ctx, st.token1); err != nil {
		return fmt.Errorf("derived eth %s: %w", st.token1.ID, err)
	}

	previousETH := st.pair.ReserveETH
	st.pair.ReserveETH = st.pair.Reserve0.Mul(st.token0.DerivedETH).Add(st.pair.Reserve1.Mul(st.token1.DerivedETH))
	st.pair.ReserveUSD = st.pair.ReserveETH.Mul(ethPrice)
	st.factory.TotalLiquidityETH = st.factory.TotalLiquidityETH.Sub(previousETH).Add(st.pair.ReserveETH)
	st.factory.TotalLiquidityUSD = st.factory.TotalLiquidityETH.Mul(ethPrice)

	return h.savePairState(ctx, st)
}

// pairState is a pair loaded together with the entities its events touch.
type pairState struct {
	pair    *model.Pair
	token0  *model.Token
	token1  *model.Token
	factory *model.Factory
}

func (h *Handler) loadPair(ctx context.Context, pairAddr common.Address) (*pairState, error) {
	pair, err := h.manager.RequirePair(ctx, pairAddr)
	if err != nil {
		return nil, err
	}
	token0, err := h.manager.RequireToken(ctx, pair.Token0)
	if err != nil {
		return nil, err
	}
	token1, err := h.manager.RequireToken(ctx, pair.Token1)
	if err != nil {
		return nil, err
	}
	factory, err := h.manager.EnsureFactory(ctx, h.registry.Factory())
	if err != nil {
		return nil, err
	}
	return &pairState{pair: pair, token0: token0, token1: token1, factory: factory}, nil
}

func (h *Handler) savePairState(ctx context.Context, st *pairState) error {
	if err := h.store.SaveToken(ctx, st.token0); err != nil {
		return fmt.Errorf("save token %s: %w", st.token0.ID, err)
	}
	if err := h.store.SaveToken(ctx, st.token1); err != nil {
		return fmt.Errorf("save token %s: %w", st.token1.ID, err)
	}
	if err := h.store.SavePair(ctx, st.pair); err != nil {
		return fmt.Errorf("save pair %s: %w", st.pair.ID, err)
	}
	if err := h.store.SaveFactory(ctx, st.factory); err != nil {
		return fmt.Errorf("save factory %s: %w", st.factory.ID, err)
	}
	return nil
}

// setReserves replaces the reserves, moving token liquidity by the difference.
func (st *pairState) setReserves(reserve0, reserve1 decimal.Decimal) {
	st.token0.TotalLiquidity = st.token0.TotalLiquidity.Sub(st.pair.Reserve0).Add(reserve0)
	st.token1.TotalLiquidity = st.token1.TotalLiquidity.Sub(st.pair.Reserve1).Add(reserve1)
	st.pair.Reserve0 = reserve0
	st.pair.Reserve1 = reserve1
	updatePairPrices(st.pair)
}

func (st *pairState) countTx() {
	st.pair.TxCount++
	st.token0.TxCount++
	st.token1.TxCount++
	st.factory.TxCount++
}

// trackedVolumeUSD averages the USD value of both swap legs. A leg without
// a derived price does not count.
func trackedVolumeUSD(amount0 decimal.Decimal, token0 *model.Token, amount1 decimal.Decimal, token1 *model.Token, ethPrice decimal.Decimal) decimal.Decimal {
	usd0 := amount0.Mul(token0.DerivedETH).Mul(ethPrice)
	usd1 := amount1.Mul(token1.DerivedETH).Mul(ethPrice)
	switch {
	case numeric.IsZero(usd0):
		return usd1
	case numeric.IsZero(usd1):
		return usd0
	default:
		return usd0.Add(usd1).Div(decimal.NewFromInt(2))
	}
}

func decodePayload(record model.TypedEventRecord, dst interface{}) error {
	if len(record.Decoded) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformedPayload, record.EventName)
	}
	if err := json.Unmarshal(record.Decoded, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, record.EventName, err)
	}
	return nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address: %q", ErrMalformedPayload, field, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := numeric.ParseBigInt(value)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an integer: %q", ErrMalformedPayload, field, value)
	}
	return amount, nil
}
