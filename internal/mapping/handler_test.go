package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swappiIndexer/internal/dex"
	"swappiIndexer/internal/entity"
	"swappiIndexer/internal/model"
	"swappiIndexer/internal/network"
	"swappiIndexer/internal/storage/memory"
)

var (
	tokenX   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenY   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	pairXY   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	userU    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	userV    = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	mainWCFX = common.HexToAddress("0x14b2d3bc65e74dae1030eafd8ac30c533c976a9b")
	mainUSDT = common.HexToAddress("0xfe97e85d13abd9c1c33384e796f10b73905637ce")
	mainPool = common.HexToAddress("0x8fcf9c586d45ce7fcf6d714cb8b6b21a13111e0b")
)

// fixedResolver answers every token with 18 decimals.
type fixedResolver struct{}

func (fixedResolver) Resolve(_ context.Context, token common.Address) (model.TokenMeta, error) {
	return model.TokenMeta{Address: network.Key(token), Symbol: "TKN", Name: "Token", Decimals: 18, TotalSupply: "0"}, nil
}

type harness struct {
	handler *Handler
	store   *memory.EntityStore
}

func newHarness(t *testing.T, resolver entity.MetadataResolver) *harness {
	t.Helper()
	registry, err := network.NewRegistry(network.Mainnet)
	require.NoError(t, err)
	store := memory.NewEntityStore()
	manager := entity.NewManager(store, resolver, nil)
	return &harness{handler: NewHandler(manager, registry, nil, nil), store: store}
}

func (h *harness) apply(t *testing.T, record model.TypedEventRecord) {
	t.Helper()
	require.NoError(t, h.handler.Apply(context.Background(), record))
}

func (h *harness) pair(t *testing.T, addr common.Address) *model.Pair {
	t.Helper()
	pair, err := h.store.GetPair(context.Background(), network.Key(addr))
	require.NoError(t, err)
	return pair
}

func typedRecord(t *testing.T, name string, emitter common.Address, block, logIndex uint64, tx string, payload interface{}) model.TypedEventRecord {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return model.TypedEventRecord{
		ChainID:     1030,
		BlockNumber: block,
		TxHash:      tx,
		LogIndex:    logIndex,
		Address:     emitter.Hex(),
		EventName:   name,
		Timestamp:   1700000000 + block,
		Decoded:     raw,
	}
}

func pairCreated(t *testing.T, token0, token1, pair common.Address, block uint64) model.TypedEventRecord {
	registry, err := network.NewRegistry(network.Mainnet)
	require.NoError(t, err)
	return typedRecord(t, model.EventPairCreated, registry.Factory(), block, 0, "0x01", model.PairCreatedEventData{
		Token0: token0.Hex(), Token1: token1.Hex(), Pair: pair.Hex(), PairIndex: "1",
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMintAfterPairCreated(t *testing.T) {
	h := newHarness(t, fixedResolver{})
	h.apply(t, pairCreated(t, tokenX, tokenY, pairXY, 10))

	created := h.pair(t, pairXY)
	assert.Equal(t, uint64(0), created.LiquidityProviderCount)
	assert.True(t, created.Reserve0.IsZero())

	h.apply(t, typedRecord(t, model.EventMint, pairXY, 11, 3, "0x02", model.MintEventData{
		Sender: userU.Hex(), Amount0: "100", Amount1: "100",
	}))

	pair := h.pair(t, pairXY)
	assert.True(t, pair.Reserve0.Equal(dec("0.0000000000000001")), "reserve0 = %s", pair.Reserve0)
	assert.True(t, pair.Reserve1.Equal(dec("0.0000000000000001")))
	assert.Equal(t, uint64(1), pair.LiquidityProviderCount)
	assert.Equal(t, uint64(1), pair.TxCount)

	position, err := h.store.GetLiquidityPosition(context.Background(), entity.PositionID(pairXY, userU))
	require.NoError(t, err)
	assert.Equal(t, network.Key(pairXY), position.Pair)
	assert.Equal(t, network.Key(userU), position.User)

	// a second mint by the same user keeps the provider count
	h.apply(t, typedRecord(t, model.EventMint, pairXY, 12, 0, "0x03", model.MintEventData{
		Sender: userU.Hex(), Amount0: "1", Amount1: "1",
	}))
	assert.Equal(t, uint64(1), h.pair(t, pairXY).LiquidityProviderCount)
}

func TestSnapshotWithoutBundleFails(t *testing.T) {
	h := newHarness(t, fixedResolver{})
	ctx := context.Background()
	require.NoError(t, h.store.SaveToken(ctx, &model.Token{ID: network.Key(tokenX), Decimals: 18}))
	require.NoError(t, h.store.SaveToken(ctx, &model.Token{ID: network.Key(tokenY), Decimals: 18}))
	require.NoError(t, h.store.SavePair(ctx, &model.Pair{ID: network.Key(pairXY), Token0: network.Key(tokenX), Token1: network.Key(tokenY)}))

	err := h.handler.Apply(ctx, typedRecord(t, model.EventTransfer, pairXY, 5, 0, "0x05", model.TransferEventData{
		From: network.ZeroAddress.Hex(), To: userU.Hex(), Value: "1000",
	}))

	var integrityErr *entity.IntegrityError
	require.True(t, errors.As(err, &integrityErr), "got %v", err)
	assert.Equal(t, entity.KindBundle, integrityErr.Entity)
	assert.Equal(t, "integrity", ErrorKind(err))

	snapshots, err := h.store.ListSnapshotsByPosition(ctx, entity.PositionID(pairXY, userU))
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func TestPairCreatedRedeliveryIsNoop(t *testing.T) {
	h := newHarness(t, fixedResolver{})
	record := pairCreated(t, tokenX, tokenY, pairXY, 10)
	h.apply(t, record)
	h.apply(t, record)

	registry, err := network.NewRegistry(network.Mainnet)
	require.NoError(t, err)
	factory, err := h.store.GetFactory(context.Background(), network.Key(registry.Factory()))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), factory.PairCount)

	bundle, err := h.store.GetBundle(context.Background(), model.BundleID)
	require.NoError(t, err)
	assert.True(t, bundle.EthPrice.IsZero())
}

func TestPairEventForUnknownPair(t *testing.T) {
	h := newHarness(t, fixedResolver{})
	err := h.handler.Apply(context.Background(), typedRecord(t, model.EventSync, pairXY, 1, 0, "0x01", model.SyncEventData{
		Reserve0: "1", Reserve1: "1",
	}))
	var integrityErr *entity.IntegrityError
	require.True(t, errors.As(err, &integrityErr))
	assert.Equal(t, entity.KindPair, integrityErr.Entity)

	err = h.handler.Apply(context.Background(), typedRecord(t, model.EventMint, pairXY, 1, 1, "0x01", model.MintEventData{
		Sender: userU.Hex(), Amount0: "1", Amount1: "1",
	}))
	require.True(t, errors.As(err, &integrityErr))
}

func TestSyncPricesStablePair(t *testing.T) {
	resolver, err := dex.NewTokenResolver(network.Mainnet, nil, nil)
	require.NoError(t, err)
	h := newHarness(t, resolver)
	ctx := context.Background()

	h.apply(t, pairCreated(t, mainWCFX, mainUSDT, mainPool, 1))
	h.apply(t, typedRecord(t, model.EventSync, mainPool, 2, 0, "0xaa", model.SyncEventData{
		Reserve0: "10000000000000000000", Reserve1: "2000000000000000000",
	}))

	pair := h.pair(t, mainPool)
	assert.True(t, pair.Reserve0.Equal(dec("10")))
	assert.True(t, pair.Token0Price.Equal(dec("5")))
	assert.True(t, pair.Token1Price.Equal(dec("0.2")))
	assert.True(t, pair.ReserveETH.Equal(dec("20")), "reserve eth = %s", pair.ReserveETH)
	assert.True(t, pair.ReserveUSD.Equal(dec("4")))

	bundle, err := h.store.GetBundle(ctx, model.BundleID)
	require.NoError(t, err)
	assert.True(t, bundle.EthPrice.Equal(dec("0.2")))

	wcfx, err := h.store.GetToken(ctx, network.Key(mainWCFX))
	require.NoError(t, err)
	assert.Equal(t, "WCFX", wcfx.Symbol)
	assert.True(t, wcfx.DerivedETH.Equal(dec("1")))
	assert.True(t, wcfx.TotalLiquidity.Equal(dec("10")))

	// the mint of the same tx is already part of the synced reserves
	h.apply(t, typedRecord(t, model.EventMint, mainPool, 2, 1, "0xAA", model.MintEventData{
		Sender: userU.Hex(), Amount0: "10000000000000000000", Amount1: "2000000000000000000",
	}))
	assert.True(t, h.pair(t, mainPool).Reserve0.Equal(dec("10")))
}

func TestSwapVolumes(t *testing.T) {
	resolver, err := dex.NewTokenResolver(network.Mainnet, nil, nil)
	require.NoError(t, err)
	h := newHarness(t, resolver)
	ctx := context.Background()

	h.apply(t, pairCreated(t, mainWCFX, mainUSDT, mainPool, 1))
	h.apply(t, typedRecord(t, model.EventSync, mainPool, 2, 0, "0xaa", model.SyncEventData{
		Reserve0: "10000000000000000000", Reserve1: "2000000000000000000",
	}))
	h.apply(t, typedRecord(t, model.EventSwap, mainPool, 3, 0, "0xbb", model.SwapEventData{
		Sender:     userU.Hex(),
		Amount0In:  "1000000000000000000",
		Amount1In:  "0",
		Amount0Out: "0",
		Amount1Out: "100000000000000000",
		To:         userV.Hex(),
	}))

	pair := h.pair(t, mainPool)
	assert.True(t, pair.Reserve0.Equal(dec("11")))
	assert.True(t, pair.Reserve1.Equal(dec("1.9")))
	assert.True(t, pair.VolumeToken0.Equal(dec("1")))
	assert.True(t, pair.VolumeToken1.Equal(dec("0.1")))
	assert.True(t, pair.VolumeUSD.Equal(dec("0.15")), "volume usd = %s", pair.VolumeUSD)

	user, err := h.store.GetUser(ctx, network.Key(userV))
	require.NoError(t, err)
	assert.True(t, user.UsdSwapped.Equal(dec("0.15")))
}

func TestTransferTracksBalances(t *testing.T) {
	h := newHarness(t, fixedResolver{})
	ctx := context.Background()
	h.apply(t, pairCreated(t, tokenX, tokenY, pairXY, 1))

	h.apply(t, typedRecord(t, model.EventTransfer, pairXY, 2, 0, "0x02", model.TransferEventData{
		From: network.ZeroAddress.Hex(), To: userU.Hex(), Value: "1000000000000000000",
	}))
	h.apply(t, typedRecord(t, model.EventTransfer, pairXY, 3, 0, "0x03", model.TransferEventData{
		From: userU.Hex(), To: userV.Hex(), Value: "400000000000000000",
	}))
	h.apply(t, typedRecord(t, model.EventTransfer, pairXY, 4, 0, "0x04", model.TransferEventData{
		From: userV.Hex(), To: pairXY.Hex(), Value: "100000000000000000",
	}))
	h.apply(t, typedRecord(t, model.EventTransfer, pairXY, 4, 1, "0x04", model.TransferEventData{
		From: pairXY.Hex(), To: network.ZeroAddress.Hex(), Value: "100000000000000000",
	}))

	pair := h.pair(t, pairXY)
	assert.True(t, pair.TotalSupply.Equal(dec("0.9")))
	assert.Equal(t, uint64(2), pair.LiquidityProviderCount)

	posU, err := h.store.GetLiquidityPosition(ctx, entity.PositionID(pairXY, userU))
	require.NoError(t, err)
	assert.True(t, posU.LiquidityTokenBalance.Equal(dec("0.6")))
	posV, err := h.store.GetLiquidityPosition(ctx, entity.PositionID(pairXY, userV))
	require.NoError(t, err)
	assert.True(t, posV.LiquidityTokenBalance.Equal(dec("0.3")))

	snapshots, err := h.store.ListSnapshotsByPosition(ctx, posU.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.True(t, snapshots[0].LiquidityTokenBalance.Equal(dec("1")))
	assert.True(t, snapshots[1].LiquidityTokenBalance.Equal(dec("0.6")))
}

func TestApplyRejectsBadInput(t *testing.T) {
	h := newHarness(t, fixedResolver{})
	ctx := context.Background()

	err := h.handler.Apply(ctx, model.TypedEventRecord{EventName: "Collect"})
	assert.ErrorIs(t, err, ErrUnsupportedEvent)

	err = h.handler.Apply(ctx, model.TypedEventRecord{EventName: model.EventSync, Address: pairXY.Hex()})
	assert.ErrorIs(t, err, ErrMalformedPayload)

	err = h.handler.Apply(ctx, typedRecord(t, model.EventSync, pairXY, 1, 0, "0x01", model.SyncEventData{
		Reserve0: "1.5", Reserve1: "1",
	}))
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, "payload", ErrorKind(err))
}

func TestPairCreatedUnresolvedDecimals(t *testing.T) {
	resolver, err := dex.NewTokenResolver(network.Mainnet, nil, nil)
	require.NoError(t, err)
	h := newHarness(t, resolver)

	err = h.handler.Apply(context.Background(), pairCreated(t, tokenX, tokenY, pairXY, 1))
	assert.ErrorIs(t, err, dex.ErrDecimalsUnresolved)
	assert.Equal(t, "metadata", ErrorKind(err))

	_, err = h.store.GetPair(context.Background(), network.Key(pairXY))
	assert.Error(t, err)
}

func TestTransferMinimumLiquidityCountsAsSupply(t *testing.T) {
	h := newHarness(t, fixedResolver{})
	h.apply(t, pairCreated(t, tokenX, tokenY, pairXY, 1))

	h.apply(t, typedRecord(t, model.EventTransfer, pairXY, 2, 0, "0x02", model.TransferEventData{
		From: network.ZeroAddress.Hex(), To: network.ZeroAddress.Hex(), Value: "1000",
	}))
	h.apply(t, typedRecord(t, model.EventTransfer, pairXY, 2, 1, "0x02", model.TransferEventData{
		From: network.ZeroAddress.Hex(), To: userU.Hex(), Value: "9000",
	}))

	pair := h.pair(t, pairXY)
	assert.True(t, pair.TotalSupply.Equal(dec("0.00000000000001")), "total supply = %s", pair.TotalSupply)
	assert.Equal(t, uint64(1), pair.LiquidityProviderCount)
}

func TestSyncMarkerSurvivesRestart(t *testing.T) {
	h := newHarness(t, fixedResolver{})
	h.apply(t, pairCreated(t, tokenX, tokenY, pairXY, 1))
	h.apply(t, typedRecord(t, model.EventSync, pairXY, 2, 0, "0xAA", model.SyncEventData{
		Reserve0: "100", Reserve1: "100",
	}))
	assert.Equal(t, "0xaa", h.pair(t, pairXY).LastSyncTx)

	// a new handler over the same store, as after a restart between the
	// Sync and the Mint of one tx
	registry, err := network.NewRegistry(network.Mainnet)
	require.NoError(t, err)
	restarted := NewHandler(entity.NewManager(h.store, fixedResolver{}, nil), registry, nil, nil)
	require.NoError(t, restarted.Apply(context.Background(), typedRecord(t, model.EventMint, pairXY, 2, 1, "0xaa", model.MintEventData{
		Sender: userU.Hex(), Amount0: "100", Amount1: "100",
	})))

	pair := h.pair(t, pairXY)
	assert.True(t, pair.Reserve0.Equal(dec("0.0000000000000001")), "reserve0 = %s", pair.Reserve0)

	// a mint in another tx moves the reserves again
	require.NoError(t, restarted.Apply(context.Background(), typedRecord(t, model.EventMint, pairXY, 3, 0, "0xbb", model.MintEventData{
		Sender: userU.Hex(), Amount0: "100", Amount1: "100",
	})))
	assert.True(t, h.pair(t, pairXY).Reserve0.Equal(dec("0.0000000000000002")))
}
