package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swappiIndexer/internal/model"
	"swappiIndexer/internal/storage"
)

func TestEntityStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()

	_, err := s.GetToken(ctx, "0x1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetPair(ctx, "0x1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetBundle(ctx, model.BundleID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetFactory(ctx, "0x1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEntityStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()

	token := &model.Token{ID: "0xa", Symbol: "A", TotalSupply: big.NewInt(5)}
	require.NoError(t, s.SaveToken(ctx, token))
	token.Symbol = "mutated"
	token.TotalSupply.SetInt64(9)

	got, err := s.GetToken(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Symbol)
	assert.Equal(t, int64(5), got.TotalSupply.Int64())

	got.Symbol = "again"
	again, err := s.GetToken(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, "A", again.Symbol)
}

func TestEntityStoreRejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()
	assert.ErrorIs(t, s.SavePair(ctx, &model.Pair{}), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.SaveUser(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.InsertSnapshot(ctx, &model.LiquidityPositionSnapshot{}), storage.ErrInvalidInput)
}

func TestEntityStoreSnapshotsAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()

	first := &model.LiquidityPositionSnapshot{ID: "p-u200", LiquidityPosition: "p-u", Timestamp: 200, LiquidityTokenBalance: decimal.NewFromInt(1)}
	second := &model.LiquidityPositionSnapshot{ID: "p-u100", LiquidityPosition: "p-u", Timestamp: 100}
	require.NoError(t, s.InsertSnapshot(ctx, first))
	require.NoError(t, s.InsertSnapshot(ctx, second))
	assert.ErrorIs(t, s.InsertSnapshot(ctx, &model.LiquidityPositionSnapshot{ID: "p-u200"}), storage.ErrDuplicateKey)

	list, err := s.ListSnapshotsByPosition(ctx, "p-u")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(100), list[0].Timestamp)
	assert.True(t, list[1].LiquidityTokenBalance.Equal(decimal.NewFromInt(1)))
}

func TestEntityStorePositionsByUser(t *testing.T) {
	ctx := context.Background()
	s := NewEntityStore()

	require.NoError(t, s.SaveLiquidityPosition(ctx, &model.LiquidityPosition{ID: "0xp2-0xu", Pair: "0xp2", User: "0xu"}))
	require.NoError(t, s.SaveLiquidityPosition(ctx, &model.LiquidityPosition{ID: "0xp1-0xu", Pair: "0xp1", User: "0xu"}))
	require.NoError(t, s.SaveLiquidityPosition(ctx, &model.LiquidityPosition{ID: "0xp1-0xv", Pair: "0xp1", User: "0xv"}))

	list, err := s.ListLiquidityPositionsByUser(ctx, "0xu")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "0xp1-0xu", list[0].ID)
	assert.Equal(t, "0xp2-0xu", list[1].ID)
}
