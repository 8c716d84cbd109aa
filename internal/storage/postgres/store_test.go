package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swappiIndexer/internal/storage"
)

func TestParseDecimals(t *testing.T) {
	var a, b decimal.Decimal
	require.NoError(t, parseDecimals([]string{"1.5", "0.000000000000000001"}, &a, &b))
	assert.True(t, a.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "0.000000000000000001", b.String())

	assert.Error(t, parseDecimals([]string{"x"}, &a))
	assert.Error(t, parseDecimals([]string{"1"}, &a, &b))
}

func TestNotFoundMapping(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows), storage.ErrNotFound)
	other := assert.AnError
	assert.Equal(t, other, notFound(other))
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"tokens", "pairs", "users", "liquidity_positions",
		"liquidity_position_snapshots", "bundles", "factories", "indexer_state"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	// older databases gain the sync marker on migrate
	assert.Contains(t, schema, "ALTER TABLE pairs ADD COLUMN IF NOT EXISTS last_sync_tx")
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.Error(t, err)
}
