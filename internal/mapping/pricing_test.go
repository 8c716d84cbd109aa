package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swappiIndexer/internal/model"
	"swappiIndexer/internal/network"
	"swappiIndexer/internal/storage/memory"
)

func TestUpdatePairPricesZeroReserve(t *testing.T) {
	pair := &model.Pair{Reserve0: dec("5")}
	updatePairPrices(pair)
	assert.True(t, pair.Token0Price.IsZero())
	assert.True(t, pair.Token1Price.IsZero())

	pair.Reserve1 = dec("20")
	updatePairPrices(pair)
	assert.True(t, pair.Token0Price.Equal(dec("0.25")))
	assert.True(t, pair.Token1Price.Equal(dec("4")))
}

func TestPricerWithoutPairs(t *testing.T) {
	registry, err := network.NewRegistry(network.Mainnet)
	require.NoError(t, err)
	pricer := NewPricer(registry, memory.NewEntityStore())
	ctx := context.Background()

	price, err := pricer.EthPriceInUSD(ctx)
	require.NoError(t, err)
	assert.True(t, price.IsZero())

	native, err := pricer.DerivedETH(ctx, &model.Token{ID: network.Key(registry.WrappedNative())})
	require.NoError(t, err)
	assert.True(t, native.Equal(dec("1")))

	// not a curated pair with the wrapped native coin
	other, err := pricer.DerivedETH(ctx, &model.Token{ID: network.Key(tokenX)})
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}

func TestPricerReadsStoredPair(t *testing.T) {
	registry, err := network.NewRegistry(network.Mainnet)
	require.NoError(t, err)
	store := memory.NewEntityStore()
	pricer := NewPricer(registry, store)
	ctx := context.Background()

	// stable token as token0 flips the side the price is read from
	pair := &model.Pair{
		ID:       network.Key(mainPool),
		Token0:   network.Key(mainUSDT),
		Token1:   network.Key(mainWCFX),
		Reserve0: dec("3"),
		Reserve1: dec("1"),
	}
	updatePairPrices(pair)
	require.NoError(t, store.SavePair(ctx, pair))

	price, err := pricer.EthPriceInUSD(ctx)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("3")), "price = %s", price)

	usdt, err := pricer.DerivedETH(ctx, &model.Token{ID: network.Key(mainUSDT)})
	require.NoError(t, err)
	assert.True(t, usdt.Equal(dec("0.333333333333333333")), "derived = %s", usdt)
}
