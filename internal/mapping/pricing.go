package mapping

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"swappiIndexer/internal/model"
	"swappiIndexer/internal/network"
	"swappiIndexer/internal/numeric"
	"swappiIndexer/internal/storage"
)

// Pricer derives reference-currency and USD prices from persisted pairs
// found through the curated registry.
type Pricer struct {
	registry *network.Registry
	store    storage.EntityStore
}

func NewPricer(registry *network.Registry, store storage.EntityStore) *Pricer {
	return &Pricer{registry: registry, store: store}
}

// EthPriceInUSD is the stable-token price of the wrapped native coin, or
// zero while the stable pair is unknown.
func (p *Pricer) EthPriceInUSD(ctx context.Context) (decimal.Decimal, error) {
	native := p.registry.WrappedNative()
	pair, err := p.knownPair(ctx, native, p.registry.StableToken())
	if err != nil || pair == nil {
		return numeric.Zero, err
	}
	return priceOf(pair, network.Key(native)), nil
}

// DerivedETH is the price of token denominated in the wrapped native coin.
func (p *Pricer) DerivedETH(ctx context.Context, token *model.Token) (decimal.Decimal, error) {
	native := p.registry.WrappedNative()
	if token.ID == network.Key(native) {
		return numeric.One, nil
	}
	pair, err := p.knownPair(ctx, common.HexToAddress(token.ID), native)
	if err != nil || pair == nil {
		return numeric.Zero, err
	}
	return priceOf(pair, token.ID), nil
}

func (p *Pricer) knownPair(ctx context.Context, a, b common.Address) (*model.Pair, error) {
	addr := p.registry.FindPair(a, b)
	if addr == network.ZeroAddress {
		return nil, nil
	}
	pair, err := p.store.GetPair(ctx, network.Key(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return pair, err
}

// priceOf returns the price of tokenID in units of the other pair token.
func priceOf(pair *model.Pair, tokenID string) decimal.Decimal {
	if pair.Token0 == tokenID {
		return pair.Token1Price
	}
	return pair.Token0Price
}

// updatePairPrices sets the quote prices from reserves; a zero reserve
// yields a zero price.
func updatePairPrices(pair *model.Pair) {
	pair.Token0Price = numeric.SafeDiv(pair.Reserve0, pair.Reserve1)
	pair.Token1Price = numeric.SafeDiv(pair.Reserve1, pair.Reserve0)
}
