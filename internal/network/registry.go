package network

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

type pairKey struct {
	lo common.Address
	hi common.Address
}

func newPairKey(a, b common.Address) pairKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Registry resolves curated token pairs to their pair contract.
// It is built once at startup and never mutated.
type Registry struct {
	network   Network
	addresses Addresses
	pairs     map[pairKey]common.Address
}

// NewRegistry builds the registry for a network.
func NewRegistry(n Network) (*Registry, error) {
	addrs, err := AddressesFor(n)
	if err != nil {
		return nil, err
	}

	pairs := map[pairKey]common.Address{
		newPairKey(addrs.WCFX, addrs.BTC):  addrs.PairWCFXBTC,
		newPairKey(addrs.WCFX, addrs.ETH):  addrs.PairWCFXETH,
		newPairKey(addrs.WCFX, addrs.USDT): addrs.PairWCFXUSDT,
		newPairKey(addrs.BTC, addrs.ETH):   addrs.PairBTCETH,
		newPairKey(addrs.BTC, addrs.USDT):  addrs.PairBTCUSDT,
		newPairKey(addrs.ETH, addrs.USDT):  addrs.PairETHUSDT,
	}

	return &Registry{network: n, addresses: addrs, pairs: pairs}, nil
}

// FindPair returns the pair for tokens a and b in either order, or ZeroAddress.
func (r *Registry) FindPair(a, b common.Address) common.Address {
	if r == nil {
		return ZeroAddress
	}
	if pair, ok := r.pairs[newPairKey(a, b)]; ok {
		return pair
	}
	return ZeroAddress
}

// Network returns the network the registry was built for.
func (r *Registry) Network() Network {
	return r.network
}

// Factory returns the pair factory address.
func (r *Registry) Factory() common.Address {
	return r.addresses.Factory
}

// WrappedNative returns the reference currency token (WCFX).
func (r *Registry) WrappedNative() common.Address {
	return r.addresses.WCFX
}

// StableToken returns the USD stable token used for the bundle price.
func (r *Registry) StableToken() common.Address {
	return r.addresses.USDT
}

// Pairs lists every curated pair address.
func (r *Registry) Pairs() []common.Address {
	return []common.Address{
		r.addresses.PairWCFXBTC,
		r.addresses.PairWCFXETH,
		r.addresses.PairWCFXUSDT,
		r.addresses.PairBTCETH,
		r.addresses.PairBTCUSDT,
		r.addresses.PairETHUSDT,
	}
}
