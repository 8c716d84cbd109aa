package network

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	n, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Mainnet, n)

	n, err = Parse(" TestNet ")
	require.NoError(t, err)
	assert.Equal(t, Testnet, n)

	_, err = Parse("goerli")
	assert.Error(t, err)
}

func TestChainID(t *testing.T) {
	assert.Equal(t, uint64(1030), Mainnet.ChainID())
	assert.Equal(t, uint64(71), Testnet.ChainID())
	assert.Zero(t, Network("devnet").ChainID())
}

func TestFindPairSymmetric(t *testing.T) {
	for _, n := range []Network{Mainnet, Testnet} {
		reg, err := NewRegistry(n)
		require.NoError(t, err)

		addrs, err := AddressesFor(n)
		require.NoError(t, err)

		tokens := []common.Address{addrs.WCFX, addrs.BTC, addrs.ETH, addrs.USDT, addrs.PPI, addrs.Factory}
		for _, a := range tokens {
			for _, b := range tokens {
				assert.Equal(t, reg.FindPair(a, b), reg.FindPair(b, a), "network %s: %s/%s", n, a.Hex(), b.Hex())
			}
		}

		assert.Equal(t, addrs.PairWCFXUSDT, reg.FindPair(addrs.USDT, addrs.WCFX))
		assert.Equal(t, addrs.PairBTCETH, reg.FindPair(addrs.BTC, addrs.ETH))
		assert.Equal(t, addrs.PairETHUSDT, reg.FindPair(addrs.USDT, addrs.ETH))
	}
}

func TestFindPairUnknown(t *testing.T) {
	reg, err := NewRegistry(Mainnet)
	require.NoError(t, err)

	addrs, _ := AddressesFor(Mainnet)
	assert.Equal(t, ZeroAddress, reg.FindPair(addrs.WCFX, addrs.PPI))
	assert.Equal(t, ZeroAddress, reg.FindPair(addrs.WCFX, addrs.WCFX))
	assert.Equal(t, ZeroAddress, reg.FindPair(common.HexToAddress("0x1"), common.HexToAddress("0x2")))

	// testnet tokens are not paired on mainnet
	testAddrs, _ := AddressesFor(Testnet)
	assert.Equal(t, ZeroAddress, reg.FindPair(testAddrs.WCFX, testAddrs.BTC))
}

func TestRegistryPairs(t *testing.T) {
	reg, err := NewRegistry(Testnet)
	require.NoError(t, err)
	assert.Len(t, reg.Pairs(), 6)
	assert.Equal(t, Testnet, reg.Network())
	assert.Equal(t, common.HexToAddress("0x0ade074fad67bfe21a7d29cd521a001cb3662ae6"), reg.Factory())
}
