package dex

import (
	"github.com/ethereum/go-ethereum/common"

	"swappiIndexer/internal/network"
)

// TokenDefinition is a known-good token description that replaces live
// ERC20 calls for its address.
type TokenDefinition struct {
	Address  common.Address
	Symbol   string
	Name     string
	Decimals uint8
}

func staticToken(address string, symbol string) TokenDefinition {
	return TokenDefinition{
		Address:  common.HexToAddress(address),
		Symbol:   symbol,
		Name:     symbol,
		Decimals: 18,
	}
}

var mainnetDefinitions = []TokenDefinition{
	staticToken("0x14b2d3bc65e74dae1030eafd8ac30c533c976a9b", "WCFX"),
	staticToken("0xa47f43de2f9623acb395ca4905746496d2014d57", "ETH"),
	staticToken("0x1f545487c62e5acfea45dcadd9c627361d1616d8", "WBTC"),
	staticToken("0xfe97e85d13abd9c1c33384e796f10b73905637ce", "USDT"),
	staticToken("0x22f41abf77905f50df398f21213290597e7414dd", "PPI"),
	staticToken("0x2312338f19ee46e8beeed847f0105bde615acb45", "CKING"),
	staticToken("0x5767d71b462464ff77f6fbc81b8377ad49983511", "PPI-LP BTC-ETH"),
	staticToken("0x8ea70966e8f14337657bff7f40cfb9648f79530b", "PPI-LP WCFX-ETH"),
	staticToken("0x8bbbd6150c933fcd790b4a00bab23826912c192c", "PPI-LP WCFX-BTC"),
	staticToken("0xa6943647f22cb9de7a80d1f447db48b0209a812a", "PPI-LP ETH-USDT"),
	staticToken("0x9b2e43277238d4c6a9534caa84cf80cb076810ea", "PPI-LP BTC-USDT"),
	staticToken("0x8fcf9c586d45ce7fcf6d714cb8b6b21a13111e0b", "PPI-LP WCFX-USDT"),
	staticToken("0x7026e8d1ee68b208803e1a0c62dec42b9119be2e", "PPI-LP WCFX-CKING"),
}

// StaticDefinitions returns the override table of a network keyed by address.
// Only mainnet has overrides; testnet tokens always resolve live. The
// returned map is freshly built and owned by the caller.
func StaticDefinitions(n network.Network) map[common.Address]TokenDefinition {
	var list []TokenDefinition
	if n == network.Mainnet {
		list = mainnetDefinitions
	}

	out := make(map[common.Address]TokenDefinition, len(list))
	for _, def := range list {
		out[def.Address] = def
	}
	return out
}
