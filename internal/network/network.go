package network

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network selects one of the deployments the indexer knows about.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// ChainID is the EVM chain id of the network's eSpace.
func (n Network) ChainID() uint64 {
	switch n {
	case Mainnet:
		return 1030
	case Testnet:
		return 71
	default:
		return 0
	}
}

// ZeroAddress is returned when no curated pair exists.
var ZeroAddress = common.Address{}

// Parse converts a config value into a Network.
func Parse(input string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", string(Mainnet):
		return Mainnet, nil
	case string(Testnet):
		return Testnet, nil
	default:
		return "", fmt.Errorf("unsupported network: %s", input)
	}
}

// Addresses is the fixed contract set of one deployment.
type Addresses struct {
	Factory common.Address
	WCFX    common.Address
	BTC     common.Address
	ETH     common.Address
	USDT    common.Address
	PPI     common.Address

	PairWCFXBTC  common.Address
	PairWCFXETH  common.Address
	PairWCFXUSDT common.Address
	PairBTCETH   common.Address
	PairBTCUSDT  common.Address
	PairETHUSDT  common.Address
}

var testnetAddresses = Addresses{
	Factory: common.HexToAddress("0x0ade074fad67bfe21a7d29cd521a001cb3662ae6"),
	WCFX:    common.HexToAddress("0x2ed3dddae5b2f321af0806181fbfa6d049be47d8"),
	BTC:     common.HexToAddress("0x54593e02c39aeff52b166bd036797d2b1478de8d"),
	ETH:     common.HexToAddress("0xcd71270f82f319e0498ff98af8269c3f0d547c65"),
	USDT:    common.HexToAddress("0x7d682e65efc5c13bf4e394b8f376c48e6bae0355"),
	PPI:     common.HexToAddress("0x94702463162f73063f2159c2c8e1f176fcdc4ed2"),

	PairWCFXBTC:  common.HexToAddress("0x5e1147bc4c7d402255f5e3b3da0a52edb7952256"),
	PairWCFXETH:  common.HexToAddress("0x7a9296180b594c1c0af972ea8160817265818da0"),
	PairWCFXUSDT: common.HexToAddress("0x1231da34942eddea83fdb32d47610837e81c5e6a"),
	PairBTCETH:   common.HexToAddress("0x4a43261c918f03d05ecaec53e9494b972ea19b6c"),
	PairBTCUSDT:  common.HexToAddress("0x998bae83c4fdbcc2788856c7b732f87cdf83119b"),
	PairETHUSDT:  common.HexToAddress("0x28b13245f40e3dad255c6485c80215b1f744430e"),
}

var mainnetAddresses = Addresses{
	Factory: common.HexToAddress("0xe2a6f7c0ce4d5d300f97aa7e125455f5cd3342f5"),
	WCFX:    common.HexToAddress("0x14b2d3bc65e74dae1030eafd8ac30c533c976a9b"),
	BTC:     common.HexToAddress("0x1f545487c62e5acfea45dcadd9c627361d1616d8"),
	ETH:     common.HexToAddress("0xa47f43de2f9623acb395ca4905746496d2014d57"),
	USDT:    common.HexToAddress("0xfe97e85d13abd9c1c33384e796f10b73905637ce"),
	PPI:     common.HexToAddress("0x22f41abf77905f50df398f21213290597e7414dd"),

	PairWCFXBTC:  common.HexToAddress("0x8bbbd6150c933fcd790b4a00bab23826912c192c"),
	PairWCFXETH:  common.HexToAddress("0x8ea70966e8f14337657bff7f40cfb9648f79530b"),
	PairWCFXUSDT: common.HexToAddress("0x8fcf9c586d45ce7fcf6d714cb8b6b21a13111e0b"),
	PairBTCETH:   common.HexToAddress("0x5767d71b462464ff77f6fbc81b8377ad49983511"),
	PairBTCUSDT:  common.HexToAddress("0x9b2e43277238d4c6a9534caa84cf80cb076810ea"),
	PairETHUSDT:  common.HexToAddress("0xa6943647f22cb9de7a80d1f447db48b0209a812a"),
}

// AddressesFor returns a copy of the address set of the network.
func AddressesFor(n Network) (Addresses, error) {
	switch n {
	case Mainnet:
		return mainnetAddresses, nil
	case Testnet:
		return testnetAddresses, nil
	default:
		return Addresses{}, fmt.Errorf("unsupported network: %s", n)
	}
}

// Key normalizes an address into the lowercase hex form used as entity id.
func Key(address common.Address) string {
	return strings.ToLower(address.Hex())
}
