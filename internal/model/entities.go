package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BundleID is the fixed id of the Bundle singleton.
const BundleID = "1"

// Token is an ERC20 seen in at least one pair. Symbol, Name and Decimals
// are resolved once on creation.
type Token struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Decimals       uint8           `json:"decimals"`
	TotalSupply    *big.Int        `json:"total_supply"`
	DerivedETH     decimal.Decimal `json:"derived_eth"`
	TradeVolume    decimal.Decimal `json:"trade_volume"`
	TradeVolumeUSD decimal.Decimal `json:"trade_volume_usd"`
	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
	TxCount        uint64          `json:"tx_count"`
}

// Pair is a liquidity pool of Token0 and Token1 (protocol order).
type Pair struct {
	ID                     string          `json:"id"`
	Token0                 string          `json:"token0"`
	Token1                 string          `json:"token1"`
	Reserve0               decimal.Decimal `json:"reserve0"`
	Reserve1               decimal.Decimal `json:"reserve1"`
	ReserveETH             decimal.Decimal `json:"reserve_eth"`
	ReserveUSD             decimal.Decimal `json:"reserve_usd"`
	TotalSupply            decimal.Decimal `json:"total_supply"`
	Token0Price            decimal.Decimal `json:"token0_price"`
	Token1Price            decimal.Decimal `json:"token1_price"`
	VolumeToken0           decimal.Decimal `json:"volume_token0"`
	VolumeToken1           decimal.Decimal `json:"volume_token1"`
	VolumeUSD              decimal.Decimal `json:"volume_usd"`
	TxCount                uint64          `json:"tx_count"`
	LiquidityProviderCount uint64          `json:"liquidity_provider_count"`
	CreatedAtTimestamp     uint64          `json:"created_at_timestamp"`
	CreatedAtBlock         uint64          `json:"created_at_block"`
	// LastSyncTx is the lowercase hash of the tx of the last applied Sync.
	LastSyncTx             string          `json:"last_sync_tx,omitempty"`
}

// User is any address that touched a pair.
type User struct {
	ID         string          `json:"id"`
	UsdSwapped decimal.Decimal `json:"usd_swapped"`
}

// LiquidityPosition is the LP token balance of a user in a pair.
// Positions are never deleted, a zero balance is kept.
type LiquidityPosition struct {
	ID                    string          `json:"id"`
	Pair                  string          `json:"pair"`
	User                  string          `json:"user"`
	LiquidityTokenBalance decimal.Decimal `json:"liquidity_token_balance"`
}

// LiquidityPositionSnapshot is an append-only copy of a position
// together with the pair state and token prices at that time.
type LiquidityPositionSnapshot struct {
	ID                        string          `json:"id"`
	LiquidityPosition         string          `json:"liquidity_position"`
	Timestamp                 uint64          `json:"timestamp"`
	Block                     uint64          `json:"block"`
	User                      string          `json:"user"`
	Pair                      string          `json:"pair"`
	Token0PriceUSD            decimal.Decimal `json:"token0_price_usd"`
	Token1PriceUSD            decimal.Decimal `json:"token1_price_usd"`
	Reserve0                  decimal.Decimal `json:"reserve0"`
	Reserve1                  decimal.Decimal `json:"reserve1"`
	ReserveUSD                decimal.Decimal `json:"reserve_usd"`
	LiquidityTokenTotalSupply decimal.Decimal `json:"liquidity_token_total_supply"`
	LiquidityTokenBalance     decimal.Decimal `json:"liquidity_token_balance"`
}

// Bundle holds the USD price of the reference currency.
type Bundle struct {
	ID       string          `json:"id"`
	EthPrice decimal.Decimal `json:"eth_price"`
}

// Factory aggregates protocol-wide counters.
type Factory struct {
	ID                string          `json:"id"`
	PairCount         uint64          `json:"pair_count"`
	TotalVolumeUSD    decimal.Decimal `json:"total_volume_usd"`
	TotalLiquidityETH decimal.Decimal `json:"total_liquidity_eth"`
	TotalLiquidityUSD decimal.Decimal `json:"total_liquidity_usd"`
	TxCount           uint64          `json:"tx_count"`
}
