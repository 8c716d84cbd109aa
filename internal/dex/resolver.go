package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"swappiIndexer/internal/model"
	"swappiIndexer/internal/network"
)

// UnknownValue is returned for symbol or name when nothing could be resolved.
const UnknownValue = "unknown"

// nullBytes32 is what broken tokens without a symbol/name function answer.
const nullBytes32 = "0x0000000000000000000000000000000000000000000000000000000000000001"

// ErrDecimalsUnresolved is returned when decimals has no override and the call reverts.
var ErrDecimalsUnresolved = errors.New("token decimals unresolved")

// ContractCaller is the eth_call primitive used for metadata reads.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// TokenResolver resolves ERC20 metadata, preferring the static override
// table of the configured network over live calls.
type TokenResolver struct {
	caller      ContractCaller
	definitions map[common.Address]TokenDefinition
	cache       *TokenMetaCache
	logger      *zap.Logger
	stringABI   abi.ABI
	bytes32ABI  abi.ABI
}

// NewTokenResolver builds a resolver for a network. caller may be nil, in
// which case every live call is treated as reverted.
func NewTokenResolver(n network.Network, caller ContractCaller, logger *zap.Logger) (*TokenResolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stringABI, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := ERC20Bytes32ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	return &TokenResolver{
		caller:      caller,
		definitions: StaticDefinitions(n),
		cache:       NewTokenMetaCache(),
		logger:      logger,
		stringABI:   stringABI,
		bytes32ABI:  bytes32ABI,
	}, nil
}

// Resolve returns all metadata of a token. Only decimals can fail.
func (r *TokenResolver) Resolve(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := r.cache.Get(token); ok {
		return meta, nil
	}

	meta := model.TokenMeta{
		Address:     network.Key(token),
		Symbol:      r.ResolveSymbol(ctx, token),
		Name:        r.ResolveName(ctx, token),
		TotalSupply: r.ResolveTotalSupply(ctx, token).String(),
	}
	_, meta.Static = r.definitions[token]

	decimals, err := r.ResolveDecimals(ctx, token)
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	r.cache.Set(token, meta)
	return meta, nil
}

// ResolveSymbol returns the token symbol or UnknownValue.
func (r *TokenResolver) ResolveSymbol(ctx context.Context, token common.Address) string {
	if def, ok := r.definitions[token]; ok {
		return def.Symbol
	}
	return r.resolveText(ctx, token, "symbol")
}

// ResolveName returns the token name or UnknownValue.
func (r *TokenResolver) ResolveName(ctx context.Context, token common.Address) string {
	if def, ok := r.definitions[token]; ok {
		return def.Name
	}
	return r.resolveText(ctx, token, "name")
}

// ResolveDecimals returns the token decimals. There is no default: a
// reverted call without an override yields ErrDecimalsUnresolved.
func (r *TokenResolver) ResolveDecimals(ctx context.Context, token common.Address) (uint8, error) {
	if def, ok := r.definitions[token]; ok {
		return def.Decimals, nil
	}

	values, ok := r.tryCall(ctx, token, r.stringABI, "decimals")
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrDecimalsUnresolved, token.Hex())
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDecimalsUnresolved, token.Hex(), err)
	}
	return decimals, nil
}

// ResolveTotalSupply always reports zero; the supply is not read from chain.
func (r *TokenResolver) ResolveTotalSupply(_ context.Context, _ common.Address) *big.Int {
	return big.NewInt(0)
}

func (r *TokenResolver) resolveText(ctx context.Context, token common.Address, method string) string {
	if values, ok := r.tryCall(ctx, token, r.stringABI, method); ok {
		if text, ok := values[0].(string); ok {
			return cleanText(text)
		}
	}

	values, ok := r.tryCall(ctx, token, r.bytes32ABI, method)
	if !ok {
		return UnknownValue
	}
	raw, ok := values[0].([32]byte)
	if !ok || isNullBytes32(raw) {
		r.logger.Debug("null bytes32 metadata", zap.String("token", token.Hex()), zap.String("method", method))
		return UnknownValue
	}
	text := cleanText(string(raw[:]))
	if text == "" {
		return UnknownValue
	}
	return text
}

// cleanText cuts metadata at the first NUL and drops invalid UTF-8, so the
// value is storable as text.
func cleanText(text string) string {
	if i := strings.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	return strings.ToValidUTF8(text, "")
}

// tryCall reports ok=false for reverts, transport failures and undecodable
// return data alike; the caller always falls back.
func (r *TokenResolver) tryCall(ctx context.Context, token common.Address, parsed abi.ABI, method string) ([]interface{}, bool) {
	if r.caller == nil {
		return nil, false
	}
	data, err := parsed.Pack(method)
	if err != nil {
		r.logger.Debug("pack failed", zap.String("method", method), zap.Error(err))
		return nil, false
	}
	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		r.logger.Debug("call reverted", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return nil, false
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil || len(values) == 0 {
		r.logger.Debug("unpack failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return nil, false
	}
	return values, true
}

func isNullBytes32(raw [32]byte) bool {
	return hexutil.Encode(raw[:]) == nullBytes32
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
