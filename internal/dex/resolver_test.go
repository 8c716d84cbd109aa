package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swappiIndexer/internal/network"
)

var errReverted = errors.New("execution reverted")

// fakeCaller answers eth_call by 4-byte selector.
type fakeCaller struct {
	responses map[string][]byte
	calls     int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte)}
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	resp, ok := f.responses[hexutil.Encode(msg.Data[:4])]
	if !ok {
		return nil, errReverted
	}
	return resp, nil
}

func (f *fakeCaller) setString(t *testing.T, method, value string) {
	t.Helper()
	parsed, err := ERC20ABI()
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(value)
	require.NoError(t, err)
	f.responses[hexutil.Encode(parsed.Methods[method].ID)] = out
}

func (f *fakeCaller) setBytes32(t *testing.T, method string, value [32]byte) {
	t.Helper()
	parsed, err := ERC20Bytes32ABI()
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(value)
	require.NoError(t, err)
	f.responses[hexutil.Encode(parsed.Methods[method].ID)] = out
}

func (f *fakeCaller) setDecimals(t *testing.T, value uint8) {
	t.Helper()
	parsed, err := ERC20ABI()
	require.NoError(t, err)
	out, err := parsed.Methods["decimals"].Outputs.Pack(value)
	require.NoError(t, err)
	f.responses[hexutil.Encode(parsed.Methods["decimals"].ID)] = out
}

func bytes32Of(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}

var liveToken = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestResolver(t *testing.T, caller ContractCaller) *TokenResolver {
	t.Helper()
	r, err := NewTokenResolver(network.Mainnet, caller, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestResolveStaticOverrideWins(t *testing.T) {
	caller := newFakeCaller()
	caller.setString(t, "symbol", "LIVE")
	caller.setString(t, "name", "Live Name")
	caller.setDecimals(t, 6)
	r := newTestResolver(t, caller)

	wcfx := common.HexToAddress("0x14b2d3bc65e74dae1030eafd8ac30c533c976a9b")
	assert.Equal(t, "WCFX", r.ResolveSymbol(context.Background(), wcfx))
	assert.Equal(t, "WCFX", r.ResolveName(context.Background(), wcfx))

	decimals, err := r.ResolveDecimals(context.Background(), wcfx)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), decimals)
	assert.Zero(t, caller.calls, "override must bypass contract calls")
}

func TestResolveStringSymbol(t *testing.T) {
	caller := newFakeCaller()
	caller.setString(t, "symbol", "FOO")
	caller.setString(t, "name", "Foo Token")
	r := newTestResolver(t, caller)

	assert.Equal(t, "FOO", r.ResolveSymbol(context.Background(), liveToken))
	assert.Equal(t, "Foo Token", r.ResolveName(context.Background(), liveToken))
}

func TestResolveBytes32Fallback(t *testing.T) {
	caller := newFakeCaller()
	caller.setBytes32(t, "symbol", bytes32Of("MKR"))
	caller.setBytes32(t, "name", bytes32Of("Maker"))
	r := newTestResolver(t, caller)

	assert.Equal(t, "MKR", r.ResolveSymbol(context.Background(), liveToken))
	assert.Equal(t, "Maker", r.ResolveName(context.Background(), liveToken))
}

func TestResolveNullBytes32IsUnknown(t *testing.T) {
	var null [32]byte
	null[31] = 1

	caller := newFakeCaller()
	caller.setBytes32(t, "symbol", null)
	caller.setBytes32(t, "name", null)
	r := newTestResolver(t, caller)

	assert.Equal(t, UnknownValue, r.ResolveSymbol(context.Background(), liveToken))
	assert.Equal(t, UnknownValue, r.ResolveName(context.Background(), liveToken))
}

func TestResolveAllRevertedIsUnknown(t *testing.T) {
	r := newTestResolver(t, newFakeCaller())
	assert.Equal(t, UnknownValue, r.ResolveSymbol(context.Background(), liveToken))
	assert.Equal(t, UnknownValue, r.ResolveName(context.Background(), liveToken))

	noCaller := newTestResolver(t, nil)
	assert.Equal(t, UnknownValue, noCaller.ResolveSymbol(context.Background(), liveToken))
}

func TestResolveDecimals(t *testing.T) {
	caller := newFakeCaller()
	caller.setDecimals(t, 6)
	r := newTestResolver(t, caller)

	decimals, err := r.ResolveDecimals(context.Background(), liveToken)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	_, err = newTestResolver(t, newFakeCaller()).ResolveDecimals(context.Background(), liveToken)
	assert.ErrorIs(t, err, ErrDecimalsUnresolved)
}

func TestResolveTotalSupplyIsZero(t *testing.T) {
	caller := newFakeCaller()
	r := newTestResolver(t, caller)
	assert.Equal(t, int64(0), r.ResolveTotalSupply(context.Background(), liveToken).Int64())
	assert.Zero(t, caller.calls)
}

func TestResolveCachesMeta(t *testing.T) {
	caller := newFakeCaller()
	caller.setString(t, "symbol", "FOO")
	caller.setString(t, "name", "Foo")
	caller.setDecimals(t, 8)
	r := newTestResolver(t, caller)

	meta, err := r.Resolve(context.Background(), liveToken)
	require.NoError(t, err)
	assert.Equal(t, "FOO", meta.Symbol)
	assert.Equal(t, uint8(8), meta.Decimals)
	assert.Equal(t, "0", meta.TotalSupply)
	assert.False(t, meta.Static)

	calls := caller.calls
	_, err = r.Resolve(context.Background(), liveToken)
	require.NoError(t, err)
	assert.Equal(t, calls, caller.calls)
}

func TestResolveTestnetHasNoOverrides(t *testing.T) {
	assert.Empty(t, StaticDefinitions(network.Testnet))

	caller := newFakeCaller()
	caller.setString(t, "symbol", "FaucetUSDT")
	caller.setString(t, "name", "Faucet USDT")
	caller.setDecimals(t, 6)
	r, err := NewTokenResolver(network.Testnet, caller, nil)
	require.NoError(t, err)

	meta, err := r.Resolve(context.Background(), common.HexToAddress("0x7d682e65efc5c13bf4e394b8f376c48e6bae0355"))
	require.NoError(t, err)
	assert.Equal(t, "FaucetUSDT", meta.Symbol)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.False(t, meta.Static)

	// the mainnet WCFX is not an override on testnet
	_, err = newTestnetResolver(t).Resolve(context.Background(), common.HexToAddress("0x14b2d3bc65e74dae1030eafd8ac30c533c976a9b"))
	assert.ErrorIs(t, err, ErrDecimalsUnresolved)
}

func newTestnetResolver(t *testing.T) *TokenResolver {
	t.Helper()
	r, err := NewTokenResolver(network.Testnet, nil, nil)
	require.NoError(t, err)
	return r
}

func TestResolveMalformedTextIsCleaned(t *testing.T) {
	var raw [32]byte
	copy(raw[:], []byte{'A', 0x00, 0xff, 'B'})

	caller := newFakeCaller()
	caller.setBytes32(t, "symbol", raw)
	caller.setString(t, "name", "Bad\xffName\x00tail")
	r := newTestResolver(t, caller)

	assert.Equal(t, "A", r.ResolveSymbol(context.Background(), liveToken))
	assert.Equal(t, "BadName", r.ResolveName(context.Background(), liveToken))

	var leadingNUL [32]byte
	copy(leadingNUL[1:], "XYZ")
	caller = newFakeCaller()
	caller.setBytes32(t, "symbol", leadingNUL)
	assert.Equal(t, UnknownValue, newTestResolver(t, caller).ResolveSymbol(context.Background(), liveToken))
}
