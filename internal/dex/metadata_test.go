package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// fakeCaller answers eth_calls by method selector with pre-packed outputs.
type fakeCaller struct {
	parsed  abi.ABI
	outputs map[string][]interface{}

	mu    sync.Mutex
	calls int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for name, method := range f.parsed.Methods {
		if !bytes.Equal(msg.Data[:4], method.ID) {
			continue
		}
		values, ok := f.outputs[name]
		if !ok {
			return nil, fmt.Errorf("execution reverted")
		}
		return method.Outputs.Pack(values...)
	}
	return nil, fmt.Errorf("unknown selector %x", msg.Data[:4])
}

func TestFetchSlot0(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	sqrt, _ := new(big.Int).SetString("1527673246138286502379437451", 10)
	caller := &fakeCaller{parsed: poolABI, outputs: map[string][]interface{}{
		"slot0": {sqrt, big.NewInt(-79255), uint16(1), uint16(2), uint16(3), uint8(0), true},
	}}

	slot0, err := FetchSlot0(context.Background(), caller, common.HexToAddress("0x1111111111111111111111111111111111111111"), nil)
	if err != nil {
		t.Fatalf("fetch slot0: %v", err)
	}
	if slot0.Tick != -79255 {
		t.Fatalf("tick mismatch: %d", slot0.Tick)
	}
	if slot0.SqrtPriceX96.Cmp(sqrt) != 0 {
		t.Fatalf("sqrt price mismatch: %s", slot0.SqrtPriceX96)
	}
	if !slot0.Unlocked {
		t.Fatalf("unlocked flag lost")
	}
	if got := slot0.Model(); got.SqrtPriceX96 != sqrt.String() || got.Tick != -79255 || !got.Unlocked {
		t.Fatalf("model mismatch: %+v", got)
	}
}

func TestFetchPoolMeta(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	caller := &fakeCaller{parsed: poolABI, outputs: map[string][]interface{}{
		"token0":      {testDAI},
		"token1":      {testWETH9},
		"fee":         {big.NewInt(3000)},
		"tickSpacing": {big.NewInt(60)},
	}}

	meta, err := FetchPoolMeta(context.Background(), caller, common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8"))
	if err != nil {
		t.Fatalf("fetch pool meta: %v", err)
	}
	if meta.Token0 != testDAI.Hex() || meta.Token1 != testWETH9.Hex() {
		t.Fatalf("token mismatch: %+v", meta)
	}
	if meta.Fee != 3000 || meta.TickSpacing != 60 {
		t.Fatalf("fee/tick spacing mismatch: %+v", meta)
	}
	if meta.Liquidity != "" || meta.Slot0 != nil {
		t.Fatalf("cached pool meta must hold immutables only: %+v", meta)
	}
	if meta.Address != "0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8" {
		t.Fatalf("address mismatch: %s", meta.Address)
	}
}

func TestFetchPoolMetaFailsOnMissingRead(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := &fakeCaller{parsed: poolABI, outputs: map[string][]interface{}{
		"token0": {testDAI},
		"token1": {testWETH9},
		"fee":    {big.NewInt(3000)},
	}}
	if _, err := FetchPoolMeta(context.Background(), caller, common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8")); err == nil {
		t.Fatalf("expected error when tickSpacing reverts")
	}
}

func TestLookupPool(t *testing.T) {
	factoryABI, err := V3FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	want := common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8")
	caller := &fakeCaller{parsed: factoryABI, outputs: map[string][]interface{}{"getPool": {want}}}

	got, err := LookupPool(context.Background(), caller, common.HexToAddress(DefaultFactory), PoolKey{TokenA: testDAI, TokenB: testWETH9, Fee: 3000})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != want {
		t.Fatalf("pool mismatch: %s", got.Hex())
	}
}

func TestCachedTokenMetaCachesFailures(t *testing.T) {
	stringABI, err := erc20ABI(textString)
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := &fakeCaller{parsed: stringABI, outputs: map[string][]interface{}{
		"decimals": {uint8(18)},
		"symbol":   {"DAI"},
		"name":     {"Dai Stablecoin"},
	}}
	cache := NewTokenMetaCache()

	meta := CachedTokenMeta(context.Background(), caller, cache, testDAI, zap.NewNop())
	if meta.Decimals != 18 || meta.Symbol != "DAI" || meta.Name != "Dai Stablecoin" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	calls := caller.calls
	_ = CachedTokenMeta(context.Background(), caller, cache, testDAI, zap.NewNop())
	if caller.calls != calls {
		t.Fatalf("cached token refetched")
	}

	broken := &fakeCaller{parsed: stringABI, outputs: map[string][]interface{}{}}
	meta = CachedTokenMeta(context.Background(), broken, cache, testWETH9, zap.NewNop())
	if meta.Decimals != 0 {
		t.Fatalf("unexpected decimals on failure: %+v", meta)
	}
	if _, ok := cache.Get(testWETH9); !ok {
		t.Fatalf("failed lookup should be cached")
	}
}

func TestFetchTokenMetaBytes32Symbol(t *testing.T) {
	bytes32ABI, err := erc20ABI(textBytes32)
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	var symbol [32]byte
	copy(symbol[:], "MKR")
	caller := &fakeCaller{parsed: bytes32ABI, outputs: map[string][]interface{}{
		"decimals": {uint8(18)},
		"symbol":   {symbol},
	}}

	meta, err := FetchTokenMeta(context.Background(), caller, testDAI, zap.NewNop())
	if err != nil {
		t.Fatalf("fetch token meta: %v", err)
	}
	if meta.Symbol != "MKR" || meta.Name != "" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
}

func TestFetchBalance(t *testing.T) {
	stringABI, err := erc20ABI(textString)
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := &fakeCaller{parsed: stringABI, outputs: map[string][]interface{}{
		"balanceOf": {big.NewInt(5_000)},
	}}
	balance, err := FetchBalance(context.Background(), caller, testDAI, testWETH9)
	if err != nil {
		t.Fatalf("fetch balance: %v", err)
	}
	if balance.Int64() != 5_000 {
		t.Fatalf("balance mismatch: %s", balance)
	}
}

func TestFetchLiquidity(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := &fakeCaller{parsed: poolABI, outputs: map[string][]interface{}{
		"liquidity": {big.NewInt(123456789)},
	}}
	liquidity, err := FetchLiquidity(context.Background(), caller, common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8"), nil)
	if err != nil {
		t.Fatalf("fetch liquidity: %v", err)
	}
	if liquidity.Int64() != 123456789 {
		t.Fatalf("liquidity mismatch: %s", liquidity)
	}
}

// stallingCaller fails token0 and holds every other read until its context ends.
type stallingCaller struct {
	token0 []byte
}

func (c stallingCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if bytes.Equal(msg.Data[:4], c.token0) {
		return nil, fmt.Errorf("execution reverted")
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFetchPoolMetaCancelsOnFirstError(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := stallingCaller{token0: poolABI.Methods["token0"].ID}

	done := make(chan error, 1)
	go func() {
		_, err := FetchPoolMeta(context.Background(), caller, common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8"))
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected token0 failure")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("remaining reads were not cancelled")
	}
}
