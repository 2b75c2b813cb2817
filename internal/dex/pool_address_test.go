package dex

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"u3relay/internal/wire"
)

var (
	testDAI   = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	testWETH9 = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testUSDC  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func mainnetResolver(t *testing.T) *PoolResolver {
	t.Helper()
	resolver, err := NewPoolResolver(DefaultFactory, DefaultPoolInitCodeHash)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return resolver
}

func TestDeriveAddressMainnetPools(t *testing.T) {
	resolver := mainnetResolver(t)

	cases := []struct {
		name string
		key  PoolKey
		want common.Address
	}{
		{"DAI/WETH 0.3%", PoolKey{TokenA: testDAI, TokenB: testWETH9, Fee: 3000}, common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8")},
		{"DAI/WETH 0.05%", PoolKey{TokenA: testDAI, TokenB: testWETH9, Fee: 500}, common.HexToAddress("0x60594a405d53811d3BC4766596EFD80fd545A270")},
		{"USDC/WETH 0.05%", PoolKey{TokenA: testUSDC, TokenB: testWETH9, Fee: 500}, common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")},
	}

	for _, tc := range cases {
		got, err := resolver.Resolve(tc.key)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got.Hex(), tc.want.Hex())
		}
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	resolver := mainnetResolver(t)
	key := PoolKey{TokenA: testDAI, TokenB: testWETH9, Fee: 3000}

	first, err := resolver.Resolve(key)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := resolver.Resolve(key)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first != second {
		t.Fatalf("derivation not deterministic: %s != %s", first.Hex(), second.Hex())
	}
	if len(first.Bytes()) != common.AddressLength {
		t.Fatalf("address length %d", len(first.Bytes()))
	}
}

func TestDeriveAddressIsOrderSensitive(t *testing.T) {
	resolver := mainnetResolver(t)

	forward, err := resolver.Resolve(PoolKey{TokenA: testDAI, TokenB: testWETH9, Fee: 3000})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	swapped, err := resolver.Resolve(PoolKey{TokenA: testWETH9, TokenB: testDAI, Fee: 3000})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if forward == swapped {
		t.Fatalf("swapping tokens must change the derived address")
	}
}

func TestDeriveAddressBytesValidatesWidths(t *testing.T) {
	factory := common.HexToAddress(DefaultFactory).Bytes()
	initCode := common.HexToHash(DefaultPoolInitCodeHash).Bytes()

	got, err := DeriveAddressBytes(testDAI.Bytes(), testWETH9.Bytes(), 3000, factory, initCode)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got != common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8") {
		t.Fatalf("unexpected address %s", got.Hex())
	}

	long := append(append([]byte{}, factory...), 0x00)
	if _, err := DeriveAddressBytes(testDAI.Bytes(), testWETH9.Bytes(), 3000, long, initCode); !errors.Is(err, wire.ErrInvalidAddressWidth) {
		t.Fatalf("expected ErrInvalidAddressWidth, got %v", err)
	}
	if _, err := DeriveAddressBytes(testDAI.Bytes()[:19], testWETH9.Bytes(), 3000, factory, initCode); !errors.Is(err, wire.ErrInvalidAddressWidth) {
		t.Fatalf("expected ErrInvalidAddressWidth, got %v", err)
	}
	if _, err := DeriveAddressBytes(testDAI.Bytes(), testWETH9.Bytes(), 3000, factory, append(initCode, 0x54)); !errors.Is(err, wire.ErrInvalidHashWidth) {
		t.Fatalf("expected ErrInvalidHashWidth, got %v", err)
	}
	if _, err := DeriveAddressBytes(testDAI.Bytes(), testWETH9.Bytes(), 1<<24, factory, initCode); !errors.Is(err, wire.ErrInvalidIntegerWidth) {
		t.Fatalf("expected ErrInvalidIntegerWidth, got %v", err)
	}
}

func TestNewPoolResolverRejectsTranscriptionErrors(t *testing.T) {
	if _, err := NewPoolResolver(DefaultFactory+"00", DefaultPoolInitCodeHash); !errors.Is(err, wire.ErrInvalidAddressWidth) {
		t.Fatalf("expected factory width error, got %v", err)
	}
	if _, err := NewPoolResolver(DefaultFactory, DefaultPoolInitCodeHash+"00"); !errors.Is(err, wire.ErrInvalidHashWidth) {
		t.Fatalf("expected init code hash width error, got %v", err)
	}
}

func TestOrderedPoolKey(t *testing.T) {
	key := OrderedPoolKey(testWETH9, testDAI, 500)
	if key.TokenA != testDAI || key.TokenB != testWETH9 || key.Fee != 500 {
		t.Fatalf("unexpected key order: %+v", key)
	}
	if OrderedPoolKey(testDAI, testWETH9, 500) != key {
		t.Fatalf("ordering should not depend on argument order")
	}
}
