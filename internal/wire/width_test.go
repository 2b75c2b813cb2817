package wire

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseAddressRejectsWrongWidth(t *testing.T) {
	addr, err := ParseAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984") {
		t.Fatalf("address mismatch: %s", addr.Hex())
	}

	// one byte too long
	if _, err := ParseAddress("0x1F98431c8aD98523631AE4a59f267346ea31F98400"); !errors.Is(err, ErrInvalidAddressWidth) {
		t.Fatalf("expected ErrInvalidAddressWidth, got %v", err)
	}
	if _, err := AddressFromBytes(make([]byte, 19)); !errors.Is(err, ErrInvalidAddressWidth) {
		t.Fatalf("expected ErrInvalidAddressWidth for 19 bytes, got %v", err)
	}
	if _, err := ParseAddress("0xzz"); err == nil {
		t.Fatalf("expected error for non-hex input")
	}
}

func TestParseHashRejectsWrongWidth(t *testing.T) {
	if _, err := ParseHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b5400"); !errors.Is(err, ErrInvalidHashWidth) {
		t.Fatalf("expected ErrInvalidHashWidth, got %v", err)
	}
}

func TestCheckUint(t *testing.T) {
	max160 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
	if err := CheckUint(max160, 160); err != nil {
		t.Fatalf("max uint160 rejected: %v", err)
	}
	over160 := new(big.Int).Lsh(big.NewInt(1), 160)
	if err := CheckUint(over160, 160); !errors.Is(err, ErrInvalidIntegerWidth) {
		t.Fatalf("expected overflow error, got %v", err)
	}

	over256 := new(big.Int).Lsh(big.NewInt(1), 256)
	if err := CheckUint(over256, 256); !errors.Is(err, ErrInvalidIntegerWidth) {
		t.Fatalf("expected uint256 overflow error, got %v", err)
	}
	if err := CheckUint(big.NewInt(-1), 256); !errors.Is(err, ErrInvalidIntegerWidth) {
		t.Fatalf("expected negative error, got %v", err)
	}
	if err := CheckUint(nil, 256); !errors.Is(err, ErrInvalidIntegerWidth) {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestCheckFee(t *testing.T) {
	for _, fee := range []uint32{100, 500, 3000, 10000, MaxFee} {
		if err := CheckFee(fee); err != nil {
			t.Fatalf("fee %d rejected: %v", fee, err)
		}
	}
	if err := CheckFee(MaxFee + 1); !errors.Is(err, ErrInvalidIntegerWidth) {
		t.Fatalf("expected uint24 overflow, got %v", err)
	}
}

func TestParseUint(t *testing.T) {
	v, err := ParseUint("4000000000000000000000", 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "4000000000000000000000" {
		t.Fatalf("value mismatch: %s", v)
	}
	if _, err := ParseUint("0x1000000", 24); !errors.Is(err, ErrInvalidIntegerWidth) {
		t.Fatalf("expected uint24 overflow, got %v", err)
	}
	if _, err := ParseUint("abc", 256); err == nil {
		t.Fatalf("expected parse error")
	}
}
