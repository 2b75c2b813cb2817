package main

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"u3relay/internal/codec"
	"u3relay/internal/dex"
)

var (
	testWETH9 = common.HexToAddress(dex.DefaultWETH9)
	testDAI   = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
)

func TestDepositForWrappedEtherInput(t *testing.T) {
	limit, _ := new(big.Int).SetString("2100000000000000000", 10)
	intent := codec.SwapIntent{
		AmountSpecified: big.NewInt(4000),
		LimitAmount:     limit,
		TokenIn:         testWETH9,
		TokenOut:        testDAI,
	}

	amount, err := depositFor(intent, "", testWETH9)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if amount == nil || amount.Cmp(limit) != 0 {
		t.Fatalf("exact out deposit %v, want limit %s", amount, limit)
	}
	if amount == intent.LimitAmount {
		t.Fatalf("deposit must not alias the intent")
	}

	intent.ExactIn = true
	amount, err = depositFor(intent, "", testWETH9)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if amount == nil || amount.Int64() != 4000 {
		t.Fatalf("exact in deposit %v, want 4000", amount)
	}
}

func TestDepositForTokenInputApproves(t *testing.T) {
	intent := codec.SwapIntent{
		AmountSpecified: big.NewInt(1),
		LimitAmount:     big.NewInt(2),
		TokenIn:         testDAI,
		TokenOut:        testWETH9,
	}
	amount, err := depositFor(intent, "", testWETH9)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if amount != nil {
		t.Fatalf("expected no deposit for a token input, got %s", amount)
	}

	amount, err = depositFor(intent, "0.5", testWETH9)
	if err != nil {
		t.Fatalf("explicit deposit: %v", err)
	}
	if amount.String() != "500000000000000000" {
		t.Fatalf("explicit deposit %s", amount)
	}
	if _, err := depositFor(intent, "-1", testWETH9); err == nil {
		t.Fatalf("expected negative deposit to fail")
	}
}
