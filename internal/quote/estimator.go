// Package quote estimates the counter amount of a swap from pool state and derives the
// slippage-bounded limitAmount that goes into a signed intent. Estimates are advisory; the
// settlement contract computes the authoritative amount at execution time.
package quote

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"u3relay/internal/wire"
)

const (
	// DefaultSlippageBps is the tolerance applied when a request leaves it unset (5%).
	DefaultSlippageBps = 500
	bpsDenominator     = 10_000

	MinTick = -887272
	MaxTick = 887272

	pricePrecision = 256
)

var (
	ErrTickOutOfRange  = errors.New("tick out of range")
	ErrInvalidSlippage = errors.New("invalid slippage")
	ErrZeroPrice       = errors.New("zero pool price")
)

// Request describes the side of the swap the caller knows.
type Request struct {
	// Amount is the known amount in the known token's smallest unit.
	Amount *big.Int
	// KnownIsToken0 is set when Amount is denominated in the pool's token0.
	KnownIsToken0 bool
	// ExactIn selects the bound direction: minimum out when set, maximum in otherwise.
	ExactIn bool
	// SlippageBps is the tolerance in basis points. Zero means DefaultSlippageBps.
	SlippageBps uint32
	// ObservedAt is when the pool state was read; used by CheckFresh.
	ObservedAt time.Time
}

// Quote is an estimated counter amount and the bound derived from it.
type Quote struct {
	Counter     *big.Int
	Limit       *big.Int
	SlippageBps uint32
	ObservedAt  time.Time
}

// PriceAtTick returns 1.0001^tick (token1 per token0, raw units) at 256-bit precision.
func PriceAtTick(tick int32) (*big.Float, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}

	base := new(big.Float).SetPrec(pricePrecision).Quo(
		new(big.Float).SetPrec(pricePrecision).SetInt64(10001),
		new(big.Float).SetPrec(pricePrecision).SetInt64(10000),
	)
	result := new(big.Float).SetPrec(pricePrecision).SetInt64(1)

	exp := int64(tick)
	if exp < 0 {
		exp = -exp
	}
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, base)
		}
		base.Mul(base, base)
		exp >>= 1
	}

	if tick < 0 {
		result.Quo(new(big.Float).SetPrec(pricePrecision).SetInt64(1), result)
	}
	return result, nil
}

// Estimate prices the known amount at the pool tick. The counter amount is truncated toward
// zero before the slippage bound is applied.
func Estimate(req Request, tick int32) (Quote, error) {
	if err := wire.CheckUint(req.Amount, 256); err != nil {
		return Quote{}, fmt.Errorf("amount: %w", err)
	}
	price, err := PriceAtTick(tick)
	if err != nil {
		return Quote{}, err
	}

	amount := new(big.Float).SetPrec(pricePrecision).SetInt(req.Amount)
	if req.KnownIsToken0 {
		amount.Mul(amount, price)
	} else {
		amount.Quo(amount, price)
	}
	counter, _ := amount.Int(nil)

	return bound(req, counter)
}

// EstimateFromSqrtPrice prices the known amount at the exact slot0 price sqrtPriceX96^2 / 2^192.
func EstimateFromSqrtPrice(req Request, sqrtPriceX96 *big.Int) (Quote, error) {
	if err := wire.CheckUint(req.Amount, 256); err != nil {
		return Quote{}, fmt.Errorf("amount: %w", err)
	}
	if err := wire.CheckUint(sqrtPriceX96, 160); err != nil {
		return Quote{}, fmt.Errorf("sqrt price: %w", err)
	}
	if sqrtPriceX96.Sign() == 0 {
		return Quote{}, ErrZeroPrice
	}

	priceX192 := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	q192 := new(big.Int).Lsh(big.NewInt(1), 192)

	price := new(big.Rat).SetFrac(priceX192, q192)
	if !req.KnownIsToken0 {
		price.Inv(price)
	}
	scaled := new(big.Rat).Mul(new(big.Rat).SetInt(req.Amount), price)
	counter := new(big.Int).Quo(scaled.Num(), scaled.Denom())

	return bound(req, counter)
}

// Bound applies a basis-point tolerance to counter. Exact-in quotes lower the bound, exact-out
// quotes raise it; both truncate.
func Bound(counter *big.Int, slippageBps uint32, exactIn bool) (*big.Int, error) {
	if slippageBps > bpsDenominator {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidSlippage, slippageBps)
	}
	margin := new(big.Int).Mul(counter, big.NewInt(int64(slippageBps)))
	margin.Quo(margin, big.NewInt(bpsDenominator))
	if exactIn {
		return new(big.Int).Sub(counter, margin), nil
	}
	return new(big.Int).Add(counter, margin), nil
}

func bound(req Request, counter *big.Int) (Quote, error) {
	bps := req.SlippageBps
	if bps == 0 {
		bps = DefaultSlippageBps
	}
	limit, err := Bound(counter, bps, req.ExactIn)
	if err != nil {
		return Quote{}, err
	}
	if err := wire.CheckUint(limit, 256); err != nil {
		return Quote{}, fmt.Errorf("limit: %w", err)
	}
	return Quote{
		Counter:     counter,
		Limit:       limit,
		SlippageBps: bps,
		ObservedAt:  req.ObservedAt,
	}, nil
}
