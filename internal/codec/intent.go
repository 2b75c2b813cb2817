// Package codec builds the signed swap authorizations consumed by the uniV3Relayed contract:
// canonical payload encoding, the signing hash, and personal-message signatures over it.
package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"u3relay/internal/wire"
)

// SwapIntent is one swap request as the signer authorizes it. It must not be modified once signed.
type SwapIntent struct {
	// AmountSpecified is the input amount when ExactIn is set, the output amount otherwise.
	AmountSpecified *big.Int
	// LimitAmount is the minimum output (exact in) or the maximum input (exact out).
	LimitAmount       *big.Int
	Deadline          uint64
	Nonce             *big.Int
	Pool              common.Address
	TokenIn           common.Address
	TokenOut          common.Address
	Recipient         common.Address
	SqrtPriceLimitX96 *big.Int
	Fee               uint32
	ExactIn           bool
}

// Validate checks every integer field against its declared width.
func (i SwapIntent) Validate() error {
	if err := wire.CheckUint(i.AmountSpecified, 256); err != nil {
		return fmt.Errorf("amount specified: %w", err)
	}
	if err := wire.CheckUint(i.LimitAmount, 256); err != nil {
		return fmt.Errorf("limit amount: %w", err)
	}
	if err := wire.CheckUint(i.Nonce, 256); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	if err := wire.CheckUint(i.sqrtPriceLimit(), 160); err != nil {
		return fmt.Errorf("sqrt price limit: %w", err)
	}
	if err := wire.CheckFee(i.Fee); err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	return nil
}

// sqrtPriceLimit treats a missing limit as zero, which the contract reads as "no limit".
func (i SwapIntent) sqrtPriceLimit() *big.Int {
	if i.SqrtPriceLimitX96 == nil {
		return new(big.Int)
	}
	return i.SqrtPriceLimitX96
}

func (i SwapIntent) deadline() *big.Int {
	return new(big.Int).SetUint64(i.Deadline)
}

func (i SwapIntent) fee() *big.Int {
	return new(big.Int).SetUint64(uint64(i.Fee))
}
