package quote

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUnits renders a raw token amount with the given number of decimals.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseUnits converts a human amount such as "4000" or "1.5" into raw units.
func ParseUnits(input string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", input)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", input, decimals)
	}
	return shifted.BigInt(), nil
}
