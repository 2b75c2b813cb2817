package wire

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// MaxFee is the largest fee tier representable as uint24.
const MaxFee = 1<<24 - 1

// AddressFromBytes converts raw bytes into an address, rejecting anything but 20 bytes.
func AddressFromBytes(b []byte) (common.Address, error) {
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAddressWidth, len(b), common.AddressLength)
	}
	return common.BytesToAddress(b), nil
}

// ParseAddress decodes a hex address. Unlike common.HexToAddress it never truncates or pads.
func ParseAddress(input string) (common.Address, error) {
	data, err := decodeHex(input)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid address %q: %w", input, err)
	}
	addr, err := AddressFromBytes(data)
	if err != nil {
		return common.Address{}, fmt.Errorf("address %q: %w", input, err)
	}
	return addr, nil
}

// ParseHash decodes a hex bytes32 value, rejecting anything but 32 bytes.
func ParseHash(input string) (common.Hash, error) {
	data, err := decodeHex(input)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid hash %q: %w", input, err)
	}
	if len(data) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q is %d bytes, want %d", ErrInvalidHashWidth, input, len(data), common.HashLength)
	}
	return common.BytesToHash(data), nil
}

// ParseUint parses a decimal or 0x-prefixed hex unsigned integer and checks it fits in bits.
func ParseUint(input string, bits int) (*big.Int, error) {
	input = strings.TrimSpace(input)
	value, ok := new(big.Int).SetString(input, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", input)
	}
	if err := CheckUint(value, bits); err != nil {
		return nil, err
	}
	return value, nil
}

// CheckUint reports whether value is a non-negative integer that fits in bits.
func CheckUint(value *big.Int, bits int) error {
	if value == nil {
		return fmt.Errorf("%w: missing uint%d value", ErrInvalidIntegerWidth, bits)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("%w: negative value %s for uint%d", ErrInvalidIntegerWidth, value, bits)
	}
	if bits == 256 {
		if _, overflow := uint256.FromBig(value); overflow {
			return fmt.Errorf("%w: %s overflows uint256", ErrInvalidIntegerWidth, value)
		}
		return nil
	}
	if value.BitLen() > bits {
		return fmt.Errorf("%w: %s overflows uint%d", ErrInvalidIntegerWidth, value, bits)
	}
	return nil
}

// CheckFee reports whether fee fits the uint24 fee tier.
func CheckFee(fee uint32) error {
	if fee > MaxFee {
		return fmt.Errorf("%w: fee %d overflows uint24", ErrInvalidIntegerWidth, fee)
	}
	return nil
}

func decodeHex(input string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		input = "0x" + input
	}
	return hexutil.Decode(input)
}
