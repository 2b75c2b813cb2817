package codec

import (
	"fmt"
	"strings"
)

// Variant selects the payload layout. Each deployed contract version accepts exactly one.
type Variant int

const (
	// VariantNested encodes (bytes swapParams, bytes callbackData); relayed through relayedSwap.
	VariantNested Variant = iota
	// VariantFlat encodes all eleven fields in a single tuple; relayed through signedSwap.
	VariantFlat
)

func (v Variant) String() string {
	switch v {
	case VariantNested:
		return "nested"
	case VariantFlat:
		return "flat"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant accepts "nested"/"a" and "flat"/"b".
func ParseVariant(input string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "nested", "a":
		return VariantNested, nil
	case "flat", "b":
		return VariantFlat, nil
	default:
		return 0, fmt.Errorf("unknown payload variant %q", input)
	}
}

// NonceBinding selects how the nonce enters the signing hash.
type NonceBinding int

const (
	// NonceEmbedded signs keccak256(payload); the nonce is only the field inside the payload.
	NonceEmbedded NonceBinding = iota
	// NoncePrefixed signs keccak256(uint256(nonce) ++ payload).
	NoncePrefixed
)

func (b NonceBinding) String() string {
	switch b {
	case NonceEmbedded:
		return "embedded"
	case NoncePrefixed:
		return "prefixed"
	default:
		return fmt.Sprintf("binding(%d)", int(b))
	}
}

// ParseNonceBinding accepts "embedded" and "prefixed".
func ParseNonceBinding(input string) (NonceBinding, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "embedded":
		return NonceEmbedded, nil
	case "prefixed":
		return NoncePrefixed, nil
	default:
		return 0, fmt.Errorf("unknown nonce binding %q", input)
	}
}
