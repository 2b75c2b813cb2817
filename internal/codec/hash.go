package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"u3relay/internal/wire"
)

// HashForSigning returns the content hash the signer authorizes.
// nonce is only read for NoncePrefixed, where it is packed as a uint256 word ahead of the payload.
func HashForSigning(payload []byte, nonce *big.Int, binding NonceBinding) (common.Hash, error) {
	switch binding {
	case NonceEmbedded:
		return crypto.Keccak256Hash(payload), nil
	case NoncePrefixed:
		if err := wire.CheckUint(nonce, 256); err != nil {
			return common.Hash{}, fmt.Errorf("nonce: %w", err)
		}
		data := new(wire.Packed).Uint256(nonce).Raw(payload).Bytes()
		return crypto.Keccak256Hash(data), nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported nonce binding %s", binding)
	}
}

// PersonalHash wraps hash with the "\x19Ethereum Signed Message:\n32" prefix, the digest that
// personal_sign and the contract's ecrecover operate on.
func PersonalHash(hash common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(hash.Bytes()))
}
