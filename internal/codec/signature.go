package codec

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"u3relay/internal/wire"
)

// ErrSignerMismatch is returned when a signature recovers to an unexpected address.
var ErrSignerMismatch = errors.New("signer mismatch")

const signatureLength = 65

// Signature is a recoverable secp256k1 signature split the way relayedSwap takes it.
type Signature struct {
	V uint8
	R common.Hash
	S common.Hash
}

// Sign signs the personal-message digest of hash. V is returned as 27 or 28.
func Sign(hash common.Hash, key *ecdsa.PrivateKey) (Signature, error) {
	if key == nil {
		return Signature{}, fmt.Errorf("signing key is nil")
	}
	sig, err := crypto.Sign(PersonalHash(hash).Bytes(), key)
	if err != nil {
		return Signature{}, fmt.Errorf("sign: %w", err)
	}
	return Signature{
		V: sig[64] + 27,
		R: common.BytesToHash(sig[:32]),
		S: common.BytesToHash(sig[32:64]),
	}, nil
}

// Verify recovers the address that signed hash.
func Verify(hash common.Hash, sig Signature) (common.Address, error) {
	raw, err := sig.recoverable()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(PersonalHash(hash).Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", wire.ErrSignatureFormat, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySigner recovers the signer of hash and checks it against expected.
func VerifySigner(hash common.Hash, sig Signature, expected common.Address) error {
	signer, err := Verify(hash, sig)
	if err != nil {
		return err
	}
	if signer != expected {
		return fmt.Errorf("%w: recovered %s, expected %s", ErrSignerMismatch, signer.Hex(), expected.Hex())
	}
	return nil
}

// ParseSignature splits a 65-byte r ++ s ++ v signature.
func ParseSignature(data []byte) (Signature, error) {
	if len(data) != signatureLength {
		return Signature{}, fmt.Errorf("%w: length %d, want %d", wire.ErrSignatureFormat, len(data), signatureLength)
	}
	sig := Signature{
		V: data[64],
		R: common.BytesToHash(data[:32]),
		S: common.BytesToHash(data[32:64]),
	}
	if _, err := sig.recoverable(); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// ParseSignatureHex parses a 0x-prefixed flat signature.
func ParseSignatureHex(input string) (Signature, error) {
	data, err := hexutil.Decode(input)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", wire.ErrSignatureFormat, err)
	}
	return ParseSignature(data)
}

// Bytes returns the flat r ++ s ++ v form.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, signatureLength)
	out = append(out, s.R.Bytes()...)
	out = append(out, s.S.Bytes()...)
	return append(out, s.V)
}

// Hex returns the flat signature as 0x-prefixed hex.
func (s Signature) Hex() string {
	return hexutil.Encode(s.Bytes())
}

// recoverable validates v, r and s and returns the 65-byte form crypto.SigToPub expects
// (recovery id 0 or 1). Only low-s signatures are accepted.
func (s Signature) recoverable() ([]byte, error) {
	v := s.V
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, fmt.Errorf("%w: invalid v %d", wire.ErrSignatureFormat, s.V)
	}
	r := new(big.Int).SetBytes(s.R.Bytes())
	sv := new(big.Int).SetBytes(s.S.Bytes())
	if !crypto.ValidateSignatureValues(v, r, sv, true) {
		return nil, fmt.Errorf("%w: r or s out of range", wire.ErrSignatureFormat)
	}

	raw := make([]byte, 0, signatureLength)
	raw = append(raw, s.R.Bytes()...)
	raw = append(raw, s.S.Bytes()...)
	return append(raw, v), nil
}
