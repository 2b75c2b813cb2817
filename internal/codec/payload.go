package codec

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"u3relay/internal/model"
)

// ErrHashMismatch is returned when a payload no longer hashes to the value that was signed.
var ErrHashMismatch = errors.New("payload hash mismatch")

// SignedPayload is a payload plus the signature over its signing hash. Payload holds exactly the
// bytes that get submitted on-chain.
type SignedPayload struct {
	Variant   Variant
	Binding   NonceBinding
	Payload   []byte
	Hash      common.Hash
	Signature Signature
}

// Authorize encodes intent, hashes it under binding and signs the hash with key.
func Authorize(intent SwapIntent, variant Variant, binding NonceBinding, key *ecdsa.PrivateKey) (SignedPayload, error) {
	payload, err := Encode(intent, variant)
	if err != nil {
		return SignedPayload{}, err
	}
	hash, err := HashForSigning(payload, intent.Nonce, binding)
	if err != nil {
		return SignedPayload{}, err
	}
	sig, err := Sign(hash, key)
	if err != nil {
		return SignedPayload{}, err
	}
	return SignedPayload{
		Variant:   variant,
		Binding:   binding,
		Payload:   payload,
		Hash:      hash,
		Signature: sig,
	}, nil
}

// Intent decodes the payload back into the intent it was built from.
func (p SignedPayload) Intent() (SwapIntent, error) {
	return Decode(p.Payload, p.Variant)
}

// SigningHash recomputes the signing hash from the payload bytes.
func (p SignedPayload) SigningHash() (common.Hash, error) {
	intent, err := p.Intent()
	if err != nil {
		return common.Hash{}, err
	}
	return HashForSigning(p.Payload, intent.Nonce, p.Binding)
}

// Recover recomputes the signing hash and returns the signer. A recorded Hash that disagrees
// with the payload is reported as ErrHashMismatch.
func (p SignedPayload) Recover() (common.Address, error) {
	hash, err := p.SigningHash()
	if err != nil {
		return common.Address{}, err
	}
	if p.Hash != (common.Hash{}) && p.Hash != hash {
		return common.Address{}, fmt.Errorf("%w: recorded %s, computed %s", ErrHashMismatch, p.Hash.Hex(), hash.Hex())
	}
	return Verify(hash, p.Signature)
}

// Record converts the payload into its persisted form.
func (p SignedPayload) Record(id string, chainID uint64, signer common.Address, createdAt time.Time) (model.AuthorizationRecord, error) {
	intent, err := p.Intent()
	if err != nil {
		return model.AuthorizationRecord{}, err
	}
	return model.AuthorizationRecord{
		ID:                id,
		ChainID:           chainID,
		Signer:            signer.Hex(),
		Variant:           p.Variant.String(),
		NonceBinding:      p.Binding.String(),
		Payload:           hexutil.Encode(p.Payload),
		Hash:              p.Hash.Hex(),
		V:                 p.Signature.V,
		R:                 p.Signature.R.Hex(),
		S:                 p.Signature.S.Hex(),
		AmountSpecified:   intent.AmountSpecified.String(),
		LimitAmount:       intent.LimitAmount.String(),
		Deadline:          intent.Deadline,
		Nonce:             intent.Nonce.String(),
		Pool:              intent.Pool.Hex(),
		TokenIn:           intent.TokenIn.Hex(),
		TokenOut:          intent.TokenOut.Hex(),
		Recipient:         intent.Recipient.Hex(),
		SqrtPriceLimitX96: intent.sqrtPriceLimit().String(),
		Fee:               intent.Fee,
		ExactIn:           intent.ExactIn,
		CreatedAt:         createdAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// FromRecord rebuilds a signed payload from its persisted form. Only the payload, variant,
// binding, hash and signature are read; the intent columns are derived data.
func FromRecord(rec model.AuthorizationRecord) (SignedPayload, error) {
	variant, err := ParseVariant(rec.Variant)
	if err != nil {
		return SignedPayload{}, err
	}
	binding, err := ParseNonceBinding(rec.NonceBinding)
	if err != nil {
		return SignedPayload{}, err
	}
	payload, err := hexutil.Decode(rec.Payload)
	if err != nil {
		return SignedPayload{}, fmt.Errorf("payload: %w", err)
	}

	var hash common.Hash
	if rec.Hash != "" {
		raw, err := hexutil.Decode(rec.Hash)
		if err != nil || len(raw) != common.HashLength {
			return SignedPayload{}, fmt.Errorf("invalid hash %q", rec.Hash)
		}
		hash = common.BytesToHash(raw)
	}

	r, err := decodeWord(rec.R, "r")
	if err != nil {
		return SignedPayload{}, err
	}
	s, err := decodeWord(rec.S, "s")
	if err != nil {
		return SignedPayload{}, err
	}
	sig := Signature{V: rec.V, R: r, S: s}
	if _, err := sig.recoverable(); err != nil {
		return SignedPayload{}, err
	}

	return SignedPayload{
		Variant:   variant,
		Binding:   binding,
		Payload:   payload,
		Hash:      hash,
		Signature: sig,
	}, nil
}

func decodeWord(input, name string) (common.Hash, error) {
	raw, err := hexutil.Decode(input)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signature %s: %w", name, err)
	}
	if len(raw) > common.HashLength {
		return common.Hash{}, fmt.Errorf("signature %s is %d bytes", name, len(raw))
	}
	return common.BytesToHash(raw), nil
}
