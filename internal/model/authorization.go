package model

import (
	"encoding/json"
)

// AuthorizationRecord is the persisted form of a signed swap authorization.
// Integers are decimal strings so 256-bit values survive JSON and SQL round trips.
type AuthorizationRecord struct {
	ID                string `json:"id"`
	ChainID           uint64 `json:"chain_id"`
	Signer            string `json:"signer"`
	Variant           string `json:"variant"`
	NonceBinding      string `json:"nonce_binding"`
	Payload           string `json:"payload"`
	Hash              string `json:"hash"`
	V                 uint8  `json:"v"`
	R                 string `json:"r"`
	S                 string `json:"s"`
	AmountSpecified   string `json:"amount_specified"`
	LimitAmount       string `json:"limit_amount"`
	Deadline          uint64 `json:"deadline"`
	Nonce             string `json:"nonce"`
	Pool              string `json:"pool"`
	TokenIn           string `json:"token_in"`
	TokenOut          string `json:"token_out"`
	Recipient         string `json:"recipient"`
	SqrtPriceLimitX96 string `json:"sqrt_price_limit_x96"`
	Fee               uint32 `json:"fee"`
	ExactIn           bool   `json:"exact_in"`
	CreatedAt         string `json:"created_at"`
}

// MarshalJSON ensures AuthorizationRecord is encoded with stable field names.
func (r AuthorizationRecord) MarshalJSON() ([]byte, error) {
	type Alias AuthorizationRecord
	return json.Marshal(Alias(r))
}

// UnmarshalJSON decodes an AuthorizationRecord from JSON.
func (r *AuthorizationRecord) UnmarshalJSON(data []byte) error {
	type Alias AuthorizationRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = AuthorizationRecord(a)
	return nil
}
