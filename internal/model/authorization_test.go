package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAuthorizationRecordJSONRoundTrip(t *testing.T) {
	original := AuthorizationRecord{
		ID:                "5f0c1c9e-7c1b-4c0e-9d55-3c1f3b2c9a10",
		ChainID:           1,
		Signer:            "0x1111111111111111111111111111111111111111",
		Variant:           "nested",
		NonceBinding:      "embedded",
		Payload:           "0xdeadbeef",
		Hash:              "0xabc123",
		V:                 27,
		R:                 "0x01",
		S:                 "0x02",
		AmountSpecified:   "4000000000000000000000",
		LimitAmount:       "1050000000000000000",
		Deadline:          1700000060,
		Nonce:             "0",
		Pool:              "0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8",
		TokenIn:           "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		TokenOut:          "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		Recipient:         "0x1111111111111111111111111111111111111111",
		SqrtPriceLimitX96: "0",
		Fee:               3000,
		ExactIn:           false,
		CreatedAt:         "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded AuthorizationRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestAuthorizationRecordAmountsAreStrings(t *testing.T) {
	data, err := json.Marshal(AuthorizationRecord{AmountSpecified: "4000000000000000000000", LimitAmount: "1", Nonce: "0"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount_specified", "limit_amount", "nonce", "sqrt_price_limit_x96"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}
