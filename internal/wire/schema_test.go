package wire

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPackedUsesNaturalWidths(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	h := common.HexToHash("0x02")

	out := new(Packed).Byte(0xff).Address(addr).Hash(h).Uint256(big.NewInt(7)).Bytes()
	if len(out) != 1+20+32+32 {
		t.Fatalf("packed length %d", len(out))
	}
	if out[0] != 0xff {
		t.Fatalf("discriminator mismatch")
	}
	if !bytes.Equal(out[1:21], addr.Bytes()) {
		t.Fatalf("address not packed at natural width")
	}
	if out[52] != 0x02 || out[84] != 0x07 {
		t.Fatalf("word contents mismatch: %x", out)
	}
}

func TestSchemaPadsAndRoundTrips(t *testing.T) {
	schema := Schema{
		{Name: "token", Type: Address},
		{Name: "fee", Type: Uint24},
		{Name: "flag", Type: Bool},
	}
	if !schema.Static() {
		t.Fatalf("schema should be static")
	}

	token := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	data, err := schema.Pack(token, big.NewInt(3000), true)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(data) != schema.Size() {
		t.Fatalf("encoded size %d, want %d", len(data), schema.Size())
	}
	if !bytes.Equal(data[12:32], token.Bytes()) {
		t.Fatalf("address not left padded")
	}

	values, err := schema.Unpack(data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if values[0].(common.Address) != token {
		t.Fatalf("token mismatch")
	}
	if values[1].(*big.Int).Int64() != 3000 {
		t.Fatalf("fee mismatch")
	}
	if values[2].(bool) != true {
		t.Fatalf("flag mismatch")
	}

	if _, err := schema.Unpack(data[:64]); err == nil {
		t.Fatalf("expected short payload error")
	}
	if _, err := schema.Pack(token); err == nil {
		t.Fatalf("expected arity error")
	}
}
