package postgres

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"

	"u3relay/internal/model"
)

func TestSchemaAllowsResigningNonce(t *testing.T) {
	unique := regexp.MustCompile(`(?is)UNIQUE\s+INDEX[^;]*\(\s*chain_id\s*,\s*signer\s*,\s*nonce`)
	if unique.MatchString(Schema) {
		t.Fatalf("schema must not make (chain_id, signer, nonce) unique")
	}
	if !regexp.MustCompile(`DROP INDEX IF EXISTS authorizations_chain_signer_nonce;`).MatchString(Schema) {
		t.Fatalf("schema must drop the old unique nonce index")
	}
}

func testRecord(id, signer string, deadline uint64) model.AuthorizationRecord {
	return model.AuthorizationRecord{
		ID:                id,
		ChainID:           31337,
		Signer:            signer,
		Variant:           "nested",
		NonceBinding:      "embedded",
		Payload:           "0xdeadbeef",
		Hash:              "0xabc123",
		V:                 27,
		R:                 "0x01",
		S:                 "0x02",
		AmountSpecified:   "4000000000000000000000",
		LimitAmount:       "1050000000000000000",
		Deadline:          deadline,
		Nonce:             "0",
		Pool:              "0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8",
		TokenIn:           "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		TokenOut:          "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		Recipient:         signer,
		SqrtPriceLimitX96: "0",
		Fee:               3000,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Needs U3R_TEST_PG_DSN pointing at a disposable database.
func TestUpsertResignedNonce(t *testing.T) {
	dsn := os.Getenv("U3R_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("U3R_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	signer := "0x" + uuid.NewString()[:8] + "00000000000000000000000000000000"
	now := time.Now()
	expired := testRecord(uuid.NewString(), signer, uint64(now.Add(-time.Minute).Unix()))
	resigned := testRecord(uuid.NewString(), signer, uint64(now.Add(time.Minute).Unix()))

	if err := store.UpsertAuthorizations(ctx, []model.AuthorizationRecord{expired}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.UpsertAuthorizations(ctx, []model.AuthorizationRecord{resigned}); err != nil {
		t.Fatalf("re-signed nonce rejected: %v", err)
	}

	got, err := store.LoadAuthorization(ctx, resigned.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Signer != signer || got.Nonce != "0" {
		t.Fatalf("unexpected record: %+v", got)
	}
}
