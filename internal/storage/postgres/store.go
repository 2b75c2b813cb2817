package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"u3relay/internal/model"
)

// ErrNotFound is returned when no authorization has the requested id.
var ErrNotFound = errors.New("authorization not found")

// Schema creates the authorization ledger tables. A signer nonce is only consumed on chain by
// a successful relay, so several authorizations may share (chain_id, signer, nonce, variant).
const Schema = `
CREATE TABLE IF NOT EXISTS authorizations (
	id TEXT PRIMARY KEY,
	chain_id BIGINT NOT NULL,
	signer TEXT NOT NULL,
	variant TEXT NOT NULL,
	nonce_binding TEXT NOT NULL,
	payload TEXT NOT NULL,
	hash TEXT NOT NULL,
	v SMALLINT NOT NULL,
	r TEXT NOT NULL,
	s TEXT NOT NULL,
	amount_specified NUMERIC(78,0) NOT NULL,
	limit_amount NUMERIC(78,0) NOT NULL,
	deadline BIGINT NOT NULL,
	nonce NUMERIC(78,0) NOT NULL,
	pool TEXT NOT NULL,
	token_in TEXT NOT NULL,
	token_out TEXT NOT NULL,
	recipient TEXT NOT NULL,
	sqrt_price_limit_x96 NUMERIC(78,0) NOT NULL,
	fee INTEGER NOT NULL,
	exact_in BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
DROP INDEX IF EXISTS authorizations_chain_signer_nonce;
CREATE INDEX IF NOT EXISTS authorizations_chain_signer_nonce_idx
	ON authorizations (chain_id, signer, nonce, variant);
CREATE TABLE IF NOT EXISTS relay_results (
	authorization_id TEXT PRIMARY KEY REFERENCES authorizations (id),
	method TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	gas_used BIGINT NOT NULL,
	simulated_amount NUMERIC(78,0) NOT NULL,
	status TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides the Postgres authorization ledger.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// UpsertAuthorizations inserts or updates signed authorizations.
func (s *Store) UpsertAuthorizations(ctx context.Context, records []model.AuthorizationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		createdAt, err := parseTime(rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("authorization %s: %w", rec.ID, err)
		}
		batch.Queue(`
			INSERT INTO authorizations (
				id, chain_id, signer, variant, nonce_binding, payload, hash, v, r, s,
				amount_specified, limit_amount, deadline, nonce, pool, token_in, token_out, recipient,
				sqrt_price_limit_x96, fee, exact_in, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,now())
			ON CONFLICT (id)
			DO UPDATE SET
				payload = EXCLUDED.payload,
				hash = EXCLUDED.hash,
				v = EXCLUDED.v,
				r = EXCLUDED.r,
				s = EXCLUDED.s,
				updated_at = now()
		`,
			rec.ID,
			int64(rec.ChainID),
			rec.Signer,
			rec.Variant,
			rec.NonceBinding,
			rec.Payload,
			rec.Hash,
			int16(rec.V),
			rec.R,
			rec.S,
			rec.AmountSpecified,
			rec.LimitAmount,
			int64(rec.Deadline),
			rec.Nonce,
			rec.Pool,
			rec.TokenIn,
			rec.TokenOut,
			rec.Recipient,
			rec.SqrtPriceLimitX96,
			int32(rec.Fee),
			rec.ExactIn,
			createdAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveRelayResult upserts the outcome of relaying an authorization.
func (s *Store) SaveRelayResult(ctx context.Context, result model.RelayResult) error {
	if result.AuthorizationID == "" {
		return fmt.Errorf("authorization id required")
	}
	submittedAt, err := parseTime(result.SubmittedAt)
	if err != nil {
		return fmt.Errorf("relay result %s: %w", result.AuthorizationID, err)
	}
	simulated := result.SimulatedAmount
	if simulated == "" {
		simulated = "0"
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO relay_results (
			authorization_id, method, tx_hash, block_number, gas_used, simulated_amount, status, submitted_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (authorization_id) DO UPDATE
		SET method = EXCLUDED.method,
			tx_hash = EXCLUDED.tx_hash,
			block_number = EXCLUDED.block_number,
			gas_used = EXCLUDED.gas_used,
			simulated_amount = EXCLUDED.simulated_amount,
			status = EXCLUDED.status,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = now()
	`,
		result.AuthorizationID,
		result.Method,
		result.TxHash,
		int64(result.BlockNumber),
		int64(result.GasUsed),
		simulated,
		result.Status,
		submittedAt,
	)
	return err
}

// LoadAuthorization returns one authorization by id.
func (s *Store) LoadAuthorization(ctx context.Context, id string) (model.AuthorizationRecord, error) {
	rows, err := s.pool.Query(ctx, selectAuthorizations+` WHERE a.id = $1`, id)
	if err != nil {
		return model.AuthorizationRecord{}, err
	}
	records, err := scanAuthorizations(rows)
	if err != nil {
		return model.AuthorizationRecord{}, err
	}
	if len(records) == 0 {
		return model.AuthorizationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return records[0], nil
}

// LoadPending returns up to limit authorizations on chainID that have no successful relay
// and whose deadline is not before now, oldest first.
func (s *Store) LoadPending(ctx context.Context, chainID uint64, now time.Time, limit int) ([]model.AuthorizationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, selectAuthorizations+`
		LEFT JOIN relay_results rr ON rr.authorization_id = a.id
		WHERE a.chain_id = $1
			AND a.deadline >= $2
			AND (rr.status IS NULL OR rr.status <> $3)
		ORDER BY a.created_at
		LIMIT $4
	`, int64(chainID), now.Unix(), model.RelayStatusSucceeded, limit)
	if err != nil {
		return nil, err
	}
	return scanAuthorizations(rows)
}

const selectAuthorizations = `
	SELECT a.id, a.chain_id, a.signer, a.variant, a.nonce_binding, a.payload, a.hash, a.v, a.r, a.s,
		a.amount_specified::text, a.limit_amount::text, a.deadline, a.nonce::text, a.pool, a.token_in,
		a.token_out, a.recipient, a.sqrt_price_limit_x96::text, a.fee, a.exact_in, a.created_at
	FROM authorizations a`

func scanAuthorizations(rows pgx.Rows) ([]model.AuthorizationRecord, error) {
	defer rows.Close()

	var records []model.AuthorizationRecord
	for rows.Next() {
		var (
			rec       model.AuthorizationRecord
			chainID   int64
			v         int16
			deadline  int64
			fee       int32
			createdAt time.Time
		)
		if err := rows.Scan(
			&rec.ID, &chainID, &rec.Signer, &rec.Variant, &rec.NonceBinding, &rec.Payload, &rec.Hash, &v, &rec.R, &rec.S,
			&rec.AmountSpecified, &rec.LimitAmount, &deadline, &rec.Nonce, &rec.Pool, &rec.TokenIn,
			&rec.TokenOut, &rec.Recipient, &rec.SqrtPriceLimitX96, &fee, &rec.ExactIn, &createdAt,
		); err != nil {
			return nil, err
		}
		rec.ChainID = uint64(chainID)
		rec.V = uint8(v)
		rec.Deadline = uint64(deadline)
		rec.Fee = uint32(fee)
		rec.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return ts, nil
}
