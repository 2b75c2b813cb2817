package storage

import (
	"context"
	"errors"

	"u3relay/internal/model"
)

// Ledger persists signed authorizations and their relay outcomes.
// JsonlStorage and postgres.Store both satisfy it.
type Ledger interface {
	UpsertAuthorizations(ctx context.Context, records []model.AuthorizationRecord) error
	SaveRelayResult(ctx context.Context, result model.RelayResult) error
}

type multiLedger []Ledger

// Multi writes to every ledger in order and joins their errors.
func Multi(ledgers ...Ledger) Ledger {
	out := make(multiLedger, 0, len(ledgers))
	for _, l := range ledgers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m multiLedger) UpsertAuthorizations(ctx context.Context, records []model.AuthorizationRecord) error {
	var errs []error
	for _, l := range m {
		if err := l.UpsertAuthorizations(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiLedger) SaveRelayResult(ctx context.Context, result model.RelayResult) error {
	var errs []error
	for _, l := range m {
		if err := l.SaveRelayResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
