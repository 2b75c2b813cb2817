package quote

import (
	"fmt"
	"time"
)

// StaleQuoteError reports a quote whose pool read is older than the allowed age.
// It is advisory: callers log it and keep going.
type StaleQuoteError struct {
	Age    time.Duration
	MaxAge time.Duration
}

func (e *StaleQuoteError) Error() string {
	return fmt.Sprintf("stale quote: observed %s ago, max age %s", e.Age.Round(time.Millisecond), e.MaxAge)
}

// CheckFresh returns a *StaleQuoteError when the quote was observed more than maxAge before now.
// A zero ObservedAt or a non-positive maxAge disables the check.
func (q Quote) CheckFresh(now time.Time, maxAge time.Duration) error {
	if q.ObservedAt.IsZero() || maxAge <= 0 {
		return nil
	}
	age := now.Sub(q.ObservedAt)
	if age > maxAge {
		return &StaleQuoteError{Age: age, MaxAge: maxAge}
	}
	return nil
}
