// Package fx provides exchange-rate sources for currency conversion.
// All conversion in the service runs through the base currency, so a
// source only ever needs pairwise rates.
package fx

import (
	"context"
	"errors"

	"duit/internal/core"
)

// ErrRateUnavailable signals that no rate could be obtained for the
// requested pair. Callers must leave their amounts untouched when they
// see it.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// RateSource yields the multiplier converting one unit of from into to.
type RateSource interface {
	Rate(ctx context.Context, from, to core.Currency) (float64, error)
}

// RateFunc adapts a function to the RateSource interface.
type RateFunc func(ctx context.Context, from, to core.Currency) (float64, error)

func (f RateFunc) Rate(ctx context.Context, from, to core.Currency) (float64, error) {
	return f(ctx, from, to)
}
