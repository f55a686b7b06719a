package fx

import (
	"context"
	"fmt"

	"duit/internal/core"
)

// Static serves rates from a fixed table of units-per-MYR quotes.
// Cross rates derive from the base quotes, so converting out and back
// always lands on the starting amount. Useful offline and in tests.
type Static struct {
	perBase map[core.Currency]float64
}

var _ RateSource = (*Static)(nil)

// NewStatic builds a static source. The table maps each currency to
// how many of its units one MYR buys; MYR itself is implied at 1.
func NewStatic(perBase map[core.Currency]float64) *Static {
	table := map[core.Currency]float64{core.BaseCurrency: 1}
	for c, r := range perBase {
		if r > 0 {
			table[c] = r
		}
	}
	return &Static{perBase: table}
}

// DefaultStatic carries indicative rates for every supported currency.
func DefaultStatic() *Static {
	return NewStatic(map[core.Currency]float64{
		core.USD: 0.21,
		core.GBP: 0.17,
		core.SGD: 0.29,
		core.EUR: 0.20,
		core.AUD: 0.33,
		core.JPY: 33.0,
	})
}

func (s *Static) Rate(_ context.Context, from, to core.Currency) (float64, error) {
	if from == to {
		return 1, nil
	}
	fromRate, okFrom := s.perBase[from]
	toRate, okTo := s.perBase[to]
	if !okFrom || !okTo {
		return 0, fmt.Errorf("%w: no rate %s->%s", ErrRateUnavailable, from, to)
	}
	return toRate / fromRate, nil
}
