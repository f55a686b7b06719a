package fx

import (
	"context"
	"sync"
	"time"

	"duit/internal/core"
)

// Cached wraps a RateSource with a TTL cache so repeated conversions
// within the window reuse one upstream call per pair. Errors are never
// cached.
type Cached struct {
	source RateSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[pair]cachedRate
}

var _ RateSource = (*Cached)(nil)

type pair struct {
	from, to core.Currency
}

type cachedRate struct {
	rate    float64
	expires time.Time
}

func NewCached(source RateSource, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cached{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[pair]cachedRate),
	}
}

func (c *Cached) Rate(ctx context.Context, from, to core.Currency) (float64, error) {
	if from == to {
		return 1, nil
	}
	key := pair{from: from, to: to}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.rate, nil
	}
	c.mu.Unlock()

	rate, err := c.source.Rate(ctx, from, to)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries[key] = cachedRate{rate: rate, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return rate, nil
}
