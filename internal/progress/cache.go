// Package progress looks up recent history for a training slot and turns it into
// values for pre-filling the next set.
package progress

import (
	"context"
	"log"
	"strings"

	"example.com/liftcoach/internal/domain"
)

// DefaultLimit is how many records a lookup asks for when the caller passes zero.
const DefaultLimit = 5

// Lookup fetches recent records for a progress key, most recent first.
type Lookup interface {
	LastByProgressKey(ctx context.Context, progressKey string, limit int) ([]domain.SetRecord, error)
}

// Prefill holds suggested values for the next set. Found is false when there is
// nothing to suggest, and the numeric fields are then zero.
type Prefill struct {
	Weight  float64            `json:"weight"`
	Reps    int                `json:"reps"`
	RIR     float64            `json:"rir"`
	Found   bool               `json:"found"`
	Source  *domain.SetRecord  `json:"source,omitempty"`
	History []domain.SetRecord `json:"history,omitempty"`
}

// Option configures optional behaviour for the Cache.
type Option func(*Cache)

// WithLogger overrides the logger used to report discarded lookup errors.
func WithLogger(logger *log.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithLimit changes the number of records requested per lookup.
func WithLimit(limit int) Option {
	return func(c *Cache) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// Cache answers history questions by asking the remote log every time. It holds no
// state between calls.
type Cache struct {
	lookup Lookup
	limit  int
	logger *log.Logger
}

// NewCache constructs a Cache over lookup.
func NewCache(lookup Lookup, opts ...Option) *Cache {
	c := &Cache{
		lookup: lookup,
		limit:  DefaultLimit,
		logger: log.New(log.Writer(), "[progress] ", log.LstdFlags|log.Lmsgprefix),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LastEntries returns up to limit records for progressKey, most recent first.
func (c *Cache) LastEntries(ctx context.Context, progressKey string, limit int) ([]domain.SetRecord, error) {
	if limit <= 0 {
		limit = c.limit
	}
	return c.lookup.LastByProgressKey(ctx, strings.TrimSpace(progressKey), limit)
}

// Prefill suggests weight, reps and RIR for ex from the most recent record of its
// progress key. Lookup failures are logged and yield an empty Prefill.
func (c *Cache) Prefill(ctx context.Context, ex domain.Exercise) Prefill {
	key := ex.ProgressKey()
	records, err := c.LastEntries(ctx, key, c.limit)
	if err != nil {
		c.logger.Printf("prefill lookup failed (progress_key=%s): %v", key, err)
		return Prefill{}
	}
	if len(records) == 0 {
		return Prefill{}
	}

	latest := records[0]
	return Prefill{
		Weight:  latest.Weight,
		Reps:    latest.Reps,
		RIR:     latest.RIR,
		Found:   true,
		Source:  &latest,
		History: records,
	}
}
