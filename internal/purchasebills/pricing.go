package purchasebills

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PriceResolver resolves the active price for a supplier/material/unit/date.
// Implementations return an error wrapping ErrNoActivePrice when the server
// explicitly reports that no price is in effect.
type PriceResolver interface {
	ResolveActivePrice(ctx context.Context, query PriceQuery) (PriceQuote, error)
}

// LookupResult is the outcome of one lookup, tagged with its key.
type LookupResult struct {
	Key   LookupKey
	Quote PriceQuote
	Found bool
	// Err is set on transport failures only; a miss has Found=false, Err=nil.
	Err error
}

// Outcome labels the result for metrics and logs.
func (r LookupResult) Outcome() string {
	switch {
	case r.Found:
		return "found"
	case r.Err != nil:
		return "error"
	default:
		return "miss"
	}
}

// PriceLookup debounces price lookups: each Schedule replaces the pending
// timer, so only the last key within the window is queried. Results of
// lookups that already left are still delivered; callers discard them when
// the key no longer matches their state.
type PriceLookup struct {
	resolver PriceResolver
	delay    time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewPriceLookup constructs a debounced lookup client.
func NewPriceLookup(resolver PriceResolver, delay, timeout time.Duration, logger *slog.Logger) *PriceLookup {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PriceLookup{resolver: resolver, delay: delay, timeout: timeout, logger: logger}
}

// Schedule queues a lookup for key after the debounce delay, replacing any
// pending one. deliver runs on the timer goroutine.
func (p *PriceLookup) Schedule(key LookupKey, deliver func(LookupResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		deliver(p.Resolve(ctx, key))
	})
}

// Cancel drops the pending lookup, if any.
func (p *PriceLookup) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Resolve performs one lookup immediately.
func (p *PriceLookup) Resolve(ctx context.Context, key LookupKey) LookupResult {
	result := LookupResult{Key: key}
	if p.resolver == nil {
		result.Err = errors.New("purchasebills: price resolver not configured")
		return result
	}
	quote, err := p.resolver.ResolveActivePrice(ctx, key.Query())
	switch {
	case err == nil:
		result.Quote = quote
		result.Found = true
		p.logger.Debug("price lookup found", slog.Any("key", key), slog.String("price", quote.Price.String()))
	case errors.Is(err, ErrNoActivePrice):
		p.logger.Debug("price lookup miss", slog.Any("key", key))
	default:
		result.Err = err
		p.logger.Warn("price lookup failed", slog.Any("key", key), slog.Any("error", err))
	}
	return result
}
