package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// ErrTooManyRequests signals that the caller exceeded its window quota. It
// is retriable: the caller may back off and initiate a new turn.
var ErrTooManyRequests = errors.New("too many requests")

// CounterStore is the shared counter backend the limiter needs. The only
// cross-context shared resource in the pipeline; increments must be atomic.
type CounterStore interface {
	// Incr atomically increments the counter at key, setting ttl on first
	// write, and returns the new value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the counter at key, or 0 when it does not exist.
	Get(ctx context.Context, key string) (int64, error)
}

const (
	defaultLimit  = 60
	defaultWindow = time.Minute
)

// Limiter admits requests by a sliding-window count per client identity.
// Two fixed-width window buckets are combined with a weighted count of the
// previous bucket, approximating a true sliding window without keeping
// per-request state.
//
// A nil limiter or a limiter without a store admits everything
// (pass-through). A store failure also admits the request: availability is
// deliberately preferred over strictness here.
type Limiter struct {
	store  CounterStore
	limit  int64
	window time.Duration

	now func() time.Time
}

type LimiterOption func(*Limiter)

// WithQuota overrides the default quota of 60 requests per minute.
func WithQuota(limit int64, window time.Duration) LimiterOption {
	return func(l *Limiter) {
		l.limit = limit
		l.window = window
	}
}

func withClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(store CounterStore, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  defaultLimit,
		window: defaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether the request identified by key is admitted. It
// returns ErrTooManyRequests when the quota is exceeded and nil in every
// other case, including backend failure (fail-open).
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.store == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "rate limit check")
	defer span.End()
	span.SetAttributes(attribute.String("ratelimit.key", key))

	now := l.now()
	windowStart := now.Truncate(l.window)
	currentKey := bucketKey(key, windowStart)
	previousKey := bucketKey(key, windowStart.Add(-l.window))

	current, err := l.store.Incr(ctx, currentKey, 2*l.window)
	if err != nil {
		logger.WarnContext(ctx, "rate limit backend unreachable, failing open", "error", err)
		span.RecordError(err)
		return nil
	}

	previous, err := l.store.Get(ctx, previousKey)
	if err != nil {
		logger.WarnContext(ctx, "rate limit backend unreachable, failing open", "error", err)
		span.RecordError(err)
		return nil
	}

	elapsed := now.Sub(windowStart)
	weight := 1 - float64(elapsed)/float64(l.window)
	weighted := float64(current) + float64(previous)*weight

	span.SetAttributes(attribute.Float64("ratelimit.weighted_count", weighted))
	if weighted > float64(l.limit) {
		return fmt.Errorf("%w: %s", ErrTooManyRequests, key)
	}
	return nil
}

func bucketKey(key string, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())
}
