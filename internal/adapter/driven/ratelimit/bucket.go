// Package ratelimit implements the Limiter port as a token bucket.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Limiter = (*Bucket)(nil)

// ErrCostExceedsCapacity is returned when a single acquisition asks for more
// tokens than the bucket can ever hold.
var ErrCostExceedsCapacity = errors.New("token cost exceeds bucket capacity")

var (
	metricsWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "profilehub_ratelimit_wait_seconds",
		Help:    "Time callers spent blocked waiting for rate limiter tokens",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
	})
	metricsTokensAcquired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "profilehub_ratelimit_tokens_acquired_total",
		Help: "Tokens debited from the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(metricsWaitSeconds, metricsTokensAcquired)
}

// Bucket is a token bucket holding up to capacity tokens and refilling at
// capacity tokens per interval. It starts full. Acquisitions from concurrent
// goroutines are debited atomically and waiters are suspended, never rejected.
type Bucket struct {
	limiter  *rate.Limiter
	capacity int
	interval time.Duration
}

// NewBucket creates a Bucket, e.g. NewBucket(45, time.Minute) for 45 calls per minute.
func NewBucket(capacity int, interval time.Duration) (*Bucket, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("bucket capacity must be positive, got %d", capacity)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("bucket interval must be positive, got %s", interval)
	}

	return &Bucket{
		limiter:  rate.NewLimiter(rate.Every(interval/time.Duration(capacity)), capacity),
		capacity: capacity,
		interval: interval,
	}, nil
}

// Acquire blocks until n tokens are available, then debits them. There is no
// upper bound on the wait other than ctx. n <= 0 returns immediately.
func (b *Bucket) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if n > b.capacity {
		return fmt.Errorf("acquire %d tokens from bucket of %d: %w", n, b.capacity, ErrCostExceedsCapacity)
	}

	start := time.Now()
	if err := b.limiter.WaitN(ctx, n); err != nil {
		return fmt.Errorf("acquire %d tokens: %w", n, err)
	}
	waited := time.Since(start)

	metricsWaitSeconds.Observe(waited.Seconds())
	metricsTokensAcquired.Add(float64(n))

	if waited >= time.Second {
		slog.Debug("rate limiter throttled call",
			"tokens", n,
			"waited", waited.Round(time.Millisecond),
		)
	}
	return nil
}

// Capacity returns the maximum number of tokens the bucket holds.
func (b *Bucket) Capacity() int { return b.capacity }

// Interval returns the period over which a full bucket refills.
func (b *Bucket) Interval() time.Duration { return b.interval }

// Available returns the current (fractional) token count, for observability.
func (b *Bucket) Available() float64 {
	return b.limiter.Tokens()
}
