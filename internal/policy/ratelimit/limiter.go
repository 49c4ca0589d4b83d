// Package ratelimit implements the token bucket that spaces each worker's
// outgoing requests.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/linkrank/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// Spacing is the minimum interval between two requests from the same
	// worker. Zero disables spacing.
	Spacing time.Duration
	// Burst is the number of requests allowed back to back (default 1).
	Burst int
}

// Limiter spaces requests for a single worker.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Inf
	if cfg.Spacing > 0 {
		r = rate.Every(cfg.Spacing)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(r, burst)}
}

// Wait blocks until the next request may start, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}
