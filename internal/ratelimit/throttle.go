package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottleConfig holds the outbound request budget of one API client.
type ThrottleConfig struct {
	// Rate is the number of requests allowed per second. Zero disables throttling.
	Rate float64
	// Burst is the maximum number of requests sent back to back.
	Burst int
}

// Throttle paces outbound requests of a client. A nil Throttle never blocks.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle returns nil when cfg.Rate is not positive.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.Rate <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(cfg.Rate), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

// TryAcquire takes a token without blocking.
func (t *Throttle) TryAcquire() bool {
	if t == nil {
		return true
	}
	return t.limiter.Allow()
}
