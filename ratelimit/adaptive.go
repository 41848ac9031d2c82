package ratelimit

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// Tuning knobs for the adaptive limiter. Exported so tests can assert
// against them.
const (
	RateMin            = 5.0   // lower bound for the adapted rate
	RateMax            = 500.0 // upper bound for the adapted rate
	RateBackoffFactor  = 0.7   // multiplier applied on each throttle
	RateRecoveryFactor = 1.1   // multiplier applied after a success streak
	RateRecoveryAfter  = 10    // streak length that triggers recovery
)

// AdaptiveRateLimiter paces outgoing requests based on throttle feedback.
// With an initial rate of 0 it stays dormant until the first throttle, so
// well-behaved backends are never slowed down artificially.
type AdaptiveRateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	active  bool
	current float64
	streak  int64 // consecutive successes since the last throttle
	name    string
}

// NewAdaptiveRateLimiter returns a limiter labeled name for log messages.
// A positive initialRate (clamped to [RateMin, RateMax]) activates pacing
// immediately; zero defers activation until RecordThrottle is called.
func NewAdaptiveRateLimiter(initialRate float64, name string) *AdaptiveRateLimiter {
	a := &AdaptiveRateLimiter{name: name}

	if initialRate > 0 {
		a.active = true
		a.applyRate(clampRate(initialRate))
	}

	return a
}

// clampRate keeps r within the allowed rate window.
func clampRate(r float64) float64 {
	if r < RateMin {
		return RateMin
	}

	if r > RateMax {
		return RateMax
	}

	return r
}

// applyRate installs newRate as the current limit. Callers must hold a.mu
// (or, in the constructor, have exclusive access).
func (a *AdaptiveRateLimiter) applyRate(newRate float64) {
	a.current = newRate

	if a.limiter == nil {
		a.limiter = rate.NewLimiter(rate.Limit(newRate), int(newRate))

		return
	}

	a.limiter.SetLimit(rate.Limit(newRate))
	a.limiter.SetBurst(int(newRate))
}

// Wait blocks until the limiter admits a request or ctx is canceled.
// A dormant limiter admits immediately.
func (a *AdaptiveRateLimiter) Wait(ctx context.Context) error {
	a.mu.Lock()
	limiter := a.limiter

	if !a.active || limiter == nil {
		a.mu.Unlock()

		return nil
	}
	a.mu.Unlock()

	return limiter.Wait(ctx) //nolint:wrapcheck // context errors should not be wrapped
}

// RecordSuccess notes a request that went through without throttling. Once
// RateRecoveryAfter successes accumulate in a row, the rate is raised by
// RateRecoveryFactor, up to RateMax.
func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return
	}

	a.streak++
	if a.streak < RateRecoveryAfter {
		return
	}

	a.streak = 0

	newRate := a.current * RateRecoveryFactor
	if newRate > RateMax {
		newRate = RateMax
	}

	if newRate != a.current {
		a.applyRate(newRate)
		slog.Debug("Rate limiter recovered", "name", a.name, "rate", newRate)
	}
}

// RecordThrottle reacts to a throttle response from the backend. A dormant
// limiter activates at RateMin; an active one backs off by RateBackoffFactor,
// never going below RateMin. Any success streak is reset.
func (a *AdaptiveRateLimiter) RecordThrottle() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.streak = 0

	if !a.active {
		a.active = true
		a.applyRate(RateMin)
		slog.Warn("Rate limiter enabled after throttle", "name", a.name, "rate", RateMin)

		return
	}

	newRate := a.current * RateBackoffFactor
	if newRate < RateMin {
		newRate = RateMin
	}

	a.applyRate(newRate)
	slog.Warn("Rate limiter backed off", "name", a.name, "rate", newRate)
}

// IsEnabled reports whether pacing is currently active.
func (a *AdaptiveRateLimiter) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.active
}

// CurrentRate returns the rate in requests per second, or 0 while dormant.
func (a *AdaptiveRateLimiter) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return 0
	}

	return a.current
}
