package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter spaces out requests by a random delay in [min, max).
// Wait only sleeps for the part of the delay that has not already passed
// since the previous action.
type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	rnd        *rand.Rand
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.calculateDelay()

	if elapsed < delay {
		if err := sleep(ctx, delay-elapsed); err != nil {
			return err
		}
	}

	r.lastAction = time.Now()
	return nil
}

// Pause sleeps for a full random delay regardless of when the last action
// happened. Used after loading a catalog page.
func (r *SimpleRateLimiter) Pause(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := sleep(ctx, r.calculateDelay()); err != nil {
		return err
	}
	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	r.maxDelay = max
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(r.rnd.Int63n(int64(delta)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
