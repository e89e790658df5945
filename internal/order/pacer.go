package order

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces order-related exchange calls by a fixed interval.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	limiter  *rate.Limiter
}

// NewPacer creates a pacer. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	p := &Pacer{}
	p.SetInterval(interval)
	return p
}

// SetInterval changes the spacing. Unchanged intervals keep the limiter state.
func (p *Pacer) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limiter != nil && d == p.interval {
		return
	}
	p.interval = d
	if d <= 0 {
		p.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	p.limiter = rate.NewLimiter(rate.Every(d), 1)
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	l := p.limiter
	p.mu.Unlock()
	return l.Wait(ctx)
}

// Backoff returns base * 2^retry capped at limit.
func Backoff(base, limit time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}
	if retry < 0 {
		return base
	}
	if retry > 30 {
		return limit
	}
	d := base * time.Duration(1<<retry)
	if d > limit || d <= 0 {
		return limit
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
