package common

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// WeightLimiter spreads request weight over a rolling window so that a burst
// of market-data calls stays under the exchange's per-minute budget.
type WeightLimiter struct {
	limiter *rate.Limiter
	limit   int
}

// NewWeightLimiter creates a limiter for limit weight units per window
// (e.g. 2400 per minute for USDT-M futures).
func NewWeightLimiter(limit int, window time.Duration) *WeightLimiter {
	if limit <= 0 {
		limit = 1
	}
	perSecond := float64(limit) / window.Seconds()
	return &WeightLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), limit),
		limit:   limit,
	}
}

// Wait blocks until weight units are available or ctx is done.
func (w *WeightLimiter) Wait(ctx context.Context, weight int) error {
	if w == nil {
		return nil
	}
	if weight > w.limit {
		weight = w.limit
	}
	return w.limiter.WaitN(ctx, weight)
}
