package common

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TimeSync periodically re-aligns the local signing clock with the exchange.
// The sync function is expected to apply the offset to its own client and
// report it back in milliseconds.
type TimeSync struct {
	sync     func(ctx context.Context) (int64, error)
	interval time.Duration
	log      *zap.Logger
}

// NewTimeSync creates a synchronizer that runs sync every interval.
func NewTimeSync(sync func(ctx context.Context) (int64, error), interval time.Duration, log *zap.Logger) *TimeSync {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TimeSync{sync: sync, interval: interval, log: log}
}

// Start runs an initial sync and then resyncs in the background until ctx ends.
func (ts *TimeSync) Start(ctx context.Context) {
	ts.run(ctx)

	go func() {
		ticker := time.NewTicker(ts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ts.run(ctx)
			}
		}
	}()
}

func (ts *TimeSync) run(ctx context.Context) {
	offset, err := ts.sync(ctx)
	if err != nil {
		ts.log.Warn("time sync failed", zap.Error(err))
		return
	}
	ts.log.Debug("time sync", zap.Int64("offset_ms", offset))
}
