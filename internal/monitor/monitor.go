package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"quant-engine/internal/events"
)

// Monitor watches hazard events and forwards them to an alert sink.
type Monitor struct {
	Bus  *events.Bus
	Sink AlertSink
	Log  *zap.Logger
}

// Start subscribes and forwards until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	log := m.Log
	if log == nil {
		log = zap.NewNop()
	}
	if m.Bus == nil || m.Sink == nil {
		log.Warn("monitor not fully configured; skipping")
		return
	}
	unprotected, unsubU := m.Bus.Subscribe(events.EventPositionUnprotected, 50)
	flattened, unsubF := m.Bus.Subscribe(events.EventPositionFlattened, 50)
	go func() {
		defer unsubU()
		defer unsubF()
		for {
			var msg any
			var ok bool
			select {
			case <-ctx.Done():
				return
			case msg, ok = <-unprotected:
			case msg, ok = <-flattened:
			}
			if !ok {
				return
			}
			if err := m.Sink.Send(FormatAlert(time.Now(), msg)); err != nil {
				log.Warn("alert delivery failed", zap.Error(err))
			}
		}
	}()
}

// FormatAlert renders a hazard payload as a single line.
func FormatAlert(at time.Time, msg any) string {
	prefix := "[" + at.UTC().Format(time.RFC3339) + "] "
	switch t := msg.(type) {
	case events.PositionUnprotected:
		state := "left open"
		if t.Flattened {
			state = "flattened"
		}
		return prefix + fmt.Sprintf("unprotected %s position on %s qty=%g missing=%s (%s)",
			t.Side, t.Symbol, t.Qty, strings.Join(t.MissingLeg, ","), state)
	case events.PositionFlattened:
		return prefix + fmt.Sprintf("flattened %s %s qty=%g", t.Side, t.Symbol, t.Qty)
	case string:
		return prefix + t
	default:
		return prefix + "alert triggered"
	}
}
