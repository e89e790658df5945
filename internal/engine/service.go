// Package engine runs the refresh, score, approve, size and execute pipeline
// and exposes it to the control surface.
package engine

import (
	"context"
	"errors"

	"quant-engine/internal/settings"
)

// ErrCycleInProgress is returned when a refresh or cycle is requested while
// another one holds the engine.
var ErrCycleInProgress = errors.New("a refresh or strategy cycle is already in progress")

// Service defines the engine operations the control surface may call.
type Service interface {
	// RefreshMarketData rebuilds snapshot, metrics and portfolio atomically.
	// The error is non-nil only when another cycle holds the engine.
	RefreshMarketData(ctx context.Context) (bool, error)
	// RunStrategyCycle refreshes and runs the pipeline for every snapshot symbol.
	RunStrategyCycle(ctx context.Context) (CycleSummary, error)

	GetOpenPositions(ctx context.Context) ([]string, error)
	GetOpenOrders(ctx context.Context) ([]string, error)

	// Start and Stop toggle the running flag; Stop reports whether it was set.
	Start()
	Stop() bool
	IsRunning() bool

	Status() Status
	Market() MarketView
	Settings() *settings.Store
}
