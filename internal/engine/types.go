package engine

import (
	"time"

	"quant-engine/internal/balance"
	"quant-engine/internal/events"
	"quant-engine/internal/market"
	"quant-engine/internal/monitor"
	"quant-engine/internal/order"
)

// CycleSummary describes one strategy cycle.
type CycleSummary struct {
	Run       int64          `json:"run"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Refreshed bool           `json:"refreshed"`
	Evaluated int            `json:"evaluated"`
	Approved  int            `json:"approved"`
	Placed    int            `json:"placed"`
	Skipped   int            `json:"skipped"`
	Partial   int            `json:"partial"`
	Failed    int            `json:"failed"`
	Reports   []order.Report `json:"reports,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Status is the runtime state reported to operators.
type Status struct {
	Running         bool                         `json:"running"`
	RunCount        int64                        `json:"run_count"`
	TotalTradesOpen int                          `json:"total_trades_open"`
	DryRun          bool                         `json:"dry_run"`
	Testnet         bool                         `json:"testnet"`
	Symbols         int                          `json:"symbols"`
	RefreshedAt     time.Time                    `json:"refreshed_at,omitempty"`
	LastCycle       *CycleSummary                `json:"last_cycle,omitempty"`
	Unprotected     []events.PositionUnprotected `json:"unprotected_positions"`
	CycleLatency    monitor.LatencyStats         `json:"cycle_latency_ms"`
	Simulated       *order.DryRunState           `json:"simulated,omitempty"`
}

// MarketRow joins a snapshot row with its metrics.
type MarketRow struct {
	Symbol string `json:"symbol"`
	market.Ticker
	market.Metrics
}

// MarketView is the state of the last successful refresh.
type MarketView struct {
	RefreshedAt time.Time                  `json:"refreshed_at"`
	Rows        []MarketRow                `json:"rows"`
	Balances    map[string]balance.Balance `json:"balances"`
}
