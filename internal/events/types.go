package events

import "time"

// Event enumerates high-level topics inside the engine.
type Event string

const (
	EventMarketRefreshed     Event = "market.refreshed"
	EventCycleCompleted      Event = "cycle.completed"
	EventRiskRejected        Event = "risk.rejected"
	EventOrderSkipped        Event = "order.skipped"
	EventOrderPlaced         Event = "order.placed"
	EventOrderFailed         Event = "order.failed"
	EventPositionUnprotected Event = "position.unprotected"
	EventPositionFlattened   Event = "position.flattened"
	EventEngineState         Event = "engine.state"
)

// All lists every topic, in a stable order.
var All = []Event{
	EventMarketRefreshed,
	EventCycleCompleted,
	EventRiskRejected,
	EventOrderSkipped,
	EventOrderPlaced,
	EventOrderFailed,
	EventPositionUnprotected,
	EventPositionFlattened,
	EventEngineState,
}

// Envelope tags a payload with its topic for fan-in consumers.
type Envelope struct {
	Type    Event     `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// MarketRefreshed is published after a successful refresh.
type MarketRefreshed struct {
	Symbols int `json:"symbols"`
	Assets  int `json:"assets"`
}

// CycleCompleted summarizes one strategy cycle.
type CycleCompleted struct {
	Run       int64         `json:"run"`
	Refreshed bool          `json:"refreshed"`
	Evaluated int           `json:"evaluated"`
	Approved  int           `json:"approved"`
	Placed    int           `json:"placed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// RiskRejected reports a symbol the risk gate turned down.
type RiskRejected struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// OrderSkipped reports an order that failed a precondition.
type OrderSkipped struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// OrderPlaced reports one accepted order leg.
type OrderPlaced struct {
	Symbol   string  `json:"symbol"`
	Leg      string  `json:"leg"`
	Side     string  `json:"side"`
	Type     string  `json:"type"`
	Qty      float64 `json:"qty"`
	Price    float64 `json:"price"`
	ClientID string  `json:"client_id"`
	OrderID  string  `json:"order_id"`
	DryRun   bool    `json:"dry_run"`
}

// OrderFailed reports one failed order leg.
type OrderFailed struct {
	Symbol  string `json:"symbol"`
	Leg     string `json:"leg"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error"`
}

// PositionUnprotected reports an entry whose stop-loss or take-profit could
// not be placed.
type PositionUnprotected struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Qty        float64   `json:"qty"`
	MissingLeg []string  `json:"missing_legs"`
	Flattened  bool      `json:"flattened"`
	Since      time.Time `json:"since"`
}

// PositionFlattened reports a reduce-only close of an unprotected position.
type PositionFlattened struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Qty    float64 `json:"qty"`
}

// EngineState reports running flag changes.
type EngineState struct {
	Running bool `json:"running"`
}
