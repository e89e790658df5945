package order

import (
	"errors"

	"quant-engine/pkg/exchanges/common"
)

var (
	// ErrRejected marks an order skipped by a precondition. Nothing was sent.
	ErrRejected = errors.New("order rejected by precondition")
	// ErrPartialExecution marks an entry whose protective legs could not all
	// be placed.
	ErrPartialExecution = errors.New("partial bracket execution")
)

// Leg names one order of a bracket.
type Leg string

const (
	LegEntry      Leg = "entry"
	LegStopLoss   Leg = "stop_loss"
	LegTakeProfit Leg = "take_profit"
	LegFlatten    Leg = "flatten"
)

// ExecuteRequest is the intent to open one bracketed position.
type ExecuteRequest struct {
	Symbol         string
	Side           common.Side
	ReferencePrice float64
	Quantity       float64
}

// LegReceipt records the outcome of one submitted leg.
type LegReceipt struct {
	Leg      Leg                 `json:"leg"`
	Request  common.OrderRequest `json:"request"`
	Result   common.OrderResult  `json:"result"`
	Attempts int                 `json:"attempts"`
	Error    string              `json:"error,omitempty"`
}

// OK reports whether the leg was accepted.
func (r LegReceipt) OK() bool { return r.Error == "" }

// Report describes what Execute did.
type Report struct {
	Symbol      string       `json:"symbol"`
	Side        common.Side  `json:"side"`
	Skipped     bool         `json:"skipped"`
	Reason      string       `json:"reason,omitempty"`
	LimitPrice  float64      `json:"limit_price"`
	Quantity    float64      `json:"quantity"`
	Notional    float64      `json:"notional"`
	StopPrice   float64      `json:"stop_price"`
	TakePrice   float64      `json:"take_price"`
	Legs        []LegReceipt `json:"legs"`
	OpenTrades  int          `json:"open_trades"`
	Unprotected bool         `json:"unprotected"`
	MissingLegs []Leg        `json:"missing_legs,omitempty"`
	Flattened   bool         `json:"flattened"`
	DryRun      bool         `json:"dry_run"`
}
