// Package risk approves symbols for trading and sizes positions.
package risk

import (
	"fmt"

	"go.uber.org/zap"

	"quant-engine/internal/market"
)

const (
	MaxVolatility  = 1.3
	MaxSpreadRatio = 0.10
)

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Gate rejects symbols whose volatility or relative spread is too high.
type Gate struct {
	log *zap.Logger
}

// NewGate creates a gate.
func NewGate(log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{log: log.Named("risk-gate")}
}

// Evaluate checks symbol against the snapshot and metrics of the current
// refresh. A missing row is a rejection.
func (g *Gate) Evaluate(symbol string, snap market.Snapshot, metrics map[string]market.Metrics) Decision {
	dec := evaluate(symbol, snap, metrics)
	if !dec.Approved {
		g.log.Info("symbol rejected", zap.String("symbol", symbol), zap.String("reason", dec.Reason))
	}
	return dec
}

// Approve is Evaluate reduced to a bool.
func (g *Gate) Approve(symbol string, snap market.Snapshot, metrics map[string]market.Metrics) bool {
	return g.Evaluate(symbol, snap, metrics).Approved
}

func evaluate(symbol string, snap market.Snapshot, metrics map[string]market.Metrics) Decision {
	row, ok := snap.Get(symbol)
	if !ok {
		return Decision{Reason: "no snapshot row"}
	}
	m, ok := metrics[symbol]
	if !ok {
		return Decision{Reason: "no metrics row"}
	}
	if m.Volatility > MaxVolatility {
		return Decision{Reason: fmt.Sprintf("volatility too high: %.4f > %.2f", m.Volatility, MaxVolatility)}
	}
	if row.Price <= 0 {
		return Decision{Reason: fmt.Sprintf("invalid price: %v", row.Price)}
	}
	if ratio := row.Spread / row.Price; ratio > MaxSpreadRatio {
		return Decision{Reason: fmt.Sprintf("spread too wide: %.4f > %.2f", ratio, MaxSpreadRatio)}
	}
	return Decision{Approved: true}
}
