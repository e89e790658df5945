package risk

import (
	"testing"

	"quant-engine/internal/market"
)

func TestGateEvaluate(t *testing.T) {
	snap := market.NewSnapshot([]string{"AAAUSDT", "BBBUSDT", "CCCUSDT", "DDDUSDT", "ZEROUSDT"}, map[string]market.Ticker{
		"AAAUSDT":  {Price: 100, Spread: 1},
		"BBBUSDT":  {Price: 100, Spread: 10},
		"CCCUSDT":  {Price: 100, Spread: 10.5},
		"DDDUSDT":  {Price: 100, Spread: 1},
		"ZEROUSDT": {Price: 0, Spread: 0},
	})
	metrics := map[string]market.Metrics{
		"AAAUSDT":  {Volatility: 0.5},
		"BBBUSDT":  {Volatility: 1.3},
		"CCCUSDT":  {Volatility: 0.1},
		"ZEROUSDT": {Volatility: 0.1},
	}

	tests := []struct {
		symbol string
		want   bool
	}{
		{"AAAUSDT", true},
		{"BBBUSDT", true},  // both limits are inclusive
		{"CCCUSDT", false}, // spread ratio 0.105
		{"DDDUSDT", false}, // no metrics row
		{"ZEROUSDT", false},
		{"MISSINGUSDT", false},
	}
	g := NewGate(nil)
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			dec := g.Evaluate(tt.symbol, snap, metrics)
			if dec.Approved != tt.want {
				t.Fatalf("Approved=%v, expected %v (reason %q)", dec.Approved, tt.want, dec.Reason)
			}
			if !dec.Approved && dec.Reason == "" {
				t.Fatalf("rejection without reason")
			}
		})
	}
}

func TestGateVolatilityMonotonic(t *testing.T) {
	snap := market.NewSnapshot([]string{"XUSDT"}, map[string]market.Ticker{"XUSDT": {Price: 10, Spread: 0.01}})
	g := NewGate(nil)
	rejected := false
	for v := 0.0; v <= 3.0; v += 0.05 {
		ok := g.Approve("XUSDT", snap, map[string]market.Metrics{"XUSDT": {Volatility: v}})
		if rejected && ok {
			t.Fatalf("approval flipped back at volatility %v", v)
		}
		if !ok {
			if v <= MaxVolatility {
				t.Fatalf("rejected below threshold at %v", v)
			}
			rejected = true
		}
	}
	if !rejected {
		t.Fatal("never rejected")
	}
}
