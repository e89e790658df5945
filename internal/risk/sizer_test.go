package risk

import (
	"math"
	"testing"

	"quant-engine/internal/balance"
	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

func usdt(free float64) balance.Portfolio {
	return balance.FromAssetBalances([]common.AssetBalance{{Asset: "USDT", Balance: free, AvailableBalance: free}})
}

func TestSizeKellyScenario(t *testing.T) {
	s := settings.Defaults()
	in := SizeInput{Symbol: "XUSDT", Price: 100, Volatility: 0.05, Liquidity: 10000, TrendStrength: 0.8}

	got := NewSizer(nil).Compute(in, s, usdt(1000))
	if math.Abs(got.WinProbability-0.8) > 1e-12 {
		t.Fatalf("WinProbability=%v, expected 0.8", got.WinProbability)
	}
	if math.Abs(got.Kelly-0.7) > 1e-12 {
		t.Fatalf("Kelly=%v, expected 0.7", got.Kelly)
	}
	if math.Abs(got.RiskCapital-700) > 1e-9 {
		t.Fatalf("RiskCapital=%v, expected 700", got.RiskCapital)
	}
	if got.LiquidityFactor != 1 {
		t.Fatalf("LiquidityFactor=%v, expected 1", got.LiquidityFactor)
	}
	want := 700 / 1.05 / 100
	if math.Abs(got.Quantity-want) > 1e-9 || math.Abs(got.Quantity-6.667) > 1e-3 {
		t.Fatalf("Quantity=%v, expected %v", got.Quantity, want)
	}
}

func TestSizeZeroBalance(t *testing.T) {
	z := NewSizer(nil)
	for _, dynamic := range []bool{true, false} {
		s := settings.Defaults()
		s.DynamicPositionSizing = dynamic
		for _, free := range []float64{0, -5} {
			for _, trend := range []float64{-1, 0, 0.3, 1} {
				in := SizeInput{Price: 100, Volatility: 0.1, Liquidity: 1e9, TrendStrength: trend}
				if q := z.Size(in, s, usdt(free)); q != 0 {
					t.Fatalf("dynamic=%v free=%v trend=%v: Quantity=%v, expected 0", dynamic, free, trend, q)
				}
			}
		}
		if q := z.Size(SizeInput{Price: 100, TrendStrength: 1}, s, balance.Portfolio{}); q != 0 {
			t.Fatalf("dynamic=%v missing quote asset: Quantity=%v, expected 0", dynamic, q)
		}
	}
}

func TestSizeFixedFallback(t *testing.T) {
	s := settings.Defaults()
	s.DynamicPositionSizing = false
	got := NewSizer(nil).Compute(SizeInput{Price: 100}, s, usdt(1000))
	if got.Quantity != 0.1 || !got.FixedSizeFallback {
		t.Fatalf("sizing = %+v, expected fixed 0.1", got)
	}
}

func TestSizeLiquidityDampener(t *testing.T) {
	s := settings.Defaults()
	in := SizeInput{Price: 10, Liquidity: 700, TrendStrength: 0.8}
	got := NewSizer(nil).Compute(in, s, usdt(1000))
	if math.Abs(got.LiquidityFactor-0.5) > 1e-12 {
		t.Fatalf("LiquidityFactor=%v, expected 0.5", got.LiquidityFactor)
	}
	if math.Abs(got.Quantity-35) > 1e-9 {
		t.Fatalf("Quantity=%v, expected 35", got.Quantity)
	}
}

func TestSizeNegativeKelly(t *testing.T) {
	s := settings.Defaults()
	s.RiskRewardRatio = 0.5 // f = (0.55*1.5-1)/0.5 < 0
	if q := NewSizer(nil).Size(SizeInput{Price: 10, Liquidity: 1e6}, s, usdt(1000)); q != 0 {
		t.Fatalf("Quantity=%v, expected 0", q)
	}
}

func TestBracketsAndSide(t *testing.T) {
	sl, tp := Brackets(common.SideBuy, 100, 0.2, 0.5)
	if math.Abs(sl-80) > 1e-9 || math.Abs(tp-150) > 1e-9 {
		t.Fatalf("buy brackets sl=%v tp=%v", sl, tp)
	}
	sl, tp = Brackets(common.SideSell, 100, 0.2, 0.5)
	if math.Abs(sl-120) > 1e-9 || math.Abs(tp-50) > 1e-9 {
		t.Fatalf("sell brackets sl=%v tp=%v", sl, tp)
	}

	tests := []struct {
		score, min float64
		side       common.Side
		ok         bool
	}{
		{0.6, 0, common.SideBuy, true},
		{-0.2, 0, common.SideSell, true},
		{0, 0, "", false},
		{0.2, 0.2, "", false},
		{-0.4, 0.2, common.SideSell, true},
	}
	for _, tt := range tests {
		side, ok := SideFor(tt.score, tt.min)
		if side != tt.side || ok != tt.ok {
			t.Fatalf("SideFor(%v,%v)=(%v,%v), expected (%v,%v)", tt.score, tt.min, side, ok, tt.side, tt.ok)
		}
	}
}
