package market

import (
	"context"
	"math"
	"testing"

	"quant-engine/internal/exchangetest"
	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

func TestImbalance(t *testing.T) {
	d := common.Depth{
		Bids: []common.PriceLevel{{Price: 100, Qty: 1}, {Price: 99, Qty: 1}, {Price: 98, Qty: 1}, {Price: 97, Qty: 1}, {Price: 96, Qty: 1}, {Price: 95, Qty: 100}},
		Asks: []common.PriceLevel{{Price: 101, Qty: 1}},
	}
	// the sixth bid level is ignored: (5-1)/(5+1)
	if got := Imbalance(d, ImbalanceLevels); math.Abs(got-4.0/6.0) > 1e-12 {
		t.Fatalf("imbalance = %v", got)
	}
	if got := Imbalance(common.Depth{}, ImbalanceLevels); got != 0 {
		t.Fatalf("empty book imbalance = %v", got)
	}
	if got := Imbalance(common.Depth{Asks: []common.PriceLevel{{Price: 1, Qty: 3}}}, ImbalanceLevels); got != -1 {
		t.Fatalf("asks-only imbalance = %v", got)
	}
}

func TestMidPrice(t *testing.T) {
	if got := MidPrice(100, exchangetest.Level(98, 1, 102, 1)); got != 99 {
		t.Fatalf("mid = %v", got)
	}
	if got := MidPrice(100, common.Depth{}); got != 100 {
		t.Fatalf("mid without bids = %v", got)
	}
}

func TestComputeMetrics(t *testing.T) {
	f := &exchangetest.Fake{
		Depths: map[string]common.Depth{
			"BTCUSDT": exchangetest.Level(99, 3, 101, 1),
		},
		Klines: map[string][]common.Kline{
			"BTCUSDT": exchangetest.TrendingKlines(10, 100, 1),
		},
	}
	snap := NewSnapshot([]string{"BTCUSDT", "ETHUSDT"}, map[string]Ticker{
		"BTCUSDT": {Price: 100, Volume: 300},
		"ETHUSDT": {Price: 10, Volume: 100},
	})

	got, err := NewMetricsCalculator(f, nil).Compute(context.Background(), snap, settings.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	btc := got["BTCUSDT"]
	if btc.MidPrice != 99.5 || btc.OrderBookImbalance != 0.5 {
		t.Fatalf("btc metrics = %+v", btc)
	}
	if btc.Volatility <= 0 || btc.VolumeProfile != 0.75 {
		t.Fatalf("btc metrics = %+v", btc)
	}
	eth := got["ETHUSDT"]
	if eth.Volatility != 0 || eth.OrderBookImbalance != 0 || eth.MidPrice != 10 {
		t.Fatalf("symbol without data should have neutral metrics: %+v", eth)
	}
	for sym, m := range got {
		if m.OrderBookImbalance < -1 || m.OrderBookImbalance > 1 || m.Volatility < 0 {
			t.Fatalf("%s out of range: %+v", sym, m)
		}
	}
	if f.CallCount("GetDepth") != 2 {
		t.Fatalf("depth must be fetched per symbol")
	}
}

func TestComputeFailsOnFetchError(t *testing.T) {
	f := &exchangetest.Fake{Errs: map[string]error{"GetDepth": exchangetest.ErrBoom}}
	snap := NewSnapshot([]string{"BTCUSDT"}, map[string]Ticker{"BTCUSDT": {Price: 1}})
	if _, err := NewMetricsCalculator(f, nil).Compute(context.Background(), snap, settings.Defaults()); err == nil {
		t.Fatal("expected error")
	}
}
