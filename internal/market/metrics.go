package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quant-engine/internal/indicators"
	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

// ImbalanceLevels is the number of book levels per side used for imbalance.
const ImbalanceLevels = 5

// Metrics are the derived per-symbol market measures for one refresh.
type Metrics struct {
	MidPrice           float64 `json:"mid_price"`
	OrderBookImbalance float64 `json:"order_book_imbalance"`
	Volatility         float64 `json:"volatility"`
	VolumeProfile      float64 `json:"volume_profile"`
}

// MetricsCalculator derives Metrics from a snapshot plus fresh depth and
// candle fetches.
type MetricsCalculator struct {
	client common.Client
	log    *zap.Logger
}

// NewMetricsCalculator creates a calculator over client.
func NewMetricsCalculator(client common.Client, log *zap.Logger) *MetricsCalculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &MetricsCalculator{client: client, log: log.Named("metrics")}
}

// Compute returns metrics for every snapshot symbol. A fetch error for any
// symbol fails the whole computation.
func (c *MetricsCalculator) Compute(ctx context.Context, snap Snapshot, s settings.Settings) (map[string]Metrics, error) {
	out := make(map[string]Metrics, snap.Len())
	total := snap.TotalVolume()

	for _, sym := range snap.Symbols() {
		row, _ := snap.Get(sym)

		depth, err := c.client.GetDepth(ctx, sym, s.DepthLimit)
		if err != nil {
			return nil, fmt.Errorf("depth %s: %w", sym, err)
		}
		klines, err := c.client.GetKlines(ctx, sym, s.KlineInterval, s.KlineLimit)
		if err != nil {
			return nil, fmt.Errorf("klines %s: %w", sym, err)
		}

		closes := make([]float64, len(klines))
		for i, k := range klines {
			closes[i] = k.Close
		}

		m := Metrics{
			MidPrice:           MidPrice(row.Price, depth),
			OrderBookImbalance: Imbalance(depth, ImbalanceLevels),
			Volatility:         indicators.LogReturnVolatility(closes),
		}
		if total > 0 {
			m.VolumeProfile = row.Volume / total
		}
		out[sym] = m
	}

	c.log.Debug("metrics computed", zap.Int("symbols", len(out)))
	return out, nil
}

// MidPrice averages the last trade price with the best bid. Without bids the
// last price is returned.
func MidPrice(last float64, depth common.Depth) float64 {
	if len(depth.Bids) == 0 {
		return last
	}
	return (last + depth.BestBid()) / 2
}

// Imbalance returns (bidVol - askVol) / (bidVol + askVol) over the top levels
// of each side, or 0 when both sums are zero.
func Imbalance(depth common.Depth, levels int) float64 {
	var bidSum, askSum float64
	for i := 0; i < len(depth.Bids) && i < levels; i++ {
		bidSum += depth.Bids[i].Qty
	}
	for i := 0; i < len(depth.Asks) && i < levels; i++ {
		askSum += depth.Asks[i].Qty
	}
	if bidSum+askSum == 0 {
		return 0
	}
	return (bidSum - askSum) / (bidSum + askSum)
}
