// Package strategy scores trend direction from candle history.
package strategy

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"quant-engine/internal/indicators"
	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

const (
	MinCandles   = 50
	MinValidRows = 20

	smaFast     = 20
	smaSlow     = 50
	rsiPeriod   = 14
	macdFast    = 12
	macdSlow    = 26
	macdSignal  = 9
	adxPeriod   = 14
	rsiBull     = 55.0
	rsiBear     = 45.0
	adxTrending = 25.0
	voteCount   = 5.0
)

// ErrInsufficientData reports too few candles or valid indicator rows.
var ErrInsufficientData = errors.New("insufficient candle history")

// Votes is the per-indicator breakdown of the last row.
type Votes struct {
	MATrend int `json:"ma_trend"`
	Price   int `json:"price"`
	MACD    int `json:"macd"`
	RSI     int `json:"rsi"`
	ADX     int `json:"adx"`
}

// Sum returns the accumulated row score.
func (v Votes) Sum() int { return v.MATrend + v.Price + v.MACD + v.RSI + v.ADX }

// Result is the outcome of scoring one candle series.
type Result struct {
	Score     float64 `json:"score"`
	Votes     Votes   `json:"votes"`
	ValidRows int     `json:"valid_rows"`
}

// Evaluate scores candles, oldest first. It returns ErrInsufficientData when
// fewer than MinCandles candles or MinValidRows fully defined rows exist.
func Evaluate(candles []common.Kline) (Result, error) {
	if len(candles) < MinCandles {
		return Result{}, ErrInsufficientData
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, k := range candles {
		closes[i], highs[i], lows[i] = k.Close, k.High, k.Low
	}

	sma20 := indicators.SMA(closes, smaFast)
	sma50 := indicators.SMA(closes, smaSlow)
	rsi := indicators.RSI(closes, rsiPeriod)
	macd, signal := indicators.MACD(closes, macdFast, macdSlow, macdSignal)
	adx := indicators.ADX(highs, lows, closes, adxPeriod)

	first := -1
	for i := 0; i < n; i++ {
		if defined(sma20[i], sma50[i], rsi[i], macd[i], signal[i], adx[i]) {
			first = i
			break
		}
	}
	if first < 0 || n-first < MinValidRows {
		return Result{}, ErrInsufficientData
	}

	last := n - 1
	v := Votes{
		MATrend: sign(sma20[last] > sma50[last]),
		Price:   sign(closes[last] > sma20[last]),
		MACD:    sign(macd[last] > signal[last]),
	}
	switch {
	case rsi[last] > rsiBull:
		v.RSI = 1
	case rsi[last] < rsiBear:
		v.RSI = -1
	}
	if adx[last] > adxTrending {
		switch {
		case sma20[last] > sma50[last]:
			v.ADX = 1
		case sma20[last] < sma50[last]:
			v.ADX = -1
		}
	}

	score := math.Max(-1, math.Min(1, float64(v.Sum())/voteCount))
	return Result{Score: score, Votes: v, ValidRows: n - first}, nil
}

// ScoreCandles is Evaluate collapsed to a score; insufficient data scores 0.
func ScoreCandles(candles []common.Kline) float64 {
	r, err := Evaluate(candles)
	if err != nil {
		return 0
	}
	return r.Score
}

// TrendScorer fetches candles and scores them.
type TrendScorer struct {
	client common.Client
	log    *zap.Logger
}

// NewTrendScorer creates a scorer over client.
func NewTrendScorer(client common.Client, log *zap.Logger) *TrendScorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrendScorer{client: client, log: log.Named("trend")}
}

// Score returns a directional score in [-1, 1]. Fetch failures and short
// history score 0 and are logged, never returned.
func (t *TrendScorer) Score(ctx context.Context, symbol string, s settings.Settings) float64 {
	candles, err := t.client.GetKlines(ctx, symbol, s.KlineInterval, s.KlineLimit)
	if err != nil {
		t.log.Warn("kline fetch failed", zap.String("symbol", symbol), zap.Error(err))
		return 0
	}
	r, err := Evaluate(candles)
	if err != nil {
		t.log.Debug("not scored", zap.String("symbol", symbol), zap.Int("candles", len(candles)), zap.Error(err))
		return 0
	}
	t.log.Debug("scored",
		zap.String("symbol", symbol),
		zap.Float64("score", r.Score),
		zap.Any("votes", r.Votes))
	return r.Score
}

func defined(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

func sign(up bool) int {
	if up {
		return 1
	}
	return -1
}
