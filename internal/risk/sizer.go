package risk

import (
	"math"

	"go.uber.org/zap"

	"quant-engine/internal/balance"
	"quant-engine/internal/settings"
)

// MinWinProbability floors the win probability derived from trend strength.
const MinWinProbability = 0.55

// SizeInput carries per-symbol inputs for sizing.
type SizeInput struct {
	Symbol        string
	Price         float64
	Volatility    float64
	Liquidity     float64
	TrendStrength float64
}

// Sizing is the sizing breakdown, kept for logging and tests.
type Sizing struct {
	Quantity          float64 `json:"quantity"`
	WinProbability    float64 `json:"win_probability"`
	Kelly             float64 `json:"kelly"`
	RiskCapital       float64 `json:"risk_capital"`
	LiquidityFactor   float64 `json:"liquidity_factor"`
	VolatilityFactor  float64 `json:"volatility_factor"`
	FreeQuoteBalance  float64 `json:"free_quote_balance"`
	FixedSizeFallback bool    `json:"fixed_size_fallback,omitempty"`
}

// Sizer computes a Kelly-based position size dampened by liquidity and
// volatility.
type Sizer struct {
	log *zap.Logger
}

// NewSizer creates a sizer.
func NewSizer(log *zap.Logger) *Sizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sizer{log: log.Named("sizer")}
}

// Size returns the position quantity in base-asset units.
func (z *Sizer) Size(in SizeInput, s settings.Settings, p balance.Portfolio) float64 {
	return z.Compute(in, s, p).Quantity
}

// Compute returns the full sizing breakdown.
func (z *Sizer) Compute(in SizeInput, s settings.Settings, p balance.Portfolio) Sizing {
	free := p.Free(s.QuoteAsset)
	out := Sizing{FreeQuoteBalance: free}
	if free <= 0 {
		z.log.Warn("insufficient balance", zap.String("symbol", in.Symbol), zap.String("asset", s.QuoteAsset), zap.Float64("free", free))
		return out
	}
	if !s.DynamicPositionSizing {
		out.Quantity = s.FixedPositionSize
		out.FixedSizeFallback = true
		return out
	}
	if in.Price <= 0 {
		return out
	}

	r := s.RiskRewardRatio
	out.WinProbability = math.Max(MinWinProbability, math.Abs(in.TrendStrength))
	out.Kelly = (out.WinProbability*(r+1) - 1) / r
	if out.Kelly <= 0 {
		return out
	}

	out.RiskCapital = free * s.MaxPortfolioRisk * out.Kelly
	if out.RiskCapital > 0 {
		out.LiquidityFactor = math.Min(in.Liquidity/(2*out.RiskCapital), 1)
	}
	out.VolatilityFactor = 1 / (1 + in.Volatility)
	out.Quantity = out.RiskCapital * out.LiquidityFactor * out.VolatilityFactor / in.Price
	if out.Quantity < 0 || math.IsNaN(out.Quantity) || math.IsInf(out.Quantity, 0) {
		out.Quantity = 0
	}
	return out
}
