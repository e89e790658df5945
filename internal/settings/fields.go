package settings

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type field struct {
	readOnly bool
	get      func(*Settings) any
	set      func(*Settings, any) error
}

var fields = map[string]field{
	"SIMULATION_MODE":            boolField(func(s *Settings) *bool { return &s.SimulationMode }),
	"DRY_RUN":                    boolField(func(s *Settings) *bool { return &s.DryRun }),
	"RISK_REWARD_RATIO":          floatField(func(s *Settings) *float64 { return &s.RiskRewardRatio }),
	"MAX_PORTFOLIO_RISK":         floatField(func(s *Settings) *float64 { return &s.MaxPortfolioRisk }),
	"TRADE_FEE_RATE":             floatField(func(s *Settings) *float64 { return &s.TradeFeeRate }),
	"PRICE_UPDATE_THRESHOLD":     floatField(func(s *Settings) *float64 { return &s.PriceUpdateThreshold }),
	"SPREAD_ADJUSTMENT":          floatField(func(s *Settings) *float64 { return &s.SpreadAdjustment }),
	"DYNAMIC_POSITION_SIZING":    boolField(func(s *Settings) *bool { return &s.DynamicPositionSizing }),
	"FIXED_POSITION_SIZE":        floatField(func(s *Settings) *float64 { return &s.FixedPositionSize }),
	"LEVERAGE":                   intField(func(s *Settings) *int { return &s.Leverage }),
	"TYPE":                       stringField(func(s *Settings) *string { return &s.MarginType }, strings.ToUpper),
	"TP":                         floatField(func(s *Settings) *float64 { return &s.TakeProfit }),
	"SL":                         floatField(func(s *Settings) *float64 { return &s.StopLoss }),
	"PAIRS_TO_PROCESS":           intField(func(s *Settings) *int { return &s.PairsToProcess }),
	"SORTBY":                     stringField(func(s *Settings) *string { return &s.SortBy }, strings.ToLower),
	"QUOTE_ASSET":                stringField(func(s *Settings) *string { return &s.QuoteAsset }, strings.ToUpper),
	"TOTAL_TRADES_OPEN":          readOnlyInt(func(s *Settings) int { return s.TotalTradesOpen }),
	"MAX_TRADES":                 intField(func(s *Settings) *int { return &s.MaxTrades }),
	"MIN_ORDER_QTY":              floatField(func(s *Settings) *float64 { return &s.MinOrderQty }),
	"MIN_NOTIONAL":               floatField(func(s *Settings) *float64 { return &s.MinNotional }),
	"MIN_TREND_STRENGTH":         floatField(func(s *Settings) *float64 { return &s.MinTrendStrength }),
	"ORDER_PACING_SECONDS":       floatField(func(s *Settings) *float64 { return &s.OrderPacingSeconds }),
	"BRACKET_RETRY_ATTEMPTS":     intField(func(s *Settings) *int { return &s.BracketRetryAttempts }),
	"FLATTEN_ON_BRACKET_FAILURE": boolField(func(s *Settings) *bool { return &s.FlattenOnBracketFailure }),
	"KLINE_INTERVAL":             stringField(func(s *Settings) *string { return &s.KlineInterval }, strings.TrimSpace),
	"KLINE_LIMIT":                intField(func(s *Settings) *int { return &s.KlineLimit }),
	"DEPTH_LIMIT":                intField(func(s *Settings) *int { return &s.DepthLimit }),
}

func boolField(ptr func(*Settings) *bool) field {
	return field{
		get: func(s *Settings) any { return *ptr(s) },
		set: func(s *Settings, v any) error {
			b, err := toBool(v)
			if err != nil {
				return err
			}
			*ptr(s) = b
			return nil
		},
	}
}

func floatField(ptr func(*Settings) *float64) field {
	return field{
		get: func(s *Settings) any { return *ptr(s) },
		set: func(s *Settings, v any) error {
			f, err := toFloat(v)
			if err != nil {
				return err
			}
			*ptr(s) = f
			return nil
		},
	}
}

func intField(ptr func(*Settings) *int) field {
	return field{
		get: func(s *Settings) any { return *ptr(s) },
		set: func(s *Settings, v any) error {
			f, err := toFloat(v)
			if err != nil {
				return err
			}
			if f != math.Trunc(f) {
				return fmt.Errorf("expected an integer, got %v", v)
			}
			*ptr(s) = int(f)
			return nil
		},
	}
}

func stringField(ptr func(*Settings) *string, norm func(string) string) field {
	return field{
		get: func(s *Settings) any { return *ptr(s) },
		set: func(s *Settings, v any) error {
			str, ok := v.(string)
			if !ok {
				return fmt.Errorf("expected a string, got %T", v)
			}
			*ptr(s) = norm(str)
			return nil
		},
	}
}

func readOnlyInt(get func(*Settings) int) field {
	return field{
		readOnly: true,
		get:      func(s *Settings) any { return get(s) },
		set:      func(*Settings, any) error { return ErrReadOnlyKey },
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(t))
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	}
	return false, fmt.Errorf("expected a boolean, got %T", v)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		f = p
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number")
	}
	return f, nil
}
