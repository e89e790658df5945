// Package settings holds the runtime trading configuration. The admin
// surface writes it, the engine reads a fresh copy on every decision.
package settings

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	SortByVolume = "volume"
	SortByPrice  = "price"
)

var (
	ErrUnknownKey   = errors.New("config key not found")
	ErrReadOnlyKey  = errors.New("config key is read-only")
	ErrInvalidValue = errors.New("invalid config value")
)

// Settings is a point-in-time copy of every tunable parameter.
type Settings struct {
	SimulationMode          bool    `yaml:"SIMULATION_MODE"`
	DryRun                  bool    `yaml:"DRY_RUN"`
	RiskRewardRatio         float64 `yaml:"RISK_REWARD_RATIO"`
	MaxPortfolioRisk        float64 `yaml:"MAX_PORTFOLIO_RISK"`
	TradeFeeRate            float64 `yaml:"TRADE_FEE_RATE"`
	PriceUpdateThreshold    float64 `yaml:"PRICE_UPDATE_THRESHOLD"`
	SpreadAdjustment        float64 `yaml:"SPREAD_ADJUSTMENT"`
	DynamicPositionSizing   bool    `yaml:"DYNAMIC_POSITION_SIZING"`
	FixedPositionSize       float64 `yaml:"FIXED_POSITION_SIZE"`
	Leverage                int     `yaml:"LEVERAGE"`
	MarginType              string  `yaml:"TYPE"`
	TakeProfit              float64 `yaml:"TP"`
	StopLoss                float64 `yaml:"SL"`
	PairsToProcess          int     `yaml:"PAIRS_TO_PROCESS"`
	SortBy                  string  `yaml:"SORTBY"`
	QuoteAsset              string  `yaml:"QUOTE_ASSET"`
	TotalTradesOpen         int     `yaml:"TOTAL_TRADES_OPEN"`
	MaxTrades               int     `yaml:"MAX_TRADES"`
	MinOrderQty             float64 `yaml:"MIN_ORDER_QTY"`
	MinNotional             float64 `yaml:"MIN_NOTIONAL"`
	MinTrendStrength        float64 `yaml:"MIN_TREND_STRENGTH"`
	OrderPacingSeconds      float64 `yaml:"ORDER_PACING_SECONDS"`
	BracketRetryAttempts    int     `yaml:"BRACKET_RETRY_ATTEMPTS"`
	FlattenOnBracketFailure bool    `yaml:"FLATTEN_ON_BRACKET_FAILURE"`
	KlineInterval           string  `yaml:"KLINE_INTERVAL"`
	KlineLimit              int     `yaml:"KLINE_LIMIT"`
	DepthLimit              int     `yaml:"DEPTH_LIMIT"`
}

// Defaults mirrors the values the control surface ships with.
func Defaults() Settings {
	return Settings{
		SimulationMode:          false,
		DryRun:                  false,
		RiskRewardRatio:         2.0,
		MaxPortfolioRisk:        1.0,
		TradeFeeRate:            0.0018,
		PriceUpdateThreshold:    0.015,
		SpreadAdjustment:        0.0075,
		DynamicPositionSizing:   true,
		FixedPositionSize:       0.1,
		Leverage:                40,
		MarginType:              "CROSSED",
		TakeProfit:              0.50,
		StopLoss:                0.20,
		PairsToProcess:          10,
		SortBy:                  SortByVolume,
		QuoteAsset:              "USDT",
		TotalTradesOpen:         0,
		MaxTrades:               8,
		MinOrderQty:             1.0,
		MinNotional:             5.0,
		MinTrendStrength:        0.0,
		OrderPacingSeconds:      2.0,
		BracketRetryAttempts:    3,
		FlattenOnBracketFailure: true,
		KlineInterval:           "15m",
		KlineLimit:              150,
		DepthLimit:              10,
	}
}

// Store guards the live settings. Set is the single external write path;
// the engine only ever writes the open-trade counter.
type Store struct {
	mu  sync.RWMutex
	cur Settings
}

// NewStore creates a store seeded with s. The seed is validated.
func NewStore(s Settings) (*Store, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Store{cur: s}, nil
}

// Load seeds a store from a YAML file layered over Defaults. A missing file
// yields defaults.
func Load(path string) (*Store, error) {
	s := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read settings: %w", err)
		default:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return nil, fmt.Errorf("parse settings: %w", err)
			}
		}
	}
	// The counter is derived from the exchange, never seeded.
	s.TotalTradesOpen = 0
	return NewStore(s)
}

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

// Set updates one key from a loosely typed value (as decoded from JSON).
func (st *Store) Set(key string, value any) error {
	f, ok := fields[strings.ToUpper(key)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if f.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnlyKey, key)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.cur
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	st.cur = next
	return nil
}

// SetOpenTrades records the reconciled open-trade count.
func (st *Store) SetOpenTrades(n int) {
	if n < 0 {
		n = 0
	}
	st.mu.Lock()
	st.cur.TotalTradesOpen = n
	st.mu.Unlock()
}

// Map renders the settings keyed by their control-surface names.
func (st *Store) Map() map[string]any {
	s := st.Snapshot()
	out := make(map[string]any, len(fields))
	for k, f := range fields {
		out[k] = f.get(&s)
	}
	return out
}

// Keys lists every known key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks ranges the engine relies on.
func (s Settings) Validate() error {
	switch {
	case s.RiskRewardRatio <= 0:
		return fmt.Errorf("%w: RISK_REWARD_RATIO must be > 0", ErrInvalidValue)
	case s.MaxPortfolioRisk < 0 || s.MaxPortfolioRisk > 1:
		return fmt.Errorf("%w: MAX_PORTFOLIO_RISK must be within [0,1]", ErrInvalidValue)
	case s.Leverage < 1 || s.Leverage > 125:
		return fmt.Errorf("%w: LEVERAGE must be within [1,125]", ErrInvalidValue)
	case !strings.EqualFold(s.MarginType, "CROSSED"):
		return fmt.Errorf("%w: TYPE %q is not supported, only CROSSED", ErrInvalidValue, s.MarginType)
	case s.StopLoss < 0 || s.StopLoss >= 1:
		return fmt.Errorf("%w: SL must be within [0,1)", ErrInvalidValue)
	case s.TakeProfit < 0 || s.TakeProfit >= 1:
		return fmt.Errorf("%w: TP must be within [0,1)", ErrInvalidValue)
	case s.PairsToProcess < 0:
		return fmt.Errorf("%w: PAIRS_TO_PROCESS must be >= 0", ErrInvalidValue)
	case s.SortBy != SortByVolume && s.SortBy != SortByPrice:
		return fmt.Errorf("%w: SORTBY must be %q or %q", ErrInvalidValue, SortByVolume, SortByPrice)
	case s.QuoteAsset == "":
		return fmt.Errorf("%w: QUOTE_ASSET is empty", ErrInvalidValue)
	case s.MaxTrades < 0:
		return fmt.Errorf("%w: MAX_TRADES must be >= 0", ErrInvalidValue)
	case s.SpreadAdjustment < 0 || s.SpreadAdjustment >= 1:
		return fmt.Errorf("%w: SPREAD_ADJUSTMENT must be within [0,1)", ErrInvalidValue)
	case s.OrderPacingSeconds < 0:
		return fmt.Errorf("%w: ORDER_PACING_SECONDS must be >= 0", ErrInvalidValue)
	case s.BracketRetryAttempts < 1:
		return fmt.Errorf("%w: BRACKET_RETRY_ATTEMPTS must be >= 1", ErrInvalidValue)
	case s.KlineLimit < 1 || s.DepthLimit < 5:
		return fmt.Errorf("%w: KLINE_LIMIT must be >= 1 and DEPTH_LIMIT >= 5", ErrInvalidValue)
	}
	return nil
}
