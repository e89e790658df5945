// Package exchangetest provides an in-memory exchange client for tests.
package exchangetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"quant-engine/pkg/exchanges/common"
)

// Fake is a scriptable common.Client. Zero values answer with empty data.
type Fake struct {
	mu sync.Mutex

	Balances    []common.AssetBalance
	Tickers     []common.Ticker24h
	BookTickers []common.BookTicker
	Depths      map[string]common.Depth
	Klines      map[string][]common.Kline
	Positions   []common.Position
	Orders      []common.OpenOrder
	Precisions  map[string]common.SymbolPrecision

	// Errs fails the named method ("GetDepth", "PlaceOrder", ...).
	Errs map[string]error
	// PlaceErr, when set, decides per request whether PlaceOrder fails.
	PlaceErr func(req common.OrderRequest) error
	// FillPositions records a position for every accepted non-reduce-only
	// order. When unset, LIMIT entries rest in Orders instead.
	FillPositions bool

	Placed []common.OrderRequest
	Calls  []string
	nextID int64
}

var _ common.Client = (*Fake)(nil)

func (f *Fake) record(method string) error {
	f.Calls = append(f.Calls, method)
	if err := f.Errs[method]; err != nil {
		return common.Transient(method, err)
	}
	return nil
}

// CallCount returns how many times method was invoked.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// Update mutates the fake under its lock, for tests that share it with
// server goroutines.
func (f *Fake) Update(fn func(f *Fake)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// PlacedOrders returns a copy of accepted and rejected order requests.
func (f *Fake) PlacedOrders() []common.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.OrderRequest(nil), f.Placed...)
}

func (f *Fake) GetBalance(ctx context.Context) ([]common.AssetBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetBalance"); err != nil {
		return nil, err
	}
	return append([]common.AssetBalance(nil), f.Balances...), nil
}

func (f *Fake) Get24hTickers(ctx context.Context) ([]common.Ticker24h, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Get24hTickers"); err != nil {
		return nil, err
	}
	return append([]common.Ticker24h(nil), f.Tickers...), nil
}

func (f *Fake) GetBookTickers(ctx context.Context) ([]common.BookTicker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetBookTickers"); err != nil {
		return nil, err
	}
	return append([]common.BookTicker(nil), f.BookTickers...), nil
}

func (f *Fake) GetDepth(ctx context.Context, symbol string, limit int) (common.Depth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetDepth"); err != nil {
		return common.Depth{}, err
	}
	return f.Depths[symbol], nil
}

func (f *Fake) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]common.Kline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetKlines"); err != nil {
		return nil, err
	}
	ks := f.Klines[symbol]
	if limit > 0 && len(ks) > limit {
		ks = ks[len(ks)-limit:]
	}
	return append([]common.Kline(nil), ks...), nil
}

func (f *Fake) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Placed = append(f.Placed, req)
	if err := f.record("PlaceOrder"); err != nil {
		return common.OrderResult{}, err
	}
	if f.PlaceErr != nil {
		if err := f.PlaceErr(req); err != nil {
			return common.OrderResult{}, common.Transient("PlaceOrder", err)
		}
	}
	f.nextID++
	if f.FillPositions && !req.ReduceOnly {
		amt := req.Qty
		if req.Side == common.SideSell {
			amt = -amt
		}
		f.Positions = append(f.Positions, common.Position{Symbol: req.Symbol, PositionAmt: amt})
	}
	resting := req.Type == common.OrderTypeStopMarket || req.Type == common.OrderTypeTakeProfitMarket ||
		(req.Type == common.OrderTypeLimit && !f.FillPositions)
	if resting {
		f.Orders = append(f.Orders, common.OpenOrder{
			Symbol:        req.Symbol,
			OrderID:       f.nextID,
			ClientOrderID: req.ClientID,
			Side:          req.Side,
			Type:          req.Type,
			ReduceOnly:    req.ReduceOnly,
		})
	}
	return common.OrderResult{
		ExchangeOrderID: strconv.FormatInt(f.nextID, 10),
		ClientID:        req.ClientID,
		Status:          common.StatusNew,
	}, nil
}

func (f *Fake) GetOpenPositions(ctx context.Context) ([]common.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetOpenPositions"); err != nil {
		return nil, err
	}
	return append([]common.Position(nil), f.Positions...), nil
}

func (f *Fake) GetOpenOrders(ctx context.Context) ([]common.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetOpenOrders"); err != nil {
		return nil, err
	}
	return append([]common.OpenOrder(nil), f.Orders...), nil
}

func (f *Fake) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("SetLeverage")
}

func (f *Fake) SetMarginMode(ctx context.Context, symbol string, mode common.MarginMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("SetMarginMode")
}

func (f *Fake) CancelOpenOrders(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CancelOpenOrders"); err != nil {
		return err
	}
	kept := f.Orders[:0]
	for _, o := range f.Orders {
		if o.Symbol != symbol {
			kept = append(kept, o)
		}
	}
	f.Orders = kept
	return nil
}

func (f *Fake) GetSymbolPrecision(ctx context.Context, symbol string) (common.SymbolPrecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetSymbolPrecision"); err != nil {
		return common.SymbolPrecision{}, err
	}
	p, ok := f.Precisions[symbol]
	if !ok {
		return common.SymbolPrecision{PricePrecision: 2, QuantityPrecision: 3}, nil
	}
	return p, nil
}

// TrendingKlines returns n candles rising by step per bar from start.
func TrendingKlines(n int, start, step float64) []common.Kline {
	out := make([]common.Kline, n)
	for i := range out {
		c := start + step*float64(i)
		out[i] = common.Kline{
			OpenTime: int64(i) * 900_000,
			Open:     c - step/2,
			High:     c + absf(step),
			Low:      c - absf(step),
			Close:    c,
			Volume:   1000,
		}
	}
	return out
}

// Level builds a depth with a single level per side.
func Level(bid, bidQty, ask, askQty float64) common.Depth {
	return common.Depth{
		Bids: []common.PriceLevel{{Price: bid, Qty: bidQty}},
		Asks: []common.PriceLevel{{Price: ask, Qty: askQty}},
	}
}

// ErrBoom is a generic injected failure.
var ErrBoom = fmt.Errorf("boom")

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
