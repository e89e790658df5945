package order

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"quant-engine/pkg/exchanges/common"
)

// DryRunClient wraps a live client: market and account reads pass through,
// every mutating call is simulated in memory.
type DryRunClient struct {
	common.Client

	// FeeRate returns the current simulated fee rate.
	FeeRate func() float64

	log *zap.Logger

	mu        sync.RWMutex
	positions map[string]*MockPosition
	resting   []common.OpenOrder
	orders    []MockOrder
	fees      float64
	nextID    int64
}

// MockPosition is a simulated net position.
type MockPosition struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
}

// MockOrder is a simulated order receipt.
type MockOrder struct {
	ID        string              `json:"id"`
	Request   common.OrderRequest `json:"request"`
	Status    common.OrderStatus  `json:"status"`
	Fee       float64             `json:"fee"`
	CreatedAt time.Time           `json:"created_at"`
}

// DryRunState is a view of the simulated book.
type DryRunState struct {
	Positions []MockPosition `json:"positions"`
	Resting   int            `json:"resting_orders"`
	Orders    int            `json:"orders"`
	Fees      float64        `json:"fees"`
}

var _ common.Client = (*DryRunClient)(nil)

// NewDryRunClient wraps live.
func NewDryRunClient(live common.Client, feeRate func() float64, log *zap.Logger) *DryRunClient {
	if log == nil {
		log = zap.NewNop()
	}
	if feeRate == nil {
		feeRate = func() float64 { return 0 }
	}
	return &DryRunClient{
		Client:    live,
		FeeRate:   feeRate,
		log:       log.Named("dry-run"),
		positions: make(map[string]*MockPosition),
	}
}

// PlaceOrder simulates an order. Limit and market orders fill immediately at
// their price; stop and take-profit orders rest until cancelled.
func (d *DryRunClient) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return common.OrderResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := strconv.FormatInt(d.nextID, 10)
	mo := MockOrder{ID: id, Request: req, Status: common.StatusFilled, CreatedAt: time.Now()}

	switch req.Type {
	case common.OrderTypeStopMarket, common.OrderTypeTakeProfitMarket:
		mo.Status = common.StatusNew
		d.resting = append(d.resting, common.OpenOrder{
			Symbol:        req.Symbol,
			OrderID:       d.nextID,
			ClientOrderID: req.ClientID,
			Side:          req.Side,
			Type:          req.Type,
			ReduceOnly:    req.ReduceOnly,
		})
	default:
		price := req.Price
		if price <= 0 {
			if pos, ok := d.positions[req.Symbol]; ok {
				price = pos.EntryPrice
			}
		}
		mo.Fee = math.Abs(price*req.Qty) * d.FeeRate()
		d.fees += mo.Fee
		d.updatePosition(req, price)
	}
	d.orders = append(d.orders, mo)

	d.log.Info("simulated order",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("type", string(req.Type)),
		zap.Float64("qty", req.Qty),
		zap.Float64("price", req.Price),
		zap.Float64("stop_price", req.StopPrice),
		zap.Bool("reduce_only", req.ReduceOnly),
		zap.Float64("fee", mo.Fee))

	return common.OrderResult{ExchangeOrderID: "dry-" + id, ClientID: req.ClientID, Status: mo.Status}, nil
}

func (d *DryRunClient) updatePosition(req common.OrderRequest, price float64) {
	pos, exists := d.positions[req.Symbol]
	if !exists {
		if req.ReduceOnly {
			return
		}
		d.positions[req.Symbol] = &MockPosition{
			Symbol:     req.Symbol,
			Side:       string(req.Side),
			Quantity:   req.Qty,
			EntryPrice: price,
		}
		return
	}

	if string(req.Side) == pos.Side {
		if req.ReduceOnly {
			return
		}
		totalValue := pos.Quantity*pos.EntryPrice + req.Qty*price
		pos.Quantity += req.Qty
		if pos.Quantity != 0 {
			pos.EntryPrice = totalValue / pos.Quantity
		}
		return
	}
	pos.Quantity -= req.Qty
	if pos.Quantity <= 0 {
		delete(d.positions, req.Symbol)
	}
}

// GetOpenPositions returns simulated positions.
func (d *DryRunClient) GetOpenPositions(ctx context.Context) ([]common.Position, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]common.Position, 0, len(d.positions))
	for _, p := range d.positions {
		amt := p.Quantity
		if p.Side == string(common.SideSell) {
			amt = -amt
		}
		out = append(out, common.Position{Symbol: p.Symbol, PositionAmt: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// GetOpenOrders returns simulated resting orders.
func (d *DryRunClient) GetOpenOrders(ctx context.Context) ([]common.OpenOrder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]common.OpenOrder(nil), d.resting...), nil
}

// SetLeverage is a no-op in dry-run.
func (d *DryRunClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	d.log.Debug("simulated leverage", zap.String("symbol", symbol), zap.Int("leverage", leverage))
	return nil
}

// SetMarginMode is a no-op in dry-run.
func (d *DryRunClient) SetMarginMode(ctx context.Context, symbol string, mode common.MarginMode) error {
	d.log.Debug("simulated margin mode", zap.String("symbol", symbol), zap.String("mode", string(mode)))
	return nil
}

// CancelOpenOrders drops simulated resting orders for symbol.
func (d *DryRunClient) CancelOpenOrders(ctx context.Context, symbol string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.resting[:0]
	for _, o := range d.resting {
		if o.Symbol != symbol {
			kept = append(kept, o)
		}
	}
	d.resting = kept
	return nil
}

// State returns the simulated book.
func (d *DryRunClient) State() DryRunState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := DryRunState{Resting: len(d.resting), Orders: len(d.orders), Fees: d.fees}
	for _, p := range d.positions {
		st.Positions = append(st.Positions, *p)
	}
	sort.Slice(st.Positions, func(i, j int) bool { return st.Positions[i].Symbol < st.Positions[j].Symbol })
	return st
}
