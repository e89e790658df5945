package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"quant-engine/internal/events"
	"quant-engine/internal/monitor"
	"quant-engine/internal/risk"
	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

// TradeCounter receives the reconciled open-trade count.
type TradeCounter interface {
	SetOpenTrades(n int)
}

// Executor places bracketed entries: a limit entry followed by reduce-only
// stop-loss and take-profit legs.
type Executor struct {
	Client  common.Client
	Bus     *events.Bus
	Metrics *monitor.Metrics
	Trades  TradeCounter
	Log     *zap.Logger

	// BackoffBase and BackoffMax bound the retry delay of protective legs.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	pacer *Pacer

	mu          sync.RWMutex
	precisions  map[string]common.SymbolPrecision
	openTrades  int
	unprotected map[string]events.PositionUnprotected
}

// NewExecutor creates an executor over client.
func NewExecutor(client common.Client, bus *events.Bus, metrics *monitor.Metrics, trades TradeCounter, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		Client:      client,
		Bus:         bus,
		Metrics:     metrics,
		Trades:      trades,
		Log:         log.Named("executor"),
		BackoffBase: time.Second,
		BackoffMax:  time.Minute,
		pacer:       NewPacer(2 * time.Second),
		precisions:  make(map[string]common.SymbolPrecision),
		unprotected: make(map[string]events.PositionUnprotected),
	}
}

// InvalidatePrecision drops cached symbol precisions.
func (e *Executor) InvalidatePrecision() {
	e.mu.Lock()
	e.precisions = make(map[string]common.SymbolPrecision)
	e.mu.Unlock()
}

// OpenTrades returns the last reconciled open-trade count.
func (e *Executor) OpenTrades() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.openTrades
}

// Unprotected lists positions still flagged as missing a protective leg.
func (e *Executor) Unprotected() []events.PositionUnprotected {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]events.PositionUnprotected, 0, len(e.unprotected))
	for _, u := range e.unprotected {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Reconcile re-derives the open-trade count from fresh position and open
// order queries: a symbol counts once when it holds a position or a resting
// entry. Hazard flags clear for symbols that no longer hold a position.
func (e *Executor) Reconcile(ctx context.Context) (int, error) {
	positions, err := e.Client.GetOpenPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile open trades: %w", err)
	}
	orders, err := e.Client.GetOpenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile open trades: %w", err)
	}
	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		if p.PositionAmt != 0 {
			held[p.Symbol] = true
		}
	}
	open := make(map[string]bool, len(held)+len(orders))
	for sym := range held {
		open[sym] = true
	}
	for _, o := range orders {
		if o.RestingEntry() {
			open[o.Symbol] = true
		}
	}
	n := len(open)

	e.mu.Lock()
	e.openTrades = n
	for sym := range e.unprotected {
		if !held[sym] {
			delete(e.unprotected, sym)
		}
	}
	e.mu.Unlock()

	if e.Trades != nil {
		e.Trades.SetOpenTrades(n)
	}
	if e.Metrics != nil {
		e.Metrics.OpenTrades.Set(float64(n))
	}
	return n, nil
}

// Execute validates the request and places the bracket. Precondition
// failures return a skipped report and an error wrapping ErrRejected. A
// missing protective leg returns an error wrapping ErrPartialExecution.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest, s settings.Settings) (Report, error) {
	rep := Report{Symbol: req.Symbol, Side: req.Side, DryRun: s.DryRun}
	e.pacer.SetInterval(time.Duration(s.OrderPacingSeconds * float64(time.Second)))

	if req.Quantity < s.MinOrderQty {
		return e.skip(rep, "quantity", fmt.Sprintf("quantity %.8g below minimum %.8g", req.Quantity, s.MinOrderQty))
	}

	open, err := e.Reconcile(ctx)
	if err != nil {
		return rep, err
	}
	rep.OpenTrades = open
	if open >= s.MaxTrades {
		return e.skip(rep, "max_trades", fmt.Sprintf("open trades %d at limit %d", open, s.MaxTrades))
	}

	depth, err := e.Client.GetDepth(ctx, req.Symbol, s.DepthLimit)
	if err != nil {
		return rep, fmt.Errorf("depth %s: %w", req.Symbol, err)
	}
	limit := LimitPrice(req.Side, depth, s.SpreadAdjustment)
	if limit <= 0 {
		return e.skip(rep, "book", "order book has no price on the entry side")
	}

	prec, err := e.precision(ctx, req.Symbol)
	if err != nil {
		return rep, err
	}
	rep.LimitPrice = Round(limit, prec.PricePrecision)
	rep.Quantity = Round(req.Quantity, prec.QuantityPrecision)
	rep.Notional = rep.LimitPrice * rep.Quantity
	if rep.Quantity <= 0 {
		return e.skip(rep, "quantity", "quantity rounds to zero")
	}
	if rep.Notional < s.MinNotional {
		return e.skip(rep, "notional", fmt.Sprintf("notional %.4f below minimum %.4f", rep.Notional, s.MinNotional))
	}

	if err := e.pacer.Wait(ctx); err != nil {
		return rep, err
	}
	if err := e.Client.SetLeverage(ctx, req.Symbol, s.Leverage); err != nil {
		return rep, fmt.Errorf("set leverage %s: %w", req.Symbol, err)
	}
	if err := e.pacer.Wait(ctx); err != nil {
		return rep, err
	}
	if err := e.Client.SetMarginMode(ctx, req.Symbol, common.MarginCrossed); err != nil {
		return rep, fmt.Errorf("set margin mode %s: %w", req.Symbol, err)
	}

	entry := common.OrderRequest{
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        common.OrderTypeLimit,
		Qty:         rep.Quantity,
		Price:       rep.LimitPrice,
		TimeInForce: common.TIFGTC,
	}
	receipt, err := e.place(ctx, LegEntry, entry, 1, s.DryRun)
	rep.Legs = append(rep.Legs, receipt)
	if err != nil {
		return rep, fmt.Errorf("entry %s: %w", req.Symbol, err)
	}

	if err := e.pacer.Wait(ctx); err != nil {
		return rep, err
	}
	if n, err := e.Reconcile(ctx); err != nil {
		e.Log.Warn("open-trade reconciliation failed after entry; keeping last count",
			zap.String("symbol", req.Symbol), zap.Int("open_trades", e.OpenTrades()), zap.Error(err))
	} else {
		rep.OpenTrades = n
	}

	sl, tp := risk.Brackets(req.Side, rep.LimitPrice, s.StopLoss, s.TakeProfit)
	rep.StopPrice = Round(sl, prec.PricePrecision)
	rep.TakePrice = Round(tp, prec.PricePrecision)
	exit := req.Side.Opposite()

	legs := []struct {
		leg Leg
		req common.OrderRequest
	}{
		{LegStopLoss, common.OrderRequest{Symbol: req.Symbol, Side: exit, Type: common.OrderTypeStopMarket, Qty: rep.Quantity, StopPrice: rep.StopPrice, ReduceOnly: true}},
		{LegTakeProfit, common.OrderRequest{Symbol: req.Symbol, Side: exit, Type: common.OrderTypeTakeProfitMarket, Qty: rep.Quantity, StopPrice: rep.TakePrice, ReduceOnly: true}},
	}
	for _, l := range legs {
		r, err := e.place(ctx, l.leg, l.req, s.BracketRetryAttempts, s.DryRun)
		rep.Legs = append(rep.Legs, r)
		if err != nil {
			rep.MissingLegs = append(rep.MissingLegs, l.leg)
		}
	}

	if len(rep.MissingLegs) == 0 {
		e.Log.Info("bracket placed",
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.Float64("qty", rep.Quantity),
			zap.Float64("entry", rep.LimitPrice),
			zap.Float64("stop", rep.StopPrice),
			zap.Float64("take", rep.TakePrice),
			zap.Bool("dry_run", s.DryRun))
		return rep, nil
	}

	rep.Unprotected = true
	if s.FlattenOnBracketFailure {
		rep.Flattened = e.flatten(ctx, &rep, s)
	}
	e.flagUnprotected(rep)
	return rep, fmt.Errorf("%s missing %v: %w", req.Symbol, rep.MissingLegs, ErrPartialExecution)
}

func (e *Executor) skip(rep Report, label, reason string) (Report, error) {
	rep.Skipped = true
	rep.Reason = reason
	e.Log.Info("order skipped", zap.String("symbol", rep.Symbol), zap.String("reason", reason))
	e.Bus.Publish(events.EventOrderSkipped, events.OrderSkipped{Symbol: rep.Symbol, Reason: reason})
	if e.Metrics != nil {
		e.Metrics.OrdersSkipped.WithLabelValues(label).Inc()
	}
	return rep, fmt.Errorf("%s: %s: %w", rep.Symbol, reason, ErrRejected)
}

// place submits one leg, retrying up to attempts times with backoff. The
// returned error is the last failure.
func (e *Executor) place(ctx context.Context, leg Leg, req common.OrderRequest, attempts int, dryRun bool) (LegReceipt, error) {
	if attempts < 1 {
		attempts = 1
	}
	req.ClientID = clientID(leg)
	rec := LegReceipt{Leg: leg, Request: req}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rec.Attempts = attempt
		if attempt > 1 {
			if err := sleep(ctx, Backoff(e.BackoffBase, e.BackoffMax, attempt-2)); err != nil {
				rec.Error = err.Error()
				return rec, err
			}
		}
		if err := e.pacer.Wait(ctx); err != nil {
			rec.Error = err.Error()
			return rec, err
		}

		res, err := e.Client.PlaceOrder(ctx, req)
		if err == nil {
			rec.Result = res
			rec.Error = ""
			if e.Metrics != nil {
				e.Metrics.OrdersPlaced.WithLabelValues(string(leg), string(req.Side)).Inc()
			}
			price := req.Price
			if price == 0 {
				price = req.StopPrice
			}
			e.Bus.Publish(events.EventOrderPlaced, events.OrderPlaced{
				Symbol:   req.Symbol,
				Leg:      string(leg),
				Side:     string(req.Side),
				Type:     string(req.Type),
				Qty:      req.Qty,
				Price:    price,
				ClientID: req.ClientID,
				OrderID:  res.ExchangeOrderID,
				DryRun:   dryRun,
			})
			return rec, nil
		}

		lastErr = err
		rec.Error = err.Error()
		e.Log.Warn("order leg failed",
			zap.String("symbol", req.Symbol),
			zap.String("leg", string(leg)),
			zap.Int("attempt", attempt),
			zap.Int("of", attempts),
			zap.Error(err))
		if e.Metrics != nil {
			e.Metrics.OrderFailures.WithLabelValues(string(leg)).Inc()
		}
		e.Bus.Publish(events.EventOrderFailed, events.OrderFailed{
			Symbol: req.Symbol, Leg: string(leg), Attempt: attempt, Error: err.Error(),
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	return rec, lastErr
}

// flatten cancels the symbol's resting orders and closes the entry quantity
// with a reduce-only market order.
func (e *Executor) flatten(ctx context.Context, rep *Report, s settings.Settings) bool {
	if err := e.pacer.Wait(ctx); err != nil {
		return false
	}
	if err := e.Client.CancelOpenOrders(ctx, rep.Symbol); err != nil {
		e.Log.Error("cancel before flatten failed", zap.String("symbol", rep.Symbol), zap.Error(err))
	}
	closeReq := common.OrderRequest{
		Symbol:     rep.Symbol,
		Side:       rep.Side.Opposite(),
		Type:       common.OrderTypeMarket,
		Qty:        rep.Quantity,
		ReduceOnly: true,
	}
	r, err := e.place(ctx, LegFlatten, closeReq, s.BracketRetryAttempts, s.DryRun)
	rep.Legs = append(rep.Legs, r)
	if err != nil {
		return false
	}
	if e.Metrics != nil {
		e.Metrics.Flattened.Inc()
	}
	e.Bus.Publish(events.EventPositionFlattened, events.PositionFlattened{
		Symbol: rep.Symbol, Side: string(rep.Side), Qty: rep.Quantity,
	})
	return true
}

func (e *Executor) flagUnprotected(rep Report) {
	missing := make([]string, len(rep.MissingLegs))
	for i, l := range rep.MissingLegs {
		missing[i] = string(l)
	}
	ev := events.PositionUnprotected{
		Symbol:     rep.Symbol,
		Side:       string(rep.Side),
		Qty:        rep.Quantity,
		MissingLeg: missing,
		Flattened:  rep.Flattened,
		Since:      time.Now().UTC(),
	}
	if !rep.Flattened {
		e.mu.Lock()
		e.unprotected[rep.Symbol] = ev
		e.mu.Unlock()
	}
	if e.Metrics != nil {
		e.Metrics.Unprotected.Inc()
	}
	e.Bus.Publish(events.EventPositionUnprotected, ev)
	e.Log.Error("position left without full protection",
		zap.String("symbol", rep.Symbol),
		zap.String("side", string(rep.Side)),
		zap.Float64("qty", rep.Quantity),
		zap.Strings("missing", missing),
		zap.Bool("flattened", rep.Flattened))
}

func (e *Executor) precision(ctx context.Context, symbol string) (common.SymbolPrecision, error) {
	e.mu.RLock()
	p, ok := e.precisions[symbol]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}
	p, err := e.Client.GetSymbolPrecision(ctx, symbol)
	if err != nil {
		return common.SymbolPrecision{}, fmt.Errorf("precision %s: %w", symbol, err)
	}
	e.mu.Lock()
	e.precisions[symbol] = p
	e.mu.Unlock()
	return p, nil
}

// LimitPrice derives the entry limit price from the book: below the best bid
// for buys, above the best ask for sells.
func LimitPrice(side common.Side, depth common.Depth, adjustment float64) float64 {
	if side == common.SideSell {
		return depth.BestAsk() * (1 + adjustment)
	}
	return depth.BestBid() * (1 - adjustment)
}

// Round rounds v to places decimal places, half away from zero.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func clientID(leg Leg) string {
	id := uuid.NewString()
	// Binance caps client order ids at 36 characters.
	prefix := map[Leg]string{LegEntry: "e", LegStopLoss: "s", LegTakeProfit: "t", LegFlatten: "f"}[leg]
	return prefix + "-" + id[:30]
}
