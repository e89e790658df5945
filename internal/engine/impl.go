package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"quant-engine/internal/balance"
	"quant-engine/internal/events"
	"quant-engine/internal/market"
	"quant-engine/internal/monitor"
	"quant-engine/internal/order"
	"quant-engine/internal/risk"
	"quant-engine/internal/settings"
	"quant-engine/internal/strategy"
	"quant-engine/pkg/exchanges/common"
)

// Config wires the engine's collaborators.
type Config struct {
	Client   common.Client
	Settings *settings.Store
	Bus      *events.Bus
	Metrics  *monitor.Metrics
	Log      *zap.Logger

	// DryRun, when set, is reported in Status.
	DryRun *order.DryRunClient
	// Executor overrides the default executor built over Client.
	Executor *order.Executor
}

// Impl is the default engine.
type Impl struct {
	client   common.Client
	store    *settings.Store
	bus      *events.Bus
	metrics  *monitor.Metrics
	log      *zap.Logger
	dryRun   *order.DryRunClient
	builder  *market.SnapshotBuilder
	calc     *market.MetricsCalculator
	scorer   *strategy.TrendScorer
	gate     *risk.Gate
	sizer    *risk.Sizer
	executor *order.Executor

	// cycle serializes refreshes and cycles.
	cycle    sync.Mutex
	running  atomic.Bool
	runCount atomic.Int64

	mu          sync.RWMutex
	snapshot    market.Snapshot
	marketRows  map[string]market.Metrics
	portfolio   balance.Portfolio
	refreshedAt time.Time
	lastCycle   *CycleSummary
}

var _ Service = (*Impl)(nil)

// NewImpl constructs the engine.
func NewImpl(cfg Config) *Impl {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = monitor.NewMetrics(nil)
	}
	exec := cfg.Executor
	if exec == nil {
		exec = order.NewExecutor(cfg.Client, cfg.Bus, cfg.Metrics, cfg.Settings, log)
	}
	return &Impl{
		client:     cfg.Client,
		store:      cfg.Settings,
		bus:        cfg.Bus,
		metrics:    cfg.Metrics,
		log:        log.Named("engine"),
		dryRun:     cfg.DryRun,
		builder:    market.NewSnapshotBuilder(cfg.Client, log),
		calc:       market.NewMetricsCalculator(cfg.Client, log),
		scorer:     strategy.NewTrendScorer(cfg.Client, log),
		gate:       risk.NewGate(log),
		sizer:      risk.NewSizer(log),
		executor:   exec,
		marketRows: map[string]market.Metrics{},
	}
}

// Settings returns the live configuration store.
func (e *Impl) Settings() *settings.Store { return e.store }

// RefreshMarketData rebuilds the market state. On failure the previous state
// is kept and false is returned.
func (e *Impl) RefreshMarketData(ctx context.Context) (bool, error) {
	if !e.cycle.TryLock() {
		return false, ErrCycleInProgress
	}
	defer e.cycle.Unlock()
	return e.refresh(ctx), nil
}

func (e *Impl) refresh(ctx context.Context) bool {
	s := e.store.Snapshot()

	snap, err := e.builder.Build(ctx, s)
	if err != nil {
		return e.refreshFailed("snapshot", err)
	}
	rows, err := e.calc.Compute(ctx, snap, s)
	if err != nil {
		return e.refreshFailed("metrics", err)
	}
	balances, err := e.client.GetBalance(ctx)
	if err != nil {
		return e.refreshFailed("balance", err)
	}
	portfolio := balance.FromAssetBalances(balances)

	e.mu.Lock()
	e.snapshot = snap
	e.marketRows = rows
	e.portfolio = portfolio
	e.refreshedAt = time.Now().UTC()
	e.mu.Unlock()

	e.executor.InvalidatePrecision()
	e.metrics.Refreshes.WithLabelValues("ok").Inc()
	e.metrics.SnapshotSymbols.Set(float64(snap.Len()))
	e.bus.Publish(events.EventMarketRefreshed, events.MarketRefreshed{Symbols: snap.Len(), Assets: portfolio.Len()})
	e.log.Info("market data refreshed",
		zap.Int("symbols", snap.Len()),
		zap.Int("assets", portfolio.Len()))
	return true
}

func (e *Impl) refreshFailed(stage string, err error) bool {
	e.metrics.Refreshes.WithLabelValues("error").Inc()
	e.log.Warn("market refresh failed; keeping previous state", zap.String("stage", stage), zap.Error(err))
	return false
}

// RunStrategyCycle refreshes market state and walks every snapshot symbol
// through the gate, scorer, sizer and executor in snapshot order. Per-symbol
// failures are logged and never abort the cycle.
func (e *Impl) RunStrategyCycle(ctx context.Context) (CycleSummary, error) {
	if !e.cycle.TryLock() {
		return CycleSummary{}, ErrCycleInProgress
	}
	defer e.cycle.Unlock()

	timer := monitor.NewTimer(e.metrics.CycleLatency, e.metrics.CycleDuration)
	sum := CycleSummary{Run: e.runCount.Add(1), StartedAt: time.Now().UTC()}

	sum.Refreshed = e.refresh(ctx)
	if !sum.Refreshed {
		sum.Error = "market refresh failed"
	} else {
		e.evaluate(ctx, &sum)
	}

	sum.Duration = timer.Stop()
	result := "ok"
	switch {
	case sum.Error != "":
		result = "error"
	case sum.Partial > 0 || sum.Failed > 0:
		result = "degraded"
	}
	e.metrics.Cycles.WithLabelValues(result).Inc()

	e.mu.Lock()
	last := sum
	e.lastCycle = &last
	e.mu.Unlock()

	e.bus.Publish(events.EventCycleCompleted, events.CycleCompleted{
		Run:       sum.Run,
		Refreshed: sum.Refreshed,
		Evaluated: sum.Evaluated,
		Approved:  sum.Approved,
		Placed:    sum.Placed,
		Skipped:   sum.Skipped,
		Duration:  sum.Duration,
		Error:     sum.Error,
	})
	e.log.Info("strategy cycle completed",
		zap.Int64("run", sum.Run),
		zap.String("result", result),
		zap.Int("evaluated", sum.Evaluated),
		zap.Int("approved", sum.Approved),
		zap.Int("placed", sum.Placed),
		zap.Int("skipped", sum.Skipped),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}

func (e *Impl) evaluate(ctx context.Context, sum *CycleSummary) {
	e.mu.RLock()
	snap, rows, portfolio := e.snapshot, e.marketRows, e.portfolio
	e.mu.RUnlock()

	for _, sym := range snap.Symbols() {
		if ctx.Err() != nil {
			sum.Error = ctx.Err().Error()
			return
		}
		sum.Evaluated++

		dec := e.gate.Evaluate(sym, snap, rows)
		if !dec.Approved {
			e.metrics.RiskRejections.Inc()
			e.bus.Publish(events.EventRiskRejected, events.RiskRejected{Symbol: sym, Reason: dec.Reason})
			continue
		}
		sum.Approved++

		// Settings are re-read per decision so admin updates apply mid-cycle.
		s := e.store.Snapshot()
		score := e.scorer.Score(ctx, sym, s)
		side, ok := risk.SideFor(score, s.MinTrendStrength)
		if !ok {
			e.log.Debug("trend too weak", zap.String("symbol", sym), zap.Float64("score", score))
			continue
		}

		row, _ := snap.Get(sym)
		qty := e.sizer.Size(risk.SizeInput{
			Symbol:        sym,
			Price:         row.Price,
			Volatility:    rows[sym].Volatility,
			Liquidity:     row.Liquidity,
			TrendStrength: score,
		}, s, portfolio)

		rep, err := e.executor.Execute(ctx, order.ExecuteRequest{
			Symbol:         sym,
			Side:           side,
			ReferencePrice: row.Price,
			Quantity:       qty,
		}, s)
		sum.Reports = append(sum.Reports, rep)
		switch {
		case err == nil:
			sum.Placed++
		case errors.Is(err, order.ErrRejected):
			sum.Skipped++
		case errors.Is(err, order.ErrPartialExecution):
			sum.Placed++
			sum.Partial++
		default:
			sum.Failed++
			e.log.Warn("order execution failed", zap.String("symbol", sym), zap.Error(err))
		}
	}
}

// GetOpenPositions lists symbols with a non-zero position. On exchange
// failure an empty list is returned with the error.
func (e *Impl) GetOpenPositions(ctx context.Context) ([]string, error) {
	positions, err := e.client.GetOpenPositions(ctx)
	if err != nil {
		e.log.Warn("get open positions failed", zap.Error(err))
		return []string{}, err
	}
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		if p.PositionAmt != 0 {
			out = append(out, p.Symbol)
		}
	}
	return out, nil
}

// GetOpenOrders lists the symbol of every resting order. On exchange failure
// an empty list is returned with the error.
func (e *Impl) GetOpenOrders(ctx context.Context) ([]string, error) {
	orders, err := e.client.GetOpenOrders(ctx)
	if err != nil {
		e.log.Warn("get open orders failed", zap.Error(err))
		return []string{}, err
	}
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Symbol)
	}
	return out, nil
}

// Start marks the engine running so the scheduler runs cycles.
func (e *Impl) Start() {
	if e.running.CompareAndSwap(false, true) {
		e.stateChanged(true)
	}
}

// Stop clears the running flag and reports whether it was set.
func (e *Impl) Stop() bool {
	if !e.running.CompareAndSwap(true, false) {
		return false
	}
	e.stateChanged(false)
	return true
}

// IsRunning reports the running flag.
func (e *Impl) IsRunning() bool { return e.running.Load() }

func (e *Impl) stateChanged(running bool) {
	v := 0.0
	if running {
		v = 1
	}
	e.metrics.Running.Set(v)
	e.bus.Publish(events.EventEngineState, events.EngineState{Running: running})
	e.log.Info("engine state changed", zap.Bool("running", running))
}

// WaitIdle blocks until no refresh or cycle is in flight, or ctx is done.
func (e *Impl) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.cycle.Lock()
		e.cycle.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports runtime state.
func (e *Impl) Status() Status {
	s := e.store.Snapshot()
	e.mu.RLock()
	st := Status{
		Running:         e.IsRunning(),
		RunCount:        e.runCount.Load(),
		TotalTradesOpen: s.TotalTradesOpen,
		DryRun:          s.DryRun,
		Testnet:         s.SimulationMode,
		Symbols:         e.snapshot.Len(),
		RefreshedAt:     e.refreshedAt,
		Unprotected:     e.executor.Unprotected(),
		CycleLatency:    e.metrics.CycleLatency.Stats(),
	}
	if e.lastCycle != nil {
		last := *e.lastCycle
		last.Reports = nil
		st.LastCycle = &last
	}
	e.mu.RUnlock()
	if e.dryRun != nil {
		sim := e.dryRun.State()
		st.Simulated = &sim
	}
	return st
}

// Market returns the state of the last successful refresh.
func (e *Impl) Market() MarketView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	view := MarketView{
		RefreshedAt: e.refreshedAt,
		Rows:        make([]MarketRow, 0, e.snapshot.Len()),
		Balances:    e.portfolio.Map(),
	}
	for _, sym := range e.snapshot.Symbols() {
		t, _ := e.snapshot.Get(sym)
		view.Rows = append(view.Rows, MarketRow{Symbol: sym, Ticker: t, Metrics: e.marketRows[sym]})
	}
	return view
}
