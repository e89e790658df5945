package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quant_engine"

// Metrics holds the engine's Prometheus collectors plus an in-process
// latency window for the status endpoint.
type Metrics struct {
	Cycles          *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	Refreshes       *prometheus.CounterVec
	SnapshotSymbols prometheus.Gauge
	RiskRejections  prometheus.Counter
	OrdersPlaced    *prometheus.CounterVec
	OrderFailures   *prometheus.CounterVec
	OrdersSkipped   *prometheus.CounterVec
	Unprotected     prometheus.Counter
	Flattened       prometheus.Counter
	OpenTrades      prometheus.Gauge
	Running         prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec

	CycleLatency *LatencyHistogram
}

// NewMetrics registers collectors on reg. A nil reg uses a private registry,
// which keeps tests free of duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "cycles_total",
			Help: "Strategy cycles by result",
		}, []string{"result"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "engine", Name: "cycle_duration_seconds",
			Help:    "Wall time of a full strategy cycle",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "market", Name: "refreshes_total",
			Help: "Market data refreshes by result",
		}, []string{"result"}),
		SnapshotSymbols: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "market", Name: "snapshot_symbols",
			Help: "Symbols in the current market snapshot",
		}),
		RiskRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "risk", Name: "rejections_total",
			Help: "Symbols rejected by the risk gate",
		}),
		OrdersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "placed_total",
			Help: "Accepted order legs",
		}, []string{"leg", "side"}),
		OrderFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "failures_total",
			Help: "Failed order submissions",
		}, []string{"leg"}),
		OrdersSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "skipped_total",
			Help: "Orders skipped by a precondition",
		}, []string{"reason"}),
		Unprotected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "unprotected_positions_total",
			Help: "Entries left without a stop-loss or take-profit",
		}),
		Flattened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "flattened_positions_total",
			Help: "Unprotected positions closed automatically",
		}),
		OpenTrades: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "engine", Name: "open_trades",
			Help: "Open positions from the last reconciliation",
		}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "engine", Name: "running",
			Help: "1 when the scheduler may run cycles",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Admin API requests",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Admin API latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		CycleLatency: NewLatencyHistogram(500),
	}
}

// LatencyHistogram tracks latency samples with sliding window.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg and percentiles, recomputed only after new samples.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// Timer measures an operation into a histogram and a Prometheus observer.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
	observer  prometheus.Observer
}

// NewTimer starts a timer. Either sink may be nil.
func NewTimer(h *LatencyHistogram, o prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), histogram: h, observer: o}
}

// Stop records the elapsed time.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	if t.observer != nil {
		t.observer.Observe(elapsed.Seconds())
	}
	return elapsed
}
