package market

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

// Ticker is one snapshot row.
type Ticker struct {
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Spread    float64 `json:"spread"`
	Liquidity float64 `json:"liquidity"`
}

// Snapshot is the selected instrument universe for one refresh. Symbols keeps
// the selection order, which is also the cycle iteration order.
type Snapshot struct {
	symbols []string
	rows    map[string]Ticker
}

// NewSnapshot builds a snapshot from rows in the given order. Symbols without
// a row are ignored.
func NewSnapshot(symbols []string, rows map[string]Ticker) Snapshot {
	s := Snapshot{rows: make(map[string]Ticker, len(symbols))}
	for _, sym := range symbols {
		r, ok := rows[sym]
		if !ok {
			continue
		}
		if _, dup := s.rows[sym]; dup {
			continue
		}
		s.symbols = append(s.symbols, sym)
		s.rows[sym] = r
	}
	return s
}

// Symbols returns symbols in selection order.
func (s Snapshot) Symbols() []string { return append([]string(nil), s.symbols...) }

// Get returns the row for symbol.
func (s Snapshot) Get(symbol string) (Ticker, bool) {
	t, ok := s.rows[symbol]
	return t, ok
}

// Len returns the number of instruments.
func (s Snapshot) Len() int { return len(s.symbols) }

// TotalVolume sums 24h volume over the snapshot.
func (s Snapshot) TotalVolume() float64 {
	total := 0.0
	for _, r := range s.rows {
		total += r.Volume
	}
	return total
}

// SnapshotBuilder joins 24h statistics with best bid/ask quotes.
type SnapshotBuilder struct {
	client common.Client
	log    *zap.Logger
}

// NewSnapshotBuilder creates a builder over client.
func NewSnapshotBuilder(client common.Client, log *zap.Logger) *SnapshotBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotBuilder{client: client, log: log.Named("snapshot")}
}

// Build fetches both ticker lists, inner-joins them by symbol, ranks by the
// configured sort key, keeps the top PAIRS_TO_PROCESS and then restricts to
// symbols quoted in QUOTE_ASSET. Any fetch error fails the build.
func (b *SnapshotBuilder) Build(ctx context.Context, s settings.Settings) (Snapshot, error) {
	stats, err := b.client.Get24hTickers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch 24h tickers: %w", err)
	}
	quotes, err := b.client.GetBookTickers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch book tickers: %w", err)
	}

	book := make(map[string]common.BookTicker, len(quotes))
	for _, q := range quotes {
		book[q.Symbol] = q
	}

	order := make([]string, 0, len(stats))
	rows := make(map[string]Ticker, len(stats))
	for _, st := range stats {
		q, ok := book[st.Symbol]
		if !ok {
			continue
		}
		if _, dup := rows[st.Symbol]; dup {
			continue
		}
		order = append(order, st.Symbol)
		rows[st.Symbol] = Ticker{
			Price:     st.LastPrice,
			Volume:    st.Volume,
			Spread:    Spread(q.BidPrice, q.AskPrice),
			Liquidity: q.BidPrice*q.AskQty + q.AskPrice*q.BidQty,
		}
	}

	key := func(t Ticker) float64 { return t.Volume }
	if s.SortBy == settings.SortByPrice {
		key = func(t Ticker) float64 { return t.Price }
	}
	sort.SliceStable(order, func(i, j int) bool {
		return key(rows[order[i]]) > key(rows[order[j]])
	})

	if n := s.PairsToProcess; n < len(order) {
		order = order[:n]
	}
	selected := order[:0]
	for _, sym := range order {
		if strings.Contains(sym, s.QuoteAsset) {
			selected = append(selected, sym)
		}
	}

	snap := NewSnapshot(selected, rows)
	b.log.Debug("snapshot built",
		zap.Int("joined", len(rows)),
		zap.Int("selected", snap.Len()),
		zap.String("sort_by", s.SortBy))
	return snap, nil
}

// Spread returns ask minus bid when both quotes are positive, else 0.
func Spread(bid, ask float64) float64 {
	if bid > 0 && ask > 0 {
		return ask - bid
	}
	return 0
}
