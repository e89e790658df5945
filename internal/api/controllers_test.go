package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"quant-engine/internal/engine"
	"quant-engine/internal/events"
	"quant-engine/internal/exchangetest"
	"quant-engine/internal/monitor"
	"quant-engine/internal/reconciliation"
	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

type testEnv struct {
	ts     *httptest.Server
	fake   *exchangetest.Fake
	engine *engine.Impl
	bus    *events.Bus
}

func newTestAPIServer(t *testing.T, secret string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := &exchangetest.Fake{
		Balances:    []common.AssetBalance{{Asset: "USDT", Balance: 500, AvailableBalance: 400}},
		Tickers:     []common.Ticker24h{{Symbol: "BTCUSDT", LastPrice: 100, Volume: 10}},
		BookTickers: []common.BookTicker{{Symbol: "BTCUSDT", BidPrice: 99.9, BidQty: 1, AskPrice: 100.1, AskQty: 1}},
	}
	s := settings.Defaults()
	s.OrderPacingSeconds = 0
	store, err := settings.NewStore(s)
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(reg)
	bus := events.NewBus()
	eng := engine.NewImpl(engine.Config{Client: fake, Settings: store, Bus: bus, Metrics: metrics})

	server := NewServer(eng, Options{
		Bus:       bus,
		Metrics:   metrics,
		Gatherer:  reg,
		Recon:     reconciliation.NewService(noopReconciler{}, time.Minute, nil),
		JWTSecret: secret,
		RateLimit: 1000,
		RateBurst: 1000,
	})
	ts := httptest.NewServer(server.Router)
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, fake: fake, engine: eng, bus: bus}
}

type noopReconciler struct{}

func (noopReconciler) Reconcile(ctx context.Context) (int, error) {
	return 0, nil
}

func (noopReconciler) Unprotected() []events.PositionUnprotected {
	return nil
}

func doJSONRequest(t *testing.T, client *http.Client, method, url, token string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHealthAndRoot(t *testing.T) {
	env := newTestAPIServer(t, "")
	client := env.ts.Client()

	var health map[string]string
	if status := doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/health", "", nil, &health); status != http.StatusOK {
		t.Fatalf("health status=%d", status)
	}
	if health["status"] != "healthy" || health["service"] != ServiceName {
		t.Fatalf("health=%v", health)
	}

	var root map[string]string
	doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/", "", nil, &root)
	if root["status"] != "running" {
		t.Fatalf("root=%v", root)
	}
}

func TestUpdateConfig(t *testing.T) {
	env := newTestAPIServer(t, "")
	client := env.ts.Client()

	tests := []struct {
		name   string
		key    string
		value  any
		status int
		detail string
	}{
		{"ok", "LEVERAGE", 20, http.StatusOK, ""},
		{"unknown", "NOPE", 1, http.StatusNotFound, "Config key 'NOPE' not found."},
		{"read only", "TOTAL_TRADES_OPEN", 3, http.StatusBadRequest, "Config key 'TOTAL_TRADES_OPEN' is read-only."},
		{"invalid", "LEVERAGE", 500, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp map[string]any
			status := doJSONRequest(t, client, http.MethodPost, env.ts.URL+"/config", "",
				map[string]any{"key": tt.key, "value": tt.value}, &resp)
			if status != tt.status {
				t.Fatalf("status=%d, expected %d (%v)", status, tt.status, resp)
			}
			if tt.detail != "" && resp["detail"] != tt.detail {
				t.Fatalf("detail=%v, expected %v", resp["detail"], tt.detail)
			}
		})
	}

	if got := env.engine.Settings().Snapshot().Leverage; got != 20 {
		t.Fatalf("leverage=%v, expected 20", got)
	}

	var cfg map[string]any
	doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/config", "", nil, &cfg)
	if cfg["LEVERAGE"] != float64(20) || cfg["TOTAL_TRADES_OPEN"] != float64(0) {
		t.Fatalf("config=%v", cfg)
	}
}

func TestUpdateConfigMessage(t *testing.T) {
	env := newTestAPIServer(t, "")
	var resp map[string]string
	doJSONRequest(t, env.ts.Client(), http.MethodPost, env.ts.URL+"/config", "",
		map[string]any{"key": "DRY_RUN", "value": true}, &resp)
	if resp["message"] != "DRY_RUN updated to true" {
		t.Fatalf("message=%q", resp["message"])
	}
}

func TestRefreshAndStatus(t *testing.T) {
	env := newTestAPIServer(t, "")
	client := env.ts.Client()

	var refresh map[string]bool
	if status := doJSONRequest(t, client, http.MethodPost, env.ts.URL+"/refresh", "", nil, &refresh); status != http.StatusOK {
		t.Fatalf("refresh status=%d", status)
	}
	if !refresh["refresh"] {
		t.Fatalf("refresh=%v", refresh)
	}

	env.fake.Update(func(f *exchangetest.Fake) {
		f.Errs = map[string]error{"GetBalance": exchangetest.ErrBoom}
	})
	doJSONRequest(t, client, http.MethodPost, env.ts.URL+"/refresh", "", nil, &refresh)
	if refresh["refresh"] {
		t.Fatal("refresh should report false when the exchange fails")
	}

	var market engine.MarketView
	doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/market", "", nil, &market)
	if len(market.Rows) != 1 || market.Rows[0].Symbol != "BTCUSDT" {
		t.Fatalf("market=%+v", market)
	}
	if market.Balances["USDT"].Locked != 100 {
		t.Fatalf("locked=%v, expected 100", market.Balances["USDT"].Locked)
	}

	var st map[string]any
	doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/status", "", nil, &st)
	for _, k := range []string{"running", "run_count", "total_trades_open", "unprotected_positions"} {
		if _, ok := st[k]; !ok {
			t.Fatalf("status missing %q: %v", k, st)
		}
	}
}

func TestRunStrategy(t *testing.T) {
	env := newTestAPIServer(t, "")
	var resp struct {
		Status  string              `json:"status"`
		Summary engine.CycleSummary `json:"summary"`
	}
	status := doJSONRequest(t, env.ts.Client(), http.MethodPost, env.ts.URL+"/run_strategy", "", nil, &resp)
	if status != http.StatusOK || resp.Status != "Strategy executed" {
		t.Fatalf("status=%d resp=%+v", status, resp)
	}
	if resp.Summary.Run != 1 || !resp.Summary.Refreshed {
		t.Fatalf("summary=%+v", resp.Summary)
	}
}

func TestPositionsAndOrders(t *testing.T) {
	env := newTestAPIServer(t, "")
	client := env.ts.Client()
	env.fake.Update(func(f *exchangetest.Fake) {
		f.Positions = []common.Position{{Symbol: "BTCUSDT", PositionAmt: 1}, {Symbol: "ETHUSDT", PositionAmt: 0}}
		f.Orders = []common.OpenOrder{{Symbol: "BTCUSDT"}, {Symbol: "BTCUSDT"}}
	})

	var pos struct {
		Positions []string `json:"positions"`
	}
	doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/positions", "", nil, &pos)
	if len(pos.Positions) != 1 || pos.Positions[0] != "BTCUSDT" {
		t.Fatalf("positions=%v", pos.Positions)
	}
	var ord struct {
		Orders []string `json:"orders"`
	}
	doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/orders", "", nil, &ord)
	if len(ord.Orders) != 2 {
		t.Fatalf("orders=%v", ord.Orders)
	}

	env.fake.Update(func(f *exchangetest.Fake) {
		f.Errs = map[string]error{"GetOpenPositions": exchangetest.ErrBoom}
	})
	var failed map[string]any
	doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/positions", "", nil, &failed)
	if failed["status"] != "error" || failed["message"] == "" {
		t.Fatalf("resp=%v", failed)
	}
	if list, ok := failed["positions"].([]any); !ok || len(list) != 0 {
		t.Fatalf("positions must be an empty list, got %v", failed["positions"])
	}
}

func TestStartStop(t *testing.T) {
	env := newTestAPIServer(t, "")
	client := env.ts.Client()

	tests := []struct {
		path    string
		message string
		running bool
	}{
		{"/stop", "Bot is not running", false},
		{"/start", "success", true},
		{"/stop", "Bot stopped", false},
	}
	for _, tt := range tests {
		var resp map[string]string
		doJSONRequest(t, client, http.MethodPost, env.ts.URL+tt.path, "", nil, &resp)
		if resp["message"] != tt.message {
			t.Fatalf("%s message=%q, expected %q", tt.path, resp["message"], tt.message)
		}
		if env.engine.IsRunning() != tt.running {
			t.Fatalf("%s running=%v, expected %v", tt.path, env.engine.IsRunning(), tt.running)
		}
	}
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	const secret = "test-secret"
	env := newTestAPIServer(t, secret)
	client := env.ts.Client()

	var resp map[string]string
	if status := doJSONRequest(t, client, http.MethodPost, env.ts.URL+"/start", "", nil, &resp); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if resp["code"] != "MISSING_TOKEN" {
		t.Fatalf("code=%q", resp["code"])
	}
	if status := doJSONRequest(t, client, http.MethodPost, env.ts.URL+"/start", "garbage", nil, &resp); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}

	wrong, _ := GenerateToken("ops", "other-secret", time.Hour)
	if status := doJSONRequest(t, client, http.MethodPost, env.ts.URL+"/start", wrong, nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign token, got %d", status)
	}

	token, err := GenerateToken("ops", secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if status := doJSONRequest(t, client, http.MethodPost, env.ts.URL+"/start", token, nil, &resp); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	// Reads stay open.
	if status := doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/config", "", nil, nil); status != http.StatusOK {
		t.Fatalf("GET /config status=%d", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestAPIServer(t, "")
	client := env.ts.Client()
	doJSONRequest(t, client, http.MethodGet, env.ts.URL+"/health", "", nil, nil)

	resp, err := client.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "quant_engine_http_requests_total") {
		t.Fatalf("metrics output missing http counter:\n%s", body)
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	env := newTestAPIServer(t, "")
	req, _ := http.NewRequest(http.MethodOptions, env.ts.URL+"/config", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status=%d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" || resp.Header.Get("X-Request-ID") != "abc" {
		t.Fatalf("headers=%v", resp.Header)
	}
}

func TestWebsocketStreamsEvents(t *testing.T) {
	env := newTestAPIServer(t, "")
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription is registered after the upgrade; publish until it lands.
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	go func() {
		for time.Now().Before(deadline) {
			env.bus.Publish(events.EventEngineState, events.EngineState{Running: true})
			time.Sleep(20 * time.Millisecond)
		}
	}()

	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != string(events.EventEngineState) || msg.Payload["running"] != true {
		t.Fatalf("envelope=%+v", msg)
	}
}

func TestReconciliationEndpoint(t *testing.T) {
	env := newTestAPIServer(t, "")
	var report reconciliation.Report
	status := doJSONRequest(t, env.ts.Client(), http.MethodGet, env.ts.URL+"/reconciliation", "", nil, &report)
	if status != http.StatusOK || report.Timestamp.IsZero() {
		t.Fatalf("status=%d report=%+v", status, report)
	}
}
