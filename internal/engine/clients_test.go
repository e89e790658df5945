package engine

import (
	"context"
	"testing"

	"quant-engine/internal/exchangetest"
	"quant-engine/internal/order"
	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

func TestClientsRouting(t *testing.T) {
	mainnet := &exchangetest.Fake{}
	testnet := &exchangetest.Fake{}
	store, _ := settings.NewStore(settings.Defaults())
	c := NewClients(store, mainnet, testnet, func(live common.Client) *order.DryRunClient {
		return order.NewDryRunClient(live, func() float64 { return store.Snapshot().TradeFeeRate }, nil)
	})
	ctx := context.Background()
	req := common.OrderRequest{Symbol: "BTCUSDT", Side: common.SideBuy, Type: common.OrderTypeLimit, Qty: 1, Price: 100}

	tests := []struct {
		name       string
		simulation bool
		dryRun     bool
		mainnet    int
		testnet    int
	}{
		{"mainnet", false, false, 1, 0},
		{"testnet", true, false, 0, 1},
		{"dry run", false, true, 0, 0},
		{"dry run on testnet", true, true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mainnet.Placed, testnet.Placed = nil, nil
			_ = store.Set("SIMULATION_MODE", tt.simulation)
			_ = store.Set("DRY_RUN", tt.dryRun)
			if _, err := c.PlaceOrder(ctx, req); err != nil {
				t.Fatal(err)
			}
			if got := len(mainnet.PlacedOrders()); got != tt.mainnet {
				t.Errorf("mainnet orders=%v, expected %v", got, tt.mainnet)
			}
			if got := len(testnet.PlacedOrders()); got != tt.testnet {
				t.Errorf("testnet orders=%v, expected %v", got, tt.testnet)
			}
		})
	}

	if st := c.DryRun.State(); st.Orders != 2 || len(st.Positions) != 1 {
		t.Fatalf("dry run state = %+v", st)
	}
}

func TestClientsDryRunReadsPassThrough(t *testing.T) {
	testnet := &exchangetest.Fake{Tickers: []common.Ticker24h{{Symbol: "BTCUSDT", LastPrice: 1}}}
	s := settings.Defaults()
	s.SimulationMode = true
	s.DryRun = true
	store, _ := settings.NewStore(s)
	c := NewClients(store, &exchangetest.Fake{}, testnet, func(live common.Client) *order.DryRunClient {
		return order.NewDryRunClient(live, nil, nil)
	})

	rows, err := c.Get24hTickers(context.Background())
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
	if testnet.CallCount("Get24hTickers") != 1 {
		t.Fatal("market reads must reach the selected network")
	}
}
