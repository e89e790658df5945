package engine

import (
	"context"

	"quant-engine/internal/order"
	"quant-engine/internal/settings"
	"quant-engine/pkg/exchanges/common"
)

// switchClient forwards every call to the client chosen at call time.
type switchClient struct {
	pick func() common.Client
}

var _ common.Client = switchClient{}

func (c switchClient) GetBalance(ctx context.Context) ([]common.AssetBalance, error) {
	return c.pick().GetBalance(ctx)
}

func (c switchClient) Get24hTickers(ctx context.Context) ([]common.Ticker24h, error) {
	return c.pick().Get24hTickers(ctx)
}

func (c switchClient) GetBookTickers(ctx context.Context) ([]common.BookTicker, error) {
	return c.pick().GetBookTickers(ctx)
}

func (c switchClient) GetDepth(ctx context.Context, symbol string, limit int) (common.Depth, error) {
	return c.pick().GetDepth(ctx, symbol, limit)
}

func (c switchClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]common.Kline, error) {
	return c.pick().GetKlines(ctx, symbol, interval, limit)
}

func (c switchClient) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	return c.pick().PlaceOrder(ctx, req)
}

func (c switchClient) GetOpenPositions(ctx context.Context) ([]common.Position, error) {
	return c.pick().GetOpenPositions(ctx)
}

func (c switchClient) GetOpenOrders(ctx context.Context) ([]common.OpenOrder, error) {
	return c.pick().GetOpenOrders(ctx)
}

func (c switchClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return c.pick().SetLeverage(ctx, symbol, leverage)
}

func (c switchClient) SetMarginMode(ctx context.Context, symbol string, mode common.MarginMode) error {
	return c.pick().SetMarginMode(ctx, symbol, mode)
}

func (c switchClient) CancelOpenOrders(ctx context.Context, symbol string) error {
	return c.pick().CancelOpenOrders(ctx, symbol)
}

func (c switchClient) GetSymbolPrecision(ctx context.Context, symbol string) (common.SymbolPrecision, error) {
	return c.pick().GetSymbolPrecision(ctx, symbol)
}

// Clients routes exchange calls by the live SIMULATION_MODE and DRY_RUN
// settings: testnet when simulating, and the in-memory book when dry-running.
type Clients struct {
	common.Client
	DryRun *order.DryRunClient
}

// NewClients builds the routed client. testnet may be nil, in which case
// mainnet serves both networks.
func NewClients(store *settings.Store, mainnet, testnet common.Client, dry func(common.Client) *order.DryRunClient) *Clients {
	if testnet == nil {
		testnet = mainnet
	}
	network := switchClient{pick: func() common.Client {
		if store.Snapshot().SimulationMode {
			return testnet
		}
		return mainnet
	}}
	dr := dry(network)
	return &Clients{
		Client: switchClient{pick: func() common.Client {
			if store.Snapshot().DryRun {
				return dr
			}
			return network
		}},
		DryRun: dr,
	}
}
