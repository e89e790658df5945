package common

import "context"

// Client is the exchange capability the engine depends on. Implementations
// own authentication, signing and transport timeouts.
type Client interface {
	GetBalance(ctx context.Context) ([]AssetBalance, error)
	Get24hTickers(ctx context.Context) ([]Ticker24h, error)
	GetBookTickers(ctx context.Context) ([]BookTicker, error)
	GetDepth(ctx context.Context, symbol string, limit int) (Depth, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	GetOpenPositions(ctx context.Context) ([]Position, error)
	GetOpenOrders(ctx context.Context) ([]OpenOrder, error)

	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol string, mode MarginMode) error
	CancelOpenOrders(ctx context.Context, symbol string) error
	GetSymbolPrecision(ctx context.Context, symbol string) (SymbolPrecision, error)
}
