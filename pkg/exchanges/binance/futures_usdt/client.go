package futures_usdt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	bncommon "github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"quant-engine/pkg/cache"
	"quant-engine/pkg/exchanges/common"
)

// Binance error code returned when the requested margin type is already set.
const codeNoNeedToChangeMargin = -4046

// Config holds Binance USDT-M futures credentials.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
}

// Client implements common.Client on top of the go-binance futures SDK.
type Client struct {
	api        *futures.Client
	weights    *common.WeightLimiter
	precisions *cache.Sharded[common.SymbolPrecision]
	log        *zap.Logger
}

var _ common.Client = (*Client)(nil)

// NewClient creates a new USDT-M futures client.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	// The SDK reads its base URL from a package-level switch at construction.
	prev := futures.UseTestnet
	futures.UseTestnet = cfg.Testnet
	api := futures.NewClient(cfg.APIKey, cfg.APISecret)
	futures.UseTestnet = prev

	return &Client{
		api:        api,
		weights:    common.NewWeightLimiter(2400, time.Minute), // 2400 weight/min for futures
		precisions: cache.New[common.SymbolPrecision](time.Hour),
		log:        log.Named("binance-futures"),
	}
}

// SyncTime aligns the SDK's signing clock with the server and returns the offset in ms.
func (c *Client) SyncTime(ctx context.Context) (int64, error) {
	offset, err := c.api.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return 0, common.Transient("sync server time", err)
	}
	return offset, nil
}

// GetBalance returns futures wallet balances.
func (c *Client) GetBalance(ctx context.Context) ([]common.AssetBalance, error) {
	if err := c.weights.Wait(ctx, 5); err != nil {
		return nil, err
	}
	rows, err := c.api.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, common.Transient("get balance", err)
	}
	out := make([]common.AssetBalance, 0, len(rows))
	for _, r := range rows {
		bal, err := parseFloat("balance", r.Balance)
		if err != nil {
			return nil, err
		}
		avail, err := parseFloat("availableBalance", r.AvailableBalance)
		if err != nil {
			return nil, err
		}
		out = append(out, common.AssetBalance{Asset: r.Asset, Balance: bal, AvailableBalance: avail})
	}
	return out, nil
}

// Get24hTickers returns the 24h statistics for every listed contract.
func (c *Client) Get24hTickers(ctx context.Context) ([]common.Ticker24h, error) {
	if err := c.weights.Wait(ctx, 40); err != nil {
		return nil, err
	}
	rows, err := c.api.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, common.Transient("get 24h tickers", err)
	}
	out := make([]common.Ticker24h, 0, len(rows))
	for _, r := range rows {
		last, err := parseFloat("lastPrice", r.LastPrice)
		if err != nil {
			return nil, err
		}
		vol, err := parseFloat("volume", r.Volume)
		if err != nil {
			return nil, err
		}
		out = append(out, common.Ticker24h{Symbol: r.Symbol, LastPrice: last, Volume: vol})
	}
	return out, nil
}

// GetBookTickers returns best bid/ask for every listed contract.
func (c *Client) GetBookTickers(ctx context.Context) ([]common.BookTicker, error) {
	if err := c.weights.Wait(ctx, 5); err != nil {
		return nil, err
	}
	rows, err := c.api.NewListBookTickersService().Do(ctx)
	if err != nil {
		return nil, common.Transient("get book tickers", err)
	}
	out := make([]common.BookTicker, 0, len(rows))
	for _, r := range rows {
		var bt common.BookTicker
		bt.Symbol = r.Symbol
		if bt.BidPrice, err = parseFloat("bidPrice", r.BidPrice); err != nil {
			return nil, err
		}
		if bt.BidQty, err = parseFloat("bidQty", r.BidQuantity); err != nil {
			return nil, err
		}
		if bt.AskPrice, err = parseFloat("askPrice", r.AskPrice); err != nil {
			return nil, err
		}
		if bt.AskQty, err = parseFloat("askQty", r.AskQuantity); err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	return out, nil
}

// GetDepth returns an order book snapshot.
func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (common.Depth, error) {
	if err := c.weights.Wait(ctx, depthWeight(limit)); err != nil {
		return common.Depth{}, err
	}
	res, err := c.api.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return common.Depth{}, common.Transient("get depth "+symbol, err)
	}
	var d common.Depth
	for _, b := range res.Bids {
		lvl, err := parseLevel(b.Price, b.Quantity)
		if err != nil {
			return common.Depth{}, err
		}
		d.Bids = append(d.Bids, lvl)
	}
	for _, a := range res.Asks {
		lvl, err := parseLevel(a.Price, a.Quantity)
		if err != nil {
			return common.Depth{}, err
		}
		d.Asks = append(d.Asks, lvl)
	}
	return d, nil
}

// GetKlines fetches the most recent candles for a symbol.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]common.Kline, error) {
	if err := c.weights.Wait(ctx, 2); err != nil {
		return nil, err
	}
	rows, err := c.api.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, common.Transient("get klines "+symbol, err)
	}
	out := make([]common.Kline, 0, len(rows))
	for _, r := range rows {
		k := common.Kline{OpenTime: r.OpenTime}
		if k.Open, err = parseFloat("open", r.Open); err != nil {
			return nil, err
		}
		if k.High, err = parseFloat("high", r.High); err != nil {
			return nil, err
		}
		if k.Low, err = parseFloat("low", r.Low); err != nil {
			return nil, err
		}
		if k.Close, err = parseFloat("close", r.Close); err != nil {
			return nil, err
		}
		if k.Volume, err = parseFloat("volume", r.Volume); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// PlaceOrder submits an order.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if err := c.weights.Wait(ctx, 1); err != nil {
		return common.OrderResult{}, err
	}
	svc := c.api.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type)).
		Quantity(formatFloat(req.Qty))

	switch req.Type {
	case common.OrderTypeLimit:
		tif := req.TimeInForce
		if tif == "" {
			tif = common.TIFGTC
		}
		svc = svc.Price(formatFloat(req.Price)).TimeInForce(futures.TimeInForceType(tif))
	case common.OrderTypeStopMarket, common.OrderTypeTakeProfitMarket:
		svc = svc.StopPrice(formatFloat(req.StopPrice)).WorkingType(futures.WorkingTypeMarkPrice)
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return common.OrderResult{}, common.Transient(fmt.Sprintf("place %s %s %s", req.Type, req.Side, req.Symbol), err)
	}
	return common.OrderResult{
		ExchangeOrderID: strconv.FormatInt(res.OrderID, 10),
		ClientID:        res.ClientOrderID,
		Status:          mapStatus(string(res.Status)),
	}, nil
}

// GetOpenPositions returns positions with a non-zero amount.
func (c *Client) GetOpenPositions(ctx context.Context) ([]common.Position, error) {
	if err := c.weights.Wait(ctx, 5); err != nil {
		return nil, err
	}
	rows, err := c.api.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, common.Transient("get positions", err)
	}
	out := make([]common.Position, 0)
	for _, r := range rows {
		amt, err := parseFloat("positionAmt", r.PositionAmt)
		if err != nil {
			return nil, err
		}
		if amt == 0 {
			continue
		}
		out = append(out, common.Position{Symbol: r.Symbol, PositionAmt: amt})
	}
	return out, nil
}

// GetOpenOrders returns every resting order on the account.
func (c *Client) GetOpenOrders(ctx context.Context) ([]common.OpenOrder, error) {
	if err := c.weights.Wait(ctx, 40); err != nil {
		return nil, err
	}
	rows, err := c.api.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, common.Transient("get open orders", err)
	}
	out := make([]common.OpenOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, common.OpenOrder{
			Symbol:        r.Symbol,
			OrderID:       r.OrderID,
			ClientOrderID: r.ClientOrderID,
			Side:          common.Side(r.Side),
			Type:          common.OrderType(r.Type),
			ReduceOnly:    r.ReduceOnly,
		})
	}
	return out, nil
}

// SetLeverage sets leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := c.weights.Wait(ctx, 1); err != nil {
		return err
	}
	if _, err := c.api.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx); err != nil {
		return common.Transient("set leverage "+symbol, err)
	}
	return nil
}

// SetMarginMode sets the margin type. An unchanged margin type is not an error.
func (c *Client) SetMarginMode(ctx context.Context, symbol string, mode common.MarginMode) error {
	if err := c.weights.Wait(ctx, 1); err != nil {
		return err
	}
	err := c.api.NewChangeMarginTypeService().
		Symbol(symbol).
		MarginType(futures.MarginType(strings.ToUpper(string(mode)))).
		Do(ctx)
	if err == nil {
		return nil
	}
	var apiErr *bncommon.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeNoNeedToChangeMargin {
		return nil
	}
	return common.Transient("set margin type "+symbol, err)
}

// CancelOpenOrders cancels all open orders for a symbol.
func (c *Client) CancelOpenOrders(ctx context.Context, symbol string) error {
	if err := c.weights.Wait(ctx, 1); err != nil {
		return err
	}
	if err := c.api.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return common.Transient("cancel open orders "+symbol, err)
	}
	return nil
}

// GetSymbolPrecision looks up price and quantity precision. Exchange info is
// fetched once per hour and cached for every listed symbol.
func (c *Client) GetSymbolPrecision(ctx context.Context, symbol string) (common.SymbolPrecision, error) {
	if p, ok := c.precisions.Get(symbol); ok {
		return p, nil
	}
	if err := c.weights.Wait(ctx, 1); err != nil {
		return common.SymbolPrecision{}, err
	}
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return common.SymbolPrecision{}, common.Transient("get exchange info", err)
	}
	for _, s := range info.Symbols {
		c.precisions.Set(s.Symbol, common.SymbolPrecision{
			PricePrecision:    int32(s.PricePrecision),
			QuantityPrecision: int32(s.QuantityPrecision),
		})
	}
	if p, ok := c.precisions.Get(symbol); ok {
		return p, nil
	}
	return common.SymbolPrecision{}, fmt.Errorf("%s: %w", symbol, common.ErrSymbolNotFound)
}
