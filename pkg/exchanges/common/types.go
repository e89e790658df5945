package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for an entry side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes the futures order types the engine submits.
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good Till Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate Or Cancel
	TIFFOK TimeInForce = "FOK" // Fill Or Kill
)

// MarginMode is the futures margin mode. Only crossed margin is supported.
type MarginMode string

const (
	MarginCrossed  MarginMode = "CROSSED"
	MarginIsolated MarginMode = "ISOLATED"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// AssetBalance is one row of the futures wallet.
type AssetBalance struct {
	Asset            string
	Balance          float64
	AvailableBalance float64
}

// Ticker24h is the rolling 24h statistics row for a symbol.
type Ticker24h struct {
	Symbol    string
	LastPrice float64
	Volume    float64
}

// BookTicker holds best bid/ask with their sizes.
type BookTicker struct {
	Symbol   string
	BidPrice float64
	BidQty   float64
	AskPrice float64
	AskQty   float64
}

// PriceLevel is one [price, qty] order book level.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// Depth is a point-in-time order book snapshot, best levels first.
type Depth struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// BestBid returns the top bid price, or 0 when the side is empty.
func (d Depth) BestBid() float64 {
	if len(d.Bids) == 0 {
		return 0
	}
	return d.Bids[0].Price
}

// BestAsk returns the top ask price, or 0 when the side is empty.
func (d Depth) BestAsk() float64 {
	if len(d.Asks) == 0 {
		return 0
	}
	return d.Asks[0].Price
}

// Kline is a single candlestick.
type Kline struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Position is a live futures position.
type Position struct {
	Symbol      string
	PositionAmt float64
}

// OpenOrder is a resting order on the exchange.
type OpenOrder struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Side          Side
	Type          OrderType
	ReduceOnly    bool
}

// RestingEntry reports whether the order opens exposure: a LIMIT order that
// is not reduce-only.
func (o OpenOrder) RestingEntry() bool {
	return o.Type == OrderTypeLimit && !o.ReduceOnly
}

// SymbolPrecision is the exchange-reported decimal precision for a contract.
type SymbolPrecision struct {
	PricePrecision    int32
	QuantityPrecision int32
}

// OrderRequest captures an order intent to be sent to an exchange.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Qty         float64
	Price       float64 // required for LIMIT
	StopPrice   float64 // required for STOP_MARKET / TAKE_PROFIT_MARKET
	TimeInForce TimeInForce
	ClientID    string
	ReduceOnly  bool
}

// OrderResult returns the exchange ack.
type OrderResult struct {
	ExchangeOrderID string
	ClientID        string
	Status          OrderStatus
}
