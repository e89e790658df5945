package futures_usdt

import (
	"fmt"
	"strconv"
	"strings"

	"quant-engine/pkg/exchanges/common"
)

func parseFloat(field, raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, common.Transient("decode "+field, fmt.Errorf("malformed value %q: %w", raw, err))
	}
	return f, nil
}

func parseLevel(price, qty string) (common.PriceLevel, error) {
	p, err := parseFloat("level price", price)
	if err != nil {
		return common.PriceLevel{}, err
	}
	q, err := parseFloat("level qty", qty)
	if err != nil {
		return common.PriceLevel{}, err
	}
	return common.PriceLevel{Price: p, Qty: q}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// depthWeight follows the futures depth endpoint weight table.
func depthWeight(limit int) int {
	switch {
	case limit <= 50:
		return 2
	case limit <= 100:
		return 5
	case limit <= 500:
		return 10
	default:
		return 20
	}
}

func mapStatus(s string) common.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	case "EXPIRED":
		return common.StatusExpired
	default:
		return common.StatusUnknown
	}
}
