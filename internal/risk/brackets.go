package risk

import "quant-engine/pkg/exchanges/common"

// Brackets returns stop-loss and take-profit trigger prices for an entry.
// Short entries mirror the long offsets.
func Brackets(side common.Side, entry, stopLoss, takeProfit float64) (sl, tp float64) {
	if side == common.SideSell {
		return entry * (1 + stopLoss), entry * (1 - takeProfit)
	}
	return entry * (1 - stopLoss), entry * (1 + takeProfit)
}

// SideFor maps a trend score to an entry side. Scores whose magnitude does not
// exceed minStrength yield ok=false.
func SideFor(score, minStrength float64) (side common.Side, ok bool) {
	switch {
	case score > minStrength && score > 0:
		return common.SideBuy, true
	case -score > minStrength && score < 0:
		return common.SideSell, true
	}
	return "", false
}
