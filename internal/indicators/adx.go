package indicators

import "math"

// ADX returns Wilder's Average Directional Index. high, low and close must
// have equal length. The first defined value is at index 2*period-1.
func ADX(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := nanSeries(n)
	if period <= 0 || len(high) != n || len(low) != n || n < 2*period {
		return out
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
	}

	var trS, plusS, minusS float64
	for i := 1; i <= period; i++ {
		trS += tr[i]
		plusS += plusDM[i]
		minusS += minusDM[i]
	}

	dx := nanSeries(n)
	dx[period] = directionalIndex(trS, plusS, minusS)
	for i := period + 1; i < n; i++ {
		trS = trS - trS/float64(period) + tr[i]
		plusS = plusS - plusS/float64(period) + plusDM[i]
		minusS = minusS - minusS/float64(period) + minusDM[i]
		dx[i] = directionalIndex(trS, plusS, minusS)
	}

	first := 2*period - 1
	sum := 0.0
	for i := period; i <= first; i++ {
		sum += dx[i]
	}
	prev := sum / float64(period)
	out[first] = prev
	for i := first + 1; i < n; i++ {
		prev = (prev*float64(period-1) + dx[i]) / float64(period)
		out[i] = prev
	}
	return out
}

func directionalIndex(tr, plusDM, minusDM float64) float64 {
	if tr == 0 {
		return 0
	}
	plusDI := 100 * plusDM / tr
	minusDI := 100 * minusDM / tr
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}
