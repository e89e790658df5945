package indicators

import "math"

// SMA returns the simple moving average series. Entries before the first full
// window are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average series seeded with the SMA of
// the first full window. Leading NaN inputs are skipped, so EMA can be chained
// on another indicator's output.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	seed := start + period - 1
	if seed >= len(values) {
		return out
	}
	sum := 0.0
	for i := start; i <= seed; i++ {
		sum += values[i]
	}
	prev := sum / float64(period)
	out[seed] = prev
	k := 2.0 / float64(period+1)
	for i := seed + 1; i < len(values); i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
