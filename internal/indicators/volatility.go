package indicators

import "math"

// AnnualizationFactor scales per-bar return deviation. It is applied as is
// regardless of bar interval.
var AnnualizationFactor = math.Sqrt(365 * 24)

// LogReturnVolatility returns the annualized sample standard deviation of log
// returns. Non-positive closes are skipped, as are non-finite returns. Fewer
// than two usable closes yield 0.
func LogReturnVolatility(closes []float64) float64 {
	valid := make([]float64, 0, len(closes))
	for _, c := range closes {
		if c > 0 && !math.IsInf(c, 0) && !math.IsNaN(c) {
			valid = append(valid, c)
		}
	}
	if len(valid) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(valid)-1)
	for i := 1; i < len(valid); i++ {
		r := math.Log(valid[i] / valid[i-1])
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		returns = append(returns, r)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss/float64(len(returns)-1)) * AnnualizationFactor
}
