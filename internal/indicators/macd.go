package indicators

// MACD returns the MACD line (fast EMA minus slow EMA) and its signal line.
func MACD(values []float64, fast, slow, signal int) (line, sig []float64) {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	line = make([]float64, len(values))
	for i := range values {
		line[i] = fastEMA[i] - slowEMA[i] // NaN propagates through warmup
	}
	sig = EMA(line, signal)
	return line, sig
}
