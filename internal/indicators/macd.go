package indicators

import "CoinPulse/internal/domain/models"

// MACD computes the fast/slow EMA difference with an EMA-smoothed signal
// line over the MACD series itself; histogram = macd - signal. With fewer
// than slow points the zero value is returned.
func MACD(closes []float64, fast, slow, signalPeriod int) models.MACDValue {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 || len(closes) < slow {
		return models.MACDValue{}
	}

	fastEMAs := emaSeries(closes, fast)
	slowEMAs := emaSeries(closes, slow)

	// Align the two EMA series on their tails and build the MACD series.
	n := len(slowEMAs)
	macdSeries := make([]float64, n)
	offset := len(fastEMAs) - n
	for i := 0; i < n; i++ {
		macdSeries[i] = fastEMAs[offset+i] - slowEMAs[i]
	}

	macdLine := macdSeries[n-1]
	signalLine := macdLine
	if n >= signalPeriod {
		signalLine = EMA(macdSeries, signalPeriod)
	}

	return models.MACDValue{
		MACDLine:   macdLine,
		SignalLine: signalLine,
		Histogram:  macdLine - signalLine,
	}
}
