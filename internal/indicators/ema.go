// Package indicators provides pure, stateless technical indicator functions
// over ordered price series. Short inputs degrade to documented defaults so
// callers can always proceed; nothing here panics or returns NaN.
package indicators

// SMA is the simple moving average of the trailing period of closes.
// Returns 0 when fewer than period points are available.
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period)
}

// EMA is the exponential moving average of closes, seeded with the SMA of the
// first period points. Returns 0 when fewer than period points are available.
func EMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	ema := SMA(closes[:period], period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		ema = closes[i]*k + ema*(1-k)
	}
	return ema
}

// emaSeries returns the running EMA for every index from period-1 onward.
// Used by MACD to smooth the signal line over the MACD series itself.
func emaSeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	out := make([]float64, 0, len(closes)-period+1)
	ema := SMA(closes[:period], period)
	out = append(out, ema)
	k := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		ema = closes[i]*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}
