package indicators

import "math"

// ATR is the average true range over the trailing period. All three series
// must have equal length; with fewer than period+1 points it returns 0.
// Snapshot-based series may pass closes for highs and lows, in which case the
// true range degrades to the absolute close-to-close move.
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0
	}

	sum := 0.0
	for i := n - period; i < n; i++ {
		prevClose := closes[i-1]
		tr := math.Max(
			highs[i]-lows[i],
			math.Max(
				math.Abs(highs[i]-prevClose),
				math.Abs(lows[i]-prevClose),
			),
		)
		sum += tr
	}
	return sum / float64(period)
}
