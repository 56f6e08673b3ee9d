package indicators

import (
	"math"

	"CoinPulse/internal/domain/models"
)

// BollingerBands computes SMA ± stdDev*multiplier over the trailing period.
// When the series is shorter than period, a synthetic ±2% band around the
// last price is returned so callers always get a usable band.
func BollingerBands(closes []float64, period int, stdDevMultiplier float64) models.BollingerBands {
	if len(closes) == 0 {
		return models.BollingerBands{}
	}
	if period <= 0 || len(closes) < period {
		last := closes[len(closes)-1]
		return models.BollingerBands{
			Upper:  last * 1.02,
			Middle: last,
			Lower:  last * 0.98,
		}
	}

	middle := SMA(closes, period)
	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - middle
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(period))

	return models.BollingerBands{
		Upper:  middle + stdDev*stdDevMultiplier,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMultiplier,
	}
}

// BBPosition is the percent position of price within the band: 0 at the
// lower band, 100 at the upper. A degenerate (zero-width) band yields 50.
func BBPosition(price float64, bb models.BollingerBands) float64 {
	width := bb.Upper - bb.Lower
	if width <= 0 {
		return 50
	}
	pos := (price - bb.Lower) / width * 100
	if pos < 0 {
		return 0
	}
	if pos > 100 {
		return 100
	}
	return pos
}
