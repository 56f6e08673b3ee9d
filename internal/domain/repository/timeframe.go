package repository

import "time"

// Timeframe is a named aggregation horizon for which an independent signal
// is computed.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF3d  Timeframe = "3d"
	TF1w  Timeframe = "1w"
	TF1M  Timeframe = "1M"
)

// AllTimeframes lists supported timeframes from shortest to longest.
func AllTimeframes() []Timeframe {
	return []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d, TF3d, TF1w, TF1M}
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d, TF3d, TF1w, TF1M:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// RefreshInterval is the recomputation cadence for tf. Higher timeframes run
// less frequently to bound total upstream pressure per unit time: a 1-month
// indicator recomputed every few seconds carries no new information.
func (tf Timeframe) RefreshInterval() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 2 * time.Minute
	case TF15m:
		return 5 * time.Minute
	case TF30m:
		return 10 * time.Minute
	case TF1h:
		return 15 * time.Minute
	case TF4h:
		return 30 * time.Minute
	case TF1d:
		return time.Hour
	case TF3d:
		return 2 * time.Hour
	case TF1w:
		return 4 * time.Hour
	case TF1M:
		return 8 * time.Hour
	default:
		return 15 * time.Minute
	}
}

// ConfidenceMultiplier discounts noisy short horizons and boosts long ones.
func (tf Timeframe) ConfidenceMultiplier() float64 {
	switch tf {
	case TF1m:
		return 0.85
	case TF5m:
		return 0.90
	case TF15m:
		return 0.95
	case TF30m:
		return 1.0
	case TF1h:
		return 1.05
	case TF4h:
		return 1.10
	case TF1d:
		return 1.15
	case TF3d:
		return 1.18
	case TF1w:
		return 1.20
	case TF1M:
		return 1.25
	default:
		return 1.0
	}
}

// ATRMultiplier sizes stop/target distance from entry for tf.
func (tf Timeframe) ATRMultiplier() float64 {
	switch tf {
	case TF1m:
		return 1.0
	case TF5m:
		return 1.2
	case TF15m:
		return 1.5
	case TF30m:
		return 1.8
	case TF1h:
		return 2.0
	case TF4h:
		return 2.5
	case TF1d:
		return 3.0
	case TF3d:
		return 3.5
	case TF1w:
		return 4.0
	case TF1M:
		return 5.0
	default:
		return 2.0
	}
}
