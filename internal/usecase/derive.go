package usecase

import (
	"fmt"
	"math"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/indicators"
)

// Indicator parameters and vote thresholds. Fixed: the derivation must be
// deterministic and auditable from the same indicator snapshot.
const (
	rsiPeriod        = 14
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
	bbPeriod         = 20
	bbStdDev         = 2.0
	atrPeriod        = 14
	rsiOversold      = 30.0
	rsiOverbought    = 70.0
	bbLowerThreshold = 20.0
	bbUpperThreshold = 80.0

	syntheticPoints = 30
)

// ConfidenceBand is the published confidence range. The ceiling is
// configurable: some deployments cap at 70, others at 95.
type ConfidenceBand struct {
	Floor   float64
	Ceiling float64
}

// DefaultConfidenceBand is the canonical wide band.
func DefaultConfidenceBand() ConfidenceBand {
	return ConfidenceBand{Floor: 30, Ceiling: 95}
}

// Deriver turns an indicator snapshot into a directional signal.
type Deriver struct {
	band ConfidenceBand
}

// NewDeriver creates a deriver with the given confidence band; zero values
// fall back to the default band.
func NewDeriver(band ConfidenceBand) *Deriver {
	def := DefaultConfidenceBand()
	if band.Floor <= 0 {
		band.Floor = def.Floor
	}
	if band.Ceiling <= 0 || band.Ceiling > 100 {
		band.Ceiling = def.Ceiling
	}
	return &Deriver{band: band}
}

// ComputeIndicators evaluates the full indicator set over a close series.
// Snapshot-based history has no intrabar range, so closes stand in for highs
// and lows in the ATR input.
func ComputeIndicators(closes []float64) models.IndicatorSet {
	bb := indicators.BollingerBands(closes, bbPeriod, bbStdDev)
	last := 0.0
	if len(closes) > 0 {
		last = closes[len(closes)-1]
	}
	return models.IndicatorSet{
		RSI:        indicators.RSI(closes, rsiPeriod),
		MACD:       indicators.MACD(closes, macdFast, macdSlow, macdSignal),
		Bollinger:  bb,
		ATR:        indicators.ATR(closes, closes, closes, atrPeriod),
		BBPosition: indicators.BBPosition(last, bb),
	}
}

// SyntheticSeries builds a minimal close series from a single snapshot's 24h
// change: a documented degraded mode for symbols without enough history, not
// a crash path. The ramp walks from the implied price 24h ago to the current
// price with a small alternating wiggle so band width is non-zero. Output is
// fully determined by the snapshot.
func SyntheticSeries(snap *models.MarketSnapshot) []float64 {
	start := snap.Price
	if d := 1 + snap.Change24h/100; d > 0 {
		start = snap.Price / d
	}
	out := make([]float64, syntheticPoints)
	step := (snap.Price - start) / float64(syntheticPoints-1)
	for i := range out {
		v := start + step*float64(i)
		if i%2 == 1 {
			v *= 1.0015
		} else {
			v *= 0.9985
		}
		out[i] = v
	}
	out[syntheticPoints-1] = snap.Price
	return out
}

// Derive classifies each indicator as bullish/bearish/neutral, scores
// confluence, and sizes risk levels from ATR. Returns an error only on an
// invariant violation (non-finite indicators, non-positive price); callers
// must then retain the previous signal instead of publishing.
func (d *Deriver) Derive(snap *models.MarketSnapshot, ind models.IndicatorSet, tf drepo.Timeframe, now time.Time) (*models.CalculatedSignal, error) {
	if snap == nil || snap.Price <= 0 {
		return nil, fmt.Errorf("derive %s/%s: invalid snapshot price", tfSymbol(snap), tf)
	}
	if !ind.Finite() {
		return nil, fmt.Errorf("derive %s/%s: non-finite indicator set", snap.Symbol, tf)
	}

	bullish, bearish := 0, 0

	if ind.RSI < rsiOversold {
		bullish++
	} else if ind.RSI > rsiOverbought {
		bearish++
	}
	if ind.MACD.Histogram > 0 {
		bullish++
	} else if ind.MACD.Histogram < 0 {
		bearish++
	}
	if ind.BBPosition < bbLowerThreshold {
		bullish++
	} else if ind.BBPosition > bbUpperThreshold {
		bearish++
	}

	diff := bullish - bearish
	direction := models.DirectionNeutral
	switch {
	case diff >= 2 && bullish >= 3:
		direction = models.DirectionLong
	case diff <= -2 && bearish >= 3:
		direction = models.DirectionShort
	}

	confidence := 65 + 5*math.Abs(float64(diff)) + 2*math.Abs(snap.Change24h)
	confidence = clamp(confidence, 30, 95)
	confidence = clamp(confidence*tf.ConfidenceMultiplier(), d.band.Floor, d.band.Ceiling)

	entry := snap.Price
	risk := ind.ATR * tf.ATRMultiplier()
	if risk <= 0 {
		// Flat or short history: fall back to a price fraction so the
		// stop/entry/target ordering stays strict.
		risk = entry * 0.005 * tf.ATRMultiplier()
	}
	if direction == models.DirectionNeutral {
		risk /= 2
	}

	stop, target := entry-risk, entry+risk
	if direction == models.DirectionShort {
		stop, target = entry+risk, entry-risk
	}

	return &models.CalculatedSignal{
		Symbol:     snap.Symbol,
		Timeframe:  string(tf),
		Direction:  direction,
		Confidence: confidence,
		Strength:   math.Abs(float64(diff)) / 3 * 100,
		Price:      snap.Price,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		Indicators: ind,
		Timestamp:  now,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func tfSymbol(snap *models.MarketSnapshot) string {
	if snap == nil {
		return "<nil>"
	}
	return snap.Symbol
}
