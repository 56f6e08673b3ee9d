package models

import (
	"math"
	"time"
)

// Direction is the derived trade direction for a (symbol, timeframe) pair.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// MACDValue holds the MACD line, its signal line and their difference.
type MACDValue struct {
	MACDLine   float64 `json:"macd_line"`
	SignalLine float64 `json:"signal_line"`
	Histogram  float64 `json:"histogram"`
}

// BollingerBands holds the SMA band around the close series.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// IndicatorSet is the per-cycle indicator snapshot for one (symbol, timeframe).
// Recomputed every cycle; persisted only as part of a CalculatedSignal.
type IndicatorSet struct {
	RSI        float64        `json:"rsi"`
	MACD       MACDValue      `json:"macd"`
	Bollinger  BollingerBands `json:"bollinger"`
	ATR        float64        `json:"atr"`
	BBPosition float64        `json:"bb_position"`
}

// Finite reports whether every indicator value is a finite number.
// A non-finite set is an invariant violation and must not be published.
func (s IndicatorSet) Finite() bool {
	for _, v := range []float64{
		s.RSI,
		s.MACD.MACDLine, s.MACD.SignalLine, s.MACD.Histogram,
		s.Bollinger.Upper, s.Bollinger.Middle, s.Bollinger.Lower,
		s.ATR, s.BBPosition,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CalculatedSignal is the published result for one (symbol, timeframe) key.
// Superseded, never merged, by the next cycle's signal for the same key.
type CalculatedSignal struct {
	Symbol     string       `json:"symbol"`
	Timeframe  string       `json:"timeframe"`
	Direction  Direction    `json:"direction"`
	Confidence float64      `json:"confidence"`
	Strength   float64      `json:"strength"`
	Price      float64      `json:"price"`
	EntryPrice float64      `json:"entry_price"`
	StopLoss   float64      `json:"stop_loss"`
	TakeProfit float64      `json:"take_profit"`
	Indicators IndicatorSet `json:"indicators"`
	Timestamp  time.Time    `json:"timestamp"`
}

// RiskLevelsValid checks the direction-dependent ordering of entry/stop/target.
func (s *CalculatedSignal) RiskLevelsValid() bool {
	switch s.Direction {
	case DirectionLong:
		return s.StopLoss < s.EntryPrice && s.EntryPrice < s.TakeProfit
	case DirectionShort:
		return s.TakeProfit < s.EntryPrice && s.EntryPrice < s.StopLoss
	default:
		return s.StopLoss < s.EntryPrice && s.EntryPrice < s.TakeProfit
	}
}
