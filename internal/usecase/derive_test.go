package usecase

import (
	"math"
	"reflect"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
)

func snapAt(price, chg24 float64) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:    "BTC",
		Price:     price,
		Change24h: chg24,
		Timestamp: time.Now(),
		Source:    models.SourceUpstream,
	}
}

func indSet(rsi, hist, bbPos, atr float64) models.IndicatorSet {
	return models.IndicatorSet{
		RSI:        rsi,
		MACD:       models.MACDValue{MACDLine: hist, SignalLine: 0, Histogram: hist},
		Bollinger:  models.BollingerBands{Upper: 110, Middle: 100, Lower: 90},
		ATR:        atr,
		BBPosition: bbPos,
	}
}

func TestDeriveLongOnFullBullishConfluence(t *testing.T) {
	d := NewDeriver(DefaultConfidenceBand())
	// Oversold, momentum turning up, pinned to the lower band.
	ind := indSet(25, 0.5, 10, 2)

	sig, err := d.Derive(snapAt(100, 2), ind, drepo.TF30m, time.Now())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if sig.Direction != models.DirectionLong {
		t.Fatalf("expected LONG, got %s", sig.Direction)
	}
	// diff=3, chg24=2: 65 + 5*3 + 2*2 = 84; 30m multiplier is 1.0.
	if sig.Confidence != 84 {
		t.Fatalf("expected confidence 84, got %v", sig.Confidence)
	}
	// ATR 2 x 30m multiplier 1.8.
	if math.Abs(sig.StopLoss-96.4) > 1e-9 || math.Abs(sig.TakeProfit-103.6) > 1e-9 {
		t.Fatalf("unexpected risk levels: stop=%v target=%v", sig.StopLoss, sig.TakeProfit)
	}
	if !sig.RiskLevelsValid() {
		t.Fatalf("risk ordering violated: %+v", sig)
	}
	if sig.Strength != 100 {
		t.Fatalf("expected strength 100 at full confluence, got %v", sig.Strength)
	}
}

func TestDeriveShortOnFullBearishConfluence(t *testing.T) {
	d := NewDeriver(DefaultConfidenceBand())
	ind := indSet(80, -1, 90, 2)

	sig, err := d.Derive(snapAt(100, -3), ind, drepo.TF30m, time.Now())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if sig.Direction != models.DirectionShort {
		t.Fatalf("expected SHORT, got %s", sig.Direction)
	}
	if !(sig.TakeProfit < sig.EntryPrice && sig.EntryPrice < sig.StopLoss) {
		t.Fatalf("short risk ordering violated: %+v", sig)
	}
}

func TestDeriveNeutralOnMixedVotes(t *testing.T) {
	d := NewDeriver(DefaultConfidenceBand())
	// Only MACD votes: diff=1 is below the confluence bar.
	ind := indSet(50, 1, 50, 2)

	sig, err := d.Derive(snapAt(100, 0), ind, drepo.TF30m, time.Now())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if sig.Direction != models.DirectionNeutral {
		t.Fatalf("expected NEUTRAL, got %s", sig.Direction)
	}
	// Neutral halves the risk distance: ATR 2 x 1.8 / 2 = 1.8.
	if math.Abs((sig.EntryPrice-sig.StopLoss)-1.8) > 1e-9 {
		t.Fatalf("neutral risk distance wrong: %v", sig.EntryPrice-sig.StopLoss)
	}
	if !sig.RiskLevelsValid() {
		t.Fatalf("neutral risk ordering violated: %+v", sig)
	}
}

func TestDeriveConfidenceClampedToBand(t *testing.T) {
	// Huge 24h move pushes the raw score far past the canonical cap.
	ind := indSet(25, 0.5, 10, 2)

	d := NewDeriver(DefaultConfidenceBand())
	sig, err := d.Derive(snapAt(100, 50), ind, drepo.TF30m, time.Now())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if sig.Confidence != 95 {
		t.Fatalf("expected canonical cap 95, got %v", sig.Confidence)
	}

	// A conservative deployment caps lower; the long-horizon multiplier must
	// not punch through it.
	d = NewDeriver(ConfidenceBand{Floor: 30, Ceiling: 70})
	sig, err = d.Derive(snapAt(100, 50), ind, drepo.TF1M, time.Now())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if sig.Confidence != 70 {
		t.Fatalf("expected configured cap 70, got %v", sig.Confidence)
	}
}

func TestDeriveShortHorizonDiscount(t *testing.T) {
	d := NewDeriver(DefaultConfidenceBand())
	ind := indSet(50, 0, 50, 1)

	sig, err := d.Derive(snapAt(100, 0), ind, drepo.TF1m, time.Now())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	// Base 65, 1m multiplier 0.85.
	if math.Abs(sig.Confidence-55.25) > 1e-9 {
		t.Fatalf("expected 55.25, got %v", sig.Confidence)
	}
}

func TestDeriveRejectsNonFiniteIndicators(t *testing.T) {
	d := NewDeriver(DefaultConfidenceBand())
	ind := indSet(math.NaN(), 0, 50, 1)
	if _, err := d.Derive(snapAt(100, 0), ind, drepo.TF1h, time.Now()); err == nil {
		t.Fatalf("expected error for NaN indicator")
	}
}

func TestDeriveRejectsNonPositivePrice(t *testing.T) {
	d := NewDeriver(DefaultConfidenceBand())
	if _, err := d.Derive(snapAt(0, 0), indSet(50, 0, 50, 1), drepo.TF1h, time.Now()); err == nil {
		t.Fatalf("expected error for zero price")
	}
	if _, err := d.Derive(nil, indSet(50, 0, 50, 1), drepo.TF1h, time.Now()); err == nil {
		t.Fatalf("expected error for nil snapshot")
	}
}

func TestDeriveZeroATRKeepsStrictOrdering(t *testing.T) {
	d := NewDeriver(DefaultConfidenceBand())
	sig, err := d.Derive(snapAt(100, 0), indSet(50, 0, 50, 0), drepo.TF1h, time.Now())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !(sig.StopLoss < sig.EntryPrice && sig.EntryPrice < sig.TakeProfit) {
		t.Fatalf("zero ATR collapsed risk levels: %+v", sig)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	d := NewDeriver(DefaultConfidenceBand())
	snap := snapAt(42_000, 1.5)
	ind := indSet(25, 0.3, 15, 120)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	a, err := d.Derive(snap, ind, drepo.TF4h, at)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := d.Derive(snap, ind, drepo.TF4h, at)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same inputs produced different signals:\n%+v\n%+v", a, b)
	}
}

func TestSyntheticSeriesShape(t *testing.T) {
	s := SyntheticSeries(snapAt(100, 10))
	if len(s) != syntheticPoints {
		t.Fatalf("expected %d points, got %d", syntheticPoints, len(s))
	}
	if s[len(s)-1] != 100 {
		t.Fatalf("series must end at the current price, got %v", s[len(s)-1])
	}
	// Implied price 24h ago for +10% is ~90.9.
	if s[0] < 85 || s[0] > 95 {
		t.Fatalf("unexpected ramp start %v", s[0])
	}

	ind := ComputeIndicators(s)
	if !ind.Finite() {
		t.Fatalf("synthetic series produced non-finite indicators: %+v", ind)
	}
	if ind.RSI < 0 || ind.RSI > 100 {
		t.Fatalf("RSI out of bounds: %v", ind.RSI)
	}
}

func TestComputeIndicatorsRisingSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	ind := ComputeIndicators(closes)
	if !ind.Finite() {
		t.Fatalf("non-finite indicators on clean series: %+v", ind)
	}
	if ind.MACD.Histogram <= 0 {
		t.Fatalf("expected positive MACD histogram on steady uptrend, got %v", ind.MACD.Histogram)
	}
	if ind.ATR <= 0 {
		t.Fatalf("expected positive ATR, got %v", ind.ATR)
	}
}
