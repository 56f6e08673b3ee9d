package indicators

import (
	"math"
	"testing"
)

func risingSeries(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSIShortInputDefault(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Fatalf("expected neutral 50 on short input, got %v", got)
	}
	if got := RSI(nil, 14); got != 50 {
		t.Fatalf("expected neutral 50 on empty input, got %v", got)
	}
}

func TestRSIAllRising(t *testing.T) {
	// No losses at all: average loss is zero, RSI pegs at 100.
	got := RSI(risingSeries(30, 100, 1), 14)
	if got != 100 {
		t.Fatalf("expected 100 for monotonically rising series, got %v", got)
	}
}

func TestRSIIdenticalPrices(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 42
	}
	got := RSI(flat, 14)
	if got != 100 {
		t.Fatalf("expected 100 (zero average loss rule) for flat series, got %v", got)
	}
}

func TestRSIBounds(t *testing.T) {
	series := []float64{10, 12, 9, 14, 8, 15, 7, 16, 6, 17, 5, 18, 4, 19, 3, 20, 2, 21}
	got := RSI(series, 14)
	if got < 0 || got > 100 {
		t.Fatalf("RSI out of [0,100]: %v", got)
	}
	if math.IsNaN(got) {
		t.Fatalf("RSI is NaN")
	}
}

func TestEMAConvergesToConstant(t *testing.T) {
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 7.5
	}
	if got := EMA(flat, 12); math.Abs(got-7.5) > 1e-9 {
		t.Fatalf("EMA of constant series should equal the constant, got %v", got)
	}
}

func TestEMAShortInput(t *testing.T) {
	if got := EMA([]float64{1, 2}, 12); got != 0 {
		t.Fatalf("expected 0 on short input, got %v", got)
	}
}

func TestSMA(t *testing.T) {
	if got := SMA([]float64{1, 2, 3, 4, 5}, 5); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	// Only the trailing window counts.
	if got := SMA([]float64{100, 1, 2, 3}, 3); got != 2 {
		t.Fatalf("expected trailing mean 2, got %v", got)
	}
}

func TestMACDShortInputZero(t *testing.T) {
	got := MACD(risingSeries(10, 1, 1), 12, 26, 9)
	if got.MACDLine != 0 || got.SignalLine != 0 || got.Histogram != 0 {
		t.Fatalf("expected zero value on short input, got %+v", got)
	}
}

func TestMACDRisingSeriesPositive(t *testing.T) {
	got := MACD(risingSeries(60, 100, 1), 12, 26, 9)
	if got.MACDLine <= 0 {
		t.Fatalf("expected positive MACD line in an uptrend, got %v", got.MACDLine)
	}
	if got.Histogram != got.MACDLine-got.SignalLine {
		t.Fatalf("histogram must equal macd-signal: %+v", got)
	}
	for _, v := range []float64{got.MACDLine, got.SignalLine, got.Histogram} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite MACD output: %+v", got)
		}
	}
}

func TestBollingerSyntheticBandOnShortInput(t *testing.T) {
	bb := BollingerBands([]float64{50, 51, 52}, 20, 2)
	if bb.Middle != 52 {
		t.Fatalf("expected middle at last price, got %v", bb.Middle)
	}
	if math.Abs(bb.Upper-52*1.02) > 1e-9 || math.Abs(bb.Lower-52*0.98) > 1e-9 {
		t.Fatalf("expected synthetic ±2%% band, got %+v", bb)
	}
}

func TestBollingerOrdering(t *testing.T) {
	series := []float64{10, 11, 9, 12, 10, 13, 9, 12, 11, 10, 12, 9, 11, 13, 10, 12, 11, 9, 10, 12}
	bb := BollingerBands(series, 20, 2)
	if !(bb.Lower < bb.Middle && bb.Middle < bb.Upper) {
		t.Fatalf("band ordering violated: %+v", bb)
	}
}

func TestBBPosition(t *testing.T) {
	bb := BollingerBands([]float64{10, 11, 9, 12, 10, 13, 9, 12, 11, 10, 12, 9, 11, 13, 10, 12, 11, 9, 10, 12}, 20, 2)
	if got := BBPosition(bb.Lower, bb); got != 0 {
		t.Fatalf("price at lower band should be 0, got %v", got)
	}
	if got := BBPosition(bb.Upper, bb); got != 100 {
		t.Fatalf("price at upper band should be 100, got %v", got)
	}
	mid := BBPosition(bb.Middle, bb)
	if mid < 49 || mid > 51 {
		t.Fatalf("price at middle should be ~50, got %v", mid)
	}
	// Degenerate band.
	if got := BBPosition(5, BollingerBands([]float64{}, 20, 2)); got != 50 {
		t.Fatalf("degenerate band should yield 50, got %v", got)
	}
}

func TestATRShortInputZero(t *testing.T) {
	c := risingSeries(10, 100, 1)
	if got := ATR(c, c, c, 14); got != 0 {
		t.Fatalf("expected 0 on short input, got %v", got)
	}
}

func TestATRCloseOnlySeries(t *testing.T) {
	// Snapshot series pass closes for highs/lows: true range becomes the
	// absolute close move, here a constant 1.0.
	c := risingSeries(20, 100, 1)
	got := ATR(c, c, c, 14)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected ATR 1.0 for unit steps, got %v", got)
	}
}

func TestATRWithRanges(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10, 10, 10}
	highs := []float64{11, 11, 11, 11, 11, 11, 11, 11}
	lows := []float64{9, 9, 9, 9, 9, 9, 9, 9}
	got := ATR(highs, lows, closes, 5)
	if math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("expected ATR 2.0 (high-low range), got %v", got)
	}
}
