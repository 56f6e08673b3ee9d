package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	repo "CoinPulse/internal/repository"
	"CoinPulse/internal/service/quotecache"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/pkg/logger"
)

type fakeQuotes struct {
	mu      sync.Mutex
	results map[string]drepo.QuoteResult
	calls   int
	gate    chan struct{} // when non-nil, Latest blocks until closed
}

func (f *fakeQuotes) Latest(ctx context.Context, symbol string) drepo.QuoteResult {
	f.mu.Lock()
	f.calls++
	res, ok := f.results[symbol]
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if !ok {
		return drepo.QuoteResult{Kind: drepo.QuoteAbsent}
	}
	return res
}

func (f *fakeQuotes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: make(map[string]int)} }

func (m *fakeMetrics) RecordUpstreamCall(string)           {}
func (m *fakeMetrics) RecordSignal(string, string)         {}
func (m *fakeMetrics) RecordLastPrice(string, float64)     {}
func (m *fakeMetrics) RecordCycleDuration(string, float64) {}
func (m *fakeMetrics) RecordCacheLookup(bool)              {}
func (m *fakeMetrics) SetLimiterUtilization(float64)       {}
func (m *fakeMetrics) SetBreakerOpen(bool)                 {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakeSink struct {
	mu   sync.Mutex
	got  []*models.CalculatedSignal
	fail bool
}

func (s *fakeSink) Publish(ctx context.Context, sig *models.CalculatedSignal) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.mu.Lock()
	s.got = append(s.got, sig)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) Close() error { return nil }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func okQuote(symbol string, price float64) drepo.QuoteResult {
	return drepo.QuoteResult{
		Kind: drepo.QuoteOK,
		Snapshot: &models.MarketSnapshot{
			Symbol:    symbol,
			Price:     price,
			Change24h: 1.5,
			Timestamp: time.Now(),
			Source:    models.SourceUpstream,
		},
	}
}

type schedFixture struct {
	sched   *Scheduler
	quotes  *fakeQuotes
	cache   *quotecache.Cache
	limiter *ratelimit.Limiter
	history drepo.HistoryStore
	store   drepo.SignalStore
	sink    *fakeSink
	metrics *fakeMetrics
}

func newFixture(t *testing.T, symbols []string, quotes *fakeQuotes, cacheTTL time.Duration, limCfg ratelimit.Config) *schedFixture {
	t.Helper()
	maps := make([]models.SymbolMapping, len(symbols))
	for i, s := range symbols {
		maps[i] = models.SymbolMapping{Symbol: s, DisplayName: s}
	}
	f := &schedFixture{
		quotes:  quotes,
		cache:   quotecache.New(cacheTTL),
		limiter: ratelimit.New(limCfg),
		history: repo.NewMemoryHistory(200),
		store:   repo.NewSignalStore(nil, 0),
		sink:    &fakeSink{},
		metrics: newFakeMetrics(),
	}
	f.sched = NewScheduler(
		Config{Workers: 4},
		maps, quotes, f.cache, f.limiter, f.history, f.store,
		f.sink, nil, f.metrics, testLogger(t),
	)
	return f
}

func TestRunCyclePublishesSignalPerSymbol(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{
		"BTC": okQuote("BTC", 50_000),
		"ETH": okQuote("ETH", 3_000),
	}}
	f := newFixture(t, []string{"BTC", "ETH"}, quotes, time.Minute, ratelimit.Config{})
	ctx := context.Background()

	f.sched.RunCycle(ctx, drepo.TF1h, 1)

	for _, sym := range []string{"BTC", "ETH"} {
		sig, ok, err := f.store.Get(ctx, sym, drepo.TF1h)
		if err != nil || !ok {
			t.Fatalf("missing signal for %s: ok=%v err=%v", sym, ok, err)
		}
		if sig.Timeframe != "1h" {
			t.Fatalf("wrong timeframe: %s", sig.Timeframe)
		}
		if !sig.RiskLevelsValid() {
			t.Fatalf("invalid risk levels for %s: %+v", sym, sig)
		}
		if !sig.Indicators.Finite() {
			t.Fatalf("non-finite indicators published for %s", sym)
		}
	}

	// Accepted upstream snapshots land in history.
	w, _, _ := f.history.Read(ctx, "BTC")
	if len(w) != 1 {
		t.Fatalf("expected 1 history point, got %d", len(w))
	}

	f.sink.mu.Lock()
	published := len(f.sink.got)
	f.sink.mu.Unlock()
	if published != 2 {
		t.Fatalf("expected 2 sink publishes, got %d", published)
	}
}

func TestRunCycleReusesCachedQuoteAcrossTimeframes(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{"BTC": okQuote("BTC", 50_000)}}
	f := newFixture(t, []string{"BTC"}, quotes, time.Minute, ratelimit.Config{})
	ctx := context.Background()

	f.sched.RunCycle(ctx, drepo.TF1h, 1)
	f.sched.RunCycle(ctx, drepo.TF4h, 1)

	if n := quotes.callCount(); n != 1 {
		t.Fatalf("expected a single upstream call across timeframes, got %d", n)
	}
	if _, ok, _ := f.store.Get(ctx, "BTC", drepo.TF4h); !ok {
		t.Fatalf("cached snapshot did not yield a 4h signal")
	}
}

func TestRunCycleSymbolFailureIsIsolated(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{
		"BTC": okQuote("BTC", 50_000),
		"BAD": {Kind: drepo.QuoteError, Err: errors.New("upstream 500")},
	}}
	f := newFixture(t, []string{"BTC", "BAD"}, quotes, time.Minute, ratelimit.Config{})
	ctx := context.Background()

	f.sched.RunCycle(ctx, drepo.TF1h, 1)

	if _, ok, _ := f.store.Get(ctx, "BTC", drepo.TF1h); !ok {
		t.Fatalf("healthy symbol must not be affected by a failing one")
	}
	if _, ok, _ := f.store.Get(ctx, "BAD", drepo.TF1h); ok {
		t.Fatalf("failing symbol with no history must not publish a signal")
	}
	// No snapshot from any source is a gap, not a processing failure.
	if f.metrics.errorCount("no_data") == 0 {
		t.Fatalf("expected the data gap to be recorded")
	}
	if f.metrics.errorCount("symbol_cycle") != 0 {
		t.Fatalf("a data gap must not count as a processing failure")
	}
}

func TestRunCycleAbsentSymbolIsAFailure(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{}}
	f := newFixture(t, []string{"NOPE"}, quotes, time.Minute, ratelimit.Config{})
	ctx := context.Background()

	f.sched.RunCycle(ctx, drepo.TF1h, 1)

	// A vendor that does not list the symbol points at misconfiguration,
	// which must surface as a failure rather than a quiet gap.
	if f.metrics.errorCount("symbol_cycle") == 0 {
		t.Fatalf("expected an unlisted symbol to be recorded as a failure")
	}
	if f.metrics.errorCount("no_data") != 0 {
		t.Fatalf("unlisted symbol misclassified as a data gap")
	}
}

func TestRunCycleFallsBackToHistoryOnUpstreamError(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{
		"BTC": {Kind: drepo.QuoteError, Err: errors.New("timeout")},
	}}
	f := newFixture(t, []string{"BTC"}, quotes, time.Minute, ratelimit.Config{})
	ctx := context.Background()

	_ = f.history.Append(ctx, "BTC", models.MarketSnapshot{
		Symbol: "BTC", Price: 49_000, Change24h: 1, Timestamp: time.Now(), Source: models.SourceUpstream,
	})

	f.sched.RunCycle(ctx, drepo.TF1h, 1)

	sig, ok, _ := f.store.Get(ctx, "BTC", drepo.TF1h)
	if !ok {
		t.Fatalf("expected a signal from the history fallback")
	}
	if sig.Price != 49_000 {
		t.Fatalf("fallback should use the last stored price, got %v", sig.Price)
	}
}

func TestRunCycleFallsBackWhenBudgetExhausted(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{"BTC": okQuote("BTC", 50_000)}}
	// One call for the whole month; the cache expires instantly.
	f := newFixture(t, []string{"BTC"}, quotes, time.Nanosecond, ratelimit.Config{MonthlyBudget: 1})
	ctx := context.Background()

	f.sched.RunCycle(ctx, drepo.TF1h, 1)
	time.Sleep(time.Millisecond) // let the cached entry expire
	f.sched.RunCycle(ctx, drepo.TF1h, 2)

	if n := quotes.callCount(); n != 1 {
		t.Fatalf("expected exactly 1 upstream call under a budget of 1, got %d", n)
	}
	// The second cycle still publishes, served from history.
	if _, ok, _ := f.store.Get(ctx, "BTC", drepo.TF1h); !ok {
		t.Fatalf("expected a signal despite the exhausted budget")
	}
}

func TestOverlappingCycleIsSkipped(t *testing.T) {
	gate := make(chan struct{})
	quotes := &fakeQuotes{
		results: map[string]drepo.QuoteResult{"BTC": okQuote("BTC", 50_000)},
		gate:    gate,
	}
	f := newFixture(t, []string{"BTC"}, quotes, time.Minute, ratelimit.Config{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		f.sched.fire(ctx, drepo.TF1h)
		close(done)
	}()

	// Wait for the first cycle to be blocked inside the quote call.
	for i := 0; quotes.callCount() == 0 && i < 200; i++ {
		time.Sleep(time.Millisecond)
	}

	f.sched.fire(ctx, drepo.TF1h) // must return immediately
	if f.metrics.errorCount("cycle_overlap") != 1 {
		t.Fatalf("expected the overlapping tick to be skipped")
	}

	close(gate)
	<-done
}

func TestRunCycleDeterministicOverFixedHistory(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{}}
	f := newFixture(t, []string{"BTC"}, quotes, time.Hour, ratelimit.Config{})
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_ = f.history.Append(ctx, "BTC", models.MarketSnapshot{
			Symbol: "BTC", Price: 50_000 + 10*float64(i), Timestamp: time.Now(),
		})
	}
	f.cache.Put("BTC", models.MarketSnapshot{
		Symbol: "BTC", Price: 50_590, Change24h: 1.2, Timestamp: time.Now(), Source: models.SourceUpstream,
	})

	f.sched.RunCycle(ctx, drepo.TF1d, 1)
	a, ok, _ := f.store.Get(ctx, "BTC", drepo.TF1d)
	if !ok {
		t.Fatalf("no signal after first cycle")
	}

	f.sched.RunCycle(ctx, drepo.TF1d, 2)
	b, _, _ := f.store.Get(ctx, "BTC", drepo.TF1d)

	// Cache hits never touch history, so both cycles see identical input and
	// must agree on everything but the computation timestamp.
	a.Timestamp, b.Timestamp = time.Time{}, time.Time{}
	if *a != *b {
		t.Fatalf("same inputs produced different signals:\n%+v\n%+v", a, b)
	}
	if n := quotes.callCount(); n != 0 {
		t.Fatalf("expected no upstream calls with a warm cache, got %d", n)
	}
}

func TestRunCycleRisingSeriesEndToEnd(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{}}
	f := newFixture(t, []string{"BTC"}, quotes, time.Hour, ratelimit.Config{})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_ = f.history.Append(ctx, "BTC", models.MarketSnapshot{
			Symbol: "BTC", Price: 100 + float64(i), Timestamp: time.Now(),
		})
	}
	f.cache.Put("BTC", models.MarketSnapshot{
		Symbol: "BTC", Price: 119, Change24h: 19, Timestamp: time.Now(), Source: models.SourceUpstream,
	})

	f.sched.RunCycle(ctx, drepo.TF1h, 1)

	sig, ok, _ := f.store.Get(ctx, "BTC", drepo.TF1h)
	if !ok {
		t.Fatalf("expected a signal from a 20-point series")
	}
	rsi := sig.Indicators.RSI
	if rsi < 0 || rsi > 100 {
		t.Fatalf("RSI out of bounds: %v", rsi)
	}
	if !sig.Indicators.Finite() {
		t.Fatalf("non-finite indicators: %+v", sig.Indicators)
	}
	if sig.Confidence < 0 || sig.Confidence > 100 {
		t.Fatalf("confidence out of bounds: %v", sig.Confidence)
	}
	if !sig.RiskLevelsValid() {
		t.Fatalf("risk levels invalid: %+v", sig)
	}
}

func TestSinkFailureDoesNotDropSignal(t *testing.T) {
	quotes := &fakeQuotes{results: map[string]drepo.QuoteResult{"BTC": okQuote("BTC", 50_000)}}
	f := newFixture(t, []string{"BTC"}, quotes, time.Minute, ratelimit.Config{})
	f.sink.fail = true
	ctx := context.Background()

	f.sched.RunCycle(ctx, drepo.TF1h, 1)

	if _, ok, _ := f.store.Get(ctx, "BTC", drepo.TF1h); !ok {
		t.Fatalf("signal must be stored even when the sink fails")
	}
	if f.metrics.errorCount("sink_publish") == 0 {
		t.Fatalf("expected a sink_publish error to be recorded")
	}
}
