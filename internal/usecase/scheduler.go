package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/service/quotecache"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/pkg/logger"
)

// Config tunes the scheduler. Zero values fall back to defaults.
type Config struct {
	Workers int // concurrent symbol tasks per cycle
	// Cadence overrides the per-timeframe refresh interval when non-nil.
	// Production leaves it nil; tests shrink it.
	Cadence func(tf drepo.Timeframe) time.Duration
	Band    ConfidenceBand
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Cadence == nil {
		c.Cadence = func(tf drepo.Timeframe) time.Duration { return tf.RefreshInterval() }
	}
}

// Scheduler runs one independent refresh loop per timeframe. Each cycle
// resolves a snapshot per symbol (cache, then limiter-gated upstream, then
// history fallback), recomputes indicators, derives a signal and publishes it
// under the cycle's sequence number. A symbol failure never aborts the cycle.
type Scheduler struct {
	cfg      Config
	symbols  []models.SymbolMapping
	quotes   drepo.QuoteProvider
	cache    *quotecache.Cache
	limiter  *ratelimit.Limiter
	history  drepo.HistoryStore
	store    drepo.SignalStore
	sink     drepo.SignalSink
	archiver drepo.SnapshotArchiver
	metrics  drepo.Metrics
	deriver  *Deriver
	log      *logger.Logger

	mu      sync.Mutex
	running map[drepo.Timeframe]bool
	seqs    map[drepo.Timeframe]uint64

	wg sync.WaitGroup
}

// NewScheduler wires the scheduler. sink and archiver may be nil.
func NewScheduler(
	cfg Config,
	symbols []models.SymbolMapping,
	quotes drepo.QuoteProvider,
	cache *quotecache.Cache,
	limiter *ratelimit.Limiter,
	history drepo.HistoryStore,
	store drepo.SignalStore,
	sink drepo.SignalSink,
	archiver drepo.SnapshotArchiver,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:      cfg,
		symbols:  symbols,
		quotes:   quotes,
		cache:    cache,
		limiter:  limiter,
		history:  history,
		store:    store,
		sink:     sink,
		archiver: archiver,
		metrics:  metrics,
		deriver:  NewDeriver(cfg.Band),
		log:      log,
		running:  make(map[drepo.Timeframe]bool),
		seqs:     make(map[drepo.Timeframe]uint64),
	}
}

// Start launches one loop per timeframe and returns immediately. Loops stop
// when ctx is cancelled; Stop waits for them to drain.
func (s *Scheduler) Start(ctx context.Context) {
	for _, tf := range drepo.AllTimeframes() {
		tf := tf
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLoop(ctx, tf)
		}()
	}
	s.log.Info("scheduler started",
		logger.Int("timeframes", len(drepo.AllTimeframes())),
		logger.Int("symbols", len(s.symbols)),
		logger.Int("workers", s.cfg.Workers))
}

// Stop blocks until every loop has observed cancellation and returned.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, tf drepo.Timeframe) {
	// Immediate first cycle so signals exist before the first tick.
	s.fire(ctx, tf)

	ticker := time.NewTicker(s.cfg.Cadence(tf))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, tf)
		}
	}
}

// fire runs one cycle unless the previous cycle for this timeframe is still
// in flight, in which case the tick is skipped rather than queued.
func (s *Scheduler) fire(ctx context.Context, tf drepo.Timeframe) {
	s.mu.Lock()
	if s.running[tf] {
		s.mu.Unlock()
		s.log.Warn("cycle overlap, skipping tick", logger.String("timeframe", string(tf)))
		s.metrics.RecordError("cycle_overlap")
		return
	}
	s.running[tf] = true
	s.seqs[tf]++
	seq := s.seqs[tf]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[tf] = false
		s.mu.Unlock()
	}()

	s.RunCycle(ctx, tf, seq)
}

// RunCycle processes every symbol for one (timeframe, sequence) cycle using a
// bounded worker pool. Exported for tests and manual triggering.
func (s *Scheduler) RunCycle(ctx context.Context, tf drepo.Timeframe, seq uint64) {
	start := time.Now()

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	for _, sym := range s.symbols {
		if ctx.Err() != nil {
			break
		}
		sym := sym
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			err := s.processSymbol(ctx, sym.Symbol, tf, seq)
			switch {
			case err == nil:
			case errors.Is(err, errNoData):
				// A recoverable gap, not a processing failure. The previous
				// signal stays served until data returns.
				s.metrics.RecordError("no_data")
				s.log.Debug("no data this cycle",
					logger.String("symbol", sym.Symbol),
					logger.String("timeframe", string(tf)),
					logger.Error(err))
			default:
				s.metrics.RecordError("symbol_cycle")
				s.log.Warn("symbol cycle failed",
					logger.String("symbol", sym.Symbol),
					logger.String("timeframe", string(tf)),
					logger.Error(err))
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	s.metrics.RecordCycleDuration(string(tf), elapsed.Seconds())

	snap := s.limiter.Snapshot()
	s.metrics.SetLimiterUtilization(snap.Utilization)
	s.metrics.SetBreakerOpen(snap.Breaker == models.BreakerOpen)

	s.log.Debug("cycle complete",
		logger.String("timeframe", string(tf)),
		logger.Uint64("seq", seq),
		logger.Duration("elapsed", elapsed))
}

// processSymbol resolves a snapshot, computes indicators, derives a signal
// and publishes it. On any failure the previous signal for the key is left
// untouched.
func (s *Scheduler) processSymbol(ctx context.Context, symbol string, tf drepo.Timeframe, seq uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in symbol task: %v", r)
		}
	}()

	snap, err := s.resolveSnapshot(ctx, symbol)
	if err != nil {
		return err
	}

	closes, tier, err := s.closeSeries(ctx, symbol, snap)
	if err != nil {
		return err
	}

	ind := ComputeIndicators(closes)
	sig, err := s.deriver.Derive(snap, ind, tf, time.Now())
	if err != nil {
		return err
	}

	if err := s.store.Put(ctx, sig, seq); err != nil {
		return fmt.Errorf("store signal: %w", err)
	}
	s.metrics.RecordSignal(string(tf), string(sig.Direction))
	s.metrics.RecordLastPrice(symbol, snap.Price)

	if s.sink != nil {
		if err := s.sink.Publish(ctx, sig); err != nil {
			// Sink failures are telemetry losses, not signal failures.
			s.metrics.RecordError("sink_publish")
			s.log.Warn("sink publish failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	s.log.Debug("signal published",
		logger.String("symbol", symbol),
		logger.String("timeframe", string(tf)),
		logger.String("direction", string(sig.Direction)),
		logger.String("tier", string(tier)))
	return nil
}

// resolveSnapshot prefers the shared quote cache, then a limiter-gated
// upstream call, then the newest history entry. Only a fresh upstream
// snapshot is appended to history and archived; cache and fallback reads are
// never re-ingested.
func (s *Scheduler) resolveSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	if cached, ok := s.cache.Get(symbol); ok {
		s.metrics.RecordCacheLookup(true)
		return &cached, nil
	}
	s.metrics.RecordCacheLookup(false)

	adm := s.limiter.TryAcquire()
	if !adm.Admitted {
		s.metrics.RecordUpstreamCall("rejected_" + string(adm.Reason))
		s.log.Debug("upstream call rejected",
			logger.String("symbol", symbol),
			logger.String("reason", string(adm.Reason)))
		return s.historyFallback(ctx, symbol, adm.Reason)
	}
	if adm.Reason == ratelimit.ReasonThrottled {
		s.log.Warn("upstream budget near ceiling", logger.String("symbol", symbol))
	}

	res := s.quotes.Latest(ctx, symbol)
	switch res.Kind {
	case drepo.QuoteOK:
		s.limiter.RecordSuccess()
		s.metrics.RecordUpstreamCall("ok")
		snap := *res.Snapshot
		s.cache.Put(symbol, snap)
		if err := s.history.Append(ctx, symbol, snap); err != nil {
			s.log.Warn("history append failed", logger.String("symbol", symbol), logger.Error(err))
		}
		if s.archiver != nil {
			if err := s.archiver.Archive(ctx, &snap); err != nil {
				s.metrics.RecordError("archive")
				s.log.Warn("snapshot archive failed", logger.String("symbol", symbol), logger.Error(err))
			}
		}
		return &snap, nil
	case drepo.QuoteAbsent:
		// The call itself succeeded; the vendor just has no such symbol.
		s.limiter.RecordSuccess()
		s.metrics.RecordUpstreamCall("absent")
		return nil, fmt.Errorf("symbol %s not listed upstream", symbol)
	default:
		s.limiter.RecordFailure()
		s.metrics.RecordUpstreamCall("error")
		return s.historyFallback(ctx, symbol, ratelimit.Reason("upstream_error"))
	}
}

// errNoData marks a cycle where no snapshot could be resolved from any
// source. The symbol is skipped for the cycle rather than failed.
var errNoData = errors.New("no market data available")

// historyFallback serves the newest stored snapshot when upstream is
// unreachable or the limiter rejected the call. Signals keep flowing on
// slightly stale data rather than stopping.
func (s *Scheduler) historyFallback(ctx context.Context, symbol string, why ratelimit.Reason) (*models.MarketSnapshot, error) {
	window, _, err := s.history.Read(ctx, symbol)
	if err != nil || len(window) == 0 {
		return nil, fmt.Errorf("%w for %s (upstream unavailable: %s)", errNoData, symbol, why)
	}
	last := window[len(window)-1]
	last.Source = models.SourceCache
	return &last, nil
}

// closeSeries prepares the close series for indicator computation. With fewer
// than 20 stored points the accumulator cannot support real indicators yet,
// so a deterministic synthetic series derived from the snapshot's 24h change
// stands in.
func (s *Scheduler) closeSeries(ctx context.Context, symbol string, snap *models.MarketSnapshot) ([]float64, models.QualityTier, error) {
	window, tier, err := s.history.Read(ctx, symbol)
	if err != nil {
		return nil, tier, fmt.Errorf("read history: %w", err)
	}
	if tier == models.TierInsufficient {
		return SyntheticSeries(snap), tier, nil
	}
	closes := make([]float64, len(window))
	for i, w := range window {
		closes[i] = w.Price
	}
	return closes, tier, nil
}
