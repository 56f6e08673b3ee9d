package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	pkgcache "CoinPulse/pkg/cache"
)

type signalEntry struct {
	sig *models.CalculatedSignal
	seq uint64
}

// SignalStore holds the latest signal per (symbol, timeframe) key in memory.
// Writes are atomic upserts guarded by the cycle sequence number: a result
// from a stale cycle never overwrites a newer one, regardless of completion
// order. Optionally writes through to a shared cache so out-of-process
// consumers (dashboard, Monte Carlo) can read the latest signals.
type SignalStore struct {
	mu     sync.RWMutex
	m      map[string]signalEntry
	shared pkgcache.Service
	// sharedMu serializes write-throughs so the shared cache converges to
	// the newest sequence even when Puts interleave.
	sharedMu sync.Mutex
	ttl      time.Duration
}

// NewSignalStore creates an in-memory signal store. shared may be nil.
func NewSignalStore(shared pkgcache.Service, sharedTTL time.Duration) *SignalStore {
	if sharedTTL <= 0 {
		sharedTTL = 10 * time.Minute
	}
	return &SignalStore{m: make(map[string]signalEntry), shared: shared, ttl: sharedTTL}
}

func signalKey(symbol string, tf drepo.Timeframe) string {
	return pkgcache.GenerateKeyWithParams("signal", symbol, string(tf))
}

func (s *SignalStore) Put(ctx context.Context, sig *models.CalculatedSignal, seq uint64) error {
	if sig == nil {
		return fmt.Errorf("signal store: nil signal")
	}
	key := signalKey(sig.Symbol, drepo.Timeframe(sig.Timeframe))

	s.mu.Lock()
	if cur, ok := s.m[key]; ok && cur.seq > seq {
		s.mu.Unlock()
		return nil // stale cycle, keep the newer value
	}
	s.m[key] = signalEntry{sig: sig, seq: seq}
	s.mu.Unlock()

	if s.shared == nil {
		return nil
	}

	s.sharedMu.Lock()
	defer s.sharedMu.Unlock()

	// Re-check under the guard: a newer cycle may have landed while this
	// one waited, and then it owns the write-through.
	s.mu.RLock()
	cur := s.m[key]
	s.mu.RUnlock()
	if cur.seq != seq {
		return nil
	}
	if err := s.shared.Set(ctx, key, cur.sig, s.ttl); err != nil {
		return fmt.Errorf("signal store: shared write-through: %w", err)
	}
	return nil
}

func (s *SignalStore) Get(_ context.Context, symbol string, tf drepo.Timeframe) (*models.CalculatedSignal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.m[signalKey(symbol, tf)]
	if !ok {
		return nil, false, nil
	}
	return e.sig, true, nil
}

func (s *SignalStore) All(_ context.Context, tf drepo.Timeframe) ([]*models.CalculatedSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CalculatedSignal, 0, len(s.m))
	for _, e := range s.m {
		if drepo.Timeframe(e.sig.Timeframe) == tf {
			out = append(out, e.sig)
		}
	}
	return out, nil
}

var _ drepo.SignalStore = (*SignalStore)(nil)
