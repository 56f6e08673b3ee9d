package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
)

// stubSharedCache records Set calls. When firstGate is non-nil the first Set
// blocks until the channel is closed, which lets tests interleave a slow
// write-through with a newer one.
type stubSharedCache struct {
	mu        sync.Mutex
	firstGate chan struct{}
	entered   int
	sets      int
	last      interface{}
}

func (c *stubSharedCache) Set(_ context.Context, _ string, v interface{}, _ time.Duration) error {
	c.mu.Lock()
	n := c.entered
	c.entered++
	gate := c.firstGate
	c.mu.Unlock()

	if n == 0 && gate != nil {
		<-gate
	}

	c.mu.Lock()
	c.sets++
	c.last = v
	c.mu.Unlock()
	return nil
}

func (c *stubSharedCache) enteredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entered
}

func (c *stubSharedCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func (c *stubSharedCache) lastSignal() (*models.CalculatedSignal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.last.(*models.CalculatedSignal)
	return s, ok
}

func (c *stubSharedCache) Get(context.Context, string, interface{}) error   { return nil }
func (c *stubSharedCache) Delete(context.Context, ...string) error          { return nil }
func (c *stubSharedCache) DeleteByPattern(context.Context, string) error    { return nil }
func (c *stubSharedCache) Exists(context.Context, ...string) (bool, error)  { return false, nil }
func (c *stubSharedCache) Increment(context.Context, string) (int64, error) { return 0, nil }
func (c *stubSharedCache) MGet(context.Context, ...string) (map[string]string, error) {
	return nil, nil
}

func (c *stubSharedCache) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}

func (c *stubSharedCache) MSet(context.Context, map[string]interface{}, time.Duration) error {
	return nil
}

func (c *stubSharedCache) TryLock(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (c *stubSharedCache) Unlock(context.Context, string) error { return nil }

func sig(symbol string, tf drepo.Timeframe, price float64) *models.CalculatedSignal {
	return &models.CalculatedSignal{
		Symbol:    symbol,
		Timeframe: string(tf),
		Direction: models.DirectionNeutral,
		Price:     price,
	}
}

func TestSignalStorePutGet(t *testing.T) {
	s := NewSignalStore(nil, 0)
	ctx := context.Background()

	if err := s.Put(ctx, sig("BTC", drepo.TF1h, 100), 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, "BTC", drepo.TF1h)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.Price != 100 {
		t.Fatalf("unexpected price %v", got.Price)
	}

	// Absent keys are explicit misses, never zero values.
	if _, ok, _ := s.Get(ctx, "BTC", drepo.TF1d); ok {
		t.Fatalf("expected miss for unwritten timeframe")
	}
}

func TestSignalStoreStaleSequenceIgnored(t *testing.T) {
	s := NewSignalStore(nil, 0)
	ctx := context.Background()

	if err := s.Put(ctx, sig("BTC", drepo.TF1h, 200), 7); err != nil {
		t.Fatalf("put seq 7: %v", err)
	}
	// Late-arriving result from an older cycle.
	if err := s.Put(ctx, sig("BTC", drepo.TF1h, 150), 3); err != nil {
		t.Fatalf("put seq 3: %v", err)
	}

	got, _, _ := s.Get(ctx, "BTC", drepo.TF1h)
	if got.Price != 200 {
		t.Fatalf("stale cycle overwrote newer signal: price %v", got.Price)
	}
}

func TestSignalStoreHigherSequenceWinsRegardlessOfOrder(t *testing.T) {
	s := NewSignalStore(nil, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = s.Put(ctx, sig("ETH", drepo.TF5m, 1), 10) }()
	go func() { defer wg.Done(); _ = s.Put(ctx, sig("ETH", drepo.TF5m, 2), 11) }()
	wg.Wait()

	got, _, _ := s.Get(ctx, "ETH", drepo.TF5m)
	if got.Price != 2 {
		t.Fatalf("expected seq 11 value to win, got price %v", got.Price)
	}
}

func TestSignalStoreSharedSkipsStaleSequence(t *testing.T) {
	shared := &stubSharedCache{}
	s := NewSignalStore(shared, time.Minute)
	ctx := context.Background()

	_ = s.Put(ctx, sig("BTC", drepo.TF1h, 200), 7)
	_ = s.Put(ctx, sig("BTC", drepo.TF1h, 150), 3)

	if n := shared.setCount(); n != 1 {
		t.Fatalf("stale cycle reached the shared cache: %d sets", n)
	}
	got, ok := shared.lastSignal()
	if !ok || got.Price != 200 {
		t.Fatalf("shared cache holds wrong signal: %+v", got)
	}
}

// A write-through that stalls mid-flight must not clobber a newer one that
// completes while it waits.
func TestSignalStoreSharedKeepsNewestUnderInterleaving(t *testing.T) {
	shared := &stubSharedCache{firstGate: make(chan struct{})}
	s := NewSignalStore(shared, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = s.Put(ctx, sig("BTC", drepo.TF1h, 1), 1) }()
	for shared.enteredCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	go func() { defer wg.Done(); _ = s.Put(ctx, sig("BTC", drepo.TF1h, 2), 2) }()
	time.Sleep(50 * time.Millisecond)
	close(shared.firstGate)
	wg.Wait()

	got, ok := shared.lastSignal()
	if !ok {
		t.Fatalf("no shared write happened")
	}
	if got.Price != 2 {
		t.Fatalf("shared cache ended on the stale signal: price %v", got.Price)
	}
}

func TestSignalStoreAllFiltersByTimeframe(t *testing.T) {
	s := NewSignalStore(nil, 0)
	ctx := context.Background()

	_ = s.Put(ctx, sig("BTC", drepo.TF1h, 1), 1)
	_ = s.Put(ctx, sig("ETH", drepo.TF1h, 2), 1)
	_ = s.Put(ctx, sig("BTC", drepo.TF1d, 3), 1)

	all, err := s.All(ctx, drepo.TF1h)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 signals for 1h, got %d", len(all))
	}
	for _, g := range all {
		if g.Timeframe != "1h" {
			t.Fatalf("wrong timeframe in result: %s", g.Timeframe)
		}
	}
}
