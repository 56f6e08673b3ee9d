package repository

import (
	"context"
	"fmt"
	"sync"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
)

// MemoryHistory is an in-memory HistoryStore: a bounded rolling window of
// snapshots per symbol, insertion order preserved. Only Append mutates the
// window; once the cap is reached the oldest entry is dropped.
type MemoryHistory struct {
	mu      sync.RWMutex
	maxSize int
	windows map[string][]models.MarketSnapshot
}

// NewMemoryHistory creates a history store bounded to maxSize per symbol.
func NewMemoryHistory(maxSize int) *MemoryHistory {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &MemoryHistory{maxSize: maxSize, windows: make(map[string][]models.MarketSnapshot)}
}

func (h *MemoryHistory) Append(_ context.Context, symbol string, snap models.MarketSnapshot) error {
	if symbol == "" {
		return fmt.Errorf("history append: symbol empty")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	w := append(h.windows[symbol], snap)
	if len(w) > h.maxSize {
		w = w[len(w)-h.maxSize:]
	}
	h.windows[symbol] = w
	return nil
}

// Read returns a copy of the window and its quality tier.
func (h *MemoryHistory) Read(_ context.Context, symbol string) ([]models.MarketSnapshot, models.QualityTier, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	w := h.windows[symbol]
	out := make([]models.MarketSnapshot, len(w))
	copy(out, w)
	return out, models.TierForCount(len(w)), nil
}

var _ drepo.HistoryStore = (*MemoryHistory)(nil)
