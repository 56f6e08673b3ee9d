package repository

import (
	"context"

	"CoinPulse/internal/domain/models"
)

// QuoteKind tags the outcome of an upstream quote call. The tagged result
// forces exhaustive handling instead of ad-hoc optional-field probing.
type QuoteKind int

const (
	QuoteOK QuoteKind = iota
	QuoteAbsent
	QuoteError
)

// QuoteResult is the tagged variant returned by a QuoteProvider.
// Snapshot is non-nil iff Kind == QuoteOK; Err is non-nil iff Kind == QuoteError.
type QuoteResult struct {
	Kind     QuoteKind
	Snapshot *models.MarketSnapshot
	Err      error
}

// QuoteProvider issues read-only "latest quote" calls against the upstream
// market-data API. Callers must gate every call through the rate limiter.
type QuoteProvider interface {
	Latest(ctx context.Context, symbol string) QuoteResult
}

// HistoryStore is the price-history collaborator. The core appends accepted
// snapshots and reads the window for indicator computation; it never prunes
// or reorders the window.
type HistoryStore interface {
	Append(ctx context.Context, symbol string, snap models.MarketSnapshot) error
	Read(ctx context.Context, symbol string) ([]models.MarketSnapshot, models.QualityTier, error)
}

// SignalStore holds the latest CalculatedSignal per (symbol, timeframe) key.
// Put is an atomic upsert guarded by a monotonically increasing cycle
// sequence; a write with a stale sequence must not overwrite a newer value.
type SignalStore interface {
	Put(ctx context.Context, sig *models.CalculatedSignal, seq uint64) error
	Get(ctx context.Context, symbol string, tf Timeframe) (*models.CalculatedSignal, bool, error)
	All(ctx context.Context, tf Timeframe) ([]*models.CalculatedSignal, error)
}

// SnapshotArchiver persists accepted upstream snapshots for offline analysis.
type SnapshotArchiver interface {
	Init(ctx context.Context) error
	Archive(ctx context.Context, snap *models.MarketSnapshot) error
	ArchiveBatch(ctx context.Context, snaps []*models.MarketSnapshot) error
	Health(ctx context.Context) error
	Close() error
}

// SignalSink receives every newly published signal (message broker, websocket
// fan-out). Sinks must never block the scheduler.
type SignalSink interface {
	Publish(ctx context.Context, sig *models.CalculatedSignal) error
	Close() error
}

// Metrics records operational telemetry.
type Metrics interface {
	RecordUpstreamCall(outcome string)
	RecordSignal(timeframe, direction string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordCycleDuration(timeframe string, seconds float64)
	RecordCacheLookup(hit bool)
	SetLimiterUtilization(u float64)
	SetBreakerOpen(open bool)
}
