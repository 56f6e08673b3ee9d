package models

import "time"

// SnapshotSource indicates where a snapshot was resolved from.
type SnapshotSource string

const (
	SourceUpstream SnapshotSource = "upstream"
	SourceCache    SnapshotSource = "cache"
)

// SymbolMapping is the immutable symbol universe entry, defined at startup.
type SymbolMapping struct {
	Symbol      string
	DisplayName string
	Category    string
}

// MarketSnapshot is one point-in-time quote for a symbol. Immutable once created.
type MarketSnapshot struct {
	Symbol    string
	Price     float64
	Volume24h float64
	Change1h  float64
	Change24h float64
	Change7d  float64
	MarketCap float64
	Timestamp time.Time
	Source    SnapshotSource
}

// QualityTier describes how much history backs a computation.
type QualityTier string

const (
	TierInsufficient QualityTier = "insufficient"
	TierBasic        QualityTier = "basic"
	TierGood         QualityTier = "good"
	TierExcellent    QualityTier = "excellent"
)

// TierForCount maps a history length to its quality tier.
func TierForCount(n int) QualityTier {
	switch {
	case n < 20:
		return TierInsufficient
	case n < 50:
		return TierBasic
	case n < 100:
		return TierGood
	default:
		return TierExcellent
	}
}
