package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
)

// ClickHouseArchive persists accepted upstream snapshots for offline
// analysis. The core never reads the archive; it is write-only telemetry of
// what the scheduler actually ingested.
type ClickHouseArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseArchive creates a ClickHouse-backed snapshot archiver.
func NewClickHouseArchive(db *sql.DB, table string) drepo.SnapshotArchiver {
	return &ClickHouseArchive{db: db, table: table}
}

func (a *ClickHouseArchive) Init(ctx context.Context) error {
	return nil // schema init handled by pkg/clickhouse client
}

func (a *ClickHouseArchive) Archive(ctx context.Context, s *models.MarketSnapshot) error {
	if s == nil || s.Symbol == "" {
		return fmt.Errorf("archive: invalid snapshot")
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (ts, symbol, price, volume_24h, change_1h, change_24h, change_7d, market_cap, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		a.table,
	)
	_, err := a.db.ExecContext(ctx, q,
		s.Timestamp, s.Symbol, s.Price, s.Volume24h,
		s.Change1h, s.Change24h, s.Change7d, s.MarketCap, string(s.Source),
	)
	return err
}

func (a *ClickHouseArchive) ArchiveBatch(ctx context.Context, snaps []*models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips.
	const chunkSize = 1000
	for start := 0; start < len(snaps); start += chunkSize {
		end := start + chunkSize
		if end > len(snaps) {
			end = len(snaps)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, s := range snaps[start:end] {
			if s == nil || s.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				s.Timestamp, s.Symbol, s.Price, s.Volume24h,
				s.Change1h, s.Change24h, s.Change7d, s.MarketCap, string(s.Source),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, volume_24h, change_1h, change_24h, change_7d, market_cap, source) VALUES %s",
			a.table, strings.Join(values, ","))
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("archive batch: %w", err)
		}
	}
	return nil
}

func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseArchive) Close() error {
	return nil // connection pool owned by pkg/clickhouse client
}
