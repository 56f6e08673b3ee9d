package di

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/internal/handler/api"
	"CoinPulse/internal/handler/ws"
	internalrepo "CoinPulse/internal/repository"
	"CoinPulse/internal/service/quotecache"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/service/upstream"
	"CoinPulse/internal/usecase"
	pkgcache "CoinPulse/pkg/cache"
	pkgch "CoinPulse/pkg/clickhouse"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	pkgkafka "CoinPulse/pkg/kafka"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
	"CoinPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	lc := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "json"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return logger.New(lc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.NewRecorder()
}

// ProvideLimiter creates the upstream rate limiter.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		MonthlyBudget:      cfg.Limiter.MonthlyBudget,
		ThrottleThreshold:  cfg.Limiter.ThrottleThreshold,
		EmergencyThreshold: cfg.Limiter.EmergencyThreshold,
		ErrorThreshold:     cfg.Limiter.ErrorThreshold,
		RecoveryInterval:   cfg.Limiter.RecoveryInterval,
	})
}

// ProvideQuoteCache creates the shared short-TTL quote cache.
func ProvideQuoteCache(cfg *config.Config) *quotecache.Cache {
	return quotecache.New(cfg.Scheduler.QuoteTTL)
}

// ProvideQuoteProvider creates the upstream market-data client.
func ProvideQuoteProvider(cfg *config.Config) repository.QuoteProvider {
	return upstream.New(cfg.Upstream.APIKey, cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
}

// ProvideHistory creates the in-memory price history accumulator.
func ProvideHistory(cfg *config.Config) repository.HistoryStore {
	return internalrepo.NewMemoryHistory(cfg.History.Window)
}

// ProvideSharedCache creates the signal write-through cache: layered
// memory-over-Redis when Redis is enabled, plain in-process otherwise.
func ProvideSharedCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideSignalStore creates the signal store, with Redis write-through when
// a shared cache is available.
func ProvideSignalStore(shared pkgcache.Service, cfg *config.Config) repository.SignalStore {
	return internalrepo.NewSignalStore(shared, cfg.Redis.TTL)
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// snapshot archive schema. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	table := archiveTable(cfg)
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
		"CREATE TABLE IF NOT EXISTS " + table + " (" +
			"ts DateTime64(3), symbol String, price Float64, volume_24h Float64, " +
			"change_1h Float64, change_24h Float64, change_7d Float64, " +
			"market_cap Float64, source String" +
			") ENGINE=MergeTree ORDER BY (symbol, ts)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func archiveTable(cfg *config.Config) string {
	table := cfg.ClickHouse.Table
	if table == "" {
		table = "market_snapshots"
	}
	return cfg.ClickHouse.Database + "." + table
}

// ProvideArchiver creates the snapshot archiver. Returns nil when ClickHouse
// is disabled.
func ProvideArchiver(chClient *pkgch.Client, cfg *config.Config) repository.SnapshotArchiver {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseArchive(chClient.DB(), archiveTable(cfg))
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideHub creates the websocket fan-out hub. Returns nil when the
// websocket surface is disabled.
func ProvideHub(cfg *config.Config, log *logger.Logger) *ws.Hub {
	if !cfg.WebSocket.Enabled {
		return nil
	}
	return ws.NewHub(cfg.WebSocket.SendBuffer, log)
}

// ProvideSink composes the configured signal sinks. Returns nil when none is
// enabled.
func ProvideSink(producer *pkgkafka.Producer, hub *ws.Hub, cfg *config.Config) repository.SignalSink {
	var sinks []repository.SignalSink
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaSignalSink(producer, cfg.Kafka.Topic))
	}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if len(sinks) == 0 {
		return nil
	}
	return internalrepo.NewMultiSink(sinks...)
}

// ProvideScheduler creates the per-timeframe signal scheduler.
func ProvideScheduler(
	cfg *config.Config,
	quotes repository.QuoteProvider,
	cache *quotecache.Cache,
	limiter *ratelimit.Limiter,
	history repository.HistoryStore,
	store repository.SignalStore,
	sink repository.SignalSink,
	archiver repository.SnapshotArchiver,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Scheduler {
	symbols := make([]models.SymbolMapping, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols = append(symbols, models.SymbolMapping{
			Symbol:      s.Symbol,
			DisplayName: s.DisplayName,
			Category:    s.Category,
		})
	}
	return usecase.NewScheduler(
		usecase.Config{
			Workers: cfg.Scheduler.Workers,
			Band: usecase.ConfidenceBand{
				Floor:   cfg.Scheduler.ConfidenceFloor,
				Ceiling: cfg.Scheduler.ConfidenceCeiling,
			},
		},
		symbols, quotes, cache, limiter, history, store, sink, archiver, m, log,
	)
}

// ProvideAPIHandler creates the HTTP API handler.
func ProvideAPIHandler(
	store repository.SignalStore,
	history repository.HistoryStore,
	limiter *ratelimit.Limiter,
	archiver repository.SnapshotArchiver,
	log *logger.Logger,
) xhttp.Handler {
	return api.NewSignalHandler(store, history, limiter, archiver, log)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	sched *usecase.Scheduler,
	handler xhttp.Handler,
	hub *ws.Hub,
	sink repository.SignalSink,
	archiver repository.SnapshotArchiver,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, log, sched, handler, hub, sink, archiver, chClient)
}
