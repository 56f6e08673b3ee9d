//go:build wireinject
// +build wireinject

package di

import (
	"CoinPulse/pkg/config"
	"CoinPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideSharedCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Core services
		ProvideLimiter,
		ProvideQuoteCache,
		ProvideQuoteProvider,

		// Repositories
		ProvideHistory,
		ProvideSignalStore,
		ProvideArchiver,
		ProvideHub,
		ProvideSink,

		// Use cases
		ProvideScheduler,

		// HTTP surface
		ProvideAPIHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
