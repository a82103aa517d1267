//go:build wireinject
// +build wireinject

package di

import (
	"github.com/pcashcroft/backtest/internal/build"
	"github.com/pcashcroft/backtest/pkg/config"
	"github.com/pcashcroft/backtest/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up the query server and returns the application plus a
// cleanup that closes the infrastructure clients.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideSnapshot,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,

		// Storage
		ProvideCanonicalReader,
		ProvideDerivedStore,
		ProvideDerivedReader,
		ProvideTracker,

		// Query engines
		ProvideResolver,
		ProvideBigTradesEngine,

		// Use cases
		ProvideMetricsUseCase,
		ProvideBigTradesUseCase,

		// HTTP surface
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil, nil
}

// InitializeRunner wires up the incremental build runner for the CLI. The
// cleanup flushes the Kafka producer and closes the ClickHouse client, so
// callers must invoke it after the run to avoid dropping buffered
// partition-built notifications.
func InitializeRunner(cfg *config.Config) (*build.Runner, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideSnapshot,
		ProvideMetrics,

		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideNotifier,

		ProvideCanonicalReader,
		ProvideDerivedStore,
		ProvideDerivedWriter,
		ProvideTracker,

		ProvideRunner,
	)
	return &build.Runner{}, nil, nil
}
