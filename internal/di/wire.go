//go:build wireinject
// +build wireinject

package di

import (
	"PulseCast/pkg/config"
	"PulseCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories (with business logic)
		ProvideSummaryStorage,
		ProvideSummaryPublisher,
		ProvideGatewayStream,

		// Use cases
		ProvideSummaryProcessor,
		ProvideSummaryCollector,
		ProvideKafkaSummariesHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
