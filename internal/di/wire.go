//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SPI/pkg/config"
	"SPI/pkg/server"
)

// InitializeBackend wires the backend stub service.
func InitializeBackend(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideBackendHandler,
		ProvideBackendApp,
	)
	return &server.App{}, nil
}

// InitializeRecommender wires the recommender service.
func InitializeRecommender(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideRecommendationStore,
		ProvideEventPublisher,

		// Use cases
		ProvideEvaluator,
		ProvideHub,
		ProvideRecommender,

		ProvideRecommenderHandler,
		ProvideRecommenderApp,
	)
	return &server.App{}, nil
}
