//go:build wireinject
// +build wireinject

package di

import (
	"Predictor/pkg/config"
	"Predictor/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideKafkaProducer,

		// Repositories
		ProvideEventPublisher,

		// Use cases
		ProvideSynthesizer,
		ProvideSessionManager,
		ProvideRateLimiter,

		// Transport
		ProvideAnalysisHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
