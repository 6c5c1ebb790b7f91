//go:build wireinject
// +build wireinject

package di

import (
	"PayPull/pkg/config"
	"PayPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePostgresClient,
		ProvideCache,
		ProvideHTTPClient,
		ProvideRetryPolicy,

		// Repositories
		ProvideAccountSource,
		ProvideTransactionStore,
		ProvidePublisher,

		// Provider API clients
		ProvideTokenSource,
		ProvideReportAPI,

		// Use cases
		ProvideIngestor,
		ProvidePoller,

		// HTTP surface and application
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
