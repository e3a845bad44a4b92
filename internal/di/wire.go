//go:build wireinject
// +build wireinject

package di

import (
	"PairPull/pkg/config"
	"PairPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideEventPublisher,
		ProvideNotifyQueue,
		ProvideNotifier,
		ProvidePriceSource,
		ProvidePriceStream,

		// Repositories
		ProvideStateStore,
		ProvideHistoryStore,

		// Use cases
		ProvideEvaluator,
		ProvideTradeBook,
		ProvideExitRules,
		ProvideScanner,
		ProvideMonitor,
		ProvideAnalyzer,

		// HTTP and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
