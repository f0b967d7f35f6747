//go:build wireinject
// +build wireinject

package di

import (
	"CandleFlow/internal/handler/api"
	"CandleFlow/internal/usecase"
	"CandleFlow/pkg/config"
	"CandleFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideLocation,
		ProvideSessionWindow,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRangeCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCandleFeed,
		ProvideCachedCandleFeed,
		ProvideSignalSource,

		// Use cases
		usecase.NewBroadcaster,
		ProvideRefresherFactory,
		usecase.NewChannelRegistry,
		usecase.NewMarkerFanout,
		ProvideHistoryUseCase,
		ProvideOverlayUseCase,
		ProvideKafkaSignalsHandler,
		ProvideKafkaMarkersHandler,

		// Transport
		ProvideSubscribeLimiter,
		ProvideWSServer,
		api.NewChartEchoHandler,
		api.NewStreamEchoHandler,
		ProvideHealthHandler,
		api.NewRouter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
