//go:build wireinject
// +build wireinject

package di

import (
	"MoexPull/internal/usecase"
	"MoexPull/pkg/config"
	"MoexPull/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideKafkaProducer,
	ProvideKafkaPublisher,
	ProvideAuditPublisher,
	ProvideMoexClient,
	ProvideQuoteFetcher,
)

// InitializeApp wires the HTTP server, the holding store and, for the kafka
// backend, the events consumer.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		ProvideClickHouseClient,
		ProvideHoldingStore,
		ProvideHoldingPublisher,
		ProvideSignalCache,
		ProvideSignalProvider,

		ProvideEnricher,
		ProvideBondScreener,
		ProvideHoldingWriter,
		ProvidePortfolioService,
		ProvideHoldingEventsHandler,

		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeScreener wires a one-shot bond screener for the CLI.
func InitializeScreener(cfg *config.Config) (*usecase.BondScreener, func(), error) {
	wire.Build(
		infraSet,
		ProvideBondScreener,
	)
	return nil, nil, nil
}
