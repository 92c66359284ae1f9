package di

import (
	"context"
	"fmt"
	"time"

	"MoexPull/internal/domain/repository"
	domsvc "MoexPull/internal/domain/service"
	"MoexPull/internal/handler/api"
	internalrepo "MoexPull/internal/repository"
	"MoexPull/internal/service/moex"
	"MoexPull/internal/service/ratelimit"
	"MoexPull/internal/service/signals"
	"MoexPull/internal/usecase"
	"MoexPull/pkg/cache"
	pkgch "MoexPull/pkg/clickhouse"
	"MoexPull/pkg/config"
	xhttp "MoexPull/pkg/http"
	pkgkafka "MoexPull/pkg/kafka"
	"MoexPull/pkg/logger"
	"MoexPull/pkg/metrics"
	"MoexPull/pkg/server"
)

const serviceName = "moexpull"

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer when brokers are configured.
// With log.collect the producer also ships aggregated error logs.
func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.KafkaEnabled() {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		Linger:       cfg.Kafka.Producer.Linger,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		Async:        cfg.Kafka.Producer.Async,
	}, pkgkafka.WithProducerLogger(l))
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Log.Collect {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Source:         serviceName,
			Publisher:      producer,
		})
	}

	cleanup := func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close", logger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideClickHouseClient opens ClickHouse unless the memory backend is used.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Backend.Type == config.BackendMemory {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
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
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	l.Info("clickhouse connected", logger.String("database", client.Database()))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideHoldingStore picks the store for the configured backend and
// ensures its schema. The kafka backend reads from ClickHouse too.
func ProvideHoldingStore(cfg *config.Config, ch *pkgch.Client) (repository.HoldingStore, error) {
	var store repository.HoldingStore
	if cfg.Backend.Type == config.BackendMemory {
		store = internalrepo.NewMemoryHoldingStore()
	} else {
		store = internalrepo.NewClickHouseHoldingStore(ch.DB(), "holdings")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("holding store: %w", err)
	}
	return store, nil
}

// ProvideKafkaPublisher is nil without a producer.
func ProvideKafkaPublisher(cfg *config.Config, producer *pkgkafka.Producer) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.HoldingsTopic, cfg.Kafka.AuditTopic)
}

// ProvideHoldingPublisher returns a nil interface, not a typed nil, when
// Kafka is off.
func ProvideHoldingPublisher(pub *internalrepo.KafkaPublisher) repository.HoldingPublisher {
	if pub == nil {
		return nil
	}
	return pub
}

func ProvideAuditPublisher(pub *internalrepo.KafkaPublisher) repository.AuditPublisher {
	if pub == nil {
		return nil
	}
	return pub
}

// ProvideMoexClient builds the ISS client with rate limiting and a breaker.
func ProvideMoexClient(cfg *config.Config, m repository.Metrics, l *logger.Logger) *moex.Client {
	opts := []moex.Option{
		moex.WithFetchTimeout(cfg.Moex.FetchTimeout),
		moex.WithLimiter(ratelimit.New(cfg.Moex.RateLimitRPS, cfg.Moex.RateLimitBurst)),
		moex.WithMetrics(m),
		moex.WithLogger(l),
	}
	if cfg.Moex.Breaker.Enabled {
		opts = append(opts, moex.WithBreaker("moex_iss", cfg.Moex.Breaker.MaxFailures, cfg.Moex.Breaker.OpenTimeout, l))
	}
	return moex.NewClient(cfg.Moex.BaseURL, opts...)
}

func ProvideQuoteFetcher(c *moex.Client) usecase.QuoteFetcher {
	return c
}

func ProvideEnricher(cfg *config.Config, f usecase.QuoteFetcher, m repository.Metrics, l *logger.Logger) *usecase.Enricher {
	return usecase.NewEnricher(f, m, l, cfg.Enrich.Concurrency)
}

func ProvideBondScreener(f usecase.QuoteFetcher, audit repository.AuditPublisher, m repository.Metrics, l *logger.Logger) *usecase.BondScreener {
	return usecase.NewBondScreener(f, audit, m, l)
}

func ProvideHoldingWriter(cfg *config.Config, pub repository.HoldingPublisher, store repository.HoldingStore, m repository.Metrics) *usecase.HoldingWriter {
	return usecase.NewHoldingWriter(pub, store, m, cfg.Backend.Type)
}

// ProvideSignalCache is Redis behind an in-process layer when Redis is
// enabled, otherwise memory only.
func ProvideSignalCache(cfg *config.Config, l *logger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(2000), cache.WithMemoryDefaultTTL(cfg.Signals.CacheTTL))
		return mc, func() { _ = mc.Close() }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(serviceName),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	layered := cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(time.Minute))
	cleanup := func() {
		if err := layered.Close(); err != nil {
			l.Warn("signal cache close", logger.Error(err))
		}
	}
	return layered, cleanup, nil
}

// ProvideSignalProvider returns nil when signals are disabled.
func ProvideSignalProvider(cfg *config.Config, c cache.Service, m repository.Metrics, l *logger.Logger) domsvc.SignalProvider {
	if !cfg.Signals.Enabled {
		return nil
	}
	scraper := signals.NewScraper(
		signals.WithBaseURL(cfg.Signals.BaseURL),
		signals.WithTimeout(cfg.Signals.Timeout),
		signals.WithLimiter(ratelimit.New(2, 2)),
		signals.WithConcurrency(4),
		signals.WithMetrics(m),
		signals.WithLogger(l),
	)
	return signals.NewCached(scraper, c, cfg.Signals.CacheTTL, l)
}

func ProvidePortfolioService(
	store repository.HoldingStore,
	writer *usecase.HoldingWriter,
	enricher *usecase.Enricher,
	sig domsvc.SignalProvider,
	l *logger.Logger,
) *usecase.PortfolioService {
	return usecase.NewPortfolioService(store, writer, enricher, sig, l)
}

// ProvideHTTPHandler assembles every route group.
func ProvideHTTPHandler(l *logger.Logger, screener *usecase.BondScreener, svc *usecase.PortfolioService) xhttp.Handler {
	stream := api.NewDashboardStream(l, svc, 10*time.Second, 30*time.Second)
	return xhttp.Handlers{
		api.NewBondsEchoHandler(l, screener),
		api.NewPortfolioEchoHandler(l, svc, stream),
		api.NewSignalsEchoHandler(l, svc),
	}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *logger.Logger) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(path),
	)
}

func ProvideHoldingEventsHandler(cfg *config.Config, store repository.HoldingStore, m repository.Metrics) *usecase.HoldingEventsHandler {
	return usecase.NewHoldingEventsHandler(cfg.Kafka.HoldingsTopic, store, m)
}

// ProvideKafkaConsumer applies holding events to the store. Only the kafka
// backend needs one.
func ProvideKafkaConsumer(cfg *config.Config, h *usecase.HoldingEventsHandler, m repository.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != config.BackendKafka {
		return nil, nil
	}
	observe := pkgkafka.NewObservingHook(l, func(topic string) {
		m.RecordError("consume_" + topic)
	})
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Kafka.Consumer.GroupID,
		Workers:    cfg.Kafka.Consumer.Workers,
		BufferSize: cfg.Kafka.Consumer.BufferSize,
		RetryMax:   cfg.Kafka.Consumer.RetryMax,
		BackoffMin: cfg.Kafka.Consumer.BackoffMin,
		BackoffMax: cfg.Kafka.Consumer.BackoffMax,
		DLQTopic:   cfg.Kafka.Consumer.DLQTopic,
		MinBytes:   cfg.Kafka.Consumer.MinBytes,
		MaxBytes:   cfg.Kafka.Consumer.MaxBytes,
	}, pkgkafka.WithConsumerLogger(l), pkgkafka.WithConsumerHooks(observe))
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(h)
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	l *logger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	store repository.HoldingStore,
) *server.App {
	return server.New(l, httpServer, consumer, store)
}
