package di

import (
	"context"
	"fmt"
	"time"

	"CandleFlow/internal/domain/repository"
	"CandleFlow/internal/handler/api"
	"CandleFlow/internal/handler/ws"
	internalrepo "CandleFlow/internal/repository"
	"CandleFlow/internal/service/ratelimit"
	"CandleFlow/internal/usecase"
	"CandleFlow/pkg/cache"
	pkgch "CandleFlow/pkg/clickhouse"
	"CandleFlow/pkg/config"
	xhttp "CandleFlow/pkg/http"
	pkgkafka "CandleFlow/pkg/kafka"
	applogger "CandleFlow/pkg/logger"
	"CandleFlow/pkg/metrics"
	"CandleFlow/pkg/server"

	"github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideLocation resolves the session timezone.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Location()
}

// ProvideSessionWindow builds the trading session used by the overlay.
func ProvideSessionWindow(cfg *config.Config, loc *time.Location) (usecase.SessionWindow, error) {
	open, closeAt, err := cfg.SessionHours()
	if err != nil {
		return usecase.SessionWindow{}, err
	}
	return usecase.SessionWindow{Loc: loc, Open: open, Close: closeAt}, nil
}

// ProvideClickHouseClient creates a ClickHouse client. An unreachable server is logged, not fatal:
// the feed reports itself unavailable until ClickHouse comes back.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithCompression(!cfg.ClickHouse.UseHTTP),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := pkgch.Schema(cfg.ClickHouse.Database, cfg.ClickHouse.CandlesTable, cfg.ClickHouse.SignalsTable)
	if err := client.InitSchema(ctx, stmts); err != nil {
		l.Warn("clickhouse schema init failed, continuing",
			applogger.String("host", cfg.ClickHouse.Host),
			applogger.Error(err),
		)
	} else {
		l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))
	}
	return client, nil
}

// ProvideCandleFeed creates the live ClickHouse feed used by refreshers.
func ProvideCandleFeed(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.CHCandleFeed {
	return internalrepo.NewCHCandleFeed(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.CandlesTable, l)
}

// ProvideRangeCache returns memory+Redis when Redis is enabled, memory only otherwise.
func ProvideRangeCache(cfg *config.Config, l *applogger.Logger) cache.Service {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Redis.MemSize),
			cache.WithMemoryDefaultTTL(cfg.Redis.TTL),
		)
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		l.Warn("redis unreachable, history cache is memory only", applogger.Error(err))
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Redis.MemSize),
			cache.WithMemoryDefaultTTL(cfg.Redis.TTL),
		)
	}
	return cache.NewLayeredCache(rc, cfg.Redis.MemSize, 30*time.Second)
}

// ProvideCachedCandleFeed wraps the feed with the range cache for history and overlay reads.
func ProvideCachedCandleFeed(feed *internalrepo.CHCandleFeed, c cache.Service, cfg *config.Config, l *applogger.Logger) *internalrepo.CachedCandleFeed {
	return internalrepo.NewCachedCandleFeed(feed, c, cfg.Redis.TTL, l)
}

// ProvideSignalSource creates the ClickHouse flow signal store.
func ProvideSignalSource(ch *pkgch.Client, cfg *config.Config, loc *time.Location) *internalrepo.CHSignalSource {
	return internalrepo.NewCHSignalSource(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.SignalsTable, loc)
}

// ProvideRefresherFactory binds refreshers to the uncached feed.
func ProvideRefresherFactory(feed *internalrepo.CHCandleFeed, bc *usecase.Broadcaster, cfg *config.Config, l *applogger.Logger, m repository.Metrics) usecase.RefresherFactory {
	return usecase.NewFeedRefresherFactory(feed, bc, usecase.RefresherConfig{
		PollInterval:       cfg.Stream.PollInterval,
		UnavailableBackoff: cfg.Stream.UnavailableBackoff,
		ErrorBackoff:       cfg.Stream.ErrorBackoff,
	}, l, m)
}

// ProvideHistoryUseCase creates the history use case over the cached feed.
func ProvideHistoryUseCase(feed *internalrepo.CachedCandleFeed, m repository.Metrics) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(feed, m)
}

// ProvideOverlayUseCase creates the overlay use case over the cached feed.
func ProvideOverlayUseCase(feed *internalrepo.CachedCandleFeed, src *internalrepo.CHSignalSource, window usecase.SessionWindow, l *applogger.Logger, m repository.Metrics) *usecase.OverlayUseCase {
	return usecase.NewOverlayUseCase(feed, src, window, l, m)
}

// ProvideSubscribeLimiter throttles websocket subscribe attempts per client IP.
func ProvideSubscribeLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Stream.SubscribeRPS, cfg.Stream.SubscribeBurst)
}

// ProvideWSServer creates the websocket endpoint.
func ProvideWSServer(reg *usecase.ChannelRegistry, cfg *config.Config, l *applogger.Logger) *ws.Server {
	return ws.NewServer(reg, cfg.Stream.WriteTimeout, l)
}

// ProvideHealthHandler reports feed reachability.
func ProvideHealthHandler(feed *internalrepo.CHCandleFeed) *api.HealthEchoHandler {
	return api.NewHealthEchoHandler(feed)
}

// ProvideHTTPServer creates the echo server with every route registered.
func ProvideHTTPServer(router api.Router, cfg *config.Config, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(router,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
			m.RecordError("kafka_" + topic)
			l.Warn("kafka message rejected",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err),
			)
		},
	})
	return consumer, nil
}

// ProvideKafkaSignalsHandler persists ingested flow signals.
func ProvideKafkaSignalsHandler(src *internalrepo.CHSignalSource, m repository.Metrics, cfg *config.Config) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, src, m)
}

// ProvideKafkaMarkersHandler fans out markers received over Kafka.
func ProvideKafkaMarkersHandler(fanout *usecase.MarkerFanout, m repository.Metrics, cfg *config.Config) *usecase.KafkaMarkersHandler {
	return usecase.NewKafkaMarkersHandler(cfg.Kafka.MarkersTopic, fanout, m)
}

// ProvideApp creates the application server and attaches log shipping when Kafka is on.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	chClient *pkgch.Client,
	rangeCache cache.Service,
	registry *usecase.ChannelRegistry,
	httpServer *xhttp.Server,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	signals *usecase.KafkaSignalsHandler,
	markers *usecase.KafkaMarkersHandler,
) *server.App {
	if producer != nil && cfg.Log.Topic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectInterval,
			CountThreshold: cfg.Log.CollectMax,
			Topic:          cfg.Log.Topic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer, "candleflow"),
		})
	}
	return server.New(cfg, l, chClient, rangeCache, registry, httpServer, producer, consumer, signals, markers)
}
