package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"SPI/internal/domain/models"
	"SPI/internal/domain/repository"
	"SPI/internal/handler/api"
	kafkahandler "SPI/internal/handler/kafka"
	internalrepo "SPI/internal/repository"
	"SPI/internal/service/stream"
	"SPI/internal/services/pricing"
	"SPI/internal/usecase"
	"SPI/pkg/cache"
	pkgch "SPI/pkg/clickhouse"
	"SPI/pkg/config"
	xhttp "SPI/pkg/http"
	"SPI/pkg/http/middleware"
	pkgkafka "SPI/pkg/kafka"
	applogger "SPI/pkg/logger"
	"SPI/pkg/metrics"
	"SPI/pkg/server"
)

// ProvideLogger builds the service logger from config.
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

// ProvideRegistry creates the Prometheus registry served on /metrics. Kafka
// client metrics are pointed at it as well.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pkgkafka.SetProducerMetricsRegisterer(reg)
	pkgkafka.SetConsumerMetricsRegisterer(reg)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideCache selects the cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	memory := func() cache.Service {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryItems))
	}
	if cfg.Cache.Backend == "memory" {
		return memory(), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Backend == "layered" {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MemoryItems),
			cache.WithLayeredMemoryTTL(time.Minute),
		), nil
	}
	return rc, nil
}

// ProvideClickHouseClient connects and prepares the history schema. It
// returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
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
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.RecommendationSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRecommendationStore falls back to a store that reports history as
// unavailable when ClickHouse is off.
func ProvideRecommendationStore(ch *pkgch.Client, l *applogger.Logger) repository.RecommendationStore {
	if ch == nil {
		return internalrepo.NewUnavailableStore()
	}
	return internalrepo.NewCHRecommendationStore(ch, l)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes recommendation events when Kafka is on.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideKafkaConsumer returns nil unless the request consumer is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithLogger(l)
	consumer.WithConsumerHook(kafkahandler.Hooks(m, l))
	return consumer, nil
}

func ProvideEvaluator(cfg *config.Config) *pricing.Evaluator {
	return pricing.NewEvaluator(models.PricingRules{
		MinProfitMargin: cfg.Pricing.MinProfitMargin,
		UndercutLimit:   cfg.Pricing.UndercutLimit,
	})
}

func ProvideHub(cfg *config.Config, l *applogger.Logger) *stream.Hub {
	return stream.NewHub(cfg.Stream.PingInterval, cfg.Stream.SendBuffer, l)
}

func ProvideRecommender(
	cfg *config.Config,
	evaluator *pricing.Evaluator,
	c cache.Service,
	store repository.RecommendationStore,
	pub repository.EventPublisher,
	m repository.Metrics,
	hub *stream.Hub,
	l *applogger.Logger,
) *usecase.Recommender {
	return usecase.NewRecommender(evaluator, c, store, pub, m, l,
		usecase.WithCacheTTL(cfg.Cache.TTL),
		usecase.WithLockTTL(cfg.Cache.LockTTL),
		usecase.WithBroadcaster(hub),
	)
}

func ProvideRecommenderHandler(
	cfg *config.Config,
	l *applogger.Logger,
	uc *usecase.Recommender,
	store repository.RecommendationStore,
	hub *stream.Hub,
) *api.RecommenderEchoHandler {
	return api.NewRecommenderEchoHandler(l, uc, store, hub, cfg.Auth.JWTSecret)
}

func ProvideBackendHandler(l *applogger.Logger) *api.BackendEchoHandler {
	return api.NewBackendEchoHandler(l)
}

func serverOptions(sc config.ServerConfig, cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry) []xhttp.ServerOption {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(sc.Port),
		xhttp.WithTimeouts(sc.ReadTimeout, sc.WriteTimeout, sc.ShutdownTimeout),
		xhttp.WithSlowThreshold(sc.SlowThreshold),
		xhttp.WithLogger(l),
		xhttp.WithRegistry(reg),
	}
	// already checked by Config.Validate
	proxies, _ := cfg.TrustedProxyNets()
	opts = append(opts, xhttp.WithTrustedProxies(proxies...))
	if cfg.RateLimit.Enabled {
		opts = append(opts, xhttp.WithRateLimit(middleware.RateLimitConfig{
			Rate:      cfg.RateLimit.Rate,
			Burst:     cfg.RateLimit.Burst,
			ExpiresIn: cfg.RateLimit.ExpiresIn,
		}))
	}
	return opts
}

// ProvideBackendApp assembles the backend stub service.
func ProvideBackendApp(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h *api.BackendEchoHandler) *server.App {
	srv := xhttp.NewServer([]xhttp.Handler{h}, serverOptions(cfg.Backend, cfg, l, reg)...)
	return server.New("backend", l, srv, server.WithShutdownTimeout(cfg.Backend.ShutdownTimeout))
}

// ProvideRecommenderApp assembles the recommender service and registers
// every resource for shutdown.
func ProvideRecommenderApp(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	h *api.RecommenderEchoHandler,
	uc *usecase.Recommender,
	m repository.Metrics,
	c cache.Service,
	ch *pkgch.Client,
	store repository.RecommendationStore,
	producer *pkgkafka.Producer,
	pub repository.EventPublisher,
	consumer *pkgkafka.Consumer,
	hub *stream.Hub,
) *server.App {
	srv := xhttp.NewServer([]xhttp.Handler{h}, serverOptions(cfg.Recommender, cfg, l, reg)...)

	opts := []server.AppOption{
		server.WithShutdownTimeout(cfg.Recommender.ShutdownTimeout),
		server.WithCloser("cache", func(context.Context) error { return c.Close() }),
	}
	if ch != nil {
		opts = append(opts,
			server.WithCloser("clickhouse", func(context.Context) error { return ch.Close() }),
			server.WithCloser("history store", func(context.Context) error { return store.Close() }),
		)
	}
	if producer != nil {
		// closers run in reverse, so the collector flushes before the producer goes away
		opts = append(opts, server.WithCloser("event publisher", func(context.Context) error { return pub.Close() }))
		if cfg.Log.CollectorTopic != "" {
			l.AddCollector(&applogger.CollectionConfig{
				Publisher:      producer,
				Topic:          cfg.Log.CollectorTopic,
				TimeInterval:   cfg.Log.FlushInterval,
				CountThreshold: cfg.Log.FlushThreshold,
			})
			opts = append(opts, server.WithCloser("log collector", func(context.Context) error {
				l.RemoveCollector()
				return nil
			}))
		}
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, kafkahandler.NewPredictionHandler(cfg.Kafka.RequestTopic, uc, m, l)))
	}
	opts = append(opts, server.WithCloser("stream hub", hub.Close))

	return server.New("recommender", l, srv, opts...)
}
