package di

import (
	"fmt"

	"Predictor/internal/domain/repository"
	"Predictor/internal/domain/service"
	"Predictor/internal/handler/api"
	internalrepo "Predictor/internal/repository"
	"Predictor/internal/service/hostbridge"
	"Predictor/internal/service/ratelimit"
	"Predictor/internal/usecase"
	"Predictor/pkg/cache"
	"Predictor/pkg/config"
	xhttp "Predictor/pkg/http"
	pkgkafka "Predictor/pkg/kafka"
	applogger "Predictor/pkg/logger"
	"Predictor/pkg/metrics"
	"Predictor/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegistry creates the Prometheus registry scraped at /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvideCache creates the store behind the run throttle.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize)), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, cfg.Server.ReadTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideRateLimiter returns nil when throttling is disabled.
func ProvideRateLimiter(cfg *config.Config, store cache.Service) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(store, cfg.RateLimit.Runs, cfg.RateLimit.Window)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideEventPublisher publishes prediction events to Kafka when a producer exists.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSynthesizer creates the prediction generator.
func ProvideSynthesizer(cfg *config.Config) service.Synthesizer {
	return usecase.NewRandomSynthesizer(cfg.Analysis)
}

// ProvideSessionManager creates the session registry.
func ProvideSessionManager(
	cfg *config.Config,
	synth service.Synthesizer,
	metrics repository.Metrics,
	events repository.EventPublisher,
	logger *applogger.Logger,
) *usecase.SessionManager {
	return usecase.NewSessionManager(
		cfg.Analysis,
		cfg.Sessions.IdleTTL,
		cfg.Sessions.SweepInterval,
		cfg.Sessions.MaxSessions,
		synth,
		metrics,
		events,
		logger,
	)
}

// ProvideAnalysisHandler creates the HTTP handler.
func ProvideAnalysisHandler(
	cfg *config.Config,
	logger *applogger.Logger,
	sessions *usecase.SessionManager,
	limiter *ratelimit.Limiter,
	metrics repository.Metrics,
) *api.AnalysisEchoHandler {
	return api.NewAnalysisEchoHandler(logger, sessions, limiter, metrics, hostbridge.Config{
		WriteWait:  cfg.Bridge.WriteWait,
		PongWait:   cfg.Bridge.PongWait,
		PingPeriod: cfg.Bridge.PingPeriod,
		BufferSize: cfg.Bridge.BufferSize,
	}, cfg.Server.AllowOrigins)
}

// ProvideHTTPServer creates the echo server. /healthz pings the cache store.
func ProvideHTTPServer(
	cfg *config.Config,
	handler *api.AnalysisEchoHandler,
	reg *prometheus.Registry,
	logger *applogger.Logger,
	store cache.Service,
) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORSOrigins(cfg.Server.AllowOrigins...),
		xhttp.WithMetrics(metricsPath, reg),
		xhttp.WithHealthCheck(store.Ping),
		xhttp.WithLogger(logger),
	)
}

// ProvideApp creates the application server. With Kafka enabled, aggregated
// error logs are shipped to the log topic.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	sessions *usecase.SessionManager,
	events repository.EventPublisher,
	producer *pkgkafka.Producer,
	store cache.Service,
) *server.App {
	if producer != nil && cfg.Kafka.LogTopic != "" {
		logger.AddCollector(&applogger.CollectionConfig{
			Topic:     cfg.Kafka.LogTopic,
			Publisher: producer,
		})
	}
	return server.New(cfg, logger, httpServer, sessions, events, store)
}
