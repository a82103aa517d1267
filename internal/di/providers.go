package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pcashcroft/backtest/internal/bigtrades"
	"github.com/pcashcroft/backtest/internal/build"
	"github.com/pcashcroft/backtest/internal/domain/repository"
	"github.com/pcashcroft/backtest/internal/domain/snapshot"
	"github.com/pcashcroft/backtest/internal/handler/api"
	"github.com/pcashcroft/backtest/internal/manifest"
	internalrepo "github.com/pcashcroft/backtest/internal/repository"
	"github.com/pcashcroft/backtest/internal/resolve"
	"github.com/pcashcroft/backtest/internal/usecase"
	"github.com/pcashcroft/backtest/pkg/cache"
	pkgch "github.com/pcashcroft/backtest/pkg/clickhouse"
	"github.com/pcashcroft/backtest/pkg/config"
	pkgkafka "github.com/pcashcroft/backtest/pkg/kafka"
	"github.com/pcashcroft/backtest/pkg/logger"
	"github.com/pcashcroft/backtest/pkg/metrics"
	"github.com/pcashcroft/backtest/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	lc := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return logger.New(lc)
}

// ProvideSnapshot loads the immutable config snapshot.
func ProvideSnapshot(cfg *config.Config) (*snapshot.Snapshot, error) {
	return snapshot.Load(cfg.Snapshot.Path)
}

// ProvideClickHouseClient creates a ClickHouse client and ensures schema.
// The cleanup closes the client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
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
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stmts := internalrepo.Schemas()
	stmts = append(stmts, manifest.NewClickHouse(client.DB(), cfg.ManifestTable()).Schema())
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, func() { _ = client.Close() }, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled. The
// cleanup flushes and closes the producer so async-batched messages are not
// dropped on exit.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideNotifier creates the partition-built notifier, or nil when Kafka is
// disabled.
func ProvideNotifier(producer *pkgkafka.Producer, cfg *config.Config) repository.Notifier {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.Topic)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCanonicalReader creates the canonical-store reader.
func ProvideCanonicalReader(chClient *pkgch.Client) repository.CanonicalReader {
	return internalrepo.NewClickHouseCanonical(chClient.DB())
}

// ProvideDerivedStore creates the derived-table store.
func ProvideDerivedStore(chClient *pkgch.Client) *internalrepo.ClickHouseDerived {
	return internalrepo.NewClickHouseDerived(chClient.DB())
}

// ProvideDerivedWriter exposes the store as a writer.
func ProvideDerivedWriter(store *internalrepo.ClickHouseDerived) repository.DerivedWriter {
	return store
}

// ProvideDerivedReader exposes the store as a reader.
func ProvideDerivedReader(store *internalrepo.ClickHouseDerived) repository.DerivedReader {
	return store
}

// ProvideTracker creates the ClickHouse-backed build manifest.
func ProvideTracker(chClient *pkgch.Client, cfg *config.Config) manifest.Tracker {
	return manifest.NewClickHouse(chClient.DB(), cfg.ManifestTable())
}

// ProvideRunner creates the incremental build runner.
func ProvideRunner(
	snap *snapshot.Snapshot,
	canon repository.CanonicalReader,
	writer repository.DerivedWriter,
	tracker manifest.Tracker,
	log *logger.Logger,
	m repository.Metrics,
	notifier repository.Notifier,
) *build.Runner {
	return build.NewRunner(snap, canon, writer, tracker, log, m, notifier)
}

// ProvideResolver creates the source resolver.
func ProvideResolver(snap *snapshot.Snapshot, tracker manifest.Tracker) *resolve.Resolver {
	return resolve.NewResolver(snap, tracker)
}

// ProvideBigTradesEngine creates the on-demand big-trade engine.
func ProvideBigTradesEngine(snap *snapshot.Snapshot, canon repository.CanonicalReader, log *logger.Logger) *bigtrades.Engine {
	return bigtrades.NewEngine(snap, canon, log)
}

// ProvideCache creates the query cache, or nil when disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Type {
	case "memory":
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxItems)), nil
	case "redis":
		return provideRedisCache(cfg)
	case "layered":
		rc, err := provideRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MaxItems)), nil
	}
	return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
}

func provideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	host, portStr, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("cache redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("cache redis port: %w", err)
	}
	return cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix("backtest"),
	)
}

// ProvideMetricsUseCase creates the derived-metrics query usecase.
func ProvideMetricsUseCase(
	snap *snapshot.Snapshot,
	resolver *resolve.Resolver,
	derived repository.DerivedReader,
	tracker manifest.Tracker,
) *usecase.MetricsUseCase {
	return usecase.NewMetricsUseCase(snap, resolver, derived, tracker)
}

// ProvideBigTradesUseCase creates the big-trades query usecase.
func ProvideBigTradesUseCase(
	engine *bigtrades.Engine,
	c cache.Service,
	cfg *config.Config,
	log *logger.Logger,
) *usecase.BigTradesUseCase {
	return usecase.NewBigTradesUseCase(engine, c, cfg.Cache.TTL, log)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	log *logger.Logger,
	snap *snapshot.Snapshot,
	mu *usecase.MetricsUseCase,
	btu *usecase.BigTradesUseCase,
) *api.MetricsHandler {
	return api.NewMetricsHandler(log, snap, mu, btu)
}

// ProvideApp creates the query-server application. Infrastructure clients
// are closed by the injector cleanup, not by the app.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler *api.MetricsHandler,
) *server.App {
	return server.New(cfg, log, handler)
}
