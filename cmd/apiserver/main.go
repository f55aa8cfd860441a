// API server entry point for RxGraph-Intelligence.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/RxGraph-Intelligence/internal/application/enrichment"
	"github.com/turtacn/RxGraph-Intelligence/internal/application/pipeline"
	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/neo4j"
	neo4jrepos "github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/neo4j/repositories"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/postgres"
	pgrepos "github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/extractor"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/graphstore"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/sources"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/storage/minio"
	httpserver "github.com/turtacn/RxGraph-Intelligence/internal/interfaces/http"
	"github.com/turtacn/RxGraph-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/RxGraph-Intelligence/internal/interfaces/http/middleware"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	migrate := flag.Bool("migrate", false, "run database migrations before starting")
	flag.Parse()

	if err := run(*configPath, *port, *migrate); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int, migrate bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	port := cfg.Server.Port
	if portOverride > 0 {
		port = portOverride
	}
	logger.Info("starting RxGraph-Intelligence API server",
		logging.String("version", version),
		logging.Int("port", port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrate {
		if err := postgres.RunMigrations(postgresURL(cfg.Database), cfg.Database.MigrationPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	// PostgreSQL: pgx pool for the extraction store.
	pool, err := pgxpool.New(ctx, postgresURL(cfg.Database))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	extractions := pgrepos.NewExtractionRepository(pool, logger)

	// Neo4j: the knowledge graph.
	driver, err := neo4j.NewDriver(neo4j.Neo4jConfig{
		URI:                          cfg.Neo4j.URI,
		Username:                     cfg.Neo4j.User,
		Password:                     cfg.Neo4j.Password,
		Database:                     cfg.Neo4j.Database,
		MaxConnectionPoolSize:        cfg.Neo4j.MaxConnectionPoolSize,
		ConnectionAcquisitionTimeout: cfg.Neo4j.ConnectionTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect neo4j: %w", err)
	}
	defer driver.Close()
	var store graph.Store = neo4jrepos.NewGraphStore(driver, logger)

	// Redis: cross-process enrichment locks.
	redisClient, err := redis.NewClient(&redis.RedisConfig{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	locker := redis.NewEnrichmentLocker(
		redis.NewLockFactory(redisClient, logger), cfg.Enrichment.LockTTL, logger)

	// Substance reads go through a redis cache; writes invalidate it.
	cache := redis.NewRedisCache(redisClient, logger)
	store = graphstore.NewCachedStore(store, cache, cfg.Redis.DefaultTTL, logger)

	// Kafka: pipeline event publishing.  The server runs without it when the
	// brokers are unreachable at startup.
	var publisher pipeline.Publisher
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		MaxRetries: cfg.Kafka.ProducerRetries,
		BatchSize:  cfg.Kafka.BatchSize,
	}, logger)
	if err != nil {
		logger.Warn("kafka producer unavailable, events disabled", logging.Err(err))
	} else {
		defer producer.Close()
		if cfg.Kafka.AutoCreateTopics {
			if tm, tmErr := kafka.NewTopicManager(cfg.Kafka.Brokers, logger); tmErr == nil {
				if ensureErr := tm.EnsureDefaultTopics(ctx); ensureErr != nil {
					logger.Warn("topic creation failed", logging.Err(ensureErr))
				}
				tm.Close()
			}
		}
		publisher = kafka.NewEventPublisher(producer, "rxgraph-api", logger)
	}

	// MinIO: raw document archival under the content hash.
	var blobs pipeline.BlobStore
	minioClient, err := minio.NewMinIOClient(&minio.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		UseSSL:          cfg.MinIO.UseSSL,
		PresignExpiry:   cfg.MinIO.PresignExpiry,
		Buckets:         minio.BucketConfig{Documents: cfg.MinIO.Bucket},
	}, logger)
	if err != nil {
		logger.Warn("minio unavailable, document archival disabled", logging.Err(err))
	} else {
		defer minioClient.Close()
		if err := minioClient.EnsureBuckets(ctx); err != nil {
			logger.Warn("bucket provisioning failed", logging.Err(err))
		}
		blobs = minio.NewDocumentArchive(
			minio.NewMinIORepository(minioClient, logger), cfg.MinIO.Bucket, logger)
	}

	// Metrics.
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "rxgraph",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	// External knowledge sources and the enrichment orchestrator.
	retry := sources.NewRetryPolicy(cfg.Sources.Retry)
	fda := sources.NewFDAClient(cfg.Sources.FDA, retry, logger)
	rxnorm := sources.NewRxNormClient(cfg.Sources.RxNorm, retry, logger)
	gsrs := sources.NewGSRSClient(cfg.Sources.GSRS, retry, logger)
	enricher := enrichment.New(fda, rxnorm, gsrs, store, cfg.Enrichment, logger, appMetrics)

	// NER extraction and the document pipeline.
	ner := extractor.New(cfg.Extractor, logger)
	svc := pipeline.New(ner, enricher, store, cfg.Enrichment, logger, pipeline.Options{
		Extractions: extractions,
		Locker:      locker,
		Publisher:   publisher,
		Blobs:       blobs,
		Metrics:     appMetrics,
	})

	// HTTP surface.
	corsCfg := middleware.DefaultCORSConfig()
	logCfg := middleware.DefaultLoggingConfig()
	router := httpserver.NewRouter(httpserver.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(svc, cfg.Server.MaxBodySize, logger),
		EntityHandler:   handlers.NewEntityHandler(svc, logger),
		HealthHandler: handlers.NewHealthHandler(version,
			&postgresHealthAdapter{pool: pool},
			&neo4jHealthAdapter{driver: driver},
			&redisHealthAdapter{client: redisClient},
		),
		CORS:             &corsCfg,
		Logging:          &logCfg,
		RateLimit:        middleware.NewTokenBucketLimiter(50, 100, 5*time.Minute),
		Logger:           logger,
		MetricsCollector: collector,
	})

	server := httpserver.NewServer(port, router, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// loadConfig reads the YAML file at path, or falls back to RXGRAPH_* env
// variables when the default file is absent (containerised deployments).
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return config.LoadFromEnv()
		}
		return nil, err
	}
	return config.Load(path)
}

// postgresURL builds a pgx/migrate compatible connection URL.
func postgresURL(db config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.DBName,
	}
	q := url.Values{}
	if db.SSLMode != "" {
		q.Set("sslmode", db.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
