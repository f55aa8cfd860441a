// Background worker for RxGraph-Intelligence.  Consumes enrichment-failure
// events from Kafka and retries the enrichment out of band, so substances
// that stayed stubs because a source was down eventually get resolved.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/application/enrichment"
	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/neo4j"
	neo4jrepos "github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/neo4j/repositories"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/sources"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	healthPort := flag.Int("health-port", 8081, "port for /healthz and /metrics")
	flag.Parse()

	if err := run(*configPath, *healthPort); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, healthPort int) error {
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
	logger = logger.Named("worker")
	logger.Info("starting enrichment retry worker", logging.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	store := neo4jrepos.NewGraphStore(driver, logger)

	redisClient, err := redis.NewClient(&redis.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	locker := redis.NewEnrichmentLocker(
		redis.NewLockFactory(redisClient, logger), cfg.Enrichment.LockTTL, logger)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "rxgraph",
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	retry := sources.NewRetryPolicy(cfg.Sources.Retry)
	enricher := enrichment.New(
		sources.NewFDAClient(cfg.Sources.FDA, retry, logger),
		sources.NewRxNormClient(cfg.Sources.RxNorm, retry, logger),
		sources.NewGSRSClient(cfg.Sources.GSRS, retry, logger),
		store, cfg.Enrichment, logger, appMetrics)

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		MaxRetries: cfg.Kafka.ProducerRetries,
	}, logger)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer producer.Close()
	publisher := kafka.NewEventPublisher(producer, "rxgraph-worker", logger)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics:          []string{kafka.TopicEnrichmentFailed},
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Worker.MaxRetries,
			RetryBackoff:    time.Second,
			MaxRetryBackoff: 30 * time.Second,
			DeadLetterTopic: kafka.TopicDeadLetterEnrichment,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer consumer.Close()

	handler := &retryHandler{
		enricher:  enricher,
		store:     store,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
	}
	if err := consumer.Subscribe(kafka.TopicEnrichmentFailed, handler.Handle); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	go serveHealth(healthPort, collector, logger)

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// retryHandler re-runs enrichment for a substance whose first attempt failed.
type retryHandler struct {
	enricher  *enrichment.Orchestrator
	store     graph.Store
	locker    *redis.EnrichmentLocker
	publisher *kafka.EventPublisher
	logger    logging.Logger
}

func (h *retryHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	var payload kafka.EnrichmentFailedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	if payload.SearchTerm == "" {
		h.logger.Warn("enrichment failure event without search term, dropping",
			logging.String("event_id", env.EventID))
		return nil
	}

	key := graph.NormalizeKey(payload.SearchTerm)
	release, acquired, err := h.locker.TryLock(ctx, key)
	if err != nil {
		return err
	}
	if !acquired {
		// Another process is already enriching this substance.
		h.logger.Debug("substance locked elsewhere, skipping retry",
			logging.String("substance", key))
		return nil
	}
	defer release()

	result, err := h.enricher.Enrich(ctx, payload.SearchTerm, "")
	if err != nil {
		return err
	}
	if result.Skipped {
		return nil
	}
	if result.Bundle == nil || result.SourcesOK == 0 {
		h.logger.Warn("enrichment retry produced nothing",
			logging.String("substance", key),
			logging.Int("source_errors", len(result.Errors)))
		return nil
	}

	stats, err := h.store.Apply(ctx, result.Bundle)
	if err != nil {
		return err
	}
	h.logger.Info("substance enriched on retry",
		logging.String("substance", key),
		logging.Int("vertices_created", stats.VerticesCreated),
		logging.Int("edges_created", stats.EdgesCreated))

	if pubErr := h.publisher.SubstanceEnriched(ctx, key); pubErr != nil {
		h.logger.Warn("enriched event publish failed", logging.Err(pubErr))
	}
	return nil
}

// serveHealth exposes liveness and metrics for probes.
func serveHealth(port int, collector prometheus.MetricsCollector, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("health server error", logging.Err(err))
	}
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
