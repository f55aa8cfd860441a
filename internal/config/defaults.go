// Package config provides configuration loading, defaults, and validation for
// the RxGraph-Intelligence platform.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "rxgraph"
	DefaultDBMaxConns = 25

	DefaultNeo4jURI      = "bolt://localhost:7687"
	DefaultNeo4jDatabase = "neo4j"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "rxgraph:"
	DefaultRedisTTL       = 24 * time.Hour

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "rxgraph-group"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "rxgraph-documents"

	DefaultFDABaseURL    = "https://api.fda.gov"
	DefaultRxNormBaseURL = "https://rxnav.nlm.nih.gov/REST"
	DefaultGSRSBaseURL   = "https://api.fda.gov/other/substance.json"
	DefaultSourceTimeout = 15 * time.Second

	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = 500 * time.Millisecond
	DefaultRetryMaxDelay    = 10 * time.Second

	DefaultEnrichmentConcurrency = 5
	DefaultEnrichmentLockTTL     = 2 * time.Minute

	DefaultExtractorBaseURL      = "https://api.openai.com/v1"
	DefaultExtractorModel        = "gpt-4o-mini"
	DefaultExtractorTimeout      = 60 * time.Second
	DefaultExtractorMaxTextChars = 30000

	DefaultWorkerConcurrency = 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling raw config data and before Validate() so that
// optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = DefaultNeo4jURI
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = DefaultNeo4jDatabase
	}
	if cfg.Neo4j.MaxConnectionPoolSize == 0 {
		cfg.Neo4j.MaxConnectionPoolSize = 50
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Sources ───────────────────────────────────────────────────────────────
	if cfg.Sources.FDA.BaseURL == "" {
		cfg.Sources.FDA.BaseURL = DefaultFDABaseURL
	}
	if cfg.Sources.RxNorm.BaseURL == "" {
		cfg.Sources.RxNorm.BaseURL = DefaultRxNormBaseURL
	}
	if cfg.Sources.GSRS.BaseURL == "" {
		cfg.Sources.GSRS.BaseURL = DefaultGSRSBaseURL
	}
	if cfg.Sources.FDA.Timeout == 0 {
		cfg.Sources.FDA.Timeout = DefaultSourceTimeout
	}
	if cfg.Sources.RxNorm.Timeout == 0 {
		cfg.Sources.RxNorm.Timeout = DefaultSourceTimeout
	}
	if cfg.Sources.GSRS.Timeout == 0 {
		cfg.Sources.GSRS.Timeout = DefaultSourceTimeout
	}
	if cfg.Sources.Retry.MaxAttempts == 0 {
		cfg.Sources.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.Sources.Retry.BaseDelay == 0 {
		cfg.Sources.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if cfg.Sources.Retry.MaxDelay == 0 {
		cfg.Sources.Retry.MaxDelay = DefaultRetryMaxDelay
	}

	// ── Enrichment ────────────────────────────────────────────────────────────
	if cfg.Enrichment.Concurrency == 0 {
		cfg.Enrichment.Concurrency = DefaultEnrichmentConcurrency
		// A zero-value Enrichment section means the operator configured
		// nothing; enable the skip optimisation in that case.
		cfg.Enrichment.SkipEnriched = true
	}
	if cfg.Enrichment.LockTTL == 0 {
		cfg.Enrichment.LockTTL = DefaultEnrichmentLockTTL
	}

	// ── Extractor ─────────────────────────────────────────────────────────────
	if cfg.Extractor.BaseURL == "" {
		cfg.Extractor.BaseURL = DefaultExtractorBaseURL
	}
	if cfg.Extractor.Model == "" {
		cfg.Extractor.Model = DefaultExtractorModel
	}
	if cfg.Extractor.Timeout == 0 {
		cfg.Extractor.Timeout = DefaultExtractorTimeout
	}
	if cfg.Extractor.MaxTextChars == 0 {
		cfg.Extractor.MaxTextChars = DefaultExtractorMaxTextChars
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.Mode == "" {
		cfg.Worker.Mode = "local"
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
