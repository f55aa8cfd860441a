package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPRequestSize     HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// Extraction Layer
	ExtractionsTotal      CounterVec
	ExtractionDuration    HistogramVec
	ExtractionCacheHits   CounterVec
	ExtractionCacheMisses CounterVec
	ExtractionEntityCount HistogramVec
	ExtractionQuarantined CounterVec

	// Enrichment Layer
	EnrichmentsTotal      CounterVec
	EnrichmentDuration    HistogramVec
	EnrichmentSkippedTotal CounterVec
	EnrichmentLockContention CounterVec

	// External Source Layer
	SourceRequestsTotal  CounterVec
	SourceRequestDuration HistogramVec
	SourceRetriesTotal   CounterVec
	SourceNotFoundTotal  CounterVec

	// Graph Layer
	GraphVerticesTotal  GaugeVec
	GraphEdgesTotal     GaugeVec
	GraphApplyDuration  HistogramVec
	GraphApplyConflicts CounterVec
	GraphStubsCreated   CounterVec

	// Pipeline Layer
	PipelineDocumentsTotal CounterVec
	PipelineDuration       HistogramVec
	PipelineActiveWorkers  GaugeVec

	// Infrastructure Layer
	DBConnectionPoolSize   GaugeVec
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessagePublishTotal    CounterVec
	MessageProcessDuration HistogramVec

	// System Health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultPipelineDurationBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600}
	DefaultSourceDurationBuckets   = []float64{.1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultSizeBuckets             = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
	DefaultDBDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultEntityCountBuckets      = []float64{0, 1, 2, 5, 10, 20, 50, 100}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPRequestSize = collector.RegisterHistogram("http_request_size_bytes", "HTTP request size", DefaultSizeBuckets, "method", "path")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response size", DefaultSizeBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Extraction
	m.ExtractionsTotal = collector.RegisterCounter("extractions_total", "Documents processed by the extractor", "status")
	m.ExtractionDuration = collector.RegisterHistogram("extraction_duration_seconds", "Entity extraction duration", DefaultPipelineDurationBuckets, "file_type")
	m.ExtractionCacheHits = collector.RegisterCounter("extraction_cache_hits_total", "Extraction cache hits by content hash")
	m.ExtractionCacheMisses = collector.RegisterCounter("extraction_cache_misses_total", "Extraction cache misses by content hash")
	m.ExtractionEntityCount = collector.RegisterHistogram("extraction_entity_count", "Entities extracted per document", DefaultEntityCountBuckets, "entity_type")
	m.ExtractionQuarantined = collector.RegisterCounter("extraction_quarantined_total", "Candidate entities rejected at the boundary", "reason")

	// Enrichment
	m.EnrichmentsTotal = collector.RegisterCounter("enrichments_total", "Substance enrichment attempts", "status")
	m.EnrichmentDuration = collector.RegisterHistogram("enrichment_duration_seconds", "Substance enrichment duration", DefaultSourceDurationBuckets, "source_count")
	m.EnrichmentSkippedTotal = collector.RegisterCounter("enrichments_skipped_total", "Enrichments skipped because the substance was already enriched")
	m.EnrichmentLockContention = collector.RegisterCounter("enrichment_lock_contention_total", "Enrichment attempts that found the distributed lock held")

	// External Sources
	m.SourceRequestsTotal = collector.RegisterCounter("source_requests_total", "External source lookups", "source", "status")
	m.SourceRequestDuration = collector.RegisterHistogram("source_request_duration_seconds", "External source lookup duration", DefaultSourceDurationBuckets, "source")
	m.SourceRetriesTotal = collector.RegisterCounter("source_retries_total", "External source request retries", "source", "reason")
	m.SourceNotFoundTotal = collector.RegisterCounter("source_not_found_total", "Lookups where the source had no record", "source")

	// Graph
	m.GraphVerticesTotal = collector.RegisterGauge("graph_vertices_total", "Graph vertices total", "collection")
	m.GraphEdgesTotal = collector.RegisterGauge("graph_edges_total", "Graph edges total", "collection")
	m.GraphApplyDuration = collector.RegisterHistogram("graph_apply_duration_seconds", "Graph bundle apply duration", DefaultDBDurationBuckets, "store")
	m.GraphApplyConflicts = collector.RegisterCounter("graph_apply_conflicts_total", "Apply attempts that hit a persistence conflict", "store")
	m.GraphStubsCreated = collector.RegisterCounter("graph_stubs_created_total", "Stub vertices created for dangling edge endpoints", "collection")

	// Pipeline
	m.PipelineDocumentsTotal = collector.RegisterCounter("pipeline_documents_total", "Documents run through the full pipeline", "status")
	m.PipelineDuration = collector.RegisterHistogram("pipeline_duration_seconds", "End-to-end pipeline duration", DefaultPipelineDurationBuckets, "cached")
	m.PipelineActiveWorkers = collector.RegisterGauge("pipeline_active_workers", "Concurrent enrichment workers in flight")

	// Infrastructure
	m.DBConnectionPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessagePublishTotal = collector.RegisterCounter("mq_publish_total", "Messages published", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	// System Health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

func RecordSourceRequest(metrics *AppMetrics, source string, found bool, err error, duration time.Duration) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case !found:
		status = "not_found"
		metrics.SourceNotFoundTotal.WithLabelValues(source).Inc()
	}
	metrics.SourceRequestsTotal.WithLabelValues(source, status).Inc()
	metrics.SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RecordEnrichment(metrics *AppMetrics, status string, sourcesOK int, duration time.Duration) {
	metrics.EnrichmentsTotal.WithLabelValues(status).Inc()
	metrics.EnrichmentDuration.WithLabelValues(fmt.Sprintf("%d", sourcesOK)).Observe(duration.Seconds())
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error", "error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}
