package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Redis.KeyPrefix)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultRxNormBaseURL, cfg.Sources.RxNorm.BaseURL)
	assert.Equal(t, DefaultSourceTimeout, cfg.Sources.GSRS.Timeout)
	assert.Equal(t, DefaultEnrichmentConcurrency, cfg.Enrichment.Concurrency)
	assert.True(t, cfg.Enrichment.SkipEnriched)
	assert.Equal(t, DefaultExtractorMaxTextChars, cfg.Extractor.MaxTextChars)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Sources.FDA.BaseURL = "http://fda.local"
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "http://fda.local", cfg.Sources.FDA.BaseURL)
}

func TestApplyDefaults_NilConfig(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
