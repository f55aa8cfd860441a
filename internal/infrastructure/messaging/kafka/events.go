package kafka

import (
	"context"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

// messagePublisher is the slice of Producer the event publisher needs.
type messagePublisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// EventPublisher wraps a Producer behind the two domain events the
// processing pipeline emits. Messages are keyed so all events for one
// substance or one extraction land on the same partition.
type EventPublisher struct {
	producer messagePublisher
	source   string
	logger   logging.Logger
}

func NewEventPublisher(producer messagePublisher, source string, logger logging.Logger) *EventPublisher {
	if source == "" {
		source = "rxgraph-api"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &EventPublisher{
		producer: producer,
		source:   source,
		logger:   logger.Named("event_publisher"),
	}
}

// SubstanceEnriched emits a substance.enriched event for the given key.
func (p *EventPublisher) SubstanceEnriched(ctx context.Context, key string) error {
	return p.emit(ctx, TopicSubstanceEnriched, key, SubstanceEnrichedPayload{
		SubstanceKey: key,
		EnrichedAt:   time.Now().UTC(),
	})
}

// DocumentProcessed emits a document.processed event for the given
// extraction.
func (p *EventPublisher) DocumentProcessed(ctx context.Context, extractionID string) error {
	return p.emit(ctx, TopicDocumentProcessed, extractionID, DocumentProcessedPayload{
		ExtractionID: extractionID,
		ProcessedAt:  time.Now().UTC(),
	})
}

// EnrichmentFailed emits a substance.enrichment_failed event after retries
// for one search term are exhausted.
func (p *EventPublisher) EnrichmentFailed(ctx context.Context, searchTerm, reason string) error {
	return p.emit(ctx, TopicEnrichmentFailed, searchTerm, EnrichmentFailedPayload{
		SearchTerm: searchTerm,
		Reason:     reason,
		FailedAt:   time.Now().UTC(),
	})
}

func (p *EventPublisher) emit(ctx context.Context, topic, key string, payload interface{}) error {
	env, err := NewEventEnvelope(topic, p.source, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic)
	if err != nil {
		return err
	}
	msg.Key = []byte(key)

	if err := p.producer.Publish(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("key", key))
	return nil
}
