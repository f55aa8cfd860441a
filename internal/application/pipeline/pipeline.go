// Package pipeline wires the document flow end to end: text extraction,
// entity recognition, linking, per-substance enrichment, and one idempotent
// graph commit per substance.  It owns the extraction cache keyed by content
// hash and the bounded fan-out across substances.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/application/aggregator"
	"github.com/turtacn/RxGraph-Intelligence/internal/application/enrichment"
	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/extraction"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/profile"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/extractor"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/pdf"
	"github.com/turtacn/RxGraph-Intelligence/internal/intelligence/linker"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

const defaultConcurrency = 4

// Extractor is the external NER collaborator.
type Extractor interface {
	Extract(ctx context.Context, text string) (*extractor.Output, error)
}

// Enricher resolves one substance name against the external sources.
type Enricher interface {
	Enrich(ctx context.Context, name, rxcuiHint string) (*enrichment.Result, error)
}

// TextExtractor converts binary documents to plain text.
type TextExtractor interface {
	Text(content []byte) (string, error)
}

// ExtractionStore persists extraction records and their full results.
// Get returns ErrCodeExtractionNotFound for an unknown key; the result may
// be nil for records persisted before completion.
type ExtractionStore interface {
	Get(ctx context.Context, key string) (*extraction.Record, *extraction.Result, error)
	Put(ctx context.Context, rec *extraction.Record, res *extraction.Result) error
	ListRecent(ctx context.Context, limit int) ([]*extraction.Record, error)
}

// Locker guards cross-process enrichment of one substance key.  A failed
// acquisition means another process is enriching the same substance.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// Publisher emits pipeline events for downstream consumers.
type Publisher interface {
	SubstanceEnriched(ctx context.Context, key string) error
	DocumentProcessed(ctx context.Context, extractionID string) error
}

// BlobStore archives the raw document bytes under the content-hash key.
type BlobStore interface {
	PutDocument(ctx context.Context, key string, content []byte, contentType string) error
}

// SubstanceRef points an API consumer at one resolved substance.
type SubstanceRef struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

// DocumentResult is the complete outcome of processing one document.
type DocumentResult struct {
	ExtractionID string
	CacheHit     bool
	Result       *extraction.Result
	Profile      *profile.Profile
	Substances   []SubstanceRef
	// SourceErrors collects per-substance source failures; a substance with
	// entries here may still be enriched from its other sources.
	SourceErrors map[string][]enrichment.SourceError
	// Failed lists substances whose enrichment or commit failed entirely.
	// Their siblings are unaffected.
	Failed map[string]string
	Stats  graph.ApplyStats
}

// Service is the application-facing pipeline.
type Service struct {
	extractor   Extractor
	pdfText     TextExtractor
	linker      *linker.Linker
	enricher    Enricher
	store       graph.Store
	extractions ExtractionStore
	locker      Locker
	publisher   Publisher
	blobs       BlobStore
	agg         *aggregator.Aggregator
	concurrency int
	logger      logging.Logger
	metrics     *prometheus.AppMetrics
	now         func() time.Time
}

// Options carries the optional collaborators.  Any of them may be nil:
// a nil ExtractionStore disables the cache, a nil Locker disables the
// cross-process guard, a nil Publisher or BlobStore disables that side
// effect.
type Options struct {
	Extractions ExtractionStore
	Locker      Locker
	Publisher   Publisher
	Blobs       BlobStore
	PDF         TextExtractor
	Metrics     *prometheus.AppMetrics
}

// New constructs the pipeline Service.
func New(
	ext Extractor,
	enricher Enricher,
	store graph.Store,
	cfg config.EnrichmentConfig,
	logger logging.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	pdfText := opts.PDF
	if pdfText == nil {
		pdfText = pdf.NewExtractor(logger)
	}
	return &Service{
		extractor:   ext,
		pdfText:     pdfText,
		linker:      linker.New(logger),
		enricher:    enricher,
		store:       store,
		extractions: opts.Extractions,
		locker:      opts.Locker,
		publisher:   opts.Publisher,
		blobs:       opts.Blobs,
		agg:         aggregator.New(logger),
		concurrency: concurrency,
		logger:      logger.Named("pipeline"),
		metrics:     opts.Metrics,
		now:         time.Now,
	}
}

// ProcessDocument runs the full flow for one document.  Submitting the same
// bytes twice is a cache hit: the stored result is returned and no external
// call is made.
func (s *Service) ProcessDocument(ctx context.Context, content []byte, filename string) (*DocumentResult, error) {
	if len(content) == 0 {
		return nil, errors.New(errors.ErrCodeDocumentEmpty, "document is empty")
	}
	extractionID := extraction.ContentHash(content)

	if cached, ok := s.cachedResult(ctx, extractionID); ok {
		return cached, nil
	}

	fileType := "text"
	contentType := "text/plain"
	text := string(content)
	if pdf.IsPDF(content) {
		fileType = "pdf"
		contentType = pdf.ContentTypePDF
		var err error
		text, err = s.pdfText.Text(content)
		if err != nil {
			return nil, err
		}
	}

	s.archive(ctx, extractionID, content, contentType)

	rec := extraction.NewRecord(content, filename, fileType)
	rec.Status = extraction.StatusProcessing
	s.saveRecord(ctx, rec, nil)

	out, err := s.extractor.Extract(ctx, text)
	if err != nil {
		rec.Fail(err.Error())
		s.saveRecord(ctx, rec, nil)
		return nil, err
	}

	entities, links := s.linker.Link(out.Candidates)
	res := &extraction.Result{
		Entities:    entities,
		Links:       links,
		Quality:     out.Quality,
		Meta:        out.Meta,
		Quarantined: out.Quarantined,
		ModelUsed:   out.ModelUsed,
		TokensUsed:  out.TokensUsed,
		ExtractedAt: s.now().UTC(),
	}

	result := &DocumentResult{
		ExtractionID: extractionID,
		Result:       res,
		Profile:      out.Profile,
		SourceErrors: make(map[string][]enrichment.SourceError),
		Failed:       make(map[string]string),
	}

	substanceKeys := s.enrichAll(ctx, res.EnrichableNames(), result)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	attachSubstances(res, result)

	rec.Complete(res)
	if err := s.commitDocument(ctx, rec, out.Profile, links, substanceKeys, result); err != nil {
		rec.Fail(err.Error())
		s.saveRecord(ctx, rec, res)
		return nil, err
	}
	s.saveRecord(ctx, rec, res)
	s.publishDocument(ctx, extractionID)

	s.logger.Info("document processed",
		logging.String("extraction_id", extractionID),
		logging.String("filename", filename),
		logging.Int("entities", len(entities)),
		logging.Int("links", len(links)),
		logging.Int("substances", len(result.Substances)),
		logging.Int("failed", len(result.Failed)))
	return result, nil
}

// enrichAll fans out across the enrichable names with bounded concurrency
// and commits each substance bundle independently.  It returns the resolved
// substance keys in name order.
func (s *Service) enrichAll(ctx context.Context, names []string, result *DocumentResult) []string {
	if len(names) == 0 {
		return nil
	}

	// Substances already enriched in the graph never cost a source call.
	existing := s.findExisting(ctx, names)

	outcomes := make([]substanceOutcome, len(names))

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, name := range names {
		key := graph.NormalizeKey(name)
		if sub, ok := existing[key]; ok {
			outcomes[i] = substanceOutcome{ref: s.ref(name, sub.Key()), ok: true}
			continue
		}

		wg.Add(1)
		go func(i int, name, key string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = s.enrichOne(ctx, name, key)
		}(i, name, key)
	}
	wg.Wait()

	var keys []string
	for i, name := range names {
		o := outcomes[i]
		if len(o.errs) > 0 {
			result.SourceErrors[name] = o.errs
		}
		if o.failure != "" {
			result.Failed[name] = o.failure
			continue
		}
		if o.ok {
			result.Substances = append(result.Substances, o.ref)
			keys = append(keys, o.ref.Key)
		}
		result.Stats.VerticesCreated += o.stats.VerticesCreated
		result.Stats.VerticesUpdated += o.stats.VerticesUpdated
		result.Stats.EdgesCreated += o.stats.EdgesCreated
		result.Stats.StubsCreated += o.stats.StubsCreated
	}
	return keys
}

// attachSubstances writes each mention's resolved substance key and source
// errors back onto the entity records, re-matching by normalized key rather
// than position.  Attachment happens before the result is persisted, so the
// cache path serves the keys too.
func attachSubstances(res *extraction.Result, result *DocumentResult) {
	keys := make(map[string]string, len(result.Substances))
	for _, ref := range result.Substances {
		keys[graph.NormalizeKey(ref.Name)] = ref.Key
	}
	errsByKey := make(map[string][]string)
	for name, errs := range result.SourceErrors {
		k := graph.NormalizeKey(name)
		for _, e := range errs {
			errsByKey[k] = append(errsByKey[k], e.Source+": "+e.Message)
		}
	}
	for name, msg := range result.Failed {
		k := graph.NormalizeKey(name)
		errsByKey[k] = append(errsByKey[k], msg)
	}
	for i := range res.Entities {
		k := graph.NormalizeKey(res.Entities[i].Name)
		res.Entities[i].SubstanceKey = keys[k]
		res.Entities[i].SourceErrors = errsByKey[k]
	}
}

// substanceOutcome is the per-name result of the enrichment fan-out.
type substanceOutcome struct {
	ref     SubstanceRef
	errs    []enrichment.SourceError
	failure string
	stats   graph.ApplyStats
	ok      bool
}

func (s *Service) enrichOne(ctx context.Context, name, key string) (o substanceOutcome) {
	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, key)
		if err != nil {
			s.logger.Warn("enrichment lock error, proceeding unguarded",
				logging.String("substance", name), logging.Err(err))
		} else if !acquired {
			s.logger.Info("substance locked by another process, skipped",
				logging.String("substance", name))
			o.ref = s.ref(name, key)
			o.ok = true
			return o
		} else {
			defer release()
		}
	}

	enr, err := s.enricher.Enrich(ctx, name, "")
	if err != nil {
		o.failure = err.Error()
		return o
	}
	o.errs = enr.Errors

	if enr.Bundle != nil {
		stats, err := s.applyWithRetry(ctx, enr.Bundle)
		if err != nil {
			o.failure = err.Error()
			return o
		}
		o.stats = stats
	}

	if enr.Found {
		o.ref = s.ref(name, enr.SubstanceKey)
		o.ok = true
		if !enr.Skipped && enr.SourcesOK > 0 {
			s.publishSubstance(ctx, enr.SubstanceKey)
		}
	}
	return o
}

// applyWithRetry commits one bundle, retrying once on a conflict before
// giving up on this substance.
func (s *Service) applyWithRetry(ctx context.Context, bundle *graph.Bundle) (graph.ApplyStats, error) {
	stats, err := s.store.Apply(ctx, bundle)
	if err == nil {
		return stats, nil
	}
	s.logger.Warn("bundle apply failed, retrying once",
		logging.String("search_term", bundle.SearchTerm), logging.Err(err))
	stats, err = s.store.Apply(ctx, bundle)
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrCodeGraphApplyFailed, "bundle apply failed twice")
	}
	return stats, nil
}

// commitDocument applies the document-level bundle: the extraction record,
// the owning profile and its interest edges, and the alias links between
// drugs the document itself asserted.
func (s *Service) commitDocument(
	ctx context.Context,
	rec *extraction.Record,
	prof *profile.Profile,
	links []extraction.ResolvedLink,
	substanceKeys []string,
	result *DocumentResult,
) error {
	bundle := graph.NewBundle(rec.ContentKey)
	bundle.AddVertex(rec)
	s.agg.LinkAliases(bundle, links)

	if prof != nil {
		bundle.AddVertex(prof)
		bundle.AddEdge(graph.NewEdge(
			graph.CollectionProfiles, prof.Key(),
			graph.CollectionExtractions, rec.Key(),
			graph.EdgeProfileHasExtraction))
		for _, key := range substanceKeys {
			bundle.AddEdge(graph.NewEdge(
				graph.CollectionProfiles, prof.Key(),
				graph.CollectionSubstances, key,
				graph.EdgeProfileInterestedInSubstance))
		}
	}

	stats, err := s.applyWithRetry(ctx, bundle)
	if err != nil {
		return err
	}
	result.Stats.VerticesCreated += stats.VerticesCreated
	result.Stats.VerticesUpdated += stats.VerticesUpdated
	result.Stats.EdgesCreated += stats.EdgesCreated
	result.Stats.StubsCreated += stats.StubsCreated
	return nil
}

// cachedResult serves a previously completed extraction for the same bytes.
func (s *Service) cachedResult(ctx context.Context, extractionID string) (*DocumentResult, bool) {
	if s.extractions == nil {
		return nil, false
	}
	rec, res, err := s.extractions.Get(ctx, extractionID)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn("extraction cache lookup failed",
				logging.String("extraction_id", extractionID), logging.Err(err))
		}
		s.recordCache(false)
		return nil, false
	}
	if rec.Status != extraction.StatusCompleted || res == nil {
		s.recordCache(false)
		return nil, false
	}
	s.recordCache(true)
	s.logger.Info("extraction cache hit",
		logging.String("extraction_id", extractionID),
		logging.Int("entities", len(res.Entities)))

	result := &DocumentResult{
		ExtractionID: extractionID,
		CacheHit:     true,
		Result:       res,
	}
	for key, sub := range s.findExisting(ctx, res.EnrichableNames()) {
		result.Substances = append(result.Substances, s.ref(sub.Name, key))
	}
	return result, true
}

// GetSubstance loads one substance by its normalized key.
func (s *Service) GetSubstance(ctx context.Context, key string) (*graph.Substance, error) {
	return s.store.GetSubstance(ctx, key)
}

// SearchEntities finds substances matching the query.
func (s *Service) SearchEntities(ctx context.Context, query string, limit int) ([]*graph.Substance, error) {
	return s.store.SearchSubstances(ctx, query, limit)
}

// GetExtraction loads one extraction record and its result by content hash.
func (s *Service) GetExtraction(ctx context.Context, id string) (*extraction.Record, *extraction.Result, error) {
	if s.extractions == nil {
		return nil, nil, errors.New(errors.ErrCodeExtractionNotFound, "extraction persistence is disabled")
	}
	return s.extractions.Get(ctx, id)
}

// ListRecentExtractions returns the most recent extraction records.
func (s *Service) ListRecentExtractions(ctx context.Context, limit int) ([]*extraction.Record, error) {
	if s.extractions == nil {
		return nil, nil
	}
	return s.extractions.ListRecent(ctx, limit)
}

// CollectionCounts reports per-collection vertex counts and the edge total.
func (s *Service) CollectionCounts(ctx context.Context) (map[string]int, error) {
	return s.store.CollectionCounts(ctx)
}

func (s *Service) findExisting(ctx context.Context, names []string) map[string]*graph.Substance {
	if len(names) == 0 {
		return nil
	}
	existing, err := s.store.FindEnrichedByNames(ctx, names)
	if err != nil {
		s.logger.Warn("enriched-substance lookup failed, enriching all", logging.Err(err))
		return nil
	}
	return existing
}

func (s *Service) ref(name, key string) SubstanceRef {
	return SubstanceRef{Name: name, Key: key, URL: "entity/" + key}
}

func (s *Service) saveRecord(ctx context.Context, rec *extraction.Record, res *extraction.Result) {
	if s.extractions == nil {
		return
	}
	if err := s.extractions.Put(ctx, rec, res); err != nil {
		s.logger.Warn("failed to persist extraction record",
			logging.String("extraction_id", rec.ContentKey), logging.Err(err))
	}
}

func (s *Service) archive(ctx context.Context, key string, content []byte, contentType string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.PutDocument(ctx, key, content, contentType); err != nil {
		s.logger.Warn("failed to archive document bytes",
			logging.String("extraction_id", key), logging.Err(err))
	}
}

func (s *Service) publishSubstance(ctx context.Context, key string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.SubstanceEnriched(ctx, key); err != nil {
		s.logger.Warn("failed to publish enrichment event",
			logging.String("substance_key", key), logging.Err(err))
	}
}

func (s *Service) publishDocument(ctx context.Context, extractionID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.DocumentProcessed(ctx, extractionID); err != nil {
		s.logger.Warn("failed to publish document event",
			logging.String("extraction_id", extractionID), logging.Err(err))
	}
}

func (s *Service) recordCache(hit bool) {
	if s.metrics != nil {
		prometheus.RecordCacheAccess(s.metrics, "extraction", hit)
	}
}
