// Package enrichment orchestrates the fan-out to the three external
// knowledge sources for one substance name and assembles their partial
// results into a single graph bundle.
//
// The orchestrator never fails an enrichment because one source failed:
// each source error becomes a SourceError entry on the result, and the
// substance is marked enriched as long as at least one source delivered.
// Only when every source fails does the substance stay a stub.
package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/application/aggregator"
	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/sources"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// Source names as they appear in SourceError entries and metrics labels.
const (
	SourceFDA    = "fda"
	SourceRxNorm = "rxnorm"
	SourceGSRS   = "gsrs"
)

// Registry is the drug-registry source (FDA).
type Registry interface {
	FetchAll(ctx context.Context, name string) (*sources.FDAData, error)
	LabelBySPLID(ctx context.Context, splID string) (*sources.LabelRecord, bool, error)
}

// Nomenclature is the drug-nomenclature source (RxNorm).
type Nomenclature interface {
	FetchAll(ctx context.Context, name, rxcuiHint string) (*sources.RxNormData, error)
}

// Chemistry is the chemical-substance source (GSRS).
type Chemistry interface {
	MultipleSubstances(ctx context.Context, refs []sources.SubstanceRef) (map[string]*sources.ChemicalData, error)
}

// SourceError records one source's failure without failing the enrichment.
type SourceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Result is the outcome of enriching one substance name.
type Result struct {
	SearchTerm   string
	SubstanceKey string
	Found        bool
	// Skipped is true when the substance was already enriched and no
	// external call was made.
	Skipped bool
	// SourcesOK counts the sources that completed without error.
	SourcesOK int
	Bundle    *graph.Bundle
	Errors    []SourceError
}

// Orchestrator fans one substance name out to the three sources and merges
// whatever came back.
type Orchestrator struct {
	registry     Registry
	nomenclature Nomenclature
	chemistry    Chemistry
	store        graph.Store
	agg          *aggregator.Aggregator
	cfg          config.EnrichmentConfig
	logger       logging.Logger
	metrics      *prometheus.AppMetrics
	now          func() time.Time
}

// New constructs an Orchestrator.  The store is consulted only for the
// skip-if-enriched check; passing nil disables it.  Metrics may be nil.
func New(
	registry Registry,
	nomenclature Nomenclature,
	chemistry Chemistry,
	store graph.Store,
	cfg config.EnrichmentConfig,
	logger logging.Logger,
	metrics *prometheus.AppMetrics,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Orchestrator{
		registry:     registry,
		nomenclature: nomenclature,
		chemistry:    chemistry,
		store:        store,
		agg:          aggregator.New(logger),
		cfg:          cfg,
		logger:       logger.Named("enrichment"),
		metrics:      metrics,
		now:          time.Now,
	}
}

// Enrich resolves one substance name against all three sources.
//
// The registry and nomenclature lookups run concurrently; the registry
// passes any concept id it finds to the nomenclature lookup through a
// buffered channel so the nomenclature source can skip name resolution.  A
// caller-supplied rxcuiHint wins over the registry's.  The chemistry source
// is queried concurrently for the name itself and again, after aggregation,
// for the substances the other two sources surfaced.
//
// Enrich returns an error only for context cancellation; source failures
// are reported in Result.Errors and a substance with every source failed
// simply stays a stub.
func (o *Orchestrator) Enrich(ctx context.Context, name, rxcuiHint string) (*Result, error) {
	start := o.now()
	key := graph.NormalizeKey(name)
	result := &Result{SearchTerm: name, SubstanceKey: key}

	if o.cfg.SkipEnriched && o.store != nil {
		sub, err := o.store.GetSubstance(ctx, key)
		if err == nil && sub.IsEnriched {
			o.logger.Debug("substance already enriched, skipping",
				logging.String("substance", name))
			result.Skipped = true
			result.Found = true
			o.record("skipped", 0, o.now().Sub(start))
			return result, nil
		}
		if err != nil && !errors.IsNotFound(err) {
			o.logger.Warn("enrichment pre-check failed, enriching anyway",
				logging.String("substance", name), logging.Err(err))
		}
	}

	fdaData, rxData, primaryChem, srcErrs := o.fanOut(ctx, name, rxcuiHint)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	result.Errors = srcErrs
	result.SourcesOK = 3 - len(srcErrs)

	bundle, splMap := o.agg.BuildBundle(name, fdaData, rxData)
	o.fetchLabels(ctx, bundle, splMap)

	chem := primaryChem
	if result.sourceOK(SourceGSRS) {
		if more := o.fetchRemainingChemistry(ctx, bundle, chem); more != nil {
			if chem == nil {
				chem = more
			} else {
				for k, v := range more {
					if _, ok := chem[k]; !ok {
						chem[k] = v
					}
				}
			}
		}
	}
	o.agg.ApplyChemistry(bundle, chem, o.now().UTC())

	if !bundle.Found {
		// Nothing resolved: persist the stub so the sighting is recorded
		// and a later reference can retry.
		bundle.AddVertex(graph.NewSubstance(name))
		result.Bundle = bundle
		o.logger.Info("enrichment found nothing",
			logging.String("substance", name),
			logging.Int("source_errors", len(srcErrs)))
		o.record("not_found", result.SourcesOK, o.now().Sub(start))
		return result, nil
	}

	main := o.agg.EnsureMainSubstance(bundle, name)
	if main != nil && result.SourcesOK > 0 {
		main.MarkEnriched(o.now().UTC())
	}

	result.Found = true
	result.Bundle = bundle
	o.logger.Info("enrichment completed",
		logging.String("substance", name),
		logging.Int("sources_ok", result.SourcesOK),
		logging.Int("vertices", bundle.VertexCount()),
		logging.Int("edges", bundle.EdgeCount()))
	o.record("ok", result.SourcesOK, o.now().Sub(start))
	return result, nil
}

// fanOut issues the three source lookups concurrently and returns whatever
// each produced plus one SourceError per failing source.
func (o *Orchestrator) fanOut(ctx context.Context, name, rxcuiHint string) (*sources.FDAData, *sources.RxNormData, map[string]*sources.ChemicalData, []SourceError) {
	var (
		wg      sync.WaitGroup
		fdaData *sources.FDAData
		rxData  *sources.RxNormData
		chem    map[string]*sources.ChemicalData
		fdaErr  error
		rxErr   error
		chemErr error
	)

	// The registry always reports a hint, possibly empty, so the
	// nomenclature goroutine never blocks on a failed registry call.
	hintCh := make(chan string, 1)

	wg.Add(3)
	go func() {
		defer wg.Done()
		start := o.now()
		fdaData, fdaErr = o.registry.FetchAll(ctx, name)
		hint := ""
		if fdaData != nil {
			hint = fdaData.RxCUIHint()
		}
		hintCh <- hint
		o.recordSource(SourceFDA, fdaData != nil && !fdaData.Empty(), fdaErr, o.now().Sub(start))
	}()
	go func() {
		defer wg.Done()
		start := o.now()
		hint := rxcuiHint
		if hint == "" {
			select {
			case hint = <-hintCh:
			case <-ctx.Done():
				rxErr = ctx.Err()
				return
			}
		}
		rxData, rxErr = o.nomenclature.FetchAll(ctx, name, hint)
		o.recordSource(SourceRxNorm, rxData != nil && rxData.Found, rxErr, o.now().Sub(start))
	}()
	go func() {
		defer wg.Done()
		start := o.now()
		chem, chemErr = o.chemistry.MultipleSubstances(ctx, []sources.SubstanceRef{{Name: name}})
		o.recordSource(SourceGSRS, len(chem) > 0, chemErr, o.now().Sub(start))
	}()
	wg.Wait()

	var srcErrs []SourceError
	for _, e := range []struct {
		source string
		err    error
	}{
		{SourceFDA, fdaErr},
		{SourceRxNorm, rxErr},
		{SourceGSRS, chemErr},
	} {
		if e.err != nil {
			srcErrs = append(srcErrs, SourceError{Source: e.source, Message: e.err.Error()})
			o.logger.Warn("source failed",
				logging.String("substance", name),
				logging.String("source", e.source),
				logging.Err(e.err))
		}
	}
	return fdaData, rxData, chem, srcErrs
}

// fetchLabels loads the product labels for exact-match drugs concurrently
// and attaches them to the bundle.  Label failures only cost the label.
func (o *Orchestrator) fetchLabels(ctx context.Context, bundle *graph.Bundle, splMap map[string]string) {
	if len(splMap) == 0 {
		return
	}

	type labelResult struct {
		drugKey string
		splID   string
		label   *sources.LabelRecord
	}
	results := make(chan labelResult, len(splMap))

	var wg sync.WaitGroup
	for drugKey, splID := range splMap {
		wg.Add(1)
		go func(drugKey, splID string) {
			defer wg.Done()
			label, found, err := o.registry.LabelBySPLID(ctx, splID)
			if err != nil {
				o.logger.Warn("label fetch failed",
					logging.String("spl_id", splID), logging.Err(err))
				return
			}
			if found {
				results <- labelResult{drugKey: drugKey, splID: splID, label: label}
			}
		}(drugKey, splID)
	}
	wg.Wait()
	close(results)

	for r := range results {
		o.agg.AttachLabel(bundle, r.drugKey, r.splID, r.label)
	}
}

// fetchRemainingChemistry looks up chemistry for bundle substances the
// primary lookup did not cover.
func (o *Orchestrator) fetchRemainingChemistry(ctx context.Context, bundle *graph.Bundle, have map[string]*sources.ChemicalData) map[string]*sources.ChemicalData {
	refs := o.agg.ChemistryRefs(bundle)
	missing := refs[:0]
	for _, ref := range refs {
		if have != nil {
			if _, ok := have[ref.UNII]; ok && ref.UNII != "" {
				continue
			}
			if _, ok := have[ref.Name]; ok && ref.Name != "" {
				continue
			}
		}
		missing = append(missing, ref)
	}
	if len(missing) == 0 {
		return nil
	}

	chem, err := o.chemistry.MultipleSubstances(ctx, missing)
	if err != nil {
		o.logger.Warn("chemistry lookup for discovered substances failed",
			logging.String("search_term", bundle.SearchTerm), logging.Err(err))
		return nil
	}
	return chem
}

func (r *Result) sourceOK(source string) bool {
	for _, e := range r.Errors {
		if e.Source == source {
			return false
		}
	}
	return true
}

func (o *Orchestrator) record(status string, sourcesOK int, elapsed time.Duration) {
	if o.metrics != nil {
		prometheus.RecordEnrichment(o.metrics, status, sourcesOK, elapsed)
	}
}

func (o *Orchestrator) recordSource(source string, found bool, err error, elapsed time.Duration) {
	if o.metrics != nil {
		prometheus.RecordSourceRequest(o.metrics, source, found, err, elapsed)
	}
}
