package enrichment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/sources"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

type fakeRegistry struct {
	mu         sync.Mutex
	data       *sources.FDAData
	err        error
	labels     map[string]*sources.LabelRecord
	fetchCalls int
	labelCalls int
}

func (f *fakeRegistry) FetchAll(ctx context.Context, name string) (*sources.FDAData, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	return f.data, f.err
}

func (f *fakeRegistry) LabelBySPLID(ctx context.Context, splID string) (*sources.LabelRecord, bool, error) {
	f.mu.Lock()
	f.labelCalls++
	f.mu.Unlock()
	label, ok := f.labels[splID]
	return label, ok, nil
}

type fakeNomenclature struct {
	mu      sync.Mutex
	data    *sources.RxNormData
	err     error
	gotHint string
	calls   int
}

func (f *fakeNomenclature) FetchAll(ctx context.Context, name, rxcuiHint string) (*sources.RxNormData, error) {
	f.mu.Lock()
	f.calls++
	f.gotHint = rxcuiHint
	f.mu.Unlock()
	return f.data, f.err
}

type fakeChemistry struct {
	mu    sync.Mutex
	byKey map[string]*sources.ChemicalData
	err   error
	calls int
}

func (f *fakeChemistry) MultipleSubstances(ctx context.Context, refs []sources.SubstanceRef) (map[string]*sources.ChemicalData, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]*sources.ChemicalData)
	for _, ref := range refs {
		if data, ok := f.byKey[ref.UNII]; ok {
			out[ref.UNII] = data
			continue
		}
		if data, ok := f.byKey[ref.Name]; ok {
			out[ref.Name] = data
		}
	}
	return out, nil
}

type fakeStore struct {
	substances map[string]*graph.Substance
}

func (f *fakeStore) Apply(ctx context.Context, bundle *graph.Bundle) (graph.ApplyStats, error) {
	return graph.ApplyStats{}, nil
}

func (f *fakeStore) GetSubstance(ctx context.Context, key string) (*graph.Substance, error) {
	if sub, ok := f.substances[key]; ok {
		return sub, nil
	}
	return nil, errors.New(errors.ErrCodeSubstanceNotFound, "substance not found")
}

func (f *fakeStore) FindEnrichedByNames(ctx context.Context, names []string) (map[string]*graph.Substance, error) {
	out := make(map[string]*graph.Substance)
	for _, name := range names {
		key := graph.NormalizeKey(name)
		if sub, ok := f.substances[key]; ok && sub.IsEnriched {
			out[key] = sub
		}
	}
	return out, nil
}

func (f *fakeStore) SearchSubstances(ctx context.Context, query string, limit int) ([]*graph.Substance, error) {
	return nil, nil
}

func (f *fakeStore) CollectionCounts(ctx context.Context) (map[string]int, error) {
	return nil, nil
}

func registryData() *sources.FDAData {
	return &sources.FDAData{
		SearchTerm: "TIBSOVO",
		DrugsFDA: []sources.DrugsFDARecord{{
			ApplicationNumber: "NDA211192",
			OpenFDA: sources.OpenFDA{
				BrandNames:     []string{"TIBSOVO"},
				GenericNames:   []string{"IVOSIDENIB"},
				SubstanceNames: []string{"IVOSIDENIB"},
				RxCUIs:         []string{"2054109"},
				UNIIs:          []string{"Q2PCN8MAM6"},
			},
		}},
	}
}

func nomenclatureData() *sources.RxNormData {
	return &sources.RxNormData{
		SearchTerm:  "TIBSOVO",
		Found:       true,
		RxCUI:       "2054109",
		Name:        "ivosidenib",
		Ingredients: []sources.RxNormConcept{{RxCUI: "2054109", Name: "ivosidenib"}},
	}
}

func chemistryData() map[string]*sources.ChemicalData {
	return map[string]*sources.ChemicalData{
		"Q2PCN8MAM6": {UNII: "Q2PCN8MAM6", Name: "IVOSIDENIB", Formula: "C28H22ClF3N6O3"},
	}
}

func newOrchestrator(reg Registry, nom Nomenclature, chem Chemistry, store graph.Store, cfg config.EnrichmentConfig) *Orchestrator {
	return New(reg, nom, chem, store, cfg, nil, nil)
}

func TestEnrich_AllSourcesSucceed(t *testing.T) {
	reg := &fakeRegistry{data: registryData()}
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{byKey: chemistryData()}

	o := newOrchestrator(reg, nom, chem, &fakeStore{}, config.EnrichmentConfig{})
	result, err := o.Enrich(context.Background(), "TIBSOVO", "")

	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.False(t, result.Skipped)
	assert.Equal(t, 3, result.SourcesOK)
	assert.Empty(t, result.Errors)

	require.NotNil(t, result.Bundle)
	main, ok := result.Bundle.Vertex(graph.CollectionSubstances, graph.NormalizeKey("TIBSOVO")).(*graph.Substance)
	require.True(t, ok, "main substance missing")
	assert.True(t, main.IsEnriched)
	require.NotNil(t, main.EnrichedAt)

	// The ingredient substance got chemistry by UNII.
	sub, ok := result.Bundle.Vertex(graph.CollectionSubstances, graph.NormalizeKey("IVOSIDENIB")).(*graph.Substance)
	require.True(t, ok)
	assert.Equal(t, "C28H22ClF3N6O3", sub.Formula)
	assert.True(t, sub.IsEnriched)
}

func TestEnrich_PartialSourceFailure(t *testing.T) {
	reg := &fakeRegistry{data: registryData()}
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{err: errors.New(errors.ErrCodeSourceUnavailable, "gsrs down")}

	o := newOrchestrator(reg, nom, chem, &fakeStore{}, config.EnrichmentConfig{})
	result, err := o.Enrich(context.Background(), "TIBSOVO", "")

	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, 2, result.SourcesOK)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, SourceGSRS, result.Errors[0].Source)

	// Enriched from two sources despite the third failing.
	main := result.Bundle.Vertex(graph.CollectionSubstances, graph.NormalizeKey("TIBSOVO")).(*graph.Substance)
	assert.True(t, main.IsEnriched)

	// The failed chemistry source is not retried for discovered substances.
	assert.Equal(t, 1, chem.calls)
}

func TestEnrich_AllSourcesFail(t *testing.T) {
	srcErr := errors.New(errors.ErrCodeSourceUnavailable, "down")
	reg := &fakeRegistry{err: srcErr}
	nom := &fakeNomenclature{err: srcErr}
	chem := &fakeChemistry{err: srcErr}

	o := newOrchestrator(reg, nom, chem, &fakeStore{}, config.EnrichmentConfig{})
	result, err := o.Enrich(context.Background(), "TIBSOVO", "")

	require.NoError(t, err, "source failures must not fail the enrichment")
	assert.False(t, result.Found)
	assert.Equal(t, 0, result.SourcesOK)
	assert.Len(t, result.Errors, 3)

	// The sighting is still recorded as a stub.
	stub, ok := result.Bundle.Vertex(graph.CollectionSubstances, graph.NormalizeKey("TIBSOVO")).(*graph.Substance)
	require.True(t, ok)
	assert.False(t, stub.IsEnriched)
}

func TestEnrich_CallerHintWinsOverRegistry(t *testing.T) {
	reg := &fakeRegistry{data: registryData()} // would hint 2054109
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{}

	o := newOrchestrator(reg, nom, chem, &fakeStore{}, config.EnrichmentConfig{})
	_, err := o.Enrich(context.Background(), "TIBSOVO", "999999")

	require.NoError(t, err)
	assert.Equal(t, "999999", nom.gotHint)
}

func TestEnrich_RegistryHintReachesNomenclature(t *testing.T) {
	reg := &fakeRegistry{data: registryData()}
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{}

	o := newOrchestrator(reg, nom, chem, &fakeStore{}, config.EnrichmentConfig{})
	_, err := o.Enrich(context.Background(), "TIBSOVO", "")

	require.NoError(t, err)
	assert.Equal(t, "2054109", nom.gotHint)
}

func TestEnrich_RegistryFailureUnblocksNomenclature(t *testing.T) {
	reg := &fakeRegistry{err: errors.New(errors.ErrCodeSourceUnavailable, "down")}
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{}

	o := newOrchestrator(reg, nom, chem, &fakeStore{}, config.EnrichmentConfig{})
	result, err := o.Enrich(context.Background(), "TIBSOVO", "")

	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, 1, nom.calls)
	assert.Equal(t, "", nom.gotHint)
}

func TestEnrich_SkipsAlreadyEnriched(t *testing.T) {
	enriched := graph.NewSubstance("TIBSOVO")
	enriched.MarkEnriched(time.Now())
	store := &fakeStore{substances: map[string]*graph.Substance{enriched.Key(): enriched}}

	reg := &fakeRegistry{data: registryData()}
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{}

	o := newOrchestrator(reg, nom, chem, store, config.EnrichmentConfig{SkipEnriched: true})
	result, err := o.Enrich(context.Background(), "TIBSOVO", "")

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 0, reg.fetchCalls)
	assert.Equal(t, 0, nom.calls)
	assert.Equal(t, 0, chem.calls)
}

func TestEnrich_StubIsReEnrichedOnLaterReference(t *testing.T) {
	stub := graph.NewSubstance("TIBSOVO")
	store := &fakeStore{substances: map[string]*graph.Substance{stub.Key(): stub}}

	reg := &fakeRegistry{data: registryData()}
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{byKey: chemistryData()}

	o := newOrchestrator(reg, nom, chem, store, config.EnrichmentConfig{SkipEnriched: true})
	result, err := o.Enrich(context.Background(), "TIBSOVO", "")

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.True(t, result.Found)
	assert.Equal(t, 1, reg.fetchCalls)
}

func TestEnrich_FetchesLabelsForExactMatches(t *testing.T) {
	data := registryData()
	data.NDC = []sources.NDCRecord{{
		ProductNDC:  "71334-100",
		BrandName:   "TIBSOVO",
		GenericName: "IVOSIDENIB",
		SPLID:       "spl-1",
	}}
	reg := &fakeRegistry{
		data: data,
		labels: map[string]*sources.LabelRecord{
			"spl-1": {SetID: "set-1", IndicationsAndUsage: []string{"For AML."}},
		},
	}
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{}

	o := newOrchestrator(reg, nom, chem, &fakeStore{}, config.EnrichmentConfig{})
	result, err := o.Enrich(context.Background(), "TIBSOVO", "")

	require.NoError(t, err)
	assert.Equal(t, 1, reg.labelCalls)
	labels := result.Bundle.Vertices(graph.CollectionDrugLabels)
	require.Len(t, labels, 1)
	assert.Equal(t, "For AML.", labels[0].(*graph.DrugLabel).IndicationsAndUsage)
}

func TestEnrich_ContextCancelled(t *testing.T) {
	reg := &fakeRegistry{data: registryData()}
	nom := &fakeNomenclature{data: nomenclatureData()}
	chem := &fakeChemistry{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newOrchestrator(reg, nom, chem, &fakeStore{}, config.EnrichmentConfig{})
	_, err := o.Enrich(ctx, "TIBSOVO", "")

	assert.ErrorIs(t, err, context.Canceled)
}
