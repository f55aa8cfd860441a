package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxGraph-Intelligence/internal/config"
)

func newTestRxNormClient(t *testing.T, handler http.Handler) *RxNormClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.SourceConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}
	return NewRxNormClient(cfg, testRetryPolicy(), nil)
}

// rxnormFixture serves the endpoints FetchAll touches for rxcui 2054109.
func rxnormFixture(nameLookups *int32) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rxcui.json", func(w http.ResponseWriter, r *http.Request) {
		if nameLookups != nil {
			atomic.AddInt32(nameLookups, 1)
		}
		w.Write([]byte(`{"idGroup":{"rxnormId":["2054109"]}}`))
	})
	mux.HandleFunc("/rxcui/2054109/properties.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties":{"rxcui":"2054109","name":"ivosidenib","tty":"IN"}}`))
	})
	mux.HandleFunc("/rxcui/2054109/allrelated.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"allRelatedGroup":{"conceptGroup":[
			{"tty":"IN","conceptProperties":[{"rxcui":"2054109","name":"ivosidenib","tty":"IN"}]},
			{"tty":"BN","conceptProperties":[{"rxcui":"2054115","name":"Tibsovo","tty":"BN"}]},
			{"tty":"DF","conceptProperties":[{"rxcui":"317541","name":"Oral Tablet","tty":"DF"}]}
		]}}`))
	})
	mux.HandleFunc("/rxcui/2054109/ndcs.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ndcGroup":{"ndcList":{"ndc":["71334-0100-60"]}}}`))
	})
	mux.HandleFunc("/interaction/interaction.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"interactionTypeGroup":[{"interactionType":[{"interactionPair":[{
			"severity":"high",
			"description":"Ivosidenib may decrease concentrations of itraconazole.",
			"interactionConcept":[
				{"minConceptItem":{"rxcui":"2054109","name":"ivosidenib"}},
				{"minConceptItem":{"rxcui":"28031","name":"itraconazole"}}
			]}]}]}]}`))
	})
	return mux
}

func TestRxNormClient_FetchAll_ResolvesByName(t *testing.T) {
	var nameLookups int32
	client := newTestRxNormClient(t, rxnormFixture(&nameLookups))

	data, err := client.FetchAll(context.Background(), "ivosidenib", "")

	require.NoError(t, err)
	require.True(t, data.Found)
	assert.Equal(t, "2054109", data.RxCUI)
	assert.Equal(t, "ivosidenib", data.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&nameLookups))

	require.Len(t, data.Ingredients, 1)
	assert.Equal(t, "ivosidenib", data.Ingredients[0].Name)
	require.Len(t, data.Brands, 1)
	assert.Equal(t, "Tibsovo", data.Brands[0].Name)
	assert.Equal(t, []string{"71334-0100-60"}, data.NDCCodes)

	require.Len(t, data.Interactions, 1)
	di := data.Interactions[0]
	assert.Equal(t, "high", di.Severity)
	assert.Equal(t, "ivosidenib", di.Source.Name)
	assert.Equal(t, "itraconazole", di.Target.Name)
}

func TestRxNormClient_FetchAll_HintSkipsNameResolution(t *testing.T) {
	var nameLookups int32
	client := newTestRxNormClient(t, rxnormFixture(&nameLookups))

	data, err := client.FetchAll(context.Background(), "TIBSOVO", "2054109")

	require.NoError(t, err)
	assert.True(t, data.Found)
	assert.Equal(t, "2054109", data.RxCUI)
	assert.Equal(t, int32(0), atomic.LoadInt32(&nameLookups))
}

func TestRxNormClient_FetchAll_ApproximateFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rxcui.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"idGroup":{}}`))
	})
	mux.HandleFunc("/approximateTerm.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("maxEntries"))
		w.Write([]byte(`{"approximateGroup":{"candidate":[{"rxcui":"1234","name":"ivosidenib","score":"88"}]}}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	client := newTestRxNormClient(t, mux)

	data, err := client.FetchAll(context.Background(), "ivosydenib", "")

	require.NoError(t, err)
	assert.True(t, data.Found)
	assert.Equal(t, "1234", data.RxCUI)
}

func TestRxNormClient_FetchAll_UnknownNameReturnsSuggestions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rxcui.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"idGroup":{}}`))
	})
	mux.HandleFunc("/approximateTerm.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"approximateGroup":{}}`))
	})
	mux.HandleFunc("/spellingsuggestions.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"suggestionGroup":{"suggestionList":{"suggestion":["ivosidenib"]}}}`))
	})
	client := newTestRxNormClient(t, mux)

	data, err := client.FetchAll(context.Background(), "ivosibenex", "")

	require.NoError(t, err)
	assert.False(t, data.Found)
	assert.Empty(t, data.RxCUI)
	assert.Equal(t, []string{"ivosidenib"}, data.Suggestions)
}

func TestRxNormClient_FetchAll_PartialEndpointFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rxcui/42/properties.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties":{"rxcui":"42","name":"aspirin"}}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client := newTestRxNormClient(t, mux)

	data, err := client.FetchAll(context.Background(), "aspirin", "42")

	require.NoError(t, err)
	assert.True(t, data.Found)
	assert.Equal(t, "aspirin", data.Name)
	assert.Empty(t, data.Interactions)
}

func TestRxNormClient_FetchAll_AllEndpointsDown(t *testing.T) {
	client := newTestRxNormClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	data, err := client.FetchAll(context.Background(), "aspirin", "42")

	require.Error(t, err)
	assert.Nil(t, data)
}
