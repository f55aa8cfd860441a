package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntities_Get(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/entities/ivosidenib", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Substance{
			Key:        "ivosidenib",
			Name:       "ivosidenib",
			UNII:       "Q2PCN8MAM6",
			IsEnriched: true,
		})
	}
	c := newTestClient(t, handler)

	sub, err := c.Entities().Get(context.Background(), "ivosidenib")
	require.NoError(t, err)
	assert.Equal(t, "Q2PCN8MAM6", sub.UNII)
	assert.True(t, sub.IsEnriched)
}

func TestEntities_Get_NotFound(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "SUB_001", "message": "substance not found"}`))
	}
	c := newTestClient(t, handler)

	_, err := c.Entities().Get(context.Background(), "nosuchdrug")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
}

func TestEntities_Get_EmptyKey(t *testing.T) {
	c, _ := NewClient("http://api.example.com")
	_, err := c.Entities().Get(context.Background(), "")
	assert.Error(t, err)
}

func TestEntities_Search(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/entities/search", r.URL.Path)
		assert.Equal(t, "ivo", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(SearchResult{
			Query:   "ivo",
			Count:   1,
			Results: []Substance{{Key: "ivosidenib", Name: "ivosidenib"}},
		})
	}
	c := newTestClient(t, handler)

	result, err := c.Entities().Search(context.Background(), "ivo", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	require.Len(t, result.Results, 1)
}

func TestEntities_Search_EmptyQuery(t *testing.T) {
	c, _ := NewClient("http://api.example.com")
	_, err := c.Entities().Search(context.Background(), "", 10)
	assert.Error(t, err)
}

func TestEntities_GraphCounts(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/graph/counts", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"counts": map[string]int{"substances": 12, "edges": 30},
		})
	}
	c := newTestClient(t, handler)

	counts, err := c.Entities().GraphCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, counts["substances"])
	assert.Equal(t, 30, counts["edges"])
}
