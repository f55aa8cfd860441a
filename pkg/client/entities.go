package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EntitiesClient reads resolved substances and graph statistics.
type EntitiesClient struct {
	client *Client
}

// Substance is one resolved substance vertex.
type Substance struct {
	Key             string     `json:"key"`
	Name            string     `json:"name"`
	UNII            string     `json:"unii,omitempty"`
	RxCUI           string     `json:"rxcui,omitempty"`
	Formula         string     `json:"formula,omitempty"`
	MolecularWeight float64    `json:"molecular_weight,omitempty"`
	SMILES          string     `json:"smiles,omitempty"`
	InChIKey        string     `json:"inchikey,omitempty"`
	CASNumber       string     `json:"cas_number,omitempty"`
	PubChemID       string     `json:"pubchem_id,omitempty"`
	SubstanceClass  string     `json:"substance_class,omitempty"`
	IsEnriched      bool       `json:"is_enriched"`
	EnrichedAt      *time.Time `json:"enriched_at,omitempty"`
}

// SearchResult is the response to an entity search.
type SearchResult struct {
	Query   string      `json:"query"`
	Count   int         `json:"count"`
	Results []Substance `json:"results"`
}

// Get fetches one substance by its key; the server normalizes the key.
func (e *EntitiesClient) Get(ctx context.Context, key string) (*Substance, error) {
	if key == "" {
		return nil, fmt.Errorf("client: key is required")
	}
	var sub Substance
	if err := e.client.get(ctx, "/api/v1/entities/"+url.PathEscape(key), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Search finds substances by name or key, case-insensitively.
func (e *EntitiesClient) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("client: query is required")
	}
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var result SearchResult
	if err := e.client.get(ctx, "/api/v1/entities/search?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GraphCounts returns per-collection vertex counts and the edge total.
func (e *EntitiesClient) GraphCounts(ctx context.Context) (map[string]int, error) {
	var resp struct {
		Counts map[string]int `json:"counts"`
	}
	if err := e.client.get(ctx, "/api/v1/graph/counts", &resp); err != nil {
		return nil, err
	}
	return resp.Counts, nil
}
