package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DocumentsClient submits documents for processing and reads stored
// extraction results.
type DocumentsClient struct {
	client *Client
}

// Entity is one extracted pharmaceutical mention.  SubstanceID is the
// normalized graph key the mention resolved to; Errors lists non-fatal
// source failures hit while enriching it.
type Entity struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Confidence     int      `json:"confidence"`
	LinkedName     string   `json:"linked_name,omitempty"`
	LinkConfidence int      `json:"link_confidence,omitempty"`
	Relationship   string   `json:"relationship,omitempty"`
	SubstanceID    string   `json:"substance_id,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Link is one resolved entity-to-entity relationship.
type Link struct {
	FromName     string `json:"from_name"`
	ToName       string `json:"to_name"`
	Relationship string `json:"relationship"`
	Confidence   int    `json:"confidence"`
}

// SubstanceRef points at one resolved substance.
type SubstanceRef struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

// GraphStats summarizes graph writes for one document.
type GraphStats struct {
	VerticesCreated int `json:"vertices_created"`
	VerticesUpdated int `json:"vertices_updated"`
	EdgesCreated    int `json:"edges_created"`
	StubsCreated    int `json:"stubs_created"`
}

// ProcessResult is the outcome of processing one document.
type ProcessResult struct {
	ExtractionID string                   `json:"extraction_id"`
	CacheHit     bool                     `json:"cache_hit"`
	Entities     []Entity                 `json:"entities"`
	Links        []Link                   `json:"links"`
	Substances   []SubstanceRef           `json:"substances"`
	SourceErrors map[string][]SourceError `json:"source_errors,omitempty"`
	Failed       map[string]string        `json:"failed,omitempty"`
	Stats        GraphStats               `json:"stats"`
}

// SourceError is one non-fatal per-source enrichment failure.
type SourceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Extraction is one stored extraction record.
type Extraction struct {
	ContentKey  string    `json:"content_key"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"file_type"`
	Status      string    `json:"status"`
	EntityCount int       `json:"entity_count"`
	LinkCount   int       `json:"link_count"`
	ModelUsed   string    `json:"model_used,omitempty"`
	TokensUsed  int       `json:"tokens_used,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExtractionDetail bundles a record with its entities and links.
type ExtractionDetail struct {
	Record   Extraction `json:"record"`
	Entities []Entity   `json:"entities,omitempty"`
	Links    []Link     `json:"links,omitempty"`
}

// ProcessText submits plain text for processing.
func (d *DocumentsClient) ProcessText(ctx context.Context, text, filename string) (*ProcessResult, error) {
	body := map[string]string{"text": text, "filename": filename}
	var result ProcessResult
	if err := d.client.post(ctx, "/api/v1/documents", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Upload submits a binary document (PDF or text) as a multipart upload.
func (d *DocumentsClient) Upload(ctx context.Context, filename string, content io.Reader) (*ProcessResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	// Multipart bodies bypass the JSON request helper.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.client.baseURL+"/api/v1/documents/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", d.client.userAgent)

	resp, err := d.client.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil {
			apiErr.Message = string(respBody)
		}
		return nil, apiErr
	}

	var result ProcessResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// Get fetches one stored extraction by its content key.
func (d *DocumentsClient) Get(ctx context.Context, contentKey string) (*ExtractionDetail, error) {
	if contentKey == "" {
		return nil, fmt.Errorf("client: contentKey is required")
	}
	var detail ExtractionDetail
	path := "/api/v1/extractions/" + url.PathEscape(contentKey)
	if err := d.client.get(ctx, path, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListRecent returns the most recently processed extractions.
func (d *DocumentsClient) ListRecent(ctx context.Context, limit int) ([]Extraction, error) {
	path := "/api/v1/extractions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Extractions []Extraction `json:"extractions"`
	}
	if err := d.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Extractions, nil
}
