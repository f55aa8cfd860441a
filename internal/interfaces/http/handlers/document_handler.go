package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/RxGraph-Intelligence/internal/application/enrichment"
	"github.com/turtacn/RxGraph-Intelligence/internal/application/pipeline"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/extraction"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// DocumentService is the slice of the pipeline the document handler uses.
type DocumentService interface {
	ProcessDocument(ctx context.Context, content []byte, filename string) (*pipeline.DocumentResult, error)
	GetExtraction(ctx context.Context, id string) (*extraction.Record, *extraction.Result, error)
	ListRecentExtractions(ctx context.Context, limit int) ([]*extraction.Record, error)
}

// DocumentHandler accepts documents for processing and exposes stored
// extraction results.
type DocumentHandler struct {
	service        DocumentService
	maxUploadBytes int64
	logger         logging.Logger
}

func NewDocumentHandler(service DocumentService, maxUploadBytes int64, log logging.Logger) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20 // 20MB
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DocumentHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         log.Named("document_handler"),
	}
}

// ProcessTextRequest is the body for POST /documents.
type ProcessTextRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// EntityDTO is one extracted entity in a response.  SubstanceID carries the
// normalized graph key the mention resolved to; Errors lists the non-fatal
// source failures hit while enriching it.
type EntityDTO struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Confidence     int      `json:"confidence"`
	LinkedName     string   `json:"linked_name,omitempty"`
	LinkConfidence int      `json:"link_confidence,omitempty"`
	Relationship   string   `json:"relationship,omitempty"`
	SubstanceID    string   `json:"substance_id,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// LinkDTO is one resolved entity-to-entity link in a response.
type LinkDTO struct {
	FromName     string `json:"from_name"`
	ToName       string `json:"to_name"`
	Relationship string `json:"relationship"`
	Confidence   int    `json:"confidence"`
}

// ProcessDocumentResponse is the body for a processed document.
// SourceErrors is the non-fatal warning list: per-substance source failures
// that did not prevent enrichment from the remaining sources.
type ProcessDocumentResponse struct {
	ExtractionID string                              `json:"extraction_id"`
	CacheHit     bool                                `json:"cache_hit"`
	Entities     []EntityDTO                         `json:"entities"`
	Links        []LinkDTO                           `json:"links"`
	Substances   []pipeline.SubstanceRef             `json:"substances"`
	SourceErrors map[string][]enrichment.SourceError `json:"source_errors,omitempty"`
	Failed       map[string]string                   `json:"failed,omitempty"`
	Stats        StatsDTO                            `json:"stats"`
}

// StatsDTO summarizes graph writes for one document.
type StatsDTO struct {
	VerticesCreated int `json:"vertices_created"`
	VerticesUpdated int `json:"vertices_updated"`
	EdgesCreated    int `json:"edges_created"`
	StubsCreated    int `json:"stubs_created"`
}

// ExtractionDTO is one stored extraction record.
type ExtractionDTO struct {
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

// ProcessText handles POST /documents: plain text submitted as JSON.
func (h *DocumentHandler) ProcessText(w http.ResponseWriter, r *http.Request) {
	var req ProcessTextRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, h.maxUploadBytes)).Decode(&req); err != nil {
		writeAppError(w, errors.New(errors.ErrCodeValidation, "invalid request body"))
		return
	}
	if req.Text == "" {
		writeAppError(w, errors.New(errors.ErrCodeDocumentEmpty, "text is required"))
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = "inline.txt"
	}

	h.process(w, r, []byte(req.Text), filename)
}

// Upload handles POST /documents/upload: multipart file upload, PDF or text.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAppError(w, errors.New(errors.ErrCodeValidation, "multipart field 'file' is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeAppError(w, errors.Wrap(err, errors.ErrCodeValidation, "failed to read upload"))
		return
	}

	h.process(w, r, content, header.Filename)
}

func (h *DocumentHandler) process(w http.ResponseWriter, r *http.Request, content []byte, filename string) {
	result, err := h.service.ProcessDocument(r.Context(), content, filename)
	if err != nil {
		h.logger.Warn("document processing failed",
			logging.String("filename", filename), logging.Err(err))
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProcessResponse(result))
}

// GetExtraction handles GET /extractions/{contentKey}.
func (h *DocumentHandler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "contentKey")
	if key == "" {
		writeAppError(w, errors.New(errors.ErrCodeValidation, "content key is required"))
		return
	}

	rec, res, err := h.service.GetExtraction(r.Context(), key)
	if err != nil {
		writeAppError(w, err)
		return
	}

	type response struct {
		Record   ExtractionDTO `json:"record"`
		Entities []EntityDTO   `json:"entities,omitempty"`
		Links    []LinkDTO     `json:"links,omitempty"`
	}
	out := response{Record: toExtractionDTO(rec)}
	if res != nil {
		out.Entities = toEntityDTOs(res)
		out.Links = toLinkDTOs(res)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListExtractions handles GET /extractions.
func (h *DocumentHandler) ListExtractions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 200)

	recs, err := h.service.ListRecentExtractions(r.Context(), limit)
	if err != nil {
		writeAppError(w, err)
		return
	}

	out := make([]ExtractionDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toExtractionDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"extractions": out})
}

func toProcessResponse(result *pipeline.DocumentResult) ProcessDocumentResponse {
	resp := ProcessDocumentResponse{
		ExtractionID: result.ExtractionID,
		CacheHit:     result.CacheHit,
		Substances:   result.Substances,
		Failed:       result.Failed,
		Stats: StatsDTO{
			VerticesCreated: result.Stats.VerticesCreated,
			VerticesUpdated: result.Stats.VerticesUpdated,
			EdgesCreated:    result.Stats.EdgesCreated,
			StubsCreated:    result.Stats.StubsCreated,
		},
	}
	if len(result.SourceErrors) > 0 {
		resp.SourceErrors = result.SourceErrors
	}
	if result.Result != nil {
		resp.Entities = toEntityDTOs(result.Result)
		resp.Links = toLinkDTOs(result.Result)
	}
	if resp.Entities == nil {
		resp.Entities = []EntityDTO{}
	}
	if resp.Links == nil {
		resp.Links = []LinkDTO{}
	}
	if resp.Substances == nil {
		resp.Substances = []pipeline.SubstanceRef{}
	}
	return resp
}

func toEntityDTOs(res *extraction.Result) []EntityDTO {
	out := make([]EntityDTO, 0, len(res.Entities))
	for _, e := range res.Entities {
		dto := EntityDTO{
			Name:        e.Name,
			Type:        string(e.Type),
			Confidence:  e.Confidence,
			SubstanceID: e.SubstanceKey,
			Errors:      e.SourceErrors,
		}
		if e.Link != nil {
			dto.LinkedName = e.Link.ToName
			dto.LinkConfidence = e.Link.Confidence
			dto.Relationship = string(e.Link.Relationship)
		}
		out = append(out, dto)
	}
	return out
}

func toLinkDTOs(res *extraction.Result) []LinkDTO {
	out := make([]LinkDTO, 0, len(res.Links))
	for _, l := range res.Links {
		out = append(out, LinkDTO{
			FromName:     l.FromName,
			ToName:       l.ToName,
			Relationship: string(l.Relationship),
			Confidence:   l.Confidence,
		})
	}
	return out
}

func toExtractionDTO(rec *extraction.Record) ExtractionDTO {
	return ExtractionDTO{
		ContentKey:  rec.ContentKey,
		Filename:    rec.Filename,
		FileType:    rec.FileType,
		Status:      string(rec.Status),
		EntityCount: rec.EntityCount,
		LinkCount:   rec.LinkCount,
		ModelUsed:   rec.ModelUsed,
		TokensUsed:  rec.TokensUsed,
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}
