package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// EntityService is the slice of the pipeline the entity handler uses.
type EntityService interface {
	GetSubstance(ctx context.Context, key string) (*graph.Substance, error)
	SearchEntities(ctx context.Context, query string, limit int) ([]*graph.Substance, error)
	CollectionCounts(ctx context.Context) (map[string]int, error)
}

// EntityHandler exposes resolved substances and graph statistics.
type EntityHandler struct {
	service EntityService
	logger  logging.Logger
}

func NewEntityHandler(service EntityService, log logging.Logger) *EntityHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &EntityHandler{
		service: service,
		logger:  log.Named("entity_handler"),
	}
}

// SubstanceDTO is one substance in a response.
type SubstanceDTO struct {
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

// Get handles GET /entities/{key}.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeAppError(w, errors.New(errors.ErrCodeValidation, "entity key is required"))
		return
	}

	sub, err := h.service.GetSubstance(r.Context(), graph.NormalizeKey(key))
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSubstanceDTO(sub))
}

// Search handles GET /entities/search?q=.
func (h *EntityHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeAppError(w, errors.New(errors.ErrCodeValidation, "query parameter 'q' is required"))
		return
	}
	limit := parseLimit(r, 50, 500)

	subs, err := h.service.SearchEntities(r.Context(), query, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}

	out := make([]SubstanceDTO, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubstanceDTO(sub))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(out),
		"results": out,
	})
}

// Counts handles GET /graph/counts.
func (h *EntityHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.CollectionCounts(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}

func toSubstanceDTO(s *graph.Substance) SubstanceDTO {
	return SubstanceDTO{
		Key:             s.Key(),
		Name:            s.Name,
		UNII:            s.UNII,
		RxCUI:           s.RxCUI,
		Formula:         s.Formula,
		MolecularWeight: s.MolecularWeight,
		SMILES:          s.SMILES,
		InChIKey:        s.InChIKey,
		CASNumber:       s.CASNumber,
		PubChemID:       s.PubChemID,
		SubstanceClass:  s.SubstanceClass,
		IsEnriched:      s.IsEnriched,
		EnrichedAt:      s.EnrichedAt,
	}
}
