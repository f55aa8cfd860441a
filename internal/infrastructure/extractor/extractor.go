// Package extractor adapts the external LLM collaborator that performs
// named-entity recognition on document text.  The model is a black box: it
// receives text and returns JSON.  This package owns the prompt, the JSON
// boundary, and the quarantine of anything the model emits outside the
// closed entity-type set.
package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/extraction"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/profile"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 8000
)

// ChatCompleter is the slice of the OpenAI client the extractor uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Output is everything one extraction call produced: validated candidates,
// the model's self-assessment, and the document owner when one was found.
type Output struct {
	Candidates  []extraction.CandidateEntity
	Quality     extraction.Quality
	Meta        extraction.Meta
	Profile     *profile.Profile
	ModelUsed   string
	TokensUsed  int
	Quarantined int
}

// Client calls the LLM extractor and converts its JSON into domain
// candidates.
type Client struct {
	llm          ChatCompleter
	model        string
	maxTextChars int
	logger       logging.Logger
}

// New constructs a Client backed by the OpenAI API.
func New(cfg config.ExtractorConfig, logger logging.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return NewWithCompleter(openai.NewClientWithConfig(apiCfg), cfg, logger)
}

// NewWithCompleter constructs a Client around any ChatCompleter.
func NewWithCompleter(llm ChatCompleter, cfg config.ExtractorConfig, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		llm:          llm,
		model:        cfg.Model,
		maxTextChars: cfg.MaxTextChars,
		logger:       logger.Named("extractor"),
	}
}

// Extract runs one NER pass over the text.  Raw model entities that fail
// boundary validation are quarantined, counted, and logged; they never reach
// the pipeline.
func (c *Client) Extract(ctx context.Context, text string) (*Output, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New(errors.ErrCodeDocumentEmpty, "document contains no extractable text")
	}
	if c.maxTextChars > 0 && len(text) > c.maxTextChars {
		c.logger.Warn("document truncated for extraction",
			logging.Int("length", len(text)),
			logging.Int("limit", c.maxTextChars))
		text = text[:c.maxTextChars]
	}

	start := time.Now()
	resp, err := c.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(text)},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExtractionFailed, "extractor call failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(errors.ErrCodeExtractorBadResponse, "extractor returned no choices")
	}

	var raw rawResponse
	content := stripFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		c.logger.Warn("extractor response is not valid JSON",
			logging.String("preview", preview(content)), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeExtractorBadResponse,
			"failed to parse extractor response as JSON")
	}

	out := c.convert(&raw)
	out.ModelUsed = resp.Model
	out.TokensUsed = resp.Usage.TotalTokens

	c.logger.Info("extraction completed",
		logging.Int("text_length", len(text)),
		logging.Int("candidates", len(out.Candidates)),
		logging.Int("quarantined", out.Quarantined),
		logging.Int("tokens", out.TokensUsed),
		logging.Duration("elapsed", time.Since(start)))
	return out, nil
}

// ExtractEntities is the narrow contract used by callers that only need the
// candidates.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]extraction.CandidateEntity, extraction.Meta, error) {
	out, err := c.Extract(ctx, text)
	if err != nil {
		return nil, extraction.Meta{}, err
	}
	return out.Candidates, out.Meta, nil
}

func (c *Client) convert(raw *rawResponse) *Output {
	out := &Output{
		Quality: extraction.Quality{
			Completeness:  raw.Quality.Completeness,
			AvgConfidence: raw.Quality.AvgConfidence,
			Counts: extraction.QualityCounts{
				Total: raw.Quality.Counts.Total,
				High:  raw.Quality.Counts.High,
				Med:   raw.Quality.Counts.Med,
				Low:   raw.Quality.Counts.Low,
			},
			MaybeMissed: raw.Quality.MaybeMissed,
			Notes:       raw.Quality.Notes,
		},
		Meta: extraction.Meta{
			DocType:          raw.Meta.DocType,
			TherapeuticAreas: raw.Meta.TherapeuticAreas,
			DrugDensity:      extraction.DrugDensity(strings.ToUpper(raw.Meta.DrugDensity)),
			TotalEntities:    raw.Meta.TotalEntities,
		},
	}
	for _, a := range raw.Quality.Ambiguous {
		out.Quality.Ambiguous = append(out.Quality.Ambiguous,
			extraction.AmbiguousEntity{Text: a.Text, Reason: a.Reason})
	}

	for _, e := range raw.Entities {
		cand, err := c.toCandidate(e)
		if err != nil {
			out.Quarantined++
			c.logger.Warn("entity quarantined at extractor boundary",
				logging.String("name", e.Name),
				logging.String("type", e.Type),
				logging.Err(err))
			continue
		}
		out.Candidates = append(out.Candidates, cand)
	}

	out.Profile = toProfile(raw.PersonalInfo)
	return out
}

func (c *Client) toCandidate(e rawEntity) (extraction.CandidateEntity, error) {
	cand := extraction.CandidateEntity{
		Name:       strings.TrimSpace(e.Name),
		Confidence: extraction.ConfidenceAbsent,
		Context:    e.Context,
	}
	typ, err := extraction.ParseEntityType(e.Type)
	if err != nil {
		return cand, err
	}
	cand.Type = typ
	if e.Confidence != nil {
		cand.Confidence = *e.Confidence
	}

	if e.NEL != nil && strings.TrimSpace(e.NEL.LinkedTo) != "" {
		// A link the model itself is not confident in is dropped here, not
		// passed downstream as a weak hint.
		if e.NEL.LinkConfidence < extraction.MinLinkConfidence {
			c.logger.Debug("link hint below confidence floor, dropped",
				logging.String("name", cand.Name),
				logging.Int("link_confidence", e.NEL.LinkConfidence))
		} else {
			cand.LinkedName = strings.TrimSpace(e.NEL.LinkedTo)
			if rel, err := extraction.ParseRelationship(e.NEL.Relationship); err == nil {
				cand.RelationshipHint = rel
			}
		}
	}

	if err := cand.Validate(); err != nil {
		return cand, err
	}
	return cand, nil
}

func toProfile(pi *rawPersonalInfo) *profile.Profile {
	if pi == nil {
		return nil
	}
	p := profile.New(strVal(pi.FullName), strVal(pi.Email), strVal(pi.LinkedIn))
	if p.Anonymous() {
		return nil
	}
	p.Phone = strVal(pi.Phone)
	p.Credentials = pi.Credentials
	if loc := pi.Location; loc != nil {
		p.Location = &profile.Location{
			City:    strVal(loc.City),
			State:   strVal(loc.State),
			Country: strVal(loc.Country),
		}
	}
	return p
}

// stripFences removes a markdown code fence the model sometimes wraps its
// JSON in despite the prompt.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = content[7:]
	}
	if strings.HasPrefix(content, "```") {
		content = content[3:]
	}
	if strings.HasSuffix(content, "```") {
		content = content[:len(content)-3]
	}
	return strings.TrimSpace(content)
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Raw JSON shapes as emitted by the model.  Pointers distinguish absent
// fields from zero values where the distinction matters.

type rawResponse struct {
	PersonalInfo *rawPersonalInfo `json:"personal_info"`
	Entities     []rawEntity      `json:"entities"`
	Quality      rawQuality       `json:"quality"`
	Meta         rawMeta          `json:"meta"`
}

type rawEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence *int    `json:"confidence"`
	Context    string  `json:"ctx"`
	Status     string  `json:"status"`
	NEL        *rawNEL `json:"nel"`
}

type rawNEL struct {
	LinkedTo       string `json:"linked_to"`
	Relationship   string `json:"relationship"`
	LinkConfidence int    `json:"link_confidence"`
	Source         string `json:"source"`
}

type rawQuality struct {
	Completeness  int `json:"completeness"`
	AvgConfidence int `json:"avg_confidence"`
	Counts        struct {
		Total int `json:"total"`
		High  int `json:"high"`
		Med   int `json:"med"`
		Low   int `json:"low"`
	} `json:"counts"`
	Ambiguous []struct {
		Text   string `json:"text"`
		Reason string `json:"reason"`
	} `json:"ambiguous"`
	MaybeMissed []string `json:"maybe_missed"`
	Notes       string   `json:"notes"`
}

type rawMeta struct {
	DocType          string   `json:"doc_type"`
	TherapeuticAreas []string `json:"therapeutic_areas"`
	DrugDensity      string   `json:"drug_density"`
	TotalEntities    int      `json:"total_entities"`
}

type rawPersonalInfo struct {
	FullName    *string  `json:"full_name"`
	Credentials []string `json:"credentials"`
	Email       *string  `json:"email"`
	Phone       *string  `json:"phone"`
	LinkedIn    *string  `json:"linkedin"`
	Location    *struct {
		City    *string `json:"city"`
		State   *string `json:"state"`
		Country *string `json:"country"`
	} `json:"location"`
}
