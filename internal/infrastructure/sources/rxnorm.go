package sources

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

// Term types that identify ingredients and brands among RxNorm related
// concepts.
var (
	rxnormIngredientTTYs = map[string]bool{"IN": true, "PIN": true, "MIN": true}
	rxnormBrandTTYs      = map[string]bool{"BN": true, "SBDC": true, "SBD": true, "SBDF": true, "SBDG": true}
)

// RxNormConcept is one concept from the nomenclature graph.
type RxNormConcept struct {
	RxCUI   string `json:"rxcui"`
	Name    string `json:"name"`
	Synonym string `json:"synonym"`
	TTY     string `json:"tty"`
}

// RxNormProperties are the canonical properties of one concept.
type RxNormProperties struct {
	RxCUI    string `json:"rxcui"`
	Name     string `json:"name"`
	Synonym  string `json:"synonym"`
	TTY      string `json:"tty"`
	Language string `json:"language"`
}

// InteractionConcept identifies one side of a drug interaction.
type InteractionConcept struct {
	RxCUI string
	Name  string
}

// DrugInteraction is one interaction pair reported for the looked-up drug.
type DrugInteraction struct {
	Severity    string
	Description string
	Source      InteractionConcept
	Target      InteractionConcept
}

// RxNormData aggregates everything the nomenclature service returned for
// one search term.  Found is false when no concept could be resolved, in
// which case Suggestions may carry spelling alternatives.
type RxNormData struct {
	SearchTerm   string
	Found        bool
	RxCUI        string
	Name         string
	Ingredients  []RxNormConcept
	Brands       []RxNormConcept
	NDCCodes     []string
	Interactions []DrugInteraction
	Suggestions  []string
}

// RxNormClient queries the RxNav RxNorm API.
type RxNormClient struct {
	rest *restClient
}

// NewRxNormClient constructs a nomenclature client from configuration.
func NewRxNormClient(cfg config.SourceConfig, retry RetryPolicy, logger logging.Logger) *RxNormClient {
	return &RxNormClient{
		rest: newRESTClient("rxnorm", cfg.BaseURL, cfg.Timeout, retry, logger),
	}
}

func rxnormQuery(pairs ...string) url.Values {
	q := url.Values{}
	q.Set("format", "json")
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Set(pairs[i], pairs[i+1])
	}
	return q
}

// RxCUIByName resolves a drug name to its RxNorm concept identifiers.
func (c *RxNormClient) RxCUIByName(ctx context.Context, name string) ([]string, error) {
	var resp struct {
		IDGroup struct {
			RxNormIDs []string `json:"rxnormId"`
		} `json:"idGroup"`
	}
	found, err := c.rest.getJSON(ctx, "/rxcui.json", rxnormQuery("name", name), &resp)
	if err != nil || !found {
		return nil, err
	}
	return resp.IDGroup.RxNormIDs, nil
}

// ApproximateMatch performs a fuzzy concept search, best candidates first.
func (c *RxNormClient) ApproximateMatch(ctx context.Context, term string, maxEntries int) ([]RxNormConcept, error) {
	var resp struct {
		ApproximateGroup struct {
			Candidates []struct {
				RxCUI string `json:"rxcui"`
				Name  string `json:"name"`
			} `json:"candidate"`
		} `json:"approximateGroup"`
	}
	q := rxnormQuery("term", term, "maxEntries", strconv.Itoa(maxEntries))
	found, err := c.rest.getJSON(ctx, "/approximateTerm.json", q, &resp)
	if err != nil || !found {
		return nil, err
	}
	concepts := make([]RxNormConcept, 0, len(resp.ApproximateGroup.Candidates))
	for _, cand := range resp.ApproximateGroup.Candidates {
		concepts = append(concepts, RxNormConcept{RxCUI: cand.RxCUI, Name: cand.Name})
	}
	return concepts, nil
}

// Properties fetches the canonical properties of one concept.
func (c *RxNormClient) Properties(ctx context.Context, rxcui string) (*RxNormProperties, bool, error) {
	var resp struct {
		Properties *RxNormProperties `json:"properties"`
	}
	found, err := c.rest.getJSON(ctx, "/rxcui/"+url.PathEscape(rxcui)+"/properties.json", rxnormQuery(), &resp)
	if err != nil {
		return nil, false, err
	}
	if !found || resp.Properties == nil {
		return nil, false, nil
	}
	return resp.Properties, true, nil
}

// AllRelated fetches every related concept, grouped by term type.
func (c *RxNormClient) AllRelated(ctx context.Context, rxcui string) (map[string][]RxNormConcept, error) {
	var resp struct {
		AllRelatedGroup struct {
			ConceptGroups []struct {
				TTY      string          `json:"tty"`
				Concepts []RxNormConcept `json:"conceptProperties"`
			} `json:"conceptGroup"`
		} `json:"allRelatedGroup"`
	}
	found, err := c.rest.getJSON(ctx, "/rxcui/"+url.PathEscape(rxcui)+"/allrelated.json", rxnormQuery(), &resp)
	if err != nil || !found {
		return nil, err
	}
	related := make(map[string][]RxNormConcept)
	for _, group := range resp.AllRelatedGroup.ConceptGroups {
		if len(group.Concepts) > 0 {
			related[group.TTY] = group.Concepts
		}
	}
	return related, nil
}

// NDCCodes fetches the National Drug Codes attached to one concept.
func (c *RxNormClient) NDCCodes(ctx context.Context, rxcui string) ([]string, error) {
	var resp struct {
		NDCGroup struct {
			NDCList struct {
				NDCs []string `json:"ndc"`
			} `json:"ndcList"`
		} `json:"ndcGroup"`
	}
	found, err := c.rest.getJSON(ctx, "/rxcui/"+url.PathEscape(rxcui)+"/ndcs.json", rxnormQuery(), &resp)
	if err != nil || !found {
		return nil, err
	}
	return resp.NDCGroup.NDCList.NDCs, nil
}

// Interactions fetches the interaction pairs reported for one concept.  The
// first concept of each pair is the looked-up drug, the second the
// interacting drug.
func (c *RxNormClient) Interactions(ctx context.Context, rxcui string) ([]DrugInteraction, error) {
	var resp struct {
		InteractionTypeGroups []struct {
			InteractionTypes []struct {
				InteractionPairs []struct {
					Severity            string `json:"severity"`
					Description         string `json:"description"`
					InteractionConcepts []struct {
						MinConceptItem struct {
							RxCUI string `json:"rxcui"`
							Name  string `json:"name"`
						} `json:"minConceptItem"`
					} `json:"interactionConcept"`
				} `json:"interactionPair"`
			} `json:"interactionType"`
		} `json:"interactionTypeGroup"`
	}
	q := rxnormQuery("rxcui", rxcui)
	found, err := c.rest.getJSON(ctx, "/interaction/interaction.json", q, &resp)
	if err != nil || !found {
		return nil, err
	}

	var interactions []DrugInteraction
	for _, typeGroup := range resp.InteractionTypeGroups {
		for _, interactionType := range typeGroup.InteractionTypes {
			for _, pair := range interactionType.InteractionPairs {
				di := DrugInteraction{
					Severity:    pair.Severity,
					Description: pair.Description,
				}
				if len(pair.InteractionConcepts) > 0 {
					item := pair.InteractionConcepts[0].MinConceptItem
					di.Source = InteractionConcept{RxCUI: item.RxCUI, Name: item.Name}
				}
				if len(pair.InteractionConcepts) > 1 {
					item := pair.InteractionConcepts[1].MinConceptItem
					di.Target = InteractionConcept{RxCUI: item.RxCUI, Name: item.Name}
				}
				interactions = append(interactions, di)
			}
		}
	}
	return interactions, nil
}

// SpellingSuggestions fetches alternative spellings for an unresolved name.
func (c *RxNormClient) SpellingSuggestions(ctx context.Context, name string) ([]string, error) {
	var resp struct {
		SuggestionGroup struct {
			SuggestionList struct {
				Suggestions []string `json:"suggestion"`
			} `json:"suggestionList"`
		} `json:"suggestionGroup"`
	}
	found, err := c.rest.getJSON(ctx, "/spellingsuggestions.json", rxnormQuery("name", name), &resp)
	if err != nil || !found {
		return nil, err
	}
	return resp.SuggestionGroup.SuggestionList.Suggestions, nil
}

// FetchAll resolves the name to a concept and gathers its properties,
// related concepts, NDC codes and interactions concurrently.
//
// A non-empty rxcuiHint skips name resolution entirely; the registry lookup
// usually supplies it, which avoids a full-text match for names the
// registry already identified.  When the name cannot be resolved at all the
// result carries Found=false plus spelling suggestions, and no error: an
// unknown name is an answer, not a failure.
func (c *RxNormClient) FetchAll(ctx context.Context, name, rxcuiHint string) (*RxNormData, error) {
	data := &RxNormData{SearchTerm: name}

	rxcui := rxcuiHint
	if rxcui == "" {
		ids, err := c.RxCUIByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			rxcui = ids[0]
		} else {
			approx, err := c.ApproximateMatch(ctx, name, 5)
			if err != nil {
				return nil, err
			}
			if len(approx) > 0 {
				rxcui = approx[0].RxCUI
			}
		}
		if rxcui == "" {
			suggestions, err := c.SpellingSuggestions(ctx, name)
			if err != nil {
				c.rest.logger.Warn("spelling suggestions unavailable",
					logging.String("search_term", name), logging.Err(err))
			}
			data.Suggestions = suggestions
			return data, nil
		}
	}

	data.Found = true
	data.RxCUI = rxcui

	var (
		wg           sync.WaitGroup
		props        *RxNormProperties
		related      map[string][]RxNormConcept
		ndcCodes     []string
		interactions []DrugInteraction
		errs         = make([]error, 4)
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		props, _, errs[0] = c.Properties(ctx, rxcui)
	}()
	go func() {
		defer wg.Done()
		related, errs[1] = c.AllRelated(ctx, rxcui)
	}()
	go func() {
		defer wg.Done()
		ndcCodes, errs[2] = c.NDCCodes(ctx, rxcui)
	}()
	go func() {
		defer wg.Done()
		interactions, errs[3] = c.Interactions(ctx, rxcui)
	}()
	wg.Wait()

	var firstErr error
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			c.rest.logger.Warn("nomenclature endpoint failed",
				logging.String("rxcui", rxcui), logging.Err(err))
		}
	}
	if failed == len(errs) {
		return nil, firstErr
	}

	if props != nil {
		data.Name = props.Name
	}
	data.NDCCodes = ndcCodes
	data.Interactions = interactions
	for tty, concepts := range related {
		switch {
		case rxnormIngredientTTYs[tty]:
			data.Ingredients = append(data.Ingredients, concepts...)
		case rxnormBrandTTYs[tty]:
			data.Brands = append(data.Brands, concepts...)
		}
	}
	return data, nil
}
