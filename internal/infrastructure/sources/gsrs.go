package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

// ChemicalData is the chemistry the substance registry knows about one
// ingredient: identifiers, structure and classification.
type ChemicalData struct {
	UNII            string
	Name            string
	SubstanceClass  string
	DefinitionType  string
	Formula         string
	MolecularWeight float64
	SMILES          string
	InChI           string
	InChIKey        string
	CASNumber       string
	PubChemID       string
	Stereochemistry string
	OpticalActivity string
	Names           []string
}

// gsrsRecord mirrors the registry's raw substance document.
type gsrsRecord struct {
	UNII           string `json:"unii"`
	SubstanceClass string `json:"substance_class"`
	DefinitionType string `json:"definition_type"`
	Names          []struct {
		Name        string `json:"name"`
		DisplayName bool   `json:"display_name"`
	} `json:"names"`
	Structure struct {
		SMILES          string      `json:"smiles"`
		Formula         string      `json:"formula"`
		Stereochemistry string      `json:"stereochemistry"`
		OpticalActivity string      `json:"optical_activity"`
		MWT             interface{} `json:"mwt"`
	} `json:"structure"`
	Moieties []struct {
		SMILES          string `json:"smiles"`
		Formula         string `json:"formula"`
		Stereochemistry string `json:"stereochemistry"`
	} `json:"moieties"`
	Codes []struct {
		CodeSystem string `json:"code_system"`
		Code       string `json:"code"`
	} `json:"codes"`
}

type gsrsResponse struct {
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
	Results []gsrsRecord `json:"results"`
}

// GSRSClient queries the FDA substance registry for chemical data.
type GSRSClient struct {
	rest *restClient
}

// NewGSRSClient constructs a substance-registry client from configuration.
// The configured base URL is the full search endpoint; queries attach only
// parameters.
func NewGSRSClient(cfg config.SourceConfig, retry RetryPolicy, logger logging.Logger) *GSRSClient {
	return &GSRSClient{
		rest: newRESTClient("gsrs", cfg.BaseURL, cfg.Timeout, retry, logger),
	}
}

func (c *GSRSClient) search(ctx context.Context, search string, limit int) ([]gsrsRecord, error) {
	q := url.Values{}
	q.Set("search", search)
	q.Set("limit", strconv.Itoa(limit))

	var resp gsrsResponse
	found, err := c.rest.getJSON(ctx, "", q, &resp)
	if err != nil || !found {
		return nil, err
	}
	// Some deployments report no-match as a 200 with an error envelope.
	if resp.Error != nil && strings.Contains(resp.Error.Code, "NOT_FOUND") {
		return nil, nil
	}
	return resp.Results, nil
}

// parseChemical flattens a raw registry document into ChemicalData,
// preferring the display name, the primary structure over moieties, and the
// first CAS and PubChem codes encountered.
func parseChemical(rec gsrsRecord) *ChemicalData {
	data := &ChemicalData{
		UNII:           rec.UNII,
		SubstanceClass: rec.SubstanceClass,
		DefinitionType: rec.DefinitionType,
	}

	for _, n := range rec.Names {
		if n.Name == "" {
			continue
		}
		data.Names = append(data.Names, n.Name)
		if n.DisplayName && data.Name == "" {
			data.Name = n.Name
		}
	}
	if data.Name == "" && len(data.Names) > 0 {
		data.Name = data.Names[0]
	}

	data.SMILES = rec.Structure.SMILES
	data.Formula = rec.Structure.Formula
	data.Stereochemistry = rec.Structure.Stereochemistry
	data.OpticalActivity = rec.Structure.OpticalActivity
	data.MolecularWeight = parseWeight(rec.Structure.MWT)

	if data.SMILES == "" {
		for _, m := range rec.Moieties {
			if m.SMILES != "" {
				data.SMILES = m.SMILES
				if data.Formula == "" {
					data.Formula = m.Formula
				}
				if data.Stereochemistry == "" {
					data.Stereochemistry = m.Stereochemistry
				}
				break
			}
		}
	}

	for _, code := range rec.Codes {
		system := strings.ToUpper(code.CodeSystem)
		switch {
		case strings.Contains(system, "CAS") && data.CASNumber == "":
			data.CASNumber = code.Code
		case strings.Contains(system, "PUBCHEM") && data.PubChemID == "":
			data.PubChemID = code.Code
		case strings.Contains(system, "INCHI"):
			if strings.Contains(system, "KEY") {
				data.InChIKey = code.Code
			} else {
				data.InChI = code.Code
			}
		}
	}
	return data
}

// parseWeight tolerates the registry sending molecular weight as either a
// number or a string.
func parseWeight(v interface{}) float64 {
	switch w := v.(type) {
	case float64:
		return w
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// SearchByUNII fetches chemical data for one UNII.
func (c *GSRSClient) SearchByUNII(ctx context.Context, unii string) (*ChemicalData, bool, error) {
	records, err := c.search(ctx, fmt.Sprintf(`unii:"%s"`, escapeQuoted(unii)), 1)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return parseChemical(records[0]), true, nil
}

// SearchByName fetches chemical data candidates for a substance name.
func (c *GSRSClient) SearchByName(ctx context.Context, name string, limit int) ([]*ChemicalData, error) {
	if limit <= 0 || limit > 100 {
		limit = 5
	}
	escaped := escapeQuoted(strings.ToUpper(name))
	records, err := c.search(ctx, fmt.Sprintf(`names.name:"%s"`, escaped), limit)
	if err != nil {
		return nil, err
	}
	chemicals := make([]*ChemicalData, 0, len(records))
	for _, rec := range records {
		chemicals = append(chemicals, parseChemical(rec))
	}
	return chemicals, nil
}

// SubstanceData resolves chemical data by UNII when known, falling back to
// a name search.
func (c *GSRSClient) SubstanceData(ctx context.Context, unii, name string) (*ChemicalData, bool, error) {
	if unii != "" {
		data, found, err := c.SearchByUNII(ctx, unii)
		if err != nil {
			return nil, false, err
		}
		if found {
			return data, true, nil
		}
	}
	if name != "" {
		candidates, err := c.SearchByName(ctx, name, 1)
		if err != nil {
			return nil, false, err
		}
		if len(candidates) > 0 {
			return candidates[0], true, nil
		}
	}
	return nil, false, nil
}

// SubstanceRef identifies one substance to look up, by UNII or by name.
type SubstanceRef struct {
	UNII string
	Name string
}

func (r SubstanceRef) key() string {
	if r.UNII != "" {
		return r.UNII
	}
	return r.Name
}

// MultipleSubstances looks up several substances concurrently, deduplicated
// by UNII-or-name, and returns whatever resolved keyed the same way.  A
// failed lookup drops that substance from the map; an error is returned
// only when every lookup failed.
func (c *GSRSClient) MultipleSubstances(ctx context.Context, refs []SubstanceRef) (map[string]*ChemicalData, error) {
	unique := make([]SubstanceRef, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		k := ref.key()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, ref)
	}
	if len(unique) == 0 {
		return map[string]*ChemicalData{}, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*ChemicalData, len(unique))
		failed  int
		lastErr error
	)
	for _, ref := range unique {
		wg.Add(1)
		go func(ref SubstanceRef) {
			defer wg.Done()
			data, found, err := c.SubstanceData(ctx, ref.UNII, ref.Name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				lastErr = err
				c.rest.logger.Warn("substance lookup failed",
					logging.String("key", ref.key()), logging.Err(err))
				return
			}
			if found {
				results[ref.key()] = data
			}
		}(ref)
	}
	wg.Wait()

	if failed == len(unique) {
		return nil, lastErr
	}
	return results, nil
}
