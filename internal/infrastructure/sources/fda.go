package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/turtacn/RxGraph-Intelligence/internal/config"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

// openFDA endpoints queried during enrichment.
const (
	fdaEndpointDrugsFDA    = "/drug/drugsfda.json"
	fdaEndpointLabel       = "/drug/label.json"
	fdaEndpointNDC         = "/drug/ndc.json"
	fdaEndpointEvent       = "/drug/event.json"
	fdaEndpointEnforcement = "/drug/enforcement.json"
)

const fdaDefaultEventsLimit = 100

// OpenFDA is the harmonized metadata block openFDA attaches to records
// across its drug endpoints.
type OpenFDA struct {
	BrandNames        []string `json:"brand_name"`
	GenericNames      []string `json:"generic_name"`
	ManufacturerNames []string `json:"manufacturer_name"`
	SubstanceNames    []string `json:"substance_name"`
	Routes            []string `json:"route"`
	DosageForms       []string `json:"dosage_form"`
	PharmClassEPC     []string `json:"pharm_class_epc"`
	PharmClassMOA     []string `json:"pharm_class_moa"`
	ProductNDCs       []string `json:"product_ndc"`
	RxCUIs            []string `json:"rxcui"`
	UNIIs             []string `json:"unii"`
	SPLIDs            []string `json:"spl_id"`
}

// FDASubmission is one regulatory submission under an application.
type FDASubmission struct {
	SubmissionType       string `json:"submission_type"`
	SubmissionNumber     string `json:"submission_number"`
	SubmissionStatus     string `json:"submission_status"`
	SubmissionStatusDate string `json:"submission_status_date"`
	ReviewPriority       string `json:"review_priority"`
}

// FDAProductEntry is one marketed presentation under an application.
type FDAProductEntry struct {
	ProductNumber   string `json:"product_number"`
	BrandName       string `json:"brand_name"`
	DosageForm      string `json:"dosage_form"`
	Route           string `json:"route"`
	MarketingStatus string `json:"marketing_status"`
}

// DrugsFDARecord is one approval record from the drugsfda endpoint.
type DrugsFDARecord struct {
	ApplicationNumber string            `json:"application_number"`
	SponsorName       string            `json:"sponsor_name"`
	OpenFDA           OpenFDA           `json:"openfda"`
	Submissions       []FDASubmission   `json:"submissions"`
	Products          []FDAProductEntry `json:"products"`
}

// NDCPackaging is one package configuration within an NDC listing.
type NDCPackaging struct {
	PackageNDC  string `json:"package_ndc"`
	Description string `json:"description"`
}

// NDCRecord is one entry from the National Drug Code directory.
type NDCRecord struct {
	ProductNDC  string         `json:"product_ndc"`
	BrandName   string         `json:"brand_name"`
	GenericName string         `json:"generic_name"`
	SPLID       string         `json:"spl_id"`
	Packaging   []NDCPackaging `json:"packaging"`
}

// EventDrug is one drug mentioned in an adverse-event report.
type EventDrug struct {
	MedicinalProduct     string  `json:"medicinalproduct"`
	DrugCharacterization string  `json:"drugcharacterization"`
	OpenFDA              OpenFDA `json:"openfda"`
}

// EventReaction is one reported reaction, coded in MedDRA terms.
type EventReaction struct {
	MedDRATerm    string `json:"reactionmeddrapt"`
	MedDRAVersion string `json:"reactionmeddraversionpt"`
	Outcome       string `json:"reactionoutcome"`
}

// EventRecord is one adverse-event report.
type EventRecord struct {
	Patient struct {
		Drugs     []EventDrug     `json:"drug"`
		Reactions []EventReaction `json:"reaction"`
	} `json:"patient"`
}

// EnforcementRecord is one recall record; only the harmonized block is used.
type EnforcementRecord struct {
	OpenFDA OpenFDA `json:"openfda"`
}

// LabelRecord is a structured product label.  openFDA models each section
// as a list of text blocks; in practice the first element carries the body.
type LabelRecord struct {
	SetID                   string   `json:"set_id"`
	Version                 string   `json:"version"`
	EffectiveTime           string   `json:"effective_time"`
	Description             []string `json:"description"`
	ClinicalPharmacology    []string `json:"clinical_pharmacology"`
	MechanismOfAction       []string `json:"mechanism_of_action"`
	IndicationsAndUsage     []string `json:"indications_and_usage"`
	DosageAndAdministration []string `json:"dosage_and_administration"`
	Contraindications       []string `json:"contraindications"`
	WarningsAndCautions     []string `json:"warnings_and_cautions"`
	Warnings                []string `json:"warnings"`
	BoxedWarning            []string `json:"boxed_warning"`
	AdverseReactions        []string `json:"adverse_reactions"`
	DrugInteractions        []string `json:"drug_interactions"`
}

// FDAData aggregates everything the registry returned for one search term.
type FDAData struct {
	SearchTerm  string
	DrugsFDA    []DrugsFDARecord
	NDC         []NDCRecord
	Enforcement []EnforcementRecord
	Events      []EventRecord
}

// Empty reports whether no endpoint returned any record.
func (d *FDAData) Empty() bool {
	return len(d.DrugsFDA) == 0 && len(d.NDC) == 0 &&
		len(d.Enforcement) == 0 && len(d.Events) == 0
}

// RxCUIHint returns the first RxCUI the registry associates with the search
// term, used to shortcut the nomenclature lookup.
func (d *FDAData) RxCUIHint() string {
	for _, rec := range d.DrugsFDA {
		if len(rec.OpenFDA.RxCUIs) > 0 {
			return rec.OpenFDA.RxCUIs[0]
		}
	}
	return ""
}

// FDAClient queries the openFDA drug registry.
type FDAClient struct {
	rest        *restClient
	apiKey      string
	eventsLimit int
}

// NewFDAClient constructs a registry client from configuration.
func NewFDAClient(cfg config.SourceConfig, retry RetryPolicy, logger logging.Logger) *FDAClient {
	return &FDAClient{
		rest:        newRESTClient("fda", cfg.BaseURL, cfg.Timeout, retry, logger),
		apiKey:      cfg.APIKey,
		eventsLimit: fdaDefaultEventsLimit,
	}
}

// searchQuery matches a drug name against the harmonized brand, generic and
// substance name fields.
func fdaSearchQuery(name string) string {
	escaped := escapeQuoted(name)
	return fmt.Sprintf(`openfda.brand_name:"%s" OR openfda.generic_name:"%s" OR openfda.substance_name:"%s"`,
		escaped, escaped, escaped)
}

func (c *FDAClient) query(search string, limit int) url.Values {
	q := url.Values{}
	q.Set("search", search)
	q.Set("limit", strconv.Itoa(limit))
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	return q
}

type fdaResultsEnvelope[T any] struct {
	Results []T `json:"results"`
}

func fdaSearch[T any](ctx context.Context, c *FDAClient, endpoint, search string, limit int) ([]T, error) {
	var envelope fdaResultsEnvelope[T]
	found, err := c.rest.getJSON(ctx, endpoint, c.query(search, limit), &envelope)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return envelope.Results, nil
}

// SearchDrugsFDA looks up approval records for a drug name.
func (c *FDAClient) SearchDrugsFDA(ctx context.Context, name string) ([]DrugsFDARecord, error) {
	return fdaSearch[DrugsFDARecord](ctx, c, fdaEndpointDrugsFDA, fdaSearchQuery(name), 100)
}

// SearchNDC looks up National Drug Code listings for a drug name.
func (c *FDAClient) SearchNDC(ctx context.Context, name string) ([]NDCRecord, error) {
	escaped := escapeQuoted(name)
	search := fmt.Sprintf(`brand_name:"%s" OR generic_name:"%s" OR active_ingredients.name:"%s"`,
		escaped, escaped, escaped)
	return fdaSearch[NDCRecord](ctx, c, fdaEndpointNDC, search, 100)
}

// SearchEnforcement looks up recall records for a drug name.
func (c *FDAClient) SearchEnforcement(ctx context.Context, name string) ([]EnforcementRecord, error) {
	return fdaSearch[EnforcementRecord](ctx, c, fdaEndpointEnforcement, fdaSearchQuery(name), 100)
}

// SearchAdverseEvents looks up adverse-event reports naming the drug.
func (c *FDAClient) SearchAdverseEvents(ctx context.Context, name string, limit int) ([]EventRecord, error) {
	escaped := escapeQuoted(name)
	search := fmt.Sprintf(`(patient.drug.openfda.brand_name:"%s" OR patient.drug.openfda.generic_name:"%s" OR patient.drug.medicinalproduct:"%s")`,
		escaped, escaped, escaped)
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return fdaSearch[EventRecord](ctx, c, fdaEndpointEvent, search, limit)
}

// LabelBySPLID fetches one structured product label by its SPL identifier.
func (c *FDAClient) LabelBySPLID(ctx context.Context, splID string) (*LabelRecord, bool, error) {
	search := fmt.Sprintf(`openfda.spl_id:"%s"`, escapeQuoted(splID))
	labels, err := fdaSearch[LabelRecord](ctx, c, fdaEndpointLabel, search, 1)
	if err != nil {
		return nil, false, err
	}
	if len(labels) == 0 {
		return nil, false, nil
	}
	return &labels[0], true, nil
}

// FetchAll queries the approval, NDC, enforcement and adverse-event
// endpoints concurrently and collects whatever each returned.  An endpoint
// failure degrades the result rather than failing it; an error is returned
// only when every endpoint failed, so the caller can tell "the registry is
// down" apart from "the registry has nothing".
func (c *FDAClient) FetchAll(ctx context.Context, name string) (*FDAData, error) {
	data := &FDAData{SearchTerm: name}

	var wg sync.WaitGroup
	errs := make([]error, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		data.DrugsFDA, errs[0] = c.SearchDrugsFDA(ctx, name)
	}()
	go func() {
		defer wg.Done()
		data.NDC, errs[1] = c.SearchNDC(ctx, name)
	}()
	go func() {
		defer wg.Done()
		data.Enforcement, errs[2] = c.SearchEnforcement(ctx, name)
	}()
	go func() {
		defer wg.Done()
		data.Events, errs[3] = c.SearchAdverseEvents(ctx, name, c.eventsLimit)
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
			c.rest.logger.Warn("registry endpoint failed",
				logging.String("search_term", name),
				logging.Err(err))
		}
	}
	if failed == len(errs) {
		return nil, firstErr
	}
	return data, nil
}
