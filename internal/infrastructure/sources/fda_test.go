package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxGraph-Intelligence/internal/config"
)

func newTestFDAClient(t *testing.T, handler http.Handler) *FDAClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.SourceConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}
	return NewFDAClient(cfg, testRetryPolicy(), nil)
}

const drugsFDABody = `{
  "results": [{
    "application_number": "NDA211192",
    "sponsor_name": "Agios Pharms Inc",
    "openfda": {
      "brand_name": ["TIBSOVO"],
      "generic_name": ["IVOSIDENIB"],
      "manufacturer_name": ["Agios Pharmaceuticals, Inc."],
      "substance_name": ["IVOSIDENIB"],
      "route": ["ORAL"],
      "dosage_form": ["TABLET"],
      "pharm_class_epc": ["Isocitrate Dehydrogenase 1 Inhibitor [EPC]"],
      "rxcui": ["2054109"],
      "unii": ["Q2PCN8MAM6"],
      "spl_id": ["deadbeef-0000-4000-8000-000000000000"]
    },
    "submissions": [{
      "submission_type": "ORIG",
      "submission_number": "1",
      "submission_status": "AP",
      "submission_status_date": "20180720",
      "review_priority": "PRIORITY"
    }],
    "products": [{
      "product_number": "001",
      "brand_name": "TIBSOVO",
      "dosage_form": "TABLET",
      "route": "ORAL",
      "marketing_status": "Prescription"
    }]
  }]
}`

func TestFDAClient_SearchDrugsFDA(t *testing.T) {
	client := newTestFDAClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/drug/drugsfda.json", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("search"), `openfda.brand_name:"TIBSOVO"`)
		w.Write([]byte(drugsFDABody))
	}))

	records, err := client.SearchDrugsFDA(context.Background(), "TIBSOVO")

	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "NDA211192", rec.ApplicationNumber)
	assert.Equal(t, []string{"TIBSOVO"}, rec.OpenFDA.BrandNames)
	assert.Equal(t, []string{"IVOSIDENIB"}, rec.OpenFDA.SubstanceNames)
	require.Len(t, rec.Submissions, 1)
	assert.Equal(t, "ORIG", rec.Submissions[0].SubmissionType)
	require.Len(t, rec.Products, 1)
	assert.Equal(t, "001", rec.Products[0].ProductNumber)
}

func TestFDAClient_APIKeyAttached(t *testing.T) {
	srvCalled := false
	client := newTestFDAClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srvCalled = true
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"results":[]}`))
	}))
	client.apiKey = "secret"

	_, err := client.SearchDrugsFDA(context.Background(), "aspirin")
	require.NoError(t, err)
	assert.True(t, srvCalled)
}

func TestFDAClient_QuotesEscapedInSearch(t *testing.T) {
	client := newTestFDAClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("search"), `\"special\"`)
		w.Write([]byte(`{"results":[]}`))
	}))

	_, err := client.SearchDrugsFDA(context.Background(), `"special"`)
	require.NoError(t, err)
}

func TestFDAClient_LabelBySPLID(t *testing.T) {
	client := newTestFDAClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/drug/label.json", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("search"), "openfda.spl_id")
		w.Write([]byte(`{"results":[{
			"set_id": "abc-123",
			"version": "4",
			"effective_time": "20230101",
			"indications_and_usage": ["For the treatment of AML."],
			"boxed_warning": ["Differentiation syndrome."]
		}]}`))
	}))

	label, found, err := client.LabelBySPLID(context.Background(), "spl-1")

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc-123", label.SetID)
	assert.Equal(t, []string{"For the treatment of AML."}, label.IndicationsAndUsage)
}

func TestFDAClient_LabelBySPLID_NotFound(t *testing.T) {
	client := newTestFDAClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	label, found, err := client.LabelBySPLID(context.Background(), "missing")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, label)
}

func TestFDAClient_FetchAll_ToleratesEndpointFailure(t *testing.T) {
	client := newTestFDAClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drug/drugsfda.json":
			w.Write([]byte(drugsFDABody))
		case "/drug/ndc.json":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"results":[]}`))
		}
	}))

	data, err := client.FetchAll(context.Background(), "TIBSOVO")

	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Len(t, data.DrugsFDA, 1)
	assert.Empty(t, data.NDC)
	assert.Equal(t, "2054109", data.RxCUIHint())
}

func TestFDAClient_FetchAll_AllEndpointsDown(t *testing.T) {
	client := newTestFDAClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	data, err := client.FetchAll(context.Background(), "TIBSOVO")

	require.Error(t, err)
	assert.Nil(t, data)
}

func TestFDAData_Empty(t *testing.T) {
	assert.True(t, (&FDAData{SearchTerm: "x"}).Empty())
	assert.False(t, (&FDAData{NDC: []NDCRecord{{ProductNDC: "1-2"}}}).Empty())
}

func TestFDAData_RxCUIHint_Absent(t *testing.T) {
	data := &FDAData{DrugsFDA: []DrugsFDARecord{{ApplicationNumber: "NDA1"}}}
	assert.Equal(t, "", data.RxCUIHint())
}
