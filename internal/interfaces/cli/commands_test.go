package cli

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxGraph-Intelligence/pkg/client"
)

func TestProcessCmd_Text(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/documents", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "TIBSOVO is ivosidenib.", req["text"])

		_ = json.NewEncoder(w).Encode(client.ProcessResult{
			ExtractionID: "abc123",
			Entities:     []client.Entity{{Name: "TIBSOVO", Type: "BRAND", Confidence: 95}},
			Substances:   []client.SubstanceRef{{Name: "ivosidenib", Key: "ivosidenib"}},
		})
	}
	cliCtx := newTestCLIContext(t, handler, "json")

	out, err := runCommand(t, NewProcessCmd(), cliCtx, "--text", "TIBSOVO is ivosidenib.")
	require.NoError(t, err)
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "extraction abc123: 1 entities, 1 substances resolved")
}

func TestProcessCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("aspirin 100mg"), 0o600))

	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/documents/upload", r.URL.Path)
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "note.txt", header.Filename)

		_ = json.NewEncoder(w).Encode(client.ProcessResult{ExtractionID: "def456"})
	}
	cliCtx := newTestCLIContext(t, handler, "json")

	out, err := runCommand(t, NewProcessCmd(), cliCtx, path)
	require.NoError(t, err)
	assert.Contains(t, out, "def456")
}

func TestProcessCmd_NoInput(t *testing.T) {
	cliCtx := newTestCLIContext(t, func(w http.ResponseWriter, r *http.Request) {}, "json")

	_, err := runCommand(t, NewProcessCmd(), cliCtx)
	assert.Error(t, err)
}

func TestProcessCmd_TextAndFileConflict(t *testing.T) {
	cliCtx := newTestCLIContext(t, func(w http.ResponseWriter, r *http.Request) {}, "json")

	_, err := runCommand(t, NewProcessCmd(), cliCtx, "--text", "x", "some-file.txt")
	assert.Error(t, err)
}

func TestProcessCmd_TableOutput(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(client.ProcessResult{
			ExtractionID: "abc123",
			Entities: []client.Entity{
				{Name: "TIBSOVO", Type: "BRAND", Confidence: 95},
				{Name: "ivosidenib", Type: "GENERIC", Confidence: 98},
			},
		})
	}
	cliCtx := newTestCLIContext(t, handler, "table")

	out, err := runCommand(t, NewProcessCmd(), cliCtx, "--text", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "TIBSOVO")
	assert.Contains(t, out, "GENERIC")
}

func TestExtractionsListCmd(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/extractions", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"extractions": []client.Extraction{
				{ContentKey: "k1", Filename: "a.pdf", Status: "COMPLETED", EntityCount: 3, CreatedAt: time.Now()},
			},
		})
	}
	cliCtx := newTestCLIContext(t, handler, "table")

	out, err := runCommand(t, NewExtractionsCmd(), cliCtx, "list", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "CONTENT_KEY")
	assert.Contains(t, out, "a.pdf")
}

func TestExtractionsGetCmd(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/extractions/k1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(client.ExtractionDetail{
			Record: client.Extraction{ContentKey: "k1", Status: "COMPLETED"},
		})
	}
	cliCtx := newTestCLIContext(t, handler, "json")

	out, err := runCommand(t, NewExtractionsCmd(), cliCtx, "get", "k1")
	require.NoError(t, err)
	assert.Contains(t, out, "COMPLETED")
}

func TestEntityCmd(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/entities/ivosidenib", r.URL.Path)
		_ = json.NewEncoder(w).Encode(client.Substance{
			Key: "ivosidenib", Name: "ivosidenib", UNII: "Q2PCN8MAM6", IsEnriched: true,
		})
	}
	cliCtx := newTestCLIContext(t, handler, "json")

	out, err := runCommand(t, NewEntityCmd(), cliCtx, "ivosidenib")
	require.NoError(t, err)
	assert.Contains(t, out, "Q2PCN8MAM6")
}

func TestEntityCmd_NotFound(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "SUB_001", "message": "substance not found"}`))
	}
	cliCtx := newTestCLIContext(t, handler, "json")

	_, err := runCommand(t, NewEntityCmd(), cliCtx, "nosuchdrug")
	require.Error(t, err)

	var apiErr *client.APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestSearchCmd_Table(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/entities/search", r.URL.Path)
		assert.Equal(t, "ivo", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode(client.SearchResult{
			Query: "ivo",
			Count: 1,
			Results: []client.Substance{
				{Key: "ivosidenib", Name: "ivosidenib", UNII: "Q2PCN8MAM6", IsEnriched: true},
			},
		})
	}
	cliCtx := newTestCLIContext(t, handler, "table")

	out, err := runCommand(t, NewSearchCmd(), cliCtx, "ivo")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "ivosidenib")
	assert.Contains(t, out, "yes")
}

func TestGraphCountsCmd(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/graph/counts", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"counts": map[string]int{"substances": 7, "edges": 12},
		})
	}
	cliCtx := newTestCLIContext(t, handler, "table")

	out, err := runCommand(t, NewGraphCmd(), cliCtx, "counts")
	require.NoError(t, err)
	assert.Contains(t, out, "COLLECTION")
	assert.Contains(t, out, "substances")
	assert.Contains(t, out, "7")
}
