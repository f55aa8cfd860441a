package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

func TestParseEntityType(t *testing.T) {
	cases := []struct {
		in      string
		want    EntityType
		wantErr bool
	}{
		{"BRAND", EntityBrand, false},
		{"generic", EntityGeneric, false},
		{" code ", EntityCode, false},
		{"Ingredient", EntityIngredient, false},
		{"DRUG", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseEntityType(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeEntityTypeUnknown))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRelationship(t *testing.T) {
	got, err := ParseRelationship("BRAND_OF")
	require.NoError(t, err)
	assert.Equal(t, RelBrandOf, got)

	_, err = ParseRelationship("parent_of")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestCandidateEntity_Validate(t *testing.T) {
	valid := CandidateEntity{Name: "TIBSOVO", Type: EntityBrand, Confidence: 95}
	assert.NoError(t, valid.Validate())

	absent := CandidateEntity{Name: "AG-120", Type: EntityCode, Confidence: ConfidenceAbsent}
	assert.NoError(t, absent.Validate())

	noName := CandidateEntity{Type: EntityBrand, Confidence: 90}
	assert.Error(t, noName.Validate())

	badType := CandidateEntity{Name: "x", Type: "DEVICE", Confidence: 90}
	assert.True(t, errors.IsCode(badType.Validate(), errors.ErrCodeEntityTypeUnknown))

	badConfidence := CandidateEntity{Name: "x", Type: EntityBrand, Confidence: 101}
	assert.True(t, errors.IsCode(badConfidence.Validate(), errors.ErrCodeValidation))

	negative := CandidateEntity{Name: "x", Type: EntityBrand, Confidence: -2}
	assert.Error(t, negative.Validate())
}

func TestCandidateEntity_Enrichable(t *testing.T) {
	assert.True(t, CandidateEntity{Type: EntityBrand}.Enrichable())
	assert.True(t, CandidateEntity{Type: EntityGeneric}.Enrichable())
	assert.False(t, CandidateEntity{Type: EntityCode}.Enrichable())
	assert.False(t, CandidateEntity{Type: EntityIngredient}.Enrichable())
}

func TestResult_EnrichableNames_DedupedInOrder(t *testing.T) {
	r := &Result{Entities: []LinkedEntity{
		{CandidateEntity: CandidateEntity{Name: "TIBSOVO", Type: EntityBrand}},
		{CandidateEntity: CandidateEntity{Name: "ivosidenib", Type: EntityGeneric}},
		{CandidateEntity: CandidateEntity{Name: "AG-120", Type: EntityCode}},
		{CandidateEntity: CandidateEntity{Name: "TIBSOVO", Type: EntityBrand}},
	}}
	assert.Equal(t, []string{"TIBSOVO", "ivosidenib"}, r.EnrichableNames())
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	c := ContentHash([]byte("different bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}

func TestRecord_Lifecycle(t *testing.T) {
	rec := NewRecord([]byte("doc"), "paper.pdf", "pdf")
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, ContentHash([]byte("doc")), rec.Key())

	res := &Result{
		Entities:   []LinkedEntity{{CandidateEntity: CandidateEntity{Name: "x", Type: EntityBrand}}},
		Links:      []ResolvedLink{{FromName: "x", ToName: "y", Relationship: RelBrandOf, Confidence: 90}},
		ModelUsed:  "gpt-4o-mini",
		TokensUsed: 1234,
	}
	rec.Complete(res)

	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 1, rec.EntityCount)
	assert.Equal(t, 1, rec.LinkCount)
	assert.Equal(t, 1234, rec.TokensUsed)
}

func TestRecord_Fail(t *testing.T) {
	rec := NewRecord([]byte("doc"), "paper.pdf", "pdf")
	rec.Fail("extractor returned malformed JSON")

	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "extractor returned malformed JSON", rec.Error)
}
