package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/extraction"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/sources"
)

func testFDAData() *sources.FDAData {
	return &sources.FDAData{
		SearchTerm: "TIBSOVO",
		DrugsFDA: []sources.DrugsFDARecord{{
			ApplicationNumber: "NDA211192",
			SponsorName:       "Agios Pharms Inc",
			OpenFDA: sources.OpenFDA{
				BrandNames:        []string{"TIBSOVO"},
				GenericNames:      []string{"IVOSIDENIB"},
				ManufacturerNames: []string{"Agios Pharmaceuticals, Inc."},
				SubstanceNames:    []string{"IVOSIDENIB"},
				Routes:            []string{"ORAL"},
				DosageForms:       []string{"TABLET"},
				PharmClassEPC:     []string{"Isocitrate Dehydrogenase 1 Inhibitor [EPC]"},
				RxCUIs:            []string{"2054109"},
				UNIIs:             []string{"Q2PCN8MAM6"},
				SPLIDs:            []string{"spl-1"},
			},
			Submissions: []sources.FDASubmission{{
				SubmissionType:   "ORIG",
				SubmissionNumber: "1",
				SubmissionStatus: "AP",
			}},
			Products: []sources.FDAProductEntry{{
				ProductNumber:   "001",
				BrandName:       "TIBSOVO",
				DosageForm:      "TABLET",
				Route:           "ORAL",
				MarketingStatus: "Prescription",
			}},
		}},
		NDC: []sources.NDCRecord{{
			ProductNDC:  "71334-100",
			BrandName:   "Tibsovo",
			GenericName: "ivosidenib",
			SPLID:       "spl-1",
			Packaging: []sources.NDCPackaging{{
				PackageNDC:  "71334-100-60",
				Description: "60 TABLET in 1 BOTTLE",
			}},
		}},
	}
}

func testRxNormData() *sources.RxNormData {
	return &sources.RxNormData{
		SearchTerm: "TIBSOVO",
		Found:      true,
		RxCUI:      "2054109",
		Name:       "ivosidenib",
		Ingredients: []sources.RxNormConcept{
			{RxCUI: "2054109", Name: "ivosidenib", TTY: "IN"},
		},
		Brands: []sources.RxNormConcept{
			{RxCUI: "2054115", Name: "Tibsovo", TTY: "BN"},
		},
		NDCCodes: []string{"71334-0100-60"},
		Interactions: []sources.DrugInteraction{{
			Severity:    "high",
			Description: "Ivosidenib may decrease itraconazole concentrations.",
			Source:      sources.InteractionConcept{RxCUI: "2054109", Name: "ivosidenib"},
			Target:      sources.InteractionConcept{RxCUI: "28031", Name: "itraconazole"},
		}},
	}
}

func TestBuildBundle_DrugsFDA(t *testing.T) {
	b, splMap := New(nil).BuildBundle("TIBSOVO", testFDAData(), nil)

	require.True(t, b.Found)

	drugKey := graph.NormalizeKey("NDA211192")
	drug, ok := b.Vertex(graph.CollectionDrugs, drugKey).(*graph.Drug)
	require.True(t, ok, "approval drug vertex missing")
	assert.Equal(t, "NDA211192", drug.ApplicationNumber)
	assert.Equal(t, "NDA", drug.DrugType)
	assert.Contains(t, drug.BrandNames, "TIBSOVO")

	sub, ok := b.Vertex(graph.CollectionSubstances, graph.NormalizeKey("IVOSIDENIB")).(*graph.Substance)
	require.True(t, ok, "substance vertex missing")
	assert.Equal(t, "Q2PCN8MAM6", sub.UNII)
	assert.False(t, sub.IsEnriched)

	assert.Len(t, b.Vertices(graph.CollectionManufacturers), 1)
	assert.Len(t, b.Vertices(graph.CollectionRoutes), 1)
	assert.Len(t, b.Vertices(graph.CollectionDosageForms), 1)
	assert.Len(t, b.Vertices(graph.CollectionPharmClasses), 1)
	assert.Len(t, b.Vertices(graph.CollectionApplications), 1)

	assert.True(t, b.HasEdge(graph.NewEdge(
		graph.CollectionDrugs, drugKey,
		graph.CollectionSubstances, sub.Key(), graph.EdgeDrugHasSubstance)))

	// NDC exact match contributes its SPL id for label fetching.
	ndcDrugKey := graph.NormalizeKey("71334-100")
	assert.Equal(t, "spl-1", splMap[ndcDrugKey])

	// Package products hang off the NDC drug.
	assert.True(t, b.HasEdge(graph.NewEdge(
		graph.CollectionProducts, graph.NormalizeKey("71334-100-60"),
		graph.CollectionDrugs, ndcDrugKey, graph.EdgeProductOfDrug)))
}

func TestBuildBundle_NDCOnlyNoExactMatchNoLabel(t *testing.T) {
	fda := &sources.FDAData{
		SearchTerm: "aspirin",
		NDC: []sources.NDCRecord{{
			ProductNDC: "1111-22",
			BrandName:  "Something Else",
			SPLID:      "spl-9",
		}},
	}

	_, splMap := New(nil).BuildBundle("aspirin", fda, nil)
	assert.Empty(t, splMap)
}

func TestBuildBundle_RxNormMergesOntoRegistryDrug(t *testing.T) {
	b, _ := New(nil).BuildBundle("TIBSOVO", testFDAData(), testRxNormData())

	// The approval drug already carries rxcui 2054109, so the nomenclature
	// data must land there instead of creating a parallel drug.
	drug, ok := b.Vertex(graph.CollectionDrugs, graph.NormalizeKey("NDA211192")).(*graph.Drug)
	require.True(t, ok)
	assert.Contains(t, drug.NDCCodes, "71334-0100-60")

	// Ingredient concept becomes a substance with its concept id.
	sub, ok := b.Vertex(graph.CollectionSubstances, graph.NormalizeKey("ivosidenib")).(*graph.Substance)
	require.True(t, ok)
	assert.Equal(t, "2054109", sub.RxCUI)

	// Interaction vertex plus edges from both drugs.
	interactions := b.Vertices(graph.CollectionInteractions)
	require.Len(t, interactions, 1)
	interaction := interactions[0].(*graph.Interaction)
	assert.Equal(t, "high", interaction.Severity)
	assert.Equal(t, "itraconazole", interaction.TargetDrugName)

	targetKey := graph.NormalizeKey("itraconazole")
	require.NotNil(t, b.Vertex(graph.CollectionDrugs, targetKey))
	assert.True(t, b.HasEdge(graph.NewEdge(
		graph.CollectionDrugs, targetKey,
		graph.CollectionInteractions, interaction.Key(), graph.EdgeDrugInteractsWith)))
}

func TestBuildBundle_RxNormAloneCreatesMainDrug(t *testing.T) {
	b, _ := New(nil).BuildBundle("ivosidenib", nil, testRxNormData())

	require.True(t, b.Found)
	drug, ok := b.Vertex(graph.CollectionDrugs, graph.NormalizeKey("ivosidenib")).(*graph.Drug)
	require.True(t, ok)
	assert.Contains(t, drug.RxCUIs, "2054109")
}

func TestBuildBundle_NothingFound(t *testing.T) {
	b, splMap := New(nil).BuildBundle("unknownium",
		&sources.FDAData{SearchTerm: "unknownium"},
		&sources.RxNormData{SearchTerm: "unknownium", Found: false})

	assert.False(t, b.Found)
	assert.Zero(t, b.VertexCount())
	assert.Empty(t, splMap)
}

func TestAttachLabel(t *testing.T) {
	a := New(nil)
	b, _ := a.BuildBundle("TIBSOVO", testFDAData(), nil)
	drugKey := graph.NormalizeKey("71334-100")

	a.AttachLabel(b, drugKey, "spl-1", &sources.LabelRecord{
		SetID:               "set-1",
		Version:             "4",
		IndicationsAndUsage: []string{"For AML."},
		Warnings:            []string{"Old-format warning."},
	})

	labels := b.Vertices(graph.CollectionDrugLabels)
	require.Len(t, labels, 1)
	label := labels[0].(*graph.DrugLabel)
	assert.Equal(t, "spl-1", label.SPLID)
	assert.Equal(t, "For AML.", label.IndicationsAndUsage)
	// warnings_and_cautions falls back to the legacy warnings section.
	assert.Equal(t, "Old-format warning.", label.WarningsAndCautions)

	assert.True(t, b.HasEdge(graph.NewEdge(
		graph.CollectionDrugs, drugKey,
		graph.CollectionDrugLabels, label.Key(), graph.EdgeDrugHasLabel)))
}

func TestApplyChemistry(t *testing.T) {
	a := New(nil)
	b, _ := a.BuildBundle("TIBSOVO", testFDAData(), nil)
	now := time.Now().UTC()

	enriched := a.ApplyChemistry(b, map[string]*sources.ChemicalData{
		"Q2PCN8MAM6": {
			UNII:            "Q2PCN8MAM6",
			Name:            "IVOSIDENIB",
			Formula:         "C28H22ClF3N6O3",
			MolecularWeight: 582.96,
			SMILES:          "CC(...)N",
			CASNumber:       "1448347-49-6",
		},
	}, now)

	assert.Equal(t, 1, enriched)
	sub := b.Vertex(graph.CollectionSubstances, graph.NormalizeKey("IVOSIDENIB")).(*graph.Substance)
	assert.True(t, sub.IsEnriched)
	require.NotNil(t, sub.EnrichedAt)
	assert.Equal(t, "C28H22ClF3N6O3", sub.Formula)
	assert.InDelta(t, 582.96, sub.MolecularWeight, 0.001)
}

func TestApplyChemistry_MatchesByNameWhenNoUNII(t *testing.T) {
	a := New(nil)
	b := graph.NewBundle("aspirin")
	b.AddVertex(graph.NewSubstance("aspirin"))

	enriched := a.ApplyChemistry(b, map[string]*sources.ChemicalData{
		"ASPIRIN": {UNII: "R16CO5Y76E", Name: "ASPIRIN", Formula: "C9H8O4"},
	}, time.Now())

	assert.Equal(t, 1, enriched)
	sub := b.Vertex(graph.CollectionSubstances, graph.NormalizeKey("aspirin")).(*graph.Substance)
	assert.Equal(t, "R16CO5Y76E", sub.UNII)
}

func TestChemistryRefs(t *testing.T) {
	a := New(nil)
	b, _ := a.BuildBundle("TIBSOVO", testFDAData(), nil)

	refs := a.ChemistryRefs(b)
	require.Len(t, refs, 1)
	assert.Equal(t, "Q2PCN8MAM6", refs[0].UNII)
	assert.Equal(t, "IVOSIDENIB", refs[0].Name)
}

func TestEnsureMainSubstance_CreatesAndLinks(t *testing.T) {
	a := New(nil)
	b, _ := a.BuildBundle("TIBSOVO", testFDAData(), nil)

	main := a.EnsureMainSubstance(b, "TIBSOVO")

	require.NotNil(t, main)
	assert.Equal(t, graph.NormalizeKey("TIBSOVO"), main.Key())
	assert.Equal(t, "TIBSOVO", main.Name)
	for _, drug := range b.Vertices(graph.CollectionDrugs) {
		assert.True(t, b.HasEdge(graph.Connect(drug, main, graph.EdgeDrugHasSubstance)))
	}
}

func TestEnsureMainSubstance_ReusesCaseInsensitiveMatch(t *testing.T) {
	a := New(nil)
	b, _ := a.BuildBundle("ivosidenib", testFDAData(), nil)

	// IVOSIDENIB already exists from the registry data; no duplicate vertex.
	main := a.EnsureMainSubstance(b, "ivosidenib")

	require.NotNil(t, main)
	assert.Equal(t, "IVOSIDENIB", main.Name)
	assert.Len(t, b.Vertices(graph.CollectionSubstances), 1)
}

func TestLinkAliases(t *testing.T) {
	a := New(nil)
	b := graph.NewBundle("doc")

	a.LinkAliases(b, []extraction.ResolvedLink{{
		FromName:     "TIBSOVO",
		ToName:       "ivosidenib",
		Relationship: extraction.RelBrandOf,
		Confidence:   95,
		Source:       "extractor",
	}})

	fromKey := graph.NormalizeKey("TIBSOVO")
	toKey := graph.NormalizeKey("ivosidenib")
	from, ok := b.Vertex(graph.CollectionDrugs, fromKey).(*graph.Drug)
	require.True(t, ok)
	assert.True(t, from.IsAlias)
	assert.Contains(t, from.BrandNames, "TIBSOVO")

	edges := b.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, graph.EdgeDrugAliasOf, edges[0].EdgeCollection)
	assert.Equal(t, fromKey, edges[0].FromKey)
	assert.Equal(t, toKey, edges[0].ToKey)
	assert.Equal(t, 95, edges[0].Properties["confidence"])
}

func TestLinkAliases_SkipsSelfLink(t *testing.T) {
	a := New(nil)
	b := graph.NewBundle("doc")

	a.LinkAliases(b, []extraction.ResolvedLink{{
		FromName:     "Aspirin",
		ToName:       "ASPIRIN",
		Relationship: extraction.RelSameAs,
		Confidence:   80,
	}})

	assert.Zero(t, b.EdgeCount())
}
