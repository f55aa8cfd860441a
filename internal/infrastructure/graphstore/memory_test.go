package graphstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

func testBundle() *graph.Bundle {
	b := graph.NewBundle("TIBSOVO")
	b.Found = true

	sub := graph.NewSubstance("IVOSIDENIB")
	sub.UNII = "Q2PCN8MAM6"
	b.AddVertex(sub)

	drug := graph.NewDrug("TIBSOVO")
	drug.BrandNames = []string{"TIBSOVO"}
	drug.GenericNames = []string{"IVOSIDENIB"}
	b.AddVertex(drug)

	b.AddEdge(graph.Connect(drug, sub, graph.EdgeDrugHasSubstance))
	return b
}

func TestApply_CreatesVerticesAndEdges(t *testing.T) {
	store := NewMemoryStore(nil)

	stats, err := store.Apply(context.Background(), testBundle())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.VerticesCreated)
	assert.Equal(t, 0, stats.VerticesUpdated)
	assert.Equal(t, 1, stats.EdgesCreated)
	assert.Equal(t, 0, stats.StubsCreated)

	sub, err := store.GetSubstance(context.Background(), graph.NormalizeKey("IVOSIDENIB"))
	require.NoError(t, err)
	assert.Equal(t, "Q2PCN8MAM6", sub.UNII)
}

func TestApply_IsIdempotent(t *testing.T) {
	store := NewMemoryStore(nil)

	_, err := store.Apply(context.Background(), testBundle())
	require.NoError(t, err)

	stats, err := store.Apply(context.Background(), testBundle())
	require.NoError(t, err)

	assert.Equal(t, graph.ApplyStats{}, stats, "re-applying the same bundle must be a no-op")

	counts, err := store.CollectionCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[graph.CollectionSubstances])
	assert.Equal(t, 1, counts[graph.CollectionDrugs])
	assert.Equal(t, 1, counts["edges"])
}

func TestApply_MergesIntoExistingVertex(t *testing.T) {
	store := NewMemoryStore(nil)
	_, err := store.Apply(context.Background(), testBundle())
	require.NoError(t, err)

	b := graph.NewBundle("ivosidenib")
	sub := graph.NewSubstance("IVOSIDENIB")
	sub.Formula = "C28H22ClF3N6O3"
	b.AddVertex(sub)

	stats, err := store.Apply(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.VerticesCreated)
	assert.Equal(t, 1, stats.VerticesUpdated)

	got, err := store.GetSubstance(context.Background(), graph.NormalizeKey("IVOSIDENIB"))
	require.NoError(t, err)
	assert.Equal(t, "Q2PCN8MAM6", got.UNII, "merge must not erase existing data")
	assert.Equal(t, "C28H22ClF3N6O3", got.Formula)
}

func TestApply_CreatesStubForDanglingEdge(t *testing.T) {
	store := NewMemoryStore(nil)

	b := graph.NewBundle("aspirin")
	drug := graph.NewDrug("ASPIRIN")
	b.AddVertex(drug)
	b.AddEdge(graph.NewEdge(
		graph.CollectionDrugs, drug.Key(),
		graph.CollectionSubstances, graph.NormalizeKey("ACETYLSALICYLIC ACID"),
		graph.EdgeDrugHasSubstance))

	stats, err := store.Apply(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StubsCreated)

	// The stub is a real substance vertex, unenriched.
	stub, err := store.GetSubstance(context.Background(), graph.NormalizeKey("ACETYLSALICYLIC ACID"))
	require.NoError(t, err)
	assert.False(t, stub.IsEnriched)
	assert.Empty(t, stub.Name)
}

func TestApply_RealVertexReplacesStub(t *testing.T) {
	store := NewMemoryStore(nil)

	dangling := graph.NewBundle("x")
	from := graph.NewDrug("A")
	dangling.AddVertex(from)
	dangling.AddEdge(graph.NewEdge(
		graph.CollectionDrugs, from.Key(),
		graph.CollectionReactions, graph.NormalizeKey("NAUSEA"),
		graph.EdgeDrugCausesReaction))
	_, err := store.Apply(context.Background(), dangling)
	require.NoError(t, err)

	real := graph.NewBundle("y")
	real.AddVertex(graph.NewReaction("NAUSEA"))
	stats, err := store.Apply(context.Background(), real)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.VerticesUpdated)

	v := store.Vertex(graph.CollectionReactions, graph.NormalizeKey("NAUSEA"))
	reaction, ok := v.(*graph.Reaction)
	require.True(t, ok)
	assert.Equal(t, "NAUSEA", reaction.Name)
}

func TestApply_EnrichmentIsMonotonic(t *testing.T) {
	store := NewMemoryStore(nil)

	enriched := graph.NewBundle("a")
	sub := graph.NewSubstance("IVOSIDENIB")
	sub.MarkEnriched(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	enriched.AddVertex(sub)
	_, err := store.Apply(context.Background(), enriched)
	require.NoError(t, err)

	// A later stub observation must not downgrade the substance.
	later := graph.NewBundle("b")
	later.AddVertex(graph.NewSubstance("IVOSIDENIB"))
	_, err = store.Apply(context.Background(), later)
	require.NoError(t, err)

	got, err := store.GetSubstance(context.Background(), graph.NormalizeKey("IVOSIDENIB"))
	require.NoError(t, err)
	assert.True(t, got.IsEnriched)
	require.NotNil(t, got.EnrichedAt)
}

func TestGetSubstance_NotFound(t *testing.T) {
	store := NewMemoryStore(nil)

	_, err := store.GetSubstance(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSubstanceNotFound))
	assert.True(t, errors.IsNotFound(err))
}

func TestGetSubstance_ReturnsCopy(t *testing.T) {
	store := NewMemoryStore(nil)
	_, err := store.Apply(context.Background(), testBundle())
	require.NoError(t, err)

	key := graph.NormalizeKey("IVOSIDENIB")
	first, err := store.GetSubstance(context.Background(), key)
	require.NoError(t, err)
	first.UNII = "MUTATED"

	second, err := store.GetSubstance(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "Q2PCN8MAM6", second.UNII)
}

func TestFindEnrichedByNames(t *testing.T) {
	store := NewMemoryStore(nil)

	b := graph.NewBundle("mix")
	enriched := graph.NewSubstance("IVOSIDENIB")
	enriched.MarkEnriched(time.Now())
	b.AddVertex(enriched)
	b.AddVertex(graph.NewSubstance("GEMCITABINE"))
	_, err := store.Apply(context.Background(), b)
	require.NoError(t, err)

	out, err := store.FindEnrichedByNames(context.Background(),
		[]string{"ivosidenib", "gemcitabine", "unknown"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	_, ok := out[graph.NormalizeKey("ivosidenib")]
	assert.True(t, ok)
}

func TestSearchSubstances(t *testing.T) {
	store := NewMemoryStore(nil)

	b := graph.NewBundle("mix")
	b.AddVertex(graph.NewSubstance("Ivosidenib"))
	b.AddVertex(graph.NewSubstance("Gemcitabine"))
	b.AddVertex(graph.NewSubstance("Gefitinib"))
	_, err := store.Apply(context.Background(), b)
	require.NoError(t, err)

	got, err := store.SearchSubstances(context.Background(), "GE", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Gefitinib", got[0].Name)
	assert.Equal(t, "Gemcitabine", got[1].Name)

	limited, err := store.SearchSubstances(context.Background(), "GE", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := store.SearchSubstances(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestEdgesFrom(t *testing.T) {
	store := NewMemoryStore(nil)
	_, err := store.Apply(context.Background(), testBundle())
	require.NoError(t, err)

	edges := store.EdgesFrom(graph.CollectionDrugs, graph.NormalizeKey("TIBSOVO"))
	require.Len(t, edges, 1)
	assert.Equal(t, graph.EdgeDrugHasSubstance, edges[0].EdgeCollection)
}

func TestTouchedShards_SortedAndUnique(t *testing.T) {
	b := graph.NewBundle("mix")
	for i := 0; i < 100; i++ {
		b.AddVertex(graph.NewSubstance(fmt.Sprintf("SUBSTANCE %d", i)))
	}
	b.AddEdge(graph.NewEdge(
		graph.CollectionDrugs, graph.NormalizeKey("TIBSOVO"),
		graph.CollectionSubstances, graph.NormalizeKey("SUBSTANCE 0"),
		graph.EdgeDrugHasSubstance))

	touched := touchedShards(b)
	require.NotEmpty(t, touched)
	for i := 1; i < len(touched); i++ {
		assert.Greater(t, touched[i], touched[i-1], "shard indexes must be strictly ascending")
	}
	assert.Contains(t, touched, shardIndex(graph.CollectionDrugs, graph.NormalizeKey("TIBSOVO")),
		"edge endpoints count as touched")
}

func TestApply_DisjointKeysDoNotBlockEachOther(t *testing.T) {
	store := NewMemoryStore(nil)

	held := graph.NewSubstance("IVOSIDENIB")
	heldShard := shardIndex(graph.CollectionSubstances, held.Key())

	// Find a substance that hashes to a different shard.
	var other *graph.Substance
	for i := 0; i < 100; i++ {
		candidate := graph.NewSubstance(fmt.Sprintf("SUBSTANCE %d", i))
		if shardIndex(graph.CollectionSubstances, candidate.Key()) != heldShard {
			other = candidate
			break
		}
	}
	require.NotNil(t, other)

	store.shards[heldShard].mu.Lock()
	defer store.shards[heldShard].mu.Unlock()

	b := graph.NewBundle(other.Name)
	b.AddVertex(other)

	done := make(chan error, 1)
	go func() {
		_, err := store.Apply(context.Background(), b)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("apply to a disjoint key blocked behind an unrelated shard lock")
	}
}

func TestApply_ConcurrentDisjointBundles(t *testing.T) {
	store := NewMemoryStore(nil)

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := graph.NewBundle(fmt.Sprintf("term %d", i))
			sub := graph.NewSubstance(fmt.Sprintf("SUBSTANCE %d", i))
			drug := graph.NewDrug(fmt.Sprintf("DRUG %d", i))
			b.AddVertex(sub)
			b.AddVertex(drug)
			b.AddEdge(graph.Connect(drug, sub, graph.EdgeDrugHasSubstance))
			_, err := store.Apply(context.Background(), b)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	counts, err := store.CollectionCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n, counts[graph.CollectionSubstances])
	assert.Equal(t, n, counts[graph.CollectionDrugs])
	assert.Equal(t, n, counts["edges"])
}

func TestApply_ContextCancelled(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Apply(ctx, testBundle())
	assert.ErrorIs(t, err, context.Canceled)
}
