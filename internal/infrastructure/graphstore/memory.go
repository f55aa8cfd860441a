// Package graphstore provides graph.Store implementations.  MemoryStore is
// the in-process implementation used by the worker in single-node deployments
// and by tests; the neo4j-backed implementation lives in
// internal/infrastructure/database/neo4j/repositories.
package graphstore

import (
	"context"
	"hash/fnv"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

const shardCount = 32

// memoryShard owns a slice of the key space.  Vertices live in the shard of
// their (collection, key) pair; edges live in the shard of their from
// endpoint so EdgesFrom never crosses shards.
type memoryShard struct {
	mu       sync.RWMutex
	vertices map[string]map[string]graph.Vertex
	edges    map[string]graph.Edge
}

// MemoryStore keeps the whole graph in process memory.  Keys hash onto a
// fixed set of mutex-guarded shards, so writes to disjoint keys proceed in
// parallel; a bundle commit locks every shard it touches in ascending index
// order and holds them all until the bundle is fully applied, which keeps
// the commit all-or-nothing and concurrent commits deadlock-free.  Reads
// return clones so callers can never mutate stored state.
type MemoryStore struct {
	shards [shardCount]memoryShard
	logger logging.Logger
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(logger logging.Logger) *MemoryStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &MemoryStore{logger: logger.Named("graphstore")}
	for i := range s.shards {
		s.shards[i].vertices = make(map[string]map[string]graph.Vertex)
		s.shards[i].edges = make(map[string]graph.Edge)
	}
	return s
}

// shardIndex maps one natural key to its shard.
func shardIndex(collection, key string) int {
	h := fnv.New32a()
	h.Write([]byte(collection))
	h.Write([]byte{'/'})
	h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

func (s *MemoryStore) shardFor(collection, key string) *memoryShard {
	return &s.shards[shardIndex(collection, key)]
}

// touchedShards returns the distinct shard indexes the bundle writes to, in
// ascending order.  Every writer acquiring its shards in this order is what
// rules out lock-order deadlocks between overlapping bundles.
func touchedShards(bundle *graph.Bundle) []int {
	seen := make(map[int]struct{})
	for _, coll := range bundle.Collections() {
		for _, v := range bundle.Vertices(coll) {
			seen[shardIndex(coll, v.Key())] = struct{}{}
		}
	}
	for _, e := range bundle.Edges() {
		seen[shardIndex(e.FromCollection, e.FromKey)] = struct{}{}
		seen[shardIndex(e.ToCollection, e.ToKey)] = struct{}{}
	}
	idx := make([]int, 0, len(seen))
	for i := range seen {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Apply commits the bundle.  Vertices merge into existing ones under the
// platform merge rules, edges are keyed by their deterministic storage key,
// and edges referencing absent vertices get stub endpoints created alongside
// them.  Re-applying the same bundle reports all-zero stats.
func (s *MemoryStore) Apply(ctx context.Context, bundle *graph.Bundle) (graph.ApplyStats, error) {
	var stats graph.ApplyStats
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if bundle == nil {
		return stats, nil
	}

	touched := touchedShards(bundle)
	for _, i := range touched {
		s.shards[i].mu.Lock()
	}
	defer func() {
		for _, i := range touched {
			s.shards[i].mu.Unlock()
		}
	}()

	for _, coll := range bundle.Collections() {
		for _, v := range bundle.Vertices(coll) {
			s.applyVertex(v, &stats)
		}
	}
	for _, e := range bundle.Edges() {
		sh := s.shardFor(e.FromCollection, e.FromKey)
		key := e.StorageKey()
		if _, ok := sh.edges[key]; ok {
			continue
		}
		sh.edges[key] = e
		stats.EdgesCreated++
		s.ensureEndpoint(e.FromCollection, e.FromKey, &stats)
		s.ensureEndpoint(e.ToCollection, e.ToKey, &stats)
	}

	s.logger.Debug("bundle applied",
		logging.String("search_term", bundle.SearchTerm),
		logging.Int("vertices_created", stats.VerticesCreated),
		logging.Int("vertices_updated", stats.VerticesUpdated),
		logging.Int("edges_created", stats.EdgesCreated),
		logging.Int("stubs_created", stats.StubsCreated))
	return stats, nil
}

// applyVertex writes one vertex into its shard; the caller holds the shard
// lock.
func (s *MemoryStore) applyVertex(v graph.Vertex, stats *graph.ApplyStats) {
	sh := s.shardFor(v.Collection(), v.Key())
	coll := sh.vertices[v.Collection()]
	if coll == nil {
		coll = make(map[string]graph.Vertex)
		sh.vertices[v.Collection()] = coll
	}
	existing, ok := coll[v.Key()]
	if !ok {
		coll[v.Key()] = cloneVertex(v)
		stats.VerticesCreated++
		return
	}
	if _, isStub := existing.(*stubVertex); isStub {
		coll[v.Key()] = cloneVertex(v)
		stats.VerticesUpdated++
		return
	}
	before := cloneVertex(existing)
	existing.Merge(v)
	if !reflect.DeepEqual(before, existing) {
		stats.VerticesUpdated++
	}
}

// ensureEndpoint creates a stub vertex for a dangling edge endpoint; the
// caller holds the endpoint's shard lock.  Substance stubs are typed so
// GetSubstance still finds them.
func (s *MemoryStore) ensureEndpoint(collection, key string, stats *graph.ApplyStats) {
	sh := s.shardFor(collection, key)
	coll := sh.vertices[collection]
	if coll == nil {
		coll = make(map[string]graph.Vertex)
		sh.vertices[collection] = coll
	}
	if _, ok := coll[key]; ok {
		return
	}
	if collection == graph.CollectionSubstances {
		coll[key] = &graph.Substance{VertexKey: key}
	} else {
		coll[key] = &stubVertex{collection: collection, key: key}
	}
	stats.StubsCreated++
}

// GetSubstance loads one substance by normalized key.
func (s *MemoryStore) GetSubstance(ctx context.Context, key string) (*graph.Substance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh := s.shardFor(graph.CollectionSubstances, key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	v, ok := sh.vertices[graph.CollectionSubstances][key]
	if !ok {
		return nil, errors.New(errors.ErrCodeSubstanceNotFound,
			"substance not found").WithDetail("key=" + key)
	}
	sub, ok := v.(*graph.Substance)
	if !ok {
		return nil, errors.New(errors.ErrCodeSubstanceNotFound,
			"substance not found").WithDetail("key=" + key)
	}
	return cloneVertex(sub).(*graph.Substance), nil
}

// FindEnrichedByNames returns the already-enriched substances among names.
func (s *MemoryStore) FindEnrichedByNames(ctx context.Context, names []string) (map[string]*graph.Substance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]*graph.Substance)
	for _, name := range names {
		key := graph.NormalizeKey(name)
		sh := s.shardFor(graph.CollectionSubstances, key)
		sh.mu.RLock()
		sub, ok := sh.vertices[graph.CollectionSubstances][key].(*graph.Substance)
		if ok && sub.IsEnriched {
			out[key] = cloneVertex(sub).(*graph.Substance)
		}
		sh.mu.RUnlock()
	}
	return out, nil
}

// SearchSubstances matches query case-insensitively against substance names
// and keys.  A non-positive limit means no limit.
func (s *MemoryStore) SearchSubstances(ctx context.Context, query string, limit int) ([]*graph.Substance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	s.rlockAll()
	defer s.runlockAll()

	var keys []string
	byKey := make(map[string]*graph.Substance)
	for i := range s.shards {
		for k, v := range s.shards[i].vertices[graph.CollectionSubstances] {
			if sub, ok := v.(*graph.Substance); ok {
				keys = append(keys, k)
				byKey[k] = sub
			}
		}
	}
	sort.Strings(keys)

	var out []*graph.Substance
	for _, k := range keys {
		sub := byKey[k]
		if !strings.Contains(strings.ToLower(sub.Name), needle) && !strings.Contains(k, needle) {
			continue
		}
		out = append(out, cloneVertex(sub).(*graph.Substance))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CollectionCounts returns per-collection vertex counts plus the edge total.
func (s *MemoryStore) CollectionCounts(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.rlockAll()
	defer s.runlockAll()

	out := make(map[string]int)
	edges := 0
	for i := range s.shards {
		for c, coll := range s.shards[i].vertices {
			out[c] += len(coll)
		}
		edges += len(s.shards[i].edges)
	}
	out["edges"] = edges
	return out, nil
}

// Vertex returns the stored vertex at (collection, key), or nil.  It exposes
// the raw stored value for tests and diagnostics; callers must not mutate it.
func (s *MemoryStore) Vertex(collection, key string) graph.Vertex {
	sh := s.shardFor(collection, key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.vertices[collection][key]
}

// EdgesFrom returns the stored edges leaving (collection, key), sorted by
// storage key.
func (s *MemoryStore) EdgesFrom(collection, key string) []graph.Edge {
	sh := s.shardFor(collection, key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	ids := make([]string, 0)
	for id, e := range sh.edges {
		if e.FromCollection == collection && e.FromKey == key {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]graph.Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, sh.edges[id])
	}
	return out
}

// rlockAll takes every shard read lock in ascending order, for whole-graph
// scans.
func (s *MemoryStore) rlockAll() {
	for i := range s.shards {
		s.shards[i].mu.RLock()
	}
}

func (s *MemoryStore) runlockAll() {
	for i := range s.shards {
		s.shards[i].mu.RUnlock()
	}
}

// stubVertex is the placeholder stored for a dangling edge endpoint in a
// non-substance collection.  The first real observation of the vertex
// replaces it.
type stubVertex struct {
	collection string
	key        string
}

func (s *stubVertex) Collection() string      { return s.collection }
func (s *stubVertex) Key() string             { return s.key }
func (s *stubVertex) Merge(other graph.Vertex) {}

// cloneVertex copies a vertex so stored state and caller state never share
// memory.  Slice fields get their own backing arrays because Merge appends
// to them in place.
func cloneVertex(v graph.Vertex) graph.Vertex {
	if st, ok := v.(*stubVertex); ok {
		c := *st
		return &c
	}
	rv := reflect.ValueOf(v)
	nv := reflect.New(rv.Type().Elem())
	nv.Elem().Set(rv.Elem())
	for i := 0; i < nv.Elem().NumField(); i++ {
		f := nv.Elem().Field(i)
		if f.Kind() == reflect.Slice && !f.IsNil() {
			c := reflect.MakeSlice(f.Type(), f.Len(), f.Len())
			reflect.Copy(c, f)
			f.Set(c)
		}
	}
	return nv.Interface().(graph.Vertex)
}
