package graph

import "sort"

// Bundle is the aggregate output of one enrichment pass: a deduplicated set
// of vertices and edges ready to be applied to a GraphStore as a unit.
//
// Vertices are keyed by (collection, key); adding a vertex that already
// exists merges the new observation into the stored one rather than
// replacing it.  Edges are deduplicated by endpoint identity.  A Bundle is
// not safe for concurrent mutation; build per goroutine and combine with
// MergeFrom.
type Bundle struct {
	SearchTerm string
	Found      bool

	vertices map[string]map[string]Vertex
	edges    map[string]Edge
	order    []string
}

// NewBundle constructs an empty Bundle for the given search term.
func NewBundle(searchTerm string) *Bundle {
	return &Bundle{
		SearchTerm: searchTerm,
		vertices:   make(map[string]map[string]Vertex),
		edges:      make(map[string]Edge),
	}
}

// AddVertex inserts v, merging into any existing vertex with the same
// collection and key.  Vertices with an empty key are dropped; they cannot
// be addressed and would break referential integrity downstream.
// It returns the vertex now stored under that address.
func (b *Bundle) AddVertex(v Vertex) Vertex {
	if v == nil || v.Key() == "" {
		return nil
	}
	coll := b.vertices[v.Collection()]
	if coll == nil {
		coll = make(map[string]Vertex)
		b.vertices[v.Collection()] = coll
	}
	if existing, ok := coll[v.Key()]; ok {
		existing.Merge(v)
		return existing
	}
	coll[v.Key()] = v
	return v
}

// AddEdge inserts e unless an edge with the same endpoints and collection is
// already present.  Edges with an empty endpoint key are dropped.
// It reports whether the edge was added.
func (b *Bundle) AddEdge(e Edge) bool {
	if e.FromKey == "" || e.ToKey == "" {
		return false
	}
	id := e.DedupID()
	if _, ok := b.edges[id]; ok {
		return false
	}
	b.edges[id] = e
	b.order = append(b.order, id)
	return true
}

// Vertex returns the vertex stored under (collection, key), or nil.
func (b *Bundle) Vertex(collection, key string) Vertex {
	return b.vertices[collection][key]
}

// Vertices returns all vertices in the given collection in key order.
func (b *Bundle) Vertices(collection string) []Vertex {
	coll := b.vertices[collection]
	keys := make([]string, 0, len(coll))
	for k := range coll {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Vertex, 0, len(keys))
	for _, k := range keys {
		out = append(out, coll[k])
	}
	return out
}

// Collections returns the names of all vertex collections present, sorted.
func (b *Bundle) Collections() []string {
	out := make([]string, 0, len(b.vertices))
	for c := range b.vertices {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Edges returns all edges in insertion order.
func (b *Bundle) Edges() []Edge {
	out := make([]Edge, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.edges[id])
	}
	return out
}

// HasEdge reports whether an edge with the same endpoints and collection is
// present.
func (b *Bundle) HasEdge(e Edge) bool {
	_, ok := b.edges[e.DedupID()]
	return ok
}

// VertexCount returns the total number of vertices across all collections.
func (b *Bundle) VertexCount() int {
	n := 0
	for _, coll := range b.vertices {
		n += len(coll)
	}
	return n
}

// EdgeCount returns the number of distinct edges.
func (b *Bundle) EdgeCount() int { return len(b.edges) }

// MergeFrom folds every vertex and edge of other into b.  Merging is
// order-independent with respect to list fields and enrichment flags, which
// lets per-substance bundles built concurrently be combined in completion
// order.
func (b *Bundle) MergeFrom(other *Bundle) {
	if other == nil {
		return
	}
	if other.Found {
		b.Found = true
	}
	for _, coll := range other.Collections() {
		for _, v := range other.Vertices(coll) {
			b.AddVertex(v)
		}
	}
	for _, e := range other.Edges() {
		b.AddEdge(e)
	}
}

// Summary returns per-collection vertex counts plus the edge total, for
// logging after an enrichment pass.
func (b *Bundle) Summary() map[string]int {
	out := make(map[string]int, len(b.vertices)+1)
	for c, coll := range b.vertices {
		out[c] = len(coll)
	}
	out["edges"] = len(b.edges)
	return out
}
