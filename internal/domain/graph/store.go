package graph

import "context"

// ApplyStats reports what a Store did with a bundle.  Re-applying the same
// bundle must leave every Created counter at zero.
type ApplyStats struct {
	VerticesCreated int
	VerticesUpdated int
	EdgesCreated    int
	StubsCreated    int
}

// Store persists bundles into the knowledge graph.  Implementations must
// guarantee:
//
//   - Idempotence: applying the same bundle twice leaves the graph unchanged
//     the second time.
//   - Referential validity: an edge whose endpoint vertex is missing causes a
//     stub vertex to be created alongside the edge, never a dangling
//     reference.
//   - Monotonic enrichment: a write that would move a substance from enriched
//     back to stub is ignored for that field.
//   - Per-key serialization: concurrent Apply calls touching the same vertex
//     key do not interleave partial updates.
type Store interface {
	// Apply commits the bundle atomically.
	Apply(ctx context.Context, bundle *Bundle) (ApplyStats, error)

	// GetSubstance loads one substance by its normalized key.  A missing
	// substance yields an ErrCodeSubstanceNotFound error.
	GetSubstance(ctx context.Context, key string) (*Substance, error)

	// FindEnrichedByNames returns the already-enriched substances among the
	// given names, keyed by normalized key.  Names with no enriched vertex
	// are simply absent from the result.
	FindEnrichedByNames(ctx context.Context, names []string) (map[string]*Substance, error)

	// SearchSubstances returns substances whose name or key matches the
	// query, case-insensitively, up to limit.
	SearchSubstances(ctx context.Context, query string, limit int) ([]*Substance, error)

	// CollectionCounts returns vertex counts per collection and the total
	// edge count under the "edges" key, mirroring Bundle.Summary.
	CollectionCounts(ctx context.Context) (map[string]int, error)
}
