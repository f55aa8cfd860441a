package extraction

import "time"

// DrugDensity buckets how drug-heavy a document is.
type DrugDensity string

const (
	DensityLow  DrugDensity = "LOW"
	DensityMed  DrugDensity = "MED"
	DensityHigh DrugDensity = "HIGH"
)

// Meta describes the document as a whole, as judged by the extractor.
type Meta struct {
	DocType          string
	TherapeuticAreas []string
	DrugDensity      DrugDensity
	TotalEntities    int
}

// QualityCounts buckets entities by extractor confidence.
type QualityCounts struct {
	Total int
	High  int
	Med   int
	Low   int
}

// AmbiguousEntity is a mention the extractor flagged for human review.
type AmbiguousEntity struct {
	Text   string
	Reason string
}

// Quality carries the extractor's self-assessment of a run.
type Quality struct {
	Completeness  int
	AvgConfidence int
	Counts        QualityCounts
	Ambiguous     []AmbiguousEntity
	MaybeMissed   []string
	Notes         string
}

// Result is the complete outcome of one extraction pass over a document:
// validated candidates, resolved links, and run metadata.  Quarantined
// counts how many raw extractor entities were rejected at the boundary.
type Result struct {
	Entities    []LinkedEntity
	Links       []ResolvedLink
	Quality     Quality
	Meta        Meta
	Quarantined int

	ModelUsed   string
	TokensUsed  int
	ExtractedAt time.Time
}

// EnrichableNames returns the deduplicated names of entities that should
// trigger enrichment, in first-occurrence order.
func (r *Result) EnrichableNames() []string {
	seen := make(map[string]struct{}, len(r.Entities))
	out := make([]string, 0, len(r.Entities))
	for _, e := range r.Entities {
		if !e.Enrichable() {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		out = append(out, e.Name)
	}
	return out
}

// LinkedCount returns how many entities carry a resolved link.
func (r *Result) LinkedCount() int {
	n := 0
	for _, e := range r.Entities {
		if e.Status == StatusNEL {
			n++
		}
	}
	return n
}
