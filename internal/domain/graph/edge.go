package graph

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Edge collection names.  Every relationship the aggregator can materialize
// lives in one of these collections.
const (
	EdgeDrugHasSubstance             = "drug_has_substance"
	EdgeDrugHasRoute                 = "drug_has_route"
	EdgeDrugHasForm                  = "drug_has_form"
	EdgeDrugInClass                  = "drug_in_class"
	EdgeDrugByManufacturer           = "drug_by_manufacturer"
	EdgeApplicationForDrug           = "application_for_drug"
	EdgeProductOfDrug                = "product_of_drug"
	EdgeDrugCausesReaction           = "drug_causes_reaction"
	EdgeDrugInteractsWith            = "drug_interacts_with"
	EdgeDrugHasLabel                 = "drug_has_label"
	EdgeDrugAliasOf                  = "drug_alias_of"
	EdgeProfileHasExtraction         = "profile_has_extraction"
	EdgeProfileInterestedInSubstance = "profile_interested_in_substance"
)

// Edge is a directed relationship between two vertices.  Properties carry
// per-edge attributes such as link confidence or relationship provenance.
type Edge struct {
	FromCollection string
	FromKey        string
	ToCollection   string
	ToKey          string
	EdgeCollection string
	Properties     map[string]any
}

// NewEdge constructs an edge between two vertex addresses.
func NewEdge(fromColl, fromKey, toColl, toKey, edgeColl string) Edge {
	return Edge{
		FromCollection: fromColl,
		FromKey:        fromKey,
		ToCollection:   toColl,
		ToKey:          toKey,
		EdgeCollection: edgeColl,
	}
}

// Connect constructs an edge directly between two vertices.
func Connect(from, to Vertex, edgeColl string) Edge {
	return NewEdge(from.Collection(), from.Key(), to.Collection(), to.Key(), edgeColl)
}

// WithProperty returns a copy of the edge with the property set.
func (e Edge) WithProperty(key string, value any) Edge {
	props := make(map[string]any, len(e.Properties)+1)
	for k, v := range e.Properties {
		props[k] = v
	}
	props[key] = value
	e.Properties = props
	return e
}

// DedupID identifies the edge for in-bundle deduplication: two edges with the
// same endpoints in the same collection are the same edge.
func (e Edge) DedupID() string {
	return fmt.Sprintf("%s/%s->%s/%s@%s",
		e.FromCollection, e.FromKey, e.ToCollection, e.ToKey, e.EdgeCollection)
}

// StorageKey derives the deterministic persisted key for the edge: the first
// 16 hex characters of the md5 of its endpoint addresses and collection.
// Identical edges always produce identical keys, which is what makes bundle
// application idempotent at the store level.
func (e Edge) StorageKey() string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s/%s_%s/%s_%s",
		e.FromCollection, e.FromKey, e.ToCollection, e.ToKey, e.EdgeCollection)))
	return hex.EncodeToString(sum[:])[:16]
}

// From returns the full from-vertex address ("collection/key").
func (e Edge) From() string { return e.FromCollection + "/" + e.FromKey }

// To returns the full to-vertex address ("collection/key").
func (e Edge) To() string { return e.ToCollection + "/" + e.ToKey }
