package graph

// Vertex collection names.  These are the canonical collection identifiers
// used across every GraphStore implementation.
const (
	CollectionSubstances    = "substances"
	CollectionDrugs         = "drugs"
	CollectionManufacturers = "manufacturers"
	CollectionRoutes        = "routes"
	CollectionDosageForms   = "dosage_forms"
	CollectionPharmClasses  = "pharm_classes"
	CollectionReactions     = "reactions"
	CollectionInteractions  = "interactions"
	CollectionDrugLabels    = "drug_labels"
	CollectionApplications  = "applications"
	CollectionProducts      = "products"
	CollectionProfiles      = "profiles"
	CollectionExtractions   = "extractions"
)

// Vertex is implemented by every graph vertex entity.  A vertex is addressed
// by (Collection, Key); Merge folds a newer observation of the same vertex
// into the receiver following the platform merge rules: a non-zero incoming
// scalar overwrites, a zero incoming scalar never erases existing data, and
// list fields are unioned.
type Vertex interface {
	Collection() string
	Key() string
	Merge(other Vertex)
}

// mergeString overwrites dst with src only when src is non-empty.
func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeFloat overwrites dst with src only when src is non-zero.
func mergeFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

// mergeInt overwrites dst with src only when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// unionStrings appends the elements of src not already present in dst,
// preserving first-seen order.
func unionStrings(dst []string, src []string) []string {
	if len(src) == 0 {
		return dst
	}
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			dst = append(dst, s)
		}
	}
	return dst
}
