// Package extraction defines the entity-extraction data model: candidate
// entities produced by the external NER collaborator, the links resolved
// between them, and the extraction record persisted per document.
package extraction

import (
	"fmt"
	"strings"

	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// EntityType classifies a pharmaceutical mention.  The set is closed: the
// extractor boundary quarantines anything else before it can reach the
// pipeline.
type EntityType string

const (
	EntityBrand      EntityType = "BRAND"
	EntityGeneric    EntityType = "GENERIC"
	EntityCode       EntityType = "CODE"
	EntityIngredient EntityType = "INGREDIENT"
)

// ParseEntityType maps a raw extractor string to an EntityType.
// Unknown values yield an ErrCodeEntityTypeUnknown error so callers can
// quarantine the candidate instead of propagating it.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(strings.ToUpper(strings.TrimSpace(s))) {
	case EntityBrand:
		return EntityBrand, nil
	case EntityGeneric:
		return EntityGeneric, nil
	case EntityCode:
		return EntityCode, nil
	case EntityIngredient:
		return EntityIngredient, nil
	default:
		return "", errors.New(errors.ErrCodeEntityTypeUnknown,
			fmt.Sprintf("unknown entity type %q", s))
	}
}

// EntityStatus tracks whether an entity has been linked to another mention.
type EntityStatus string

const (
	StatusNEROnly EntityStatus = "NER_ONLY"
	StatusNEL     EntityStatus = "NEL"
)

// RelationshipType is the closed set of link relationships between mentions.
type RelationshipType string

const (
	RelBrandOf      RelationshipType = "brand_of"
	RelGenericOf    RelationshipType = "generic_of"
	RelSameAs       RelationshipType = "same_as"
	RelIngredientOf RelationshipType = "ingredient_of"
	RelContains     RelationshipType = "contains"
)

// ParseRelationship maps a raw extractor string to a RelationshipType.
func ParseRelationship(s string) (RelationshipType, error) {
	switch RelationshipType(strings.ToLower(strings.TrimSpace(s))) {
	case RelBrandOf:
		return RelBrandOf, nil
	case RelGenericOf:
		return RelGenericOf, nil
	case RelSameAs:
		return RelSameAs, nil
	case RelIngredientOf:
		return RelIngredientOf, nil
	case RelContains:
		return RelContains, nil
	default:
		return "", errors.New(errors.ErrCodeValidation,
			fmt.Sprintf("unknown relationship %q", s))
	}
}

// ConfidenceAbsent marks a candidate whose extractor emitted no confidence.
const ConfidenceAbsent = -1

// MinLinkConfidence is the hard floor below which resolved links are
// discarded rather than materialized in the graph.
const MinLinkConfidence = 50

// CandidateEntity is one pharmaceutical mention as reported by the external
// extractor, before linking.  LinkedName and RelationshipHint are optional
// hints from the extractor; the linker decides whether to honor them.
type CandidateEntity struct {
	Name             string
	Type             EntityType
	LinkedName       string
	RelationshipHint RelationshipType
	Confidence       int
	Context          string
}

// Validate checks the boundary invariants for a candidate that crossed the
// extractor boundary.  Violations are ErrCodeValidation errors.
func (c CandidateEntity) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New(errors.ErrCodeValidation, "candidate entity has no name")
	}
	if _, err := ParseEntityType(string(c.Type)); err != nil {
		return err
	}
	if c.Confidence != ConfidenceAbsent && (c.Confidence < 0 || c.Confidence > 100) {
		return errors.New(errors.ErrCodeValidation,
			fmt.Sprintf("confidence %d outside [0, 100]", c.Confidence))
	}
	return nil
}

// Enrichable reports whether this candidate triggers external enrichment.
// Only brand and generic mentions do; codes and ingredients ride along as
// link targets but never cost a source call on their own.
func (c CandidateEntity) Enrichable() bool {
	return c.Type == EntityBrand || c.Type == EntityGeneric
}

// ResolvedLink is a directed, typed relationship between two candidate
// mentions, produced by the linker.  Confidence is always at least
// MinLinkConfidence; the linker never emits weaker links.
type ResolvedLink struct {
	FromName     string
	ToName       string
	Relationship RelationshipType
	Confidence   int
	Source       string
}

// LinkedEntity is a candidate plus its resolution outcome.  SubstanceKey and
// SourceErrors are filled in once enrichment has run for the document.
type LinkedEntity struct {
	CandidateEntity
	Status EntityStatus
	Link   *ResolvedLink
	// SubstanceKey is the normalized key of the graph substance this mention
	// resolved to; empty when the mention was never enriched.
	SubstanceKey string
	// SourceErrors lists per-source failures hit while enriching this
	// mention.  The substance may still be enriched from the other sources.
	SourceErrors []string
}
