// Package linker resolves relationships between candidate entities extracted
// from one document.  Linking is a pure, synchronous transform: it performs
// no I/O and never fails the pipeline; a candidate that cannot be linked is
// simply returned unlinked.
package linker

import (
	"strings"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/extraction"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

// Linker matches candidates against the link hints their siblings carry.
type Linker struct {
	logger logging.Logger
}

// New constructs a Linker.
func New(logger logging.Logger) *Linker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Linker{logger: logger.Named("linker")}
}

// normalizeName lowercases and collapses all whitespace runs to single
// spaces, the comparison form used for hint matching.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// pairID identifies an unordered pair of mentions so that two candidates
// hinting at each other produce one link, not two.
func pairID(a, b string) string {
	na, nb := normalizeName(a), normalizeName(b)
	if na > nb {
		na, nb = nb, na
	}
	return na + "\x00" + nb
}

// Link annotates each candidate with its resolution outcome and returns the
// resolved links.
//
// For every candidate carrying a linked-name hint, the sibling whose name
// matches the hint (case-insensitive, whitespace-normalized) becomes the
// link target.  When several siblings match, exact case-insensitive equality
// wins over whitespace-normalized equality, and within a tier the first
// occurrence in document order wins; the ordering is part of the contract,
// not an accident of iteration.
//
// Candidates below the confidence floor are forced to unlinked no matter
// what they hint at; a link whose strength cannot be established is worse
// than no link, because downstream consumers treat linked status as
// authoritative.  Candidates with absent confidence cannot clear the floor
// and are likewise left unlinked.
func (l *Linker) Link(candidates []extraction.CandidateEntity) ([]extraction.LinkedEntity, []extraction.ResolvedLink) {
	out := make([]extraction.LinkedEntity, len(candidates))
	for i, c := range candidates {
		out[i] = extraction.LinkedEntity{CandidateEntity: c, Status: extraction.StatusNEROnly}
	}

	var links []extraction.ResolvedLink
	emitted := make(map[string]int)

	for i, c := range candidates {
		if c.LinkedName == "" {
			continue
		}
		if c.Confidence < extraction.MinLinkConfidence {
			l.logger.Debug("candidate below confidence floor, forcing unlinked",
				logging.String("name", c.Name),
				logging.Int("confidence", c.Confidence))
			continue
		}

		target := l.findTarget(candidates, i, c.LinkedName)
		if target < 0 {
			l.logger.Debug("no sibling matches link hint",
				logging.String("name", c.Name),
				logging.String("hint", c.LinkedName))
			continue
		}

		rel := c.RelationshipHint
		if rel == "" {
			rel = extraction.RelSameAs
		}

		id := pairID(c.Name, candidates[target].Name)
		idx, dup := emitted[id]
		if !dup {
			links = append(links, extraction.ResolvedLink{
				FromName:     c.Name,
				ToName:       candidates[target].Name,
				Relationship: rel,
				Confidence:   c.Confidence,
				Source:       "extractor",
			})
			idx = len(links) - 1
			emitted[id] = idx
		}

		link := links[idx]
		out[i].Status = extraction.StatusNEL
		out[i].Link = &link
		out[target].Status = extraction.StatusNEL
		if out[target].Link == nil {
			out[target].Link = &link
		}
	}

	return out, links
}

// findTarget locates the best sibling for the hint, excluding self.
// Preference order: exact case-insensitive equality, then whitespace-
// normalized equality; first occurrence wins within each tier.
func (l *Linker) findTarget(candidates []extraction.CandidateEntity, self int, hint string) int {
	trimmedHint := strings.TrimSpace(hint)
	normHint := normalizeName(hint)

	loose := -1
	for i, c := range candidates {
		if i == self {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(c.Name), trimmedHint) {
			return i
		}
		if loose < 0 && normalizeName(c.Name) == normHint {
			loose = i
		}
	}
	return loose
}
