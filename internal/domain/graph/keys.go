// Package graph defines the pharmaceutical knowledge-graph data model:
// vertex entities, edges with deterministic composite keys, and the Bundle
// aggregate that collects a deduplicated set of writes for atomic application
// to a graph store.
package graph

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

// maxKeyLength is the longest key stored verbatim; anything longer collapses
// to a hash so keys stay safe for any backing store.
const maxKeyLength = 64

var (
	nonKeyChars    = regexp.MustCompile(`[^a-z0-9_]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// NormalizeKey derives a deterministic vertex key from one or more name parts.
// Empty parts are skipped; the remainder is lowercased, joined with
// underscores, and stripped of anything outside [a-z0-9_].  A key that would
// start with a digit is prefixed with "k_", and a key longer than 64
// characters is replaced by the first 16 hex characters of the md5 of the
// joined input.  It returns "" when no usable characters remain.
//
// The same name must always produce the same key, regardless of case or
// punctuation: "Gemcitabine Hydrochloride" and "gemcitabine  hydrochloride"
// both map to "gemcitabine_hydrochloride".
func NormalizeKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			kept = append(kept, p)
		}
	}
	combined := strings.Join(kept, "_")
	if combined == "" {
		return ""
	}

	clean := nonKeyChars.ReplaceAllString(combined, "_")
	clean = underscoreRuns.ReplaceAllString(clean, "_")
	clean = strings.Trim(clean, "_")
	if clean == "" {
		return ""
	}

	if clean[0] >= '0' && clean[0] <= '9' {
		clean = "k_" + clean
	}

	if len(clean) > maxKeyLength {
		sum := md5.Sum([]byte(combined))
		return hex.EncodeToString(sum[:])[:16]
	}
	return clean
}
