// Package profile models the person a document belongs to.  Profiles are
// deduplicated by a deterministic identity key so re-submitting documents
// from the same person attaches to one vertex.
package profile

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
)

// DeriveKey computes the deterministic profile key from identifying data.
// Priority: email, then linkedin, then full name; with nothing to go on the
// profile gets a timestamped anonymous key and never deduplicates.
func DeriveKey(email, linkedin, fullName string) string {
	var data string
	switch {
	case strings.TrimSpace(email) != "":
		data = "email:" + strings.ToLower(strings.TrimSpace(email))
	case strings.TrimSpace(linkedin) != "":
		data = "linkedin:" + strings.ToLower(strings.TrimSpace(linkedin))
	case strings.TrimSpace(fullName) != "":
		data = "name:" + strings.ToLower(strings.TrimSpace(fullName))
	default:
		data = "unknown:" + time.Now().UTC().Format(time.RFC3339Nano)
	}
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])[:24]
}

// Location is where the profile is based.
type Location struct {
	City    string
	State   string
	Country string
}

// Profile is a person identified from a document (typically a resume).
type Profile struct {
	ProfileKey  string
	FullName    string
	Credentials []string
	Email       string
	Phone       string
	LinkedIn    string
	Location    *Location
}

// New constructs a Profile keyed from the identifying fields.
func New(fullName, email, linkedin string) *Profile {
	return &Profile{
		ProfileKey: DeriveKey(email, linkedin, fullName),
		FullName:   fullName,
		Email:      email,
		LinkedIn:   linkedin,
	}
}

// Anonymous reports whether the profile has no identifying data at all.
func (p *Profile) Anonymous() bool {
	return p.Email == "" && p.LinkedIn == "" && p.FullName == ""
}

func (p *Profile) Collection() string { return graph.CollectionProfiles }
func (p *Profile) Key() string        { return p.ProfileKey }

// Merge folds a newer observation of the same person into p.
func (p *Profile) Merge(other graph.Vertex) {
	o, ok := other.(*Profile)
	if !ok {
		return
	}
	if o.FullName != "" {
		p.FullName = o.FullName
	}
	if o.Email != "" {
		p.Email = o.Email
	}
	if o.Phone != "" {
		p.Phone = o.Phone
	}
	if o.LinkedIn != "" {
		p.LinkedIn = o.LinkedIn
	}
	if o.Location != nil {
		p.Location = o.Location
	}
	seen := make(map[string]struct{}, len(p.Credentials))
	for _, c := range p.Credentials {
		seen[c] = struct{}{}
	}
	for _, c := range o.Credentials {
		if _, ok := seen[c]; !ok {
			p.Credentials = append(p.Credentials, c)
		}
	}
}
