package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
)

// ContentHash derives the document key from its raw bytes: the first 32 hex
// characters of the sha256 digest.  Submitting the same bytes twice always
// yields the same key, which is what makes the extraction cache work.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:32]
}

// Status of an extraction record through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record is the persisted extraction document: one per distinct content
// hash.  It doubles as the graph vertex connecting a profile to what was
// extracted from their document.
type Record struct {
	ContentKey  string
	Filename    string
	FileType    string
	Status      Status
	EntityCount int
	LinkCount   int
	ModelUsed   string
	TokensUsed  int
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRecord constructs a pending Record for the given document bytes.
func NewRecord(content []byte, filename, fileType string) *Record {
	now := time.Now().UTC()
	return &Record{
		ContentKey: ContentHash(content),
		Filename:   filename,
		FileType:   fileType,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (r *Record) Collection() string { return graph.CollectionExtractions }
func (r *Record) Key() string        { return r.ContentKey }

// Merge folds a newer observation of the same record into r.  Status always
// follows the incoming record since lifecycle transitions only move forward
// through the pipeline.
func (r *Record) Merge(other graph.Vertex) {
	o, ok := other.(*Record)
	if !ok {
		return
	}
	if o.Filename != "" {
		r.Filename = o.Filename
	}
	if o.FileType != "" {
		r.FileType = o.FileType
	}
	if o.Status != "" {
		r.Status = o.Status
	}
	if o.EntityCount != 0 {
		r.EntityCount = o.EntityCount
	}
	if o.LinkCount != 0 {
		r.LinkCount = o.LinkCount
	}
	if o.ModelUsed != "" {
		r.ModelUsed = o.ModelUsed
	}
	if o.TokensUsed != 0 {
		r.TokensUsed = o.TokensUsed
	}
	if o.Error != "" {
		r.Error = o.Error
	}
	if !o.UpdatedAt.IsZero() {
		r.UpdatedAt = o.UpdatedAt
	}
}

// Complete marks the record completed with the extraction outcome.
func (r *Record) Complete(res *Result) {
	r.Status = StatusCompleted
	r.EntityCount = len(res.Entities)
	r.LinkCount = len(res.Links)
	r.ModelUsed = res.ModelUsed
	r.TokensUsed = res.TokensUsed
	r.UpdatedAt = time.Now().UTC()
}

// Fail marks the record failed with the given reason.
func (r *Record) Fail(reason string) {
	r.Status = StatusFailed
	r.Error = reason
	r.UpdatedAt = time.Now().UTC()
}
