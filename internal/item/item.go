// Package item defines the domain model shared by the upload, sync and
// search subsystems: persisted items, client-local drafts and the
// vocabularies that constrain them.
package item

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"lostfound-ai/internal/vectormath"
)

// ProvisionalIDPrefix marks item ids that were assigned locally during
// an optimistic insert and have not yet been replaced by a remote id.
const ProvisionalIDPrefix = "local-"

// DefaultCategories is the category vocabulary presented to the AI
// endpoint and to the UI. The first entry doubles as the fallback when
// analysis returns a category outside the vocabulary.
var DefaultCategories = []string{"School Hat", "Water Bottle", "Lunch Box"}

// DefaultLocations is the location vocabulary. "Other" unlocks a
// free-text location resolved at commit time.
var DefaultLocations = []string{
	"Basketball Court",
	"After School Area",
	"Lunch Area",
	"Library Hall",
	"I'm not sure",
	"Other",
}

// Item is a persisted lost-and-found record. It is created by the
// document store on insert; clients hold read replicas. Similarity is
// transient, attached by the search controller and never stored.
type Item struct {
	ID          string    `json:"id"`
	ImageURLs   []string  `json:"imageUrls"`
	ThumbHashes []string  `json:"thumbhashes,omitempty"`
	NameTag     string    `json:"nameTag"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	FoundDate   time.Time `json:"foundDate"`
	Location    string    `json:"location"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Similarity  float32   `json:"similarity,omitempty"`
	IsDeleted   bool      `json:"-"`
}

// SearchText returns the canonical text used both to index this item
// and to embed queries against it.
func (it Item) SearchText() string {
	return vectormath.SearchText(it.NameTag, it.Category, it.Description, it.Location)
}

// EnrichmentState tracks the lifecycle of a draft's AI analysis.
type EnrichmentState int

const (
	EnrichmentIdle EnrichmentState = iota
	EnrichmentRunning
	EnrichmentDone
	EnrichmentFailed
	EnrichmentCancelled
)

func (s EnrichmentState) String() string {
	switch s {
	case EnrichmentIdle:
		return "idle"
	case EnrichmentRunning:
		return "running"
	case EnrichmentDone:
		return "done"
	case EnrichmentFailed:
		return "failed"
	case EnrichmentCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Blob is an in-memory image attachment.
type Blob struct {
	Name string
	MIME string
	Data []byte
}

// Draft is a client-local, not-yet-committed submission. Drafts are
// owned exclusively by the pending store until commit.
type Draft struct {
	LocalID        string
	Images         []Blob
	ThumbHashes    []string
	NameTag        string
	Category       string
	Location       string
	CustomLocation string
	Description    string
	Enrichment     EnrichmentState
	ActivePreview  int
}

// ResolvedLocation returns the location to persist: the free-text
// location when "Other" is selected, with a fixed fallback so the
// stored value is never empty.
func (d Draft) ResolvedLocation() string {
	if d.Location != "Other" {
		return d.Location
	}
	if custom := strings.TrimSpace(d.CustomLocation); custom != "" {
		return custom
	}
	return "Other Area"
}

// NewLocalID returns a process-local draft identifier. Ids are never
// reused within a session.
func NewLocalID() string {
	return uuid.New().String()
}

// NewProvisionalID returns an id for an optimistically inserted item,
// distinguishable from remote ids by its prefix.
func NewProvisionalID() string {
	return ProvisionalIDPrefix + uuid.New().String()
}

// IsProvisionalID reports whether id was assigned locally during an
// optimistic insert.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalIDPrefix)
}
