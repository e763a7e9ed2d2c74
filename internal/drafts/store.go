// Package drafts holds the in-memory staging area for not-yet-committed
// submissions. The store owns the draft list, each draft's enrichment
// lifecycle and the cancellation funcs for in-flight analysis calls;
// nothing else mutates drafts directly.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lostfound-ai/internal/ai"
	"lostfound-ai/internal/item"
)

var (
	// ErrGuestLimit is returned when an unprivileged user would exceed
	// the draft ceiling. The whole batch is refused, never a partial
	// admission.
	ErrGuestLimit = errors.New("drafts: guest upload limit reached")

	// ErrDraftNotFound is returned for operations on unknown local ids.
	ErrDraftNotFound = errors.New("drafts: draft not found")

	// ErrNoImage is returned when enrichment is requested for a draft
	// without an attached image.
	ErrNoImage = errors.New("drafts: draft has no image")
)

// Analyzer is the slice of the AI client the store needs.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string, vocabulary []string) (ai.Analysis, error)
}

// Store is the pending item store. All methods are safe for concurrent
// use; enrichment results are written back on background goroutines
// under the same lock.
type Store struct {
	analyzer   Analyzer
	guestLimit int
	categories []string
	locations  []string

	mu           sync.Mutex
	drafts       []*item.Draft
	cancels      map[string]context.CancelFunc
	gens         map[string]uint64
	lastCategory string
	lastLocation string
}

// NewStore creates a pending item store. guestLimit caps the number of
// drafts an unprivileged user may hold at once.
func NewStore(analyzer Analyzer, guestLimit int, categories, locations []string) *Store {
	if len(categories) == 0 {
		categories = item.DefaultCategories
	}
	if len(locations) == 0 {
		locations = item.DefaultLocations
	}
	return &Store{
		analyzer:   analyzer,
		guestLimit: guestLimit,
		categories: categories,
		locations:  locations,
		cancels:    make(map[string]context.CancelFunc),
		gens:       make(map[string]uint64),
	}
}

// AddFromFiles admits one draft per image file. Non-image files are
// skipped silently. For unprivileged callers the batch is refused
// outright with ErrGuestLimit when it would push the draft count over
// the ceiling. Returns the local ids of the admitted drafts.
func (s *Store) AddFromFiles(files []item.Blob, privileged bool) ([]string, error) {
	images := make([]item.Blob, 0, len(files))
	for _, f := range files {
		if strings.HasPrefix(f.MIME, "image/") {
			images = append(images, f)
		}
	}
	if len(images) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !privileged && len(s.drafts)+len(images) > s.guestLimit {
		return nil, fmt.Errorf("%w: at most %d items per upload", ErrGuestLimit, s.guestLimit)
	}

	category := s.lastCategory
	if category == "" {
		category = s.categories[0]
	}
	location := s.lastLocation
	if location == "" {
		location = s.locations[0]
	}

	ids := make([]string, 0, len(images))
	for _, img := range images {
		d := &item.Draft{
			LocalID:  item.NewLocalID(),
			Images:   []item.Blob{img},
			Category: category,
			Location: location,
		}
		s.drafts = append(s.drafts, d)
		ids = append(ids, d.LocalID)
	}
	return ids, nil
}

// AttachImage appends another image to an existing draft. Non-image
// blobs are rejected silently, mirroring AddFromFiles.
func (s *Store) AttachImage(localID string, blob item.Blob) error {
	if !strings.HasPrefix(blob.MIME, "image/") {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.find(localID)
	if d == nil {
		return ErrDraftNotFound
	}
	d.Images = append(d.Images, blob)
	return nil
}

// UpdateField mutates a single draft field. Category and location
// updates also record the last-used value so subsequent drafts are
// prefilled with it.
func (s *Store) UpdateField(localID, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.find(localID)
	if d == nil {
		return ErrDraftNotFound
	}
	switch field {
	case "nameTag":
		d.NameTag = value
	case "category":
		d.Category = value
		s.lastCategory = value
	case "location":
		d.Location = value
		s.lastLocation = value
	case "customLocation":
		d.CustomLocation = value
	case "description":
		d.Description = value
	default:
		return fmt.Errorf("drafts: unknown field %q", field)
	}
	return nil
}

// SetActivePreview records which attached image the client is showing.
func (s *Store) SetActivePreview(localID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.find(localID)
	if d == nil {
		return ErrDraftNotFound
	}
	if index < 0 || index >= len(d.Images) {
		return fmt.Errorf("drafts: preview index %d out of range", index)
	}
	d.ActivePreview = index
	return nil
}

// Remove deletes a draft and cancels any in-flight enrichment for it.
func (s *Store) Remove(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.drafts {
		if d.LocalID == localID {
			s.cancelLocked(localID)
			s.drafts = append(s.drafts[:i], s.drafts[i+1:]...)
			return nil
		}
	}
	return ErrDraftNotFound
}

// RunEnrichment starts AI analysis for a draft in the background.
// A second call for the same draft supersedes the first: the prior
// call is cancelled and its result, whenever it arrives, is discarded.
// Results are written back only if the draft still exists and no newer
// enrichment has started since.
func (s *Store) RunEnrichment(ctx context.Context, localID string) error {
	s.mu.Lock()
	d := s.find(localID)
	if d == nil {
		s.mu.Unlock()
		return ErrDraftNotFound
	}
	if len(d.Images) == 0 {
		s.mu.Unlock()
		return ErrNoImage
	}

	s.cancelLocked(localID)
	s.gens[localID]++
	gen := s.gens[localID]
	d.Enrichment = item.EnrichmentRunning

	cctx, cancel := context.WithCancel(ctx)
	s.cancels[localID] = cancel
	img := d.Images[d.ActivePreview]
	s.mu.Unlock()

	go s.enrich(cctx, localID, gen, img)
	return nil
}

func (s *Store) enrich(ctx context.Context, localID string, gen uint64, img item.Blob) {
	analysis, err := s.analyzer.AnalyzeImage(ctx, img.Data, img.MIME, s.categories)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A superseding call or removal makes this result stale; drop it
	// without touching any draft.
	if s.gens[localID] != gen {
		return
	}
	d := s.find(localID)
	if d == nil {
		return
	}
	delete(s.cancels, localID)

	switch {
	case errors.Is(err, context.Canceled):
		d.Enrichment = item.EnrichmentCancelled
	case err != nil:
		// Keep the user out of a blank form: placeholders for whatever
		// analysis would have filled.
		if d.NameTag == "" {
			d.NameTag = ai.FallbackNameTag
		}
		if d.Category == "" {
			d.Category = s.categories[0]
		}
		if d.Description == "" {
			d.Description = ai.FallbackDescription
		}
		d.Enrichment = item.EnrichmentFailed
	default:
		d.NameTag = analysis.NameTag
		d.Category = analysis.Category
		d.Description = analysis.Description
		d.Enrichment = item.EnrichmentDone
	}
}

// Drafts returns a snapshot of the current drafts in insertion order.
func (s *Store) Drafts() []item.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]item.Draft, len(s.drafts))
	for i, d := range s.drafts {
		out[i] = *d
	}
	return out
}

// Get returns a snapshot of one draft.
func (s *Store) Get(localID string) (item.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.find(localID); d != nil {
		return *d, true
	}
	return item.Draft{}, false
}

// Len returns the number of pending drafts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// TakeAll removes and returns every draft, cancelling in-flight
// enrichment. Commit calls this first so a draft is converted at most
// once, even if its background commit later fails.
func (s *Store) TakeAll() []item.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]item.Draft, len(s.drafts))
	for i, d := range s.drafts {
		s.cancelLocked(d.LocalID)
		out[i] = *d
	}
	s.drafts = nil
	return out
}

// CancelAll cancels every in-flight enrichment without removing drafts.
func (s *Store) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drafts {
		s.cancelLocked(d.LocalID)
	}
}

// LastUsed reports the category and location most recently chosen by
// the user, used to prefill new drafts.
func (s *Store) LastUsed() (category, location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCategory, s.lastLocation
}

func (s *Store) find(localID string) *item.Draft {
	for _, d := range s.drafts {
		if d.LocalID == localID {
			return d
		}
	}
	return nil
}

// cancelLocked cancels any in-flight enrichment for localID and bumps
// its generation so a late result cannot be applied. The generation
// bump keeps enrich from writing anything back, so the terminal state
// is recorded here while the draft still exists. Callers hold mu.
func (s *Store) cancelLocked(localID string) {
	if cancel, ok := s.cancels[localID]; ok {
		cancel()
		delete(s.cancels, localID)
		s.gens[localID]++
		if d := s.find(localID); d != nil && d.Enrichment == item.EnrichmentRunning {
			d.Enrichment = item.EnrichmentCancelled
		}
	}
}
