// Package syncer bridges pending drafts to the remote stores. It owns
// the optimistic suppression set: provisional ids are suppressed before
// any network call so the live push subscription cannot clobber
// just-submitted items, and the set shrinks monotonically to empty as
// each commit resolves.
package syncer

import (
	"context"
	"sync"
	"time"

	"lostfound-ai/internal/ai"
	"lostfound-ai/internal/contextutil"
	"lostfound-ai/internal/item"
	"lostfound-ai/internal/store"
	"lostfound-ai/internal/vectorstore"
)

// Embedder is the slice of the AI client the coordinator needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string, task ai.TaskKind) ([]float32, error)
}

// Publisher receives optimistic items for immediate display and a
// reconciling refresh once their batch resolves. The live view
// implements it.
type Publisher interface {
	Prepend(items []item.Item)
	Refresh()
}

// Violation is one soft validation finding for a draft. The caller
// decides whether to block on it or let the user force past it.
type Violation struct {
	LocalID string `json:"localId"`
	NameTag string `json:"nameTag"`
	Reason  string `json:"reason"`
}

// CommitFailure records one item's commit error within a batch.
type CommitFailure struct {
	ProvisionalID string `json:"provisionalId"`
	NameTag       string `json:"nameTag"`
	Reason        string `json:"reason"`
}

// BatchReport aggregates the outcome of one commit batch. It is
// delivered exactly once, after every item in the batch has resolved.
type BatchReport struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Failures  []CommitFailure `json:"failures,omitempty"`
}

// Coordinator performs optimistic batch commits. Failures are isolated
// per item and aggregated into a single report; nothing is retried or
// rolled back.
type Coordinator struct {
	docs       store.DocumentStore
	objects    store.ObjectStore
	embedder   Embedder
	vectors    vectorstore.VectorStore
	collection string
	publisher  Publisher

	mu         sync.Mutex
	suppressed map[string]struct{}
	inFlight   int
	lastReport *BatchReport
}

// NewCoordinator creates a commit coordinator. vectors may be nil to
// disable the embedding mirror.
func NewCoordinator(docs store.DocumentStore, objects store.ObjectStore, embedder Embedder, vectors vectorstore.VectorStore, collection string) *Coordinator {
	return &Coordinator{
		docs:       docs,
		objects:    objects,
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
		suppressed: make(map[string]struct{}),
	}
}

// SetPublisher wires the live view as the optimistic-insert target.
// Must be called before Commit.
func (c *Coordinator) SetPublisher(p Publisher) {
	c.publisher = p
}

// Validate checks the drafts against the name-tag rules. Violations are
// a soft gate: the handler surfaces them for confirmation rather than
// rejecting the batch outright.
func (c *Coordinator) Validate(drafts []item.Draft) []Violation {
	var out []Violation
	for _, d := range drafts {
		if err := item.ValidateNameTag(d.NameTag); err != nil {
			out = append(out, Violation{LocalID: d.LocalID, NameTag: d.NameTag, Reason: err.Error()})
		}
	}
	return out
}

// Commit converts the drafts to provisional items and starts one
// background commit per item. The provisional items are published to
// the view immediately, in submission order, with strictly decreasing
// found dates so ordering is stable under date sorting. The returned
// channel delivers exactly one BatchReport once every item resolves.
func (c *Coordinator) Commit(ctx context.Context, drafts []item.Draft) ([]item.Item, <-chan BatchReport) {
	reports := make(chan BatchReport, 1)
	if len(drafts) == 0 {
		reports <- BatchReport{}
		close(reports)
		return nil, reports
	}

	base := time.Now().UTC()
	provisional := make([]item.Item, len(drafts))
	for i, d := range drafts {
		provisional[i] = item.Item{
			ID:          item.NewProvisionalID(),
			ThumbHashes: append([]string(nil), d.ThumbHashes...),
			NameTag:     d.NameTag,
			Category:    d.Category,
			Description: d.Description,
			FoundDate:   base.Add(-time.Duration(i) * time.Millisecond),
			Location:    d.ResolvedLocation(),
		}
	}

	// Suppress before anything touches the network so a push snapshot
	// racing the commit cannot drop the optimistic rows.
	c.mu.Lock()
	for _, it := range provisional {
		c.suppressed[it.ID] = struct{}{}
	}
	c.inFlight += len(provisional)
	c.mu.Unlock()

	if c.publisher != nil {
		c.publisher.Prepend(provisional)
	}

	var (
		wg       sync.WaitGroup
		reportMu sync.Mutex
		report   BatchReport
	)
	for i := range drafts {
		wg.Add(1)
		go func(d item.Draft, it item.Item) {
			defer wg.Done()
			err := c.commitOne(ctx, d, it)

			c.mu.Lock()
			delete(c.suppressed, it.ID)
			c.inFlight--
			c.mu.Unlock()

			reportMu.Lock()
			if err != nil {
				report.Failed++
				report.Failures = append(report.Failures, CommitFailure{
					ProvisionalID: it.ID,
					NameTag:       it.NameTag,
					Reason:        err.Error(),
				})
			} else {
				report.Succeeded++
			}
			reportMu.Unlock()
		}(drafts[i], provisional[i])
	}

	go func() {
		wg.Wait()
		// Every id of this batch has left the suppression set, but the
		// store's push for the last resolution fired while its id was
		// still suppressed and was discarded. One refresh replaces the
		// optimistic rows with the committed state.
		if c.publisher != nil {
			c.publisher.Refresh()
		}
		c.mu.Lock()
		snapshot := report
		c.lastReport = &snapshot
		c.mu.Unlock()
		reports <- report
		close(reports)
	}()

	return provisional, reports
}

// commitOne uploads the draft's images, embeds its search text and
// inserts the document. The embedding is optional; the vector mirror is
// best effort and never fails the commit.
func (c *Coordinator) commitOne(ctx context.Context, d item.Draft, it item.Item) error {
	logger := contextutil.LoggerFromContext(ctx)

	urls, err := c.objects.UploadMany(ctx, d.Images, d.LocalID)
	if err != nil {
		logger.ErrorContext(ctx, "image upload failed", "localId", d.LocalID, "error", err)
		return err
	}
	it.ImageURLs = urls

	vec, err := c.embedder.EmbedText(ctx, it.SearchText(), ai.TaskDocument)
	if err != nil {
		// Only cancellation surfaces here; the insert below will fail
		// on the same context.
		vec = nil
	}
	it.Embedding = vec

	id, err := c.docs.Insert(ctx, it)
	if err != nil {
		logger.ErrorContext(ctx, "document insert failed", "localId", d.LocalID, "error", err)
		return err
	}

	if c.vectors != nil && len(vec) > 0 {
		point := vectorstore.PointFromItem(id, vec, it.NameTag, it.Category, it.Location)
		if err := c.vectors.Upsert(ctx, c.collection, []vectorstore.Point{point}); err != nil {
			logger.WarnContext(ctx, "vector mirror upsert failed", "id", id, "error", err)
		}
	}
	return nil
}

// SuppressionActive reports whether any commit from the current batch
// is still unresolved. While true, the live view must not apply push
// snapshots.
func (c *Coordinator) SuppressionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.suppressed) > 0
}

// InFlight returns the number of unresolved commits.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// LastReport returns the most recent batch report, or nil before the
// first batch resolves.
func (c *Coordinator) LastReport() *BatchReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastReport == nil {
		return nil
	}
	snapshot := *c.lastReport
	return &snapshot
}
