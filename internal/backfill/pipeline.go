// Package backfill recomputes missing or wrong-size item embeddings.
// It exists for collections that predate semantic search or that were
// written while the embedding endpoint was down.
package backfill

import (
	"context"
	"fmt"

	"lostfound-ai/internal/ai"
	"lostfound-ai/internal/contextutil"
	"lostfound-ai/internal/item"
	"lostfound-ai/internal/store"
	"lostfound-ai/internal/syncer"
	"lostfound-ai/internal/vectorstore"
)

// Stats summarizes one backfill run.
type Stats struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Pipeline walks the collection and fills in embeddings item by item.
// Items that already carry a correctly-sized embedding are skipped.
type Pipeline struct {
	docs       store.DocumentStore
	embedder   syncer.Embedder
	vectors    vectorstore.VectorStore
	collection string
	vectorSize int
}

// NewPipeline creates a backfill pipeline. vectors may be nil to skip
// the mirror.
func NewPipeline(docs store.DocumentStore, embedder syncer.Embedder, vectors vectorstore.VectorStore, collection string, vectorSize int) *Pipeline {
	return &Pipeline{
		docs:       docs,
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
		vectorSize: vectorSize,
	}
}

// Run processes every item sequentially and returns per-item counts.
// Individual failures are counted, not fatal; the run only aborts when
// the listing fails or the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	items, err := p.docs.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing items: %w", err)
	}

	var stats Stats
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Checked++

		if len(it.Embedding) == p.vectorSize {
			stats.Skipped++
			continue
		}

		if err := p.backfillOne(ctx, it); err != nil {
			logger.WarnContext(ctx, "backfill failed for item", "id", it.ID, "error", err)
			stats.Failed++
			continue
		}
		stats.Updated++
	}

	logger.InfoContext(ctx, "backfill finished",
		"checked", stats.Checked, "updated", stats.Updated,
		"skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

func (p *Pipeline) backfillOne(ctx context.Context, it item.Item) error {
	vec, err := p.embedder.EmbedText(ctx, it.SearchText(), ai.TaskDocument)
	if err != nil {
		return err
	}
	if len(vec) != p.vectorSize {
		return fmt.Errorf("embedding unavailable for %q", it.ID)
	}

	if err := p.docs.Update(ctx, it.ID, map[string]any{"embedding": vec}); err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	if p.vectors != nil {
		point := vectorstore.PointFromItem(it.ID, vec, it.NameTag, it.Category, it.Location)
		if err := p.vectors.Upsert(ctx, p.collection, []vectorstore.Point{point}); err != nil {
			return fmt.Errorf("mirroring embedding: %w", err)
		}
	}
	return nil
}
