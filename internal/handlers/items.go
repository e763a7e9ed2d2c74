package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lostfound-ai/internal/contextutil"
	"lostfound-ai/internal/item"
	"lostfound-ai/internal/live"
	"lostfound-ai/internal/store"
	"lostfound-ai/internal/vectorstore"
)

// ItemsHandler serves the live item list and staff deletion.
type ItemsHandler struct {
	view       *live.View
	docs       store.DocumentStore
	objects    store.ObjectStore
	vectors    vectorstore.VectorStore
	collection string
	passcode   string
	recency    time.Duration
}

// NewItemsHandler creates a new ItemsHandler. vectors may be nil;
// recency caps how far back guests can see (zero disables the window).
func NewItemsHandler(view *live.View, docs store.DocumentStore, objects store.ObjectStore, vectors vectorstore.VectorStore, collection, passcode string, recencyDays int) *ItemsHandler {
	return &ItemsHandler{
		view:       view,
		docs:       docs,
		objects:    objects,
		vectors:    vectors,
		collection: collection,
		passcode:   passcode,
		recency:    time.Duration(recencyDays) * 24 * time.Hour,
	}
}

// ItemsResponse represents the live list plus the sync-in-progress
// flag.
//
// swagger:model ItemsResponse
type ItemsResponse struct {
	Items   []item.Item `json:"items"`
	Syncing bool        `json:"syncing"`
}

// List returns the current item list, optionally restricted to one
// category. Guests only see items found within the recency window;
// staff see everything.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.view.Items()
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := make([]item.Item, 0, len(items))
		for _, it := range items {
			if it.Category == category {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	if !isStaff(r, h.passcode) && h.recency > 0 {
		cutoff := time.Now().Add(-h.recency)
		visible := make([]item.Item, 0, len(items))
		for _, it := range items {
			if it.FoundDate.After(cutoff) {
				visible = append(visible, it)
			}
		}
		items = visible
	}
	writeJSON(w, http.StatusOK, ItemsResponse{Items: items, Syncing: h.view.Syncing()})
}

// Delete removes an item and cleans up its images and mirrored
// embedding. Staff only.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !isStaff(r, h.passcode) {
		writeError(w, http.StatusForbidden, "Staff passcode required")
		return
	}

	id := chi.URLParam(r, "id")
	var urls []string
	for _, it := range h.view.Items() {
		if it.ID == id {
			urls = it.ImageURLs
			break
		}
	}

	if err := h.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Item not found")
			return
		}
		logger.ErrorContext(ctx, "item delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete item")
		return
	}

	// Cleanup is best effort; the document tombstone is what matters.
	if len(urls) > 0 {
		if err := h.objects.DeleteMany(ctx, urls); err != nil {
			logger.WarnContext(ctx, "image cleanup failed", "id", id, "error", err)
		}
	}
	if h.vectors != nil {
		if err := h.vectors.Delete(ctx, h.collection, []string{id}); err != nil {
			logger.WarnContext(ctx, "vector cleanup failed", "id", id, "error", err)
		}
	}

	logger.InfoContext(ctx, "item deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
