package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"lostfound-ai/internal/contextutil"
	"lostfound-ai/internal/drafts"
	"lostfound-ai/internal/item"
	"lostfound-ai/internal/syncer"
)

// CommitHandler converts the pending drafts into optimistic items and
// starts their background commit.
type CommitHandler struct {
	store       *drafts.Store
	coordinator *syncer.Coordinator
}

// NewCommitHandler creates a new CommitHandler.
func NewCommitHandler(store *drafts.Store, coordinator *syncer.Coordinator) *CommitHandler {
	return &CommitHandler{store: store, coordinator: coordinator}
}

// CommitRequest represents the commit payload. Force confirms past
// name-tag violations.
//
// swagger:model CommitRequest
type CommitRequest struct {
	Force bool `json:"force"`
}

// CommitResponse carries the optimistic items now visible in the list.
// The batch report arrives later through the sync status endpoint.
//
// swagger:model CommitResponse
type CommitResponse struct {
	Items []item.Item `json:"items"`
}

// ViolationsResponse is returned when validation blocks an unforced
// commit.
//
// swagger:model ViolationsResponse
type ViolationsResponse struct {
	Violations []syncer.Violation `json:"violations"`
}

// ServeHTTP validates the pending drafts and, unless blocked, commits
// them. Validation is a soft gate: a 409 lists every violation and the
// client retries with force once the user confirms.
func (h *CommitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req CommitRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WarnContext(ctx, "invalid commit body", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	pending := h.store.Drafts()
	if len(pending) == 0 {
		writeError(w, http.StatusBadRequest, "No drafts to submit")
		return
	}

	if violations := h.coordinator.Validate(pending); len(violations) > 0 && !req.Force {
		writeJSON(w, http.StatusConflict, ViolationsResponse{Violations: violations})
		return
	}

	// TakeAll before the network: a draft is converted exactly once,
	// even if its commit later fails.
	taken := h.store.TakeAll()
	provisional, _ := h.coordinator.Commit(context.WithoutCancel(ctx), taken)

	logger.InfoContext(ctx, "commit batch started", "items", len(provisional))
	writeJSON(w, http.StatusAccepted, CommitResponse{Items: provisional})
}

// SyncStatusHandler reports commit progress and the last batch outcome.
type SyncStatusHandler struct {
	coordinator *syncer.Coordinator
}

// NewSyncStatusHandler creates a new SyncStatusHandler.
func NewSyncStatusHandler(coordinator *syncer.Coordinator) *SyncStatusHandler {
	return &SyncStatusHandler{coordinator: coordinator}
}

// SyncStatusResponse represents the sync progress snapshot.
//
// swagger:model SyncStatusResponse
type SyncStatusResponse struct {
	Syncing    bool                `json:"syncing"`
	InFlight   int                 `json:"inFlight"`
	LastReport *syncer.BatchReport `json:"lastReport,omitempty"`
}

func (h *SyncStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, SyncStatusResponse{
		Syncing:    h.coordinator.SuppressionActive(),
		InFlight:   h.coordinator.InFlight(),
		LastReport: h.coordinator.LastReport(),
	})
}
