package handlers

import (
	"net/http"

	"lostfound-ai/internal/backfill"
	"lostfound-ai/internal/contextutil"
)

// BackfillHandler runs the embedding backfill on demand. Staff only.
type BackfillHandler struct {
	pipeline *backfill.Pipeline
	passcode string
}

// NewBackfillHandler creates a new BackfillHandler.
func NewBackfillHandler(pipeline *backfill.Pipeline, passcode string) *BackfillHandler {
	return &BackfillHandler{pipeline: pipeline, passcode: passcode}
}

// ServeHTTP runs the backfill synchronously and returns its stats. The
// collection is small enough that a blocking request is simpler than a
// job queue.
func (h *BackfillHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !isStaff(r, h.passcode) {
		writeError(w, http.StatusForbidden, "Staff passcode required")
		return
	}

	stats, err := h.pipeline.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "backfill run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Backfill failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
