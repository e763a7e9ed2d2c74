package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lostfound-ai/internal/contextutil"
	"lostfound-ai/internal/drafts"
	"lostfound-ai/internal/item"
)

// maxUploadBytes bounds one multipart upload request.
const maxUploadBytes = 32 << 20

// DraftsHandler manages the pending draft list over HTTP. Routes are
// method-dispatched by the router onto the exported handler funcs.
type DraftsHandler struct {
	store    *drafts.Store
	passcode string
}

// NewDraftsHandler creates a new DraftsHandler.
func NewDraftsHandler(store *drafts.Store, passcode string) *DraftsHandler {
	return &DraftsHandler{store: store, passcode: passcode}
}

// DraftResponse is the client-facing draft projection. Image bytes stay
// on the server; the client sees counts and the enrichment status.
//
// swagger:model DraftResponse
type DraftResponse struct {
	LocalID        string   `json:"localId"`
	NameTag        string   `json:"nameTag"`
	Category       string   `json:"category"`
	Location       string   `json:"location"`
	CustomLocation string   `json:"customLocation,omitempty"`
	Description    string   `json:"description"`
	Enrichment     string   `json:"enrichment"`
	ImageCount     int      `json:"imageCount"`
	ActivePreview  int      `json:"activePreview"`
	ThumbHashes    []string `json:"thumbhashes,omitempty"`
}

func draftResponse(d item.Draft) DraftResponse {
	return DraftResponse{
		LocalID:        d.LocalID,
		NameTag:        d.NameTag,
		Category:       d.Category,
		Location:       d.Location,
		CustomLocation: d.CustomLocation,
		Description:    d.Description,
		Enrichment:     d.Enrichment.String(),
		ImageCount:     len(d.Images),
		ActivePreview:  d.ActivePreview,
		ThumbHashes:    d.ThumbHashes,
	}
}

// Create admits one draft per uploaded image file. Multipart field name
// is "files"; non-image parts are skipped silently.
func (h *DraftsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.WarnContext(ctx, "invalid multipart upload", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}

	var files []item.Blob
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			logger.WarnContext(ctx, "unreadable upload part", "file", header.Filename, "error", err)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			logger.WarnContext(ctx, "unreadable upload part", "file", header.Filename, "error", err)
			continue
		}
		files = append(files, item.Blob{
			Name: header.Filename,
			MIME: header.Header.Get("Content-Type"),
			Data: data,
		})
	}

	ids, err := h.store.AddFromFiles(files, isStaff(r, h.passcode))
	if errors.Is(err, drafts.ErrGuestLimit) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "draft admission failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to add drafts")
		return
	}

	logger.InfoContext(ctx, "drafts admitted", "count", len(ids))
	writeJSON(w, http.StatusCreated, map[string]any{"localIds": ids})
}

// List returns every pending draft with its enrichment status, plus
// the last-used category and location so the client can prefill the
// next manual entry the same way AddFromFiles does.
func (h *DraftsHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.store.Drafts()
	out := make([]DraftResponse, len(all))
	for i, d := range all {
		out[i] = draftResponse(d)
	}
	category, location := h.store.LastUsed()
	writeJSON(w, http.StatusOK, map[string]any{
		"drafts":   out,
		"lastUsed": map[string]string{"category": category, "location": location},
	})
}

// UpdateFieldRequest mutates one draft field.
//
// swagger:model UpdateFieldRequest
type UpdateFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Update patches a single field on a draft.
func (h *DraftsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	localID := chi.URLParam(r, "id")

	var req UpdateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid update body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.store.UpdateField(localID, req.Field, req.Value)
	switch {
	case errors.Is(err, drafts.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, "Draft not found")
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		d, _ := h.store.Get(localID)
		writeJSON(w, http.StatusOK, draftResponse(d))
	}
}

// AttachImage adds one more image to an existing draft. Multipart field
// name is "file".
func (h *DraftsHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	localID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.WarnContext(ctx, "invalid multipart upload", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "Missing file")
		return
	}
	f, err := headers[0].Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable file")
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable file")
		return
	}

	blob := item.Blob{
		Name: headers[0].Filename,
		MIME: headers[0].Header.Get("Content-Type"),
		Data: data,
	}
	if err := h.store.AttachImage(localID, blob); errors.Is(err, drafts.ErrDraftNotFound) {
		writeError(w, http.StatusNotFound, "Draft not found")
		return
	}
	d, _ := h.store.Get(localID)
	writeJSON(w, http.StatusOK, draftResponse(d))
}

// PreviewRequest selects which attached image the client is showing.
//
// swagger:model PreviewRequest
type PreviewRequest struct {
	ActivePreviewIndex int `json:"activePreviewIndex"`
}

// SetPreview records the active preview image of a draft. Analysis
// runs against the selected image.
func (h *DraftsHandler) SetPreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	localID := chi.URLParam(r, "id")

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid preview body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.store.SetActivePreview(localID, req.ActivePreviewIndex)
	switch {
	case errors.Is(err, drafts.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, "Draft not found")
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		d, _ := h.store.Get(localID)
		writeJSON(w, http.StatusOK, draftResponse(d))
	}
}

// CancelAnalyses cancels every in-flight enrichment without touching
// the drafts themselves. The client calls this when the user dismisses
// the upload flow while analyses are still running.
func (h *DraftsHandler) CancelAnalyses(w http.ResponseWriter, r *http.Request) {
	h.store.CancelAll()
	w.WriteHeader(http.StatusNoContent)
}

// Remove deletes a draft and cancels its in-flight enrichment.
func (h *DraftsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	localID := chi.URLParam(r, "id")
	if err := h.store.Remove(localID); errors.Is(err, drafts.ErrDraftNotFound) {
		writeError(w, http.StatusNotFound, "Draft not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Analyze triggers AI enrichment for a draft. The call returns
// immediately; clients observe progress through the draft's enrichment
// status. Re-triggering supersedes the previous run.
func (h *DraftsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	localID := chi.URLParam(r, "id")

	// Detached from the request context: the analysis outlives this
	// request and is cancelled through the store, not by the client
	// hanging up.
	err := h.store.RunEnrichment(context.WithoutCancel(ctx), localID)
	switch {
	case errors.Is(err, drafts.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, "Draft not found")
	case errors.Is(err, drafts.ErrNoImage):
		writeError(w, http.StatusBadRequest, "Draft has no image to analyze")
	case err != nil:
		logger.ErrorContext(ctx, "enrichment start failed", "localId", localID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start analysis")
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}
