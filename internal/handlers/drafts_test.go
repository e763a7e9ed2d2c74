package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"lostfound-ai/internal/ai"
	"lostfound-ai/internal/drafts"
	"lostfound-ai/internal/item"
)

type stubAnalyzer struct {
	analysis ai.Analysis
	err      error
}

func (s *stubAnalyzer) AnalyzeImage(_ context.Context, _ []byte, _ string, _ []string) (ai.Analysis, error) {
	return s.analysis, s.err
}

func draftsRouter(h *DraftsHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/drafts", h.Create)
	r.Get("/api/drafts", h.List)
	r.Post("/api/drafts/cancel", h.CancelAnalyses)
	r.Patch("/api/drafts/{id}", h.Update)
	r.Delete("/api/drafts/{id}", h.Remove)
	r.Post("/api/drafts/{id}/analyze", h.Analyze)
	r.Post("/api/drafts/{id}/images", h.AttachImage)
	r.Put("/api/drafts/{id}/preview", h.SetPreview)
	return r
}

// multipartUpload builds a "files" multipart body from name/MIME pairs.
func multipartUpload(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, mime := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		header.Set("Content-Type", mime)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("creating part: %v", err)
		}
		part.Write([]byte{0xff, 0xd8, 0xff})
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func listDrafts(t *testing.T, router http.Handler) []DraftResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/drafts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/drafts status = %v", w.Code)
	}
	var resp struct {
		Drafts []DraftResponse `json:"drafts"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding drafts: %v", err)
	}
	return resp.Drafts
}

func TestDraftsCreateSkipsNonImages(t *testing.T) {
	store := drafts.NewStore(&stubAnalyzer{}, 5, nil, nil)
	router := draftsRouter(NewDraftsHandler(store, "sesame"))

	body, contentType := multipartUpload(t, map[string]string{
		"hat.jpg":   "image/jpeg",
		"notes.pdf": "application/pdf",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/drafts", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %v, want 201", w.Code)
	}
	if got := listDrafts(t, router); len(got) != 1 {
		t.Errorf("drafts = %d, want 1 (pdf skipped)", len(got))
	}
}

func TestDraftsCreateGuestLimit(t *testing.T) {
	store := drafts.NewStore(&stubAnalyzer{}, 1, nil, nil)
	router := draftsRouter(NewDraftsHandler(store, "sesame"))

	body, contentType := multipartUpload(t, map[string]string{
		"a.jpg": "image/jpeg",
		"b.jpg": "image/jpeg",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/drafts", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %v, want 403", w.Code)
	}
	if store.Len() != 0 {
		t.Errorf("store admitted %d drafts past the ceiling", store.Len())
	}

	// The staff passcode lifts the ceiling.
	body, contentType = multipartUpload(t, map[string]string{
		"a.jpg": "image/jpeg",
		"b.jpg": "image/jpeg",
	})
	req = httptest.NewRequest(http.MethodPost, "/api/drafts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(PasscodeHeader, "sesame")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("staff upload status = %v, want 201", w.Code)
	}
	if store.Len() != 2 {
		t.Errorf("store has %d drafts, want 2", store.Len())
	}
}

func TestDraftsUpdateAndRemove(t *testing.T) {
	store := drafts.NewStore(&stubAnalyzer{}, 5, nil, nil)
	router := draftsRouter(NewDraftsHandler(store, ""))

	ids, err := store.AddFromFiles([]item.Blob{{Name: "a.jpg", MIME: "image/jpeg", Data: []byte{1}}}, true)
	if err != nil {
		t.Fatalf("seeding draft: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/drafts/"+ids[0], strings.NewReader(`{"field":"nameTag","value":"Ella N."}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH status = %v, want 200", w.Code)
	}
	var updated DraftResponse
	if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
		t.Fatalf("decoding draft: %v", err)
	}
	if updated.NameTag != "Ella N." {
		t.Errorf("NameTag = %q, want the patched value", updated.NameTag)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/drafts/nope", strings.NewReader(`{"field":"nameTag","value":"x"}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("PATCH unknown draft status = %v, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/drafts/"+ids[0], nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %v, want 204", w.Code)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d drafts after delete, want 0", store.Len())
	}
}

func TestDraftsAttachImageAndPreview(t *testing.T) {
	store := drafts.NewStore(&stubAnalyzer{}, 5, nil, nil)
	router := draftsRouter(NewDraftsHandler(store, ""))

	ids, _ := store.AddFromFiles([]item.Blob{{Name: "a.jpg", MIME: "image/jpeg", Data: []byte{1}}}, true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="b.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	part.Write([]byte{0xff, 0xd8, 0xff})
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/"+ids[0]+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("attach status = %v, want 200", w.Code)
	}
	var attached DraftResponse
	if err := json.NewDecoder(w.Body).Decode(&attached); err != nil {
		t.Fatalf("decoding draft: %v", err)
	}
	if attached.ImageCount != 2 {
		t.Errorf("ImageCount = %d after attach, want 2", attached.ImageCount)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/drafts/"+ids[0]+"/preview", strings.NewReader(`{"activePreviewIndex":1}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %v, want 200", w.Code)
	}
	var updated DraftResponse
	if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
		t.Fatalf("decoding draft: %v", err)
	}
	if updated.ActivePreview != 1 {
		t.Errorf("ActivePreview = %d, want 1", updated.ActivePreview)
	}

	// Out-of-range index and unknown drafts are rejected.
	req = httptest.NewRequest(http.MethodPut, "/api/drafts/"+ids[0]+"/preview", strings.NewReader(`{"activePreviewIndex":5}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("preview out of range status = %v, want 400", w.Code)
	}
	req = httptest.NewRequest(http.MethodPut, "/api/drafts/nope/preview", strings.NewReader(`{"activePreviewIndex":0}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("preview unknown draft status = %v, want 404", w.Code)
	}
}

type blockingAnalyzer struct {
	started chan struct{}
}

func (b *blockingAnalyzer) AnalyzeImage(ctx context.Context, _ []byte, _ string, _ []string) (ai.Analysis, error) {
	b.started <- struct{}{}
	<-ctx.Done()
	return ai.Analysis{}, ctx.Err()
}

func TestDraftsCancelAnalyses(t *testing.T) {
	analyzer := &blockingAnalyzer{started: make(chan struct{}, 1)}
	store := drafts.NewStore(analyzer, 5, nil, nil)
	router := draftsRouter(NewDraftsHandler(store, ""))

	ids, _ := store.AddFromFiles([]item.Blob{{Name: "a.jpg", MIME: "image/jpeg", Data: []byte{1}}}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/"+ids[0]+"/analyze", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("analyze status = %v, want 202", w.Code)
	}
	<-analyzer.started

	req = httptest.NewRequest(http.MethodPost, "/api/drafts/cancel", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %v, want 204", w.Code)
	}

	got := listDrafts(t, router)
	if len(got) != 1 {
		t.Fatalf("drafts = %d after cancel, want the draft retained", len(got))
	}
	if got[0].Enrichment != "cancelled" {
		t.Errorf("enrichment = %q after cancel, want cancelled", got[0].Enrichment)
	}
}

func TestDraftsListReportsLastUsed(t *testing.T) {
	store := drafts.NewStore(&stubAnalyzer{}, 5, nil, nil)
	router := draftsRouter(NewDraftsHandler(store, ""))

	ids, _ := store.AddFromFiles([]item.Blob{{Name: "a.jpg", MIME: "image/jpeg", Data: []byte{1}}}, true)
	req := httptest.NewRequest(http.MethodPatch, "/api/drafts/"+ids[0], strings.NewReader(`{"field":"category","value":"Lunch Box"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH status = %v, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/drafts", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp struct {
		LastUsed map[string]string `json:"lastUsed"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.LastUsed["category"] != "Lunch Box" {
		t.Errorf("lastUsed category = %q, want the patched value", resp.LastUsed["category"])
	}
}

func TestDraftsAnalyze(t *testing.T) {
	analyzer := &stubAnalyzer{analysis: ai.Analysis{NameTag: "Ruby C.", Category: "Lunch Box", Description: "Pink lunch box"}}
	store := drafts.NewStore(analyzer, 5, nil, nil)
	router := draftsRouter(NewDraftsHandler(store, ""))

	ids, _ := store.AddFromFiles([]item.Blob{{Name: "a.jpg", MIME: "image/jpeg", Data: []byte{1}}}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/"+ids[0]+"/analyze", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("analyze status = %v, want 202", w.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		d, _ := store.Get(ids[0])
		if d.Enrichment == item.EnrichmentDone {
			if d.NameTag != "Ruby C." {
				t.Errorf("NameTag = %q, want the analysis result", d.NameTag)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("enrichment never finished, state = %v", d.Enrichment)
		}
		time.Sleep(5 * time.Millisecond)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/drafts/nope/analyze", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("analyze unknown draft status = %v, want 404", w.Code)
	}
}
