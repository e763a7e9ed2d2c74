// Package http wires the handlers into the chi router.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lostfound-ai/internal/backfill"
	"lostfound-ai/internal/drafts"
	"lostfound-ai/internal/handlers"
	"lostfound-ai/internal/live"
	"lostfound-ai/internal/search"
	"lostfound-ai/internal/store"
	"lostfound-ai/internal/syncer"
	"lostfound-ai/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Drafts      *drafts.Store
	Coordinator *syncer.Coordinator
	View        *live.View
	Search      *search.Controller
	Docs        store.DocumentStore
	Objects     store.ObjectStore
	Vectors     vectorstore.VectorStore // nil disables the mirror
	Backfill    *backfill.Pipeline
	Collection  string
	Passcode    string
	RecencyDays int
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	draftsHandler := handlers.NewDraftsHandler(deps.Drafts, deps.Passcode)
	itemsHandler := handlers.NewItemsHandler(deps.View, deps.Docs, deps.Objects, deps.Vectors, deps.Collection, deps.Passcode, deps.RecencyDays)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/login", handlers.NewLoginHandler(deps.Passcode))
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.Docs, deps.Vectors, deps.Collection))

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", draftsHandler.Create)
			r.Get("/", draftsHandler.List)
			r.Post("/cancel", draftsHandler.CancelAnalyses)
			r.Patch("/{id}", draftsHandler.Update)
			r.Delete("/{id}", draftsHandler.Remove)
			r.Post("/{id}/analyze", draftsHandler.Analyze)
			r.Post("/{id}/images", draftsHandler.AttachImage)
			r.Put("/{id}/preview", draftsHandler.SetPreview)
		})

		r.Method(http.MethodPost, "/commit", handlers.NewCommitHandler(deps.Drafts, deps.Coordinator))
		r.Method(http.MethodGet, "/sync/status", handlers.NewSyncStatusHandler(deps.Coordinator))

		r.Get("/items", itemsHandler.List)
		r.Delete("/items/{id}", itemsHandler.Delete)

		r.Method(http.MethodGet, "/search", handlers.NewSearchHandler(deps.View, deps.Search))

		r.Method(http.MethodPost, "/admin/backfill", handlers.NewBackfillHandler(deps.Backfill, deps.Passcode))
	})

	return r
}
