package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"lostfound-ai/internal/ai"
	"lostfound-ai/internal/backfill"
	"lostfound-ai/internal/config"
	"lostfound-ai/internal/drafts"
	"lostfound-ai/internal/http"
	"lostfound-ai/internal/item"
	"lostfound-ai/internal/live"
	"lostfound-ai/internal/search"
	"lostfound-ai/internal/store"
	"lostfound-ai/internal/syncer"
	"lostfound-ai/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// Lost-and-found gallery API: photo drafts with AI enrichment,
// optimistic batch commit and semantic search over found items.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: LostFound AI API
//   description: |
//     Community lost-and-found photo gallery with AI-assisted item
//     descriptions, optimistic uploads and semantic search.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := store.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	docs := store.NewSQLiteStore(db)

	// Object store for item images
	ctx := context.Background()
	objects, err := store.NewS3ObjectStore(ctx, store.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}
	slog.Info("Object store ready", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)

	// Optional vector mirror
	var vectors vectorstore.VectorStore
	if cfg.QdrantURL != "" {
		qdrantStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := qdrantStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.VectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		vectors = qdrantStore
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.VectorSize)
	} else {
		slog.Info("Vector mirror disabled")
	}

	// AI enrichment client
	aiClient := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.VectorSize)

	// Upload engine
	draftStore := drafts.NewStore(aiClient, cfg.GuestDraftLimit, item.DefaultCategories, item.DefaultLocations)
	coordinator := syncer.NewCoordinator(docs, objects, aiClient, vectors, cfg.QdrantCollection)

	view := live.NewView(docs, coordinator, slog.Default())
	coordinator.SetPublisher(view)
	if err := view.Start(); err != nil {
		log.Fatalf("Failed to start live view: %v", err)
	}
	defer view.Close()
	slog.Info("Live view subscribed")

	searchController := search.NewController(aiClient, search.Options{
		Debounce:       cfg.SearchDebounce,
		Floor:          cfg.SimilarityFloor,
		MinSemanticLen: cfg.MinSemanticQueryLen,
		MinFilterLen:   cfg.MinFilterQueryLen,
	})
	defer searchController.Close()

	backfillPipeline := backfill.NewPipeline(docs, aiClient, vectors, cfg.QdrantCollection, cfg.VectorSize)

	// Create router with dependencies
	deps := &http.Deps{
		Drafts:      draftStore,
		Coordinator: coordinator,
		View:        view,
		Search:      searchController,
		Docs:        docs,
		Objects:     objects,
		Vectors:     vectors,
		Backfill:    backfillPipeline,
		Collection:  cfg.QdrantCollection,
		Passcode:    cfg.AdminPasscode,
		RecencyDays: cfg.RecencyWindowDays,
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
