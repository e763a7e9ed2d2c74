package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// AI enrichment proxy.
	AIBaseURL  string
	AIAPIKey   string
	VectorSize int // embedding dimension, must match the embedding model output

	// Access control.
	AdminPasscode string

	// Upload engine.
	GuestDraftLimit int

	// Semantic search.
	SearchDebounce      time.Duration
	SimilarityFloor     float32
	MinSemanticQueryLen int // below this the query is never embedded
	MinFilterQueryLen   int // below this the similarity floor is skipped

	// Browsing.
	RecencyWindowDays int // guests only see items found within this window

	// Document store.
	DBPath string

	// Object store (S3-compatible).
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// Vector store mirror. Empty QdrantURL disables the mirror.
	QdrantURL        string
	QdrantCollection string

	// HTTP API.
	APIPort string

	// Logging.
	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// Load reads configuration from environment variables and returns a
// Config struct. It applies defaults for optional fields and validates
// required fields. If a .env file exists in the current directory or a
// parent (project root), it is loaded automatically; variables already
// set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() // current directory first

	// Walk up towards the project root looking for a .env file.
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		AIBaseURL:        getEnv("AI_BASE_URL", "http://localhost:3001"),
		AIAPIKey:         getEnv("AI_API_KEY", ""),
		AdminPasscode:    getEnv("ADMIN_PASSCODE", ""),
		DBPath:           getEnv("DB_PATH", "./data/lostfound.db"),
		S3Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Bucket:         getEnv("S3_BUCKET", "lost-items"),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:      getEnv("S3_SECRET_KEY", ""),
		QdrantURL:        getEnv("QDRANT_URL", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "lost-items"),
		APIPort:          getEnv("API_PORT", "9000"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	// VECTOR_SIZE must match the output dimension of the embedding
	// model. If it changes, stored embeddings and the Qdrant collection
	// must be rebuilt (see the backfill endpoint).
	vectorSizeStr := getEnv("VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("VECTOR_SIZE must be greater than 0")
	}
	cfg.VectorSize = vectorSize

	if cfg.AdminPasscode == "" {
		return nil, fmt.Errorf("ADMIN_PASSCODE is required")
	}

	cfg.GuestDraftLimit, err = getEnvInt("GUEST_DRAFT_LIMIT", 5)
	if err != nil {
		return nil, err
	}

	debounceMs, err := getEnvInt("SEARCH_DEBOUNCE_MS", 500)
	if err != nil {
		return nil, err
	}
	cfg.SearchDebounce = time.Duration(debounceMs) * time.Millisecond

	floor, err := getEnvFloat("SIMILARITY_FLOOR", 0.4)
	if err != nil {
		return nil, err
	}
	cfg.SimilarityFloor = float32(floor)

	cfg.MinSemanticQueryLen, err = getEnvInt("MIN_SEMANTIC_QUERY_LEN", 3)
	if err != nil {
		return nil, err
	}
	cfg.MinFilterQueryLen, err = getEnvInt("MIN_FILTER_QUERY_LEN", 5)
	if err != nil {
		return nil, err
	}
	cfg.RecencyWindowDays, err = getEnvInt("RECENCY_WINDOW_DAYS", 14)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = parseLogLevel(getEnv("LOG_LEVEL", "info"))

	// Create the data directory for the SQLite file if needed.
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
