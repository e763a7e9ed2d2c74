package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lostfound-ai/internal/item"
)

// updatableColumns maps partial-update field names to their columns.
// Fields outside this map are rejected.
var updatableColumns = map[string]string{
	"nameTag":     "name_tag",
	"category":    "category",
	"description": "description",
	"location":    "location",
	"imageUrls":   "image_urls",
	"thumbhashes": "thumbhashes",
	"embedding":   "embedding",
}

// SQLiteStore implements DocumentStore on SQLite. Mutations notify all
// registered subscribers synchronously with a fresh full snapshot, so
// the push contract holds without a separate change feed.
type SQLiteStore struct {
	db *sql.DB

	mu          sync.Mutex
	subscribers map[int]subscriber
	nextSubID   int
}

type subscriber struct {
	onSnapshot func([]item.Item)
	onError    func(error)
}

// NewSQLiteStore creates a document store over an opened, migrated
// database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:          db,
		subscribers: make(map[int]subscriber),
	}
}

// Insert stores a new document and returns its assigned id.
func (s *SQLiteStore) Insert(ctx context.Context, it item.Item) (string, error) {
	id := uuid.New().String()

	imageURLs, err := json.Marshal(urlsOrEmpty(it.ImageURLs))
	if err != nil {
		return "", fmt.Errorf("failed to encode image urls: %w", err)
	}
	thumbhashes, err := json.Marshal(urlsOrEmpty(it.ThumbHashes))
	if err != nil {
		return "", fmt.Errorf("failed to encode thumbhashes: %w", err)
	}
	embedding, err := encodeEmbedding(it.Embedding)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (id, name_tag, category, description, location, found_date, image_urls, thumbhashes, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, it.NameTag, it.Category, it.Description, it.Location,
		it.FoundDate.UnixNano(), string(imageURLs), string(thumbhashes), embedding,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert item: %w", err)
	}

	s.notify()
	return id, nil
}

// Update applies a partial field update to an existing document.
func (s *SQLiteStore) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)

	// Sort field names so the generated SQL is deterministic.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		column, ok := updatableColumns[name]
		if !ok {
			return fmt.Errorf("field %q is not updatable", name)
		}
		value, err := encodeField(name, fields[name])
		if err != nil {
			return err
		}
		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET "+strings.Join(setClauses, ", ")+" WHERE id = ? AND is_deleted = 0",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	s.notify()
	return nil
}

// Delete tombstones a document. The read path filters tombstones
// everywhere, so a deleted item disappears from every snapshot.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET is_deleted = 1 WHERE id = ? AND is_deleted = 0", id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	s.notify()
	return nil
}

// List returns all live documents ordered by found date descending.
func (s *SQLiteStore) List(ctx context.Context) ([]item.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name_tag, category, description, location, found_date, image_urls, thumbhashes, embedding
		 FROM items WHERE is_deleted = 0 ORDER BY found_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	items := make([]item.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	return items, nil
}

// Get returns a single live document by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*item.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name_tag, category, description, location, found_date, image_urls, thumbhashes, embedding
		 FROM items WHERE id = ? AND is_deleted = 0`, id)

	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Subscribe registers a push listener and immediately delivers the
// current snapshot. Callbacks run synchronously on the goroutine that
// performs the mutation.
func (s *SQLiteStore) Subscribe(onSnapshot func([]item.Item), onError func(error)) (func(), error) {
	items, err := s.List(context.Background())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = subscriber{onSnapshot: onSnapshot, onError: onError}
	s.mu.Unlock()

	onSnapshot(items)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}, nil
}

// notify pushes a fresh snapshot to every subscriber.
func (s *SQLiteStore) notify() {
	s.mu.Lock()
	subs := make([]subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	items, err := s.List(context.Background())
	for _, sub := range subs {
		if err != nil {
			if sub.onError != nil {
				sub.onError(err)
			}
			continue
		}
		sub.onSnapshot(items)
	}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (item.Item, error) {
	var it item.Item
	var foundDate int64
	var imageURLs, thumbhashes string
	var embedding sql.NullString

	err := row.Scan(&it.ID, &it.NameTag, &it.Category, &it.Description, &it.Location,
		&foundDate, &imageURLs, &thumbhashes, &embedding)
	if err == sql.ErrNoRows {
		return it, err
	}
	if err != nil {
		return it, fmt.Errorf("failed to scan item: %w", err)
	}

	it.FoundDate = time.Unix(0, foundDate).UTC()

	if err := json.Unmarshal([]byte(imageURLs), &it.ImageURLs); err != nil {
		return it, fmt.Errorf("failed to decode image urls: %w", err)
	}
	if err := json.Unmarshal([]byte(thumbhashes), &it.ThumbHashes); err != nil {
		return it, fmt.Errorf("failed to decode thumbhashes: %w", err)
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &it.Embedding); err != nil {
			return it, fmt.Errorf("failed to decode embedding: %w", err)
		}
	}

	return it, nil
}

func encodeField(name string, value any) (any, error) {
	switch name {
	case "imageUrls", "thumbhashes":
		v, ok := value.([]string)
		if !ok {
			return nil, fmt.Errorf("field %q requires []string", name)
		}
		encoded, err := json.Marshal(urlsOrEmpty(v))
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		return string(encoded), nil
	case "embedding":
		v, ok := value.([]float32)
		if !ok {
			return nil, fmt.Errorf("field %q requires []float32", name)
		}
		return encodeEmbedding(v)
	default:
		return value, nil
	}
}

func encodeEmbedding(vec []float32) (any, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return string(encoded), nil
}

// urlsOrEmpty keeps JSON columns as [] instead of null.
func urlsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
