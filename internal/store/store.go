// Package store provides the persistence collaborators of the engine:
// a document store with push subscriptions and an object store for
// image binaries. Both are consumed through narrow interfaces so the
// sync and view layers never depend on a concrete backend.
package store

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks lostfound-ai/internal/store DocumentStore
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_object_store.go -package=mocks lostfound-ai/internal/store ObjectStore

import (
	"context"
	"errors"

	"lostfound-ai/internal/item"
)

var (
	// ErrNotFound is returned when a document is not found.
	ErrNotFound = errors.New("document not found")
)

// DocumentStore is the CRUD+subscribe contract over the remote item
// collection.
type DocumentStore interface {
	// Insert stores a new document and returns its assigned id.
	Insert(ctx context.Context, it item.Item) (string, error)

	// Update applies a partial field update to an existing document.
	Update(ctx context.Context, id string, fields map[string]any) error

	// Delete tombstones a document. Tombstoned documents never appear
	// in List results or snapshots.
	Delete(ctx context.Context, id string) error

	// List returns all live documents ordered by found date descending.
	List(ctx context.Context) ([]item.Item, error)

	// Subscribe registers a push listener. onSnapshot receives the full
	// ordered current set once immediately and again after every
	// change; onError receives subscription failures. The returned
	// function releases the subscription and must be called to stop
	// deliveries.
	Subscribe(onSnapshot func([]item.Item), onError func(error)) (func(), error)
}

// ObjectStore stores image binaries and returns their durable URLs.
type ObjectStore interface {
	// UploadMany uploads the blobs under the given item key and returns
	// one URL per blob, in order.
	UploadMany(ctx context.Context, blobs []item.Blob, itemKey string) ([]string, error)

	// DeleteMany removes previously uploaded objects by URL.
	DeleteMany(ctx context.Context, urls []string) error
}
