// Package live maintains the client-facing item list from the document
// store's push subscription, filtered through the sync coordinator's
// suppression window.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"lostfound-ai/internal/item"
	"lostfound-ai/internal/store"
)

// SuppressionGuard reports whether optimistic commits are still in
// flight. The sync coordinator implements it.
type SuppressionGuard interface {
	SuppressionActive() bool
}

// View is the live collection view. It holds the current item list and
// replaces it wholesale on every push snapshot, except while the
// suppression window is open, when incoming snapshots are discarded so
// they cannot clobber optimistic rows.
type View struct {
	docs   store.DocumentStore
	guard  SuppressionGuard
	logger *slog.Logger

	mu          sync.Mutex
	items       []item.Item
	unsubscribe func()
}

// NewView creates a view over the document store. guard may be nil,
// which disables suppression.
func NewView(docs store.DocumentStore, guard SuppressionGuard, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{docs: docs, guard: guard, logger: logger}
}

// Start opens the push subscription. The initial snapshot is applied
// before Start returns.
func (v *View) Start() error {
	unsubscribe, err := v.docs.Subscribe(v.onSnapshot, v.onError)
	if err != nil {
		return fmt.Errorf("subscribing to document store: %w", err)
	}
	v.mu.Lock()
	v.unsubscribe = unsubscribe
	v.mu.Unlock()
	return nil
}

// Close tears down the subscription. The last list remains readable.
func (v *View) Close() {
	v.mu.Lock()
	unsubscribe := v.unsubscribe
	v.unsubscribe = nil
	v.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (v *View) onSnapshot(items []item.Item) {
	if v.guard != nil && v.guard.SuppressionActive() {
		// Snapshots are not merged or deferred, only dropped. The
		// coordinator calls Refresh once the window closes, so nothing
		// discarded here is lost.
		v.logger.Debug("push snapshot discarded during suppression window", "items", len(items))
		return
	}
	v.mu.Lock()
	v.items = append([]item.Item(nil), items...)
	v.mu.Unlock()
}

func (v *View) onError(err error) {
	v.logger.Error("push subscription failed", "error", err)
	v.mu.Lock()
	v.items = nil
	v.mu.Unlock()
}

// Items returns the current list, newest first.
func (v *View) Items() []item.Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]item.Item(nil), v.items...)
}

// Prepend puts optimistic items at the head of the list, preserving
// their relative order. The sync coordinator calls this once per batch.
func (v *View) Prepend(items []item.Item) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = append(append([]item.Item(nil), items...), v.items...)
}

// Refresh re-lists the document store and applies the result through
// the same path as a push snapshot. The sync coordinator calls it once
// per batch, after the suppression window has closed: the push for the
// batch's last resolution arrived while suppression was still active
// and was discarded, so the view must reconcile explicitly.
func (v *View) Refresh() {
	if v.docs == nil {
		return
	}
	items, err := v.docs.List(context.Background())
	if err != nil {
		// Keep the current list; the next store mutation pushes a
		// fresh snapshot.
		v.logger.Error("post-commit refresh failed", "error", err)
		return
	}
	v.onSnapshot(items)
}

// Syncing reports whether a commit batch is still resolving.
func (v *View) Syncing() bool {
	return v.guard != nil && v.guard.SuppressionActive()
}
