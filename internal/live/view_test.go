package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"lostfound-ai/internal/item"
)

// fakeDocs implements the subscribe side of the document store and lets
// tests push snapshots and errors by hand.
type fakeDocs struct {
	onSnapshot   func([]item.Item)
	onError      func(error)
	unsubscribed bool
	initial      []item.Item
	listErr      error
}

func (f *fakeDocs) Insert(context.Context, item.Item) (string, error)    { return "", nil }
func (f *fakeDocs) Update(context.Context, string, map[string]any) error { return nil }
func (f *fakeDocs) Delete(context.Context, string) error                 { return nil }
func (f *fakeDocs) List(context.Context) ([]item.Item, error)            { return f.initial, f.listErr }

func (f *fakeDocs) Subscribe(onSnapshot func([]item.Item), onError func(error)) (func(), error) {
	f.onSnapshot = onSnapshot
	f.onError = onError
	onSnapshot(f.initial)
	return func() { f.unsubscribed = true }, nil
}

type fakeGuard struct{ active bool }

func (g *fakeGuard) SuppressionActive() bool { return g.active }

func remoteItems(ids ...string) []item.Item {
	items := make([]item.Item, len(ids))
	now := time.Now()
	for i, id := range ids {
		items[i] = item.Item{ID: id, NameTag: "owner of " + id, FoundDate: now.Add(-time.Duration(i) * time.Hour)}
	}
	return items
}

func TestStartAppliesInitialSnapshot(t *testing.T) {
	docs := &fakeDocs{initial: remoteItems("r1", "r2")}
	v := NewView(docs, nil, nil)

	if err := v.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	items := v.Items()
	if len(items) != 2 || items[0].ID != "r1" {
		t.Errorf("Items() = %v, want initial snapshot", items)
	}
}

func TestSnapshotDiscardedDuringSuppression(t *testing.T) {
	docs := &fakeDocs{initial: remoteItems("r1")}
	guard := &fakeGuard{}
	v := NewView(docs, guard, nil)
	if err := v.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	optimistic := []item.Item{{ID: "local-a", NameTag: "Mia K."}, {ID: "local-b", NameTag: "Noah P."}}
	guard.active = true
	v.Prepend(optimistic)

	// A push racing the in-flight batch must not alter the list.
	docs.onSnapshot(remoteItems("r1", "r2", "r3"))
	items := v.Items()
	if len(items) != 3 || items[0].ID != "local-a" || items[1].ID != "local-b" {
		t.Fatalf("Items() = %v, want optimistic rows untouched", ids(items))
	}

	// Once the window closes, the next push is applied wholesale.
	guard.active = false
	docs.onSnapshot(remoteItems("r1", "r2", "r3"))
	items = v.Items()
	if len(items) != 3 || items[0].ID != "r1" {
		t.Errorf("Items() = %v, want post-window snapshot applied", ids(items))
	}
}

func TestRefreshReconcilesAfterWindow(t *testing.T) {
	docs := &fakeDocs{initial: remoteItems("r1")}
	guard := &fakeGuard{}
	v := NewView(docs, guard, nil)
	if err := v.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	guard.active = true
	v.Prepend([]item.Item{{ID: "local-a", NameTag: "Mia K."}})
	// The pushes for the batch's own commits land inside the window.
	docs.onSnapshot(remoteItems("r1", "r2"))

	guard.active = false
	docs.initial = remoteItems("r1", "r2")
	v.Refresh()
	items := v.Items()
	if len(items) != 2 || items[0].ID != "r1" {
		t.Fatalf("Items() = %v after Refresh, want committed state", ids(items))
	}
}

func TestRefreshFailureKeepsList(t *testing.T) {
	docs := &fakeDocs{initial: remoteItems("r1", "r2")}
	v := NewView(docs, nil, nil)
	if err := v.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	docs.listErr = errors.New("connection reset")
	v.Refresh()
	if items := v.Items(); len(items) != 2 {
		t.Errorf("Items() = %v after failed Refresh, want list retained", ids(items))
	}
}

func TestSubscriptionErrorEmptiesList(t *testing.T) {
	docs := &fakeDocs{initial: remoteItems("r1", "r2")}
	v := NewView(docs, nil, nil)
	if err := v.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	docs.onError(errors.New("stream reset"))
	if items := v.Items(); len(items) != 0 {
		t.Errorf("Items() = %v after subscription error, want empty", ids(items))
	}

	// The subscription is not re-established by the view; a later push
	// on the still-open stream repopulates it.
	docs.onSnapshot(remoteItems("r1"))
	if items := v.Items(); len(items) != 1 {
		t.Errorf("Items() = %v, want 1 item after recovery push", ids(items))
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	docs := &fakeDocs{initial: remoteItems("r1")}
	v := NewView(docs, nil, nil)
	if err := v.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	v.Close()
	if !docs.unsubscribed {
		t.Error("Close() did not release the subscription")
	}
	if items := v.Items(); len(items) != 1 {
		t.Errorf("Items() = %v after Close, want last list retained", ids(items))
	}
}

func TestSyncingReflectsGuard(t *testing.T) {
	guard := &fakeGuard{}
	v := NewView(&fakeDocs{}, guard, nil)

	if v.Syncing() {
		t.Error("Syncing() = true with idle guard")
	}
	guard.active = true
	if !v.Syncing() {
		t.Error("Syncing() = false with active guard")
	}
}

func ids(items []item.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
