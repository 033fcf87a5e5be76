package web

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"gearbag/internal/model"
	"gearbag/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.OpenSQLite(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(NewServer(st, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func waitSnapshot(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("feed closed")
		}
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

func TestClientCreateAndQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	cl := NewClient(srv.URL)
	defer cl.Close()
	ctx := context.Background()

	created, err := cl.Create(ctx, model.Item{
		Name:      "Tripod",
		Category:  "Camera",
		Owners:    1,
		OwnerIDs:  []string{"u1"},
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create: empty id")
	}

	got, ok, err := cl.Get(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Name != "Tripod" || got.Owners != 1 {
		t.Fatalf("get: unexpected item %+v", got)
	}

	byName, err := cl.QueryByName(ctx, "Tripod")
	if err != nil {
		t.Fatalf("query by name: %v", err)
	}
	if len(byName) != 1 || byName[0].ID != created.ID {
		t.Fatalf("query by name: got %+v", byName)
	}

	if _, ok, err := cl.Get(ctx, "gear-missing"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}
}

func TestClientCreateWithKeyIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)
	cl := NewClient(srv.URL)
	defer cl.Close()
	ctx := context.Background()

	it := model.Item{Name: "Mouse", Category: "Desk", Owners: 1, OwnerIDs: []string{"u1"}}
	first, created, err := cl.CreateWithKey(ctx, "mouse", it)
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	second, created, err := cl.CreateWithKey(ctx, "mouse", it)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("second create reported created=true")
	}
	if second.ID != first.ID {
		t.Fatalf("ids differ: %q vs %q", first.ID, second.ID)
	}
}

func TestClientMutationsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	cl := NewClient(srv.URL)
	defer cl.Close()
	ctx := context.Background()

	it, err := cl.Create(ctx, model.Item{Name: "Keyboard", Category: "Desk", Owners: 1, OwnerIDs: []string{"u1"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := cl.AddOwner(ctx, it.ID, "u2"); err != nil {
		t.Fatalf("add owner: %v", err)
	}
	if err := cl.IncrementOwners(ctx, it.ID, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := cl.SetNote(ctx, it.ID, "u2", "clicky"); err != nil {
		t.Fatalf("set note: %v", err)
	}

	got, ok, err := cl.Get(ctx, it.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Owners != 2 || !got.HasOwner("u2") {
		t.Fatalf("mutations not applied: %+v", got)
	}
	if got.ResolvedNote("u2") != "clicky" {
		t.Fatalf("note not applied: %+v", got.Notes)
	}

	if err := cl.AppendEvent(ctx, model.Event{TS: time.Now(), UserID: "u2", Type: "item.join", ItemID: it.ID}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	evs, err := cl.Events(ctx, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 1 || evs[0].Type != "item.join" {
		t.Fatalf("events: got %+v", evs)
	}
}

func TestClientFeedDeliversSnapshots(t *testing.T) {
	srv, st := newTestServer(t)
	cl := NewClient(srv.URL)
	defer cl.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop, err := cl.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	snap := waitSnapshot(t, ch)
	if snap.Err != nil || len(snap.Items) != 0 {
		t.Fatalf("initial snapshot: %+v", snap)
	}

	if _, err := st.Create(context.Background(), model.Item{Name: "Lamp", Category: "Desk", Owners: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal("feed closed")
			}
			if snap.Err != nil {
				t.Fatalf("feed error: %v", snap.Err)
			}
			if len(snap.Items) == 1 && snap.Items[0].Name == "Lamp" {
				return
			}
		case <-deadline:
			t.Fatal("change never arrived on feed")
		}
	}
}

func TestClientUnavailableWhenServerDown(t *testing.T) {
	srv, _ := newTestServer(t)
	cl := NewClient(srv.URL)
	defer cl.Close()
	srv.Close()

	_, err := cl.Items(context.Background())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
	_, _, err = cl.Subscribe(context.Background())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("subscribe: want ErrUnavailable, got %v", err)
	}
}
