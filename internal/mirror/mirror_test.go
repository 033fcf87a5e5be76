package mirror

import (
	"context"
	"testing"
	"time"

	"gearbag/internal/model"
	"gearbag/internal/store"
)

func waitChanged(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("mirror did not update in time")
	}
}

func TestMirrorReplacesSnapshotWholesale(t *testing.T) {
	st, err := store.OpenSQLite(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	m := New(nil)
	if m.Snapshot().Loaded {
		t.Fatalf("mirror must start unloaded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	ch := m.Changed()
	go func() {
		defer close(done)
		_ = m.Run(ctx, st)
	}()

	// Initial snapshot: loaded, empty. Distinct from the unloaded state.
	waitChanged(t, ch)
	snap := m.Snapshot()
	if !snap.Loaded || len(snap.Items) != 0 {
		t.Fatalf("after initial snapshot: %+v", snap)
	}

	ch = m.Changed()
	if _, err := st.Create(ctx, model.Item{Name: "Tripod", Category: "Camera"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitChanged(t, ch)
	snap = m.Snapshot()
	if len(snap.Items) != 1 || snap.Items[0].Name != "Tripod" {
		t.Fatalf("after mutation: %+v", snap.Items)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on context cancellation")
	}
}
