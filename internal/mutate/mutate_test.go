package mutate

import (
	"context"
	"errors"
	"testing"

	"gearbag/internal/model"
	"gearbag/internal/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.OpenSQLite(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedScenario(t *testing.T, s store.Store) (tripod, mouse model.Item) {
	t.Helper()
	ctx := context.Background()
	tripod, err := s.Create(ctx, model.Item{Name: "Tripod", Category: "Camera", Owners: 2, OwnerIDs: []string{"u1", "u2"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mouse, err = s.Create(ctx, model.Item{Name: "Mouse", Category: "Peripheral", Owners: 1, OwnerIDs: []string{"u1"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tripod, mouse
}

func TestJoinExistingItem(t *testing.T) {
	s := openTestStore(t)
	tripod, _ := seedScenario(t, s)
	ctx := context.Background()

	res, err := Join(ctx, s, "u3", "Tripod", "Camera", JoinOptions{})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res.Created {
		t.Fatalf("joining an existing item must not create")
	}

	got, _, _ := s.Get(ctx, tripod.ID)
	if got.Owners != 3 {
		t.Fatalf("owners = %d, want 3", got.Owners)
	}
	if !got.HasOwner("u3") {
		t.Fatalf("u3 missing from ownerIds: %v", got.OwnerIDs)
	}
}

func TestJoinAlreadyMemberLeavesStateUnchanged(t *testing.T) {
	s := openTestStore(t)
	tripod, _ := seedScenario(t, s)
	ctx := context.Background()

	_, err := Join(ctx, s, "u1", "Tripod", "Camera", JoinOptions{})
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("err = %v, want ErrAlreadyMember", err)
	}

	got, _, _ := s.Get(ctx, tripod.ID)
	if got.Owners != 2 || len(got.OwnerIDs) != 2 {
		t.Fatalf("state changed on rejected join: %+v", got)
	}
}

func TestJoinCreatesWhenMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res, err := Join(ctx, s, "u1", "Strap", "Camera", JoinOptions{Note: "worn"})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected a fresh document")
	}
	got, ok, _ := s.Get(ctx, res.Item.ID)
	if !ok {
		t.Fatalf("created item not found")
	}
	if got.Owners != 1 || !got.HasOwner("u1") {
		t.Fatalf("new item = %+v", got)
	}
	if got.ResolvedNote("u1") != "worn" {
		t.Fatalf("note not stored: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt must be set")
	}
}

func TestJoinValidatesInput(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var invalid InvalidInputError

	_, err := Join(ctx, s, "", "Strap", "Camera", JoinOptions{})
	if !errors.As(err, &invalid) {
		t.Fatalf("guest join: err = %v, want InvalidInputError", err)
	}
	_, err = Join(ctx, s, "u1", "  ", "Camera", JoinOptions{})
	if !errors.As(err, &invalid) {
		t.Fatalf("blank name: err = %v, want InvalidInputError", err)
	}
	_, err = Join(ctx, s, "u1", "Strap", "", JoinOptions{})
	if !errors.As(err, &invalid) {
		t.Fatalf("blank category: err = %v, want InvalidInputError", err)
	}
	// Validation happens before any network call: nothing was created.
	items, _ := s.Items(ctx)
	if len(items) != 0 {
		t.Fatalf("rejected joins must not write: %+v", items)
	}
}

func TestJoinIdempotentConverges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := Join(ctx, s, "u1", "Tripod", "Camera", JoinOptions{Idempotent: true})
	if err != nil {
		t.Fatalf("Join u1: %v", err)
	}
	second, err := Join(ctx, s, "u2", "tripod", "Camera", JoinOptions{Idempotent: true})
	if err != nil {
		t.Fatalf("Join u2: %v", err)
	}
	if second.Created {
		t.Fatalf("second idempotent join must reuse the document")
	}
	if second.Item.ID != first.Item.ID {
		t.Fatalf("joins diverged: %s vs %s", first.Item.ID, second.Item.ID)
	}

	items, _ := s.Items(ctx)
	if len(items) != 1 {
		t.Fatalf("expected one document, got %d", len(items))
	}
	got, _, _ := s.Get(ctx, first.Item.ID)
	if got.Owners != 2 || !got.HasOwner("u1") || !got.HasOwner("u2") {
		t.Fatalf("converged item = %+v", got)
	}
}

func TestJoinIdempotentJoinsKeylessDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Legacy create path: no dedupe key, drifted count, like the demo
	// fixtures.
	legacy, err := s.Create(ctx, model.Item{Name: "Sony A7IV", Category: "Camera", Owners: 42})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := Join(ctx, s, "u1", "Sony A7IV", "Camera", JoinOptions{Idempotent: true})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res.Created {
		t.Fatalf("idempotent join duplicated a keyless document")
	}
	if res.Item.ID != legacy.ID {
		t.Fatalf("joined %s, want %s", res.Item.ID, legacy.ID)
	}

	items, _ := s.Items(ctx)
	if len(items) != 1 {
		t.Fatalf("expected one document, got %d", len(items))
	}
	got, _, _ := s.Get(ctx, legacy.ID)
	if got.Owners != 43 || !got.HasOwner("u1") {
		t.Fatalf("membership not merged: %+v", got)
	}
}

func TestLeaveAndClampAtZero(t *testing.T) {
	s := openTestStore(t)
	_, mouse := seedScenario(t, s)
	ctx := context.Background()

	if _, err := Leave(ctx, s, "u1", mouse.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	got, _, _ := s.Get(ctx, mouse.ID)
	if got.Owners != 0 || len(got.OwnerIDs) != 0 {
		t.Fatalf("after leave: %+v", got)
	}

	// Second leave: NotMember, owners stays clamped at 0, not -1. The item
	// itself persists at zero owners.
	_, err := Leave(ctx, s, "u1", mouse.ID)
	if !errors.Is(err, ErrNotMember) {
		t.Fatalf("err = %v, want ErrNotMember", err)
	}
	got, ok, _ := s.Get(ctx, mouse.ID)
	if !ok {
		t.Fatalf("item must persist at zero owners")
	}
	if got.Owners != 0 {
		t.Fatalf("owners = %d, want 0", got.Owners)
	}
}

func TestLeaveUnknownItem(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := Leave(ctx, s, "u1", "gear-missing")
	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestAnnotate(t *testing.T) {
	s := openTestStore(t)
	tripod, _ := seedScenario(t, s)
	ctx := context.Background()

	if err := Annotate(ctx, s, "u2", tripod.ID, "carbon legs"); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	got, _, _ := s.Get(ctx, tripod.ID)
	if got.ResolvedNote("u2") != "carbon legs" {
		t.Fatalf("note = %q", got.ResolvedNote("u2"))
	}
	// Counts untouched.
	if got.Owners != 2 || len(got.OwnerIDs) != 2 {
		t.Fatalf("annotate must not touch ownership: %+v", got)
	}
}

func TestSeedDemoDataIsNotIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := SeedDemoData(ctx, s); err != nil {
		t.Fatalf("SeedDemoData: %v", err)
	}
	if err := SeedDemoData(ctx, s); err != nil {
		t.Fatalf("SeedDemoData: %v", err)
	}
	items, _ := s.Items(ctx)
	if len(items) != 8 {
		t.Fatalf("repeated seeding must duplicate fixtures, got %d items", len(items))
	}
}

func TestMutationsAppendAuditEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res, err := Join(ctx, s, "u1", "Strap", "Camera", JoinOptions{})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := Leave(ctx, s, "u1", res.Item.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	evs, err := s.Events(ctx, 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	var types []string
	for _, ev := range evs {
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != "item.create" || types[1] != "item.leave" {
		t.Fatalf("event types = %v", types)
	}
}
