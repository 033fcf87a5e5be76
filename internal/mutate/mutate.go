// Package mutate holds the ownership and membership operations issued
// against the external store. Each operation validates locally first, runs
// under an explicit timeout, and reports its effect only through the store's
// next snapshot; callers must not assume the mirror reflects a mutation
// until that snapshot arrives.
package mutate

import (
	"context"
	"strings"
	"time"

	"gearbag/internal/model"
	"gearbag/internal/store"
)

// OpTimeout bounds every store round-trip. A stalled call errors out and is
// surfaced for retry instead of leaving the UI disabled forever.
const OpTimeout = 10 * time.Second

type JoinOptions struct {
	Note string
	// Idempotent switches creation to a deterministic-key conditional write,
	// so two concurrent joins under the same new name converge on one
	// document. The default keeps the legacy check-then-create behavior,
	// which can duplicate under that race.
	Idempotent bool
}

type JoinResult struct {
	Item    model.Item
	Created bool
}

// Join adds the identity to the item named name, creating the item if no
// exact-name match exists.
func Join(ctx context.Context, st store.Store, userID, name, category string, opts JoinOptions) (JoinResult, error) {
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	category = strings.TrimSpace(category)
	if userID == "" {
		return JoinResult{}, InvalidInputError{Field: "identity", Reason: "sign in to add gear"}
	}
	if name == "" {
		return JoinResult{}, InvalidInputError{Field: "name", Reason: "must not be empty"}
	}
	if category == "" {
		return JoinResult{}, InvalidInputError{Field: "category", Reason: "must not be empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	if opts.Idempotent {
		return joinIdempotent(ctx, st, userID, name, category, opts.Note)
	}

	// Legacy flow: existence pre-check, then write. The check and the write
	// are not isolated; two concurrent joins under the same new name can both
	// observe "not found" and create duplicate documents.
	existing, err := st.QueryByName(ctx, name)
	if err != nil {
		return JoinResult{}, UnavailableError{Op: "join", Err: err}
	}
	if len(existing) > 0 {
		return joinExisting(ctx, st, userID, existing[0], opts.Note)
	}
	return createNew(ctx, st, func(it model.Item) (model.Item, bool, error) {
		created, err := st.Create(ctx, it)
		return created, err == nil, err
	}, userID, name, category, opts.Note)
}

func joinIdempotent(ctx context.Context, st store.Store, userID, name, category, note string) (JoinResult, error) {
	// Exact-name lookup first. Documents created through the legacy path
	// (including the demo fixtures) carry no dedupe key, so the conditional
	// create alone would duplicate them instead of joining them. The remaining
	// race window between this lookup and the create is closed by the dedupe
	// key below.
	existing, err := st.QueryByName(ctx, name)
	if err != nil {
		return JoinResult{}, UnavailableError{Op: "join", Err: err}
	}
	if len(existing) > 0 {
		return joinExisting(ctx, st, userID, existing[0], note)
	}

	key := store.NormalizeKey(name)
	res, err := createNew(ctx, st, func(it model.Item) (model.Item, bool, error) {
		return st.CreateWithKey(ctx, key, it)
	}, userID, name, category, note)
	if err != nil {
		return JoinResult{}, err
	}
	if res.Created {
		return res, nil
	}
	// Lost the creation race (or the item predates us): join the existing
	// document instead.
	return joinExisting(ctx, st, userID, res.Item, note)
}

func joinExisting(ctx context.Context, st store.Store, userID string, it model.Item, note string) (JoinResult, error) {
	if it.HasOwner(userID) {
		return JoinResult{}, ErrAlreadyMember
	}
	// Combined but not transactionally-verified pair: count bump and
	// membership add are separate document-level writes.
	if err := st.IncrementOwners(ctx, it.ID, 1); err != nil {
		return JoinResult{}, UnavailableError{Op: "join", Err: err}
	}
	if err := st.AddOwner(ctx, it.ID, userID); err != nil {
		return JoinResult{}, UnavailableError{Op: "join", Err: err}
	}
	if note != "" {
		if err := st.SetNote(ctx, it.ID, userID, note); err != nil {
			return JoinResult{}, UnavailableError{Op: "join", Err: err}
		}
	}
	appendEvent(ctx, st, userID, "item.join", it.ID)
	if updated, ok, err := st.Get(ctx, it.ID); err == nil && ok {
		it = updated
	}
	return JoinResult{Item: it, Created: false}, nil
}

func createNew(ctx context.Context, st store.Store, create func(model.Item) (model.Item, bool, error), userID, name, category, note string) (JoinResult, error) {
	it := model.Item{
		Name:      name,
		Category:  category,
		Owners:    1,
		OwnerIDs:  []string{userID},
		CreatedAt: time.Now().UTC(),
	}
	if note != "" {
		it.Notes = map[string]string{userID: note}
	}
	created, fresh, err := create(it)
	if err != nil {
		return JoinResult{}, UnavailableError{Op: "join", Err: err}
	}
	if fresh {
		appendEvent(ctx, st, userID, "item.create", created.ID)
	}
	return JoinResult{Item: created, Created: fresh}, nil
}

// Leave removes the identity from the item's membership set and decrements
// the owner count. The count never goes below zero; drifted documents are
// clamped by the store with a logged warning rather than crashing.
func Leave(ctx context.Context, st store.Store, userID, itemID string) (model.Item, error) {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)
	if userID == "" {
		return model.Item{}, InvalidInputError{Field: "identity", Reason: "sign in first"}
	}
	if itemID == "" {
		return model.Item{}, InvalidInputError{Field: "item", Reason: "missing item id"}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	it, ok, err := st.Get(ctx, itemID)
	if err != nil {
		return model.Item{}, UnavailableError{Op: "leave", Err: err}
	}
	if !ok {
		return model.Item{}, NotFoundError{Kind: "item", ID: itemID}
	}
	if !it.HasOwner(userID) {
		return model.Item{}, ErrNotMember
	}

	if err := st.RemoveOwner(ctx, itemID, userID); err != nil {
		return model.Item{}, UnavailableError{Op: "leave", Err: err}
	}
	if err := st.IncrementOwners(ctx, itemID, -1); err != nil {
		return model.Item{}, UnavailableError{Op: "leave", Err: err}
	}
	appendEvent(ctx, st, userID, "item.leave", itemID)
	if updated, ok, err := st.Get(ctx, itemID); err == nil && ok {
		it = updated
	}
	return it, nil
}

// Annotate sets the identity's private note on an item. Membership is not
// required and owner counts are untouched.
func Annotate(ctx context.Context, st store.Store, userID, itemID, text string) error {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)
	if userID == "" {
		return InvalidInputError{Field: "identity", Reason: "sign in first"}
	}
	if itemID == "" {
		return InvalidInputError{Field: "item", Reason: "missing item id"}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	_, ok, err := st.Get(ctx, itemID)
	if err != nil {
		return UnavailableError{Op: "annotate", Err: err}
	}
	if !ok {
		return NotFoundError{Kind: "item", ID: itemID}
	}
	if err := st.SetNote(ctx, itemID, userID, text); err != nil {
		return UnavailableError{Op: "annotate", Err: err}
	}
	appendEvent(ctx, st, userID, "item.note", itemID)
	return nil
}

// SeedDemoData bulk-inserts the demo fixtures. NOT idempotent: calling it
// twice duplicates the fixtures. Callers gate it behind an explicit
// empty-collection + dev-environment check.
func SeedDemoData(ctx context.Context, st store.Store) error {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	for _, it := range store.DemoFixtures(time.Now().UTC()) {
		if _, err := st.Create(ctx, it); err != nil {
			return UnavailableError{Op: "seed", Err: err}
		}
	}
	appendEvent(ctx, st, "system", "seed", "")
	return nil
}

// appendEvent is audit-only and best-effort; a failed append never fails the
// mutation it follows.
func appendEvent(ctx context.Context, st store.Store, userID, typ, itemID string) {
	_ = st.AppendEvent(ctx, model.Event{UserID: userID, Type: typ, ItemID: itemID})
}
