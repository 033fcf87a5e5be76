// Package store defines the document-store surface the rest of the app is
// written against, and its backends. The surface mirrors what the hosted
// collection offers: a live full-snapshot feed, a one-shot name query, and
// single-document mutations. Nothing here is transactional across documents;
// the join flow's check-then-write race is handled (or accepted) a layer up.
package store

import (
	"context"
	"errors"
	"strings"

	"gearbag/internal/model"
)

// ErrUnavailable wraps backend failures so callers can classify them without
// knowing which backend is in use.
var ErrUnavailable = errors.New("store unavailable")

// Snapshot is one complete replica of the collection. A terminal subscription
// failure is delivered as a Snapshot with Err set; that is distinct from a
// loaded-but-empty collection (Items == nil, Err == nil).
type Snapshot struct {
	Items []model.Item
	Err   error
}

// Store is the external document store collaborator.
//
// Subscribe returns a channel of full snapshots: one immediately, then one
// per collection change, until cancel is called or ctx ends. Mutations are
// atomic per document only; their effect is observed through the next
// snapshot, not through the call's return value.
type Store interface {
	Subscribe(ctx context.Context) (<-chan Snapshot, func(), error)

	Items(ctx context.Context) ([]model.Item, error)
	Get(ctx context.Context, id string) (model.Item, bool, error)
	QueryByName(ctx context.Context, name string) ([]model.Item, error)

	Create(ctx context.Context, it model.Item) (model.Item, error)
	// CreateWithKey conditionally creates under a deterministic dedupe key.
	// When the key already exists the existing document is returned with
	// created=false; this makes creation idempotent under concurrent joins.
	CreateWithKey(ctx context.Context, key string, it model.Item) (model.Item, bool, error)

	IncrementOwners(ctx context.Context, itemID string, delta int) error
	AddOwner(ctx context.Context, itemID, userID string) error
	RemoveOwner(ctx context.Context, itemID, userID string) error
	SetNote(ctx context.Context, itemID, userID, text string) error

	AppendEvent(ctx context.Context, ev model.Event) error
	Events(ctx context.Context, limit int) ([]model.Event, error)

	Close() error
}

// NormalizeKey derives the deterministic dedupe key for an item name:
// lowercase, whitespace collapsed. Used by the idempotent create mode.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
