package model

import (
	"strings"
	"time"
)

// Item is one document in the shared gear collection.
//
// Membership is tracked in OwnerIDs; Owners is the stored popularity count
// shown in lists. The two should agree, but legacy/seeded documents carry a
// large Owners with an empty OwnerIDs, so readers must not assume equality
// (see Drifted).
type Item struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Owners   int               `json:"owners"`
	OwnerIDs []string          `json:"ownerIds"`
	Notes    map[string]string `json:"notes,omitempty"`

	// LegacyNote is the pre-Notes single shared annotation. Kept on the wire
	// for old documents; read through ResolvedNote.
	LegacyNote string `json:"note,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (it Item) HasOwner(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	for _, id := range it.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ResolvedNote returns the annotation to show a given viewer: their private
// note when present, otherwise the legacy shared note. Call sites never
// branch on which representation a document uses.
func (it Item) ResolvedNote(userID string) string {
	if userID != "" && it.Notes != nil {
		if n, ok := it.Notes[userID]; ok && n != "" {
			return n
		}
	}
	return it.LegacyNote
}

// Drifted reports whether the stored owner count disagrees with the
// membership set. Drift is flagged, never auto-corrected: seeded documents
// intentionally carry a count without individual memberships.
func (it Item) Drifted() bool {
	return it.Owners != len(it.OwnerIDs)
}

// DriftedIDs returns the ids of items whose owner count and membership set
// disagree, in input order.
func DriftedIDs(items []Item) []string {
	var out []string
	for _, it := range items {
		if it.Drifted() {
			out = append(out, it.ID)
		}
	}
	return out
}

// Clone returns a deep copy. Store and mirror hand items to multiple readers,
// so mutating code must work on copies.
func (it Item) Clone() Item {
	out := it
	if it.OwnerIDs != nil {
		out.OwnerIDs = append([]string(nil), it.OwnerIDs...)
	}
	if it.Notes != nil {
		out.Notes = make(map[string]string, len(it.Notes))
		for k, v := range it.Notes {
			out.Notes[k] = v
		}
	}
	return out
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// Event is one audit-log entry appended after a successful mutation.
type Event struct {
	ID      string    `json:"id"`
	TS      time.Time `json:"ts"`
	UserID  string    `json:"userId"`
	Type    string    `json:"type"`
	ItemID  string    `json:"itemId,omitempty"`
	Payload any       `json:"payload,omitempty"`
}
