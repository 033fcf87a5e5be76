// Package view holds the pure derivation engine: given one snapshot of the
// shared collection, the viewer's identity, and the current view selection,
// it computes exactly what a presentation layer should render. It never
// talks to the store and never mutates its inputs.
package view

import (
	"sort"
	"strings"

	"gearbag/internal/model"
)

// Snapshot is the engine's input collection. Loaded distinguishes a feed
// that has not delivered yet from a genuinely empty collection; both render
// as "no items", but only the latter is a terminal state (and the only one
// where seeding is offered).
type Snapshot struct {
	Items  []model.Item
	Loaded bool
}

// Summary is computed from the context set, never from the narrower display
// set, so the stat line shows context-wide totals while drilling into a
// category or searching.
type Summary struct {
	TotalItems      int `json:"totalItems"`
	TotalOwners     int `json:"totalOwners"`
	TotalCategories int `json:"totalCategories"`
}

// CategoryGroup is one (category, items) pair in first-occurrence order.
type CategoryGroup struct {
	Category string       `json:"category"`
	Items    []model.Item `json:"items"`
}

type Result struct {
	Loaded bool  `json:"loaded"`
	State  State `json:"state"`

	// ContextItems is the snapshot restricted to the active context.
	ContextItems []model.Item `json:"contextItems"`
	// DisplayItems is the context set further sorted/filtered for the active
	// mode. In categories mode it equals ContextItems and Groups carries the
	// grouping.
	DisplayItems []model.Item    `json:"displayItems"`
	Groups       []CategoryGroup `json:"groups,omitempty"`

	Summary Summary `json:"summary"`
}

// Derive computes the render state. It is pure: same inputs, same outputs,
// and snap.Items is never reordered or modified.
func Derive(snap Snapshot, identity string, st State) Result {
	st = st.Normalize(identity)
	res := Result{Loaded: snap.Loaded, State: st}
	if !snap.Loaded {
		return res
	}

	res.ContextItems = contextItems(snap.Items, identity, st.Context)
	res.Summary = summarize(res.ContextItems)

	switch st.Mode {
	case ModeCategories:
		res.DisplayItems = res.ContextItems
		res.Groups = groupByCategory(res.ContextItems)
	case ModeOwners:
		res.DisplayItems = sortedByOwners(res.ContextItems)
	default:
		res.DisplayItems = itemsDisplay(res.ContextItems, st)
	}
	return res
}

func contextItems(all []model.Item, identity string, ctx Context) []model.Item {
	if ctx == ContextHome {
		var out []model.Item
		for _, it := range all {
			if it.HasOwner(identity) {
				out = append(out, it)
			}
		}
		return out
	}
	return append([]model.Item(nil), all...)
}

func itemsDisplay(ctxItems []model.Item, st State) []model.Item {
	out := append([]model.Item(nil), ctxItems...)

	if st.Context == ContextHome {
		// Most recently added first; zero CreatedAt sorts last.
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Owners > out[j].Owners
		})
	}

	if st.SelectedCategory != "" {
		out = filterItems(out, func(it model.Item) bool {
			return it.Category == st.SelectedCategory
		})
	}
	if q := strings.ToLower(strings.TrimSpace(st.SearchText)); q != "" {
		out = filterItems(out, func(it model.Item) bool {
			return strings.Contains(strings.ToLower(it.Name), q) ||
				strings.Contains(strings.ToLower(it.Category), q)
		})
	}
	return out
}

// groupByCategory partitions items by exact category value, groups ordered by
// first occurrence. Every context item lands in exactly one group.
func groupByCategory(items []model.Item) []CategoryGroup {
	var groups []CategoryGroup
	index := map[string]int{}
	for _, it := range items {
		i, ok := index[it.Category]
		if !ok {
			i = len(groups)
			index[it.Category] = i
			groups = append(groups, CategoryGroup{Category: it.Category})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// sortedByOwners ranks by owner count, descending. Ties keep insertion order.
func sortedByOwners(items []model.Item) []model.Item {
	out := append([]model.Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Owners > out[j].Owners
	})
	return out
}

func summarize(items []model.Item) Summary {
	s := Summary{TotalItems: len(items)}
	cats := map[string]struct{}{}
	for _, it := range items {
		s.TotalOwners += it.Owners
		cats[it.Category] = struct{}{}
	}
	s.TotalCategories = len(cats)
	return s
}

func filterItems(items []model.Item, keep func(model.Item) bool) []model.Item {
	var out []model.Item
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
