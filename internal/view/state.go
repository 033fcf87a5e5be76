package view

import "strings"

// Context is the top-level scope: the viewer's own bag vs the full shared
// catalog.
type Context string

const (
	ContextHome    Context = "home"
	ContextExplore Context = "explore"
)

// Mode is the secondary display mode within a context.
type Mode string

const (
	ModeItems      Mode = "items"
	ModeCategories Mode = "categories"
	ModeOwners     Mode = "owners"
)

// State is the ephemeral, process-local view selection. It is a plain value:
// renderers receive it, never mutate it in place, and derive everything
// through Derive.
type State struct {
	Context          Context `json:"context"`
	Mode             Mode    `json:"view"`
	SelectedCategory string  `json:"selectedCategory,omitempty"`
	SearchText       string  `json:"searchText,omitempty"`
}

// Normalize fills defaults and enforces the guest rule: without an identity
// the home context is unreachable and collapses to explore.
func (s State) Normalize(identity string) State {
	if s.Context != ContextHome && s.Context != ContextExplore {
		if identity != "" {
			s.Context = ContextHome
		} else {
			s.Context = ContextExplore
		}
	}
	if identity == "" {
		s.Context = ContextExplore
	}
	switch s.Mode {
	case ModeItems, ModeCategories, ModeOwners:
	default:
		s.Mode = ModeItems
	}
	s.SelectedCategory = strings.TrimSpace(s.SelectedCategory)
	return s
}

func ParseContext(s string) (Context, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home", "bag":
		return ContextHome, true
	case "explore", "directory", "":
		return ContextExplore, true
	default:
		return "", false
	}
}

func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "items", "":
		return ModeItems, true
	case "categories":
		return ModeCategories, true
	case "owners":
		return ModeOwners, true
	default:
		return "", false
	}
}
