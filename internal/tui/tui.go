package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"gearbag/internal/mirror"
	"gearbag/internal/store"
)

// Run starts the interactive client. Feed problems are both logged through
// log and shown in the footer; stderr is not an option while the alt screen
// is up, so callers pass a file-backed logger.
func Run(st store.Store, identity string, dev bool, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mir := mirror.New(log)
	go func() { _ = mir.Run(ctx, st) }()

	m := newAppModel(st, mir, identity, dev)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
