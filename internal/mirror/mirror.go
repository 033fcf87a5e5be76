// Package mirror keeps a local, continuously-replaced copy of the remote
// collection. Every upstream notification replaces the whole snapshot; there
// is no incremental patching. A failed feed never clears the mirror: the
// prior items stay visible and the error is surfaced alongside them.
package mirror

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gearbag/internal/model"
	"gearbag/internal/store"
	"gearbag/internal/view"
)

type Mirror struct {
	log *zap.Logger

	mu      sync.RWMutex
	items   []model.Item
	loaded  bool
	feedErr error
	changed chan struct{}
}

func New(log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{log: log, changed: make(chan struct{})}
}

// Run subscribes to the store and replaces the snapshot until ctx ends or
// the feed closes. Blocking; run it on its own goroutine.
func (m *Mirror) Run(ctx context.Context, st store.Store) error {
	ch, cancel, err := st.Subscribe(ctx)
	if err != nil {
		m.setErr(err)
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			if snap.Err != nil {
				// Fail open: keep the stale snapshot visible.
				m.log.Warn("feed error; keeping stale snapshot", zap.Error(snap.Err))
				m.setErr(snap.Err)
				continue
			}
			m.replace(snap.Items)
		}
	}
}

func (m *Mirror) replace(items []model.Item) {
	m.mu.Lock()
	m.items = items
	m.loaded = true
	m.feedErr = nil
	prev := m.changed
	m.changed = make(chan struct{})
	m.mu.Unlock()
	close(prev)
}

func (m *Mirror) setErr(err error) {
	m.mu.Lock()
	m.feedErr = err
	prev := m.changed
	m.changed = make(chan struct{})
	m.mu.Unlock()
	close(prev)
}

// Snapshot returns the current items and the loading sentinel. Loaded stays
// false until the first snapshot has arrived, so "still loading" is
// distinguishable from "loaded but empty".
func (m *Mirror) Snapshot() view.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view.Snapshot{Items: m.items, Loaded: m.loaded}
}

// Err returns the last feed error, if the feed is currently failing.
func (m *Mirror) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feedErr
}

// Changed returns a channel closed on the next snapshot replacement or feed
// error. Grab it, wait on it, then re-read Snapshot.
func (m *Mirror) Changed() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changed
}
