package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"gearbag/internal/model"

	_ "modernc.org/sqlite"
)

const sqliteFileName = "gear.sqlite"

// SQLite is the local-first backend: a single-file collection plus an
// in-process hub that fans a fresh full snapshot out to subscribers after
// every successful mutation. It is also what `gearbag serve` hosts for
// remote clients.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger

	mu      sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

func OpenSQLite(dir string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", filepath.Join(dir, sqliteFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s := &SQLite{db: db, log: log, subs: map[int]chan Snapshot{}}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	// Flag count/membership drift once at open. Legacy and seeded documents
	// carry an owner count without individual memberships; that is tolerated,
	// not repaired.
	if items, err := s.Items(context.Background()); err == nil {
		if drifted := model.DriftedIDs(items); len(drifted) > 0 {
			s.log.Warn("owner count disagrees with membership set",
				zap.Strings("items", drifted))
		}
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gear (
			id TEXT PRIMARY KEY,
			dedupe_key TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			owners INTEGER NOT NULL,
			json TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_gear_dedupe ON gear(dedupe_key) WHERE dedupe_key <> '';`,
		`CREATE INDEX IF NOT EXISTS idx_gear_name ON gear(name);`,
		`CREATE INDEX IF NOT EXISTS idx_gear_category ON gear(category);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			ts_unixms INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			item_id TEXT NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_unixms);`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
	}
	s.mu.Unlock()
	return s.db.Close()
}

// Subscribe registers a snapshot channel. The current snapshot is delivered
// immediately; afterwards every successful mutation pushes a fresh one.
// Slow consumers only ever see the latest snapshot (buffer of one, older
// pending snapshots are replaced).
func (s *SQLite) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, ErrUnavailable
	}
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- Snapshot{Items: items}
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel, nil
}

// notify pushes a fresh snapshot to every subscriber. A load failure is
// delivered as a terminal Snapshot.Err so consumers can keep stale data
// visible while surfacing the problem.
func (s *SQLite) notify() {
	snap := Snapshot{}
	items, err := s.Items(context.Background())
	if err != nil {
		s.log.Error("snapshot load failed", zap.Error(err))
		snap.Err = err
	} else {
		snap.Items = items
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch: // drop the stale pending snapshot
		default:
		}
		ch <- snap
	}
}

func (s *SQLite) Items(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json FROM gear ORDER BY created_at_unixms, rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		var it model.Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (model.Item, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT json FROM gear WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, false, nil
	}
	if err != nil {
		return model.Item{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var it model.Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return model.Item{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return it, true, nil
}

func (s *SQLite) QueryByName(ctx context.Context, name string) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json FROM gear WHERE name = ? ORDER BY created_at_unixms, rowid`, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		var it model.Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SQLite) Create(ctx context.Context, it model.Item) (model.Item, error) {
	return s.insert(ctx, "", it)
}

func (s *SQLite) CreateWithKey(ctx context.Context, key string, it model.Item) (model.Item, bool, error) {
	if key == "" {
		created, err := s.insert(ctx, "", it)
		return created, err == nil, err
	}
	created, err := s.insert(ctx, key, it)
	if err == nil {
		return created, true, nil
	}
	// The dedupe index rejected the insert: someone else created the document
	// first. Return theirs.
	existing, ok, gerr := s.getByKey(ctx, key)
	if gerr == nil && ok {
		return existing, false, nil
	}
	return model.Item{}, false, err
}

func (s *SQLite) insert(ctx context.Context, key string, it model.Item) (model.Item, error) {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	if it.OwnerIDs == nil {
		it.OwnerIDs = []string{}
	}

	for attempt := 0; attempt < 5; attempt++ {
		if it.ID == "" {
			id, err := newRandomID("gear")
			if err != nil {
				return model.Item{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			it.ID = id
		}
		raw, err := json.Marshal(it)
		if err != nil {
			return model.Item{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO gear (id, dedupe_key, name, category, owners, json, created_at_unixms, updated_at_unixms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, key, it.Name, it.Category, it.Owners, string(raw),
			it.CreatedAt.UnixMilli(), time.Now().UTC().UnixMilli())
		if err == nil {
			s.notify()
			return it, nil
		}
		if key != "" {
			// Could be the dedupe index, not an id collision; let the caller
			// resolve it.
			return model.Item{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		// Assume id collision and retry with a fresh id.
		it.ID = ""
	}
	return model.Item{}, fmt.Errorf("%w: could not allocate item id", ErrUnavailable)
}

func (s *SQLite) getByKey(ctx context.Context, key string) (model.Item, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT json FROM gear WHERE dedupe_key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, false, nil
	}
	if err != nil {
		return model.Item{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var it model.Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return model.Item{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return it, true, nil
}

// mutateDoc applies fn to a single document inside a transaction. This is
// the "atomic per document" guarantee; nothing spans documents.
func (s *SQLite) mutateDoc(ctx context.Context, itemID string, fn func(*model.Item)) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT json FROM gear WHERE id = ?`, itemID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: item %s vanished", ErrUnavailable, itemID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var it model.Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	fn(&it)

	out, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE gear SET name = ?, category = ?, owners = ?, json = ?, updated_at_unixms = ? WHERE id = ?`,
		it.Name, it.Category, it.Owners, string(out), time.Now().UTC().UnixMilli(), itemID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.notify()
	return nil
}

func (s *SQLite) IncrementOwners(ctx context.Context, itemID string, delta int) error {
	return s.mutateDoc(ctx, itemID, func(it *model.Item) {
		n := it.Owners + delta
		if n < 0 {
			// Drifted document: membership emptied before the count did.
			// Clamp instead of going negative.
			s.log.Warn("owner count would go negative; clamping at zero",
				zap.String("item", itemID),
				zap.Int("owners", it.Owners),
				zap.Int("delta", delta))
			n = 0
		}
		it.Owners = n
	})
}

func (s *SQLite) AddOwner(ctx context.Context, itemID, userID string) error {
	return s.mutateDoc(ctx, itemID, func(it *model.Item) {
		if it.HasOwner(userID) {
			return
		}
		it.OwnerIDs = append(it.OwnerIDs, userID)
	})
}

func (s *SQLite) RemoveOwner(ctx context.Context, itemID, userID string) error {
	return s.mutateDoc(ctx, itemID, func(it *model.Item) {
		out := it.OwnerIDs[:0]
		for _, id := range it.OwnerIDs {
			if id != userID {
				out = append(out, id)
			}
		}
		it.OwnerIDs = out
	})
}

func (s *SQLite) SetNote(ctx context.Context, itemID, userID, text string) error {
	return s.mutateDoc(ctx, itemID, func(it *model.Item) {
		if it.Notes == nil {
			it.Notes = map[string]string{}
		}
		it.Notes[userID] = text
	})
}

func (s *SQLite) AppendEvent(ctx context.Context, ev model.Event) error {
	if ev.ID == "" {
		id, err := newRandomID("evt")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		ev.ID = id
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, ts_unixms, user_id, type, item_id, json) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TS.UnixMilli(), ev.UserID, ev.Type, ev.ItemID, string(raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) Events(ctx context.Context, limit int) ([]model.Event, error) {
	q := `SELECT json FROM events ORDER BY ts_unixms, rowid`
	args := []any{}
	if limit > 0 {
		// Tail window, returned oldest-first. rowid breaks same-millisecond
		// ties in insertion order.
		q = `SELECT json FROM (
			SELECT json, ts_unixms, rowid AS rid FROM events ORDER BY ts_unixms DESC, rowid DESC LIMIT ?
		) ORDER BY ts_unixms, rid`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		var ev model.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
