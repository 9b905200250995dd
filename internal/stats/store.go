// Package stats keeps privacy-conscious usage statistics for the chat
// assistant. Widget IDs are stored hashed and message text is never stored.
package stats

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

type Kind string

const (
	KindMount   Kind = "mount"
	KindOpen    Kind = "open"
	KindClose   Kind = "close"
	KindSubmit  Kind = "submit"
	KindReply   Kind = "reply"
	KindUnmount Kind = "unmount"
)

type Summary struct {
	TotalEvents    int64          `json:"total_events"`
	UniqueWidgets  int64          `json:"unique_widgets"`
	EventsToday    int64          `json:"events_today"`
	EventsThisWeek int64          `json:"events_this_week"`
	ByKind         map[Kind]int64 `json:"by_kind"`
	RepliesByRule  map[int]int64  `json:"replies_by_rule"`
}

type Store struct {
	db     *sql.DB
	salt   string
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// Open opens (creating if needed) the SQLite database at path. Use ":memory:"
// for a throwaway store.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}

	salt, err := randomHex(16)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, salt: salt, logger: logger, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS widget_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		widget_hash TEXT NOT NULL,
		kind TEXT NOT NULL,
		rule INTEGER NOT NULL DEFAULT -1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_widget_events_created ON widget_events(created_at);
	CREATE INDEX IF NOT EXISTS idx_widget_events_kind ON widget_events(kind);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "init schema")
	}
	return nil
}

// Close waits for background writes started by RecordAsync, then closes the
// database.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
	return s.db.Close()
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate salt")
	}
	return hex.EncodeToString(b), nil
}

// hash is stable per process, so one widget counts once in UniqueWidgets.
func (s *Store) hash(id string) string {
	h := sha256.New()
	h.Write([]byte(id + s.salt))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (s *Store) Record(ctx context.Context, widgetID string, kind Kind, rule int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO widget_events (widget_hash, kind, rule, created_at)
		VALUES (?, ?, ?, ?)
	`, s.hash(widgetID), string(kind), rule, s.now().Unix())
	if err != nil {
		return errors.Wrapf(err, "record %s event", kind)
	}
	return nil
}

// RecordAsync records in the background; failures are only logged. Calls
// after Close are dropped.
func (s *Store) RecordAsync(widgetID string, kind Kind, rule int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug().Str("kind", string(kind)).Msg("stats store closed, dropping event")
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Record(ctx, widgetID, kind, rule); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record widget event")
		}
	}()
}

func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		ByKind:        make(map[Kind]int64),
		RepliesByRule: make(map[int]int64),
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT widget_hash) FROM widget_events`,
	).Scan(&sum.TotalEvents, &sum.UniqueWidgets); err != nil {
		return nil, errors.Wrap(err, "count events")
	}

	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM widget_events WHERE created_at >= ?`, startOfDay.Unix(),
	).Scan(&sum.EventsToday); err != nil {
		return nil, errors.Wrap(err, "count events today")
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM widget_events WHERE created_at >= ?`, now.Add(-7*24*time.Hour).Unix(),
	).Scan(&sum.EventsThisWeek); err != nil {
		return nil, errors.Wrap(err, "count events this week")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM widget_events GROUP BY kind`)
	if err != nil {
		return nil, errors.Wrap(err, "count by kind")
	}
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan kind count")
		}
		sum.ByKind[Kind(k)] = n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "iterate kind counts")
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT rule, COUNT(*) FROM widget_events WHERE kind = ? GROUP BY rule`, string(KindReply))
	if err != nil {
		return nil, errors.Wrap(err, "count by rule")
	}
	defer rows.Close()
	for rows.Next() {
		var rule int
		var n int64
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, errors.Wrap(err, "scan rule count")
		}
		sum.RepliesByRule[rule] = n
	}
	return sum, rows.Err()
}

// Prune deletes events older than the given age and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM widget_events WHERE created_at < ?`, s.now().Add(-olderThan).Unix())
	if err != nil {
		return 0, errors.Wrap(err, "prune events")
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("rows", n).Msg("pruned old widget events")
	}
	return n, nil
}
