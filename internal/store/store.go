// Package store archives finalized editions and their edit logs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/roundup/internal/model"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Edition is the archived header of one finalized edition.
type Edition struct {
	ID          string
	SessionID   string
	FinalizedAt time.Time
	Placed      int
	Skipped     int
	Ops         int
}

// PlacedGroup is one group as it appeared in an archived edition.
type PlacedGroup struct {
	Section    model.Section
	Position   int
	GroupID    string
	Headline   string
	Sources    []string
	URLs       []string
	Outlets    int
	Confidence float64
	Tags       []string
	Degraded   bool
}

// ListOptions filters ListEditions. Zero values mean no filter.
type ListOptions struct {
	Limit int
	Since time.Time
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
// Times are stored as unix milliseconds.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS editions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		finalized_at INTEGER NOT NULL,
		placed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		ops INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_editions_finalized ON editions(finalized_at DESC);

	CREATE TABLE IF NOT EXISTS edition_groups (
		edition_id TEXT NOT NULL REFERENCES editions(id),
		section TEXT NOT NULL,
		position INTEGER NOT NULL,
		group_id TEXT NOT NULL,
		headline TEXT NOT NULL,
		sources TEXT NOT NULL,
		urls TEXT NOT NULL,
		outlets INTEGER NOT NULL,
		confidence REAL NOT NULL,
		tags TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (edition_id, group_id)
	);

	CREATE TABLE IF NOT EXISTS edition_ops (
		edition_id TEXT NOT NULL REFERENCES editions(id),
		seq INTEGER NOT NULL,
		op_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		targets TEXT NOT NULL,
		from_section TEXT,
		to_section TEXT,
		from_index INTEGER,
		to_index INTEGER,
		merged TEXT,
		reverts TEXT,
		command TEXT,
		at INTEGER NOT NULL,
		PRIMARY KEY (edition_id, seq)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Publish archives an edition with its placed groups and operation log in
// one transaction. It satisfies the edit session's publisher.
// Thread-safe: acquires write lock.
func (s *Store) Publish(ctx context.Context, e model.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Draft == nil {
		return fmt.Errorf("archive edition %s: no draft", e.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	live := e.Draft.Live()
	skipped := e.Draft.Count(model.SectionSkip)
	if _, err := sq.Insert("editions").
		Columns("id", "session_id", "finalized_at", "placed", "skipped", "ops").
		Values(e.ID, e.SessionID, e.FinalizedAt.UnixMilli(), len(live)-skipped, skipped, len(e.Ops)).
		RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("insert edition: %w", err)
	}

	if len(live) > 0 {
		ins := sq.Insert("edition_groups").Columns(
			"edition_id", "section", "position", "group_id", "headline",
			"sources", "urls", "outlets", "confidence", "tags", "degraded")
		for _, sec := range e.Draft.Sections() {
			for i, g := range e.Draft.Groups(sec) {
				urls := make([]string, 0, len(g.Members))
				for _, m := range g.Members {
					urls = append(urls, m.CanonicalURL)
				}
				ins = ins.Values(e.ID, string(sec), i, g.ID, g.RepresentativeHeadline,
					encodeList(g.Sources()), encodeList(urls), g.OutletCount(),
					g.Class.Confidence, encodeList(g.Class.ReasonTags), boolToInt(g.Class.Degraded))
			}
		}
		if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert groups: %w", err)
		}
	}

	if len(e.Ops) > 0 {
		ins := sq.Insert("edition_ops").Columns(
			"edition_id", "seq", "op_id", "kind", "targets", "from_section", "to_section",
			"from_index", "to_index", "merged", "reverts", "command", "at")
		for i, op := range e.Ops {
			ins = ins.Values(e.ID, i, op.ID, string(op.Kind), encodeList(op.Targets),
				string(op.From), string(op.To), op.FromIndex, op.ToIndex,
				op.Merged, op.Reverts, op.Command, op.At.UnixMilli())
		}
		if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert ops: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListEditions returns archived editions, newest first.
// Thread-safe: acquires read lock.
func (s *Store) ListEditions(ctx context.Context, opts ListOptions) ([]Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := sq.Select("id", "session_id", "finalized_at", "placed", "skipped", "ops").
		From("editions").
		OrderBy("finalized_at DESC", "id")
	if !opts.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"finalized_at": opts.Since.UnixMilli()})
	}
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query editions: %w", err)
	}
	defer rows.Close()

	var out []Edition
	for rows.Next() {
		var e Edition
		var at int64
		if err := rows.Scan(&e.ID, &e.SessionID, &at, &e.Placed, &e.Skipped, &e.Ops); err != nil {
			return nil, fmt.Errorf("scan edition: %w", err)
		}
		e.FinalizedAt = time.UnixMilli(at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Groups returns the placed groups of an edition in section order as
// archived, skip included.
// Thread-safe: acquires read lock.
func (s *Store) Groups(ctx context.Context, editionID string) ([]PlacedGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := sq.Select("section", "position", "group_id", "headline", "sources", "urls",
		"outlets", "confidence", "tags", "degraded").
		From("edition_groups").
		Where(sq.Eq{"edition_id": editionID}).
		OrderBy("rowid").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var out []PlacedGroup
	for rows.Next() {
		var g PlacedGroup
		var sec, sources, urls, tags string
		var degraded int
		if err := rows.Scan(&sec, &g.Position, &g.GroupID, &g.Headline, &sources, &urls,
			&g.Outlets, &g.Confidence, &tags, &degraded); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.Section = model.Section(sec)
		g.Sources = decodeList(sources)
		g.URLs = decodeList(urls)
		g.Tags = decodeList(tags)
		g.Degraded = degraded != 0
		out = append(out, g)
	}
	return out, rows.Err()
}

// Ops returns an edition's operation log in order.
// Thread-safe: acquires read lock.
func (s *Store) Ops(ctx context.Context, editionID string) ([]model.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := sq.Select("op_id", "kind", "targets", "from_section", "to_section",
		"from_index", "to_index", "merged", "reverts", "command", "at").
		From("edition_ops").
		Where(sq.Eq{"edition_id": editionID}).
		OrderBy("seq").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query ops: %w", err)
	}
	defer rows.Close()

	var out []model.Operation
	for rows.Next() {
		var op model.Operation
		var kind, targets, from, to string
		var at int64
		if err := rows.Scan(&op.ID, &kind, &targets, &from, &to, &op.FromIndex, &op.ToIndex,
			&op.Merged, &op.Reverts, &op.Command, &at); err != nil {
			return nil, fmt.Errorf("scan op: %w", err)
		}
		op.Kind = model.OpKind(kind)
		op.Targets = decodeList(targets)
		op.From, op.To = model.Section(from), model.Section(to)
		op.At = time.UnixMilli(at).UTC()
		out = append(out, op)
	}
	return out, rows.Err()
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
