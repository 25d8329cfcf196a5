package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/calmirror/calmirror/internal/event"
	"github.com/calmirror/calmirror/internal/log"
)

// SQLite persists event documents as JSON with the filterable keys extracted
// into indexed columns. It also carries the OAuth tokens and the registry of
// mirrored calendars, so one file holds the whole mirror state.
type SQLite struct {
	db *sql.DB
	q  querier
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	s := &SQLite{db: db, q: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM db_version WHERE name='calmirror'").Scan(&version)
	if err != nil {
		if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS db_version (
			name TEXT PRIMARY KEY,
			version INTEGER
		)`); err != nil {
			return fmt.Errorf("creating db_version table: %w", err)
		}
		if _, err := s.db.Exec(`INSERT INTO db_version (name, version) VALUES ('calmirror', 0)`); err != nil {
			return fmt.Errorf("initializing db_version table: %w", err)
		}
		version = 0
	}

	if version == 0 {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS events (
				id TEXT PRIMARY KEY,
				user TEXT NOT NULL,
				calendar TEXT NOT NULL DEFAULT '',
				gevent_id TEXT NOT NULL DEFAULT '',
				base_id TEXT NOT NULL DEFAULT '',
				start_unix INTEGER NOT NULL DEFAULT 0,
				doc TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS events_provider_key
				ON events (user, calendar, gevent_id) WHERE gevent_id != ''`,
			`CREATE INDEX IF NOT EXISTS events_base ON events (user, base_id)`,
			`CREATE TABLE IF NOT EXISTS tokens (
				account_name TEXT PRIMARY KEY,
				token TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS calendars (
				user TEXT,
				calendar_id TEXT,
				sync_token TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (user, calendar_id)
			)`,
		}
		for _, stmt := range stmts {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("migrating to version 1: %w", err)
			}
		}
		if _, err := s.db.Exec(`UPDATE db_version SET version = 1 WHERE name = 'calmirror'`); err != nil {
			return fmt.Errorf("updating db_version table: %w", err)
		}
	}

	return nil
}

func whereClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if f.ID != "" {
		add("id = ?", f.ID)
	}
	if f.User != "" {
		add("user = ?", f.User)
	}
	if f.Calendar != "" {
		add("calendar = ?", f.Calendar)
	}
	if f.GEventID != "" {
		add("gevent_id = ?", f.GEventID)
	}
	if f.BaseID != "" {
		add("base_id = ?", f.BaseID)
	}
	if !f.StartOnOrAfter.IsZero() {
		add("start_unix >= ?", f.StartOnOrAfter.Unix())
	}
	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

func (s *SQLite) Find(ctx context.Context, f Filter) ([]event.Event, error) {
	where, args := whereClause(f)
	rows, err := s.q.QueryContext(ctx,
		"SELECT doc FROM events WHERE "+where+" ORDER BY start_unix, id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var ev event.Event
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			return nil, fmt.Errorf("decoding event document: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLite) FindOne(ctx context.Context, f Filter) (*event.Event, error) {
	where, args := whereClause(f)
	var doc string
	err := s.q.QueryRowContext(ctx,
		"SELECT doc FROM events WHERE "+where+" ORDER BY start_unix, id LIMIT 1", args...).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ev event.Event
	if err := json.Unmarshal([]byte(doc), &ev); err != nil {
		return nil, fmt.Errorf("decoding event document: %w", err)
	}
	return &ev, nil
}

func (s *SQLite) insertOne(ctx context.Context, ev event.Event) (bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	doc, err := json.Marshal(ev)
	if err != nil {
		return false, err
	}
	res, err := s.q.ExecContext(ctx, `INSERT OR IGNORE INTO events
		(id, user, calendar, gevent_id, base_id, start_unix, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.User, ev.Calendar, ev.GEventID, ev.BaseID(), startUnix(ev.StartDate), string(doc))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) InsertMany(ctx context.Context, evs []event.Event) (int, error) {
	inserted := 0
	for _, ev := range evs {
		ok, err := s.insertOne(ctx, ev)
		if err != nil {
			return inserted, err
		}
		if !ok {
			log.Debugf("skipping duplicate event", "gEventId", ev.GEventID, "user", ev.User)
			continue
		}
		inserted++
	}
	return inserted, nil
}

func (s *SQLite) UpsertOne(ctx context.Context, f Filter, ev event.Event) (bool, error) {
	existing, err := s.FindOne(ctx, f)
	if err != nil && err != ErrNotFound {
		return false, err
	}
	if existing == nil {
		ok, err := s.insertOne(ctx, ev)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("upsert race on event %s", ev.GEventID)
		}
		return true, nil
	}

	ev.ID = existing.ID
	return false, s.writeDoc(ctx, ev)
}

func (s *SQLite) UpdateOne(ctx context.Context, f Filter, fn func(*event.Event)) (*event.Event, error) {
	ev, err := s.FindOne(ctx, f)
	if err != nil {
		return nil, err
	}
	fn(ev)
	if err := s.writeDoc(ctx, *ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *SQLite) writeDoc(ctx context.Context, ev event.Event) error {
	doc, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `UPDATE events
		SET user = ?, calendar = ?, gevent_id = ?, base_id = ?, start_unix = ?, doc = ?
		WHERE id = ?`,
		ev.User, ev.Calendar, ev.GEventID, ev.BaseID(), startUnix(ev.StartDate), string(doc), ev.ID)
	return err
}

func (s *SQLite) DeleteOne(ctx context.Context, f Filter) (int64, error) {
	where, args := whereClause(f)
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM events WHERE id IN (SELECT id FROM events WHERE "+where+" LIMIT 1)", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	where, args := whereClause(f)
	res, err := s.q.ExecContext(ctx, "DELETE FROM events WHERE "+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) WithSession(ctx context.Context, fn func(s EventStore) error) error {
	// Nested sessions just reuse the enclosing transaction.
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&SQLite{db: s.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Calendar is one mirrored provider calendar and its incremental sync token.
type Calendar struct {
	User      string
	ID        string
	SyncToken string
}

func (s *SQLite) AddCalendar(ctx context.Context, user, calendarID string) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO calendars (user, calendar_id) VALUES (?, ?)", user, calendarID)
	return err
}

func (s *SQLite) RemoveCalendar(ctx context.Context, user, calendarID string) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM calendars WHERE user = ? AND calendar_id = ?", user, calendarID)
	return err
}

func (s *SQLite) Calendars(ctx context.Context) ([]Calendar, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT user, calendar_id, sync_token FROM calendars ORDER BY user, calendar_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Calendar
	for rows.Next() {
		var c Calendar
		if err := rows.Scan(&c.User, &c.ID, &c.SyncToken); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) SetSyncToken(ctx context.Context, user, calendarID, token string) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE calendars SET sync_token = ? WHERE user = ? AND calendar_id = ?", token, user, calendarID)
	return err
}

func (s *SQLite) SaveToken(ctx context.Context, account string, token []byte) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT OR REPLACE INTO tokens (account_name, token) VALUES (?, ?)", account, string(token))
	return err
}

func (s *SQLite) Token(ctx context.Context, account string) ([]byte, error) {
	var token string
	err := s.q.QueryRowContext(ctx,
		"SELECT token FROM tokens WHERE account_name = ?", account).Scan(&token)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(token), nil
}
