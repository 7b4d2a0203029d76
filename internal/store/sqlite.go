package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bookmark-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bookmarks (
	id                     TEXT PRIMARY KEY,
	text                   TEXT NOT NULL DEFAULT '',
	author_name            TEXT NOT NULL DEFAULT '',
	author_handle          TEXT NOT NULL DEFAULT '',
	author_profile_picture TEXT NOT NULL DEFAULT '',
	posted_at              TEXT NOT NULL DEFAULT '',
	url                    TEXT NOT NULL DEFAULT '',
	media_url              TEXT NOT NULL DEFAULT '',
	category               TEXT NOT NULL DEFAULT 'Uncategorized',
	is_bookmarked          BOOLEAN NOT NULL DEFAULT 1,
	saved_at               DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	reason        TEXT NOT NULL DEFAULT '',
	cycles        INTEGER NOT NULL DEFAULT 0,
	found         INTEGER NOT NULL DEFAULT 0,
	synced        INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	sync_failures INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_bookmarks_category ON bookmarks(category);
CREATE INDEX IF NOT EXISTS idx_bookmarks_saved_at ON bookmarks(saved_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "sqlite: get state %s", key)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetState(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin set state")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, key := range sortedKeys(values) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, values[key], now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: set state %s", key)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit set state")
}

func (s *SQLiteStore) DeleteState(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key IN (`+placeholders+`)`, args...)
	return eris.Wrap(err, "sqlite: delete state")
}

// --- Bookmarks ---

// AppendBookmarks inserts identified records and returns how many were
// new. Ids already stored keep their first record. Unidentified records
// are ignored.
func (s *SQLiteStore) AppendBookmarks(ctx context.Context, records []model.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin append bookmarks")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO bookmarks (
		id, text, author_name, author_handle, author_profile_picture,
		posted_at, url, media_url, category, is_bookmarked, saved_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare append bookmarks")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	written := 0
	for _, r := range records {
		if !r.Identified() {
			continue
		}
		res, err := stmt.ExecContext(ctx, append(recordValues(r), now)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert bookmark %s", r.ID)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit append bookmarks")
	}
	return written, nil
}

func (s *SQLiteStore) ListBookmarks(ctx context.Context, filter BookmarkFilter) ([]model.Record, error) {
	query := selectRecords() + ` WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY saved_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list bookmarks")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Record
	for rows.Next() {
		r, err := scanBookmark(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bookmark")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list bookmarks iterate")
}

func (s *SQLiteStore) BookmarkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM bookmarks`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: bookmark ids")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bookmark id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: bookmark ids iterate")
}

// --- Runs ---

// CreateRun inserts run, assigning an id and start time when unset.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Mode, string(run.Status), run.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, reason = ?, cycles = ?, found = ?, synced = ?,
		 skipped = ?, sync_failures = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), run.Reason, run.Cycles, run.Found, run.Synced,
		run.Skipped, run.SyncFailures, run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, mode, status, reason, cycles, found, synced, skipped, sync_failures,
		error, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Mode, &r.Status, &r.Reason, &r.Cycles, &r.Found,
			&r.Synced, &r.Skipped, &r.SyncFailures, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func prepareRun(run *model.Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
