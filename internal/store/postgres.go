package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bookmark-cli/internal/db"
	"github.com/sells-group/bookmark-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"get_state":    `SELECT value FROM state WHERE key = $1`,
	"set_state":    `INSERT INTO state (key, value, updated_at) VALUES ($1, $2, $3) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
	"bookmark_ids": `SELECT id FROM bookmarks`,
	"insert_run":   `INSERT INTO runs (id, mode, status, started_at) VALUES ($1, $2, $3, $4)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	is_bookmarked          BOOLEAN NOT NULL DEFAULT true,
	saved_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	mode          TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	reason        TEXT NOT NULL DEFAULT '',
	cycles        INTEGER NOT NULL DEFAULT 0,
	found         INTEGER NOT NULL DEFAULT 0,
	synced        INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	sync_failures INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_bookmarks_category ON bookmarks(category);
CREATE INDEX IF NOT EXISTS idx_bookmarks_saved_at ON bookmarks(saved_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- State ---

func (s *PostgresStore) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "postgres: get state %s", key)
	}
	return value, true, nil
}

func (s *PostgresStore) SetState(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin set state")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for _, key := range sortedKeys(values) {
		_, err := tx.Exec(ctx,
			`INSERT INTO state (key, value, updated_at) VALUES ($1, $2, $3)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			key, values[key], now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: set state %s", key)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit set state")
}

func (s *PostgresStore) DeleteState(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM state WHERE key = ANY($1)`, keys)
	return eris.Wrap(err, "postgres: delete state")
}

// --- Bookmarks ---

// AppendBookmarks inserts identified records through a COPY-staged bulk
// insert and returns how many were new. Ids already stored are left alone.
func (s *PostgresStore) AppendBookmarks(ctx context.Context, records []model.Record) (int, error) {
	now := time.Now().UTC()
	var rows [][]any
	for _, r := range records {
		if !r.Identified() {
			continue
		}
		rows = append(rows, append(recordValues(r), now))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "bookmarks",
		Columns:      append(append([]string{}, recordColumns...), "saved_at"),
		ConflictKeys: []string{"id"},
		InsertOnly:   true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append bookmarks")
	}
	return int(n), nil
}

func (s *PostgresStore) ListBookmarks(ctx context.Context, filter BookmarkFilter) ([]model.Record, error) {
	var where []string
	var args []any

	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	query := selectRecords()
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, listLimit(filter.Limit))
	query += " ORDER BY saved_at DESC, id LIMIT $" + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list bookmarks")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		r, err := scanBookmark(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan bookmark")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list bookmarks iterate")
}

func (s *PostgresStore) BookmarkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM bookmarks`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: bookmark ids")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return ids, eris.Wrap(err, "postgres: collect bookmark ids")
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, mode, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Mode, string(run.Status), run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, reason = $2, cycles = $3, found = $4, synced = $5,
		 skipped = $6, sync_failures = $7, error = $8, finished_at = $9 WHERE id = $10`,
		string(run.Status), run.Reason, run.Cycles, run.Found, run.Synced,
		run.Skipped, run.SyncFailures, run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, mode, status, reason, cycles, found, synced, skipped, sync_failures,
		error, started_at, finished_at FROM runs`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	args = append(args, listLimit(filter.Limit))
	query += ` ORDER BY started_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var finished *time.Time
		if err := rows.Scan(&r.ID, &r.Mode, &status, &r.Reason, &r.Cycles, &r.Found,
			&r.Synced, &r.Skipped, &r.SyncFailures, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if finished != nil {
			r.FinishedAt = *finished
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
