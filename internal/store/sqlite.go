package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteDB implements DB on a single SQLite file.
type SQLiteDB struct {
	db *sql.DB
}

var _ DB = (*SQLiteDB)(nil)

// NewSQLiteDB opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite is not concurrent for writes, and each :memory: connection
	// would be its own database.
	db.SetMaxOpenConns(1)

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate creates the schema.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			server_seed_hash TEXT NOT NULL DEFAULT '',
			client_seed TEXT NOT NULL DEFAULT '',
			samples INTEGER NOT NULL,
			configurations INTEGER NOT NULL,
			saw_sum REAL NOT NULL,
			saw_mean REAL NOT NULL,
			saw_min REAL NOT NULL,
			saw_max REAL NOT NULL,
			total_trials INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			engine_version TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_rows (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			simple_sum REAL NOT NULL,
			simple_mean REAL NOT NULL,
			simple_min REAL NOT NULL,
			simple_max REAL NOT NULL,
			nonrev_sum REAL NOT NULL,
			nonrev_mean REAL NOT NULL,
			nonrev_min REAL NOT NULL,
			nonrev_max REAL NOT NULL,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_client_seed ON runs(client_seed, created_at DESC)`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return tx.Commit()
}

// SaveRun inserts a run and its rows in one transaction, assigning an id and
// creation time when they are unset.
func (s *SQLiteDB) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, server_seed_hash, client_seed, samples, configurations,
		saw_sum, saw_mean, saw_min, saw_max,
		total_trials, duration_ms, engine_version, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ServerSeedHash, run.ClientSeed, run.Samples, run.Configurations,
		run.SAW.Sum, run.SAW.Mean, run.SAW.Min, run.SAW.Max,
		int64(run.TotalTrials), run.DurationMs, run.EngineVersion, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_rows (
		run_id, position, steps,
		simple_sum, simple_mean, simple_min, simple_max,
		nonrev_sum, nonrev_mean, nonrev_min, nonrev_max
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range run.Rows {
		row := &run.Rows[i]
		row.RunID = run.ID
		_, err := stmt.ExecContext(ctx,
			row.RunID, row.Position, row.Steps,
			row.Simple.Sum, row.Simple.Mean, row.Simple.Min, row.Simple.Max,
			row.NonReversing.Sum, row.NonReversing.Mean, row.NonReversing.Min, row.NonReversing.Max,
		)
		if err != nil {
			return fmt.Errorf("failed to insert row %d: %w", row.Position, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, server_seed_hash, client_seed, samples, configurations,
	saw_sum, saw_mean, saw_min, saw_max,
	total_trials, duration_ms, engine_version, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var trials int64
	err := sc.Scan(
		&run.ID, &run.ServerSeedHash, &run.ClientSeed, &run.Samples, &run.Configurations,
		&run.SAW.Sum, &run.SAW.Mean, &run.SAW.Min, &run.SAW.Max,
		&trials, &run.DurationMs, &run.EngineVersion, &run.CreatedAt,
	)
	run.TotalTrials = uint64(trials)
	return run, err
}

// GetRun retrieves a run and its rows by id.
func (s *SQLiteDB) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Rows, err = s.GetRunRows(ctx, id)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRunRows returns the rows of a run in emitted order.
func (s *SQLiteDB) GetRunRows(ctx context.Context, runID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		run_id, position, steps,
		simple_sum, simple_mean, simple_min, simple_max,
		nonrev_sum, nonrev_mean, nonrev_min, nonrev_max
		FROM run_rows WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		err := rows.Scan(
			&r.RunID, &r.Position, &r.Steps,
			&r.Simple.Sum, &r.Simple.Mean, &r.Simple.Min, &r.Simple.Max,
			&r.NonReversing.Sum, &r.NonReversing.Mean, &r.NonReversing.Min, &r.NonReversing.Max,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// ListRuns returns a page of runs, newest first, without their rows.
func (s *SQLiteDB) ListRuns(ctx context.Context, query RunsQuery) (*RunsList, error) {
	where := ""
	args := []any{}
	if query.ClientSeed != "" {
		where = "WHERE client_seed = ?"
		args = append(args, query.ClientSeed)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	if query.PerPage <= 0 {
		query.PerPage = 50
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	offset := (query.Page - 1) * query.PerPage

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs `+where+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, append(args, query.PerPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return &RunsList{
		Runs:       runs,
		TotalCount: total,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: (total + query.PerPage - 1) / query.PerPage,
	}, nil
}

// DeleteRun removes a run and its rows.
func (s *SQLiteDB) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_rows WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rows: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}
