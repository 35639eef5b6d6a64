// Package history durably records each run's parameters, per-file outcomes
// and logs, keyed by run id. The store is append-only: records are never
// updated or deleted except by the explicit retention prune.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/walteh/srtgloss/pkg/runner"
	"gitlab.com/tozd/go/errors"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// NewRunID returns a lexicographically sortable run identifier.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// Only possible with a broken entropy source.
		return ulid.Make().String()
	}
	return id.String()
}

// Open initializes the SQLite database at path and applies migrations.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Errorf("opening history database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return errors.Errorf("reading schema version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS runs (
		  run_id        TEXT PRIMARY KEY,
		  ts            INTEGER NOT NULL,
		  folder        TEXT NOT NULL,
		  recursive     INTEGER NOT NULL,
		  dry_run       INTEGER NOT NULL,
		  backup        INTEGER NOT NULL,
		  rules_active  INTEGER NOT NULL,
		  state         TEXT NOT NULL,
		  scanned       INTEGER NOT NULL,
		  changed       INTEGER NOT NULL,
		  errored       INTEGER NOT NULL,
		  results_json  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(ts DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return errors.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec("PRAGMA user_version=1"); err != nil {
			return errors.Errorf("setting schema version: %w", err)
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// Store persists run records.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends a finalized run record. Saving the same run id twice is an
// error; history records are immutable.
func (s *Store) Save(ctx context.Context, rec *runner.Record) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("run_id", rec.RunID).Msg("saving run record")

	results, err := json.Marshal(rec.FileResults)
	if err != nil {
		return errors.Errorf("encoding file results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, ts, folder, recursive, dry_run, backup,
		                  rules_active, state, scanned, changed, errored, results_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Timestamp.UnixMilli(),
		rec.Folder,
		boolInt(rec.Recursive),
		boolInt(rec.DryRun),
		boolInt(rec.BackupEnabled),
		rec.RulesActive,
		rec.State.String(),
		rec.Summary.Scanned,
		rec.Summary.Changed,
		rec.Summary.Errored,
		string(results),
	)
	if err != nil {
		return errors.Errorf("inserting run record: %w", err)
	}
	return nil
}

// List returns run records newest-first, without their per-file results.
func (s *Store) List(ctx context.Context, limit, offset int) ([]runner.Record, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, ts, folder, recursive, dry_run, backup,
		       rules_active, state, scanned, changed, errored
		FROM runs ORDER BY ts DESC, run_id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []runner.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("listing runs: %w", err)
	}
	return out, nil
}

// Get returns the full record for one run, including per-file results.
func (s *Store) Get(ctx context.Context, runID string) (*runner.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, ts, folder, recursive, dry_run, backup,
		       rules_active, state, scanned, changed, errored, results_json
		FROM runs WHERE run_id = ?`, runID)

	var resultsJSON string
	rec, err := scanRecord(row.Scan, &resultsJSON)
	if err == sql.ErrNoRows {
		return nil, errors.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resultsJSON), &rec.FileResults); err != nil {
		return nil, errors.Errorf("decoding file results: %w", err)
	}
	return rec, nil
}

// Prune is the one sanctioned mutation: drop records beyond keep most
// recent, or older than maxAge when non-zero. Returns the number removed.
func (s *Store) Prune(ctx context.Context, keep int, maxAge time.Duration) (int, error) {
	total := 0
	if keep > 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM runs WHERE run_id NOT IN (
				SELECT run_id FROM runs ORDER BY ts DESC, run_id DESC LIMIT ?
			)`, keep)
		if err != nil {
			return total, errors.Errorf("pruning by count: %w", err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge).UnixMilli()
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE ts < ?`, cutoff)
		if err != nil {
			return total, errors.Errorf("pruning by age: %w", err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	return total, nil
}

// scanRecord builds a Record from one row. resultsJSON is non-nil when the
// query selected the results column too.
func scanRecord(scan func(dest ...any) error, resultsJSON *string) (*runner.Record, error) {
	var rec runner.Record
	var ts int64
	var recursive, dryRun, backupEnabled int
	var state string

	dest := []any{
		&rec.RunID, &ts, &rec.Folder, &recursive, &dryRun, &backupEnabled,
		&rec.RulesActive, &state,
		&rec.Summary.Scanned, &rec.Summary.Changed, &rec.Summary.Errored,
	}
	if resultsJSON != nil {
		dest = append(dest, resultsJSON)
	}
	if err := scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errors.Errorf("scanning run record: %w", err)
	}

	rec.Timestamp = time.UnixMilli(ts).UTC()
	rec.Recursive = recursive != 0
	rec.DryRun = dryRun != 0
	rec.BackupEnabled = backupEnabled != 0
	rec.State = parseState(state)
	return &rec, nil
}

func parseState(s string) runner.State {
	switch s {
	case "completed":
		return runner.StateCompleted
	case "cancelled":
		return runner.StateCancelled
	case "failed":
		return runner.StateFailed
	default:
		return runner.StateIdle
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
