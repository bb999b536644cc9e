// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records verification runs in a SQLite database so
// coverage can be compared across runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/spectrace/pkg/types"
)

const dbFile = "history.db"

// ErrRunNotFound is returned when a run ID matches no recorded run.
var ErrRunNotFound = errors.New("run not found")

// Store manages the run history database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates the history database at cfg.Dir/history.db and
// creates the schema if it does not exist.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = types.DefaultConfig().History.Dir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			total INTEGER NOT NULL,
			passing INTEGER NOT NULL,
			failing INTEGER NOT NULL,
			missing INTEGER NOT NULL,
			manual INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			unexecuted INTEGER NOT NULL,
			coverage REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			requirement_id TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			detail TEXT,
			test TEXT,
			source_file TEXT,
			source_line INTEGER,
			PRIMARY KEY (run_id, requirement_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_requirement ON outcomes(requirement_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Run is one recorded verification run.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	Total      int       `json:"total" yaml:"total"`
	Passing    int       `json:"passing" yaml:"passing"`
	Failing    int       `json:"failing" yaml:"failing"`
	Missing    int       `json:"missing" yaml:"missing"`
	Manual     int       `json:"manual" yaml:"manual"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Unexecuted int       `json:"unexecuted" yaml:"unexecuted"`
	Coverage   float64   `json:"coverage" yaml:"coverage"`
}

// ShortID returns the first eight characters of the run ID.
func (r Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// OutcomeRow is one requirement's recorded status within a run.
type OutcomeRow struct {
	RequirementID string       `json:"requirement_id" yaml:"requirement_id"`
	Description   string       `json:"description" yaml:"description"`
	Status        types.Status `json:"status" yaml:"status"`
	Detail        string       `json:"detail,omitempty" yaml:"detail,omitempty"`
	Test          string       `json:"test,omitempty" yaml:"test,omitempty"`
	SourceFile    string       `json:"source_file" yaml:"source_file"`
	SourceLine    int          `json:"source_line" yaml:"source_line"`
}

// Save records r as a new run and returns it.
func (s *Store) Save(ctx context.Context, r *types.Report) (Run, error) {
	run := Run{
		ID:         uuid.NewString(),
		StartedAt:  r.GeneratedAt.UTC(),
		Total:      r.Total,
		Passing:    r.Passing,
		Failing:    r.Failing,
		Missing:    r.Missing,
		Manual:     r.Manual,
		Skipped:    r.Skipped,
		Unexecuted: r.Unexecuted,
		Coverage:   r.CoveragePercent(),
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, total, passing, failing, missing, manual, skipped, unexecuted, coverage)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(time.RFC3339Nano), run.Total, run.Passing, run.Failing,
		run.Missing, run.Manual, run.Skipped, run.Unexecuted, run.Coverage,
	)
	if err != nil {
		return Run{}, fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (run_id, position, requirement_id, description, status, detail, test, source_file, source_line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range r.Outcomes {
		test := ""
		if o.Test != nil {
			test = o.Test.Path()
		}
		_, err := stmt.ExecContext(ctx,
			run.ID, i, o.Requirement.ID, o.Requirement.Description, string(o.Status),
			o.Detail, test, o.Requirement.SourceFile, o.Requirement.SourceLine,
		)
		if err != nil {
			return Run{}, fmt.Errorf("inserting outcome %s: %w", o.Requirement.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("committing run: %w", err)
	}
	return run, nil
}

const runColumns = `id, started_at, total, passing, failing, missing, manual, skipped, unexecuted, coverage`

func scanRun(sc interface{ Scan(...any) error }) (Run, error) {
	var run Run
	var started string
	if err := sc.Scan(&run.ID, &started, &run.Total, &run.Passing, &run.Failing,
		&run.Missing, &run.Manual, &run.Skipped, &run.Unexecuted, &run.Coverage); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("parsing started_at %q: %w", started, err)
	}
	run.StartedAt = t
	return run, nil
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get resolves id to a run. id may be a unique prefix of a run ID, or
// empty or "latest" for the newest run.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	var row *sql.Row
	if id == "" || id == "latest" {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT 1`)
	} else {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM runs WHERE substr(id, 1, length(?1)) = ?1`, id,
		).Scan(&n); err != nil {
			return Run{}, fmt.Errorf("resolving run %s: %w", id, err)
		}
		if n > 1 {
			return Run{}, fmt.Errorf("run ID prefix %q is ambiguous (%d matches)", id, n)
		}
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE substr(id, 1, length(?1)) = ?1`, id)
	}
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("reading run %s: %w", id, err)
	}
	return run, nil
}

// Outcomes returns the outcomes recorded for a run in report order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]OutcomeRow, error) {
	run, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT requirement_id, COALESCE(description, ''), status, COALESCE(detail, ''), COALESCE(test, ''),
		        COALESCE(source_file, ''), COALESCE(source_line, 0)
		 FROM outcomes WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRow
	for rows.Next() {
		var o OutcomeRow
		var status string
		if err := rows.Scan(&o.RequirementID, &o.Description, &status, &o.Detail, &o.Test, &o.SourceFile, &o.SourceLine); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Status = types.Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Change is a requirement whose status differs between two runs. From or
// To is empty when the requirement exists in only one of them.
type Change struct {
	RequirementID string       `json:"requirement_id" yaml:"requirement_id"`
	From          types.Status `json:"from,omitempty" yaml:"from,omitempty"`
	To            types.Status `json:"to,omitempty" yaml:"to,omitempty"`
}

// Regression reports whether the change moved a covered requirement to an
// uncovered status.
func (c Change) Regression() bool {
	covered := func(s types.Status) bool {
		return s == types.StatusPassing || s == types.StatusManual
	}
	return covered(c.From) && (c.To == types.StatusFailing || c.To == types.StatusMissing)
}

// Compare returns the status changes from one run to another, sorted by
// requirement ID.
func (s *Store) Compare(ctx context.Context, fromID, toID string) ([]Change, error) {
	from, err := s.Outcomes(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.Outcomes(ctx, toID)
	if err != nil {
		return nil, err
	}

	before := make(map[string]types.Status, len(from))
	for _, o := range from {
		before[o.RequirementID] = o.Status
	}
	var changes []Change
	for _, o := range to {
		prev, ok := before[o.RequirementID]
		delete(before, o.RequirementID)
		if ok && prev == o.Status {
			continue
		}
		changes = append(changes, Change{RequirementID: o.RequirementID, From: prev, To: o.Status})
	}
	for id, prev := range before {
		changes = append(changes, Change{RequirementID: id, From: prev})
	}
	sort.Slice(changes, func(i, j int) bool {
		return strings.Compare(changes[i].RequirementID, changes[j].RequirementID) < 0
	})
	return changes, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE seq NOT IN (SELECT seq FROM runs ORDER BY seq DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
