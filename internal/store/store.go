// Package store handles SQLite persistence of analysis runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/paperlens/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrNoRuns is returned by LatestRun when the history is empty.
	ErrNoRuns = errors.New("no stored runs")
	// ErrRunNotFound is returned when a run id does not match a stored run.
	ErrRunNotFound = errors.New("run not found")
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			topic TEXT NOT NULL,
			requested INTEGER NOT NULL,
			fetched INTEGER NOT NULL,
			provider TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_categories (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS papers (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			published TEXT NOT NULL,
			fallback INTEGER NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			category TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			issues INTEGER NOT NULL,
			PRIMARY KEY (run_id, idx, category)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateRun stores run metadata. A missing id or start time is filled in.
func (s *Store) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	run, err := prepareRun(run)
	if err != nil {
		return model.Run{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return insertRun(ctx, tx, run)
	})
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// SaveBatch stores the assessed rows of a run in a single transaction.
func (s *Store) SaveBatch(ctx context.Context, runID string, batch model.Batch) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertBatch(ctx, tx, runID, batch)
	})
}

// SaveRun stores run metadata and its rows in one transaction, so a failed
// save leaves no partial run behind.
func (s *Store) SaveRun(ctx context.Context, run model.Run, batch model.Batch) (model.Run, error) {
	run, err := prepareRun(run)
	if err != nil {
		return model.Run{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		return insertBatch(ctx, tx, run.ID, batch)
	})
	if err != nil {
		return model.Run{}, err
	}
	run.Fetched = len(batch)
	return run, nil
}

func prepareRun(run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	if len(run.Categories) == 0 {
		return model.Run{}, fmt.Errorf("run %s has no categories", run.ID)
	}
	return run, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			// Best-effort rollback.
			_ = rerr
		}
		return err
	}
	return tx.Commit()
}

func insertRun(ctx context.Context, tx *sql.Tx, run model.Run) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, topic, requested, fetched, provider) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(timeLayout),
		run.Topic,
		run.Requested,
		run.Fetched,
		run.Provider,
	)
	if err != nil {
		return err
	}
	for i, c := range run.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_categories (run_id, position, name) VALUES (?, ?, ?)`,
			run.ID, i, c); err != nil {
			return err
		}
	}
	return nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, runID string, batch model.Batch) error {
	paperStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (run_id, idx, title, url, published, fallback) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := paperStmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	scoreStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scores (run_id, idx, category, confidence, issues) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := scoreStmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	for i, row := range batch {
		if _, err := paperStmt.ExecContext(ctx, runID, i, row.Title, row.URL,
			row.Published.UTC().Format(timeLayout), boolToInt(row.Fallback)); err != nil {
			return fmt.Errorf("save paper %d: %w", i, err)
		}
		for c, score := range row.Scores {
			if _, err := scoreStmt.ExecContext(ctx, runID, i, c, score.Confidence, score.Issues); err != nil {
				return fmt.Errorf("save score %d/%s: %w", i, c, err)
			}
		}
	}
	_, err = tx.ExecContext(ctx, `UPDATE runs SET fetched = ? WHERE id = ?`, len(batch), runID)
	return err
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, topic, requested, fetched, provider FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range runs {
		cats, err := s.runCategories(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Categories = cats
	}
	return runs, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, topic, requested, fetched, provider FROM runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNoRuns
	}
	if err != nil {
		return model.Run{}, err
	}
	run.Categories, err = s.runCategories(ctx, run.ID)
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// GetRun returns a run by id. A unique id prefix is accepted.
func (s *Store) GetRun(ctx context.Context, id string) (model.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, topic, requested, fetched, provider FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id)
	if err != nil {
		return model.Run{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var matches []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return model.Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return model.Run{}, err
	}
	switch {
	case len(matches) == 0:
		return model.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return model.Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	run := matches[0]
	run.Categories, err = s.runCategories(ctx, run.ID)
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// LoadBatch returns a run with its category set and its rows in stored order.
func (s *Store) LoadBatch(ctx context.Context, runID string) (model.Run, model.Batch, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return model.Run{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, title, url, published, fallback FROM papers WHERE run_id = ? ORDER BY idx ASC`, run.ID)
	if err != nil {
		return model.Run{}, nil, err
	}
	batch := model.Batch{}
	index := map[int]int{}
	for rows.Next() {
		var idx, fallback int
		var published string
		var row model.PaperAssessment
		if err := rows.Scan(&idx, &row.Title, &row.URL, &published, &fallback); err != nil {
			_ = rows.Close()
			return model.Run{}, nil, err
		}
		row.Published, err = time.Parse(timeLayout, published)
		if err != nil {
			_ = rows.Close()
			return model.Run{}, nil, fmt.Errorf("paper %d: %w", idx, err)
		}
		row.Fallback = fallback != 0
		row.Scores = map[string]model.Score{}
		index[idx] = len(batch)
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return model.Run{}, nil, err
	}
	if err := rows.Close(); err != nil {
		return model.Run{}, nil, err
	}

	scores, err := s.db.QueryContext(ctx,
		`SELECT idx, category, confidence, issues FROM scores WHERE run_id = ?`, run.ID)
	if err != nil {
		return model.Run{}, nil, err
	}
	defer func() {
		if cerr := scores.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for scores.Next() {
		var idx int
		var category string
		var score model.Score
		if err := scores.Scan(&idx, &category, &score.Confidence, &score.Issues); err != nil {
			return model.Run{}, nil, err
		}
		pos, ok := index[idx]
		if !ok {
			continue
		}
		batch[pos].Scores[category] = score
	}
	if err := scores.Err(); err != nil {
		return model.Run{}, nil, err
	}
	return run, batch, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var run model.Run
	var startedAt string
	if err := row.Scan(&run.ID, &startedAt, &run.Topic, &run.Requested, &run.Fetched, &run.Provider); err != nil {
		return model.Run{}, err
	}
	parsed, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return model.Run{}, err
	}
	run.StartedAt = parsed
	return run, nil
}

func (s *Store) runCategories(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM run_categories WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var cats []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cats = append(cats, name)
	}
	return cats, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
