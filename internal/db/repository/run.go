package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catcherr/internal/domain"
)

// Compile-time check: RunRepo implements domain.RunRepository.
var _ domain.RunRepository = (*RunRepo)(nil)

// RunRepo stores reconciliation runs, their findings and minted GUIDs.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a RunRepo on a migrated history store.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create inserts a run with its findings and GUID assignments in one transaction.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run, findings []domain.Finding, guids []domain.GUIDAssignment) error {
	if run == nil || run.ID == "" {
		return domain.ErrValidation("run id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, submission, strategy, started_at, finished_at, passes, warnings, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Submission, run.Strategy,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Passes, run.Warnings, run.Errors)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(mapDBError(err), &conflict) {
			return domain.ErrConflict("run %q already exists", run.ID)
		}
		return fmt.Errorf("insert run: %w", mapDBError(err))
	}

	if err := insertFindings(ctx, tx, run.ID, findings); err != nil {
		return err
	}
	if err := insertGUIDs(ctx, tx, run.ID, guids); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func insertFindings(ctx context.Context, tx *sql.Tx, runID string, findings []domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (run_id, seq, severity, stage, node, property, row_num, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare finding insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, f := range findings {
		if _, err := stmt.ExecContext(ctx, runID, i, string(f.Severity), f.Stage, f.Node, f.Property, f.Row, f.Message); err != nil {
			return fmt.Errorf("insert finding %d: %w", i, err)
		}
	}
	return nil
}

func insertGUIDs(ctx context.Context, tx *sql.Tx, runID string, guids []domain.GUIDAssignment) error {
	if len(guids) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO guid_assignments (run_id, seq, node, file_url, md5sum, guid, row_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare guid insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, g := range guids {
		if _, err := stmt.ExecContext(ctx, runID, i, g.Node, g.FileURL, g.MD5Sum, g.GUID, g.Rows); err != nil {
			return fmt.Errorf("insert guid %d: %w", i, err)
		}
	}
	return nil
}

// List returns runs newest first, with the total count for pagination.
func (r *RunRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Run, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, submission, strategy, started_at, finished_at, passes, warnings, errors
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, total, nil
}

// Get returns one run by ID.
func (r *RunRepo) Get(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, submission, strategy, started_at, finished_at, passes, warnings, errors
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("run %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Findings returns a run's findings in report order.
func (r *RunRepo) Findings(ctx context.Context, runID string) ([]domain.Finding, error) {
	if err := r.exists(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT severity, stage, node, property, row_num, message
		FROM findings WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Finding
	for rows.Next() {
		var f domain.Finding
		var sev string
		if err := rows.Scan(&sev, &f.Stage, &f.Node, &f.Property, &f.Row, &f.Message); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Severity = domain.Severity(sev)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return out, nil
}

// GUIDs returns the identifiers a run minted, in assignment order.
func (r *RunRepo) GUIDs(ctx context.Context, runID string) ([]domain.GUIDAssignment, error) {
	if err := r.exists(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT node, file_url, md5sum, guid, row_count
		FROM guid_assignments WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list guids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.GUIDAssignment
	for rows.Next() {
		var g domain.GUIDAssignment
		if err := rows.Scan(&g.Node, &g.FileURL, &g.MD5Sum, &g.GUID, &g.Rows); err != nil {
			return nil, fmt.Errorf("scan guid: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guids: %w", err)
	}
	return out, nil
}

func (r *RunRepo) exists(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("run %q not found", id)
	}
	if err != nil {
		return fmt.Errorf("lookup run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.Run, error) {
	var run domain.Run
	var started, finished string
	if err := s.Scan(&run.ID, &run.Submission, &run.Strategy, &started, &finished,
		&run.Passes, &run.Warnings, &run.Errors); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	return &run, nil
}
