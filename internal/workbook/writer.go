package workbook

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"catcherr/internal/domain"
)

const stagingTable = "catcherr_out"

// Writer writes tables as delimited files or single-sheet workbooks through
// DuckDB's COPY.
type Writer struct {
	db     *sql.DB
	logger *slog.Logger
	excel  excelExtension
}

// NewWriter creates a Writer on an open DuckDB handle.
func NewWriter(db *sql.DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{db: db, logger: logger}
}

// WriteTable writes t to path with a header row. Empty cells are written as
// empty fields. The format follows the extension: .xlsx writes a workbook
// with one sheet named after the file, .csv is comma separated, anything
// else is tab separated.
func (w *Writer) WriteTable(ctx context.Context, path string, t *domain.Table) error {
	if t == nil || len(t.Columns) == 0 {
		return domain.ErrValidation("cannot write %s: table has no columns", path)
	}
	options, err := w.copyOptions(ctx, path)
	if err != nil {
		return err
	}

	// Temp tables are per connection.
	conn, err := w.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	defs := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c) + " VARCHAR"
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE OR REPLACE TEMP TABLE %s (%s)", stagingTable, strings.Join(defs, ", "))
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+stagingTable)
	}()

	if err := insertRows(ctx, conn, t, strings.Join(marks, ", ")); err != nil {
		return err
	}

	copySQL := fmt.Sprintf("COPY %s TO %s (%s)", stagingTable, quoteLiteral(path), options)
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (w *Writer) copyOptions(ctx context.Context, path string) (string, error) {
	ext := filepath.Ext(path)
	switch strings.ToLower(ext) {
	case WorkbookExt:
		if err := w.excel.load(ctx, w.db); err != nil {
			return "", err
		}
		sheet := strings.TrimSuffix(filepath.Base(path), ext)
		return "FORMAT xlsx, HEADER true, SHEET " + quoteLiteral(sheet), nil
	case ".csv":
		return "FORMAT csv, HEADER true", nil
	}
	return "FORMAT csv, HEADER true, DELIMITER " + quoteLiteral("\t"), nil
}

func insertRows(ctx context.Context, conn *sql.Conn, t *domain.Table, marks string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", stagingTable, marks))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i := range args {
			args[i] = nil
			if i < len(row) && row[i] != "" {
				args[i] = row[i]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rows: %w", err)
	}
	return nil
}

// WriteSubmission writes every node to dir as <node><ext>, creating dir. ext
// is ".tsv" when empty.
func (w *Writer) WriteSubmission(ctx context.Context, dir string, sub *domain.Submission, ext string) error {
	if ext == "" {
		ext = ".tsv"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, n := range sub.Nodes {
		path := filepath.Join(dir, n.Name+ext)
		if err := w.WriteTable(ctx, path, n.Table); err != nil {
			return fmt.Errorf("write node %s: %w", n.Name, err)
		}
		w.logger.Debug("node written", "node", n.Name, "path", path, "rows", n.Table.Len())
	}
	return nil
}
