// Package workbook reads and writes submissions stored as a directory of
// delimited node files or as an .xlsx workbook, using an in-memory DuckDB
// for parsing and output.
package workbook

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"catcherr/internal/domain"
	"catcherr/internal/reconcile"
)

// Names of the model tables shipped with a submission template. They are
// reference data, never nodes.
const (
	ReadmeTable     = "README and INSTRUCTIONS"
	DictionaryTable = "Dictionary"
	TermsTable      = "Terms and Value Sets"
)

var modelTables = map[string]bool{
	ReadmeTable:     true,
	DictionaryTable: true,
	TermsTable:      true,
}

// nodeExtensions maps accepted file extensions to their field delimiter.
var nodeExtensions = map[string]string{
	".tsv": "\t",
	".txt": "\t",
	".csv": ",",
}

// OpenDuckDB opens an in-memory DuckDB used for reading and writing tables.
func OpenDuckDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return db, nil
}

// Loader reads node files, workbook sheets and template tables.
type Loader struct {
	db     *sql.DB
	logger *slog.Logger
	excel  excelExtension
}

// NewLoader creates a Loader on an open DuckDB handle.
func NewLoader(db *sql.DB, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{db: db, logger: logger}
}

// ReadTable reads one delimited file, or the first sheet of an .xlsx
// workbook. Every value is read as text; SQL NULL (an empty field) becomes
// the empty string. The delimiter follows the file extension (.tsv/.txt tab,
// .csv comma).
func (l *Loader) ReadTable(ctx context.Context, path string) (*domain.Table, error) {
	if IsWorkbook(path) {
		sheets, err := SheetNames(path)
		if err != nil {
			return nil, err
		}
		if len(sheets) == 0 {
			return nil, domain.ErrValidation("workbook %s has no sheets", path)
		}
		return l.ReadSheet(ctx, path, sheets[0])
	}

	delim, ok := nodeExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, domain.ErrValidation("unsupported table file %q: expected .tsv, .txt, .csv or .xlsx", path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}

	query := fmt.Sprintf(
		"SELECT * FROM read_csv(%s, delim = %s, quote = '\"', escape = '\"', header = true, all_varchar = true, null_padding = true)",
		quoteLiteral(path), quoteLiteral(delim))
	return l.query(ctx, path, query)
}

// ReadSheet reads one sheet of an .xlsx workbook through DuckDB's excel
// extension. The first row is the header.
func (l *Loader) ReadSheet(ctx context.Context, path, sheet string) (*domain.Table, error) {
	if err := l.excel.load(ctx, l.db); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM read_xlsx(%s, sheet = %s, header = true, all_varchar = true)",
		quoteLiteral(path), quoteLiteral(sheet))
	return l.query(ctx, path+"["+sheet+"]", query)
}

func (l *Loader) query(ctx context.Context, label, query string) (*domain.Table, error) {
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", label, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", label, err)
	}

	t := domain.NewTable(columns, nil)
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", label, err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		t.AppendRow(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", label, err)
	}
	return t, nil
}

// LoadSubmission reads every node of a submission, in name order. path is a
// directory of node files or an .xlsx workbook with one sheet per node.
// Model tables are skipped. Two files naming the same node are a conflict.
func (l *Loader) LoadSubmission(ctx context.Context, path string) (*domain.Submission, error) {
	tables, err := listTables(path)
	if err != nil {
		return nil, err
	}

	sub := &domain.Submission{}
	for _, name := range sortedKeys(tables) {
		if modelTables[name] {
			continue
		}
		t, err := l.readRef(ctx, tables[name])
		if err != nil {
			return nil, err
		}
		l.logger.Debug("node loaded", "node", name, "rows", t.Len(), "columns", len(t.Columns))
		sub.Nodes = append(sub.Nodes, &domain.Node{Name: name, Table: t})
	}
	if len(sub.Nodes) == 0 {
		return nil, domain.ErrValidation("no node tables found in %s", path)
	}
	return sub, nil
}

// LoadDictionary builds a vocabulary from a template (a directory or an .xlsx
// workbook) holding the Dictionary (Property, Type) and Terms and Value Sets
// (Value Set Name, Term) tables. A property whose Type contains "array" is
// multi-valued.
func (l *Loader) LoadDictionary(ctx context.Context, path string) (*domain.VocabularySet, error) {
	tables, err := listTables(path)
	if err != nil {
		return nil, err
	}

	dict, err := l.requiredTable(ctx, tables, path, DictionaryTable, "Property", "Type")
	if err != nil {
		return nil, err
	}
	terms, err := l.requiredTable(ctx, tables, path, TermsTable, "Value Set Name", "Term")
	if err != nil {
		return nil, err
	}

	vocab := domain.NewVocabularySet()
	for i := range terms.Len() {
		vocab.AddTerm(strings.TrimSpace(terms.Get(i, "Value Set Name")), terms.Get(i, "Term"))
	}
	for i := range dict.Len() {
		prop := strings.TrimSpace(dict.Get(i, "Property"))
		if prop != "" && strings.Contains(dict.Get(i, "Type"), "array") {
			vocab.MarkArray(prop)
		}
	}
	if len(vocab.Terms) == 0 {
		return nil, domain.ErrValidation("template %s defines no controlled terms", path)
	}
	return vocab, nil
}

// LoadVocabulary reads a YAML vocabulary file or a template.
func (l *Loader) LoadVocabulary(ctx context.Context, path string) (*domain.VocabularySet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadVocabularyYAML(path)
	}
	return l.LoadDictionary(ctx, path)
}

// LoadManifest reads an exported bucket inventory: one object per row with a
// full object URL (column "path" or "file_url_in_cds") and a "size" or
// "file_size" column.
func (l *Loader) LoadManifest(ctx context.Context, path string) ([]domain.BucketObject, error) {
	t, err := l.ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}
	pathCol := firstPresent(t, "path", domain.PropertyFileURL)
	sizeCol := firstPresent(t, "size", domain.PropertyFileSize)
	if pathCol == "" || sizeCol == "" {
		return nil, domain.ErrValidation("manifest %s needs a path and a size column", path)
	}

	out := make([]domain.BucketObject, 0, t.Len())
	for i := range t.Len() {
		p := strings.TrimSpace(t.Get(i, pathCol))
		if p == "" {
			continue
		}
		size, err := reconcile.ParseFileSize(t.Get(i, sizeCol))
		if err != nil {
			return nil, domain.ErrValidation("manifest %s row %d: %v", path, i+1, err)
		}
		out = append(out, domain.BucketObject{Path: p, Name: p[strings.LastIndex(p, "/")+1:], Size: size})
	}
	return out, nil
}

func (l *Loader) requiredTable(ctx context.Context, tables map[string]tableRef, src, name string, columns ...string) (*domain.Table, error) {
	ref, ok := tables[name]
	if !ok {
		return nil, domain.ErrNotFound("template %s has no %q table", src, name)
	}
	t, err := l.readRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		if !t.Has(c) {
			return nil, domain.ErrValidation("table %q is missing column %q", name, c)
		}
	}
	return t, nil
}

// tableRef locates one table: a delimited file, or a sheet of a workbook.
type tableRef struct {
	path  string
	sheet string
}

func (l *Loader) readRef(ctx context.Context, ref tableRef) (*domain.Table, error) {
	if ref.sheet != "" {
		return l.ReadSheet(ctx, ref.path, ref.sheet)
	}
	return l.ReadTable(ctx, ref.path)
}

// listTables maps table names to their location: sheet names for a
// workbook, file names without extension for a directory. A workbook inside
// a directory contributes its first sheet.
func listTables(path string) (map[string]tableRef, error) {
	if IsWorkbook(path) {
		sheets, err := SheetNames(path)
		if err != nil {
			return nil, err
		}
		tables := make(map[string]tableRef, len(sheets))
		for _, s := range sheets {
			tables[s] = tableRef{path: path, sheet: s}
		}
		return tables, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}
	tables := map[string]tableRef{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if _, ok := nodeExtensions[strings.ToLower(ext)]; !ok && !IsWorkbook(e.Name()) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if prev, dup := tables[name]; dup {
			return nil, domain.ErrConflict("table %q is defined by both %s and %s", name, filepath.Base(prev.path), e.Name())
		}
		tables[name] = tableRef{path: filepath.Join(path, e.Name())}
	}
	return tables, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstPresent(t *domain.Table, columns ...string) string {
	for _, c := range columns {
		if t.Has(c) {
			return c
		}
	}
	return ""
}

// quoteLiteral renders s as a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent renders s as a SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
