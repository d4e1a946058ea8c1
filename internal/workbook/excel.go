package workbook

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"catcherr/internal/domain"
)

// WorkbookExt is the extension of Excel workbooks. Each sheet of a workbook
// is one table.
const WorkbookExt = ".xlsx"

// IsWorkbook reports whether path names an Excel workbook.
func IsWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), WorkbookExt)
}

// excelExtension installs and loads DuckDB's excel extension on first use.
type excelExtension struct {
	once sync.Once
	err  error
}

func (e *excelExtension) load(ctx context.Context, db *sql.DB) error {
	e.once.Do(func() {
		if _, err := db.ExecContext(ctx, "INSTALL excel; LOAD excel;"); err != nil {
			e.err = fmt.Errorf("extension setup (excel): %w", err)
		}
	})
	return e.err
}

type workbookPart struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
	} `xml:"sheets>sheet"`
}

// SheetNames lists the sheets of an .xlsx workbook in workbook order.
func SheetNames(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != "xl/workbook.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", f.Name, path, err)
		}
		defer func() { _ = rc.Close() }()

		var part workbookPart
		if err := xml.NewDecoder(rc).Decode(&part); err != nil {
			return nil, domain.ErrValidation("workbook %s: malformed %s: %v", path, f.Name, err)
		}
		names := make([]string, 0, len(part.Sheets))
		for _, s := range part.Sheets {
			names = append(names, s.Name)
		}
		return names, nil
	}
	return nil, domain.ErrValidation("workbook %s has no xl/workbook.xml", path)
}
