package workbook

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catcherr/internal/domain"
)

// requireExcel skips when DuckDB's excel extension cannot be installed, for
// example without network access.
func requireExcel(t *testing.T, loader *Loader) {
	t.Helper()
	if err := loader.excel.load(context.Background(), loader.db); err != nil {
		t.Skipf("excel extension unavailable: %v", err)
	}
}

func writeZip(t *testing.T, path string, parts map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestIsWorkbook(t *testing.T) {
	assert.True(t, IsWorkbook("data/submission.xlsx"))
	assert.True(t, IsWorkbook("SUBMISSION.XLSX"))
	assert.False(t, IsWorkbook("data/participant.tsv"))
	assert.False(t, IsWorkbook("data/submission"))
}

func TestSheetNames(t *testing.T) {
	dir := t.TempDir()

	t.Run("workbook_order", func(t *testing.T) {
		p := filepath.Join(dir, "template.xlsx")
		writeZip(t, p, map[string]string{
			"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets>
    <sheet name="README and INSTRUCTIONS" sheetId="1" r:id="rId1"/>
    <sheet name="study" sheetId="2" r:id="rId2"/>
    <sheet name="participant" sheetId="3" r:id="rId3"/>
    <sheet name="Dictionary" sheetId="4" r:id="rId4"/>
  </sheets>
</workbook>`,
		})
		names, err := SheetNames(p)
		require.NoError(t, err)
		assert.Equal(t, []string{"README and INSTRUCTIONS", "study", "participant", "Dictionary"}, names)
	})

	t.Run("missing_workbook_part", func(t *testing.T) {
		p := filepath.Join(dir, "broken.xlsx")
		writeZip(t, p, map[string]string{"docProps/app.xml": "<Properties/>"})
		_, err := SheetNames(p)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("not_a_zip", func(t *testing.T) {
		p := writeFile(t, dir, "plain.xlsx", "type\tstudy_id\n")
		_, err := SheetNames(p)
		assert.Error(t, err)
	})
}

func TestWorkbookRoundTrip(t *testing.T) {
	loader, writer := newTestDuckDB(t)
	requireExcel(t, loader)
	ctx := context.Background()
	dir := t.TempDir()

	participant := domain.NewTable([]string{"type", "participant_id", "race"}, [][]string{
		{"participant", "p1", ""},
		{"participant", "p2", "Asian;White"},
	})
	p := filepath.Join(dir, "participant.xlsx")
	require.NoError(t, writer.WriteTable(ctx, p, participant))

	sheets, err := SheetNames(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"participant"}, sheets)

	got, err := loader.ReadTable(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, participant.Columns, got.Columns)
	assert.Equal(t, participant.Rows, got.Rows)

	sub, err := loader.LoadSubmission(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"participant"}, sub.Names())
	assert.Equal(t, participant.Rows, sub.Node("participant").Table.Rows)
}

func TestWriteSubmission_Workbooks(t *testing.T) {
	loader, writer := newTestDuckDB(t)
	requireExcel(t, loader)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "sub_CatchERR20260101")

	sub := &domain.Submission{Nodes: []*domain.Node{
		{Name: "study", Table: domain.NewTable([]string{"type", "study_id"}, [][]string{{"study", "s1"}})},
		{Name: "participant", Table: domain.NewTable([]string{"type", "participant_id"}, [][]string{{"participant", "p1"}, {"participant", "p2"}})},
	}}
	require.NoError(t, writer.WriteSubmission(ctx, out, sub, WorkbookExt))
	assert.FileExists(t, filepath.Join(out, "study.xlsx"))
	assert.FileExists(t, filepath.Join(out, "participant.xlsx"))

	got, err := loader.LoadSubmission(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"participant", "study"}, got.Names())
	assert.Equal(t, [][]string{{"participant", "p1"}, {"participant", "p2"}}, got.Node("participant").Table.Rows)
}
