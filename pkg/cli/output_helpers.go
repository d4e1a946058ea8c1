package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"catcherr/internal/domain"
)

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w)
	h := make([]any, len(headers))
	for i, v := range headers {
		h[i] = v
	}
	table.Header(h...)
	for _, row := range rows {
		r := make([]any, len(row))
		for i, v := range row {
			r[i] = v
		}
		if err := table.Append(r...); err != nil {
			return err
		}
	}
	return table.Render()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var severityColors = map[domain.Severity]string{
	domain.SeverityPass:    "\x1b[32m",
	domain.SeverityWarning: "\x1b[33m",
	domain.SeverityError:   "\x1b[31m",
}

// severityLabel renders a severity, colored when color is true.
func severityLabel(s domain.Severity, color bool) string {
	c, ok := severityColors[s]
	if !color || !ok {
		return string(s)
	}
	return c + string(s) + "\x1b[0m"
}

func findingRows(findings []domain.Finding, color bool) [][]string {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		row := ""
		if f.Row > 0 {
			row = fmt.Sprint(f.Row)
		}
		rows[i] = []string{severityLabel(f.Severity, color), f.Stage, f.Node, f.Property, row, f.Message}
	}
	return rows
}

var findingHeaders = []string{"SEVERITY", "STAGE", "NODE", "PROPERTY", "ROW", "MESSAGE"}
