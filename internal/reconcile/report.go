package reconcile

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"catcherr/internal/domain"
)

// stageHeadings introduce each section of the text report.
var stageHeadings = map[string]string{
	domain.StageTerms:      "The following columns have controlled vocabulary on the 'Terms and Value Sets' page of the template file. If the values present do not match, they will be noted and in some cases the values will be replaced:",
	domain.StageCharacters: "Certain characters (®, ™, ©) do not handle being transformed into certain file types, due to this, the following characters were changed.",
	domain.StageACL:        "The value for ACL will be checked to determine it follows the required structure, ['.*'].",
	domain.StageURLs:       "Check the following url columns (file_url_in_cds), to make sure the full file url is present and fix entries that are not:",
	domain.StageGUIDs:      "The file based nodes will now have a guid assigned to each unique file.",
}

var stageOrder = []string{
	domain.StageTerms,
	domain.StageCharacters,
	domain.StageACL,
	domain.StageURLs,
	domain.StageGUIDs,
}

// Counts tallies findings by severity.
type Counts struct {
	Pass    int `json:"pass"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
}

// Report is the ordered, append-only list of findings of one run.
type Report struct {
	entries []domain.Finding
}

// NewReport creates an empty report.
func NewReport() *Report { return &Report{} }

// Add appends findings in order.
func (r *Report) Add(f ...domain.Finding) {
	r.entries = append(r.entries, f...)
}

// Entries returns a copy of every finding.
func (r *Report) Entries() []domain.Finding {
	return slices.Clone(r.entries)
}

// Stage returns the findings of one stage.
func (r *Report) Stage(stage string) []domain.Finding {
	var out []domain.Finding
	for _, f := range r.entries {
		if f.Stage == stage {
			out = append(out, f)
		}
	}
	return out
}

// Counts tallies the report by severity.
func (r *Report) Counts() Counts {
	var c Counts
	for _, f := range r.entries {
		switch f.Severity {
		case domain.SeverityPass:
			c.Pass++
		case domain.SeverityWarning:
			c.Warning++
		case domain.SeverityError:
			c.Error++
		}
	}
	return c
}

// HasErrors reports whether any ERROR was recorded.
func (r *Report) HasErrors() bool { return r.Counts().Error > 0 }

// WriteText renders the report as a human-readable log, one section per
// stage and one block per node, in the order findings were recorded.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, stage := range stageOrder {
		fmt.Fprintf(&b, "%s\n----------\n", stageHeadings[stage])
		node := "\x00"
		for _, f := range r.entries {
			if f.Stage != stage {
				continue
			}
			if f.Node != node {
				node = f.Node
				if node != "" {
					fmt.Fprintf(&b, "\n%s\n----------\n", node)
				}
			}
			fmt.Fprintf(&b, "\t%s: %s\n", f.Severity, f.Message)
		}
		b.WriteString("\n")
	}
	c := r.Counts()
	fmt.Fprintf(&b, "Summary: %d PASS, %d WARNING, %d ERROR\n", c.Pass, c.Warning, c.Error)

	_, err := io.WriteString(w, b.String())
	return err
}
