package reconcile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catcherr/internal/domain"
)

func TestReport_CountsAndOrder(t *testing.T) {
	r := NewReport()
	r.Add(
		domain.Finding{Severity: domain.SeverityPass, Stage: domain.StageTerms, Node: "a", Message: "one"},
		domain.Finding{Severity: domain.SeverityError, Stage: domain.StageTerms, Node: "a", Message: "two"},
	)
	r.Add(domain.Finding{Severity: domain.SeverityWarning, Stage: domain.StageURLs, Node: "b", Message: "three"})

	assert.Equal(t, Counts{Pass: 1, Warning: 1, Error: 1}, r.Counts())
	assert.True(t, r.HasErrors())

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "one", entries[0].Message)
	assert.Equal(t, "three", entries[2].Message)

	entries[0].Message = "changed"
	assert.Equal(t, "one", r.Entries()[0].Message)
}

func TestReport_WriteText(t *testing.T) {
	r := NewReport()
	r.Add(
		domain.Finding{Severity: domain.SeverityError, Stage: domain.StageACL, Message: "no acl"},
		domain.Finding{Severity: domain.SeverityPass, Stage: domain.StageTerms, Node: "participant", Message: "race, property contains all valid values."},
	)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	out := buf.String()

	terms := strings.Index(out, "controlled vocabulary")
	acl := strings.Index(out, "The value for ACL")
	require.True(t, terms >= 0 && acl > terms, "sections follow pipeline order")
	assert.Contains(t, out, "\nparticipant\n----------\n\tPASS: race, property contains all valid values.\n")
	assert.Contains(t, out, "\tERROR: no acl\n")
	assert.Contains(t, out, "Summary: 1 PASS, 0 WARNING, 1 ERROR")
}
