package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"catcherr/internal/domain"
)

func testVocab() *domain.VocabularySet {
	v := domain.NewVocabularySet()
	for _, t := range []string{"Male", "Female", "Unknown"} {
		v.AddTerm("sex_at_birth", t)
	}
	for _, t := range []string{"Asian", "White", "Black or African American", "Not Reported"} {
		v.AddTerm("race", t)
	}
	for _, t := range []string{"Arm", "Arm skin"} {
		v.AddTerm("anatomic_site", t)
	}
	v.AddTerm("ambiguous", "Yes")
	v.AddTerm("ambiguous", "YES")
	v.MarkArray("race")
	v.MarkArray("anatomic_site")
	return v
}

func testIndex(t *testing.T) *VocabularyIndex {
	t.Helper()
	idx, err := NewVocabularyIndex(testVocab())
	require.NoError(t, err)
	return idx
}

func node(name string, columns []string, rows ...[]string) *domain.Node {
	return &domain.Node{Name: name, Table: domain.NewTable(columns, rows)}
}

func submission(nodes ...*domain.Node) *domain.Submission {
	return &domain.Submission{Nodes: nodes}
}

func apply(t *testing.T, st Stage, sub *domain.Submission) StageResult {
	t.Helper()
	res, err := st.Apply(context.Background(), sub)
	require.NoError(t, err)
	return res
}

func severities(findings []domain.Finding) []domain.Severity {
	out := make([]domain.Severity, len(findings))
	for i, f := range findings {
		out[i] = f.Severity
	}
	return out
}

// sequentialGUIDs returns a deterministic generator: dg.4DFC/guid-1, guid-2, ...
func sequentialGUIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%sguid-%d", domain.GUIDPrefix, n)
	}
}
