package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catcherr/internal/domain"
)

func TestWellFormedACL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "['phs000123']", want: true},
		{input: "['']", want: true},
		{input: "phs000123", want: false},
		{input: "['phs000123", want: false},
		{input: "phs000123']", want: false},
		{input: "[']", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, WellFormedACL(tt.input))
		})
	}
}

func TestACLValidator(t *testing.T) {
	tests := []struct {
		name     string
		sub      *domain.Submission
		wantSev  domain.Severity
		wantACL  []string // acl column of the "study" node after the stage
		wantText string
	}{
		{
			name:     "wraps_raw_value",
			sub:      submission(node("study", []string{"study_id", "acl"}, []string{"s1", "my-acl"})),
			wantSev:  domain.SeverityWarning,
			wantACL:  []string{"['my-acl']"},
			wantText: "my-acl ---> ['my-acl']",
		},
		{
			name:     "already_well_formed",
			sub:      submission(node("study", []string{"acl"}, []string{"['already']"})),
			wantSev:  domain.SeverityPass,
			wantACL:  []string{"['already']"},
			wantText: "matches the required structure",
		},
		{
			name:     "empty_value",
			sub:      submission(node("study", []string{"study_id", "acl"}, []string{"s1", ""})),
			wantSev:  domain.SeverityError,
			wantACL:  []string{""},
			wantText: "Please submit an ACL value",
		},
		{
			name: "more_than_one_row",
			sub: submission(node("study", []string{"acl"},
				[]string{"a"},
				[]string{"b"},
			)),
			wantSev:  domain.SeverityError,
			wantACL:  []string{"a", "b"},
			wantText: "more than one ACL",
		},
		{
			name:     "no_rows",
			sub:      submission(node("study", []string{"acl"})),
			wantSev:  domain.SeverityError,
			wantACL:  []string{},
			wantText: "Please submit an ACL value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := apply(t, NewACLValidator(), tt.sub)

			require.Len(t, res.Findings, 1)
			assert.Equal(t, tt.wantSev, res.Findings[0].Severity)
			assert.Contains(t, res.Findings[0].Message, tt.wantText)
			got := res.Submission.Node("study").Table.Column("acl")
			if got == nil {
				got = []string{}
			}
			assert.Equal(t, tt.wantACL, got)
		})
	}
}

func TestACLValidator_MultipleHoldersIsStructuralError(t *testing.T) {
	sub := submission(
		node("study", []string{"acl"}, []string{"one"}),
		node("study_admin", []string{"acl"}, []string{"two"}),
	)

	res := apply(t, NewACLValidator(), sub)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, domain.SeverityError, res.Findings[0].Severity)
	assert.Contains(t, res.Findings[0].Message, "study, study_admin")
	assert.Equal(t, "one", res.Submission.Node("study").Table.Rows[0][0])
	assert.Equal(t, "two", res.Submission.Node("study_admin").Table.Rows[0][0])
}

func TestACLValidator_IgnoresEmptyACLColumns(t *testing.T) {
	tests := []struct {
		name     string
		sub      *domain.Submission
		wantSev  domain.Severity
		wantNode string
		wantACL  string
	}{
		{
			name: "second_node_empty",
			sub: submission(
				node("study", []string{"acl"}, []string{"phs001"}),
				node("study_admin", []string{"study_admin_id", "acl"}, []string{"a1", ""}),
			),
			wantSev:  domain.SeverityWarning,
			wantNode: "study",
			wantACL:  "['phs001']",
		},
		{
			name: "first_node_empty",
			sub: submission(
				node("program", []string{"program_id", "acl"}, []string{"p1", ""}),
				node("study", []string{"acl"}, []string{"['phs001']"}),
			),
			wantSev:  domain.SeverityPass,
			wantNode: "study",
			wantACL:  "['phs001']",
		},
		{
			name: "all_empty",
			sub: submission(
				node("program", []string{"acl"}, []string{""}),
				node("study", []string{"acl"}, []string{""}),
			),
			wantSev:  domain.SeverityError,
			wantNode: "program",
			wantACL:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := apply(t, NewACLValidator(), tt.sub)

			require.Len(t, res.Findings, 1)
			assert.Equal(t, tt.wantSev, res.Findings[0].Severity)
			assert.Equal(t, tt.wantNode, res.Findings[0].Node)
			assert.Equal(t, tt.wantACL, res.Submission.Node(tt.wantNode).Table.Get(0, "acl"))
		})
	}
}

func TestACLValidator_MissingProperty(t *testing.T) {
	res := apply(t, NewACLValidator(), submission(node("participant", []string{"participant_id"}, []string{"p1"})))

	require.Len(t, res.Findings, 1)
	assert.Equal(t, domain.SeverityError, res.Findings[0].Severity)
}
