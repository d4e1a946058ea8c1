package reconcile

import (
	"context"
	"fmt"
	"strings"

	"catcherr/internal/domain"
)

// ACLValidator enforces the single-study ACL contract: exactly one node
// carries the acl property, with one value shaped as ['<token>'].
type ACLValidator struct{}

// NewACLValidator creates an ACLValidator.
func NewACLValidator() *ACLValidator { return &ACLValidator{} }

// Name implements Stage.
func (v *ACLValidator) Name() string { return domain.StageACL }

// Apply implements Stage.
func (v *ACLValidator) Apply(_ context.Context, sub *domain.Submission) (StageResult, error) {
	out := sub.Clone()

	// Templates carry the acl column on several nodes; only those with
	// values hold the ACL. An all-empty column still names where it belongs.
	var declared, holders []*domain.Node
	for _, n := range out.Nodes {
		if !n.Table.Has(domain.PropertyACL) {
			continue
		}
		declared = append(declared, n)
		if !n.Table.ColumnEmpty(domain.PropertyACL) {
			holders = append(holders, n)
		}
	}
	if len(holders) == 0 && len(declared) > 0 {
		holders = declared[:1]
	}

	fail := func(node, format string, args ...any) (StageResult, error) {
		return StageResult{Submission: out, Findings: []domain.Finding{{
			Severity: domain.SeverityError,
			Stage:    domain.StageACL,
			Node:     node,
			Property: domain.PropertyACL,
			Message:  fmt.Sprintf(format, args...),
		}}}, nil
	}

	switch len(holders) {
	case 0:
		return fail("", "No node in this workbook carries the 'acl' property. Please submit one ACL value.")
	case 1:
	default:
		names := make([]string, len(holders))
		for i, h := range holders {
			names[i] = h.Name
		}
		return fail("", "The 'acl' property is defined in more than one node (%s). Only one node may hold the ACL.",
			strings.Join(names, ", "))
	}

	node := holders[0]
	values := node.Table.Column(domain.PropertyACL)
	switch {
	case len(values) > 1:
		return fail(node.Name, "There is more than one ACL associated with this study and workbook. Please only submit one ACL and corresponding data to a workbook.")
	case len(values) == 0 || values[0] == "":
		return fail(node.Name, "Please submit an ACL value to the 'acl' property in the %s node.", node.Name)
	}

	raw := values[0]
	if WellFormedACL(raw) {
		return StageResult{Submission: out, Findings: []domain.Finding{{
			Severity: domain.SeverityPass,
			Stage:    domain.StageACL,
			Node:     node.Name,
			Property: domain.PropertyACL,
			Message:  fmt.Sprintf("The ACL found in the %s node matches the required structure: %s", node.Name, raw),
		}}}, nil
	}

	fixed := WrapACL(raw)
	for r := range node.Table.Rows {
		node.Table.Set(r, domain.PropertyACL, fixed)
	}
	return StageResult{Submission: out, Findings: []domain.Finding{{
		Severity: domain.SeverityWarning,
		Stage:    domain.StageACL,
		Node:     node.Name,
		Property: domain.PropertyACL,
		Message:  fmt.Sprintf("The ACL found in the %s node does not match the required structure, it was changed: %s ---> %s", node.Name, raw, fixed),
	}}}, nil
}

// WellFormedACL reports whether s renders as ['<token>'].
func WellFormedACL(s string) bool {
	return len(s) >= 4 && strings.HasPrefix(s, "['") && strings.HasSuffix(s, "']")
}

// WrapACL renders a raw ACL token as ['<token>'].
func WrapACL(raw string) string {
	return "['" + raw + "']"
}
