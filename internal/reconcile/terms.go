package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"catcherr/internal/domain"
)

// TermNormalizer canonicalizes controlled-vocabulary columns and fixes
// values that differ from a permitted term only by case.
type TermNormalizer struct {
	vocab *VocabularyIndex
}

// NewTermNormalizer creates a TermNormalizer over the given index.
func NewTermNormalizer(vocab *VocabularyIndex) *TermNormalizer {
	return &TermNormalizer{vocab: vocab}
}

// Name implements Stage.
func (n *TermNormalizer) Name() string { return domain.StageTerms }

// Apply implements Stage.
func (n *TermNormalizer) Apply(_ context.Context, sub *domain.Submission) (StageResult, error) {
	out := sub.Clone()
	var findings []domain.Finding

	for _, node := range out.Nodes {
		for _, prop := range node.Table.Columns {
			if _, ok := n.vocab.Lookup(prop); !ok {
				continue
			}
			if node.Table.ColumnEmpty(prop) {
				continue
			}
			if n.vocab.IsArray(prop) {
				findings = append(findings, n.normalizeArray(node, prop)...)
			} else {
				findings = append(findings, n.normalizeSingle(node, prop)...)
			}
		}
	}
	return StageResult{Submission: out, Findings: findings}, nil
}

func (n *TermNormalizer) normalizeArray(node *domain.Node, prop string) []domain.Finding {
	t := node.Table
	col := t.Index(prop)

	var observed []string
	seen := map[string]bool{}
	for r := range t.Rows {
		t.Rows[r][col] = CanonicalizeArray(t.Rows[r][col])
		for _, term := range splitTerms(t.Rows[r][col]) {
			if !seen[term] {
				seen[term] = true
				observed = append(observed, term)
			}
		}
	}

	return n.check(node, prop, observed, func(from, to string) {
		for r := range t.Rows {
			terms := splitTerms(t.Rows[r][col])
			if !slices.Contains(terms, from) {
				continue
			}
			for i := range terms {
				if terms[i] == from {
					terms[i] = to
				}
			}
			t.Rows[r][col] = CanonicalizeArray(strings.Join(terms, domain.ArraySeparator))
		}
	})
}

func (n *TermNormalizer) normalizeSingle(node *domain.Node, prop string) []domain.Finding {
	t := node.Table
	col := t.Index(prop)

	var observed []string
	seen := map[string]bool{}
	for _, row := range t.Rows {
		v := row[col]
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		observed = append(observed, v)
	}

	return n.check(node, prop, observed, func(from, to string) {
		for r := range t.Rows {
			if t.Rows[r][col] == from {
				t.Rows[r][col] = to
			}
		}
	})
}

// check compares observed values to the term set and applies replace for
// every unrecognized value with exactly one case-insensitive match.
func (n *TermNormalizer) check(node *domain.Node, prop string, observed []string, replace func(from, to string)) []domain.Finding {
	var unknown []string
	for _, v := range observed {
		if !n.vocab.Permits(prop, v) {
			unknown = append(unknown, v)
		}
	}

	if len(unknown) == 0 {
		return []domain.Finding{{
			Severity: domain.SeverityPass,
			Stage:    domain.StageTerms,
			Node:     node.Name,
			Property: prop,
			Message:  fmt.Sprintf("%s, property contains all valid values.", prop),
		}}
	}

	var findings []domain.Finding
	for _, v := range unknown {
		findings = append(findings, domain.Finding{
			Severity: domain.SeverityError,
			Stage:    domain.StageTerms,
			Node:     node.Name,
			Property: prop,
			Message:  fmt.Sprintf("%s property contains a value that is not recognized: %s", prop, v),
		})

		matches := n.vocab.CaseInsensitiveMatches(prop, v)
		if len(matches) != 1 {
			continue
		}
		replace(v, matches[0])
		findings = append(findings, domain.Finding{
			Severity: domain.SeverityWarning,
			Stage:    domain.StageTerms,
			Node:     node.Name,
			Property: prop,
			Message:  fmt.Sprintf("The value in %s was changed: %s ---> %s", prop, v, matches[0]),
		})
	}
	return findings
}

// CanonicalizeArray trims terms of a multi-valued cell, drops empty and
// duplicate ones and sorts the rest case-insensitively. It is idempotent.
func CanonicalizeArray(cell string) string {
	if cell == "" {
		return ""
	}
	terms := splitTerms(cell)
	slices.SortStableFunc(terms, func(a, b string) int {
		if c := strings.Compare(fold(a), fold(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return strings.Join(terms, domain.ArraySeparator)
}

// splitTerms splits a cell on the array separator, trimming surrounding
// whitespace and dropping empty tokens and duplicates while keeping
// first-appearance order.
func splitTerms(cell string) []string {
	if cell == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, t := range strings.Split(cell, domain.ArraySeparator) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
