package reconcile

import (
	"context"
	"fmt"
	"strings"

	"catcherr/internal/domain"
)

// nonPortableGlyphs do not survive conversion into some downstream file types.
const nonPortableGlyphs = "®™©"

var glyphReplacer = strings.NewReplacer(
	"®", "(R)",
	"™", "(TM)",
	"©", "(C)",
)

// CharacterSanitizer replaces non-portable glyphs with ASCII equivalents.
type CharacterSanitizer struct{}

// NewCharacterSanitizer creates a CharacterSanitizer.
func NewCharacterSanitizer() *CharacterSanitizer { return &CharacterSanitizer{} }

// Name implements Stage.
func (s *CharacterSanitizer) Name() string { return domain.StageCharacters }

// Apply implements Stage. Every affected row is reported per column, then
// the whole node is rewritten.
func (s *CharacterSanitizer) Apply(_ context.Context, sub *domain.Submission) (StageResult, error) {
	out := sub.Clone()
	var findings []domain.Finding

	for _, node := range out.Nodes {
		t := node.Table
		flagged := false
		for c, col := range t.Columns {
			for r, row := range t.Rows {
				if !strings.ContainsAny(row[c], nonPortableGlyphs) {
					continue
				}
				flagged = true
				findings = append(findings, domain.Finding{
					Severity: domain.SeverityWarning,
					Stage:    domain.StageCharacters,
					Node:     node.Name,
					Property: col,
					Row:      r + 1,
					Message:  fmt.Sprintf("The property, %s, contained a non-portable character on row: %d", col, r+1),
				})
			}
		}
		if !flagged {
			continue
		}
		for r, row := range t.Rows {
			for c := range row {
				t.Rows[r][c] = SanitizeGlyphs(row[c])
			}
		}
	}
	return StageResult{Submission: out, Findings: findings}, nil
}

// SanitizeGlyphs maps ®, ™ and © to (R), (TM) and (C).
func SanitizeGlyphs(s string) string {
	return glyphReplacer.Replace(s)
}
