package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"catcherr/internal/domain"
)

// GUIDGroup is a set of rows that refer to the same physical file.
type GUIDGroup struct {
	FileURL  string
	MD5Sum   string
	Rows     []int    // 0-based row indexes
	Existing []string // distinct GUIDs other rows of the same file already carry
}

type guidKey struct {
	url string
	md5 string
}

// existingGUIDs collects the distinct GUIDs already present per
// (file_url_in_cds, md5sum), with keys in order of first appearance.
func existingGUIDs(t *domain.Table) ([]guidKey, map[guidKey][]string) {
	var order []guidKey
	seen := map[guidKey][]string{}
	for r := range t.Rows {
		guid := t.Get(r, domain.PropertyGUID)
		url := t.Get(r, domain.PropertyFileURL)
		md5 := t.Get(r, domain.PropertyMD5)
		if guid == "" || url == "" || md5 == "" {
			continue
		}
		k := guidKey{url: url, md5: md5}
		ids, ok := seen[k]
		if !ok {
			order = append(order, k)
		}
		if !slices.Contains(ids, guid) {
			seen[k] = append(ids, guid)
		}
	}
	return order, seen
}

// GroupUnassigned groups rows without a GUID by (file_url_in_cds, md5sum),
// in order of first appearance. Rows with a URL but no md5sum cannot be
// grouped and are returned separately. Rows without a URL are ignored.
func GroupUnassigned(t *domain.Table) (groups []GUIDGroup, missingMD5 []int) {
	_, existing := existingGUIDs(t)
	pos := map[guidKey]int{}
	for r := range t.Rows {
		if t.Get(r, domain.PropertyGUID) != "" {
			continue
		}
		url := t.Get(r, domain.PropertyFileURL)
		if url == "" {
			continue
		}
		md5 := t.Get(r, domain.PropertyMD5)
		if md5 == "" {
			missingMD5 = append(missingMD5, r)
			continue
		}
		k := guidKey{url: url, md5: md5}
		i, ok := pos[k]
		if !ok {
			i = len(groups)
			pos[k] = i
			groups = append(groups, GUIDGroup{FileURL: url, MD5Sum: md5, Existing: existing[k]})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}
	return groups, missingMD5
}

// GUIDAssigner mints one identifier per unassigned (url, md5sum) group. A
// group whose file already carries a GUID on another row reuses it.
type GUIDAssigner struct {
	newGUID func() string
}

// NewGUIDAssigner creates a GUIDAssigner. A nil generator uses domain.NewFileGUID.
func NewGUIDAssigner(newGUID func() string) *GUIDAssigner {
	if newGUID == nil {
		newGUID = domain.NewFileGUID
	}
	return &GUIDAssigner{newGUID: newGUID}
}

// Name implements Stage.
func (g *GUIDAssigner) Name() string { return domain.StageGUIDs }

// Apply implements Stage. Existing identifiers are never overwritten.
func (g *GUIDAssigner) Apply(_ context.Context, sub *domain.Submission) (StageResult, error) {
	out := sub.Clone()
	res := StageResult{Submission: out}

	for _, node := range out.Nodes {
		t := node.Table
		if !t.Has(domain.PropertyFileURL) {
			continue
		}
		t.AddColumn(domain.PropertyGUID)

		groups, missing := GroupUnassigned(t)
		for _, r := range missing {
			res.Findings = append(res.Findings, domain.Finding{
				Severity: domain.SeverityWarning,
				Stage:    domain.StageGUIDs,
				Node:     node.Name,
				Property: domain.PropertyMD5,
				Row:      r + 1,
				Message:  fmt.Sprintf("The file, %s, has no md5sum on row %d; no guid was assigned.", t.Get(r, domain.PropertyFileName), r+1),
			})
		}

		order, existing := existingGUIDs(t)
		for _, k := range order {
			if ids := existing[k]; len(ids) > 1 {
				res.Findings = append(res.Findings, guidFinding(domain.SeverityError, node.Name,
					"The file, %s, with md5sum %s carries more than one guid: %s. Only one guid may identify a file.",
					k.url, k.md5, strings.Join(ids, ", ")))
			}
		}

		minted, rows := 0, 0
		for _, grp := range groups {
			if len(grp.Existing) > 1 {
				continue // conflicting guids, reported above
			}
			if len(grp.Existing) == 1 {
				for _, r := range grp.Rows {
					t.Set(r, domain.PropertyGUID, grp.Existing[0])
				}
				res.Findings = append(res.Findings, guidFinding(domain.SeverityWarning, node.Name,
					"The file, %s, already has the guid %s; it was reused for %d row(s) without one.",
					grp.FileURL, grp.Existing[0], len(grp.Rows)))
				continue
			}

			id := g.newGUID()
			for _, r := range grp.Rows {
				t.Set(r, domain.PropertyGUID, id)
			}
			minted++
			rows += len(grp.Rows)
			res.GUIDs = append(res.GUIDs, domain.GUIDAssignment{
				Node:    node.Name,
				FileURL: grp.FileURL,
				MD5Sum:  grp.MD5Sum,
				GUID:    id,
				Rows:    len(grp.Rows),
			})
		}
		if minted > 0 {
			res.Findings = append(res.Findings, guidFinding(domain.SeverityPass, node.Name,
				"%d guid(s) were assigned to %d file row(s).", minted, rows))
		}
	}
	return res, nil
}

func guidFinding(sev domain.Severity, node, format string, args ...any) domain.Finding {
	return domain.Finding{
		Severity: sev,
		Stage:    domain.StageGUIDs,
		Node:     node,
		Property: domain.PropertyGUID,
		Message:  fmt.Sprintf(format, args...),
	}
}
