package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"catcherr/internal/domain"
	"catcherr/internal/inventory"
)

// Strategy names recorded with each run.
const (
	StrategyLocal     = "local"
	StrategyInventory = "inventory"
)

// URLReconciler repairs file_url_in_cds values. Without an inventory
// provider it repairs URLs from the row's own file_name (local strategy);
// with one it matches rows to bucket objects by (file_name, file_size).
type URLReconciler struct {
	inventory domain.InventoryProvider
	logger    *slog.Logger
}

// NewURLReconciler creates a URLReconciler. provider may be nil.
func NewURLReconciler(provider domain.InventoryProvider, logger *slog.Logger) *URLReconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &URLReconciler{inventory: provider, logger: logger}
}

// Name implements Stage.
func (u *URLReconciler) Name() string { return domain.StageURLs }

// Strategy returns the strategy this reconciler applies.
func (u *URLReconciler) Strategy() string {
	if u.inventory == nil {
		return StrategyLocal
	}
	return StrategyInventory
}

// Apply implements Stage.
func (u *URLReconciler) Apply(ctx context.Context, sub *domain.Submission) (StageResult, error) {
	out := sub.Clone()
	if u.inventory == nil {
		var findings []domain.Finding
		for _, node := range out.Nodes {
			if node.Table.Has(domain.PropertyFileURL) {
				findings = append(findings, repairLocal(node)...)
			}
		}
		return StageResult{Submission: out, Findings: findings}, nil
	}

	if err := ctx.Err(); err != nil {
		return StageResult{}, err
	}
	return StageResult{Submission: out, Findings: u.repairFromInventory(ctx, out)}, nil
}

func urlFinding(sev domain.Severity, node string, row int, format string, args ...any) domain.Finding {
	return domain.Finding{
		Severity: sev,
		Stage:    domain.StageURLs,
		Node:     node,
		Property: domain.PropertyFileURL,
		Row:      row,
		Message:  fmt.Sprintf(format, args...),
	}
}

// repairLocal appends the file name to URLs that only point at a bucket or directory.
func repairLocal(node *domain.Node) []domain.Finding {
	t := node.Table
	var findings []domain.Finding
	for r := range t.Rows {
		url := t.Get(r, domain.PropertyFileURL)
		if url == "" {
			continue
		}
		name := t.Get(r, domain.PropertyFileName)
		fixed, ok := RepairURL(url, name)
		switch {
		case !ok:
			findings = append(findings, urlFinding(domain.SeverityError, node.Name, r+1,
				"There is an unresolvable issue with the file url for file: %s", name))
		case fixed != url:
			t.Set(r, domain.PropertyFileURL, fixed)
			findings = append(findings, urlFinding(domain.SeverityWarning, node.Name, r+1,
				"The file location for the file, %s, has been changed: %s ---> %s", name, url, fixed))
		}
	}
	if len(findings) == 0 {
		findings = append(findings, urlFinding(domain.SeverityPass, node.Name, 0,
			"All file urls end with their file names."))
	}
	return findings
}

// RepairURL returns the URL to use for a file. ok is false when the URL
// cannot be repaired: the name is empty, appears in the URL without being
// its final segment, or cannot form a final segment.
func RepairURL(url, name string) (fixed string, ok bool) {
	if name == "" {
		return url, false
	}
	if strings.Contains(url, name) {
		return url, inventory.BaseName(url) == name
	}
	base := url
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	fixed = base + name
	if inventory.BaseName(fixed) != name {
		return url, false
	}
	return fixed, true
}

type objectKey struct {
	name string
	size int64
}

// repairFromInventory lists every referenced bucket once, then matches each
// node's rows against the inventories of the buckets that node references.
func (u *URLReconciler) repairFromInventory(ctx context.Context, sub *domain.Submission) []domain.Finding {
	nodeRefs := map[string][]domain.BucketRef{}
	var all []domain.BucketRef
	seen := map[domain.BucketRef]bool{}
	for _, node := range sub.Nodes {
		if !node.Table.Has(domain.PropertyFileURL) {
			continue
		}
		local := map[domain.BucketRef]bool{}
		for _, url := range node.Table.Column(domain.PropertyFileURL) {
			if url == "" {
				continue
			}
			ref, _, err := inventory.ParseObjectURL(url)
			if err != nil || local[ref] {
				continue
			}
			local[ref] = true
			nodeRefs[node.Name] = append(nodeRefs[node.Name], ref)
			if !seen[ref] {
				seen[ref] = true
				all = append(all, ref)
			}
		}
	}

	var results map[domain.BucketRef]domain.InventoryResult
	if len(all) > 0 {
		results = u.inventory.Inventory(ctx, all)
	}

	var findings []domain.Finding
	for _, node := range sub.Nodes {
		if !node.Table.Has(domain.PropertyFileURL) {
			continue
		}
		findings = append(findings, u.repairNode(node, nodeRefs[node.Name], results)...)
	}
	return findings
}

func (u *URLReconciler) repairNode(node *domain.Node, refs []domain.BucketRef, results map[domain.BucketRef]domain.InventoryResult) []domain.Finding {
	t := node.Table
	var findings []domain.Finding

	hasURL := false
	for _, url := range t.Column(domain.PropertyFileURL) {
		if url != "" {
			hasURL = true
			break
		}
	}
	if !hasURL {
		return []domain.Finding{urlFinding(domain.SeverityWarning, node.Name, 0,
			"There is no bucket associated with this node's files.")}
	}

	failed := map[domain.BucketRef]bool{}
	paths := map[string]bool{}
	byKey := map[objectKey][]string{}
	for _, ref := range refs {
		res, ok := results[ref]
		if !ok || res.Err != nil {
			failed[ref] = true
			reason := "no inventory was returned"
			if ok {
				reason = res.Err.Error()
			}
			u.logger.Warn("bucket inventory unavailable", "node", node.Name, "bucket", ref.String(), "error", reason)
			findings = append(findings, urlFinding(domain.SeverityWarning, node.Name, 0,
				"The bucket %s could not be listed, its files were not checked: %s", ref, reason))
			continue
		}
		for _, obj := range res.Objects {
			paths[obj.Path] = true
			k := objectKey{name: obj.Name, size: obj.Size}
			if !slices.Contains(byKey[k], obj.Path) {
				byKey[k] = append(byKey[k], obj.Path)
			}
		}
	}

	for r := range t.Rows {
		url := t.Get(r, domain.PropertyFileURL)
		if url == "" {
			continue
		}
		name := t.Get(r, domain.PropertyFileName)
		ref, key, err := inventory.ParseObjectURL(url)
		if err != nil {
			findings = append(findings, urlFinding(domain.SeverityError, node.Name, r+1,
				"The file url for file, %s, could not be parsed: %v", name, err))
			continue
		}
		// Listed paths carry the lower-case scheme.
		if failed[ref] || paths[inventory.ObjectURL(ref, key)] {
			continue
		}

		size, err := ParseFileSize(t.Get(r, domain.PropertyFileSize))
		if err != nil {
			findings = append(findings, urlFinding(domain.SeverityError, node.Name, r+1,
				"There is an unresolvable issue with the file url for file: %s (file_size %q is not a byte count)", name, t.Get(r, domain.PropertyFileSize)))
			continue
		}

		candidates := byKey[objectKey{name: name, size: size}]
		switch len(candidates) {
		case 1:
			t.Set(r, domain.PropertyFileURL, candidates[0])
			findings = append(findings, urlFinding(domain.SeverityWarning, node.Name, r+1,
				"The file location for the file, %s, has been changed: %s ---> %s", name, url, candidates[0]))
		case 0:
			findings = append(findings, urlFinding(domain.SeverityError, node.Name, r+1,
				"There is an unresolvable issue with the file url for file: %s (no object with this name and size was found)", name))
		default:
			sorted := slices.Sorted(slices.Values(candidates))
			findings = append(findings, urlFinding(domain.SeverityError, node.Name, r+1,
				"There is an unresolvable issue with the file url for file: %s (%d objects match: %s)", name, len(sorted), strings.Join(sorted, ", ")))
		}
	}

	if len(findings) == 0 {
		findings = append(findings, urlFinding(domain.SeverityPass, node.Name, 0,
			"All file urls were found in their bucket inventories."))
	}
	return findings
}

// ParseFileSize parses a byte count. Integral floats such as "1024.0", as
// produced by spreadsheet exports, are accepted.
func ParseFileSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, domain.ErrValidation("invalid file size %q", s)
	}
	return int64(f), nil
}
