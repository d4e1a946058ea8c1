package inventory

import (
	"sort"

	"catcherr/internal/domain"
)

// Router selects a lister by URL scheme.
type Router struct {
	listers map[string]domain.BucketLister
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{listers: map[string]domain.BucketLister{}}
}

// Register installs the lister for a scheme, replacing any previous one.
func (r *Router) Register(scheme string, l domain.BucketLister) {
	r.listers[scheme] = l
}

// Lister returns the lister for a scheme.
func (r *Router) Lister(scheme string) (domain.BucketLister, error) {
	l, ok := r.listers[scheme]
	if !ok {
		return nil, domain.ErrValidation("no inventory lister configured for %s:// urls", scheme)
	}
	return l, nil
}

// Schemes returns the registered schemes in sorted order.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.listers))
	for s := range r.listers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
