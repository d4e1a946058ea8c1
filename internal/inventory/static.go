package inventory

import (
	"context"
	"slices"

	"catcherr/internal/domain"
)

// Compile-time check: StaticLister implements domain.BucketLister.
var _ domain.BucketLister = (*StaticLister)(nil)

// StaticLister serves inventories held in memory, e.g. loaded from an
// exported manifest, for one URL scheme. Unknown buckets are reported as
// not found.
type StaticLister struct {
	scheme  string
	buckets map[string][]domain.BucketObject
}

// NewStaticLister indexes the objects of one scheme by the bucket of their
// path. Objects of other schemes and paths that cannot be parsed are
// ignored. Paths are rendered with a lower-case scheme; Name is derived from
// the path when empty.
func NewStaticLister(scheme string, objects []domain.BucketObject) *StaticLister {
	l := &StaticLister{scheme: scheme, buckets: map[string][]domain.BucketObject{}}
	for _, obj := range objects {
		ref, key, err := ParseObjectURL(obj.Path)
		if err != nil || key == "" || ref.Scheme != scheme {
			continue
		}
		obj.Path = ObjectURL(ref, key)
		if obj.Name == "" {
			obj.Name = BaseName(key)
		}
		l.buckets[ref.Name] = append(l.buckets[ref.Name], obj)
	}
	return l
}

// ListBucket implements domain.BucketLister.
func (l *StaticLister) ListBucket(ctx context.Context, bucket string) ([]domain.BucketObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objs, ok := l.buckets[bucket]
	if !ok {
		return nil, domain.ErrNotFound("bucket %s://%s is not in the inventory manifest", l.scheme, bucket)
	}
	return slices.Clone(objs), nil
}
