// Package inventory lists object-store buckets and serves their contents to
// the URL reconciler.
package inventory

import (
	"fmt"
	"strings"

	"catcherr/internal/domain"
)

// Supported URL schemes.
const (
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeAzure = "az"
)

// ParseObjectURL extracts the bucket and key from a "scheme://bucket/path/to/file" URL.
// Unlike a strict object path the key may be empty, so "s3://bucket/" parses
// to bucket "bucket" and key "".
func ParseObjectURL(raw string) (domain.BucketRef, string, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return domain.BucketRef{}, "", domain.ErrValidation("missing scheme in object url %q", raw)
	}
	scheme = strings.ToLower(scheme)
	switch scheme {
	case SchemeS3, SchemeGCS, SchemeAzure:
	default:
		return domain.BucketRef{}, "", domain.ErrValidation("unsupported scheme %q in object url %q", scheme, raw)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return domain.BucketRef{}, "", domain.ErrValidation("empty bucket in object url %q", raw)
	}
	return domain.BucketRef{Scheme: scheme, Name: bucket}, key, nil
}

// ObjectURL renders the full URL of a key inside a bucket.
func ObjectURL(ref domain.BucketRef, key string) string {
	return fmt.Sprintf("%s://%s/%s", ref.Scheme, ref.Name, strings.TrimPrefix(key, "/"))
}

// BaseName returns the final path segment of a key or URL.
func BaseName(p string) string {
	return p[strings.LastIndex(p, "/")+1:]
}

// newObject builds a BucketObject for a listed key.
func newObject(ref domain.BucketRef, key string, size int64) domain.BucketObject {
	return domain.BucketObject{
		Path: ObjectURL(ref, key),
		Name: BaseName(key),
		Size: size,
	}
}
