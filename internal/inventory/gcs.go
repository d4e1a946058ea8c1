package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"catcherr/internal/domain"
)

// Compile-time check: GCSLister implements domain.BucketLister.
var _ domain.BucketLister = (*GCSLister)(nil)

// GCSLister lists Google Cloud Storage buckets.
type GCSLister struct {
	client *storage.Client
}

// NewGCSLister creates a lister. With an empty keyFile, application default
// credentials are used.
func NewGCSLister(ctx context.Context, keyFile string) (*GCSLister, error) {
	var opts []option.ClientOption
	if keyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, keyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSLister{client: client}, nil
}

// Close releases the underlying client.
func (l *GCSLister) Close() error {
	return l.client.Close()
}

// ListBucket returns every object in the bucket, iterating all pages.
func (l *GCSLister) ListBucket(ctx context.Context, bucket string) ([]domain.BucketObject, error) {
	ref := domain.BucketRef{Scheme: SchemeGCS, Name: bucket}
	it := l.client.Bucket(bucket).Objects(ctx, nil)

	var out []domain.BucketObject
	for started := false; ; started = true {
		// The iterator fetches the next page once the buffered one is drained.
		if info := it.PageInfo(); started && info.Remaining() == 0 && info.Token != "" {
			if err := waitNextPage(ctx); err != nil {
				return nil, err
			}
		}
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translateGCSError(bucket, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		out = append(out, newObject(ref, attrs.Name, attrs.Size))
	}
	return out, nil
}

func translateGCSError(bucket string, err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return domain.ErrNotFound("gcs bucket %q not found", bucket)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return domain.ErrNotFound("gcs bucket %q not found", bucket)
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.ErrAccessDenied("access to gcs bucket %q denied: %s", bucket, gerr.Message)
		}
	}
	return fmt.Errorf("list gcs bucket %q: %w", bucket, err)
}
