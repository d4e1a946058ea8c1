package domain

import "context"

// BucketRef identifies one bucket or container. Scheme selects the store ("s3", "gs", "az").
type BucketRef struct {
	Scheme string
	Name   string
}

// String renders the ref as scheme://name.
func (b BucketRef) String() string {
	return b.Scheme + "://" + b.Name
}

// BucketObject is one entry of a bucket inventory.
type BucketObject struct {
	Path string // full URL: scheme://bucket/key
	Name string // final path segment
	Size int64
}

// InventoryResult is the outcome of listing one bucket.
// Err is set when the bucket was missing or inaccessible; Objects is then nil.
type InventoryResult struct {
	Objects []BucketObject
	Err     error
}

// InventoryProvider returns complete inventories for a set of buckets.
// Implemented by inventory.Fetcher.
type InventoryProvider interface {
	Inventory(ctx context.Context, buckets []BucketRef) map[BucketRef]InventoryResult
}

// BucketLister lists every object of one bucket, consuming all pages.
// Implemented by inventory.S3Lister, GCSLister, AzureLister and StaticLister.
type BucketLister interface {
	ListBucket(ctx context.Context, bucket string) ([]BucketObject, error)
}
