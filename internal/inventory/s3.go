package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"catcherr/internal/domain"
)

// Compile-time check: S3Lister implements domain.BucketLister.
var _ domain.BucketLister = (*S3Lister)(nil)

// S3Config holds connection settings for S3 and S3-compatible stores.
// Without a key pair requests are sent anonymously (public buckets).
type S3Config struct {
	KeyID    string
	Secret   string
	Endpoint string // host[:port] or full URL; empty uses AWS
	Region   string
	URLStyle string // "path" or "vhost"
}

// S3Lister lists S3 buckets with ListObjectsV2, following continuation tokens.
type S3Lister struct {
	client s3.ListObjectsV2APIClient
}

// NewS3Lister creates a lister from static configuration.
func NewS3Lister(cfg S3Config) *S3Lister {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.URLStyle == "path",
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.KeyID != "" && cfg.Secret != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.Secret, "")
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return &S3Lister{client: s3.New(opts)}
}

// NewS3ListerFromClient wraps an existing client.
func NewS3ListerFromClient(client s3.ListObjectsV2APIClient) *S3Lister {
	return &S3Lister{client: client}
}

// ListBucket returns every object in the bucket. Directory placeholder keys
// (ending in "/") are skipped. A failure on any page discards the listing.
func (l *S3Lister) ListBucket(ctx context.Context, bucket string) ([]domain.BucketObject, error) {
	ref := domain.BucketRef{Scheme: SchemeS3, Name: bucket}
	p := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})

	var out []domain.BucketObject
	for pages := 0; p.HasMorePages(); pages++ {
		if pages > 0 {
			if err := waitNextPage(ctx); err != nil {
				return nil, err
			}
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, translateS3Error(bucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, newObject(ref, key, aws.ToInt64(obj.Size)))
		}
	}
	return out, nil
}

func translateS3Error(bucket string, err error) error {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return domain.ErrNotFound("s3 bucket %q not found", bucket)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NotFound":
			return domain.ErrNotFound("s3 bucket %q not found", bucket)
		case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return domain.ErrAccessDenied("access to s3 bucket %q denied: %s", bucket, apiErr.ErrorCode())
		}
	}
	return fmt.Errorf("list s3 bucket %q: %w", bucket, err)
}
