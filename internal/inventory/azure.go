package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"catcherr/internal/domain"
)

// Compile-time check: AzureLister implements domain.BucketLister.
var _ domain.BucketLister = (*AzureLister)(nil)

// AzureLister lists Azure Blob Storage containers. The bucket name of an
// az:// URL is the container name.
type AzureLister struct {
	client *azblob.Client
}

// NewAzureLister creates a lister using shared-key authentication.
func NewAzureLister(accountName, accountKey string) (*AzureLister, error) {
	if accountName == "" || accountKey == "" {
		return nil, domain.ErrValidation("azure account name and key are required")
	}
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureLister{client: client}, nil
}

// ListBucket returns every blob in the container, following the pager to the end.
func (l *AzureLister) ListBucket(ctx context.Context, container string) ([]domain.BucketObject, error) {
	ref := domain.BucketRef{Scheme: SchemeAzure, Name: container}
	pager := l.client.NewListBlobsFlatPager(container, nil)

	var out []domain.BucketObject
	for pages := 0; pager.More(); pages++ {
		if pages > 0 {
			if err := waitNextPage(ctx); err != nil {
				return nil, err
			}
		}
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, translateAzureError(container, err)
		}
		if resp.Segment == nil {
			continue
		}
		for _, item := range resp.Segment.BlobItems {
			if item == nil || item.Name == nil || strings.HasSuffix(*item.Name, "/") {
				continue
			}
			var size int64
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			out = append(out, newObject(ref, *item.Name, size))
		}
	}
	return out, nil
}

func translateAzureError(container string, err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return domain.ErrNotFound("azure container %q not found", container)
	case bloberror.HasCode(err, bloberror.AuthorizationFailure, bloberror.AuthenticationFailed,
		bloberror.InsufficientAccountPermissions, bloberror.AuthorizationPermissionMismatch):
		return domain.ErrAccessDenied("access to azure container %q denied", container)
	}
	return fmt.Errorf("list azure container %q: %w", container, err)
}
