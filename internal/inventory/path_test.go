package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catcherr/internal/domain"
)

func TestParseObjectURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantRef domain.BucketRef
		wantKey string
		wantErr bool
	}{
		{
			name:    "s3",
			input:   "s3://my-bucket/path/to/file.bam",
			wantRef: domain.BucketRef{Scheme: "s3", Name: "my-bucket"},
			wantKey: "path/to/file.bam",
		},
		{
			name:    "gcs",
			input:   "gs://bucket/a.cram",
			wantRef: domain.BucketRef{Scheme: "gs", Name: "bucket"},
			wantKey: "a.cram",
		},
		{
			name:    "azure_upper_scheme",
			input:   "AZ://container/dir/x.txt",
			wantRef: domain.BucketRef{Scheme: "az", Name: "container"},
			wantKey: "dir/x.txt",
		},
		{
			name:    "bucket_only",
			input:   "s3://bucket/",
			wantRef: domain.BucketRef{Scheme: "s3", Name: "bucket"},
			wantKey: "",
		},
		{
			name:    "bucket_without_slash",
			input:   "s3://bucket",
			wantRef: domain.BucketRef{Scheme: "s3", Name: "bucket"},
		},
		{
			name:    "unsupported_scheme",
			input:   "https://bucket/key",
			wantErr: true,
		},
		{
			name:    "no_scheme",
			input:   "bucket/key",
			wantErr: true,
		},
		{
			name:    "empty_bucket",
			input:   "s3:///key",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, key, err := ParseObjectURL(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var verr *domain.ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRef, ref)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestObjectURL(t *testing.T) {
	ref := domain.BucketRef{Scheme: "s3", Name: "bucket"}
	assert.Equal(t, "s3://bucket/a/b.bam", ObjectURL(ref, "a/b.bam"))
	assert.Equal(t, "s3://bucket/a/b.bam", ObjectURL(ref, "/a/b.bam"))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "b.bam", BaseName("s3://bucket/a/b.bam"))
	assert.Equal(t, "b.bam", BaseName("b.bam"))
	assert.Equal(t, "", BaseName("s3://bucket/a/"))
}
