package inventory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catcherr/internal/domain"
	"catcherr/internal/testutil"
)

// countingLister wraps a listing function and counts calls per bucket.
type countingLister struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ctx context.Context, bucket string, call int) ([]domain.BucketObject, error)
}

func newCountingLister(fn func(ctx context.Context, bucket string, call int) ([]domain.BucketObject, error)) *countingLister {
	return &countingLister{calls: map[string]int{}, fn: fn}
}

func (l *countingLister) ListBucket(ctx context.Context, bucket string) ([]domain.BucketObject, error) {
	l.mu.Lock()
	l.calls[bucket]++
	n := l.calls[bucket]
	l.mu.Unlock()
	return l.fn(ctx, bucket, n)
}

func (l *countingLister) count(bucket string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[bucket]
}

func s3Ref(name string) domain.BucketRef {
	return domain.BucketRef{Scheme: SchemeS3, Name: name}
}

func testFetcher(l domain.BucketLister, cfg FetcherConfig) *Fetcher {
	r := NewRouter()
	r.Register(SchemeS3, l)
	return NewFetcher(r, cfg, slog.New(slog.DiscardHandler))
}

func fastConfig() FetcherConfig {
	return FetcherConfig{Concurrency: 4, Attempts: 3, Backoff: time.Millisecond}
}

func TestFetcher_RetriesTransientErrors(t *testing.T) {
	obj := domain.BucketObject{Path: "s3://b/x.bam", Name: "x.bam", Size: 1}
	l := newCountingLister(func(_ context.Context, _ string, call int) ([]domain.BucketObject, error) {
		if call < 3 {
			return nil, errors.New("throttled")
		}
		return []domain.BucketObject{obj}, nil
	})

	got := testFetcher(l, fastConfig()).Inventory(context.Background(), []domain.BucketRef{s3Ref("b")})

	require.Contains(t, got, s3Ref("b"))
	res := got[s3Ref("b")]
	require.NoError(t, res.Err)
	assert.Equal(t, []domain.BucketObject{obj}, res.Objects)
	assert.Equal(t, 3, l.count("b"))
}

func TestFetcher_GivesUpAfterAttempts(t *testing.T) {
	l := newCountingLister(func(context.Context, string, int) ([]domain.BucketObject, error) {
		return nil, errors.New("throttled")
	})
	cfg := fastConfig()
	cfg.Attempts = 2

	res := testFetcher(l, cfg).Inventory(context.Background(), []domain.BucketRef{s3Ref("b")})[s3Ref("b")]

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "throttled")
	assert.Equal(t, 2, l.count("b"))
}

func TestFetcher_PermanentErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "not_found", err: domain.ErrNotFound("bucket missing")},
		{name: "access_denied", err: domain.ErrAccessDenied("denied")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newCountingLister(func(context.Context, string, int) ([]domain.BucketObject, error) {
				return nil, tt.err
			})
			res := testFetcher(l, fastConfig()).Inventory(context.Background(), []domain.BucketRef{s3Ref("b")})[s3Ref("b")]
			require.Error(t, res.Err)
			assert.True(t, domain.IsPermanent(res.Err))
			assert.Equal(t, 1, l.count("b"))
		})
	}
}

func TestFetcher_FailureIsolatedPerBucket(t *testing.T) {
	l := newCountingLister(func(_ context.Context, bucket string, _ int) ([]domain.BucketObject, error) {
		if bucket == "bad" {
			return nil, domain.ErrNotFound("bucket %q not found", bucket)
		}
		return []domain.BucketObject{{Path: "s3://good/a", Name: "a"}}, nil
	})

	got := testFetcher(l, fastConfig()).Inventory(context.Background(), []domain.BucketRef{s3Ref("good"), s3Ref("bad")})

	require.Len(t, got, 2)
	assert.NoError(t, got[s3Ref("good")].Err)
	assert.Len(t, got[s3Ref("good")].Objects, 1)
	assert.Error(t, got[s3Ref("bad")].Err)
}

func TestFetcher_UnknownScheme(t *testing.T) {
	l := newCountingLister(func(context.Context, string, int) ([]domain.BucketObject, error) {
		return nil, nil
	})
	ref := domain.BucketRef{Scheme: SchemeGCS, Name: "b"}

	res := testFetcher(l, fastConfig()).Inventory(context.Background(), []domain.BucketRef{ref})[ref]

	var verr *domain.ValidationError
	assert.ErrorAs(t, res.Err, &verr)
	assert.Equal(t, 0, l.count("b"))
}

func TestFetcher_CachesResults(t *testing.T) {
	l := newCountingLister(func(context.Context, string, int) ([]domain.BucketObject, error) {
		return []domain.BucketObject{{Path: "s3://b/a", Name: "a"}}, nil
	})
	f := testFetcher(l, fastConfig())

	refs := []domain.BucketRef{s3Ref("b"), s3Ref("b")}
	first := f.Inventory(context.Background(), refs)
	second := f.Inventory(context.Background(), refs)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, l.count("b"))
}

func TestFetcher_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	l := newCountingLister(func(context.Context, string, int) ([]domain.BucketObject, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	})
	cfg := fastConfig()
	cfg.Concurrency = 2

	var refs []domain.BucketRef
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		refs = append(refs, s3Ref(name))
	}
	got := testFetcher(l, cfg).Inventory(context.Background(), refs)

	assert.Len(t, got, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFetcher_CancelledContext(t *testing.T) {
	l := newCountingLister(func(context.Context, string, int) ([]domain.BucketObject, error) {
		return nil, errors.New("unreachable")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := testFetcher(l, fastConfig()).Inventory(ctx, []domain.BucketRef{s3Ref("b")})[s3Ref("b")]

	require.Error(t, res.Err)
	assert.LessOrEqual(t, l.count("b"), 1)
}

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher(NewRouter(), FetcherConfig{}, nil)
	assert.Equal(t, 8, f.cfg.Concurrency)
	assert.Equal(t, 3, f.cfg.Attempts)
	assert.NotNil(t, f.logger)
}

func TestFetcher_RoutesBySchemeAndDedupes(t *testing.T) {
	s3 := &testutil.MockBucketLister{ListBucketFn: func(_ context.Context, bucket string) ([]domain.BucketObject, error) {
		return []domain.BucketObject{{Path: "s3://" + bucket + "/a.bam", Name: "a.bam", Size: 1}}, nil
	}}
	gcs := &testutil.MockBucketLister{ListBucketFn: func(_ context.Context, bucket string) ([]domain.BucketObject, error) {
		return []domain.BucketObject{{Path: "gs://" + bucket + "/b.bam", Name: "b.bam", Size: 2}}, nil
	}}
	r := NewRouter()
	r.Register(SchemeS3, s3)
	r.Register(SchemeGCS, gcs)
	f := NewFetcher(r, fastConfig(), nil)

	gsRef := domain.BucketRef{Scheme: SchemeGCS, Name: "g"}
	got := f.Inventory(context.Background(), []domain.BucketRef{s3Ref("b"), gsRef, s3Ref("b")})

	require.Len(t, got, 2)
	assert.Equal(t, "a.bam", got[s3Ref("b")].Objects[0].Name)
	assert.Equal(t, "b.bam", got[gsRef].Objects[0].Name)
	assert.Equal(t, []string{"b"}, s3.Calls())
	assert.Equal(t, []string{"g"}, gcs.Calls())
}
