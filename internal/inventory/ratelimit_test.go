package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestWaitNextPage_WithoutLimiter(t *testing.T) {
	require.NoError(t, waitNextPage(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitNextPage(ctx), context.Canceled)
}

func TestS3Lister_FollowUpPagesTakeLimiterTokens(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 2)
	ctx := withPageLimiter(context.Background(), lim)

	objs, err := NewS3ListerFromClient(&fakeS3{pages: twoPages()}).ListBucket(ctx, "bucket")
	require.NoError(t, err)
	assert.Len(t, objs, 2)
	// Two pages: the second request took one token.
	assert.InDelta(t, 1, lim.Tokens(), 0.01)
}

func TestS3Lister_ExhaustedLimiterStopsPagination(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, lim.Allow())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fake := &fakeS3{pages: twoPages()}
	_, err := NewS3ListerFromClient(fake).ListBucket(withPageLimiter(ctx, lim), "bucket")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, []string{"bucket"}, fake.buckets)
}
