package inventory

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type limiterKey struct{}

// withPageLimiter attaches the limiter that gates follow-up page requests of
// a listing. The first request of an attempt is gated by the Fetcher itself.
func withPageLimiter(ctx context.Context, l *rate.Limiter) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, limiterKey{}, l)
}

// waitNextPage blocks until the limiter attached to ctx admits another page
// request. Without a limiter it only reports cancellation.
func waitNextPage(ctx context.Context) error {
	l, ok := ctx.Value(limiterKey{}).(*rate.Limiter)
	if !ok {
		return ctx.Err()
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	return nil
}
