package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"catcherr/internal/domain"
)

// Compile-time check: Fetcher implements domain.InventoryProvider.
var _ domain.InventoryProvider = (*Fetcher)(nil)

// FetcherConfig bounds how buckets are listed.
type FetcherConfig struct {
	Concurrency int           // max buckets listed at once
	RPS         float64       // shared rate of page requests across all buckets; <= 0 means unlimited
	Burst       int           // limiter burst
	Attempts    int           // total tries per bucket
	Timeout     time.Duration // per attempt; 0 disables
	Backoff     time.Duration // first retry delay, doubled per attempt
}

// DefaultFetcherConfig returns the defaults used when nothing is configured.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Concurrency: 8,
		RPS:         10,
		Burst:       10,
		Attempts:    3,
		Timeout:     2 * time.Minute,
		Backoff:     500 * time.Millisecond,
	}
}

// Fetcher lists buckets concurrently through a Router. Each bucket is listed
// at most once per Fetcher; results, including failures, are cached.
type Fetcher struct {
	router  *Router
	cfg     FetcherConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[domain.BucketRef]domain.InventoryResult
}

// NewFetcher creates a Fetcher. Zero config fields fall back to defaults.
func NewFetcher(router *Router, cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	def := DefaultFetcherConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{
		router:  router,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
		cache:   map[domain.BucketRef]domain.InventoryResult{},
	}
}

// Inventory lists every requested bucket. A bucket that cannot be listed is
// reported through its result's Err and never fails the others.
func (f *Fetcher) Inventory(ctx context.Context, buckets []domain.BucketRef) map[domain.BucketRef]domain.InventoryResult {
	out := make(map[domain.BucketRef]domain.InventoryResult, len(buckets))
	var todo []domain.BucketRef

	f.mu.Lock()
	for _, ref := range buckets {
		if _, seen := out[ref]; seen {
			continue
		}
		if res, ok := f.cache[ref]; ok {
			out[ref] = res
			continue
		}
		out[ref] = domain.InventoryResult{}
		todo = append(todo, ref)
	}
	f.mu.Unlock()

	if len(todo) == 0 {
		return out
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(min(len(todo), f.cfg.Concurrency))
	for _, ref := range todo {
		g.Go(func() error {
			res := f.fetch(ctx, ref)
			mu.Lock()
			out[ref] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	f.mu.Lock()
	for _, ref := range todo {
		f.cache[ref] = out[ref]
	}
	f.mu.Unlock()
	return out
}

func (f *Fetcher) fetch(ctx context.Context, ref domain.BucketRef) domain.InventoryResult {
	lister, err := f.router.Lister(ref.Scheme)
	if err != nil {
		return domain.InventoryResult{Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.Attempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return domain.InventoryResult{Err: fmt.Errorf("wait for rate limiter: %w", err)}
		}

		start := time.Now()
		objs, err := f.listOnce(ctx, lister, ref.Name)
		if err == nil {
			f.logger.Debug("bucket listed", "bucket", ref.String(), "objects", len(objs),
				"attempt", attempt, "elapsed", time.Since(start))
			return domain.InventoryResult{Objects: objs}
		}
		lastErr = err

		if domain.IsPermanent(err) || ctx.Err() != nil || attempt == f.cfg.Attempts {
			break
		}
		delay := f.cfg.Backoff << (attempt - 1)
		f.logger.Warn("bucket listing failed, retrying", "bucket", ref.String(),
			"attempt", attempt, "delay", delay, "error", err)
		if !sleep(ctx, delay) {
			break
		}
	}

	f.logger.Warn("bucket could not be listed", "bucket", ref.String(), "error", lastErr)
	return domain.InventoryResult{Err: lastErr}
}

func (f *Fetcher) listOnce(ctx context.Context, lister domain.BucketLister, bucket string) ([]domain.BucketObject, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}
	return lister.ListBucket(withPageLimiter(ctx, f.limiter), bucket)
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
