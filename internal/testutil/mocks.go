// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"

	"catcherr/internal/domain"
)

// === Inventory Provider Mock ===

// MockInventory implements domain.InventoryProvider with fixed listings.
// Buckets absent from both maps are served as empty inventories.
type MockInventory struct {
	Objects   map[domain.BucketRef][]domain.BucketObject
	Errs      map[domain.BucketRef]error
	Requested []domain.BucketRef // every bucket asked for, in call order
}

// Inventory implements the interface method for testing.
func (m *MockInventory) Inventory(_ context.Context, buckets []domain.BucketRef) map[domain.BucketRef]domain.InventoryResult {
	m.Requested = append(m.Requested, buckets...)
	out := make(map[domain.BucketRef]domain.InventoryResult, len(buckets))
	for _, b := range buckets {
		if err, ok := m.Errs[b]; ok {
			out[b] = domain.InventoryResult{Err: err}
			continue
		}
		out[b] = domain.InventoryResult{Objects: m.Objects[b]}
	}
	return out
}

var _ domain.InventoryProvider = (*MockInventory)(nil)

// === Bucket Lister Mock ===

// MockBucketLister implements domain.BucketLister. It is safe for
// concurrent use.
type MockBucketLister struct {
	ListBucketFn func(ctx context.Context, bucket string) ([]domain.BucketObject, error)

	mu    sync.Mutex
	calls []string
}

// ListBucket implements the interface method for testing.
func (m *MockBucketLister) ListBucket(ctx context.Context, bucket string) ([]domain.BucketObject, error) {
	m.mu.Lock()
	m.calls = append(m.calls, bucket)
	m.mu.Unlock()
	if m.ListBucketFn != nil {
		return m.ListBucketFn(ctx, bucket)
	}
	panic("unexpected call to MockBucketLister.ListBucket")
}

// Calls returns the buckets listed so far.
func (m *MockBucketLister) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

var _ domain.BucketLister = (*MockBucketLister)(nil)

// === Run Repository Mock ===

// MockRunRepo implements domain.RunRepository for testing.
type MockRunRepo struct {
	CreateFn   func(ctx context.Context, run *domain.Run, findings []domain.Finding, guids []domain.GUIDAssignment) error
	ListFn     func(ctx context.Context, page domain.PageRequest) ([]domain.Run, int64, error)
	GetFn      func(ctx context.Context, id string) (*domain.Run, error)
	FindingsFn func(ctx context.Context, runID string) ([]domain.Finding, error)
	GUIDsFn    func(ctx context.Context, runID string) ([]domain.GUIDAssignment, error)
	Created    []*domain.Run // collected runs for assertions
}

// Create implements the interface method for testing.
func (m *MockRunRepo) Create(ctx context.Context, run *domain.Run, findings []domain.Finding, guids []domain.GUIDAssignment) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(ctx, run, findings, guids); err != nil {
			return err
		}
	}
	m.Created = append(m.Created, run)
	return nil
}

// List implements the interface method for testing.
func (m *MockRunRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Run, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, page)
	}
	panic("unexpected call to MockRunRepo.List")
}

// Get implements the interface method for testing.
func (m *MockRunRepo) Get(ctx context.Context, id string) (*domain.Run, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	panic("unexpected call to MockRunRepo.Get")
}

// Findings implements the interface method for testing.
func (m *MockRunRepo) Findings(ctx context.Context, runID string) ([]domain.Finding, error) {
	if m.FindingsFn != nil {
		return m.FindingsFn(ctx, runID)
	}
	panic("unexpected call to MockRunRepo.Findings")
}

// GUIDs implements the interface method for testing.
func (m *MockRunRepo) GUIDs(ctx context.Context, runID string) ([]domain.GUIDAssignment, error) {
	if m.GUIDsFn != nil {
		return m.GUIDsFn(ctx, runID)
	}
	panic("unexpected call to MockRunRepo.GUIDs")
}

var _ domain.RunRepository = (*MockRunRepo)(nil)
