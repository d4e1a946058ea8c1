package domain

import "context"

// RunRepository persists runs with their findings and minted GUIDs.
// Implemented by repository.RunRepo.
type RunRepository interface {
	Create(ctx context.Context, run *Run, findings []Finding, guids []GUIDAssignment) error
	List(ctx context.Context, page PageRequest) ([]Run, int64, error)
	Get(ctx context.Context, id string) (*Run, error)
	Findings(ctx context.Context, runID string) ([]Finding, error)
	GUIDs(ctx context.Context, runID string) ([]GUIDAssignment, error)
}
