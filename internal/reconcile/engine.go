// Package reconcile implements the metadata reconciliation engine: term
// normalization, glyph sanitizing, ACL validation, file URL repair and GUID
// assignment over a submission of node tables.
//
// Each component is a Stage: a pure transformation that receives a snapshot
// of the submission and returns an updated copy together with its findings.
// The Engine threads the snapshot through the stages in a fixed order.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"catcherr/internal/domain"
)

// StageResult is the output of one stage.
type StageResult struct {
	Submission *domain.Submission
	Findings   []domain.Finding
	GUIDs      []domain.GUIDAssignment
}

// Stage is one step of the reconciliation pipeline. Apply must not mutate sub.
type Stage interface {
	Name() string
	Apply(ctx context.Context, sub *domain.Submission) (StageResult, error)
}

// Result is the outcome of a full run.
type Result struct {
	Submission *domain.Submission
	Report     *Report
	GUIDs      []domain.GUIDAssignment
	Dropped    []string // empty nodes discarded before reconciliation
	Strategy   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Engine runs the reconciliation pipeline.
type Engine struct {
	vocab     *VocabularyIndex
	inventory domain.InventoryProvider
	newGUID   func() string
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithInventory enables inventory-backed URL repair.
func WithInventory(p domain.InventoryProvider) Option {
	return func(e *Engine) { e.inventory = p }
}

// WithGUIDGenerator replaces the random GUID source.
func WithGUIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newGUID = fn }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine. It fails when the vocabulary is missing, before
// any submission is touched.
func New(vocab *domain.VocabularySet, opts ...Option) (*Engine, error) {
	idx, err := NewVocabularyIndex(vocab)
	if err != nil {
		return nil, err
	}
	e := &Engine{vocab: idx}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

// Stages returns the pipeline in execution order. URL repair precedes GUID
// assignment so that repaired URLs take part in the GUID grouping key.
func (e *Engine) Stages() []Stage {
	return []Stage{
		NewTermNormalizer(e.vocab),
		NewCharacterSanitizer(),
		NewACLValidator(),
		NewURLReconciler(e.inventory, e.logger),
		NewGUIDAssigner(e.newGUID),
	}
}

// Strategy reports which URL repair strategy the engine applies.
func (e *Engine) Strategy() string {
	return NewURLReconciler(e.inventory, e.logger).Strategy()
}

// Run reconciles a submission. The input is never mutated; the corrected
// copy is returned in Result.Submission. Only structural problems and
// cancellation are returned as errors, all other problems become findings.
func (e *Engine) Run(ctx context.Context, sub *domain.Submission) (*Result, error) {
	if sub == nil {
		return nil, domain.ErrValidation("submission is nil")
	}

	res := &Result{
		Report:    NewReport(),
		Strategy:  e.Strategy(),
		StartedAt: time.Now().UTC(),
	}

	snapshot := sub.Clone()
	res.Dropped = snapshot.DropEmptyNodes()
	if len(res.Dropped) > 0 {
		e.logger.Info("dropped empty nodes", "nodes", res.Dropped)
	}

	for _, st := range e.Stages() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", st.Name(), err)
		}
		out, err := st.Apply(ctx, snapshot)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", st.Name(), err)
		}
		snapshot = out.Submission
		res.Report.Add(out.Findings...)
		res.GUIDs = append(res.GUIDs, out.GUIDs...)
		e.logger.Debug("stage complete", "stage", st.Name(), "findings", len(out.Findings))
	}

	res.Submission = snapshot
	res.FinishedAt = time.Now().UTC()
	c := res.Report.Counts()
	e.logger.Info("reconciliation complete",
		"nodes", len(snapshot.Nodes), "strategy", res.Strategy,
		"pass", c.Pass, "warning", c.Warning, "error", c.Error)
	return res, nil
}
