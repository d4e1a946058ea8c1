// Package app wires configuration, storage and object-store listers into
// the reconciliation engine for the catcherr command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"catcherr/internal/config"
	"catcherr/internal/db"
	"catcherr/internal/db/repository"
	"catcherr/internal/domain"
	"catcherr/internal/inventory"
	"catcherr/internal/reconcile"
	"catcherr/internal/workbook"
)

// Deps holds what main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App holds the wired collaborators of one CLI invocation.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Loader  *workbook.Loader
	Writer  *workbook.Writer
	History domain.RunRepository // nil when history is disabled

	closers []func() error
}

// New opens the DuckDB workspace and, when enabled, the history store.
func New(deps Deps) (*App, error) {
	if deps.Cfg == nil {
		return nil, errors.New("app: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	duckDB, err := workbook.OpenDuckDB()
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:     deps.Cfg,
		logger:  logger,
		Loader:  workbook.NewLoader(duckDB, logger),
		Writer:  workbook.NewWriter(duckDB, logger),
		closers: []func() error{duckDB.Close},
	}

	if deps.Cfg.HistoryEnabled() {
		historyDB, err := db.OpenHistory(deps.Cfg.HistoryDBPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open history store: %w", err)
		}
		a.closers = append(a.closers, historyDB.Close)
		a.History = repository.NewRunRepo(historyDB)
	}
	return a, nil
}

// Close releases every handle opened by New and Reconcile.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunOptions describes one reconciliation.
type RunOptions struct {
	SubmissionPath string // directory of node files or an .xlsx workbook
	TemplatePath   string // template directory, workbook or YAML vocabulary; defaults to SubmissionPath
	OutputBase     string // output path without extension; defaults to workbook.OutputName
	Inventory      bool   // repair URLs against bucket listings
	ManifestPath   string // serve listings from an exported manifest instead of the object stores
	Now            time.Time
}

// Outcome is what a reconciliation produced.
type Outcome struct {
	RunID      string // empty when history is disabled
	Result     *reconcile.Result
	OutputDir  string
	ReportPath string
}

// Reconcile loads the submission and vocabulary, runs the engine, writes the
// corrected node files and text report, and records the run. A workbook
// submission is written back as one single-sheet workbook per node.
func (a *App) Reconcile(ctx context.Context, opts RunOptions) (*Outcome, error) {
	if opts.SubmissionPath == "" {
		return nil, domain.ErrValidation("a submission path is required")
	}
	if opts.TemplatePath == "" {
		opts.TemplatePath = opts.SubmissionPath
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.OutputBase == "" {
		abs, err := filepath.Abs(opts.SubmissionPath)
		if err != nil {
			return nil, fmt.Errorf("resolve submission path: %w", err)
		}
		opts.OutputBase = workbook.OutputName(abs, opts.Now)
	}

	vocab, err := a.Loader.LoadVocabulary(ctx, opts.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	sub, err := a.Loader.LoadSubmission(ctx, opts.SubmissionPath)
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}

	engineOpts := []reconcile.Option{reconcile.WithLogger(a.logger)}
	if opts.Inventory || opts.ManifestPath != "" {
		provider, err := a.inventoryProvider(ctx, opts.ManifestPath)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, reconcile.WithInventory(provider))
	}
	eng, err := reconcile.New(vocab, engineOpts...)
	if err != nil {
		return nil, err
	}

	res, err := eng.Run(ctx, sub)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Result: res, OutputDir: opts.OutputBase, ReportPath: opts.OutputBase + ".txt"}
	ext := ".tsv"
	if workbook.IsWorkbook(opts.SubmissionPath) {
		ext = workbook.WorkbookExt
	}
	if err := a.Writer.WriteSubmission(ctx, out.OutputDir, res.Submission, ext); err != nil {
		return nil, err
	}
	if err := writeReport(out.ReportPath, res.Report); err != nil {
		return nil, err
	}

	if a.History != nil {
		c := res.Report.Counts()
		run := &domain.Run{
			ID:         domain.NewID(),
			Submission: opts.SubmissionPath,
			Strategy:   res.Strategy,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
			Passes:     c.Pass,
			Warnings:   c.Warning,
			Errors:     c.Error,
		}
		if err := a.History.Create(ctx, run, res.Report.Entries(), res.GUIDs); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		out.RunID = run.ID
	}

	a.logger.Info("outputs written", "dir", out.OutputDir, "report", out.ReportPath, "run_id", out.RunID)
	return out, nil
}

func writeReport(path string, r *reconcile.Report) error {
	f, err := os.Create(path) //nolint:gosec // path derives from the caller's submission path
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.WriteText(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

// inventoryProvider builds the bucket fetcher. A manifest serves every
// scheme; otherwise each object store with usable configuration is registered.
func (a *App) inventoryProvider(ctx context.Context, manifest string) (domain.InventoryProvider, error) {
	router := inventory.NewRouter()

	if manifest != "" {
		objs, err := a.Loader.LoadManifest(ctx, manifest)
		if err != nil {
			return nil, fmt.Errorf("load inventory manifest: %w", err)
		}
		for _, scheme := range []string{inventory.SchemeS3, inventory.SchemeGCS, inventory.SchemeAzure} {
			router.Register(scheme, inventory.NewStaticLister(scheme, objs))
		}
	} else {
		a.registerObjectStores(ctx, router)
	}

	inv := a.cfg.Inventory
	fetcher := inventory.NewFetcher(router, inventory.FetcherConfig{
		Concurrency: inv.Concurrency,
		RPS:         inv.RPS,
		Burst:       inv.Burst,
		Attempts:    inv.Retries,
		Timeout:     inv.Timeout,
		Backoff:     inventory.DefaultFetcherConfig().Backoff,
	}, a.logger)
	a.logger.Debug("inventory listers configured", "schemes", router.Schemes())
	return fetcher, nil
}

func (a *App) registerObjectStores(ctx context.Context, router *inventory.Router) {
	cfg := a.cfg

	s3cfg := inventory.S3Config{URLStyle: cfg.S3URLStyle}
	if cfg.HasS3Credentials() {
		s3cfg.KeyID, s3cfg.Secret = *cfg.S3KeyID, *cfg.S3Secret
	}
	if cfg.S3Endpoint != nil {
		s3cfg.Endpoint = *cfg.S3Endpoint
	}
	if cfg.S3Region != nil {
		s3cfg.Region = *cfg.S3Region
	}
	router.Register(inventory.SchemeS3, inventory.NewS3Lister(s3cfg))

	gcs, err := inventory.NewGCSLister(ctx, cfg.GCSKeyFile)
	if err != nil {
		a.logger.Warn("gs:// buckets cannot be listed", "error", err)
	} else {
		router.Register(inventory.SchemeGCS, gcs)
		a.closers = append(a.closers, gcs.Close)
	}

	if cfg.HasAzureConfig() {
		az, err := inventory.NewAzureLister(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			a.logger.Warn("az:// containers cannot be listed", "error", err)
		} else {
			router.Register(inventory.SchemeAzure, az)
		}
	}
}
