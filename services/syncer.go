package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"activity-sync/config"
	"activity-sync/events"
	"activity-sync/lock"
	"activity-sync/models"
	"activity-sync/scraper"
	"activity-sync/storage"
	"activity-sync/utils"
)

// ErrRunInProgress is returned when another run holds the source's lock
var ErrRunInProgress = errors.New("sync run already in progress")

// Intake collects the raw listings of one source
type Intake interface {
	Collect(ctx context.Context, rc *models.RunContext, src config.SourceConfig) ([]*models.Listing, error)
}

// BrowserIntake navigates the booking site in Chrome and enriches listings
// from their detail pages
type BrowserIntake struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewBrowserIntake creates a new BrowserIntake
func NewBrowserIntake(cfg *config.Config, logger *utils.Logger) *BrowserIntake {
	return &BrowserIntake{cfg: cfg, logger: logger}
}

// Collect starts a browser for the run and closes it when intake is done
func (b *BrowserIntake) Collect(ctx context.Context, rc *models.RunContext, src config.SourceConfig) ([]*models.Listing, error) {
	provider, err := NewProvider(src)
	if err != nil {
		return nil, err
	}

	browser, err := scraper.NewChromeBrowser(b.cfg, b.logger)
	if err != nil {
		return nil, err
	}
	defer browser.Close()

	nav := scraper.NewNavigator(browser, provider, b.cfg, b.logger)
	listings, err := nav.Run(ctx, rc, b.cfg.CategoriesFor(src))
	if err != nil {
		return nil, err
	}

	var newLoader scraper.LoaderFactory
	switch b.cfg.DetailLoader {
	case "http":
		shared := scraper.NewHTTPLoader(b.cfg.DetailTimeout(), b.cfg.MaxRetries)
		newLoader = func() (scraper.PageLoader, error) { return shared, nil }
	default:
		newLoader = browser.NewTabLoader
	}
	fetcher := scraper.NewDetailFetcher(newLoader, scraper.NewDetailParser(provider), b.cfg, b.logger)
	return fetcher.Enrich(ctx, rc, listings), nil
}

// SyncerOptions wires the collaborators of a Syncer. Only Store and Intake are required.
type SyncerOptions struct {
	Store     storage.Store
	Intake    Intake
	Locks     lock.Factory
	Publisher events.Publisher
	Raw       storage.RawStorage
	Taxonomy  *Taxonomy
	// Insights, when set, receives the insight report of each run's activities
	Insights io.Writer
	// Now defaults to time.Now in UTC
	Now func() time.Time
}

// Syncer runs the whole pipeline for a source and records the run
type Syncer struct {
	cfg        *config.Config
	store      storage.Store
	intake     Intake
	locks      lock.Factory
	publisher  events.Publisher
	raw        storage.RawStorage
	normalizer *Normalizer
	classifier *Classifier
	insights   *InsightService
	report     io.Writer
	now        func() time.Time
	logger     *utils.Logger
}

// NewSyncer creates a new Syncer
func NewSyncer(cfg *config.Config, opts SyncerOptions, logger *utils.Logger) *Syncer {
	s := &Syncer{
		cfg:        cfg,
		store:      opts.Store,
		intake:     opts.Intake,
		locks:      opts.Locks,
		publisher:  opts.Publisher,
		raw:        opts.Raw,
		normalizer: NewNormalizer(logger),
		classifier: NewClassifier(opts.Taxonomy, logger),
		insights:   NewInsightService(logger),
		report:     opts.Insights,
		now:        opts.Now,
		logger:     logger,
	}
	if s.locks == nil {
		s.locks = lock.NewFactory(nil, nil, cfg.LockTTL())
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// RunAll syncs the sources one after another. A failing source does not stop
// the others; the returned error joins every failure.
func (s *Syncer) RunAll(ctx context.Context, sources []config.SourceConfig) ([]*models.SyncRun, error) {
	var runs []*models.SyncRun
	var errs []error
	for _, src := range sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		run, err := s.Run(ctx, src)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.ID, err))
		}
	}
	return runs, errors.Join(errs...)
}

// Run executes one sync run for src. The returned run is finalized whenever
// it is non-nil; the error is non-nil for every outcome except success.
func (s *Syncer) Run(ctx context.Context, src config.SourceConfig) (*models.SyncRun, error) {
	runLock := s.locks(lock.RunKey(src.ID))
	ok, err := runLock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w for source %s", ErrRunInProgress, src.ID)
	}
	defer func() {
		if err := runLock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release run lock for %s: %v", src.ID, err)
		}
	}()

	run := models.NewSyncRun(src.ID, s.now())
	if err := s.store.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	logger := s.logger.With("source", src.ID, "run_id", run.ID)
	logger.Info("Sync run started")

	rc := models.NewRunContext(run)
	runErr := s.execute(ctx, rc, src, logger)
	s.finish(ctx, run, runErr, logger)
	return run, runErr
}

func (s *Syncer) execute(ctx context.Context, rc *models.RunContext, src config.SourceConfig, logger *utils.Logger) error {
	intakeCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout := s.cfg.RunTimeout(); timeout > 0 {
		intakeCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	listings, err := s.intake.Collect(intakeCtx, rc, src)
	timedOut := errors.Is(intakeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if err != nil {
		return fmt.Errorf("intake failed: %w", err)
	}
	if timedOut {
		logger.Warn("Run timeout reached, continuing with the %d listings collected", len(listings))
	}
	logger.Info("Collected %d listings", len(listings))

	if s.raw != nil {
		if err := s.raw.SaveRaw(listings); err != nil {
			// Non-fatal: the dump is only for debugging scrapes
			logger.Warn("Failed to save raw listings: %v", err)
		}
	}

	activities := s.normalizer.Normalize(rc, listings)
	s.classifier.Classify(rc, activities)
	if s.report != nil {
		PrintInsightReport(s.report, s.insights.Generate(activities))
	}

	reconciler := NewReconciler(s.store, s.cfg.ThresholdFor(src), s.cfg.MaxRetireRatio, logger)
	if _, err := reconciler.Reconcile(ctx, rc, activities); err != nil {
		if errors.Is(err, ErrGuardAbort) {
			return err
		}
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	return nil
}

// finish finalizes the run record even when ctx has been cancelled
func (s *Syncer) finish(ctx context.Context, run *models.SyncRun, runErr error, logger *utils.Logger) {
	switch {
	case runErr == nil:
		run.Outcome = models.OutcomeSucceeded
	case errors.Is(runErr, ErrGuardAbort):
		run.Outcome = models.OutcomeAbortedByGuard
		run.Message = runErr.Error()
	default:
		run.Outcome = models.OutcomeFailed
		run.Message = runErr.Error()
	}
	finishedAt := s.now()
	run.FinishedAt = &finishedAt

	fctx := context.WithoutCancel(ctx)
	if err := s.store.FinishRun(fctx, run); err != nil {
		logger.Error("Failed to record run result: %v", err)
	}
	recordRunMetrics(run)

	switch run.Outcome {
	case models.OutcomeSucceeded:
		logger.Info("Sync run %s", run.Summary())
	case models.OutcomeAbortedByGuard:
		logger.Warn("Sync run %s", run.Summary())
	default:
		logger.Error("Sync run %s", run.Summary())
	}

	if err := s.publisher.PublishRun(fctx, run.Report()); err != nil {
		logger.Warn("Failed to publish run report: %v", err)
	}
}
