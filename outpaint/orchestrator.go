// Package outpaint walks the region plan, generating and compositing one
// square at a time with retries, journaling and optional concurrency across
// independent sweeps.
package outpaint

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"multinpainter/canvas"
	"multinpainter/core"
	"multinpainter/geometry"
	"multinpainter/journal"
	"multinpainter/logging"
	"multinpainter/prompt"
)

// Options assemble an Orchestrator. Canvas, Plan, Generator and Resolver are
// required; everything else has a working zero value (no journal, no
// snapshots, sequential execution, default retry budget).
type Options struct {
	Canvas    *canvas.Canvas
	Plan      *geometry.Plan
	Generator core.ImageGenerator
	Resolver  prompt.Resolver

	Store *journal.Store
	JobID string

	Retry         RetryConfig
	MaxConcurrent int

	Snapshotter *canvas.Snapshotter
	Logger      *logging.Logger
}

// Orchestrator drives one outpaint job: for every planned region it crops
// the context square, resolves the prompt, calls the generator with retries
// and composites the result. Already painted regions are skipped, so a job
// resumed from a journal only pays for what is missing.
type Orchestrator struct {
	canvas    *canvas.Canvas
	plan      *geometry.Plan
	generator core.ImageGenerator
	resolver  prompt.Resolver

	store *journal.Store
	jobID string
	done  map[int]bool

	retry         RetryConfig
	maxConcurrent int

	snapshotter *canvas.Snapshotter
	progress    *Progress
	logger      *logging.Logger
}

// New validates the options and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Canvas == nil || opts.Plan == nil {
		return nil, fmt.Errorf("outpaint: canvas and plan are required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("outpaint: generator is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("outpaint: prompt resolver is required")
	}

	retryCfg := opts.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = DefaultRetryConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewTestLogger()
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Orchestrator{
		canvas:        opts.Canvas,
		plan:          opts.Plan,
		generator:     opts.Generator,
		resolver:      opts.Resolver,
		store:         opts.Store,
		jobID:         opts.JobID,
		retry:         retryCfg,
		maxConcurrent: maxConcurrent,
		snapshotter:   opts.Snapshotter,
		progress:      NewProgress(len(opts.Plan.Regions)),
		logger:        logger.Named("outpaint"),
	}, nil
}

// Progress returns the job's progress tracker for status reporting.
func (o *Orchestrator) Progress() *Progress { return o.progress }

// Run executes the plan. On success every canvas pixel is painted. A
// region that fails fatally or exhausts its retries stops the job with a
// PartialCanvasFailure; cancellation stops it with the context error. In
// both cases the regions completed so far are journaled and composited, so
// the caller can still persist the partial canvas.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.loadJournal(ctx); err != nil {
		return err
	}
	o.progress.Start()

	o.logger.Info("starting outpaint run",
		zap.Int("regions", len(o.plan.Regions)),
		zap.Int("already_done", len(o.done)),
		zap.Int("max_concurrent", o.maxConcurrent))

	var err error
	if o.maxConcurrent > 1 {
		err = o.runPhases(ctx)
	} else {
		err = o.runSequential(ctx)
	}
	if err != nil {
		return err
	}

	o.logger.Info("outpaint run complete",
		zap.Int("completed", o.progress.Snapshot().Completed),
		zap.Int("skipped", o.progress.Snapshot().Skipped))
	return nil
}

// loadJournal records the plan in the journal and fetches the set of
// regions a previous run already finished.
func (o *Orchestrator) loadJournal(ctx context.Context) error {
	recs := make([]journal.RegionRecord, 0, len(o.plan.Regions))
	for _, r := range o.plan.Regions {
		recs = append(recs, journal.RegionRecord{
			JobID:     o.jobID,
			Index:     r.Index,
			Direction: string(r.Dir),
			X:         r.X,
			Y:         r.Y,
			Size:      r.Size,
		})
	}
	if err := o.store.InsertRegions(ctx, recs); err != nil {
		return err
	}

	done, err := o.store.DoneRegions(ctx, o.jobID)
	if err != nil {
		return err
	}
	o.done = done
	return nil
}

// runSequential processes the flat plan order one region at a time.
func (o *Orchestrator) runSequential(ctx context.Context) error {
	for _, r := range o.plan.Regions {
		if err := o.processRegion(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// runPhases processes the plan phase by phase, with the sweeps of each
// phase running in parallel. Sweeps sharing a phase never write pixels
// inside each other's squares, so their context crops stay valid.
func (o *Orchestrator) runPhases(ctx context.Context) error {
	for _, phase := range o.plan.Phases {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.maxConcurrent)
		for _, sweep := range phase.Sweeps {
			regions := sweep.Regions
			g.Go(func() error {
				for _, r := range regions {
					if err := o.processRegion(gctx, r); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// processRegion generates and composites one region, skipping regions the
// journal or the canvas already account for.
func (o *Orchestrator) processRegion(ctx context.Context, r geometry.Region) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := o.logger.With(
		zap.Int("region", r.Index),
		zap.String("direction", string(r.Dir)),
		zap.Int("x", r.X),
		zap.Int("y", r.Y))

	if o.done[r.Index] || o.canvas.RegionPainted(r.Clip) {
		log.Debug("region already painted, skipping")
		o.progress.RegionSkipped()
		if o.done[r.Index] {
			// The journal row already carries the attempt count from the
			// run that painted it.
			return nil
		}
		return o.store.MarkRegion(ctx, o.jobID, r.Index, journal.RegionDone, 0, "")
	}

	regionPrompt := o.resolver.Resolve(r.Bounds())
	origin := image.Pt(r.X, r.Y)

	contextPNG, err := canvas.EncodePNG(o.canvas.CropContext(origin, r.Size))
	if err != nil {
		return &PartialCanvasFailure{RegionIndex: r.Index, Err: err}
	}

	var resultPNG []byte
	attempts, err := retry(ctx, o.retry, log, func(attemptCtx context.Context) error {
		data, genErr := o.generator.Generate(attemptCtx, contextPNG, nil, regionPrompt, r.Size)
		if genErr != nil {
			return genErr
		}
		resultPNG = data
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not failure: leave the region pending and discard
			// any half-finished result.
			return ctx.Err()
		}
		o.store.MarkRegion(ctx, o.jobID, r.Index, journal.RegionFailed, attempts, err.Error())
		return &PartialCanvasFailure{RegionIndex: r.Index, Attempts: attempts, Err: err}
	}

	result, err := canvas.DecodePNG(resultPNG)
	if err != nil {
		o.store.MarkRegion(ctx, o.jobID, r.Index, journal.RegionFailed, attempts, err.Error())
		return &PartialCanvasFailure{RegionIndex: r.Index, Attempts: attempts, Err: err}
	}

	if err := ctx.Err(); err != nil {
		// Cancelled while the result was in flight: discard it rather than
		// composite after shutdown began.
		return err
	}

	painted := o.canvas.ApplyResult(origin, r.Size, result)
	o.progress.RegionCompleted()
	if err := o.store.MarkRegion(ctx, o.jobID, r.Index, journal.RegionDone, attempts, ""); err != nil {
		return err
	}

	snap := o.progress.Snapshot()
	log.Info("region painted",
		zap.Int("attempts", attempts),
		zap.Int("pixels", painted),
		zap.Int("completed", snap.Completed+snap.Skipped),
		zap.Int("total", snap.Total),
		zap.Duration("eta", snap.ETA))

	if path, err := o.snapshotter.Save(o.canvas); err != nil {
		log.Warn("snapshot failed", zap.Error(err))
	} else if path != "" {
		log.Debug("snapshot written", zap.String("path", path))
	}
	return nil
}
