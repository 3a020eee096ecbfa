package session

import (
	"context"
	"errors"
	"image"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multinpainter/canvas"
	"multinpainter/core"
	"multinpainter/generation"
	"multinpainter/geometry"
	"multinpainter/journal"
	"multinpainter/logging"
	"multinpainter/outpaint"
	"multinpainter/prompt"
)

// Session runs outpaint jobs against one process configuration. It owns the
// journal store; the per-job API clients are built inside Run.
type Session struct {
	cfg    *core.Config
	store  *journal.Store
	logger *logging.Logger
}

// Result summarizes a finished or partially finished job.
type Result struct {
	JobID      string
	OutputPath string
	Regions    int
	Generated  int
	Skipped    int
	Prompt     string
	Fallback   string
}

// New creates a Session. When cfg.JournalPath is set the journal database
// is opened (and migrated) up front so schema problems surface before any
// generation spend.
func New(cfg *core.Config, logger *logging.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.NewTestLogger()
	}

	var store *journal.Store
	if cfg.JournalPath != "" {
		var err error
		store, err = journal.Open(cfg.JournalPath, cfg.MigrationsPath)
		if err != nil {
			return nil, err
		}
	}

	return &Session{cfg: cfg, store: store, logger: logger.Named("session")}, nil
}

// Close releases the journal store.
func (s *Session) Close() error {
	return s.store.Close()
}

// Run executes one job end to end: validate, load and place the source,
// derive prompts, plan regions, paint them and save the output PNG.
//
// The output is written even when the job fails partway, so the error from
// a PartialCanvasFailure still leaves a resumable canvas on disk.
func (s *Session) Run(ctx context.Context, job *Job) (*Result, error) {
	job.ApplyDefaults()
	if err := job.Validate(); err != nil {
		return nil, err
	}

	cfg := *s.cfg
	if job.APIKey != "" {
		cfg.OpenAIAPIKey = job.APIKey
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, core.ErrMissingAuth()
	}
	if cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.JobTimeout)
		defer cancel()
	}

	src, err := canvas.LoadFile(job.ImagePath)
	if err != nil {
		return nil, core.ErrInvalidImage(job.ImagePath, err.Error())
	}
	srcW, srcH := src.Bounds().Dx(), src.Bounds().Dy()

	log := s.logger.With(
		zap.String("image", job.ImagePath),
		zap.String("output", job.OutputPath),
		zap.Int("out_width", job.OutWidth),
		zap.Int("out_height", job.OutHeight))

	// Geometry is validated before any model call, so a job with impossible
	// dimensions fails while it is still free to abort. The placement is
	// recomputed below when human detection supplies a better focus point.
	placement, err := geometry.ComputePlacement(srcW, srcH, job.OutWidth, job.OutHeight,
		geometry.DefaultFocus(srcW, srcH))
	if err != nil {
		return nil, err
	}
	plan, err := geometry.BuildPlan(placement, job.OutWidth, job.OutHeight, job.Square, job.Step)
	if err != nil {
		return nil, err
	}

	prompter, err := prompt.NewOpenAIPrompter(&cfg, s.logger)
	if err != nil {
		return nil, err
	}

	srcPNG, err := canvas.EncodePNG(src)
	if err != nil {
		return nil, err
	}

	// Prompt derivation happens before any generation spend: an unusable
	// prompt should fail the job while it is still free to abort.
	mainPrompt := job.Prompt
	if mainPrompt == "" {
		mainPrompt, err = prompter.Describe(ctx, srcPNG)
		if err != nil {
			return nil, err
		}
	}

	var boxes []core.Box
	if job.DetectHumans {
		boxes, err = prompter.Detect(ctx, srcPNG)
		if err != nil {
			return nil, err
		}
	}

	fallbackPrompt := job.Fallback
	if job.DetectHumans && fallbackPrompt == "" {
		fallbackPrompt, err = prompter.MakeFallback(ctx, mainPrompt)
		if err != nil {
			// A failed rewrite is not worth aborting the job: paint
			// everything with the main prompt instead.
			log.Warn("fallback prompt derivation failed, using main prompt", zap.Error(err))
			fallbackPrompt = mainPrompt
		}
	}

	if len(boxes) > 0 {
		placement, err = geometry.ComputePlacement(srcW, srcH, job.OutWidth, job.OutHeight,
			geometry.FocusFromBox(boxes[0]))
		if err != nil {
			return nil, err
		}
		plan, err = geometry.BuildPlan(placement, job.OutWidth, job.OutHeight, job.Square, job.Step)
		if err != nil {
			return nil, err
		}
	}

	jobID, cv, err := s.prepareCanvas(ctx, job, placement, src, mainPrompt, fallbackPrompt, log)
	if err != nil {
		return nil, err
	}

	var resolver prompt.Resolver = prompt.StaticResolver{Prompt: mainPrompt}
	if job.DetectHumans && len(boxes) > 0 {
		canvasBoxes := make([]core.Box, len(boxes))
		for i, b := range boxes {
			canvasBoxes[i] = b.Offset(placement.X, placement.Y)
		}
		resolver = prompt.DetectionResolver{
			Main:     mainPrompt,
			Fallback: fallbackPrompt,
			Boxes:    canvasBoxes,
		}
	}

	generator, err := generation.NewOpenAIProvider(&cfg, s.logger)
	if err != nil {
		return nil, err
	}

	var snapshotter *canvas.Snapshotter
	if job.Verbose {
		snapshotter = &canvas.Snapshotter{OutputPath: job.OutputPath, Dir: cfg.SnapshotDir}
	}

	orch, err := outpaint.New(outpaint.Options{
		Canvas:    cv,
		Plan:      plan,
		Generator: generator,
		Resolver:  resolver,
		Store:     s.store,
		JobID:     jobID,
		Retry: outpaint.RetryConfig{
			MaxAttempts:    cfg.MaxAttempts,
			InitialDelay:   cfg.RetryDelay,
			MaxDelay:       cfg.MaxRetryDelay,
			AttemptTimeout: cfg.AttemptTimeout,
		},
		MaxConcurrent: cfg.MaxConcurrent,
		Snapshotter:   snapshotter,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, err
	}

	runErr := orch.Run(ctx)

	// Save whatever was painted, success or not: a partial canvas is the
	// resume point for the next run.
	if saveErr := canvas.SaveFile(job.OutputPath, cv.Image()); saveErr != nil {
		if runErr != nil {
			return nil, errors.Join(runErr, saveErr)
		}
		return nil, saveErr
	}

	snap := orch.Progress().Snapshot()
	result := &Result{
		JobID:      jobID,
		OutputPath: job.OutputPath,
		Regions:    snap.Total,
		Generated:  snap.Completed,
		Skipped:    snap.Skipped,
		Prompt:     mainPrompt,
		Fallback:   fallbackPrompt,
	}

	if runErr != nil {
		s.store.SetJobStatus(ctx, jobID, journal.JobFailed)
		log.Error("job failed, partial canvas saved",
			zap.Int("generated", snap.Completed),
			zap.Int("total", snap.Total),
			zap.Error(runErr))
		return result, runErr
	}

	if err := s.store.SetJobStatus(ctx, jobID, journal.JobDone); err != nil {
		return result, err
	}
	log.Info("job complete",
		zap.Int("generated", snap.Completed),
		zap.Int("skipped", snap.Skipped))
	return result, nil
}

// prepareCanvas creates or restores the canvas and the matching journal
// job. A resumed job reloads the partial output file; its opaque pixels
// come back painted, so the orchestrator only fills what is missing.
func (s *Session) prepareCanvas(ctx context.Context, job *Job, placement geometry.Placement, src *image.RGBA, mainPrompt, fallbackPrompt string, log *logging.Logger) (string, *canvas.Canvas, error) {
	if job.Resume && s.store != nil {
		rec, err := s.store.FindResumable(ctx, job.OutputPath, job.OutWidth, job.OutHeight, job.Square, job.Step)
		switch {
		case err == nil:
			partial, loadErr := canvas.LoadFile(job.OutputPath)
			if loadErr == nil && partial.Bounds().Dx() == job.OutWidth && partial.Bounds().Dy() == job.OutHeight {
				log.Info("resuming journaled job", zap.String("job_id", rec.ID))
				return rec.ID, canvas.FromImage(partial), nil
			}
			log.Warn("journaled job found but partial output unusable, starting over",
				zap.String("job_id", rec.ID))
		case !errors.Is(err, journal.ErrJobNotFound):
			return "", nil, err
		}
	}

	jobID := uuid.NewString()
	cv, err := canvas.New(job.OutWidth, job.OutHeight)
	if err != nil {
		return "", nil, err
	}
	cv.Paste(src, image.Pt(placement.X, placement.Y))

	if err := s.store.CreateJob(ctx, journal.JobRecord{
		ID:         jobID,
		ImagePath:  job.ImagePath,
		OutputPath: job.OutputPath,
		OutWidth:   job.OutWidth,
		OutHeight:  job.OutHeight,
		Square:     job.Square,
		Step:       job.Step,
		Prompt:     mainPrompt,
		Fallback:   fallbackPrompt,
	}); err != nil {
		return "", nil, err
	}
	return jobID, cv, nil
}

// Describe loads an image and returns a vision-model description without
// running a job. Backs the describe-only command line mode.
func (s *Session) Describe(ctx context.Context, imagePath string) (string, error) {
	if s.cfg.OpenAIAPIKey == "" {
		return "", core.ErrMissingAuth()
	}
	img, err := canvas.LoadFile(imagePath)
	if err != nil {
		return "", core.ErrInvalidImage(imagePath, err.Error())
	}
	data, err := canvas.EncodePNG(img)
	if err != nil {
		return "", err
	}
	prompter, err := prompt.NewOpenAIPrompter(s.cfg, s.logger)
	if err != nil {
		return "", err
	}
	return prompter.Describe(ctx, data)
}
