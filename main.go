package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"multinpainter/core"
	"multinpainter/logging"
	"multinpainter/outpaint"
	"multinpainter/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		jobFile      = flag.String("job", "", "YAML job file (flags below override its fields)")
		imagePath    = flag.String("image", "", "source image path")
		outputPath   = flag.String("out", "", "output PNG path")
		outWidth     = flag.Int("width", 0, "output canvas width")
		outHeight    = flag.Int("height", 0, "output canvas height")
		promptText   = flag.String("prompt", "", "generation prompt (empty: describe the source image)")
		fallbackText = flag.String("fallback", "", "prompt for regions without humans (empty: derived)")
		square       = flag.Int("square", 0, "generated square size: 1024, 512 or 256 (default 1024)")
		step         = flag.Int("step", 0, "sweep stride in pixels (default square/2)")
		humans       = flag.Bool("humans", false, "detect humans and switch prompts per region")
		verbose      = flag.Bool("verbose", false, "debug logging plus a snapshot after every region")
		resume       = flag.Bool("resume", false, "resume a matching unfinished journaled job")
		describeOnly = flag.Bool("describe", false, "only describe the source image and exit")
	)
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	logger := logging.NewLogger(*verbose, "multinpainter.log")
	defer logger.Sync()

	config, err := core.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return 1
	}

	job := &session.Job{}
	if *jobFile != "" {
		job, err = session.LoadJobFile(*jobFile)
		if err != nil {
			color.Red("Cannot read job file: %v", err)
			return 1
		}
	}
	mergeFlags(job, *imagePath, *outputPath, *outWidth, *outHeight,
		*promptText, *fallbackText, *square, *step, *humans, *verbose, *resume)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, finishing current region...")
		color.Yellow("Interrupted: stopping after the current region. Progress is saved.")
		cancel()
	}()

	sess, err := session.New(config, logger)
	if err != nil {
		color.Red("Startup failed: %v", err)
		logger.Error("session setup failed", zap.Error(err))
		return 1
	}
	defer sess.Close()

	if *describeOnly {
		description, err := sess.Describe(ctx, job.ImagePath)
		if err != nil {
			color.Red("Describe failed: %v", err)
			return 1
		}
		fmt.Println(description)
		return 0
	}

	color.Cyan("Outpainting %s -> %s (%dx%d)", job.ImagePath, job.OutputPath, job.OutWidth, job.OutHeight)

	result, err := sess.Run(ctx, job)
	if err != nil {
		return reportFailure(err, result)
	}

	color.Green("Done: %s", result.OutputPath)
	fmt.Printf("  regions: %d generated, %d reused\n", result.Generated, result.Skipped)
	fmt.Printf("  prompt:  %s\n", result.Prompt)
	if result.Fallback != "" && result.Fallback != result.Prompt {
		fmt.Printf("  fallback: %s\n", result.Fallback)
	}
	return 0
}

// mergeFlags overlays non-zero command-line values onto the job.
func mergeFlags(job *session.Job, image, out string, width, height int,
	promptText, fallback string, square, step int, humans, verbose, resume bool) {
	if image != "" {
		job.ImagePath = image
	}
	if out != "" {
		job.OutputPath = out
	}
	if width != 0 {
		job.OutWidth = width
	}
	if height != 0 {
		job.OutHeight = height
	}
	if promptText != "" {
		job.Prompt = promptText
	}
	if fallback != "" {
		job.Fallback = fallback
	}
	if square != 0 {
		job.Square = square
	}
	if step != 0 {
		job.Step = step
	}
	if humans {
		job.DetectHumans = true
	}
	if verbose {
		job.Verbose = true
	}
	if resume {
		job.Resume = true
	}
}

// reportFailure prints an actionable message for the error classes a job
// can end with and picks the exit code.
func reportFailure(err error, result *session.Result) int {
	if configErr, ok := core.IsConfigError(err); ok {
		color.Red("Configuration error [%s]: %s", configErr.Code, configErr.Message)
		if configErr.Action != "" {
			fmt.Printf("  %s\n", configErr.Action)
		}
		return 2
	}
	if pf, ok := outpaint.AsPartialFailure(err); ok {
		color.Red("Job stopped at region %d after %d attempts: %v", pf.RegionIndex, pf.Attempts, pf.Err)
		if result != nil {
			color.Yellow("Partial canvas saved to %s (%d of %d regions). Re-run with -resume to continue.",
				result.OutputPath, result.Generated+result.Skipped, result.Regions)
		}
		return 3
	}
	if errors.Is(err, context.Canceled) {
		color.Yellow("Cancelled. Re-run with -resume to continue.")
		return 130
	}
	color.Red("Job failed: %v", err)
	return 1
}
