// Package session is the top-level façade: it validates a job, derives the
// prompts, plans the geometry, assembles the canvas, generator and journal,
// and runs the orchestrator to completion.
package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"multinpainter/core"
	"multinpainter/geometry"
)

// Job describes one outpaint request. It can be populated from command-line
// flags or loaded from a YAML job file.
type Job struct {
	// ImagePath is the source image (PNG, JPEG or GIF).
	ImagePath string `yaml:"image"`
	// OutputPath is where the finished PNG canvas is written. On partial
	// failure the partial canvas is saved here too, ready for resume.
	OutputPath string `yaml:"output"`

	OutWidth  int `yaml:"width"`
	OutHeight int `yaml:"height"`

	// Prompt guides generation. Empty means: describe the source image with
	// a vision model and use the description.
	Prompt string `yaml:"prompt"`
	// Fallback is used for regions without detected humans. Empty with
	// DetectHumans on means: derive a human-free prompt from Prompt.
	Fallback string `yaml:"fallback"`

	// Square is the generated region edge length (1024, 512 or 256).
	Square int `yaml:"square"`
	// Step is the sweep stride. 0 means square/2.
	Step int `yaml:"step"`

	// DetectHumans switches on per-region prompt selection: regions
	// overlapping a detected person get Prompt, the rest get Fallback.
	DetectHumans bool `yaml:"humans"`

	// Verbose writes a timestamped snapshot after every painted region.
	Verbose bool `yaml:"verbose"`

	// Resume continues a matching unfinished journaled job instead of
	// starting over.
	Resume bool `yaml:"resume"`

	// APIKey overrides the environment credential for this job.
	APIKey string `yaml:"api_key"`
}

// ApplyDefaults fills the derivable fields: square 1024, step square/2.
func (j *Job) ApplyDefaults() {
	if j.Square == 0 {
		j.Square = 1024
	}
	if j.Step == 0 {
		j.Step = j.Square / 2
	}
}

// Validate fails fast on anything that would doom the job, before any image
// is decoded or any remote call is made. All returned errors are
// ConfigErrors carrying an actionable message.
func (j *Job) Validate() error {
	if j.ImagePath == "" {
		return core.ErrMissingConfig("image")
	}
	if j.OutputPath == "" {
		return core.ErrMissingConfig("output")
	}
	if j.OutWidth <= 0 {
		return core.ErrMissingConfig("width")
	}
	if j.OutHeight <= 0 {
		return core.ErrMissingConfig("height")
	}
	if !geometry.ValidSquareSize(j.Square) {
		return core.ErrInvalidSquare(j.Square)
	}
	if j.Step < 0 || j.Step > j.Square {
		return core.ErrInvalidStep(j.Step, j.Square)
	}
	return nil
}

// LoadJobFile reads a YAML job file.
func LoadJobFile(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read job file %s: %w", path, err)
	}
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("session: parse job file %s: %w", path, err)
	}
	return &job, nil
}
