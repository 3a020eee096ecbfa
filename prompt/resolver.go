// Package prompt selects the text prompt for each outpaint region and
// derives prompts from the source image via the OpenAI chat API: a scene
// description when the caller gave no prompt, a human-free fallback prompt,
// and human bounding boxes for per-region prompt selection.
package prompt

import (
	"image"

	"multinpainter/core"
)

// Resolver picks the prompt for a region given its canvas rectangle.
// Implementations must be pure: the same rectangle always gets the same
// prompt, so retried and resumed regions stay consistent.
type Resolver interface {
	Resolve(region image.Rectangle) string
}

// StaticResolver returns the same prompt for every region. Used when human
// detection is off or no humans were found.
type StaticResolver struct {
	Prompt string
}

var _ Resolver = StaticResolver{}

func (r StaticResolver) Resolve(image.Rectangle) string { return r.Prompt }

// DetectionResolver returns the main prompt for regions that overlap a
// detected human box and the fallback prompt everywhere else, keeping the
// generator from painting stray figures into empty scenery.
type DetectionResolver struct {
	Main     string
	Fallback string
	Boxes    []core.Box // human boxes in canvas coordinates
}

var _ Resolver = DetectionResolver{}

// Resolve returns Main if any box overlaps the region, Fallback otherwise.
// Touching edges do not count as overlap.
func (r DetectionResolver) Resolve(region image.Rectangle) string {
	for _, box := range r.Boxes {
		if box.Intersects(region.Min.X, region.Min.Y, region.Max.X, region.Max.Y) {
			return r.Main
		}
	}
	return r.Fallback
}
