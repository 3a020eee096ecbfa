// Package core provides configuration, error taxonomy and the capability
// contracts consumed by the outpainting pipeline.
package core

import (
	"context"
)

// Box is an axis-aligned bounding box in canvas pixel coordinates.
// X1/Y1 are exclusive, matching image.Rectangle conventions.
type Box struct {
	X0, Y0, X1, Y1 int
}

// Intersects reports whether the box overlaps the given rectangle.
// Touching edges do not count as overlap.
func (b Box) Intersects(x0, y0, x1, y1 int) bool {
	return x0 < b.X1 && x1 > b.X0 && y0 < b.Y1 && y1 > b.Y0
}

// Offset returns the box translated by (dx, dy).
func (b Box) Offset(dx, dy int) Box {
	return Box{X0: b.X0 + dx, Y0: b.Y0 + dy, X1: b.X1 + dx, Y1: b.Y1 + dy}
}

// ImageGenerator is the remote generation capability: given a PNG context
// image, a PNG mask (transparent pixels mark the area to generate) and a
// prompt, it returns the generated pixels for a square of the given size.
//
// Implementations must be idempotent-safe to retry with identical inputs.
// Errors should be classifiable as transient or fatal (see the generation
// package); unclassified errors are treated as transient.
type ImageGenerator interface {
	Generate(ctx context.Context, contextPNG, maskPNG []byte, prompt string, size int) ([]byte, error)
}

// Describer produces a short text description of an image. Used to
// auto-generate the main prompt when the caller supplies none.
type Describer interface {
	Describe(ctx context.Context, imagePNG []byte) (string, error)
}

// Detector finds subject (human) bounding boxes in an image. An empty slice
// means no subjects were found; that is not an error.
type Detector interface {
	Detect(ctx context.Context, imagePNG []byte) ([]Box, error)
}
