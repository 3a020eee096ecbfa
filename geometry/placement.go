// Package geometry computes the canvas expansion and the ordered outpaint
// plan: where the source image lands on the output canvas and which square
// regions, in which order, cover the remaining unpainted area.
//
// Everything in this package is pure: identical inputs always produce
// identical placements and plans, which is what makes plans reproducible and
// partially completed jobs resumable.
package geometry

import (
	"image"

	"multinpainter/core"
)

// AllowedSquareSizes are the square edge lengths accepted by the image edit
// API. The planner rejects any other value.
var AllowedSquareSizes = []int{1024, 512, 256}

// ValidSquareSize reports whether size is one of the allowed square sizes.
func ValidSquareSize(size int) bool {
	for _, s := range AllowedSquareSizes {
		if size == s {
			return true
		}
	}
	return false
}

// Placement describes where the source image sits on the output canvas.
// Computed once per job and never changed afterwards.
type Placement struct {
	X, Y          int // top-left offset of the source on the canvas
	Width, Height int // source dimensions
}

// Bounds returns the source footprint as a rectangle in canvas coordinates.
func (p Placement) Bounds() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
}

// DefaultFocus returns the center of the source image, used when no subject
// was detected and no explicit focus point was given.
func DefaultFocus(srcW, srcH int) image.Point {
	return image.Pt(srcW/2, srcH/2)
}

// FocusFromBox returns the center of a detected subject box (source image
// coordinates), used to bias the placement toward a detected face.
func FocusFromBox(box core.Box) image.Point {
	return image.Pt((box.X0+box.X1)/2, (box.Y0+box.Y1)/2)
}

// ComputePlacement positions the source footprint on the output canvas so
// that the focus point maps as close as possible to the canvas center.
//
// The rule splits the total expansion proportionally to where the focus sits
// inside the source: a focus at 30% of the source width puts 30% of the
// horizontal expansion on the left. Each side is then clamped into
// [0, out-src] so the footprint always stays fully on the canvas; a focus
// outside the source therefore degenerates to flush placement at the nearer
// edge rather than pushing the source off-canvas.
//
// Returns InvalidDimensions when the output is smaller than the source on
// either axis. Shrinking is not supported.
func ComputePlacement(srcW, srcH, outW, outH int, focus image.Point) (Placement, error) {
	if srcW <= 0 || srcH <= 0 {
		return Placement{}, core.ErrInvalidImage("source", "zero or negative dimensions")
	}
	if outW < srcW || outH < srcH {
		return Placement{}, core.ErrInvalidDimensions(srcW, srcH, outW, outH)
	}

	left := int(float64(outW-srcW) * float64(focus.X) / float64(srcW))
	top := int(float64(outH-srcH) * float64(focus.Y) / float64(srcH))

	left = clamp(left, 0, outW-srcW)
	top = clamp(top, 0, outH-srcH)

	return Placement{X: left, Y: top, Width: srcW, Height: srcH}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
