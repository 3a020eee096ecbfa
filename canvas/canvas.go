// Package canvas maintains the output image and the painted mask during an
// outpaint job. The canvas is the single mutable surface of the pipeline:
// every write goes through a mutex, and every pixel is painted at most once.
package canvas

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Canvas is the output image under construction plus a per-pixel painted
// mask. All methods are safe for concurrent use.
type Canvas struct {
	mu      sync.Mutex
	img     *image.RGBA
	painted *image.Alpha
}

// New creates an empty transparent canvas of the given size.
func New(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas: invalid size %dx%d", width, height)
	}
	rect := image.Rect(0, 0, width, height)
	return &Canvas{
		img:     image.NewRGBA(rect),
		painted: image.NewAlpha(rect),
	}, nil
}

// FromImage restores a canvas from a previously saved partial output.
// Opaque pixels are the painted set; fully transparent pixels are still open
// for generation. This is how a resumed job gets its pixels back, with the
// journal supplying the matching region statuses.
func FromImage(img *image.RGBA) *Canvas {
	b := img.Bounds()
	c := &Canvas{
		img:     image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy())),
		painted: image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy())),
	}
	draw.Draw(c.img, c.img.Bounds(), img, b.Min, draw.Src)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if c.img.RGBAAt(x, y).A != 0 {
				c.painted.SetAlpha(x, y, color.Alpha{A: 0xff})
			}
		}
	}
	return c
}

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// Paste copies src onto the canvas at the given offset, flattens it to full
// opacity and marks the covered pixels painted. Used once per job to place
// the source image. The whole footprint counts as painted regardless of the
// source's own alpha; flattening keeps that true for a canvas later rebuilt
// from the saved file's opacity with FromImage.
func (c *Canvas) Paste(src image.Image, at image.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dst := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}.Intersect(c.img.Bounds())
	draw.Draw(c.img, dst, src, src.Bounds().Min, draw.Src)
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			px := c.img.RGBAAt(x, y)
			px.A = 0xff
			c.img.SetRGBA(x, y, px)
		}
	}
	c.markPainted(dst)
}

// CropContext extracts a size x size context square for a region at the
// given origin. Painted pixels carry their canvas colors; unpainted pixels
// are fully transparent, which is what the image edit API masks on. Parts of
// the square past the canvas edge are transparent too.
func (c *Canvas) CropContext(origin image.Point, size int) *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	src := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))}.
		Intersect(c.img.Bounds())

	for y := src.Min.Y; y < src.Max.Y; y++ {
		for x := src.Min.X; x < src.Max.X; x++ {
			if c.painted.AlphaAt(x, y).A == 0 {
				continue
			}
			out.SetRGBA(x-origin.X, y-origin.Y, c.img.RGBAAt(x, y))
		}
	}
	return out
}

// ApplyResult composites a generated square into the region at origin,
// writing only pixels that are still unpainted. Already painted pixels keep
// their existing values, so earlier results and the source are never
// overwritten. Returns the number of pixels newly painted.
//
// A result whose size differs from size is rescaled before compositing.
func (c *Canvas) ApplyResult(origin image.Point, size int, result image.Image) int {
	square := toSquareRGBA(result, size)

	c.mu.Lock()
	defer c.mu.Unlock()

	dst := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))}.
		Intersect(c.img.Bounds())

	painted := 0
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			if c.painted.AlphaAt(x, y).A != 0 {
				continue
			}
			px := square.RGBAAt(x-origin.X, y-origin.Y)
			px.A = 0xff
			c.img.SetRGBA(x, y, px)
			c.painted.SetAlpha(x, y, color.Alpha{A: 0xff})
			painted++
		}
	}
	return painted
}

// RegionPainted reports whether every canvas pixel inside rect is already
// painted. Used to skip completed regions when resuming a job.
func (c *Canvas) RegionPainted(rect image.Rectangle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rect = rect.Intersect(c.painted.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if c.painted.AlphaAt(x, y).A == 0 {
				return false
			}
		}
	}
	return true
}

// PaintedFraction returns the share of canvas pixels painted so far, in
// [0, 1]. Used for progress reporting.
func (c *Canvas) PaintedFraction() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := len(c.painted.Pix)
	if total == 0 {
		return 0
	}
	n := 0
	for _, a := range c.painted.Pix {
		if a != 0 {
			n++
		}
	}
	return float64(n) / float64(total)
}

// Image returns a copy of the current canvas pixels. The copy is safe to
// encode or inspect while painting continues.
func (c *Canvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

// markPainted sets the painted mask over rect. Caller holds the lock.
func (c *Canvas) markPainted(rect image.Rectangle) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c.painted.SetAlpha(x, y, color.Alpha{A: 0xff})
		}
	}
}

// toSquareRGBA converts img to an RGBA square of edge size, rescaling with
// Catmull-Rom when the dimensions differ.
func toSquareRGBA(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == image.Pt(0, 0) {
			return rgba
		}
		out := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}
