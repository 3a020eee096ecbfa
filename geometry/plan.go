package geometry

import (
	"image"

	"multinpainter/core"
)

// Direction tags which side of the painted area a region extends.
type Direction string

const (
	DirInit      Direction = "init"
	DirLeft      Direction = "left"
	DirRight     Direction = "right"
	DirUp        Direction = "up"
	DirDown      Direction = "down"
	DirUpLeft    Direction = "up-left"
	DirUpRight   Direction = "up-right"
	DirDownLeft  Direction = "down-left"
	DirDownRight Direction = "down-right"
)

// Region is one square of the outpaint plan. X/Y is the nominal square
// origin on the canvas; Clip is the part of the square actually on the
// canvas (smaller than Size x Size only when the canvas itself is smaller
// than the square). Regions are immutable once planned.
type Region struct {
	Index int // ordinal position in the plan
	Dir   Direction
	X, Y  int
	Size  int
	Clip  image.Rectangle
}

// Bounds returns the nominal square rectangle, which may extend past the
// canvas. Use Clip for the on-canvas part.
func (r Region) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Size, r.Y+r.Size)
}

// Sweep is one ordered directional chain of regions. Regions within a sweep
// must be generated in order because each supplies context for the next.
type Sweep struct {
	Dir     Direction
	Regions []Region
}

// Phase groups sweeps that are safe to run concurrently: sweeps in the same
// phase never paint pixels inside another sweep's squares, so their context
// crops are stable with respect to each other.
type Phase struct {
	Sweeps []Sweep
}

// Plan is the complete ordered outpaint plan for one job.
//
// Regions is the flat sequential order; Phases is the same set of regions
// grouped into dependency-safe execution phases for concurrent traversal.
// Both views share the same Region values (same ordinal indices).
type Plan struct {
	Placement  Placement
	OutW, OutH int
	Square     int
	Step       int
	Regions    []Region
	Phases     []Phase
}

// BuildPlan derives the outpaint plan for the given placement and canvas.
//
// The plan starts with an initial square centered on the source footprint,
// then sweeps outward: the horizontal phase interleaves the left and right
// sweeps (left first), the vertical phase interleaves up and down, and four
// diagonal quadrant sweeps fill the corners as cross products of the
// corresponding cardinal positions. Sweep positions advance by step and
// clamp at the canvas edge, so the final square of each sweep lands flush
// with the boundary.
//
// The order is fixed and the construction is pure, so identical inputs
// always yield an identical plan.
func BuildPlan(placement Placement, outW, outH, square, step int) (*Plan, error) {
	if !ValidSquareSize(square) {
		return nil, core.ErrInvalidSquare(square)
	}
	if step == 0 {
		step = square / 2
	}
	if step < 0 || step > square {
		return nil, core.ErrInvalidStep(step, square)
	}

	plan := &Plan{
		Placement: placement,
		OutW:      outW,
		OutH:      outH,
		Square:    square,
		Step:      step,
	}

	initX := clamp(placement.X-(square-placement.Width)/2, 0, maxOrigin(outW, square))
	initY := clamp(placement.Y-(square-placement.Height)/2, 0, maxOrigin(outH, square))

	// Cardinal positions: step-spaced coordinates walking from the initial
	// square to each canvas edge, clamped so the last one is flush.
	leftXs := walk(initX, -step, 0)
	rightXs := walk(initX, step, maxOrigin(outW, square))
	upYs := walk(initY, -step, 0)
	downYs := walk(initY, step, maxOrigin(outH, square))

	mk := func(dir Direction, x, y int) Region {
		return Region{
			Dir:  dir,
			X:    x,
			Y:    y,
			Size: square,
			Clip: image.Rect(x, y, x+square, y+square).Intersect(image.Rect(0, 0, outW, outH)),
		}
	}

	initSweep := Sweep{Dir: DirInit, Regions: []Region{mk(DirInit, initX, initY)}}

	left := Sweep{Dir: DirLeft}
	for _, x := range leftXs {
		left.Regions = append(left.Regions, mk(DirLeft, x, initY))
	}
	right := Sweep{Dir: DirRight}
	for _, x := range rightXs {
		right.Regions = append(right.Regions, mk(DirRight, x, initY))
	}
	up := Sweep{Dir: DirUp}
	for _, y := range upYs {
		up.Regions = append(up.Regions, mk(DirUp, initX, y))
	}
	down := Sweep{Dir: DirDown}
	for _, y := range downYs {
		down.Regions = append(down.Regions, mk(DirDown, initX, y))
	}

	// Quadrants are cross products of the cardinal positions, in the
	// original vertical-major order.
	quadrant := func(dir Direction, ys, xs []int) Sweep {
		s := Sweep{Dir: dir}
		for _, y := range ys {
			for _, x := range xs {
				s.Regions = append(s.Regions, mk(dir, x, y))
			}
		}
		return s
	}
	upLeft := quadrant(DirUpLeft, upYs, leftXs)
	upRight := quadrant(DirUpRight, upYs, rightXs)
	downLeft := quadrant(DirDownLeft, downYs, leftXs)
	downRight := quadrant(DirDownRight, downYs, rightXs)

	// Opposite sweeps never paint inside each other's squares (anything the
	// pair could both touch lies inside the initial square, painted in the
	// phase before), so left/right share a phase and up/down share a phase.
	// Perpendicular sweeps can touch, hence separate phases. Quadrants read
	// cardinal pixels and may cross the center line when step < square/2,
	// so each runs as its own chain in one final phase-pair split the same
	// way.
	plan.Phases = []Phase{
		{Sweeps: []Sweep{initSweep}},
		{Sweeps: []Sweep{left, right}},
		{Sweeps: []Sweep{up, down}},
		{Sweeps: []Sweep{upLeft, upRight}},
		{Sweeps: []Sweep{downLeft, downRight}},
	}

	// Flat sequential order interleaves the sweeps of each phase so the
	// painted area grows evenly around the source.
	for _, phase := range plan.Phases {
		for _, r := range interleave(phase.Sweeps) {
			plan.Regions = append(plan.Regions, r)
		}
	}

	// Assign ordinal indices, shared by both views.
	for i := range plan.Regions {
		plan.Regions[i].Index = i
	}
	reindex := make(map[[2]int]int, len(plan.Regions))
	for _, r := range plan.Regions {
		if _, seen := reindex[[2]int{r.X, r.Y}]; !seen {
			reindex[[2]int{r.X, r.Y}] = r.Index
		}
	}
	for pi := range plan.Phases {
		for si := range plan.Phases[pi].Sweeps {
			regions := plan.Phases[pi].Sweeps[si].Regions
			for ri := range regions {
				regions[ri].Index = reindex[[2]int{regions[ri].X, regions[ri].Y}]
			}
		}
	}

	return plan, nil
}

// walk returns the step-spaced coordinates from start (exclusive) toward
// limit, clamping the final position to land exactly on the limit. Returns
// nil when start is already at or past the limit in the travel direction.
func walk(start, step, limit int) []int {
	var out []int
	cur := start
	for {
		next := cur + step
		if step < 0 {
			if next < limit {
				next = limit
			}
			if next >= cur {
				return out
			}
		} else {
			if next > limit {
				next = limit
			}
			if next <= cur {
				return out
			}
		}
		out = append(out, next)
		cur = next
	}
}

// interleave merges sweeps round-robin: first region of each sweep, then
// second of each, preserving every sweep's internal order.
func interleave(sweeps []Sweep) []Region {
	var out []Region
	for i := 0; ; i++ {
		emitted := false
		for _, s := range sweeps {
			if i < len(s.Regions) {
				out = append(out, s.Regions[i])
				emitted = true
			}
		}
		if !emitted {
			return out
		}
	}
}

// maxOrigin returns the largest valid square origin on an axis of the given
// extent, never negative (a canvas smaller than the square pins the origin
// at zero and the region clips).
func maxOrigin(extent, square int) int {
	if extent <= square {
		return 0
	}
	return extent - square
}
