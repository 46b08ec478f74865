// Package collide answers line-segment and swept-box queries against a
// binary occupancy grid.
//
// Both queries walk the grid one grid-line crossing at a time (a DDA
// traversal), so they only ever touch the cells the geometry actually passes
// through. One world unit is one cell; cell (x, y) covers [x,x+1)x[y,y+1).
package collide

import "math"

// Occupancy is the read-only view of a grid the queries need.
// *grid.Grid satisfies it.
type Occupancy interface {
	Width() int
	Height() int
	Blocked(x, y int) bool
}

// Hit is the outcome of a query.
//
// X, Y is the position of the query point (segment point or box center) at
// first contact. When nothing is hit it is the destination.
type Hit struct {
	Hit   bool    `json:"hit"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Steps int     `json:"steps"` // grid-line crossings walked
}

// direction returns +1 for non-negative deltas and -1 otherwise.
// A zero delta still needs a sign to pick the box's leading corner; the
// walker never steps along that axis because it is marked unbounded.
func direction(delta float64) int {
	if delta >= 0 {
		return 1
	}
	return -1
}

func cellOf(v float64) int { return int(math.Floor(v)) }

// lineSnap is how close to a grid line a destination must be to count as
// on it. Sweep destinations are rebuilt from a center plus a half extent and
// can miss the line they were derived from by an ulp.
const lineSnap = 1e-9

// endCell returns the cell a walk moving in dir finishes in when it stops at
// v. Arriving on a grid line (within lineSnap) counts as entering the cell
// beyond it, in either direction.
func endCell(v float64, dir int) int {
	if r := math.Round(v); math.Abs(v-r) < lineSnap {
		v = r
	}
	if dir < 0 {
		return int(math.Ceil(v)) - 1
	}
	return cellOf(v)
}

// walker tracks one point travelling along a straight line and moves it from
// grid line to grid line in crossing order.
type walker struct {
	x, y         float64 // current point
	cellX, cellY int     // cell the walk is in
	endX, endY   int     // destination cell
	xdir, ydir   int

	// dy is Δy/Δx (y travelled per unit of x), dx is Δx/Δy.
	dy, dx float64

	// An axis with no motion never crosses a grid line. Its slope would be
	// infinite, so it is flagged instead and never chosen as the next step.
	xFixed, yFixed bool

	// Distance along the line to the next vertical / horizontal grid line.
	toNextX, toNextY float64

	steps int
}

// newWalker starts a walk at (x, y) that stops at (x+deltaX, y+deltaY).
func newWalker(x, y, deltaX, deltaY float64) *walker {
	w := &walker{
		x:      x,
		y:      y,
		cellX:  cellOf(x),
		cellY:  cellOf(y),
		xdir:   direction(deltaX),
		ydir:   direction(deltaY),
		xFixed: deltaX == 0,
		yFixed: deltaY == 0,
	}
	w.endX = endCell(x+deltaX, w.xdir)
	w.endY = endCell(y+deltaY, w.ydir)

	if !w.xFixed {
		w.dy = deltaY / deltaX
		stepX := line(w.cellX+w.xdir, w.xdir) - x
		w.toNextX = math.Hypot(stepX, stepX*w.dy)
	}
	if !w.yFixed {
		w.dx = deltaX / deltaY
		stepY := line(w.cellY+w.ydir, w.ydir) - y
		w.toNextY = math.Hypot(stepY, stepY*w.dx)
	}
	return w
}

// done reports whether the walk has reached the destination cell.
func (w *walker) done() bool {
	return w.cellX == w.endX && w.cellY == w.endY
}

// nextIsX decides which grid line is crossed next. Ties go to X.
//
// An axis already in its destination column/row is never stepped again.
// In exact arithmetic the distances agree with this; with floating point it
// keeps drift from walking past the destination, so a walk always ends after
// |Δcell x| + |Δcell y| steps.
func (w *walker) nextIsX() bool {
	switch {
	case w.cellX == w.endX:
		return false
	case w.cellY == w.endY:
		return true
	case w.xFixed:
		return false
	case w.yFixed:
		return true
	default:
		return w.toNextX <= w.toNextY
	}
}

// line returns the coordinate of the grid line crossed to enter cell c
// while moving in dir.
func line(c, dir int) float64 {
	if dir < 0 {
		return float64(c + 1)
	}
	return float64(c)
}

// step moves the point exactly onto the next grid line and reports whether
// the crossed line was vertical (an X step).
func (w *walker) step() bool {
	w.steps++
	if w.nextIsX() {
		w.cellX += w.xdir
		next := line(w.cellX, w.xdir)
		w.y += (next - w.x) * w.dy
		w.x = next

		// Keep the other axis measured along the same line
		if !w.yFixed {
			w.toNextY -= w.toNextX
		}
		w.toNextX = math.Hypot(1, w.dy)
		return true
	}

	w.cellY += w.ydir
	next := line(w.cellY, w.ydir)
	w.x += (next - w.y) * w.dx
	w.y = next

	if !w.xFixed {
		w.toNextX -= w.toNextY
	}
	w.toNextY = math.Hypot(w.dx, 1)
	return false
}

// leftGrid reports whether a span of cells [lo, hi] on one axis lies outside
// [0, size) and the motion on that axis can never bring it back.
func leftGrid(lo, hi, size, dir int, fixed bool) bool {
	if fixed {
		dir = 0
	}
	return (lo >= size && dir >= 0) || (hi < 0 && dir <= 0)
}
