// Package grid provides the fixed-size binary occupancy grid queried by the
// collision engine.
//
// Cells are stored in a single preallocated slice in row-major order
// (cells[y*width+x]). Callers never receive references into that slice:
// reads return copies and writes go through SetBlocked.
package grid

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidDimension is returned when a grid is created with a
	// non-positive width or height.
	ErrInvalidDimension = errors.New("grid: invalid dimension")

	// ErrOutOfRange is returned when a cell outside [0,width)x[0,height)
	// is accessed through the checked accessors.
	ErrOutOfRange = errors.New("grid: cell out of range")
)

// Cell is the state of one unit square of the grid.
type Cell struct {
	Blocked bool `json:"blocked"`
}

// Grid is a width x height array of cells. Dimensions are fixed at
// construction; cell contents may change freely.
type Grid struct {
	width, height int
	cells         []Cell
}

// New allocates a grid with every cell free.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidDimension, "%dx%d", width, height)
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (x, y) addresses a cell of the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

func (g *Grid) index(x, y int) int { return y*g.width + x }

func (g *Grid) check(x, y int) error {
	if !g.InBounds(x, y) {
		return errors.Wrapf(ErrOutOfRange, "(%d,%d) not in %dx%d", x, y, g.width, g.height)
	}
	return nil
}

// Cell returns a copy of the cell at (x, y).
func (g *Grid) Cell(x, y int) (Cell, error) {
	if err := g.check(x, y); err != nil {
		return Cell{}, err
	}
	return g.cells[g.index(x, y)], nil
}

// SetBlocked sets the blocked state of the cell at (x, y).
func (g *Grid) SetBlocked(x, y int, blocked bool) error {
	if err := g.check(x, y); err != nil {
		return err
	}
	g.cells[g.index(x, y)].Blocked = blocked
	return nil
}

// Blocked reports whether (x, y) is inside the grid and blocked.
// Out-of-range coordinates are simply free; this is the accessor the
// traversal uses after its own bounds checks.
func (g *Grid) Blocked(x, y int) bool {
	if !g.InBounds(x, y) {
		return false
	}
	return g.cells[g.index(x, y)].Blocked
}

// Fill sets every cell to the given state.
func (g *Grid) Fill(blocked bool) {
	for i := range g.cells {
		g.cells[i].Blocked = blocked
	}
}

// BlockedCount returns the number of blocked cells.
func (g *Grid) BlockedCount() int {
	n := 0
	for _, c := range g.cells {
		if c.Blocked {
			n++
		}
	}
	return n
}

// Clone returns a deep copy that shares no storage with g.
func (g *Grid) Clone() *Grid {
	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return &Grid{width: g.width, height: g.height, cells: cells}
}

// BlockedCells returns the coordinates of every blocked cell in row-major
// order.
func (g *Grid) BlockedCells() [][2]int {
	out := make([][2]int, 0, 16)
	for i, c := range g.cells {
		if c.Blocked {
			out = append(out, [2]int{i % g.width, i / g.width})
		}
	}
	return out
}
