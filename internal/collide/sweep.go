package collide

// SweepBox moves an axis-aligned box of the given full width and height from
// center (startX, startY) to center (endX, endY) and returns the center of
// the box when it first touches a blocked cell.
//
// The box is reduced to its leading corner, the corner facing the direction
// of travel, which is walked like a segment. Every time the corner crosses a
// vertical grid line the box enters a new column of cells spanning its
// height; every horizontal crossing enters a new row spanning its width.
// Only those strips are checked.
func SweepBox(g Occupancy, startX, startY, endX, endY, width, height float64) Hit {
	return traceBox(g, startX, startY, endX, endY, width, height, nil)
}

// TraceBox is SweepBox that also reports every in-grid cell it checks, in
// the order they are checked.
func TraceBox(g Occupancy, startX, startY, endX, endY, width, height float64, visit func(x, y int)) Hit {
	return traceBox(g, startX, startY, endX, endY, width, height, visit)
}

func traceBox(g Occupancy, startX, startY, endX, endY, width, height float64, visit func(x, y int)) Hit {
	gw, gh := g.Width(), g.Height()
	halfW, halfH := width*0.5, height*0.5

	// Starting placement
	if footprintBlocked(g, startX-halfW, startY-halfH, startX+halfW, startY+halfH, visit) {
		return Hit{Hit: true, X: startX, Y: startY}
	}

	xdir := float64(direction(endX - startX))
	ydir := float64(direction(endY - startY))

	w := newWalker(startX+halfW*xdir, startY+halfH*ydir, endX-startX, endY-startY)

	for !w.done() {
		crossedX := w.step()

		// Span of the box on the axis parallel to the crossed line, from the
		// corner back across the box.
		var lo, hi int
		if crossedX {
			lo, hi = span(w.cellY, cellOf(w.y-height*ydir))
			if stripBlocked(g, lo, hi, gh, func(i int) (int, int) { return w.cellX, i }, visit) {
				return boxHit(w, halfW*xdir, halfH*ydir)
			}
		} else {
			lo, hi = span(w.cellX, cellOf(w.x-width*xdir))
			if stripBlocked(g, lo, hi, gw, func(i int) (int, int) { return i, w.cellY }, visit) {
				return boxHit(w, halfW*xdir, halfH*ydir)
			}
		}

		minX, maxX := span(w.cellX, cellOf(w.x-width*xdir))
		minY, maxY := span(w.cellY, cellOf(w.y-height*ydir))
		if leftGrid(minX, maxX, gw, w.xdir, w.xFixed) || leftGrid(minY, maxY, gh, w.ydir, w.yFixed) {
			break
		}
	}

	return Hit{X: endX, Y: endY, Steps: w.steps}
}

// boxHit converts the corner position back into the box center.
func boxHit(w *walker, offX, offY float64) Hit {
	return Hit{Hit: true, X: w.x - offX, Y: w.y - offY, Steps: w.steps}
}

// footprintBlocked checks every in-grid cell touched by the rectangle
// [minX,maxX]x[minY,maxY]. Cells are half-open: an edge exactly on line k
// touches cell k from either side, never cell k-1.
func footprintBlocked(g Occupancy, minX, minY, maxX, maxY float64, visit func(x, y int)) bool {
	x0, x1 := clip(cellOf(minX), cellOf(maxX), g.Width())
	y0, y1 := clip(cellOf(minY), cellOf(maxY), g.Height())

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if visit != nil {
				visit(x, y)
			}
			if g.Blocked(x, y) {
				return true
			}
		}
	}
	return false
}

// stripBlocked checks the cells lo..hi of a single row or column, clipped to
// [0, size). at maps a strip index to grid coordinates.
func stripBlocked(g Occupancy, lo, hi, size int, at func(i int) (int, int), visit func(x, y int)) bool {
	lo, hi = clip(lo, hi, size)
	for i := lo; i <= hi; i++ {
		x, y := at(i)
		if !inGrid(x, y, g.Width(), g.Height()) {
			return false
		}
		if visit != nil {
			visit(x, y)
		}
		if g.Blocked(x, y) {
			return true
		}
	}
	return false
}

func span(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// clip restricts [lo, hi] to [0, size). The result is empty (lo > hi) when
// the range misses entirely.
func clip(lo, hi, size int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi >= size {
		hi = size - 1
	}
	return lo, hi
}
