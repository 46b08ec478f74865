package collide

// TestSegment tests the segment from (startX, startY) to (endX, endY) against
// the blocked cells of g and returns the first point where it enters one.
//
// Both endpoints may lie outside the grid.
func TestSegment(g Occupancy, startX, startY, endX, endY float64) Hit {
	return traceSegment(g, startX, startY, endX, endY, nil)
}

// TraceSegment is TestSegment that also reports every cell the segment
// enters, starting with the start cell, in traversal order.
func TraceSegment(g Occupancy, startX, startY, endX, endY float64, visit func(x, y int)) Hit {
	return traceSegment(g, startX, startY, endX, endY, visit)
}

func traceSegment(g Occupancy, startX, startY, endX, endY float64, visit func(x, y int)) Hit {
	width, height := g.Width(), g.Height()

	w := newWalker(startX, startY, endX-startX, endY-startY)
	if visit != nil {
		visit(w.cellX, w.cellY)
	}

	if inGrid(w.cellX, w.cellY, width, height) && g.Blocked(w.cellX, w.cellY) {
		return Hit{Hit: true, X: startX, Y: startY}
	}

	for !w.done() {
		w.step()
		if visit != nil {
			visit(w.cellX, w.cellY)
		}

		if inGrid(w.cellX, w.cellY, width, height) {
			if g.Blocked(w.cellX, w.cellY) {
				return Hit{Hit: true, X: w.x, Y: w.y, Steps: w.steps}
			}
			continue
		}

		// Off the grid and moving away from it
		if leftGrid(w.cellX, w.cellX, width, w.xdir, w.xFixed) ||
			leftGrid(w.cellY, w.cellY, height, w.ydir, w.yFixed) {
			break
		}
	}

	return Hit{X: endX, Y: endY, Steps: w.steps}
}

func inGrid(x, y, width, height int) bool {
	return x >= 0 && x < width && y >= 0 && y < height
}
