package collide

import (
	"math"
	"math/rand"
	"testing"

	"gridsweep/internal/grid"
)

const eps = 1e-9

func newGrid(t testing.TB, w, h int, blocked ...[2]int) *grid.Grid {
	t.Helper()
	g, err := grid.New(w, h)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	for _, c := range blocked {
		if err := g.SetBlocked(c[0], c[1], true); err != nil {
			t.Fatalf("SetBlocked(%v): %v", c, err)
		}
	}
	return g
}

func assertHit(t *testing.T, got Hit, wantHit bool, wantX, wantY float64) {
	t.Helper()
	if got.Hit != wantHit {
		t.Fatalf("expected hit=%v, got %+v", wantHit, got)
	}
	if math.Abs(got.X-wantX) > eps || math.Abs(got.Y-wantY) > eps {
		t.Errorf("expected point (%v,%v), got (%v,%v)", wantX, wantY, got.X, got.Y)
	}
}

// demoGrid is the 20x20 grid with (4,2) and (5,6) blocked
func demoGrid(t testing.TB) *grid.Grid {
	return newGrid(t, 20, 20, [2]int{4, 2}, [2]int{5, 6})
}

// =============================================================================
// SEGMENT
// =============================================================================

func TestSegmentEmptyGridNeverHits(t *testing.T) {
	g := newGrid(t, 12, 9)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		sx, sy := rng.Float64()*30-9, rng.Float64()*30-9
		ex, ey := rng.Float64()*30-9, rng.Float64()*30-9
		assertHit(t, TestSegment(g, sx, sy, ex, ey), false, ex, ey)
	}
}

func TestSegmentBlockedStart(t *testing.T) {
	g := newGrid(t, 10, 10, [2]int{3, 3})

	tests := []struct {
		name   string
		ex, ey float64
	}{
		{"away", 9.5, 9.5},
		{"backwards", 0.2, 0.1},
		{"zero length", 3.4, 3.6},
		{"off grid", -20, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertHit(t, TestSegment(g, 3.4, 3.6, tt.ex, tt.ey), true, 3.4, 3.6)
		})
	}
}

func TestSegmentDemoDiagonalMisses(t *testing.T) {
	g := demoGrid(t)
	got := TestSegment(g, 2, 2, 18, 18)
	assertHit(t, got, false, 18, 18)
	if got.Steps != 32 {
		t.Errorf("expected 32 crossings along the lattice diagonal, got %d", got.Steps)
	}
}

func TestSegmentAxisAligned(t *testing.T) {
	g := newGrid(t, 10, 10, [2]int{5, 3}, [2]int{2, 1})

	tests := []struct {
		name           string
		sx, sy, ex, ey float64
		hit            bool
		hx, hy         float64
	}{
		{"horizontal into block", 1.5, 3.5, 8.5, 3.5, true, 5, 3.5},
		{"horizontal short of block", 1.5, 3.5, 4.5, 3.5, false, 4.5, 3.5},
		{"horizontal leftwards", 8.5, 3.5, 0.5, 3.5, true, 6, 3.5},
		{"vertical upwards into block", 2.5, 8.5, 2.5, 0.5, true, 2.5, 2},
		{"vertical downwards clear", 7.5, 0.5, 7.5, 9.5, false, 7.5, 9.5},
		{"vertical beside block", 3.5, 8.5, 3.5, 0.5, false, 3.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertHit(t, TestSegment(g, tt.sx, tt.sy, tt.ex, tt.ey), tt.hit, tt.hx, tt.hy)
		})
	}
}

func TestSegmentSlopedHitPoint(t *testing.T) {
	g := newGrid(t, 10, 10, [2]int{3, 2})
	// Walk: (0,0) (1,0) (1,1) (2,1) (3,1) (3,2); enters (3,2) across y=2 at x=3.5
	assertHit(t, TestSegment(g, 0.5, 0.5, 6.5, 3.5), true, 3.5, 2)
}

func TestSegmentOffGrid(t *testing.T) {
	g := newGrid(t, 10, 10, [2]int{2, 4})

	t.Run("moving away stops early", func(t *testing.T) {
		got := TestSegment(g, -2.5, 5, -300, 5)
		assertHit(t, got, false, -300, 5)
		if got.Steps != 1 {
			t.Errorf("expected traversal to stop after 1 step, took %d", got.Steps)
		}
	})

	t.Run("moving away diagonally", func(t *testing.T) {
		got := TestSegment(g, 12.5, 11.5, 400, 900)
		assertHit(t, got, false, 400, 900)
		if got.Steps > 2 {
			t.Errorf("expected early exit, took %d steps", got.Steps)
		}
	})

	t.Run("fixed axis outside grid", func(t *testing.T) {
		got := TestSegment(g, -4.5, -1, -4.5, 500)
		assertHit(t, got, false, -4.5, 500)
		if got.Steps != 1 {
			t.Errorf("expected early exit, took %d steps", got.Steps)
		}
	})

	t.Run("entering from outside", func(t *testing.T) {
		assertHit(t, TestSegment(g, -3.5, 4.5, 5.5, 4.5), true, 2, 4.5)
	})
}

func TestSegmentMonotonicity(t *testing.T) {
	g := demoGrid(t)
	rng := rand.New(rand.NewSource(11))

	checked := 0
	for i := 0; i < 400; i++ {
		sx, sy := rng.Float64()*20, rng.Float64()*20
		ex, ey := rng.Float64()*20, rng.Float64()*20

		first := TestSegment(g, sx, sy, ex, ey)
		if !first.Hit || (first.X == sx && first.Y == sy) {
			continue
		}
		checked++

		again := TestSegment(g, sx, sy, first.X, first.Y)
		if !again.Hit {
			t.Fatalf("segment (%v,%v)->(%v,%v) truncated at its hit point no longer hits", sx, sy, first.X, first.Y)
		}
		if math.Abs(again.X-first.X) > 1e-6 || math.Abs(again.Y-first.Y) > 1e-6 {
			t.Errorf("truncated hit (%v,%v) differs from original (%v,%v)", again.X, again.Y, first.X, first.Y)
		}
	}
	if checked == 0 {
		t.Fatal("no hitting segments generated")
	}
}

func TestSegmentExtendThroughBlock(t *testing.T) {
	g := newGrid(t, 16, 16, [2]int{9, 7})

	short := TestSegment(g, 1.3, 2.2, 5.1, 4.7)
	if short.Hit {
		t.Fatalf("short segment should miss, got %+v", short)
	}
	// Same direction, long enough to pass through (9,7)
	dx, dy := 5.1-1.3, 4.7-2.2
	long := TestSegment(g, 1.3, 2.2, 1.3+dx*3, 2.2+dy*3)
	if !long.Hit {
		t.Fatalf("extended segment should hit (9,7), got %+v", long)
	}
	if cellOf(long.X) != 9 && cellOf(long.Y) != 7 {
		t.Errorf("hit point (%v,%v) not on the boundary of (9,7)", long.X, long.Y)
	}
}

func TestSegmentIdempotent(t *testing.T) {
	g := demoGrid(t)
	a := TestSegment(g, 0.3, 7.9, 17.2, 1.1)
	b := TestSegment(g, 0.3, 7.9, 17.2, 1.1)
	if a != b {
		t.Errorf("repeated query differs: %+v vs %+v", a, b)
	}
}

func TestTraceSegmentVisitsInOrder(t *testing.T) {
	g := newGrid(t, 10, 10)
	var cells [][2]int
	TraceSegment(g, 0.5, 0.5, 2.5, 1.5, func(x, y int) {
		cells = append(cells, [2]int{x, y})
	})

	want := [][2]int{{0, 0}, {1, 0}, {1, 1}, {2, 1}}
	if len(cells) != len(want) {
		t.Fatalf("expected %v, got %v", want, cells)
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("step %d: expected %v, got %v", i, want[i], cells[i])
		}
		if i > 0 {
			d := abs(cells[i][0]-cells[i-1][0]) + abs(cells[i][1]-cells[i-1][1])
			if d != 1 {
				t.Errorf("step %d is not to a 4-neighbour", i)
			}
		}
	}
}

// =============================================================================
// SWEEP
// =============================================================================

func TestSweepEmptyGridNeverHits(t *testing.T) {
	g := newGrid(t, 12, 9)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 300; i++ {
		sx, sy := rng.Float64()*30-9, rng.Float64()*30-9
		ex, ey := rng.Float64()*30-9, rng.Float64()*30-9
		w, h := rng.Float64()*4, rng.Float64()*4
		assertHit(t, SweepBox(g, sx, sy, ex, ey, w, h), false, ex, ey)
	}
}

func TestSweepBlockedFootprint(t *testing.T) {
	g := newGrid(t, 10, 10, [2]int{6, 5})

	// 2x2 box at (5,5) spans [4,6]x[4,6]; its right edge touches column 6
	assertHit(t, SweepBox(g, 5, 5, 0.5, 0.5, 2, 2), true, 5, 5)
	// 1x1 box at the same spot does not reach it
	assertHit(t, SweepBox(g, 5.2, 5.2, 5.2, 0.5, 1, 1), false, 5.2, 0.5)
}

func TestSweepDemoBox(t *testing.T) {
	g := demoGrid(t)
	got := SweepBox(g, 2, 2, 18, 18, 3.5, 1.5)
	assertHit(t, got, true, 2.25, 2.25)

	if !(got.X > 2 && got.X < 18 && got.Y > 2 && got.Y < 18) {
		t.Errorf("hit point (%v,%v) should lie strictly between start and destination", got.X, got.Y)
	}
}

func TestSweepAxisAligned(t *testing.T) {
	tests := []struct {
		name           string
		blocked        [2]int
		sx, sy, ex, ey float64
		w, h           float64
		hit            bool
		hx, hy         float64
	}{
		{"right into column", [2]int{10, 4}, 3, 5, 15, 5, 2, 2, true, 9, 5},
		{"right passing above", [2]int{10, 8}, 3, 5, 15, 5, 2, 2, false, 15, 5},
		{"left into column", [2]int{1, 5}, 8, 5.5, 0.5, 5.5, 1, 1, true, 2.5, 5.5},
		{"up into row", [2]int{1, 1}, 3, 7.5, 3, 0.5, 3, 1, true, 3, 2.5},
		{"down past the side", [2]int{7, 6}, 3, 1, 3, 8.5, 3, 1, false, 3, 8.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGrid(t, 20, 10, tt.blocked)
			assertHit(t, SweepBox(g, tt.sx, tt.sy, tt.ex, tt.ey, tt.w, tt.h), tt.hit, tt.hx, tt.hy)
		})
	}
}

func TestSweepZeroSizeMatchesSegment(t *testing.T) {
	g := demoGrid(t)
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 300; i++ {
		sx, sy := rng.Float64()*20, rng.Float64()*20
		ex, ey := rng.Float64()*20, rng.Float64()*20

		seg := TestSegment(g, sx, sy, ex, ey)
		box := SweepBox(g, sx, sy, ex, ey, 0, 0)
		if seg.Hit != box.Hit {
			t.Fatalf("(%v,%v)->(%v,%v): segment %+v, zero box %+v", sx, sy, ex, ey, seg, box)
		}
		if seg.Hit && (math.Abs(seg.X-box.X) > 1e-9 || math.Abs(seg.Y-box.Y) > 1e-9) {
			t.Errorf("(%v,%v)->(%v,%v): segment hit %+v, zero box hit %+v", sx, sy, ex, ey, seg, box)
		}
	}
}

func TestSweepOffGridStopsEarly(t *testing.T) {
	g := newGrid(t, 10, 10)
	got := SweepBox(g, 13, 5, 900, 5, 2, 2)
	assertHit(t, got, false, 900, 5)
	if got.Steps > 2 {
		t.Errorf("expected early exit, took %d steps", got.Steps)
	}
}

func TestSweepIdempotent(t *testing.T) {
	g := demoGrid(t)
	a := SweepBox(g, 1.1, 15.2, 16.7, 3.3, 1.25, 2.5)
	b := SweepBox(g, 1.1, 15.2, 16.7, 3.3, 1.25, 2.5)
	if a != b {
		t.Errorf("repeated sweep differs: %+v vs %+v", a, b)
	}
}

func TestEndCellSnapsToGridLines(t *testing.T) {
	tests := []struct {
		v    float64
		dir  int
		want int
	}{
		{6.5, 1, 6},
		{6.5, -1, 6},
		{7, 1, 7},
		{7, -1, 6},
		{7.0000000000000009, -1, 6}, // one ulp above the line
		{6.9999999999999991, 1, 7},  // one ulp below the line
		{7.001, -1, 7},
		{-0.0000000000000001, 1, 0},
	}
	for _, tt := range tests {
		if got := endCell(tt.v, tt.dir); got != tt.want {
			t.Errorf("endCell(%v, %d) = %d, want %d", tt.v, tt.dir, got, tt.want)
		}
	}
}

func TestSweepTruncatedAtHitStillHits(t *testing.T) {
	g := demoGrid(t)

	// The rebuilt destination corner lands an ulp off the grid line the
	// original sweep stopped on.
	first := SweepBox(g, 2.38, 3.79, 19.46, 11.66, 2.79, 1.12)
	if !first.Hit {
		t.Fatalf("expected a hit, got %+v", first)
	}
	again := SweepBox(g, 2.38, 3.79, first.X, first.Y, 2.79, 1.12)
	if !again.Hit {
		t.Fatalf("sweep truncated at (%v,%v) no longer hits: %+v", first.X, first.Y, again)
	}
}

func TestSweepEdgesAreHalfOpen(t *testing.T) {
	// A 2x1 box at (4,5) spans x in [3,5]
	tests := []struct {
		name    string
		blocked [2]int
		wantHit bool
	}{
		{"max edge on line 5 touches cell 5", [2]int{5, 5}, true},
		{"min edge on line 3 misses cell 2", [2]int{2, 5}, false},
		{"inside", [2]int{3, 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGrid(t, 10, 10, tt.blocked)
			got := SweepBox(g, 4, 5, 4, 9, 2, 1)
			if got.Hit != tt.wantHit {
				t.Errorf("expected hit=%v, got %+v", tt.wantHit, got)
			}
		})
	}
}

func TestSweepMonotonicity(t *testing.T) {
	g := demoGrid(t)
	rng := rand.New(rand.NewSource(23))

	checked := 0
	for i := 0; i < 4000; i++ {
		sx, sy := rng.Float64()*20, rng.Float64()*20
		ex, ey := rng.Float64()*20, rng.Float64()*20
		w, h := rng.Float64()*3, rng.Float64()*3

		first := SweepBox(g, sx, sy, ex, ey, w, h)
		if !first.Hit || (first.X == sx && first.Y == sy) {
			continue
		}
		checked++

		again := SweepBox(g, sx, sy, first.X, first.Y, w, h)
		if !again.Hit {
			t.Fatalf("sweep %vx%v (%v,%v)->(%v,%v) truncated at its hit point no longer hits",
				w, h, sx, sy, first.X, first.Y)
		}
		if math.Abs(again.X-first.X) > 1e-6 || math.Abs(again.Y-first.Y) > 1e-6 {
			t.Errorf("truncated hit (%v,%v) differs from original (%v,%v)", again.X, again.Y, first.X, first.Y)
		}
	}
	if checked < 100 {
		t.Fatalf("only %d hitting sweeps generated", checked)
	}
}

func TestSweepExtendThroughBlock(t *testing.T) {
	g := demoGrid(t)
	rng := rand.New(rand.NewSource(29))
	centers := [][2]float64{{4.5, 2.5}, {5.5, 6.5}} // blocked cells of the demo grid

	checked := 0
	for i := 0; i < 400; i++ {
		cx, cy := centers[i%2][0], centers[i%2][1]
		sx, sy := rng.Float64()*20, rng.Float64()*20
		w, h := rng.Float64()*3, rng.Float64()*3
		dx, dy := cx-sx, cy-sy
		if math.Abs(dx) < 1e-3 && math.Abs(dy) < 1e-3 {
			continue
		}

		// Part of the way towards the block
		frac := rng.Float64() * 0.5
		short := SweepBox(g, sx, sy, sx+dx*frac, sy+dy*frac, w, h)
		if short.Hit {
			continue
		}
		checked++

		// Same direction, through the centre of the blocked cell and beyond
		long := SweepBox(g, sx, sy, cx+dx, cy+dy, w, h)
		if !long.Hit {
			t.Fatalf("sweep %vx%v from (%v,%v) through (%v,%v) should hit", w, h, sx, sy, cx, cy)
		}

		var along float64
		if math.Abs(dx) > math.Abs(dy) {
			along = (long.X - sx) / dx
		} else {
			along = (long.Y - sy) / dy
		}
		if along < frac-eps || along > 2+eps {
			t.Errorf("hit (%v,%v) outside the extended part of the path (t=%v, short end t=%v)",
				long.X, long.Y, along, frac)
		}
	}
	if checked < 100 {
		t.Fatalf("only %d missing short sweeps generated", checked)
	}
}

// =============================================================================
// BRUTE-FORCE CROSS-CHECKS
// =============================================================================

// sampleFirstContact samples a box (size 0 for a point) along the path and
// returns the first parameter t at which it overlaps a blocked cell by more
// than margin on both axes.
func sampleFirstContact(g *grid.Grid, sx, sy, ex, ey, w, h float64) (float64, bool) {
	const samples = 4000
	const margin = 1e-3

	for i := 0; i <= samples; i++ {
		t := float64(i) / samples
		cx, cy := sx+(ex-sx)*t, sy+(ey-sy)*t
		minX, maxX := cx-w/2, cx+w/2
		minY, maxY := cy-h/2, cy+h/2

		for y := int(math.Floor(minY)); y <= int(math.Floor(maxY)); y++ {
			for x := int(math.Floor(minX)); x <= int(math.Floor(maxX)); x++ {
				if !g.Blocked(x, y) {
					continue
				}
				ox := math.Min(maxX, float64(x+1)) - math.Max(minX, float64(x))
				oy := math.Min(maxY, float64(y+1)) - math.Max(minY, float64(y))
				if w == 0 {
					ox = math.Min(cx-float64(x), float64(x+1)-cx)
				}
				if h == 0 {
					oy = math.Min(cy-float64(y), float64(y+1)-cy)
				}
				if ox > margin && oy > margin {
					return t, true
				}
			}
		}
	}
	return 0, false
}

func paramOf(sx, sy, ex, ey, px, py float64) float64 {
	dx, dy := ex-sx, ey-sy
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return 0
	}
	return ((px-sx)*dx + (py-sy)*dy) / l2
}

func randomGrid(t testing.TB, rng *rand.Rand, w, h int, density float64) *grid.Grid {
	g := newGrid(t, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if rng.Float64() < density {
				g.SetBlocked(x, y, true)
			}
		}
	}
	return g
}

func TestSegmentAgainstSampling(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := randomGrid(t, rng, 24, 24, 0.08)

	for i := 0; i < 300; i++ {
		sx, sy := rng.Float64()*28-2, rng.Float64()*28-2
		ex, ey := rng.Float64()*28-2, rng.Float64()*28-2

		got := TestSegment(g, sx, sy, ex, ey)
		ts, sampled := sampleFirstContact(g, sx, sy, ex, ey, 0, 0)

		if sampled && !got.Hit {
			t.Fatalf("(%v,%v)->(%v,%v): sampling found contact at t=%v, query missed", sx, sy, ex, ey, ts)
		}
		if got.Hit && sampled {
			if tq := paramOf(sx, sy, ex, ey, got.X, got.Y); tq > ts+1e-3 {
				t.Errorf("(%v,%v)->(%v,%v): query contact t=%v after sampled t=%v", sx, sy, ex, ey, tq, ts)
			}
		}
	}
}

func TestSweepAgainstSampling(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	g := randomGrid(t, rng, 24, 24, 0.05)

	for i := 0; i < 300; i++ {
		sx, sy := rng.Float64()*28-2, rng.Float64()*28-2
		ex, ey := rng.Float64()*28-2, rng.Float64()*28-2
		w, h := 0.2+rng.Float64()*3, 0.2+rng.Float64()*3

		got := SweepBox(g, sx, sy, ex, ey, w, h)
		ts, sampled := sampleFirstContact(g, sx, sy, ex, ey, w, h)

		if sampled && !got.Hit {
			t.Fatalf("box %vx%v (%v,%v)->(%v,%v): sampling found contact at t=%v, sweep missed", w, h, sx, sy, ex, ey, ts)
		}
		if got.Hit && sampled {
			if tq := paramOf(sx, sy, ex, ey, got.X, got.Y); tq > ts+1e-3 {
				t.Errorf("box %vx%v (%v,%v)->(%v,%v): sweep contact t=%v after sampled t=%v", w, h, sx, sy, ex, ey, tq, ts)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// =============================================================================
// BENCHMARKS
// Run with: go test -bench=. -benchmem ./internal/collide/...
// =============================================================================

func BenchmarkTestSegment_Long(b *testing.B) {
	g := newGrid(b, 256, 256)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		TestSegment(g, 0.5, 0.5, 255.5, 201.25)
	}
}

func BenchmarkSweepBox_Long(b *testing.B) {
	g := newGrid(b, 256, 256)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		SweepBox(g, 2.5, 2.5, 250.5, 201.25, 3.5, 1.5)
	}
}
