// Command gridquery runs one collision query against a layout file and
// prints the result, optionally rendering it to PNG.
//
//	gridquery -layout maps/demo.txt -from 2,2 -to 18,18 -box 3.5,1.5 -png out.png
//	gridquery -demo
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gridsweep/internal/collide"
	"gridsweep/internal/config"
	"gridsweep/internal/grid"
	"gridsweep/internal/layout"
	"gridsweep/internal/render"

	"github.com/pkg/errors"
)

type query struct {
	sx, sy, ex, ey float64
	w, h           float64
}

func (q query) isBox() bool { return q.w > 0 || q.h > 0 }

func (q query) run(g *grid.Grid) collide.Hit {
	if q.isBox() {
		return collide.SweepBox(g, q.sx, q.sy, q.ex, q.ey, q.w, q.h)
	}
	return collide.TestSegment(g, q.sx, q.sy, q.ex, q.ey)
}

// check applies the same coordinate limit the HTTP query endpoints use.
func (q query) check(limit float64) error {
	for _, v := range []float64{q.sx, q.sy, q.ex, q.ey, q.w, q.h} {
		if !(math.Abs(v) <= limit) {
			return errors.Errorf("%s: coordinate %v exceeds limit %v", q, v, limit)
		}
	}
	return nil
}

func (q query) String() string {
	if q.isBox() {
		return fmt.Sprintf("sweep %gx%g (%g,%g)->(%g,%g)", q.w, q.h, q.sx, q.sy, q.ex, q.ey)
	}
	return fmt.Sprintf("segment (%g,%g)->(%g,%g)", q.sx, q.sy, q.ex, q.ey)
}

func main() {
	layoutPath := flag.String("layout", "", "text layout file ('#' blocked, '.' free)")
	width := flag.Int("width", 20, "grid width when no layout is given")
	height := flag.Int("height", 20, "grid height when no layout is given")
	block := flag.String("block", "", "extra blocked cells, e.g. \"4,2;5,6\"")
	from := flag.String("from", "", "start point x,y")
	to := flag.String("to", "", "end point x,y")
	box := flag.String("box", "", "box size w,h; sweeps a box instead of a segment")
	pngPath := flag.String("png", "", "write a PNG of the grid and query")
	asJSON := flag.Bool("json", false, "print results as JSON")
	demo := flag.Bool("demo", false, "run the 20x20 demo scenario")
	flag.Parse()

	if err := run(options{
		layoutPath: *layoutPath, width: *width, height: *height, block: *block,
		from: *from, to: *to, box: *box, pngPath: *pngPath, asJSON: *asJSON, demo: *demo,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "gridquery:", err)
		os.Exit(1)
	}
}

type options struct {
	layoutPath    string
	width, height int
	block         string
	from, to, box string
	pngPath       string
	asJSON        bool
	demo          bool
}

func run(opts options) error {
	var (
		g       *grid.Grid
		queries []query
		err     error
	)

	if opts.demo {
		g, queries, err = demoScenario()
	} else {
		g, err = loadGrid(opts)
		if err == nil {
			var q query
			q, err = parseQuery(opts)
			queries = []query{q}
		}
	}
	if err != nil {
		return err
	}
	limit := config.DefaultLimits().MaxCoordinate
	for _, q := range queries {
		if err := q.check(limit); err != nil {
			return err
		}
	}

	overlays := make([]render.Overlay, 0, len(queries))
	for _, q := range queries {
		hit := q.run(g)
		if err := report(q, hit, opts.asJSON); err != nil {
			return err
		}
		overlays = append(overlays, render.Overlay{
			StartX: q.sx, StartY: q.sy, EndX: q.ex, EndY: q.ey, Width: q.w, Height: q.h,
		})
	}

	if opts.pngPath == "" {
		return nil
	}
	f, err := os.Create(opts.pngPath)
	if err != nil {
		return errors.Wrap(err, "create png")
	}
	if err := render.WritePNG(f, g, render.DefaultStyle(), overlays...); err != nil {
		f.Close()
		return errors.Wrap(err, "write png")
	}
	return f.Close()
}

// demoScenario is the 20x20 grid with cells (4,2) and (5,6) blocked, a
// segment and a 3.5x1.5 box both travelling from (2,2) to (18,18).
func demoScenario() (*grid.Grid, []query, error) {
	g, err := grid.New(20, 20)
	if err != nil {
		return nil, nil, err
	}
	g.SetBlocked(4, 2, true)
	g.SetBlocked(5, 6, true)

	return g, []query{
		{sx: 2, sy: 2, ex: 18, ey: 18},
		{sx: 2, sy: 2, ex: 18, ey: 18, w: 3.5, h: 1.5},
	}, nil
}

func loadGrid(opts options) (*grid.Grid, error) {
	var (
		g   *grid.Grid
		err error
	)
	if opts.layoutPath != "" {
		g, err = layout.Load(opts.layoutPath)
	} else {
		g, err = grid.New(opts.width, opts.height)
	}
	if err != nil {
		return nil, err
	}

	if opts.block == "" {
		return g, nil
	}
	for _, cell := range strings.Split(opts.block, ";") {
		x, y, err := parsePair(cell)
		if err != nil {
			return nil, errors.Wrapf(err, "block %q", cell)
		}
		if err := g.SetBlocked(int(x), int(y), true); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func parseQuery(opts options) (query, error) {
	if opts.from == "" || opts.to == "" {
		return query{}, errors.New("-from and -to are required (or use -demo)")
	}

	var q query
	var err error
	if q.sx, q.sy, err = parsePair(opts.from); err != nil {
		return query{}, errors.Wrap(err, "-from")
	}
	if q.ex, q.ey, err = parsePair(opts.to); err != nil {
		return query{}, errors.Wrap(err, "-to")
	}
	if opts.box != "" {
		if q.w, q.h, err = parsePair(opts.box); err != nil {
			return query{}, errors.Wrap(err, "-box")
		}
		if q.w < 0 || q.h < 0 {
			return query{}, errors.New("-box: size must not be negative")
		}
	}
	return q, nil
}

// parsePair parses "x,y".
func parsePair(s string) (float64, float64, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return 0, 0, errors.Errorf("expected x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, 0, errors.Wrap(err, "x")
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, 0, errors.Wrap(err, "y")
	}
	return x, y, nil
}

func report(q query, hit collide.Hit, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(struct {
			Query string `json:"query"`
			collide.Hit
		}{q.String(), hit})
	}

	outcome := "miss, reached"
	if hit.Hit {
		outcome = "hit at"
	}
	fmt.Printf("%s: %s (%g,%g) after %d steps\n", q, outcome, hit.X, hit.Y, hit.Steps)
	return nil
}
