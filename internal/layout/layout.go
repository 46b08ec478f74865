// Package layout reads and writes grids as plain-text layouts.
//
// One line per row, top row first. '#' is a blocked cell and '.' a free one.
// Blank lines and lines starting with ';' are ignored.
//
//	; 6x3 room with a pillar
//	......
//	..#...
//	......
package layout

import (
	"bufio"
	"io"
	"os"
	"strings"

	"gridsweep/internal/grid"

	"github.com/pkg/errors"
)

const (
	Blocked = '#'
	Free    = '.'
	Comment = ';'
)

// ErrMalformed is returned for layouts with unknown symbols or ragged rows.
var ErrMalformed = errors.New("layout: malformed")

// Parse reads a layout into a new grid.
func Parse(r io.Reader) (*grid.Grid, error) {
	var rows []string
	width := 0

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == Comment {
			continue
		}
		if width == 0 {
			width = len(line)
		}
		if len(line) != width {
			return nil, errors.Wrapf(ErrMalformed, "line %d: row has %d cells, expected %d", lineNo, len(line), width)
		}
		if i := strings.IndexFunc(line, func(r rune) bool { return r != Blocked && r != Free }); i >= 0 {
			return nil, errors.Wrapf(ErrMalformed, "line %d col %d: unknown symbol %q", lineNo, i+1, line[i])
		}
		rows = append(rows, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "layout: read")
	}

	g, err := grid.New(width, len(rows))
	if err != nil {
		return nil, errors.Wrap(err, "layout: empty")
	}
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			if row[x] == Blocked {
				g.SetBlocked(x, y, true)
			}
		}
	}
	return g, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*grid.Grid, error) {
	return Parse(strings.NewReader(s))
}

// Load parses the layout file at path.
func Load(path string) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "layout: open")
	}
	defer f.Close()
	return Parse(f)
}

// Format renders g as a layout. Parse(Format(g)) reproduces g.
func Format(g *grid.Grid) string {
	var b strings.Builder
	b.Grow((g.Width() + 1) * g.Height())
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			if g.Blocked(x, y) {
				b.WriteByte(Blocked)
			} else {
				b.WriteByte(Free)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
