// Package render draws a grid, and optionally query paths over it, to PNG.
//
// It is a static debug view for the HTTP service and the CLI, not an
// editor: one call produces one image.
package render

import (
	"image/color"
	"io"

	"gridsweep/internal/collide"
	"gridsweep/internal/grid"

	"github.com/fogleman/gg"
)

// Style controls image size and colors.
type Style struct {
	CellSize  int // pixels per cell
	MaxPixels int // cap on the longer image side; CellSize shrinks to fit

	Free    color.RGBA
	Blocked color.RGBA
	Lines   color.RGBA
	Visited color.RGBA
	Path    color.RGBA
	Hit     color.RGBA
	Box     color.RGBA
}

// DefaultStyle mirrors the classic light editor palette.
func DefaultStyle() Style {
	return Style{
		CellSize:  30,
		MaxPixels: 4096,
		Free:      color.RGBA{240, 240, 240, 255},
		Blocked:   color.RGBA{50, 50, 50, 255},
		Lines:     color.RGBA{210, 210, 210, 255},
		Visited:   color.RGBA{255, 214, 102, 160},
		Path:      color.RGBA{30, 110, 220, 255},
		Hit:       color.RGBA{230, 40, 40, 255},
		Box:       color.RGBA{30, 110, 220, 90},
	}
}

// Overlay is one query drawn over the grid. A zero-size box is drawn as a
// segment query.
type Overlay struct {
	StartX, StartY float64
	EndX, EndY     float64
	Width, Height  float64
}

// IsBox reports whether the overlay is a swept box.
func (o Overlay) IsBox() bool { return o.Width > 0 || o.Height > 0 }

// cellSize returns the pixel size that keeps the image within MaxPixels.
func (s Style) cellSize(g *grid.Grid) int {
	size := s.CellSize
	if size < 1 {
		size = 1
	}
	longest := g.Width()
	if g.Height() > longest {
		longest = g.Height()
	}
	if s.MaxPixels > 0 && longest*size > s.MaxPixels {
		size = s.MaxPixels / longest
		if size < 1 {
			size = 1
		}
	}
	return size
}

// Draw renders g and each overlay, returning the drawing context.
func Draw(g *grid.Grid, style Style, overlays ...Overlay) *gg.Context {
	cs := style.cellSize(g)
	scale := float64(cs)
	dc := gg.NewContext(g.Width()*cs, g.Height()*cs)

	drawCells(dc, g, style, scale)

	for _, o := range overlays {
		drawOverlay(dc, g, style, scale, o)
	}
	return dc
}

// WritePNG renders g with overlays and encodes it to w.
func WritePNG(w io.Writer, g *grid.Grid, style Style, overlays ...Overlay) error {
	return Draw(g, style, overlays...).EncodePNG(w)
}

func drawCells(dc *gg.Context, g *grid.Grid, style Style, scale float64) {
	dc.SetColor(style.Free)
	dc.DrawRectangle(0, 0, float64(dc.Width()), float64(dc.Height()))
	dc.Fill()

	dc.SetColor(style.Blocked)
	for _, c := range g.BlockedCells() {
		dc.DrawRectangle(float64(c[0])*scale, float64(c[1])*scale, scale, scale)
	}
	dc.Fill()

	if scale < 4 {
		return
	}
	dc.SetColor(style.Lines)
	dc.SetLineWidth(1)
	for x := 0; x <= g.Width(); x++ {
		dc.DrawLine(float64(x)*scale, 0, float64(x)*scale, float64(dc.Height()))
	}
	for y := 0; y <= g.Height(); y++ {
		dc.DrawLine(0, float64(y)*scale, float64(dc.Width()), float64(y)*scale)
	}
	dc.Stroke()
}

func drawOverlay(dc *gg.Context, g *grid.Grid, style Style, scale float64, o Overlay) {
	// Cells the query looked at
	seen := make(map[[2]int]struct{})
	visit := func(x, y int) {
		if g.InBounds(x, y) {
			seen[[2]int{x, y}] = struct{}{}
		}
	}

	var hit collide.Hit
	if o.IsBox() {
		hit = collide.TraceBox(g, o.StartX, o.StartY, o.EndX, o.EndY, o.Width, o.Height, visit)
	} else {
		hit = collide.TraceSegment(g, o.StartX, o.StartY, o.EndX, o.EndY, visit)
	}

	dc.SetColor(style.Visited)
	for c := range seen {
		dc.DrawRectangle(float64(c[0])*scale, float64(c[1])*scale, scale, scale)
	}
	dc.Fill()

	// Requested path
	dc.SetColor(style.Path)
	dc.SetLineWidth(2)
	dc.DrawLine(o.StartX*scale, o.StartY*scale, o.EndX*scale, o.EndY*scale)
	dc.Stroke()

	if o.IsBox() {
		drawBox(dc, style.Box, scale, o.StartX, o.StartY, o.Width, o.Height)
		drawBox(dc, style.Box, scale, hit.X, hit.Y, o.Width, o.Height)
	}

	if hit.Hit {
		dc.SetColor(style.Hit)
		dc.DrawCircle(hit.X*scale, hit.Y*scale, 4)
		dc.Fill()
	}
}

func drawBox(dc *gg.Context, c color.RGBA, scale, cx, cy, w, h float64) {
	dc.SetColor(c)
	dc.DrawRectangle((cx-w/2)*scale, (cy-h/2)*scale, w*scale, h*scale)
	dc.Fill()
}
