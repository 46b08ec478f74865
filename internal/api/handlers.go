package api

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"

	"gridsweep/internal/grid"
	"gridsweep/internal/layout"
	"gridsweep/internal/render"
	"gridsweep/internal/world"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Grid

func (h *routerHandlers) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	snap := h.world.Snapshot()
	blocked := snap.Grid.BlockedCells()
	if blocked == nil {
		blocked = [][2]int{}
	}
	writeJSON(w, map[string]interface{}{
		"width":   snap.Grid.Width(),
		"height":  snap.Grid.Height(),
		"version": snap.Version,
		"blocked": blocked,
	})
}

func (h *routerHandlers) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	snap := h.world.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Grid-Version", strconv.FormatUint(snap.Version, 10))
	w.Write([]byte(layout.Format(snap.Grid)))
}

// handleGetPNG renders the grid. Query parameters sx, sy, ex, ey draw a
// segment overlay; adding w and h draws a swept box instead.
func (h *routerHandlers) handleGetPNG(w http.ResponseWriter, r *http.Request) {
	overlays, err := h.parseOverlay(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	style := render.DefaultStyle()
	style.CellSize = h.render.CellSize
	style.MaxPixels = h.render.MaxPixels

	snap := h.world.Snapshot()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Grid-Version", strconv.FormatUint(snap.Version, 10))
	if err := render.WritePNG(w, snap.Grid, style, overlays...); err != nil {
		log.Printf("❌ PNG render failed: %v", err)
	}
}

func (h *routerHandlers) parseOverlay(r *http.Request) ([]render.Overlay, error) {
	q := r.URL.Query()
	if q.Get("sx") == "" {
		return nil, nil
	}

	names := []string{"sx", "sy", "ex", "ey", "w", "h"}
	vals := make([]float64, len(names))
	for i, name := range names {
		raw := q.Get(name)
		if raw == "" {
			if i >= 4 {
				continue // w, h are optional
			}
			return nil, errors.Errorf("missing %s", name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.Errorf("invalid %s", name)
		}
		vals[i] = v
	}
	if err := checkCoordinates(h.maxCoordinate, vals...); err != nil {
		return nil, err
	}
	if vals[4] < 0 || vals[5] < 0 {
		return nil, errors.New("box size must not be negative")
	}

	return []render.Overlay{{
		StartX: vals[0], StartY: vals[1],
		EndX: vals[2], EndY: vals[3],
		Width: vals[4], Height: vals[5],
	}}, nil
}

func (h *routerHandlers) handleFill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blocked bool `json:"blocked"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}

	h.world.Fill(req.Blocked)
	writeJSON(w, map[string]bool{"success": true})
}

// Cells

func (h *routerHandlers) handleGetCell(w http.ResponseWriter, r *http.Request) {
	x, y, ok := cellParams(w, r)
	if !ok {
		return
	}

	cell, err := h.world.Cell(x, y)
	if err != nil {
		writeCellError(w, err)
		return
	}
	writeJSON(w, cellJSON(x, y, cell.Blocked))
}

func (h *routerHandlers) handlePutCell(w http.ResponseWriter, r *http.Request) {
	x, y, ok := cellParams(w, r)
	if !ok {
		return
	}

	var req struct {
		Blocked *bool `json:"blocked"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Blocked == nil {
		writeError(w, "body must be {\"blocked\": bool}", http.StatusBadRequest)
		return
	}

	if err := h.world.SetBlocked(x, y, *req.Blocked); err != nil {
		writeCellError(w, err)
		return
	}
	writeJSON(w, cellJSON(x, y, *req.Blocked))
}

func (h *routerHandlers) handleToggleCell(w http.ResponseWriter, r *http.Request) {
	x, y, ok := cellParams(w, r)
	if !ok {
		return
	}

	blocked, err := h.world.Toggle(x, y)
	if err != nil {
		writeCellError(w, err)
		return
	}
	writeJSON(w, cellJSON(x, y, blocked))
}

func cellParams(w http.ResponseWriter, r *http.Request) (x, y int, ok bool) {
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errX != nil || errY != nil {
		writeError(w, "cell coordinates must be integers", http.StatusBadRequest)
		return 0, 0, false
	}
	return x, y, true
}

func cellJSON(x, y int, blocked bool) map[string]interface{} {
	return map[string]interface{}{"x": x, "y": y, "blocked": blocked}
}

func writeCellError(w http.ResponseWriter, err error) {
	if errors.Is(err, grid.ErrOutOfRange) {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Printf("❌ Cell edit failed: %v", err)
	writeError(w, "internal error", http.StatusInternalServerError)
}

// Queries

func (h *routerHandlers) handleSegment(w http.ResponseWriter, r *http.Request) {
	var q world.SegmentQuery
	if err := decodeJSON(w, r, &q); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := checkCoordinates(h.maxCoordinate, q.StartX, q.StartY, q.EndX, q.EndY); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.world.Segment(q)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *routerHandlers) handleSweep(w http.ResponseWriter, r *http.Request) {
	var q world.SweepQuery
	if err := decodeJSON(w, r, &q); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := checkCoordinates(h.maxCoordinate, q.StartX, q.StartY, q.EndX, q.EndY, q.Width, q.Height); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.world.Sweep(q)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, res)
}

// errUnknownCommand is returned for WebSocket events the hub does not accept.
var errUnknownCommand = errors.New("unknown command")

// checkCoordinates rejects values the traversal could spend too long on.
func checkCoordinates(limit float64, vs ...float64) error {
	for _, v := range vs {
		if math.Abs(v) > limit {
			return errors.Errorf("coordinate %v exceeds limit %v", v, limit)
		}
	}
	return nil
}

func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, world.ErrInvalidQuery) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("❌ Query failed: %v", err)
	writeError(w, "internal error", http.StatusInternalServerError)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"grid":      h.world.Stats(),
		"rateLimit": h.rateLimiter.GetStats(),
	}
	if h.journal != nil {
		stats["journal"] = h.journal.Stats()
	}
	if h.websocket != nil {
		stats["websocket"] = h.websocket.Stats()
	}
	writeJSON(w, stats)
}

// Helper functions

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
