// Package world wraps a single grid for concurrent callers.
//
// Queries share a read lock and may run in parallel; cell edits take the
// write lock. Subscribers are notified of every edit and query after the
// lock has been released, so they may call back into the World.
package world

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gridsweep/internal/collide"
	"gridsweep/internal/grid"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalidQuery is returned for queries with non-finite coordinates or
// negative box sizes.
var ErrInvalidQuery = errors.New("world: invalid query")

// QueryKind names the two query types.
type QueryKind string

const (
	KindSegment QueryKind = "segment"
	KindSweep   QueryKind = "sweep"
)

// SegmentQuery is a TestSegment request in world units.
type SegmentQuery struct {
	StartX float64 `json:"startX"`
	StartY float64 `json:"startY"`
	EndX   float64 `json:"endX"`
	EndY   float64 `json:"endY"`
}

// SweepQuery is a SweepBox request. Width and Height are the full box size.
type SweepQuery struct {
	SegmentQuery
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// QueryResult is the outcome of one query against a specific grid version.
type QueryResult struct {
	ID      string    `json:"id"`
	Kind    QueryKind `json:"kind"`
	Version uint64    `json:"version"`
	collide.Hit
	Duration time.Duration `json:"-"`
}

// CellChange describes one edited cell.
type CellChange struct {
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Blocked bool `json:"blocked"`
}

// EventType classifies World notifications.
type EventType uint8

const (
	EventUnknown EventType = iota
	EventCell
	EventFill
	EventQuery
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventCell:
		return "grid:cell"
	case EventFill:
		return "grid:fill"
	case EventQuery:
		return "query:result"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers. Exactly one of Cell, Fill or Query is
// set, matching Type.
type Event struct {
	Type    EventType
	Version uint64
	Cell    *CellChange
	Fill    *bool
	Query   *QueryResult
}

// Stats are cumulative counters since the World was created.
type Stats struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Version      uint64 `json:"version"`
	BlockedCells int    `json:"blockedCells"`
	Edits        uint64 `json:"edits"`
	Segments     uint64 `json:"segments"`
	Sweeps       uint64 `json:"sweeps"`
	Hits         uint64 `json:"hits"`
}

// Snapshot is an immutable copy of the grid at a version.
type Snapshot struct {
	Version uint64
	Grid    *grid.Grid
}

// World owns one grid and serializes access to it.
type World struct {
	mu      sync.RWMutex
	grid    *grid.Grid
	version uint64

	subMu       sync.RWMutex
	subscribers []func(Event)

	edits    atomic.Uint64
	segments atomic.Uint64
	sweeps   atomic.Uint64
	hits     atomic.Uint64
}

// New wraps g. The World takes ownership; callers must not touch g afterwards.
func New(g *grid.Grid) *World {
	return &World{grid: g}
}

// NewEmpty creates a World over a fresh width x height grid.
func NewEmpty(width, height int) (*World, error) {
	g, err := grid.New(width, height)
	if err != nil {
		return nil, err
	}
	return New(g), nil
}

// Subscribe registers fn for every subsequent event.
func (w *World) Subscribe(fn func(Event)) {
	w.subMu.Lock()
	w.subscribers = append(w.subscribers, fn)
	w.subMu.Unlock()
}

func (w *World) publish(ev Event) {
	w.subMu.RLock()
	subs := w.subscribers
	w.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Dimensions returns the grid size.
func (w *World) Dimensions() (width, height int) {
	// Dimensions are immutable, no lock needed
	return w.grid.Width(), w.grid.Height()
}

// Version increases by one with every edit.
func (w *World) Version() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

// Cell returns a copy of the cell at (x, y).
func (w *World) Cell(x, y int) (grid.Cell, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.grid.Cell(x, y)
}

// SetBlocked sets one cell. Setting a cell to its current state is not an
// edit and publishes nothing.
func (w *World) SetBlocked(x, y int, blocked bool) error {
	w.mu.Lock()
	cur, err := w.grid.Cell(x, y)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if cur.Blocked == blocked {
		w.mu.Unlock()
		return nil
	}
	w.grid.SetBlocked(x, y, blocked)
	w.version++
	version := w.version
	w.mu.Unlock()

	w.edits.Add(1)
	w.publish(Event{
		Type:    EventCell,
		Version: version,
		Cell:    &CellChange{X: x, Y: y, Blocked: blocked},
	})
	return nil
}

// Toggle flips one cell and returns its new state.
func (w *World) Toggle(x, y int) (bool, error) {
	w.mu.Lock()
	cur, err := w.grid.Cell(x, y)
	if err != nil {
		w.mu.Unlock()
		return false, err
	}
	blocked := !cur.Blocked
	w.grid.SetBlocked(x, y, blocked)
	w.version++
	version := w.version
	w.mu.Unlock()

	w.edits.Add(1)
	w.publish(Event{
		Type:    EventCell,
		Version: version,
		Cell:    &CellChange{X: x, Y: y, Blocked: blocked},
	})
	return blocked, nil
}

// Fill sets every cell to blocked.
func (w *World) Fill(blocked bool) {
	w.mu.Lock()
	w.grid.Fill(blocked)
	w.version++
	version := w.version
	w.mu.Unlock()

	w.edits.Add(1)
	w.publish(Event{Type: EventFill, Version: version, Fill: &blocked})
}

// Segment runs TestSegment under the read lock.
func (w *World) Segment(q SegmentQuery) (QueryResult, error) {
	if !finite(q.StartX, q.StartY, q.EndX, q.EndY) {
		return QueryResult{}, errors.Wrap(ErrInvalidQuery, "coordinates must be finite")
	}

	w.mu.RLock()
	start := time.Now()
	hit := collide.TestSegment(w.grid, q.StartX, q.StartY, q.EndX, q.EndY)
	elapsed := time.Since(start)
	version := w.version
	w.mu.RUnlock()

	w.segments.Add(1)
	return w.finish(KindSegment, version, hit, elapsed), nil
}

// Sweep runs SweepBox under the read lock.
func (w *World) Sweep(q SweepQuery) (QueryResult, error) {
	if !finite(q.StartX, q.StartY, q.EndX, q.EndY, q.Width, q.Height) {
		return QueryResult{}, errors.Wrap(ErrInvalidQuery, "coordinates and size must be finite")
	}
	if q.Width < 0 || q.Height < 0 {
		return QueryResult{}, errors.Wrapf(ErrInvalidQuery, "negative box size %vx%v", q.Width, q.Height)
	}

	w.mu.RLock()
	start := time.Now()
	hit := collide.SweepBox(w.grid, q.StartX, q.StartY, q.EndX, q.EndY, q.Width, q.Height)
	elapsed := time.Since(start)
	version := w.version
	w.mu.RUnlock()

	w.sweeps.Add(1)
	return w.finish(KindSweep, version, hit, elapsed), nil
}

func (w *World) finish(kind QueryKind, version uint64, hit collide.Hit, elapsed time.Duration) QueryResult {
	if hit.Hit {
		w.hits.Add(1)
	}
	res := QueryResult{
		ID:       uuid.New().String(),
		Kind:     kind,
		Version:  version,
		Hit:      hit,
		Duration: elapsed,
	}
	w.publish(Event{Type: EventQuery, Version: version, Query: &res})
	return res
}

// Snapshot returns a deep copy of the grid and the version it reflects.
func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Snapshot{Version: w.version, Grid: w.grid.Clone()}
}

// Stats returns the current counters.
func (w *World) Stats() Stats {
	w.mu.RLock()
	s := Stats{
		Width:        w.grid.Width(),
		Height:       w.grid.Height(),
		Version:      w.version,
		BlockedCells: w.grid.BlockedCount(),
	}
	w.mu.RUnlock()

	s.Edits = w.edits.Load()
	s.Segments = w.segments.Load()
	s.Sweeps = w.sweeps.Load()
	s.Hits = w.hits.Load()
	return s
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
