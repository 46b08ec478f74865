package api

import (
	"net/http"

	"gridsweep/internal/config"
	"gridsweep/internal/grid"
	"gridsweep/internal/world"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// WorldInterface is the part of *world.World the API calls.
// Tests substitute a mock; keep it minimal.
type WorldInterface interface {
	Dimensions() (width, height int)
	Cell(x, y int) (grid.Cell, error)
	SetBlocked(x, y int, blocked bool) error
	Toggle(x, y int) (bool, error)
	Fill(blocked bool)
	Segment(q world.SegmentQuery) (world.QueryResult, error)
	Sweep(q world.SweepQuery) (world.QueryResult, error)
	Snapshot() world.Snapshot
	Stats() world.Stats
}

// StatsProvider is a component that reports counters under /api/stats.
type StatsProvider interface {
	Stats() map[string]interface{}
}

// RouterConfig contains everything needed to construct the HTTP router.
//
//	router := api.NewRouter(api.RouterConfig{
//	    World: w,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// World is the grid service (required)
	World WorldInterface

	// RateLimiter is an optional pre-built limiter. If nil, one is created
	// from RateLimitConfig, or DefaultRateLimitConfig when that is nil too.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to DefaultCORSOrigins when nil.
	CORSOrigins []string

	// Render sizes PNG snapshots. Zero value means config.DefaultRender().
	Render config.RenderConfig

	// MaxCoordinate bounds query coordinates. Zero means
	// config.DefaultLimits().MaxCoordinate.
	MaxCoordinate float64

	// Journal and WebSocket add their counters to /api/stats when set.
	Journal   StatsProvider
	WebSocket StatsProvider

	// DisableLogging turns off the request logger (benchmarks).
	DisableLogging bool
}

type routerHandlers struct {
	world         WorldInterface
	render        config.RenderConfig
	maxCoordinate float64
	rateLimiter   *IPRateLimiter
	journal       StatsProvider
	websocket     StatsProvider
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// NewRouter is pure apart from the limiter's cleanup goroutine when it has
// to create one: no listeners are opened, so it is safe to wrap in
// httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - order matters
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimiter = NewIPRateLimiter(rateLimitConfigOrDefault(cfg.RateLimitConfig))
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		world:         cfg.World,
		render:        cfg.Render,
		maxCoordinate: cfg.MaxCoordinate,
		rateLimiter:   rateLimiter,
		journal:       cfg.Journal,
		websocket:     cfg.WebSocket,
	}
	if h.render.CellSize == 0 {
		h.render = config.DefaultRender()
	}
	if h.maxCoordinate <= 0 {
		h.maxCoordinate = config.DefaultLimits().MaxCoordinate
	}

	r.Route("/api", func(r chi.Router) {
		// Grid
		r.Get("/grid", h.handleGetGrid)
		r.Get("/grid/layout", h.handleGetLayout)
		r.Get("/grid.png", h.handleGetPNG)
		r.Post("/grid/fill", h.handleFill)

		// Cells
		r.Get("/cells/{x}/{y}", h.handleGetCell)
		r.Put("/cells/{x}/{y}", h.handlePutCell)
		r.Post("/cells/{x}/{y}/toggle", h.handleToggleCell)

		// Queries
		r.Post("/query/segment", h.handleSegment)
		r.Post("/query/sweep", h.handleSweep)

		r.Get("/stats", h.handleGetStats)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/grid", http.StatusFound)
	})

	return r
}

func rateLimitConfigOrDefault(cfg *RateLimitConfig) RateLimitConfig {
	if cfg != nil {
		return *cfg
	}
	return DefaultRateLimitConfig
}
