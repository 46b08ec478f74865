package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"gridsweep/internal/config"
	"gridsweep/internal/world"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// Server is the HTTP API server with WebSocket support.
type Server struct {
	world       *world.World
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	startOnce   sync.Once

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer wires the router and WebSocket hub to w and subscribes to its
// events for metrics and broadcasting. journal may be nil.
//
// Background workers do not start until Start is called; use Router with
// httptest in tests.
func NewServer(w *world.World, cfg config.AppConfig, journal StatsProvider) *Server {
	rlCfg := RateLimitConfigFrom(cfg.Limits)
	s := &Server{
		world:       w,
		wsHub:       NewWebSocketHub(w, cfg.Limits, cfg.Server.CORSOrigins),
		rateLimiter: NewIPRateLimiter(rlCfg),
	}

	s.router = NewRouter(RouterConfig{
		World:         w,
		RateLimiter:   s.rateLimiter,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Render:        cfg.Render,
		MaxCoordinate: cfg.Limits.MaxCoordinate,
		Journal:       journal,
		WebSocket:     s.wsHub,
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	w.Subscribe(s.onWorldEvent)

	return s
}

// onWorldEvent records metrics and forwards the event to WebSocket clients.
func (s *Server) onWorldEvent(ev world.Event) {
	switch ev.Type {
	case world.EventCell:
		RecordEdit("cell", s.world.Stats().BlockedCells)
	case world.EventFill:
		RecordEdit("fill", s.world.Stats().BlockedCells)
	case world.EventQuery:
		q := ev.Query
		RecordQuery(string(q.Kind), q.Hit.Hit, q.Steps, q.Duration)
	}
	s.wsHub.PublishEvent(ev)
}

// Start starts the hub and serves HTTP on addr until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start(addr string) error {
	s.startOnce.Do(func() {
		go s.wsHub.Run()
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	log.Printf("🌐 API server starting on %s", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "api server")
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires and then stops the background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	return err
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}
