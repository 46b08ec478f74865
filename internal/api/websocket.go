package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"gridsweep/internal/config"
	"gridsweep/internal/world"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 5 * time.Second
	wsRegisterWait   = 2 * time.Second
	wsMaxMessageSize = 4096
)

// wsMessage is the envelope for both directions: {"event": ..., "data": ...}.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsClient is one WebSocket connection. Writes are serialized by mu so the
// hub and the client's own read loop can both reply.
type wsClient struct {
	id   string
	ip   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) sendEvent(event string, data interface{}) error {
	msg, err := encodeEvent(event, data)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// WebSocketHub fans world events out to every connected client and accepts
// edit and query commands from them.
type WebSocketHub struct {
	world         WorldInterface
	maxCoordinate float64
	maxTotal      int

	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once

	// registerWait bounds how long a new connection waits for Run.
	registerWait time.Duration
	mu           sync.RWMutex

	wsLimiter *WebSocketRateLimiter
	origins   *OriginChecker
	upgrader  websocket.Upgrader
}

// NewWebSocketHub creates a hub. Nothing runs until Run is called.
func NewWebSocketHub(w WorldInterface, limits config.LimitsConfig, origins []string) *WebSocketHub {
	h := &WebSocketHub{
		world:         w,
		maxCoordinate: limits.MaxCoordinate,
		maxTotal:      limits.MaxWSClients,
		clients:       make(map[*wsClient]struct{}),
		broadcast:     make(chan []byte, 256),
		register:      make(chan *wsClient),
		unregister:    make(chan *wsClient),
		done:          make(chan struct{}),
		registerWait:  wsRegisterWait,
		wsLimiter:     NewWebSocketRateLimiter(limits.MaxWSPerIP),
		origins:       NewOriginChecker(origins),
	}
	if h.maxCoordinate <= 0 {
		h.maxCoordinate = config.DefaultLimits().MaxCoordinate
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if h.origins.Allowed(origin) {
		return true
	}
	log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
	RecordConnectionRejected("origin")
	return false
}

// Run processes registrations and broadcasts until Stop is called.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				c.conn.Close()
				h.wsLimiter.Release(c.ip)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case c := <-h.register:
			// The state goes out before any broadcast can reach c. Events
			// still queued with a version <= the state's are already in it.
			if err := h.sendState(c); err != nil {
				c.conn.Close()
				h.wsLimiter.Release(c.ip)
				continue
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client %s connected from %s (%d total)", c.id, c.ip, count)
			UpdateWSConnections(count)

		case c := <-h.unregister:
			h.remove(c)

		case message := <-h.broadcast:
			h.mu.RLock()
			var dead []*wsClient
			for c := range h.clients {
				if err := c.send(message); err != nil {
					dead = append(dead, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range dead {
				h.remove(c)
			}
			IncrementWSMessages()
		}
	}
}

func (h *WebSocketHub) sendState(c *wsClient) error {
	snap := h.world.Snapshot()
	blocked := snap.Grid.BlockedCells()
	if blocked == nil {
		blocked = [][2]int{}
	}
	return c.sendEvent("grid:state", map[string]interface{}{
		"client":  c.id,
		"width":   snap.Grid.Width(),
		"height":  snap.Grid.Height(),
		"version": snap.Version,
		"blocked": blocked,
	})
}

func (h *WebSocketHub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		h.wsLimiter.Release(c.ip)
		c.conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Printf("📱 Client %s disconnected (%d remaining)", c.id, count)
		UpdateWSConnections(count)
	}
}

// Stop ends Run and closes every connection.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Broadcast queues an event for every client. When the queue is full the
// event is dropped.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg, err := encodeEvent(event, data)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		// Backpressure: skip
	}
}

// PublishEvent broadcasts a world event under its wire name.
func (h *WebSocketHub) PublishEvent(ev world.Event) {
	switch ev.Type {
	case world.EventCell:
		h.Broadcast(ev.Type.String(), map[string]interface{}{
			"version": ev.Version,
			"x":       ev.Cell.X,
			"y":       ev.Cell.Y,
			"blocked": ev.Cell.Blocked,
		})
	case world.EventFill:
		h.Broadcast(ev.Type.String(), map[string]interface{}{
			"version": ev.Version,
			"blocked": *ev.Fill,
		})
	case world.EventQuery:
		h.Broadcast(ev.Type.String(), ev.Query)
	}
}

// Stats reports connected clients and refused connections.
func (h *WebSocketHub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"clients":  h.ClientCount(),
		"rejected": h.wsLimiter.Rejected(),
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and serves client commands. The
// hub greets each client with the current grid as "grid:state". If Run is
// not consuming registrations within registerWait the connection is closed.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); h.maxTotal > 0 && total >= h.maxTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached (%d open)",
			ip, h.wsLimiter.GetConnectionCount(ip))
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessageSize)

	c := &wsClient{id: uuid.New().String(), ip: ip, conn: conn}

	timer := time.NewTimer(h.registerWait)
	defer timer.Stop()

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		h.wsLimiter.Release(ip)
		return
	case <-timer.C:
		log.Printf("⚠️ WebSocket client %s from %s dropped: hub not running", c.id, ip)
		conn.Close()
		h.wsLimiter.Release(ip)
		return
	}

	go h.readLoop(c)
}

func (h *WebSocketHub) readLoop(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read error for %s: %v", c.id, err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendEvent("error", map[string]string{"message": "malformed message"})
			continue
		}
		if err := h.handleCommand(msg); err != nil {
			c.sendEvent("error", map[string]string{"event": msg.Event, "message": err.Error()})
		}
	}
}

// handleCommand applies one client command. Results reach the client
// through the broadcast of the resulting world event.
func (h *WebSocketHub) handleCommand(msg wsMessage) error {
	switch msg.Event {
	case "query:segment":
		var q world.SegmentQuery
		if err := json.Unmarshal(msg.Data, &q); err != nil {
			return err
		}
		if err := checkCoordinates(h.maxCoordinate, q.StartX, q.StartY, q.EndX, q.EndY); err != nil {
			return err
		}
		_, err := h.world.Segment(q)
		return err

	case "query:sweep":
		var q world.SweepQuery
		if err := json.Unmarshal(msg.Data, &q); err != nil {
			return err
		}
		if err := checkCoordinates(h.maxCoordinate, q.StartX, q.StartY, q.EndX, q.EndY, q.Width, q.Height); err != nil {
			return err
		}
		_, err := h.world.Sweep(q)
		return err

	case "cell:set":
		var req struct {
			X       int  `json:"x"`
			Y       int  `json:"y"`
			Blocked bool `json:"blocked"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		return h.world.SetBlocked(req.X, req.Y, req.Blocked)

	case "cell:toggle":
		var req struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		_, err := h.world.Toggle(req.X, req.Y)
		return err

	default:
		return errUnknownCommand
	}
}

func encodeEvent(event string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
}
