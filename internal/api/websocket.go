package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"lane-clash/internal/config"
	"lane-clash/internal/game"

	"github.com/gorilla/websocket"
)

const (
	// StateBroadcastInterval is how often "match:state" is pushed
	StateBroadcastInterval = 100 * time.Millisecond

	// Message names pushed to clients
	EventMatchState   = "match:state"
	EventEntityRemove = "entity:removed"
	EventMatchOver    = "match:over"
	EventMatchReset   = "match:reset"

	wsWriteTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Non-browser clients send no Origin header
		if origin == "" || IsAllowedOrigin(origin) {
			return true
		}

		// Log rejected origin for security monitoring
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// AllowedOrigins defines the browser origins allowed to open a WebSocket
var AllowedOrigins = []string{
	"http://localhost",
	"http://127.0.0.1",
}

// IsAllowedOrigin checks if an origin is in the allowed list. Local origins
// are allowed on any port.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range AllowedOrigins {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") {
			return true
		}
	}
	return false
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// wsMessage is the envelope every push uses
type wsMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WebSocketHub manages all WebSocket connections with DoS protection
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	// Connection caps per client and overall
	conns      *ConnLimiter
	trustProxy bool
}

// NewWebSocketHub creates a new hub capped by the WebSocket traffic limits
func NewWebSocketHub(limits config.TrafficLimits) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		stop:       make(chan struct{}),
		conns:      NewConnLimiter(limits.WSPerIP, limits.WSTotal),
		trustProxy: limits.TrustProxy,
	}
}

// Run services registrations and broadcasts until Stop is called
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for conn, client := range h.clients {
				h.conns.Release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(conn)
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.removeLocked(conn)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			UpdateWSConnections(count)
			IncrementWSMessages()
		}
	}
}

// removeLocked drops a connection and frees its IP slot. Caller holds mu.
func (h *WebSocketHub) removeLocked(conn *websocket.Conn) {
	if client, ok := h.clients[conn]; ok {
		h.conns.Release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
}

// Stop closes every connection and ends Run
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	if h.ClientCount() == 0 {
		return
	}

	jsonBytes, err := json.Marshal(wsMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes the latest snapshot to every client on a fixed
// interval, and mirrors event log counters into metrics, until Stop.
func (h *WebSocketHub) StartBroadcastLoop(engine EngineInterface, interval time.Duration) {
	if interval <= 0 {
		interval = StateBroadcastInterval
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
			}

			stats := engine.GetEventLogStats()
			total, _ := stats["total"].(uint64)
			dropped, _ := stats["dropped"].(uint64)
			UpdateEventLogStats(total, dropped)

			if h.ClientCount() == 0 {
				continue
			}
			h.Broadcast(EventMatchState, engine.GetSnapshot())
		}
	}()
}

// ForwardEvents is an engine listener that relays removals and match
// results to clients as they happen.
func (h *WebSocketHub) ForwardEvents(events []game.Event) {
	for _, ev := range events {
		switch ev.Type {
		case game.EventTypeDestroyed:
			h.Broadcast(EventEntityRemove, ev.Payload)
		case game.EventTypeMatchOver:
			h.Broadcast(EventMatchOver, ev.Payload)
		case game.EventTypeReset:
			h.Broadcast(EventMatchReset, map[string]uint64{"tick": ev.TickNum})
		}
	}
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, h.trustProxy)

	if err := h.conns.Acquire(ip); err != nil {
		if errors.Is(err, errWSTotalLimit) {
			log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", h.conns.Total())
			RecordConnectionRejected("ws_total_limit")
			http.Error(w, "Too many connections", http.StatusServiceUnavailable)
			return
		}
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	// Upgrade to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.conns.Release(ip) // Release the slot we reserved
		return
	}

	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.stop:
		h.conns.Release(ip)
		conn.Close()
		return
	}

	// The view is read-only; reading only detects disconnects
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.stop:
			}
		}()

		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
