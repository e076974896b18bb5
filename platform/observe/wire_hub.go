// Package observe streams live wire-diagram snapshots over websocket, the
// "observable outputs" spec.md §6 calls for: a textual description of the
// scheduler/wire graph, refreshed on an interval rather than on demand.
//
// Grounded on control_plane/ws_hub.go's single-broadcaster hub: one ticker
// drives every client instead of one goroutine per connection, and
// register/unregister/shutdown all funnel through the same loop. The
// client map is still guarded by mu, since ClientCount reads it from
// other goroutines.
package observe

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxWireHubConnections caps concurrent observers, same defensive limit
// the teacher's hub applies to dashboard websocket clients.
const maxWireHubConnections = 200

// Snapshotter returns the current textual description of the wire graph;
// satisfied by (*wiring.Model).Describe.
type Snapshotter func() string

// WireHub broadcasts Snapshotter output to every registered client once
// per interval.
type WireHub struct {
	snapshot Snapshotter
	interval time.Duration

	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	upgrader websocket.Upgrader
}

// NewWireHub builds a hub that calls snapshot every interval and pushes
// the result to all connected clients.
func NewWireHub(snapshot Snapshotter, interval time.Duration) *WireHub {
	if interval <= 0 {
		interval = time.Second
	}
	return &WireHub{
		snapshot:   snapshot,
		interval:   interval,
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}
}

// Run drives the hub's main loop until ctx is cancelled.
func (h *WireHub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxWireHubConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("[OBSERVE] wire hub connection rejected: max connections (%d) reached", maxWireHubConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[OBSERVE] wire hub client registered, total %d", n)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("[OBSERVE] wire hub client unregistered, total %d", n)

		case <-ticker.C:
			h.broadcast()
		}
	}
}

func (h *WireHub) broadcast() {
	text := h.snapshot()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			log.Printf("[OBSERVE] wire hub write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *WireHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

// Register adds conn as a broadcast target.
func (h *WireHub) Register(conn *websocket.Conn) { h.register <- conn }

// Unregister removes conn.
func (h *WireHub) Unregister(conn *websocket.Conn) { h.unregister <- conn }

// ClientCount reports the number of connected observers.
func (h *WireHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket connection and registers
// it with the hub. Mount at the model's introspection endpoint.
func (h *WireHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[OBSERVE] wire hub upgrade failed: %v", err)
		return
	}
	h.Register(conn)
}
