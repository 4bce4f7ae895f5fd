package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/lpagent/internal/scheduler"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans scheduler.TickEvent run-status updates out to every connected
// dashboard client, JSON-encoded over the wire. Grounded on the teacher's
// broadcast-channel Hub (internal/api/websocket.go): one buffered channel
// drained by a single goroutine, each client's own write deadline so a
// stalled client never blocks the others — generalized here from the
// teacher's raw []byte payload to a typed domain event, since every
// message this Hub ever sends is a TickEvent.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mu        sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Run drains the broadcast channel until it is closed. Call once, in its
// own goroutine, at startup.
func (h *Hub) Run() {
	for msg := range h.broadcast {
		h.mu.Lock()
		for c := range h.clients {
			_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[api] websocket write failed, dropping client: %v", err)
				c.Close()
				delete(h.clients, c)
			}
		}
		h.mu.Unlock()
	}
}

// Subscribe upgrades the connection and registers it until the client
// disconnects or errors out.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[api] websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("[api] dashboard client connected, total=%d", total)

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			total := len(h.clients)
			h.mu.Unlock()
			conn.Close()
			log.Printf("[api] dashboard client disconnected, total=%d", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Broadcast queues one tick's run-status event for every connected client,
// JSON-encoded. It never blocks the caller: when the hub's buffer is full
// the event is dropped and logged, so this is fire-and-forget telemetry,
// never a delivery guarantee. Satisfies scheduler.Broadcaster.
func (h *Hub) Broadcast(event scheduler.TickEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[api] failed to encode tick event: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Println("[api] broadcast buffer full, dropping tick event")
	}
}
