// Package feed broadcasts admitted events to websocket subscribers so
// a UI can explain each sound as it happens.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/orbit-sonifier/internal/logging"
	"github.com/signalsfoundry/orbit-sonifier/model"
)

// eventMessage is the wire shape sent to each subscriber.
type eventMessage struct {
	ID       string    `json:"id"`
	Entity   string    `json:"entity"`
	Category string    `json:"category"`
	Rule     string    `json:"rule"`
	Detail   string    `json:"detail,omitempty"`
	Pitch    string    `json:"pitch"`
	Gain     float64   `json:"gain"`
	Time     time.Time `json:"time"`
}

// Hub fans admitted events out to connected websocket clients. Clients
// that cannot keep up are dropped rather than allowed to stall the
// pipeline.
type Hub struct {
	log      logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	send chan []byte
	conn *websocket.Conn
}

// clientBuffer is how many undelivered events a subscriber may lag
// before it is disconnected.
const clientBuffer = 64

// NewHub constructs an empty hub.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and subscribes the connection until it
// closes or falls behind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "feed upgrade failed", logging.String("error", err.Error()))
		return
	}

	c := &client{send: make(chan []byte, clientBuffer), conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info(r.Context(), "feed subscriber connected", logging.Int("subscribers", n))

	go h.writeLoop(c)
	h.readLoop(c)
}

// Publish is the engine observer hook. It never blocks: subscribers
// whose buffers are full are scheduled for disconnect.
func (h *Hub) Publish(ev model.AdmittedEvent) {
	payload, err := json.Marshal(eventMessage{
		ID:       ev.ID,
		Entity:   ev.EntityName,
		Category: ev.Category.String(),
		Rule:     ev.Rule.String(),
		Detail:   ev.Detail,
		Pitch:    ev.Pitch,
		Gain:     ev.Gain,
		Time:     ev.Time,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range slow {
		close(c.send)
		h.log.Warn(context.Background(), "feed subscriber too slow, dropping")
	}
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(c)
			return
		}
	}
	// Channel closed: polite shutdown.
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop drains (and discards) client frames so pings and close
// frames are processed.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if present {
		close(c.send)
	}
}
