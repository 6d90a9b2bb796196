// Package broadcast fans out scan events to connected websocket clients and
// enforces ping/pong liveness.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whale-tracker/internal/logging"
	"github.com/whale-tracker/internal/models"
)

// Conn is the subset of the websocket connection the hub writes to.
// gorilla/websocket's *Conn satisfies it; tests inject fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

const (
	writeTimeout   = 10 * time.Second
	controlTimeout = 5 * time.Second
)

// client wraps a connection with liveness state. The mutex serializes writes
// because gorilla connections do not allow concurrent writers.
type client struct {
	conn    Conn
	mu      sync.Mutex
	isAlive bool
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlTimeout))
}

// Hub tracks connected clients and pushes every event to all of them.
// A failed write terminates only the failing connection; the remaining
// clients still receive the event.
type Hub struct {
	heartbeat time.Duration

	mu      sync.RWMutex
	clients map[Conn]*client
}

// NewHub creates a hub with the given heartbeat interval
func NewHub(heartbeat time.Duration) *Hub {
	return &Hub{
		heartbeat: heartbeat,
		clients:   make(map[Conn]*client),
	}
}

// connectedAck is the first frame every client receives after registering
type connectedAck struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// Register adds a connection to the hub and sends the connected
// acknowledgement before any event can reach it
func (h *Hub) Register(conn Conn) {
	c := &client{conn: conn, isAlive: true}

	ack, _ := json.Marshal(connectedAck{
		Type:      "connected",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   "Connected to whale tracker feed",
	})

	// The write lock is held across insert and ack so a concurrent Broadcast
	// cannot slip a frame in front of the acknowledgement
	c.mu.Lock()
	h.mu.Lock()
	h.clients[conn] = c
	count := len(h.clients)
	h.mu.Unlock()
	err := c.conn.WriteMessage(websocket.TextMessage, ack)
	c.mu.Unlock()

	if err != nil {
		h.drop(conn)
		return
	}

	logging.WithField("clients", count).Debug("Websocket client registered")
}

// Unregister removes a connection from the hub. Safe to call for connections
// the hub already dropped.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	_, known := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	if known {
		logging.WithField("clients", count).Debug("Websocket client unregistered")
	}
}

// MarkAlive records a pong from a connection. The read loop installs this as
// the pong handler.
func (h *Hub) MarkAlive(conn Conn) {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	c.mu.Lock()
	c.isAlive = true
	c.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast pushes one event to every connected client. Connections that
// fail the write are terminated and evicted without affecting the rest.
func (h *Hub) Broadcast(event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.WithError(err).Error("Failed to marshal broadcast event")
		return
	}

	h.mu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		if err := c.write(websocket.TextMessage, data); err != nil {
			logging.WithError(err).Warn("Websocket write failed, dropping client")
			h.drop(c.conn)
		}
	}
}

// Run drives the heartbeat loop until the context is cancelled. Clients that
// did not answer the previous ping are terminated; the rest are pinged and
// marked not-alive until their pong arrives.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) sweep() {
	h.mu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		c.mu.Lock()
		alive := c.isAlive
		c.isAlive = false
		c.mu.Unlock()

		if !alive {
			logging.Debug("Websocket client missed heartbeat, terminating")
			h.drop(c.conn)
			continue
		}

		if err := c.ping(); err != nil {
			h.drop(c.conn)
		}
	}
}

func (h *Hub) drop(conn Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[Conn]*client)
	h.mu.Unlock()

	for conn := range clients {
		_ = conn.Close()
	}
}
