package sse

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/observability"
)

const clientBuffer = 256

// Message is one event addressed by extension key.
type Message struct {
	Extension string // matched against client filters
	Event     string // SSE event name
	Data      []byte
}

// Client represents a connected SSE client.
type Client struct {
	id     string
	filter string // glob over extension keys; empty matches everything
	events chan Message
}

// NewClient creates a client. filter must be a valid filepath.Match
// pattern or empty.
func NewClient(id, filter string) *Client {
	return &Client{
		id:     id,
		filter: filter,
		events: make(chan Message, clientBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Filter returns the client's extension key filter.
func (c *Client) Filter() string { return c.filter }

// Events returns the channel the hub delivers to. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Events() <-chan Message { return c.events }

// Matches reports whether extension passes the client's filter.
func (c *Client) Matches(extension string) bool {
	if c.filter == "" {
		return true
	}
	ok, err := filepath.Match(c.filter, extension)
	return err == nil && ok
}

// send returns false if the client's buffer is full.
func (c *Client) send(msg Message) bool {
	select {
	case c.events <- msg:
		return true
	default:
		return false
	}
}

// Hub manages SSE client connections and message broadcasting.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
}

var (
	_ Broadcaster                 = (*Hub)(nil)
	_ observability.HealthChecker = (*Hub)(nil)
)

// NewHub creates a hub. Run must be started before clients register.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, clientBuffer),
		done:       make(chan struct{}),
		log:        logger.WithComponent("sse"),
	}
}

// Run is the hub's event loop. It returns after Stop, with every client
// channel closed.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			// A reused id ends the earlier stream.
			if prev, ok := h.clients[client.id]; ok && prev != client {
				close(prev.events)
			}
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", logger.Fields("client_id", client.id, "filter", client.filter, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client unregistered", logger.Fields("client_id", client.id, "total_clients", total))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop shuts the hub down. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Done is closed once Stop has been called.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.events)
		delete(h.clients, id)
	}
}

// Register adds a client. It returns false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues msg for delivery. When the queue is full the message is
// dropped so publishers are never blocked by slow subscribers.
func (h *Hub) Broadcast(msg Message) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("Broadcast queue full, dropping message", logger.Fields(logger.FieldExtension, msg.Extension, logger.FieldEvent, msg.Event))
	}
}

func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if !client.Matches(msg.Extension) {
			continue
		}
		if client.send(msg) {
			sent++
		} else {
			h.log.Warn("Client buffer full, dropping message", logger.Fields("client_id", client.id, logger.FieldExtension, msg.Extension))
		}
	}
	h.log.Debug("Broadcast sent", logger.Fields(logger.FieldExtension, msg.Extension, "match_count", sent))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the IDs of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// CheckHealth reports the hub down once stopped.
func (h *Hub) CheckHealth(_ context.Context) observability.Health {
	health := observability.Health{
		Name:    "event-stream",
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"clients": strconv.Itoa(h.ClientCount())},
	}
	select {
	case <-h.done:
		health.Status = observability.HealthStatusDown
		health.Message = "hub stopped"
	default:
	}
	return health
}
