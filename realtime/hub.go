// Package realtime pushes refetch events to connected profiles over
// websockets.
//
// Events carry no payload beyond what changed; clients reload the resource
// through the API. A single goroutine owns the client set, so all
// registration and delivery goes through the Hub's channels.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xraph/patron/id"
)

// EventType names the resource a client should refetch.
type EventType string

const (
	EventNotification EventType = "notification"
	EventMessage      EventType = "message"
	EventEntitlement  EventType = "entitlement"
	EventEarnings     EventType = "earnings"
)

// Event is sent to every connection of Recipient.
type Event struct {
	Recipient  id.ProfileID `json:"-"`
	Type       EventType    `json:"type"`
	ResourceID string       `json:"resource_id,omitempty"`
	At         time.Time    `json:"at"`
}

// sendBuffer bounds the queued frames per connection. A client that falls
// this far behind is dropped.
const sendBuffer = 64

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	profileID id.ProfileID
}

type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	count      chan chan int
	done       chan struct{}
	logger     *slog.Logger
}

// NewHub creates a Hub. Call Run before registering clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return

		case c := <-h.register:
			key := c.profileID.String()
			if h.clients[key] == nil {
				h.clients[key] = make(map[*Client]struct{})
			}
			h.clients[key][c] = struct{}{}
			h.logger.Debug("realtime client registered", "profile_id", c.profileID)

		case c := <-h.unregister:
			h.remove(c)

		case ev := <-h.broadcast:
			set := h.clients[ev.Recipient.String()]
			if len(set) == 0 {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("failed to marshal realtime event", "type", ev.Type, "error", err)
				continue
			}
			for c := range set {
				select {
				case c.send <- data:
				default:
					h.logger.Warn("dropping slow realtime client", "profile_id", c.profileID)
					h.remove(c)
				}
			}

		case reply := <-h.count:
			n := 0
			for _, set := range h.clients {
				n += len(set)
			}
			reply <- n
		}
	}
}

func (h *Hub) remove(c *Client) {
	key := c.profileID.String()
	set, ok := h.clients[key]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, key)
	}
	close(c.send)
	h.logger.Debug("realtime client unregistered", "profile_id", c.profileID)
}

// Publish queues ev for delivery without blocking. Events are dropped while
// the queue is full.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("realtime queue full, dropping event", "type", ev.Type, "recipient", ev.Recipient)
	}
}

// Connections returns the number of registered connections.
func (h *Hub) Connections(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-h.done:
		return 0
	case <-ctx.Done():
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}
