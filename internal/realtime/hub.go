package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Tomlord1122/task-backend/internal/service"
)

const broadcastQueue = 256

type envelope struct {
	owner uuid.UUID
	msg   []byte
}

// Hub is the connection registry. A single goroutine (Run) owns the client
// set; Register, Unregister and Broadcast hand work to it over channels.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	done       chan struct{}

	clients map[*Client]struct{}
	count   atomic.Int64

	ownerOnly bool
	relay     bool
	log       *zap.Logger
}

// NewHub creates a hub. With ownerOnly, events reach only the connections of
// the task owner; otherwise every connected client. With relay, mutation
// frames sent by clients are re-broadcast.
func NewHub(ownerOnly, relay bool, log *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, broadcastQueue),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		ownerOnly:  ownerOnly,
		relay:      relay,
		log:        log,
	}
}

// Run serves the registry until ctx is cancelled, then disconnects every
// client. It must be started exactly once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.log.Info("realtime hub stopped")
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.log.Debug("client connected", zap.Stringer("user", c.userID), zap.Int("clients", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug("client disconnected", zap.Stringer("user", c.userID), zap.Int("clients", len(h.clients)))
			}
		case env := <-h.broadcast:
			for c := range h.clients {
				if h.ownerOnly && c.userID != env.owner {
					continue
				}
				select {
				case c.send <- env.msg:
				default:
					// Slow consumer: it loses its connection and every event it missed.
					h.drop(c)
					h.log.Warn("dropping slow client", zap.Stringer("user", c.userID))
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
}

// Register adds c. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c; unknown or already dropped clients are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues ev for delivery. It never blocks; when the queue is full
// or the hub has stopped the event is discarded.
func (h *Hub) Broadcast(ev Event, owner uuid.UUID) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.String("event", string(ev.Event)), zap.Error(err))
		return
	}
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- envelope{owner: owner, msg: msg}:
	default:
		h.log.Warn("broadcast queue full, dropping event", zap.String("event", string(ev.Event)))
	}
}

// Publish implements service.MutationPublisher.
func (h *Hub) Publish(m service.TaskMutation) {
	h.Broadcast(NewEvent(m), m.Owner)
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
