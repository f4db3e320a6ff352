package ws

import (
	"sync"
	"time"

	"printwatch/common/logger"

	"github.com/google/uuid"
)

// DefaultSubscriberBuffer is the channel size handed to Subscribe callers.
const DefaultSubscriberBuffer = 64

// Hub fans messages out to in-process subscribers. It does not know about
// net/http; Serve attaches a websocket connection to it. A slow subscriber
// loses messages instead of blocking the broadcaster.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]chan Message
	register   chan registration
	unregister chan string
	broadcast  chan Message
	shutdown   chan struct{}
	stopOnce   sync.Once
	dropped    uint64
}

type registration struct {
	id   string
	ch   chan Message
	done chan struct{}
}

// NewHub creates and starts a new Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]chan Message),
		register:   make(chan registration),
		unregister: make(chan string),
		broadcast:  make(chan Message, 256),
		shutdown:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case reg := <-h.register:
			h.mu.Lock()
			h.clients[reg.id] = reg.ch
			h.mu.Unlock()
			close(reg.done)
		case id := <-h.unregister:
			h.mu.Lock()
			if ch, ok := h.clients[id]; ok {
				close(ch)
				delete(h.clients, id)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.deliver(msg)
		case <-h.shutdown:
			h.mu.Lock()
			for id, ch := range h.clients {
				close(ch)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.dropped++
			if logger.Global != nil {
				logger.Global.WarnRateLimited("ws_drop_"+id, 30*time.Second, "Subscriber channel full, dropping message",
					"subscriber", id, "type", msg.Type)
			}
		}
	}
}

// Subscribe registers a new buffered channel and returns its id. The channel
// is closed by Unsubscribe or Stop.
func (h *Hub) Subscribe() (string, <-chan Message) {
	id := uuid.NewString()
	ch := make(chan Message, DefaultSubscriberBuffer)
	if !h.Register(id, ch) {
		close(ch)
	}
	return id, ch
}

// Register adds a caller-owned channel under id and returns once it will
// receive broadcasts. It reports false when the hub is already stopped.
func (h *Hub) Register(id string, ch chan Message) bool {
	reg := registration{id: id, ch: ch, done: make(chan struct{})}
	select {
	case h.register <- reg:
	case <-h.shutdown:
		return false
	}
	<-reg.done
	return true
}

// Unregister removes the client with the given id and closes its channel.
func (h *Hub) Unregister(id string) {
	select {
	case h.unregister <- id:
	case <-h.shutdown:
	}
}

// Broadcast queues msg for every subscriber without blocking.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- msg:
	case <-h.shutdown:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many per-subscriber deliveries were skipped.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Stop shuts down the hub and closes all subscriber channels. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}
