// Package notify pushes change events to connected clients over
// WebSockets. Subscriptions are per topic ("conversation:<id>",
// "call:<id>"); the handler layer authorizes the topic before handing
// the connection to the hub, so the hub itself only routes.
package notify

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is one published change on a topic
type Event struct {
	Topic   string      `json:"topic"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Hub maintains topic subscriptions and fans published events out to
// the connections subscribed to each topic
type Hub struct {
	mu       sync.Mutex
	topics   map[string]map[*websocket.Conn]bool
	publish  chan Event
	upgrader websocket.Upgrader
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]map[*websocket.Conn]bool),
		publish: make(chan Event, 64),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run delivers published events to subscribers until the publish
// channel is closed. Intended to run in its own goroutine.
func (h *Hub) Run() {
	for evt := range h.publish {
		h.mu.Lock()
		for conn := range h.topics[evt.Topic] {
			if err := conn.WriteJSON(evt); err != nil {
				log.Printf("notify: dropping subscriber on %s: %v", evt.Topic, err)
				conn.Close()
				h.remove(evt.Topic, conn)
			}
		}
		h.mu.Unlock()
	}
}

// Publish queues an event for delivery to the topic's subscribers.
// Never blocks the caller: if the hub is saturated the event is dropped,
// since every consumer can recover state by re-reading the record.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	select {
	case h.publish <- Event{Topic: topic, Event: event, Payload: payload}:
	default:
		log.Printf("notify: publish queue full, dropping %s on %s", event, topic)
	}
}

// Subscribe upgrades the HTTP connection and attaches it to the topic.
// The caller must have authorized access to the topic already.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("notify: upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*websocket.Conn]bool)
	}
	h.topics[topic][conn] = true
	h.mu.Unlock()

	// Drain client frames to observe the close
	go func() {
		defer func() {
			h.mu.Lock()
			h.remove(topic, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// remove detaches a connection from a topic. Caller holds the lock.
func (h *Hub) remove(topic string, conn *websocket.Conn) {
	delete(h.topics[topic], conn)
	if len(h.topics[topic]) == 0 {
		delete(h.topics, topic)
	}
}
