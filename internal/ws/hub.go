package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"attendbot/internal/service"
)

const (
	pingInterval   = 30 * time.Second
	writeDeadline  = 10 * time.Second
	sendBufferSize = 16
)

// Hub fans committed attendance transitions out to connected admin
// dashboards. Slow subscribers are dropped rather than allowed to block
// the publishing path.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

type subscriber struct {
	conn *websocket.Conn
	send chan service.TransitionEvent
}

// NewHub builds the feed hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Publish delivers the event to every live subscriber.
func (h *Hub) Publish(event service.TransitionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- event:
		default:
			// Subscriber is not keeping up; closing its channel is handled
			// by the write loop when it next blocks.
			h.logger.Warn("dropping feed event for slow subscriber")
		}
	}
}

// HandleFeed upgrades GET /ws/feed and streams transitions until the client
// disconnects. Authorization happens in middleware before this runs.
func (h *Hub) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan service.TransitionEvent, sendBufferSize),
	}
	h.add(sub)
	defer h.remove(sub)

	go h.writeLoop(sub)

	// Read loop: the feed is one-way, reads only detect disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()
	h.logger.Info("feed subscriber connected", zap.Int("subscribers", count))
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
	h.mu.Unlock()
	sub.conn.Close()
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.send:
			if !ok {
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := sub.conn.WriteJSON(event); err != nil {
				sub.conn.Close()
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.conn.Close()
				return
			}
		}
	}
}
