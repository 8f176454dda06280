package watch

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/wayland"
)

const (
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
)

// Message types sent on /events.
const (
	MessageSnapshot     = "snapshot"
	MessageGlobal       = "global"
	MessageGlobalRemove = "global_remove"
)

// Message is one JSON frame on /events.
type Message struct {
	Type      string           `json:"type"`
	Name      uint32           `json:"name,omitempty"`
	Interface string           `json:"interface,omitempty"`
	Version   uint32           `json:"version,omitempty"`
	Globals   []wayland.Global `json:"globals,omitempty"`
}

// MessageFor converts an applied registry event. ok is false for events that
// are not streamed.
func MessageFor(ev wayland.RegistryEvent) (Message, bool) {
	switch e := ev.(type) {
	case wayland.GlobalEvent:
		return Message{Type: MessageGlobal, Name: e.Name, Interface: e.Interface, Version: e.Version}, true
	case wayland.GlobalRemoveEvent:
		return Message{Type: MessageGlobalRemove, Name: e.Name}, true
	}
	return Message{}, false
}

type subscriber struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans registry changes out to WebSocket subscribers. A subscriber that
// falls behind by more than its buffer is disconnected.
type Hub struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[uuid.UUID]*subscriber
	closed bool
}

func NewHub(checkOrigin func(*http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		subs: make(map[uuid.UUID]*subscriber),
	}
}

// OriginChecker allows requests without an Origin header and those whose
// origin is listed.
func OriginChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// Publish is a registry observer. It runs on the pump goroutine and never
// blocks on a subscriber.
func (h *Hub) Publish(ev wayland.RegistryEvent) {
	msg, ok := MessageFor(ev)
	if !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logs.Errf("watch.Hub marshal %s: %v", msg.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			logs.Warnf("watch.Hub subscriber=%s too slow, dropping", id)
			h.dropLocked(sub)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Serve upgrades the request and streams a snapshot followed by every
// subsequent change. A change racing the snapshot may appear in both.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, snapshot func() []wayland.Global) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Warnf("watch.Hub upgrade failed: %v", err)
		return
	}
	sub := &subscriber{id: uuid.New(), conn: conn, send: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.subs[sub.id] = sub
	data, err := json.Marshal(Message{Type: MessageSnapshot, Globals: snapshot()})
	if err == nil {
		sub.send <- data
	}
	h.mu.Unlock()
	logs.Infof("watch.Hub subscriber=%s connected remote=%s", sub.id, r.RemoteAddr)

	go h.writeLoop(sub)
	h.readLoop(sub)
}

func (h *Hub) writeLoop(sub *subscriber) {
	for data := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logs.Debugf("watch.Hub subscriber=%s write: %v", sub.id, err)
			break
		}
	}
	_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = sub.conn.Close()
}

// readLoop drains client frames until the peer goes away.
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	h.dropLocked(sub)
	h.mu.Unlock()
	logs.Infof("watch.Hub subscriber=%s disconnected", sub.id)
}

func (h *Hub) dropLocked(sub *subscriber) {
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.send)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, sub := range h.subs {
		h.dropLocked(sub)
	}
}
