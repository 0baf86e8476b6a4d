// Package transport publishes messages on named topics to WebSocket subscribers.
//
// Subscribers connect to /topics/{topic}. Text topics are delivered as text frames and binary
// topics as binary frames. The last message of every topic is retained and served at
// /topics/{topic}/latest.
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	sendQueueSize = 8
	writeTimeout  = 5 * time.Second
	pingPeriod    = 30 * time.Second
)

var ErrClosed = errors.New("hub is closed")

type message struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

type client struct {
	id    string
	topic string
	conn  *websocket.Conn
	send  chan message
}

// Hub fans published messages out to subscribers. Publish never blocks on a subscriber: a
// subscriber whose queue is full is disconnected.
type Hub struct {
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	latest  map[string]message
	closed  bool
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: map[string]map[*client]struct{}{},
		latest:  map[string]message{},
	}
}

func (h *Hub) PublishText(topic string, payload []byte) error {
	return h.publish(topic, message{kind: websocket.TextMessage, data: payload})
}

func (h *Hub) PublishBinary(topic string, payload []byte) error {
	return h.publish(topic, message{kind: websocket.BinaryMessage, data: payload})
}

// PublishReport publishes a serialized detection report.
func (h *Hub) PublishReport(report []byte) error {
	return h.PublishText(TopicDetections, report)
}

// PublishPreview publishes a compressed preview frame.
func (h *Hub) PublishPreview(img CompressedImage) error {
	b, err := img.Marshal()
	if err != nil {
		return err
	}
	return h.PublishBinary(TopicPreview, b)
}

func (h *Hub) publish(topic string, m message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.latest[topic] = m

	for c := range h.clients[topic] {
		select {
		case c.send <- m:
		default:
			h.log.Warnw("subscriber too slow, disconnecting", "id", c.id, "topic", topic)
			h.removeLocked(c)
		}
	}
	return nil
}

// Subscribers returns the number of connected subscribers on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[topic])
}

// Latest returns the last payload published on topic.
func (h *Hub) Latest(topic string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.latest[topic]
	return m.data, ok
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) add(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	set, ok := h.clients[c.topic]
	if !ok {
		set = map[*client]struct{}{}
		h.clients[c.topic] = set
	}
	set[c] = struct{}{}
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set := h.clients[c.topic]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
}

func (h *Hub) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "topic", topic, "error", err)
		return
	}

	c := &client{
		id:    uuid.NewString(),
		topic: topic,
		conn:  conn,
		send:  make(chan message, sendQueueSize),
	}
	if err := h.add(c); err != nil {
		conn.Close()
		return
	}
	h.log.Infow("subscriber connected", "id", c.id, "topic", topic, "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound frames and notices when the peer goes away.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		h.log.Infow("subscriber disconnected", "id", c.id, "topic", c.topic)
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case m, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(m.kind, m.data); err != nil {
				h.log.Debugw("write to subscriber failed", "id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
