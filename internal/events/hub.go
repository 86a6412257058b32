package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// closed guards the send channel so the disconnect path and the
	// slow-client drop cannot both close it. Protected by Hub.mu.
	closed bool
}

// Hub fans events out to websocket subscribers by topic. Slow clients are
// dropped rather than ever blocking a publish.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*client]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*client]struct{}),
		logger: logger,
	}
}

// Publish implements Publisher. Marshal or delivery problems are logged
// and swallowed.
func (h *Hub) Publish(topic string, eventType string, entityID int, payload interface{}) {
	event := Event{
		Type:      eventType,
		EntityID:  entityID,
		Data:      payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for cl := range h.topics[topic] {
		select {
		case cl.send <- data:
		default:
			h.dropLocked(cl)
		}
	}
}

// dropLocked removes the client from every topic and closes its send
// channel exactly once, ending the client's write pump. Caller must hold
// h.mu.
func (h *Hub) dropLocked(cl *client) {
	for topic, clients := range h.topics {
		delete(clients, cl)
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
	if !cl.closed {
		cl.closed = true
		close(cl.send)
	}
}

func (h *Hub) subscribe(topic string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A dropped client must not re-enter a topic: its send channel is
	// already closed.
	if cl.closed {
		return
	}

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*client]struct{})
	}
	h.topics[topic][cl] = struct{}{}
}

// disconnect tears the client down after its read pump returns.
func (h *Hub) disconnect(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(cl)
}

type subscribeMessage struct {
	Action string `json:"action"` // subscribe, unsubscribe
	Topic  string `json:"topic"`
}

// ServeWS upgrades the connection and serves topic subscriptions until the
// client goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, 32)}

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) readPump(cl *client) {
	defer func() {
		h.disconnect(cl)
		cl.conn.Close()
	}()

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			h.subscribe(msg.Topic, cl)
		case "unsubscribe":
			h.mu.Lock()
			if clients, ok := h.topics[msg.Topic]; ok {
				delete(clients, cl)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) writePump(cl *client) {
	for data := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
