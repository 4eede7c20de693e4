package api

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ava-labs/transfer-dashboard/pkg/metrics"
	"github.com/ava-labs/transfer-dashboard/pkg/views"
)

const (
	defaultHeartbeat = 30 * time.Second
	defaultPongWait  = 60 * time.Second
	writeWait        = 10 * time.Second
	maxReadBytes     = 512
	clientBuffer     = 32
	broadcastBuffer  = 256
)

// Message types pushed to websocket clients.
const (
	MessageConnected = "connected"
	MessageView      = "view"
	MessageHeartbeat = "heartbeat"
)

// Message is the envelope of every websocket message.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans view snapshots out to websocket clients. All client bookkeeping happens on
// the Run goroutine; each client has its own writer goroutine.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	count      atomic.Int64

	heartbeat time.Duration
	// A peer that answers no ping within pongWait is disconnected.
	pongWait time.Duration
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics // nil if metrics disabled
}

// NewHub creates a hub. Call Run to start it.
func NewHub(log *zap.SugaredLogger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		heartbeat:  defaultHeartbeat,
		pongWait:   defaultPongWait,
		log:        log,
		metrics:    m,
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.metrics.SetWSClients(len(h.clients))
			h.log.Debugw("websocket client connected", "remote", c.conn.RemoteAddr().String(), "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debugw("websocket client disconnected", "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-heartbeat.C:
			if msg, err := encode(MessageHeartbeat, nil); err == nil {
				h.fanOut(msg)
			}
		}
	}
}

// Broadcast queues a snapshot for every client. It never blocks; when the hub is
// saturated the snapshot is dropped.
func (h *Hub) Broadcast(snap views.Snapshot) {
	msg, err := encode(MessageView, snap)
	if err != nil {
		h.log.Errorw("failed to encode snapshot", "view", string(snap.Kind), "error", err)
		h.metrics.IncError(metrics.ErrTypeBroadcast)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warnw("broadcast queue full, dropping snapshot", "view", string(snap.Kind))
		h.metrics.IncError(metrics.ErrTypeBroadcast)
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Serve attaches an upgraded connection to the hub. initial snapshots are sent before any
// broadcast.
func (h *Hub) Serve(conn *websocket.Conn, initial []views.Snapshot) {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer+len(initial))}
	if msg, err := encode(MessageConnected, map[string]int{"views": len(initial)}); err == nil {
		c.send <- msg
	}
	for _, snap := range initial {
		if msg, err := encode(MessageView, snap); err == nil {
			c.send <- msg
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) fanOut(msg []byte) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warnw("websocket client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			h.drop(c)
		}
	}
}

// drop must only be called from Run.
func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
	h.metrics.SetWSClients(len(h.clients))
}

func (h *Hub) writePump(c *client) {
	ping := time.NewTicker(h.pongWait / 2)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debugw("websocket write failed", "error", err)
				h.abandon(c)
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.log.Debugw("websocket ping failed", "error", err)
				h.abandon(c)
				return
			}
		}
	}
}

// abandon unregisters a client whose connection failed and drains send until Run closes it.
func (h *Hub) abandon(c *client) {
	h.leave(c)
	for range c.send {
	}
}

// readPump discards client input, keeps the read deadline moving while pongs arrive and
// unregisters the client once the connection ends.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.leave(c)
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}
