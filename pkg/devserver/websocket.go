package devserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petrijr/arbor/pkg/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	wsBufferSize   = 1024
	clientBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		// Inspection endpoint, deliberately origin-agnostic.
		return true
	},
}

// wsMessage is the wire format pushed to WebSocket clients: one message per
// observer callback, plus a rendering snapshot after each render pass.
type wsMessage struct {
	Type      api.EventType   `json:"type"`
	SessionID string          `json:"session_id"`
	At        time.Time       `json:"at"`
	NodePath  string          `json:"node_path,omitempty"`
	Key       string          `json:"key,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Rendering json.RawMessage `json:"rendering,omitempty"`
}

// hub fans wsMessages out to connected clients. Slow clients are dropped
// rather than allowed to stall the broadcast path.
type hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan wsMessage
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

func (h *hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) broadcast(msg wsMessage) {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Client is not keeping up; disconnect it.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket_upgrade_failed", slog.Any("error", err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan wsMessage, clientBuffer),
	}
	if !s.obs.hub.register(c) {
		_ = conn.Close()
		return
	}

	go c.writePump(s.obs.hub)
	go c.readPump(s.obs.hub)
}

// readPump drains control frames and detects disconnects.
func (c *client) readPump(h *hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(h *hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Observer translates tree-observer callbacks into WebSocket broadcasts.
// Create one with NewObserver, register it on the tree (typically inside a
// composite), and hand it to New via Config.Observer so the server knows
// which hub to serve.
//
// Observer is safe to construct before the tree exists, which breaks the
// otherwise circular tree/server construction order.
type Observer struct {
	api.NoopObserver
	hub *hub

	mu   sync.RWMutex
	tree api.Tree
}

// NewObserver returns an unbound stream observer.
func NewObserver() *Observer {
	return &Observer{hub: newHub(slog.Default())}
}

func (o *Observer) bind(t api.Tree, logger *slog.Logger) {
	o.mu.Lock()
	o.tree = t
	o.mu.Unlock()
	o.hub.logger = logger
}

// snapshot marshals the bound tree's latest rendering, or nil before bind or
// for non-marshalable renderings.
func (o *Observer) snapshot() json.RawMessage {
	o.mu.RLock()
	t := o.tree
	o.mu.RUnlock()
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t.Rendering())
	if err != nil {
		return nil
	}
	return data
}

func (o *Observer) OnRenderPassCompleted(ctx context.Context, sessionID string, pass int64, d time.Duration) {
	o.hub.broadcast(wsMessage{
		Type:      api.EventRenderCompleted,
		SessionID: sessionID,
		Rendering: o.snapshot(),
	})
}

func (o *Observer) OnEventApplied(ctx context.Context, sessionID, nodePath string) {
	o.hub.broadcast(wsMessage{Type: api.EventApplied, SessionID: sessionID, NodePath: nodePath})
}

func (o *Observer) OnEventDiscarded(ctx context.Context, sessionID, nodePath string) {
	o.hub.broadcast(wsMessage{Type: api.EventDiscarded, SessionID: sessionID, NodePath: nodePath})
}

func (o *Observer) OnOutput(ctx context.Context, sessionID string, output any) {
	msg := wsMessage{Type: api.EventOutput, SessionID: sessionID}
	if data, err := json.Marshal(output); err == nil {
		msg.Detail = string(data)
	}
	o.hub.broadcast(msg)
}

func (o *Observer) OnNodeCreated(ctx context.Context, sessionID, nodePath string) {
	o.hub.broadcast(wsMessage{Type: api.EventNodeCreated, SessionID: sessionID, NodePath: nodePath})
}

func (o *Observer) OnNodeTornDown(ctx context.Context, sessionID, nodePath string) {
	o.hub.broadcast(wsMessage{Type: api.EventNodeTornDown, SessionID: sessionID, NodePath: nodePath})
}

func (o *Observer) OnWorkerStarted(ctx context.Context, sessionID, nodePath, key string) {
	o.hub.broadcast(wsMessage{Type: api.EventWorkerStarted, SessionID: sessionID, NodePath: nodePath, Key: key})
}

func (o *Observer) OnWorkerStopped(ctx context.Context, sessionID, nodePath, key string) {
	o.hub.broadcast(wsMessage{Type: api.EventWorkerStopped, SessionID: sessionID, NodePath: nodePath, Key: key})
}
