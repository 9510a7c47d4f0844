// Package ws bridges the signal bus to browser clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/predyx/predyx/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser origin checks are handled by the CORS layer.
		return true
	},
}

// client is one WebSocket connection. An empty markets set means the client
// receives every signal; otherwise only signals for subscribed market ids.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	mu      sync.RWMutex
	markets map[int64]bool
}

// subscribeMsg is the JSON frame a client sends to narrow its feed:
// {"subscribe": [1, 2]} or {"unsubscribe": [2]}.
type subscribeMsg struct {
	Subscribe   []int64 `json:"subscribe"`
	Unsubscribe []int64 `json:"unsubscribe"`
}

// Hub fans signals out to all connected clients. Signals arrive either from
// the cross-process bus or from Broadcast calls in the same process.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan domain.Signal
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus // optional
	mu         sync.RWMutex
	log        *slog.Logger
}

func NewHub(bus domain.SignalBus, log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan domain.Signal, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		log:        log.With("component", "ws_hub"),
	}
}

// Broadcast queues a signal for delivery to connected clients. It never
// blocks; the signal is dropped when the hub is saturated.
func (h *Hub) Broadcast(s domain.Signal) {
	select {
	case h.broadcast <- s:
	default:
		h.log.Warn("hub saturated, signal dropped", "kind", s.Kind)
	}
}

// Run is the hub's event loop. It exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		go h.pumpBus(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client connected", "total", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client disconnected", "total", total)

		case s := <-h.broadcast:
			data, err := json.Marshal(s)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(s.MarketID) {
					continue
				}
				select {
				case c.send <- data:
				default:
					h.log.Warn("dropping signal for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) pumpBus(ctx context.Context) {
	signals, err := h.bus.Subscribe(ctx)
	if err != nil {
		h.log.Error("bus subscribe failed", "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-signals:
			if !ok {
				h.log.Warn("bus subscription closed")
				return
			}
			h.Broadcast(s)
		}
	}
}

// HandleWS upgrades the request and registers the connection.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("upgrade failed", "error", err)
		return
	}
	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		markets: make(map[int64]bool),
	}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *client) wants(marketID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markets) == 0 || c.markets[marketID]
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("unexpected close", "error", err)
			}
			return
		}
		var msg subscribeMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		c.mu.Lock()
		for _, id := range msg.Subscribe {
			c.markets[id] = true
		}
		for _, id := range msg.Unsubscribe {
			delete(c.markets, id)
		}
		c.mu.Unlock()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
