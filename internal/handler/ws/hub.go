// Package ws fans newly published signals out to websocket subscribers.
// Delivery is best-effort: a subscriber that cannot keep up is disconnected
// rather than allowed to apply backpressure on the scheduler.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected subscribers and broadcasts every published signal.
type Hub struct {
	mu         sync.Mutex
	clients    map[*client]struct{}
	sendBuffer int
	log        *logger.Logger
	closed     bool
}

// NewHub creates a hub. sendBuffer is the per-client queue depth; a full
// queue drops the client.
func NewHub(sendBuffer int, log *logger.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		sendBuffer: sendBuffer,
		log:        log,
	}
}

// RegisterRoutes registers the websocket endpoint.
func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/signals", h.Serve)
}

// Serve upgrades the connection and streams signals until the peer leaves.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan []byte, h.sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil
	}
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws subscriber connected", logger.Int("subscribers", n))

	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

// Publish implements the signal sink: marshal once, enqueue everywhere.
func (h *Hub) Publish(ctx context.Context, sig *models.CalculatedSignal) error {
	if sig == nil {
		return nil
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}

	h.mu.Lock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			// Slow consumer: drop it instead of blocking the publisher.
			delete(h.clients, cl)
			close(cl.send)
		}
	}
	h.mu.Unlock()
	return nil
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	return nil
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames; the stream is one-way. It exists to
// notice disconnects and answer pings.
func (h *Hub) readLoop(cl *client) {
	defer func() {
		h.remove(cl)
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(512)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
