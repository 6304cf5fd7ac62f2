// Package admin serves the dashboard API: pair config CRUD, run and fill
// listings, profit summary, and a websocket stream of live run events
// fanned out from Redis PubSub.
package admin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	redisstore "tradebotv1/internal/store/redis"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// Hub fans Redis run events out to connected websocket clients.
type Hub struct {
	rdb *goredis.Client
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a hub over the given Redis client (nil disables the
// stream; clients still connect but receive nothing).
func NewHub(rdb *goredis.Client, log *slog.Logger) *Hub {
	return &Hub{
		rdb:     rdb,
		log:     log,
		clients: make(map[*Client]bool),
	}
}

// Run subscribes to the per-run event channels and forwards every payload
// to all clients. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		h.log.Warn("event stream disabled: no redis configured")
		<-ctx.Done()
		return
	}

	sub := h.rdb.PSubscribe(ctx, redisstore.PubSubChannelPattern)
	defer sub.Close()

	h.log.Info("subscribed to run events", slog.String("pattern", redisstore.PubSubChannelPattern))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast([]byte(msg.Payload))
		}
	}
}

// Broadcast sends data to every connected client, dropping the message for
// clients whose send buffer is full.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// slow client, skip
		}
	}
}

// HandleWS registers an upgraded connection and starts its pumps.
func (h *Hub) HandleWS(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", slog.Int("total", count))

	go client.writePump()
	go client.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one websocket connection.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// readPump discards inbound frames; the stream is one-way. It exists to
// notice closes and unregister the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
