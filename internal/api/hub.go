package api

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"capas-server/internal/model"
)

// Hub fans live ticker snapshots out to WebSocket clients. Each client
// carries a buffered send channel; a slow consumer drops frames rather
// than stalling the broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool

	// latest snapshot per market, replayed to new clients on connect
	latest map[string]model.Ticker

	onCount func(n int)
}

// NewHub creates an empty hub. onCount, if non-nil, observes the client
// count after every register and unregister.
func NewHub(onCount func(n int)) *Hub {
	return &Hub{
		clients: make(map[*wsClient]bool),
		latest:  make(map[string]model.Ticker),
		onCount: onCount,
	}
}

// Broadcast sends a ticker snapshot to every client subscribed to its
// market and records it for replay to future clients.
func (h *Hub) Broadcast(t model.Ticker) {
	envelope, err := json.Marshal(map[string]interface{}{
		"type":   "ticker",
		"ticker": t,
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	h.latest[t.Market] = t
	for c := range h.clients {
		if c.market != "" && c.market != t.Market {
			continue
		}
		select {
		case c.send <- envelope:
		default:
			// slow consumer, drop the frame
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConn registers an upgraded connection. market filters the stream
// to a single market; empty means all markets.
func (h *Hub) HandleConn(conn *websocket.Conn, market string) {
	c := &wsClient{
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    h,
		market: market,
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	var replay []model.Ticker
	for m, t := range h.latest {
		if market == "" || market == m {
			replay = append(replay, t)
		}
	}
	h.mu.Unlock()

	if h.onCount != nil {
		h.onCount(count)
	}
	log.Printf("[ws] client connected market=%q (%d total)", market, count)

	for _, t := range replay {
		envelope, err := json.Marshal(map[string]interface{}{
			"type":    "ticker",
			"ticker":  t,
			"initial": true,
		})
		if err == nil {
			c.send <- envelope
		}
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) removeClient(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)
	if h.onCount != nil {
		h.onCount(count)
	}
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	market string
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		log.Println("[ws] client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// The stream is one-way; inbound frames only reset the deadline.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
