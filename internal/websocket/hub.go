// Package websocket pushes order notifications to connected restaurant
// dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

type Message struct {
	Type         string      `json:"type"`
	RestaurantID int64       `json:"restaurant_id"`
	Data         interface{} `json:"data"`
	Timestamp    string      `json:"timestamp"`
}

// Client is one dashboard connection. A zero restaurantID receives the
// messages of every restaurant.
type Client struct {
	conn         *websocket.Conn
	send         chan Message
	hub          *Hub
	restaurantID int64
}

func (c *Client) wants(m Message) bool {
	return c.restaurantID == 0 || c.restaurantID == m.RestaurantID
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	origins    map[string]bool
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *logrus.Logger
	now        func() time.Time
}

// NewHub returns a hub that accepts same-origin browsers plus the listed
// origins ("https://dashboard.example.com"). Requests without an Origin
// header are not from a browser and are accepted.
func NewHub(logger *logrus.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    make(map[string]bool, len(allowedOrigins)),
		logger:     logger,
		now:        time.Now,
	}
	for _, origin := range allowedOrigins {
		h.origins[strings.ToLower(strings.TrimRight(origin, "/"))] = true
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) || h.origins[strings.ToLower(origin)] {
		return true
	}
	h.logger.WithField("origin", origin).Warn("Rejected WebSocket origin")
	return false
}

// Run dispatches messages until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.WithFields(logrus.Fields{
				"client_count":  count,
				"restaurant_id": client.restaurantID,
			}).Info("Client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("client_count", count).Info("Client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(message) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for the clients of restaurantID. It never
// blocks; when the queue is full the message is dropped.
func (h *Hub) Broadcast(restaurantID int64, messageType string, data interface{}) {
	message := Message{
		Type:         messageType,
		RestaurantID: restaurantID,
		Data:         data,
		Timestamp:    h.now().UTC().Format(time.RFC3339),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.WithField("restaurant_id", restaurantID).Warn("Broadcast channel full, dropping message")
	}
}

// HandleWebSocket upgrades GET /ws?restaurant={id}.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var restaurantID int64
	if raw := r.URL.Query().Get("restaurant"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid restaurant id", http.StatusBadRequest)
			return
		}
		restaurantID = id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{
		conn:         conn,
		send:         make(chan Message, sendBuffer),
		hub:          h,
		restaurantID: restaurantID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump only drains control frames; dashboards never send data.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Error("WebSocket error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
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

			data, err := json.Marshal(message)
			if err != nil {
				c.hub.logger.WithError(err).Error("Failed to marshal WebSocket message")
				continue
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
