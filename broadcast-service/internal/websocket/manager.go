package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Manager tracks the clients watching each auction house. One goroutine
// (Run) owns the subscriber sets; everything else talks to it over
// channels.
type Manager struct {
	houses map[uint32]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu     sync.RWMutex
	counts map[uint32]int

	log *slog.Logger
}

// Client represents a WebSocket client connection
type Client struct {
	ID      string
	HouseID uint32
	Conn    *websocket.Conn
	Send    chan []byte // closed by the manager
}

// BroadcastMessage is a payload for every client watching a house.
type BroadcastMessage struct {
	HouseID uint32
	Payload []byte
}

// NewManager creates a new WebSocket manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		houses:     make(map[uint32]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBuffer),
		done:       make(chan struct{}),
		counts:     make(map[uint32]int),
		log:        logger.With("component", "ws-manager"),
	}
}

// Run owns the subscriber sets until ctx is done, then disconnects every
// client.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range m.houses {
				for c := range clients {
					m.remove(c)
				}
			}
			return

		case c := <-m.register:
			m.add(c)

		case c := <-m.unregister:
			m.remove(c)

		case msg := <-m.broadcast:
			m.broadcastToHouse(msg.HouseID, msg.Payload)
		}
	}
}

// RegisterClient adds a client. It reports false once the manager stopped.
func (m *Manager) RegisterClient(c *Client) bool {
	select {
	case m.register <- c:
		return true
	case <-m.done:
		return false
	}
}

// UnregisterClient removes a client. Removing an unknown client is a no-op.
func (m *Manager) UnregisterClient(c *Client) {
	select {
	case m.unregister <- c:
	case <-m.done:
	}
}

// Broadcast sends a payload to every client watching a house.
func (m *Manager) Broadcast(house uint32, payload []byte) {
	select {
	case m.broadcast <- &BroadcastMessage{HouseID: house, Payload: payload}:
	case <-m.done:
	}
}

// GetSubscriberCount returns the number of clients watching a house.
func (m *Manager) GetSubscriberCount(house uint32) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[house]
}

func (m *Manager) add(c *Client) {
	clients, ok := m.houses[c.HouseID]
	if !ok {
		clients = make(map[*Client]struct{})
		m.houses[c.HouseID] = clients
	}
	clients[c] = struct{}{}
	m.setCount(c.HouseID, len(clients))

	m.log.Debug("client subscribed", slog.String("client_id", c.ID), slog.Uint64("house_id", uint64(c.HouseID)))
	go c.writePump()
}

func (m *Manager) remove(c *Client) {
	clients := m.houses[c.HouseID]
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(m.houses, c.HouseID)
	}
	m.setCount(c.HouseID, len(clients))
	close(c.Send)

	m.log.Debug("client unsubscribed", slog.String("client_id", c.ID), slog.Uint64("house_id", uint64(c.HouseID)))
}

func (m *Manager) setCount(house uint32, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n == 0 {
		delete(m.counts, house)
		return
	}
	m.counts[house] = n
}

// broadcastToHouse queues payload on every client of a house. A client
// whose buffer is full is disconnected.
func (m *Manager) broadcastToHouse(house uint32, payload []byte) {
	sent := 0
	for c := range m.houses[house] {
		select {
		case c.Send <- payload:
			sent++
		default:
			m.log.Warn("slow client dropped", slog.String("client_id", c.ID))
			m.remove(c)
		}
	}
	m.log.Debug("event broadcast", slog.Uint64("house_id", uint64(house)), slog.Int("clients", sent))
}

// writePump pumps messages from the Send channel to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client input and unregisters the client when the
// connection drops.
func (c *Client) readPump(m *Manager) {
	defer m.UnregisterClient(c)

	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.log.Debug("websocket read error", slog.String("client_id", c.ID), slog.String("error", err.Error()))
			}
			return
		}
	}
}
