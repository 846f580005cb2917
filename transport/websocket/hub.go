package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/campus-charging-sim/campus/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound messages queued per client before it is dropped.
	sendBuffer = 64

	// Broadcasts queued inside the hub before new ones are dropped.
	broadcastBuffer = 256
)

// Event names sent to clients
const (
	EventSnapshot = "snapshot"
	EventDeleted  = "simulation_deleted"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is one frame sent to a renderer
type Message struct {
	SimulationID string           `json:"simulation_id"`
	Event        string           `json:"event"`
	Snapshot     *engine.Snapshot `json:"snapshot,omitempty"`
	Data         any              `json:"data,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	simulationID string
}

// Hub maintains the set of active clients and broadcasts snapshots to them
type Hub struct {
	// Registered clients by simulation ID, guarded by mu
	simulations map[string]map[*Client]bool
	mu          sync.RWMutex

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	log zerolog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		simulations: make(map[string]map[*Client]bool),
		broadcast:   make(chan *Message, broadcastBuffer),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		log:         log,
	}
}

// Run starts the hub's event loop and blocks until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to one simulation
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, simulationID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		simulationID: simulationID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Publish queues a snapshot for every client watching simulationID. It never
// blocks; when the hub is backed up the snapshot is dropped.
func (h *Hub) Publish(simulationID string, snap engine.Snapshot) {
	h.enqueue(&Message{
		SimulationID: simulationID,
		Event:        EventSnapshot,
		Snapshot:     &snap,
	})
}

// BroadcastEvent sends a custom event to all clients of a simulation
func (h *Hub) BroadcastEvent(simulationID, event string, data any) {
	h.enqueue(&Message{
		SimulationID: simulationID,
		Event:        event,
		Data:         data,
	})
}

// ClientCount returns how many clients watch simulationID
func (h *Hub) ClientCount(simulationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.simulations[simulationID])
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn().Str("simulation", message.SimulationID).Str("event", message.Event).Msg("websocket broadcast dropped")
	}
}

// registerClient adds a client to a simulation
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.simulations[client.simulationID] == nil {
		h.simulations[client.simulationID] = make(map[*Client]bool)
	}
	h.simulations[client.simulationID][client] = true

	h.log.Debug().Str("simulation", client.simulationID).
		Int("clients", len(h.simulations[client.simulationID])).
		Msg("websocket client registered")
}

// unregisterClient removes a client from a simulation
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.simulations[client.simulationID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.simulations, client.simulationID)
	}

	h.log.Debug().Str("simulation", client.simulationID).
		Int("clients", len(clients)).
		Msg("websocket client unregistered")
}

// broadcastMessage sends a message to all clients of a simulation
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal websocket message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.simulations[message.SimulationID] {
		select {
		case client.send <- data:
		default:
			// Slow client
			h.removeLocked(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.simulations {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("simulation", c.simulationID).Msg("websocket read failed")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection. Each
// message is its own frame so renderers can decode one snapshot per read.
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
				// The hub closed the channel
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
