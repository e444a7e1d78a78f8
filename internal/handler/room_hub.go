package handler

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// wsConn is the slice of the websocket connection the hub needs. Narrowed to
// an interface so fan-out can be exercised without a live socket.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
}

// Client is one connected participant. Writes to the underlying connection
// are serialized by a per-client mutex; the fiber websocket connection is not
// safe for concurrent writes.
type Client struct {
	ID      string
	conn    wsConn
	writeMu sync.Mutex
}

// NewClient wraps a connection under a fresh client id.
func NewClient(id string, conn wsConn) *Client {
	return &Client{ID: id, conn: conn}
}

// Send marshals and writes one event. Errors are returned for the caller to
// decide; fan-out treats them as best-effort.
func (c *Client) Send(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub is the fan-out router: it tracks which connections are joined to which
// room and delivers events to everyone but the sender. Events go out in the
// order the hub processes them, which follows arrival order per room; there
// is no cross-room ordering.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Client)}
}

// Join registers a client in a room.
func (h *Hub) Join(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[roomID] = room
	}
	room[client.ID] = client
	log.Printf("[Hub] %s joined room %s (%d connected)", client.ID, roomID, len(room))
}

// Leave removes a client from a room, dropping the room when it empties.
// Leaving a room the client never joined is a no-op.
func (h *Hub) Leave(roomID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room[clientID]; !ok {
		return
	}
	delete(room, clientID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	log.Printf("[Hub] %s left room %s (%d remaining)", clientID, roomID, len(room))
}

// Broadcast delivers an event to every connection in the room except the
// excluded sender. Delivery is best-effort: a failed write is logged and the
// rest of the room still receives the event.
func (h *Hub) Broadcast(roomID string, event Event, excludeClientID string) {
	h.mu.RLock()
	room := h.rooms[roomID]
	targets := make([]*Client, 0, len(room))
	for id, client := range room {
		if id == excludeClientID {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.Send(event); err != nil {
			log.Printf("[Hub] Send to %s in room %s failed: %v", client.ID, roomID, err)
		}
	}
}

// RoomSize reports how many connections are joined to a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Counts reports the number of active rooms and total connections.
func (h *Hub) Counts() (rooms, connections int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, room := range h.rooms {
		connections += len(room)
	}
	return len(h.rooms), connections
}
