package handler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/presence"
	"whiteboard-backend/internal/scene"
	"whiteboard-backend/internal/store"
)

// BoardWSHandler is the socket-facing reconciliation engine: it accepts
// inbound room events, runs them through sanitization and the room store,
// and decides what the hub fans out.
//
// Conflict resolution for full-scene updates is a client discipline: each
// client tracks the last scene version it applied and the last it emitted,
// and ignores inbound scenes that are not strictly newer. The server is a
// pure relay for scene-update and applies no version-based rejection of its
// own, trading strict consistency for latency.
type BoardWSHandler struct {
	store    *store.RoomStore
	hub      *Hub
	presence presenceMirror // nil when redis is not configured
}

// presenceMirror is the slice of the presence manager the socket path needs.
type presenceMirror interface {
	Set(ctx context.Context, roomID string, p model.Presence) error
	Remove(ctx context.Context, roomID, connID string) error
}

// NewBoardWSHandler wires the socket handler.
func NewBoardWSHandler(roomStore *store.RoomStore, hub *Hub, pm *presence.Manager) *BoardWSHandler {
	h := &BoardWSHandler{store: roomStore, hub: hub}
	if pm != nil {
		h.presence = pm
	}
	return h
}

// HandleWebSocket runs one connection's event loop. A connection belongs to
// at most one room at a time; disconnect takes the same leave path as an
// explicit leave-room.
func (h *BoardWSHandler) HandleWebSocket(c *websocket.Conn) {
	client := NewClient(uuid.NewString(), c)
	roomID := ""

	log.Printf("[Board] Connection %s opened", client.ID)

	defer func() {
		if roomID != "" {
			h.leave(roomID, client)
		}
		c.Close()
		log.Printf("[Board] Connection %s closed", client.ID)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			h.sendError(client, "malformed event envelope")
			continue
		}

		switch event.Type {
		case EventJoinRoom:
			roomID = h.handleJoin(client, roomID, event.Payload)
		case EventLeaveRoom:
			if roomID != "" {
				h.leave(roomID, client)
				roomID = ""
			}
		case EventSceneUpdate:
			h.handleSceneUpdate(client, roomID, event.Payload)
		case EventIncremental:
			h.handleIncremental(client, roomID, event.Payload)
		case EventPointer:
			h.handlePointer(client, roomID, event.Payload)
		case EventIdleStatus:
			h.handleIdle(client, roomID, event.Payload)
		default:
			h.sendError(client, "unknown event type")
		}
	}
}

// handleJoin moves the connection into a room and answers with the full
// current scene. Returns the room the connection is in afterwards; on any
// failure the previous membership stands and no presence entry is left
// behind.
func (h *BoardWSHandler) handleJoin(client *Client, currentRoom string, payload json.RawMessage) string {
	var join JoinRoomPayload
	if err := json.Unmarshal(payload, &join); err != nil {
		h.sendError(client, "malformed join-room payload")
		return currentRoom
	}
	if res := scene.ValidateRoomID(join.RoomID); !res.Valid() {
		h.sendError(client, res.Error())
		return currentRoom
	}

	user := presence.New(client.ID, join.User.Username, join.User.Color)
	snap, err := h.store.AddUser(context.Background(), join.RoomID, user)
	if err != nil {
		log.Printf("[Board] Join of %s to room %s failed: %v", client.ID, join.RoomID, err)
		h.sendError(client, "failed to join room")
		return currentRoom
	}

	// One room per connection: joining a new room implicitly leaves the old.
	// The old room is left only once the new join has stuck, so a failed
	// join truly keeps the previous membership.
	if currentRoom != "" && currentRoom != join.RoomID {
		h.leave(currentRoom, client)
	}

	h.hub.Join(join.RoomID, client)

	init := NewEvent(EventSceneInit, SceneInitPayload{
		Elements: snap.Elements,
		AppState: snap.AppState,
		Files:    snap.Files,
		Users:    snap.Users(client.ID),
	})
	if err := client.Send(init); err != nil {
		log.Printf("[Board] scene-init to %s failed: %v", client.ID, err)
	}

	h.hub.Broadcast(join.RoomID, NewEvent(EventUserJoined, UserJoinedPayload{
		SocketID: client.ID,
		Username: user.Username,
		Color:    user.Color,
	}), client.ID)

	h.mirrorPresence(join.RoomID, user)
	return join.RoomID
}

// handleSceneUpdate relays a full-scene snapshot to the rest of the room
// before persisting it. The fan-out is deliberately not gated on storage: if
// the durable write later fails it is logged, not retried or rolled back,
// and the next successful update reconciles.
func (h *BoardWSHandler) handleSceneUpdate(client *Client, roomID string, payload json.RawMessage) {
	if roomID == "" {
		h.sendError(client, "not in a room")
		return
	}

	var update ScenePayload
	if err := json.Unmarshal(payload, &update); err != nil {
		h.sendError(client, "malformed scene-update payload")
		return
	}
	if res := scene.ValidateElements(update.Elements); !res.Valid() {
		h.sendError(client, res.Error())
		return
	}

	elements := scene.SanitizeElements(update.Elements)
	appState := scene.SanitizeAppState(update.AppState)

	h.hub.Broadcast(roomID, NewEvent(EventSceneUpdate, ScenePayload{
		Elements: elements,
		AppState: appState,
		Files:    update.Files,
	}), client.ID)

	go func() {
		if _, err := h.store.UpdateElements(context.Background(), roomID, elements, appState, update.Files); err != nil {
			log.Printf("[Board] Persisting scene-update for room %s failed: %v", roomID, err)
		}
	}()
}

// handleIncremental applies a delta through the store's merge rules and
// relays the identical delta to the other participants. The server trusts
// the sender's delta; it does not recompute one.
func (h *BoardWSHandler) handleIncremental(client *Client, roomID string, payload json.RawMessage) {
	if roomID == "" {
		h.sendError(client, "not in a room")
		return
	}

	var delta IncrementalPayload
	if err := json.Unmarshal(payload, &delta); err != nil {
		h.sendError(client, "malformed incremental-update payload")
		return
	}
	if res := scene.ValidateDelta(delta); !res.Valid() {
		h.sendError(client, res.Error())
		return
	}

	if _, err := h.store.ApplyDelta(context.Background(), roomID, delta); err != nil {
		log.Printf("[Board] Applying delta for room %s failed: %v", roomID, err)
		h.sendError(client, "failed to apply incremental update")
		return
	}

	// Relay the sender's payload verbatim.
	h.hub.Broadcast(roomID, Event{Type: EventIncremental, Payload: payload}, client.ID)
}

// handlePointer and handleIdle are fire-and-forget: losing one cursor update
// is immaterial, so failures are swallowed rather than surfaced.
func (h *BoardWSHandler) handlePointer(client *Client, roomID string, payload json.RawMessage) {
	if roomID == "" {
		return
	}

	var pointer model.Pointer
	if err := json.Unmarshal(payload, &pointer); err != nil {
		return
	}

	updated, ok := h.store.UpdateUserPointer(context.Background(), roomID, client.ID, pointer)
	if !ok {
		return
	}

	h.hub.Broadcast(roomID, NewEvent(EventPointer, PointerEventPayload{
		SocketID: client.ID,
		Pointer:  pointer,
	}), client.ID)

	h.mirrorPresence(roomID, updated)
}

func (h *BoardWSHandler) handleIdle(client *Client, roomID string, payload json.RawMessage) {
	if roomID == "" {
		return
	}

	var idle IdlePayload
	if err := json.Unmarshal(payload, &idle); err != nil {
		return
	}

	updated, ok := h.store.UpdateUserIdle(context.Background(), roomID, client.ID, idle.Idle)
	if !ok {
		return
	}

	h.hub.Broadcast(roomID, NewEvent(EventIdleStatus, IdlePayload{
		SocketID: client.ID,
		Idle:     idle.Idle,
	}), client.ID)

	h.mirrorPresence(roomID, updated)
}

// leave removes the connection from its room and tells the others. Used for
// explicit leave-room, implicit leave on re-join, and disconnect alike.
func (h *BoardWSHandler) leave(roomID string, client *Client) {
	h.hub.Leave(roomID, client.ID)

	if err := h.store.RemoveUser(context.Background(), roomID, client.ID); err != nil {
		log.Printf("[Board] Removing %s from room %s failed: %v", client.ID, roomID, err)
	}

	// Only this connection's entry is removed. The redis hash holds entries
	// from every instance, and its TTL reaps rooms that empty out.
	if h.presence != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.presence.Remove(ctx, roomID, client.ID); err != nil {
				log.Printf("[Board] Presence removal for %s failed: %v", client.ID, err)
			}
		}()
	}

	h.hub.Broadcast(roomID, NewEvent(EventUserLeft, UserLeftPayload{SocketID: client.ID}), client.ID)
}

// mirrorPresence copies a presence entry into redis off the event path.
func (h *BoardWSHandler) mirrorPresence(roomID string, p model.Presence) {
	if h.presence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.presence.Set(ctx, roomID, p); err != nil {
			log.Printf("[Board] Presence mirror for %s failed: %v", p.ConnectionID, err)
		}
	}()
}

func (h *BoardWSHandler) sendError(client *Client, message string) {
	if err := client.Send(NewEvent(EventError, ErrorPayload{Message: message})); err != nil {
		log.Printf("[Board] Error event to %s failed: %v", client.ID, err)
	}
}
