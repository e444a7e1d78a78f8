package handler

import (
	"encoding/json"

	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/scene"
)

// Socket event names, inbound and outbound.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSceneUpdate = "scene-update"
	EventIncremental = "incremental-update"
	EventPointer     = "pointer-update"
	EventIdleStatus  = "idle-status"

	EventSceneInit  = "scene-init"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventError      = "error"
)

// Event is the wire envelope for every socket message in both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent wraps a payload; marshal failures cannot happen for our own
// payload types, so they are reported as an error event instead of dropped.
func NewEvent(eventType string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{Type: EventError, Payload: mustJSON(ErrorPayload{Message: "internal encoding error"})}
	}
	return Event{Type: eventType, Payload: data}
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// JoinRoomPayload is sent by a client entering a room.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	User   struct {
		Username string `json:"username"`
		Color    string `json:"color"`
	} `json:"user"`
}

// ScenePayload carries a full scene snapshot, inbound (scene-update) and as
// part of scene-init.
type ScenePayload struct {
	Elements []model.Element `json:"elements"`
	AppState model.AppState  `json:"appState"`
	Files    model.FileMap   `json:"files,omitempty"`
}

// SceneInitPayload answers a join with the room's current scene and the other
// participants.
type SceneInitPayload struct {
	Elements []model.Element  `json:"elements"`
	AppState model.AppState   `json:"appState"`
	Files    model.FileMap    `json:"files,omitempty"`
	Users    []model.Presence `json:"users"`
}

// IncrementalPayload is the wire shape of a scene delta.
type IncrementalPayload = scene.Delta

// PointerEventPayload relays one participant's cursor move to the others.
type PointerEventPayload struct {
	SocketID string        `json:"socketId"`
	Pointer  model.Pointer `json:"pointer"`
}

// IdlePayload is inbound ({idle}) and outbound ({socketId, idle}).
type IdlePayload struct {
	SocketID string `json:"socketId,omitempty"`
	Idle     bool   `json:"idle"`
}

// UserJoinedPayload announces a new participant to the rest of the room.
type UserJoinedPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// UserLeftPayload announces a departure.
type UserLeftPayload struct {
	SocketID string `json:"socketId"`
}

// ErrorPayload is surfaced to the offending sender only.
type ErrorPayload struct {
	Message string `json:"message"`
}
