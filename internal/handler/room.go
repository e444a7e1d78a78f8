package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"whiteboard-backend/internal/presence"
	"whiteboard-backend/internal/scene"
	"whiteboard-backend/internal/store"
)

type RoomHandler struct {
	store    *store.RoomStore
	hub      *Hub
	presence *presence.Manager // nil when redis is not configured
}

func NewRoomHandler(roomStore *store.RoomStore, hub *Hub, pm *presence.Manager) *RoomHandler {
	return &RoomHandler{store: roomStore, hub: hub, presence: pm}
}

type CreateRoomRequest struct {
	RoomID string `json:"roomId,omitempty"`
}

// CreateRoom makes a room ahead of any socket joining it. The id is optional;
// a missing one gets a generated uuid.
func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	roomID := req.RoomID
	if roomID == "" {
		roomID = uuid.NewString()
	}
	if res := scene.ValidateRoomID(roomID); !res.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": res.Error()})
	}

	room, err := h.store.CreateRoom(c.Context(), roomID)
	if err != nil {
		log.Printf("[Room] Create %s failed: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create room"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"roomId":       room.ID,
		"version":      room.Version,
		"createdAt":    room.CreatedAt,
		"lastModified": room.LastModified,
	})
}

// GetRoom returns the current scene snapshot over HTTP, for export and late
// tooling that does not hold a socket.
func (h *RoomHandler) GetRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if res := scene.ValidateRoomID(roomID); !res.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": res.Error()})
	}

	snap, err := h.store.GetRoom(c.Context(), roomID, false)
	if errors.Is(err, store.ErrRoomNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Room not found"})
	}
	if err != nil {
		log.Printf("[Room] Get %s failed: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load room"})
	}

	return c.JSON(fiber.Map{
		"roomId":       snap.ID,
		"elements":     snap.Elements,
		"appState":     snap.AppState,
		"files":        snap.Files,
		"version":      snap.Version,
		"lastModified": snap.LastModified,
	})
}

// GetRoomStats reports lightweight per-room counters without the scene body.
func (h *RoomHandler) GetRoomStats(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if res := scene.ValidateRoomID(roomID); !res.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": res.Error()})
	}

	snap, err := h.store.GetRoom(c.Context(), roomID, false)
	if errors.Is(err, store.ErrRoomNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Room not found"})
	}
	if err != nil {
		log.Printf("[Room] Stats %s failed: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load room"})
	}

	stats := fiber.Map{
		"roomId":       snap.ID,
		"version":      snap.Version,
		"sceneVersion": scene.SceneVersion(snap.Elements),
		"elementCount": len(snap.Elements),
		"userCount":    h.hub.RoomSize(snap.ID),
		"lastModified": snap.LastModified,
	}

	// The redis presence hash sees users across every instance, not just the
	// ones connected here.
	if users, err := h.presence.List(c.Context(), snap.ID); err == nil && users != nil {
		stats["users"] = users
	}

	return c.JSON(stats)
}

// DeleteRoom removes a room from every tier. Connected participants keep their
// sockets but the next update recreates the room from scratch.
func (h *RoomHandler) DeleteRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if res := scene.ValidateRoomID(roomID); !res.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": res.Error()})
	}

	if err := h.store.DeleteRoom(c.Context(), roomID); err != nil {
		log.Printf("[Room] Delete %s failed: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete room"})
	}

	// Deleting a room retires its presence hash everywhere; stale cursor
	// state must not survive the scene it belonged to.
	if err := h.presence.Clear(c.Context(), roomID); err != nil {
		log.Printf("[Room] Presence clear for %s failed: %v", roomID, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetServerStats is the aggregate counters endpoint.
func (h *RoomHandler) GetServerStats(c *fiber.Ctx) error {
	rooms, connections := h.hub.Counts()
	return c.JSON(fiber.Map{
		"activeRooms":      rooms,
		"connections":      connections,
		"cachedRooms":      h.store.RoomCount(),
		"trackedPresences": h.store.ConnectionCount(),
	})
}
