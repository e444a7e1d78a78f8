package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// AppState holds view-level scene settings (background color, scroll, zoom,
// grid size). Keys the server does not know about are merged and relayed
// untouched.
type AppState map[string]any

// FileMap maps file ids to embedded binary payload descriptors (image data
// URLs and metadata). The server treats entries as opaque.
type FileMap map[string]json.RawMessage

// Room is the canonical in-memory state of one collaborative session. The
// room store exclusively owns instances of this type; handlers operate on
// snapshots.
type Room struct {
	ID           string    `json:"id"`
	Elements     []Element `json:"elements"`
	AppState     AppState  `json:"appState"`
	Files        FileMap   `json:"files"`
	Version      int64     `json:"version"`
	LastModified time.Time `json:"lastModified"`
	CreatedAt    time.Time `json:"createdAt"`

	// ActiveUsers is keyed by connection id. Presence is ephemeral and never
	// serialized into the cache or the durable store.
	ActiveUsers map[string]*Presence `json:"-"`
}

// NewRoom initializes an empty room at version 1.
func NewRoom(id string) *Room {
	now := time.Now()
	return &Room{
		ID:           id,
		Elements:     []Element{},
		AppState:     AppState{},
		Files:        FileMap{},
		Version:      1,
		LastModified: now,
		CreatedAt:    now,
		ActiveUsers:  make(map[string]*Presence),
	}
}

// Snapshot returns a copy of the room's scene state safe to hand to handlers.
// Element slices and maps are copied one level deep; elements themselves are
// replaced wholesale on mutation, never edited in place.
func (r *Room) Snapshot() *Room {
	snap := &Room{
		ID:           r.ID,
		Elements:     make([]Element, len(r.Elements)),
		AppState:     make(AppState, len(r.AppState)),
		Files:        make(FileMap, len(r.Files)),
		Version:      r.Version,
		LastModified: r.LastModified,
		CreatedAt:    r.CreatedAt,
		ActiveUsers:  make(map[string]*Presence, len(r.ActiveUsers)),
	}
	copy(snap.Elements, r.Elements)
	for k, v := range r.AppState {
		snap.AppState[k] = v
	}
	for k, v := range r.Files {
		snap.Files[k] = v
	}
	for k, v := range r.ActiveUsers {
		u := *v
		snap.ActiveUsers[k] = &u
	}
	return snap
}

// Users returns the presence entries of the room, excluding the given
// connection id. Pass "" to include everyone.
func (r *Room) Users(excludeConnID string) []Presence {
	users := make([]Presence, 0, len(r.ActiveUsers))
	for id, u := range r.ActiveUsers {
		if id == excludeConnID {
			continue
		}
		users = append(users, *u)
	}
	return users
}

// RoomRecord is the durable representation of a room: one row with JSONB
// scene columns and an expiry driving the 7-day retention sweep.
type RoomRecord struct {
	ID           string         `gorm:"type:varchar(100);primaryKey" json:"id"`
	Elements     datatypes.JSON `gorm:"type:jsonb;not null" json:"elements"`
	AppState     datatypes.JSON `gorm:"type:jsonb;not null" json:"app_state"`
	Files        datatypes.JSON `gorm:"type:jsonb" json:"files"`
	Version      int64          `gorm:"not null;default:1" json:"version"`
	LastModified time.Time      `gorm:"index" json:"last_modified"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `gorm:"index" json:"expires_at"`
}

func (RoomRecord) TableName() string {
	return "rooms"
}

// ToRecord converts the room for persistence. retention sets ExpiresAt
// relative to CreatedAt.
func (r *Room) ToRecord(retention time.Duration) (*RoomRecord, error) {
	elements, err := json.Marshal(r.Elements)
	if err != nil {
		return nil, fmt.Errorf("marshal elements: %w", err)
	}
	appState, err := json.Marshal(r.AppState)
	if err != nil {
		return nil, fmt.Errorf("marshal appState: %w", err)
	}
	files, err := json.Marshal(r.Files)
	if err != nil {
		return nil, fmt.Errorf("marshal files: %w", err)
	}
	return &RoomRecord{
		ID:           r.ID,
		Elements:     datatypes.JSON(elements),
		AppState:     datatypes.JSON(appState),
		Files:        datatypes.JSON(files),
		Version:      r.Version,
		LastModified: r.LastModified,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.CreatedAt.Add(retention),
	}, nil
}

// ToRoom converts a durable record back into an in-memory room with an empty
// presence set.
func (rec *RoomRecord) ToRoom() (*Room, error) {
	room := &Room{
		ID:           rec.ID,
		Elements:     []Element{},
		AppState:     AppState{},
		Files:        FileMap{},
		Version:      rec.Version,
		LastModified: rec.LastModified,
		CreatedAt:    rec.CreatedAt,
		ActiveUsers:  make(map[string]*Presence),
	}
	if len(rec.Elements) > 0 {
		if err := json.Unmarshal(rec.Elements, &room.Elements); err != nil {
			return nil, fmt.Errorf("unmarshal elements: %w", err)
		}
	}
	if len(rec.AppState) > 0 {
		if err := json.Unmarshal(rec.AppState, &room.AppState); err != nil {
			return nil, fmt.Errorf("unmarshal appState: %w", err)
		}
	}
	if len(rec.Files) > 0 {
		if err := json.Unmarshal(rec.Files, &room.Files); err != nil {
			return nil, fmt.Errorf("unmarshal files: %w", err)
		}
	}
	return room, nil
}
