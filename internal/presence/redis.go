package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whiteboard-backend/internal/model"
)

// Manager mirrors live pointer and idle state into a per-room redis hash.
// Each presence entry is one hash field keyed by connection id, so pointer
// updates are a single targeted field write and never contend with the full
// room document. The manager is optional: a nil Manager no-ops everywhere.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager wraps an existing redis connection. ttl bounds how long a
// room's presence hash survives without activity.
func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl}
}

func roomPresenceKey(roomID string) string {
	return fmt.Sprintf("wb:room:%s:presence", roomID)
}

// Set writes one participant's full presence entry.
func (m *Manager) Set(ctx context.Context, roomID string, p model.Presence) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	key := roomPresenceKey(roomID)
	if err := m.client.HSet(ctx, key, p.ConnectionID, data).Err(); err != nil {
		return err
	}
	return m.client.Expire(ctx, key, m.ttl).Err()
}

// Remove deletes one participant's entry on leave or disconnect.
func (m *Manager) Remove(ctx context.Context, roomID, connID string) error {
	if m == nil {
		return nil
	}
	return m.client.HDel(ctx, roomPresenceKey(roomID), connID).Err()
}

// List returns all presence entries of a room. Entries that fail to decode
// are skipped.
func (m *Manager) List(ctx context.Context, roomID string) ([]model.Presence, error) {
	if m == nil {
		return nil, nil
	}
	fields, err := m.client.HGetAll(ctx, roomPresenceKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	users := make([]model.Presence, 0, len(fields))
	for _, raw := range fields {
		var p model.Presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		users = append(users, p)
	}
	return users, nil
}

// Clear drops a room's whole presence hash when the room is evicted.
func (m *Manager) Clear(ctx context.Context, roomID string) error {
	if m == nil {
		return nil
	}
	return m.client.Del(ctx, roomPresenceKey(roomID)).Err()
}
