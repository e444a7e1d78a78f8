// Package store implements the room state store: the single source of truth
// for a room's scene, presence set, and version counter. Reads resolve
// process-local cache, then the distributed cache, then the durable store;
// writes serialize per room and refresh both cache layers.
package store

import (
	"context"
	"errors"
	"time"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/model"
)

// ErrRoomNotFound is the recoverable not-found condition surfaced to API and
// socket handlers. It never crashes a connection.
var ErrRoomNotFound = errors.New("room not found")

// DocumentStore is the durable collaborator: room CRUD by id. Errors from it
// propagate to the caller and fail the current operation.
type DocumentStore interface {
	Load(ctx context.Context, roomID string) (*model.RoomRecord, error)
	Save(ctx context.Context, rec *model.RoomRecord) error
	Delete(ctx context.Context, roomID string) error
	// DeleteExpired removes rooms whose retention expiry has passed and
	// returns how many were dropped.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SceneCache is the optional distributed cache. Implementations report
// explicit success or failure; the store degrades any failure to a miss and
// keeps working. A nil SceneCache disables the layer entirely.
type SceneCache interface {
	Get(ctx context.Context, roomID string) (*model.Room, error)
	Set(ctx context.Context, room *model.Room) error
	Delete(ctx context.Context, roomID string) error
	Publish(ctx context.Context, update cache.RoomUpdate) error
	Subscribe(ctx context.Context) <-chan cache.RoomUpdate
}

// Config tunes the store's lifecycle behavior.
type Config struct {
	// EmptyRoomGrace is how long a room with zero users stays cached before
	// eviction, tolerating rapid reconnects.
	EmptyRoomGrace time.Duration
	// InactiveAfter is the cache retention window: empty rooms untouched for
	// longer are swept from both cache layers.
	InactiveAfter time.Duration
	// DurableRetention drives the durable store's expiry column.
	DurableRetention time.Duration
	// OpTimeout bounds individual durable-store and cache calls.
	OpTimeout time.Duration
	// CleanupInterval is the cadence of the inactive-room sweep.
	CleanupInterval time.Duration
	// PurgeInterval is the cadence of the durable expiry sweep.
	PurgeInterval time.Duration
}

// DefaultConfig matches the documented retention contract: 1 minute grace,
// 24 hour cache retention, 7 day durable retention.
func DefaultConfig() Config {
	return Config{
		EmptyRoomGrace:   time.Minute,
		InactiveAfter:    24 * time.Hour,
		DurableRetention: 7 * 24 * time.Hour,
		OpTimeout:        5 * time.Second,
		CleanupInterval:  10 * time.Minute,
		PurgeInterval:    time.Hour,
	}
}
