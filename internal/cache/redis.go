package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"whiteboard-backend/internal/model"
)

// ErrMiss is returned when a key is absent. Callers treat any other error the
// same way and fall through to the durable store.
var ErrMiss = errors.New("cache miss")

// RoomUpdate is published on every accepted room mutation so other instances
// can drop their process-local copy.
type RoomUpdate struct {
	RoomID  string `json:"roomId"`
	Version int64  `json:"version"`
	Origin  string `json:"origin"`
}

const updateChannel = "wb:room-updates"

// Client wraps redis as the distributed scene cache: room snapshots with a
// TTL, plus a pub/sub channel for cross-instance invalidation.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient connects and pings redis. ttl bounds how long a cached room
// outlives its last write.
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &Client{client: client, ttl: ttl}, nil
}

func roomKey(roomID string) string {
	return "wb:room:" + roomID
}

// Get loads a cached room snapshot. Returns ErrMiss when absent.
func (c *Client) Get(ctx context.Context, roomID string) (*model.Room, error) {
	data, err := c.client.Get(ctx, roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode cached room %s: %w", roomID, err)
	}
	room.ActiveUsers = make(map[string]*model.Presence)
	return &room, nil
}

// Set stores a room snapshot under the configured TTL.
func (c *Client) Set(ctx context.Context, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.ID, err)
	}
	return c.client.Set(ctx, roomKey(room.ID), data, c.ttl).Err()
}

// Delete evicts a room snapshot.
func (c *Client) Delete(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, roomKey(roomID)).Err()
}

// Publish announces an accepted mutation to every other instance.
func (c *Client) Publish(ctx context.Context, update RoomUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, updateChannel, data).Err()
}

// Subscribe delivers room updates published by any instance until ctx is
// done. Malformed messages are dropped.
func (c *Client) Subscribe(ctx context.Context) <-chan RoomUpdate {
	sub := c.client.Subscribe(ctx, updateChannel)
	out := make(chan RoomUpdate, 16)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var update RoomUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					log.Printf("[Redis] Dropping malformed room update: %v", err)
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Health checks connectivity for the health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

// Raw exposes the underlying client for collaborators that need redis
// primitives beyond the scene cache (presence hashes).
func (c *Client) Raw() *redis.Client {
	return c.client
}
