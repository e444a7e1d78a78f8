package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/scene"
)

// RoomStore owns the canonical Room record for every resident room. All
// scene mutations go through it; per-room locking serializes read-modify-write
// so concurrent updates to one room never interleave. Other components only
// ever see snapshots.
type RoomStore struct {
	docs       DocumentStore
	cache      SceneCache
	cfg        Config
	instanceID string

	mu        sync.RWMutex
	rooms     map[string]*roomEntry
	evictions map[string]*time.Timer
}

type roomEntry struct {
	mu   sync.Mutex
	room *model.Room
}

// New builds a store over the durable collaborator and an optional
// distributed cache (pass nil to run cache-less).
func New(docs DocumentStore, sceneCache SceneCache, cfg Config) *RoomStore {
	return &RoomStore{
		docs:       docs,
		cache:      sceneCache,
		cfg:        cfg,
		instanceID: uuid.NewString(),
		rooms:      make(map[string]*roomEntry),
		evictions:  make(map[string]*time.Timer),
	}
}

// CreateRoom allocates a room. With an id, creation is idempotent: an
// existing room is returned unchanged. Without one, a fresh identifier is
// assigned.
func (s *RoomStore) CreateRoom(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		id = uuid.NewString()
	}
	entry, err := s.entry(ctx, id, true)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.room.Snapshot(), nil
}

// GetRoom resolves a room through local cache, distributed cache, then the
// durable store. On a miss it creates the room when createIfMissing is set,
// otherwise returns ErrRoomNotFound.
func (s *RoomStore) GetRoom(ctx context.Context, id string, createIfMissing bool) (*model.Room, error) {
	entry, err := s.entry(ctx, id, createIfMissing)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.room.Snapshot(), nil
}

// UpdateElements applies a full-scene update: sanitize, replace the element
// set, shallow-merge appState keys, replace the file map when provided, bump
// the version, persist, refresh caches.
func (s *RoomStore) UpdateElements(ctx context.Context, id string, elements []model.Element, appState model.AppState, files model.FileMap) (*model.Room, error) {
	return s.mutateScene(ctx, id, func(room *model.Room) {
		room.Elements = scene.SanitizeElements(elements)
		if appState != nil {
			merged := make(model.AppState, len(room.AppState)+len(appState))
			for k, v := range room.AppState {
				merged[k] = v
			}
			for k, v := range appState {
				merged[k] = v
			}
			room.AppState = scene.SanitizeAppState(merged)
		}
		if files != nil {
			room.Files = files
		}
	})
}

// ApplyDelta applies an incremental update through the merge rules:
// deletions, then per-element field patches, then additions. The room version
// increments exactly once per batch.
func (s *RoomStore) ApplyDelta(ctx context.Context, id string, delta scene.Delta) (*model.Room, error) {
	return s.mutateScene(ctx, id, func(room *model.Room) {
		room.Elements = scene.SanitizeElements(scene.ApplyDelta(room.Elements, delta))
	})
}

// DeleteRoom removes a room from every layer, including the durable store.
func (s *RoomStore) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.rooms, id)
	s.cancelEvictionLocked(id)
	s.mu.Unlock()

	s.cacheDelete(id)

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	if err := s.docs.Delete(opCtx, id); err != nil && !errors.Is(err, ErrRoomNotFound) {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

// AddUser registers a presence entry for a connection. Adding the same
// connection twice leaves exactly one entry. Returns a snapshot carrying the
// full current scene for the joining client.
func (s *RoomStore) AddUser(ctx context.Context, id string, p model.Presence) (*model.Room, error) {
	entry, err := s.entry(ctx, id, true)
	if err != nil {
		return nil, err
	}

	// Lock order is always map before entry; cancel the pending eviction
	// first so the two locks never nest the other way around.
	s.mu.Lock()
	s.cancelEvictionLocked(id)
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	user := p
	entry.room.ActiveUsers[p.ConnectionID] = &user

	return entry.room.Snapshot(), nil
}

// RemoveUser drops a connection's presence entry. Removing from a room the
// connection never joined, or from an unknown room, is a no-op. When the last
// user leaves, cache eviction is scheduled after the grace period.
func (s *RoomStore) RemoveUser(ctx context.Context, id, connID string) error {
	entry, err := s.entry(ctx, id, false)
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	entry.mu.Lock()
	delete(entry.room.ActiveUsers, connID)
	empty := len(entry.room.ActiveUsers) == 0
	entry.mu.Unlock()

	if empty {
		s.scheduleEviction(id)
	}
	return nil
}

// UpdateUserPointer is the narrow presence write path: it touches only the
// one presence entry, never the room document, so it cannot contend with
// concurrent scene writes. Returns the updated entry and whether it existed.
func (s *RoomStore) UpdateUserPointer(ctx context.Context, id, connID string, pointer model.Pointer) (model.Presence, bool) {
	return s.updateUser(ctx, id, connID, func(p *model.Presence) {
		p.Pointer = pointer
		p.Idle = false
	})
}

// UpdateUserIdle flips a connection's idle flag.
func (s *RoomStore) UpdateUserIdle(ctx context.Context, id, connID string, idle bool) (model.Presence, bool) {
	return s.updateUser(ctx, id, connID, func(p *model.Presence) {
		p.Idle = idle
	})
}

func (s *RoomStore) updateUser(ctx context.Context, id, connID string, fn func(*model.Presence)) (model.Presence, bool) {
	entry, err := s.entry(ctx, id, false)
	if err != nil {
		return model.Presence{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	p, ok := entry.room.ActiveUsers[connID]
	if !ok {
		return model.Presence{}, false
	}
	fn(p)
	p.LastActive = time.Now()
	return *p, true
}

// CleanupInactiveRooms sweeps empty rooms whose last modification exceeds the
// cache retention window out of both cache layers. The durable store keeps
// its copy until the retention expiry.
func (s *RoomStore) CleanupInactiveRooms(ctx context.Context) int {
	cutoff := time.Now().Add(-s.cfg.InactiveAfter)

	s.mu.RLock()
	candidates := make([]string, 0)
	for id, entry := range s.rooms {
		entry.mu.Lock()
		if len(entry.room.ActiveUsers) == 0 && entry.room.LastModified.Before(cutoff) {
			candidates = append(candidates, id)
		}
		entry.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, id := range candidates {
		s.evict(id)
	}
	if len(candidates) > 0 {
		log.Printf("[Store] Swept %d inactive rooms from caches", len(candidates))
	}
	return len(candidates)
}

// PurgeExpired removes rooms past their durable retention from the document
// store.
func (s *RoomStore) PurgeExpired(ctx context.Context) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.docs.DeleteExpired(opCtx, time.Now())
}

// RoomCount reports how many rooms are resident in the local cache.
func (s *RoomStore) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// ConnectionCount reports the number of presence entries across all resident
// rooms.
func (s *RoomStore) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, entry := range s.rooms {
		entry.mu.Lock()
		total += len(entry.room.ActiveUsers)
		entry.mu.Unlock()
	}
	return total
}

// Run drives the periodic sweeps and the cross-instance invalidation
// subscription until ctx is done.
func (s *RoomStore) Run(ctx context.Context) {
	go s.runTicker(ctx, s.cfg.CleanupInterval, func() {
		s.CleanupInactiveRooms(ctx)
	})
	go s.runTicker(ctx, s.cfg.PurgeInterval, func() {
		if n, err := s.PurgeExpired(ctx); err != nil {
			log.Printf("[Store] Durable expiry sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("[Store] Purged %d expired rooms from durable store", n)
		}
	})
	if s.cache != nil {
		go s.runInvalidation(ctx)
	}
}

func (s *RoomStore) runTicker(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// runInvalidation drops process-local copies of rooms another instance has
// written, so the next read re-resolves through redis. Rooms with live local
// users are left alone; their state is authoritative here.
func (s *RoomStore) runInvalidation(ctx context.Context) {
	for update := range s.cache.Subscribe(ctx) {
		if update.Origin == s.instanceID {
			continue
		}
		s.mu.Lock()
		entry, ok := s.rooms[update.RoomID]
		if ok {
			entry.mu.Lock()
			if len(entry.room.ActiveUsers) == 0 && update.Version > entry.room.Version {
				delete(s.rooms, update.RoomID)
			}
			entry.mu.Unlock()
		}
		s.mu.Unlock()
	}
}

// entry resolves the roomEntry for id, loading through the cache layers and
// the durable store as needed.
func (s *RoomStore) entry(ctx context.Context, id string, createIfMissing bool) (*roomEntry, error) {
	s.mu.RLock()
	entry, ok := s.rooms[id]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}

	room, err := s.resolve(ctx, id, createIfMissing)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have resolved the same room concurrently; the
	// first insert wins to keep a single canonical copy.
	if existing, ok := s.rooms[id]; ok {
		return existing, nil
	}
	entry = &roomEntry{room: room}
	s.rooms[id] = entry
	return entry, nil
}

func (s *RoomStore) resolve(ctx context.Context, id string, createIfMissing bool) (*model.Room, error) {
	if room := s.cacheGet(ctx, id); room != nil {
		return room, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	rec, err := s.docs.Load(opCtx, id)
	cancel()
	switch {
	case err == nil:
		room, convErr := rec.ToRoom()
		if convErr != nil {
			return nil, fmt.Errorf("room %s: %w", id, convErr)
		}
		s.cacheSet(room)
		return room, nil
	case errors.Is(err, ErrRoomNotFound):
		// fall through to create
	default:
		return nil, fmt.Errorf("load room %s: %w", id, err)
	}

	if !createIfMissing {
		return nil, ErrRoomNotFound
	}

	room := model.NewRoom(id)
	if err := s.persist(ctx, room); err != nil {
		return nil, err
	}
	log.Printf("[Store] Created room %s", id)
	return room, nil
}

// mutateScene runs fn under the room's lock, bumps the version, and persists.
// Durable-store failures propagate; cache failures only degrade.
func (s *RoomStore) mutateScene(ctx context.Context, id string, fn func(*model.Room)) (*model.Room, error) {
	entry, err := s.entry(ctx, id, true)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	fn(entry.room)
	entry.room.Version++
	entry.room.LastModified = time.Now()

	if err := s.persist(ctx, entry.room); err != nil {
		return nil, err
	}
	return entry.room.Snapshot(), nil
}

// persist writes the room durably, refreshes the distributed cache, and
// announces the new version. Caller holds the room lock or owns the room
// exclusively.
func (s *RoomStore) persist(ctx context.Context, room *model.Room) error {
	rec, err := room.ToRecord(s.cfg.DurableRetention)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	if err := s.docs.Save(opCtx, rec); err != nil {
		return fmt.Errorf("persist room %s: %w", room.ID, err)
	}

	s.cacheSet(room)
	s.publish(room)
	return nil
}

func (s *RoomStore) scheduleEviction(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelEvictionLocked(id)
	s.evictions[id] = time.AfterFunc(s.cfg.EmptyRoomGrace, func() {
		s.mu.Lock()
		delete(s.evictions, id)
		entry, ok := s.rooms[id]
		stillEmpty := false
		if ok {
			entry.mu.Lock()
			stillEmpty = len(entry.room.ActiveUsers) == 0
			entry.mu.Unlock()
			if stillEmpty {
				delete(s.rooms, id)
			}
		}
		s.mu.Unlock()
		if stillEmpty {
			s.cacheDelete(id)
			log.Printf("[Store] Evicted empty room %s from caches", id)
		}
	})
}

func (s *RoomStore) cancelEvictionLocked(id string) {
	if timer, ok := s.evictions[id]; ok {
		timer.Stop()
		delete(s.evictions, id)
	}
}

func (s *RoomStore) evict(id string) {
	s.mu.Lock()
	delete(s.rooms, id)
	s.cancelEvictionLocked(id)
	s.mu.Unlock()
	s.cacheDelete(id)
}

// Cache accessors. Every failure is logged and treated as a miss; the system
// must function correctly, only slower, with the cache layer down.

func (s *RoomStore) cacheGet(ctx context.Context, id string) *model.Room {
	if s.cache == nil {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	room, err := s.cache.Get(opCtx, id)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("[Store] Cache read for room %s failed, treating as miss: %v", id, err)
		}
		return nil
	}
	return room
}

func (s *RoomStore) cacheSet(room *model.Room) {
	if s.cache == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()
	if err := s.cache.Set(opCtx, room); err != nil {
		log.Printf("[Store] Cache write for room %s failed: %v", room.ID, err)
	}
}

func (s *RoomStore) cacheDelete(id string) {
	if s.cache == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()
	if err := s.cache.Delete(opCtx, id); err != nil {
		log.Printf("[Store] Cache delete for room %s failed: %v", id, err)
	}
}

func (s *RoomStore) publish(room *model.Room) {
	if s.cache == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()
	update := cache.RoomUpdate{RoomID: room.ID, Version: room.Version, Origin: s.instanceID}
	if err := s.cache.Publish(opCtx, update); err != nil {
		log.Printf("[Store] Update publish for room %s failed: %v", room.ID, err)
	}
}
