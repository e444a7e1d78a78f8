package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/model"
)

// fakeDocs is an in-memory DocumentStore with failure injection.
type fakeDocs struct {
	mu      sync.Mutex
	records map[string][]byte
	saves   int
	failAll bool
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{records: make(map[string][]byte)}
}

var errInjected = errors.New("injected failure")

func (f *fakeDocs) Load(ctx context.Context, roomID string) (*model.RoomRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errInjected
	}
	data, ok := f.records[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	var rec model.RoomRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (f *fakeDocs) Save(ctx context.Context, rec *model.RoomRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errInjected
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f.records[rec.ID] = data
	f.saves++
	return nil
}

func (f *fakeDocs) Delete(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errInjected
	}
	delete(f.records, roomID)
	return nil
}

func (f *fakeDocs) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var dropped int64
	for id, data := range f.records {
		var rec model.RoomRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.ExpiresAt.Before(now) {
			delete(f.records, id)
			dropped++
		}
	}
	return dropped, nil
}

func (f *fakeDocs) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeDocs) has(roomID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[roomID]
	return ok
}

// fakeCache is an in-memory SceneCache with failure injection and a capture
// of published updates.
type fakeCache struct {
	mu        sync.Mutex
	rooms     map[string][]byte
	published []cache.RoomUpdate
	updates   chan cache.RoomUpdate
	failAll   bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		rooms:   make(map[string][]byte),
		updates: make(chan cache.RoomUpdate, 16),
	}
}

func (f *fakeCache) Get(ctx context.Context, roomID string) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errInjected
	}
	data, ok := f.rooms[roomID]
	if !ok {
		return nil, cache.ErrMiss
	}
	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	room.ActiveUsers = make(map[string]*model.Presence)
	return &room, nil
}

func (f *fakeCache) Set(ctx context.Context, room *model.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errInjected
	}
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	f.rooms[room.ID] = data
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errInjected
	}
	delete(f.rooms, roomID)
	return nil
}

func (f *fakeCache) Publish(ctx context.Context, update cache.RoomUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errInjected
	}
	f.published = append(f.published, update)
	return nil
}

func (f *fakeCache) Subscribe(ctx context.Context) <-chan cache.RoomUpdate {
	return f.updates
}

func (f *fakeCache) has(roomID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[roomID]
	return ok
}

func (f *fakeCache) prime(room *model.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := json.Marshal(room)
	f.rooms[room.ID] = data
}
