package handler

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records every frame written to it.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection gone")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) events(t *testing.T) []Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, 0, len(f.frames))
	for _, frame := range f.frames {
		var ev Event
		require.NoError(t, json.Unmarshal(frame, &ev))
		out = append(out, ev)
	}
	return out
}

func newTestClient(id string) (*Client, *fakeConn) {
	conn := &fakeConn{}
	return NewClient(id, conn), conn
}

func TestBroadcast_ExcludesSender(t *testing.T) {
	hub := NewHub()
	sender, senderConn := newTestClient("a")
	peer, peerConn := newTestClient("b")
	hub.Join("room-1", sender)
	hub.Join("room-1", peer)

	hub.Broadcast("room-1", NewEvent(EventUserLeft, UserLeftPayload{SocketID: "a"}), "a")

	assert.Empty(t, senderConn.events(t))
	events := peerConn.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserLeft, events[0].Type)
}

func TestBroadcast_DoesNotCrossRooms(t *testing.T) {
	hub := NewHub()
	inRoom, inConn := newTestClient("a")
	elsewhere, elseConn := newTestClient("b")
	hub.Join("room-1", inRoom)
	hub.Join("room-2", elsewhere)

	hub.Broadcast("room-1", NewEvent(EventIdleStatus, IdlePayload{SocketID: "x", Idle: true}), "")

	assert.Len(t, inConn.events(t), 1)
	assert.Empty(t, elseConn.events(t))
}

func TestBroadcast_SurvivesFailedWrite(t *testing.T) {
	hub := NewHub()
	dead, deadConn := newTestClient("a")
	deadConn.fail = true
	alive, aliveConn := newTestClient("b")
	hub.Join("room-1", dead)
	hub.Join("room-1", alive)

	hub.Broadcast("room-1", NewEvent(EventUserJoined, UserJoinedPayload{SocketID: "c"}), "")

	assert.Len(t, aliveConn.events(t), 1)
}

func TestLeave_DropsEmptyRoomAndToleratesUnknown(t *testing.T) {
	hub := NewHub()
	client, _ := newTestClient("a")
	hub.Join("room-1", client)
	require.Equal(t, 1, hub.RoomSize("room-1"))

	hub.Leave("room-1", "a")
	assert.Equal(t, 0, hub.RoomSize("room-1"))

	rooms, connections := hub.Counts()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, connections)

	// Leaving again, or leaving a room never joined, must not panic.
	hub.Leave("room-1", "a")
	hub.Leave("no-such-room", "a")
}

func TestCounts(t *testing.T) {
	hub := NewHub()
	a, _ := newTestClient("a")
	b, _ := newTestClient("b")
	c, _ := newTestClient("c")
	hub.Join("room-1", a)
	hub.Join("room-1", b)
	hub.Join("room-2", c)

	rooms, connections := hub.Counts()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 3, connections)
}

func TestClientSend_RoundTripsEnvelope(t *testing.T) {
	client, conn := newTestClient("a")

	require.NoError(t, client.Send(NewEvent(EventError, ErrorPayload{Message: "boom"})))

	events := conn.events(t)
	require.Len(t, events, 1)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "boom", payload.Message)
}
