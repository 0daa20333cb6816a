package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID string) *Client {
	return newClient(nil, userID)
}

func TestHubJoinAndLeave(t *testing.T) {
	hub := NewHub()
	client := newTestClient("a")
	hub.Register(client)

	hub.Join(client, "room1")
	assert.Equal(t, 1, hub.RoomSize("room1"))
	assert.Equal(t, []string{"room1"}, hub.RoomsOf(client))

	hub.Leave(client, "room1")
	assert.Equal(t, 0, hub.RoomSize("room1"))
	assert.Empty(t, hub.RoomsOf(client))
}

func TestHubUnregisterClearsAllRooms(t *testing.T) {
	hub := NewHub()
	client := newTestClient("a")
	hub.Register(client)
	hub.Join(client, "room1")
	hub.Join(client, "room2")

	hub.Unregister(client)
	assert.Equal(t, 0, hub.RoomSize("room1"))
	assert.Equal(t, 0, hub.RoomSize("room2"))

	// Safe to call again after disconnect races.
	hub.Unregister(client)
}

func TestHubJoinBeforeRegisterIsIgnored(t *testing.T) {
	hub := NewHub()
	client := newTestClient("a")

	hub.Join(client, "room1")
	assert.Equal(t, 0, hub.RoomSize("room1"))
}

func TestBroadcastReachesEveryoneInRoom(t *testing.T) {
	hub := NewHub()
	a := newTestClient("a")
	b := newTestClient("b")
	outsider := newTestClient("c")
	for _, c := range []*Client{a, b, outsider} {
		hub.Register(c)
	}
	hub.Join(a, "room1")
	hub.Join(b, "room1")

	hub.Broadcast("room1", []byte("hello"))

	require.Len(t, a.send, 1)
	require.Len(t, b.send, 1)
	assert.Len(t, outsider.send, 0)
	assert.Equal(t, []byte("hello"), <-a.send)
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := NewHub()
	a := newTestClient("a")
	b := newTestClient("b")
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, "room1")
	hub.Join(b, "room1")

	hub.BroadcastExcept("room1", a, []byte("read"))

	assert.Len(t, a.send, 0)
	require.Len(t, b.send, 1)
}

func TestBroadcastDropsStalledConnection(t *testing.T) {
	hub := NewHub()
	slow := newTestClient("slow")
	hub.Register(slow)
	hub.Join(slow, "room1")

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, slow.trySend([]byte("x")))
	}

	// Buffer is full: the next broadcast evicts the connection.
	hub.Broadcast("room1", []byte("y"))
	assert.Equal(t, 0, hub.RoomSize("room1"))
}

func TestSendAfterEvictionIsDiscarded(t *testing.T) {
	hub := NewHub()
	slow := newTestClient("slow")
	hub.Register(slow)
	hub.Join(slow, "room1")

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, slow.trySend([]byte("x")))
	}
	hub.Broadcast("room1", []byte("y"))
	require.Equal(t, 0, hub.RoomSize("room1"))

	// The connection's read loop is still alive at this point and may queue
	// further events (an error reply, a created conversation). Those sends
	// must be swallowed, never panic.
	assert.True(t, slow.trySend([]byte("late error reply")))
	assert.Len(t, slow.send, sendBufferSize)
}

func TestBroadcastRacingUnregisterIsSafe(t *testing.T) {
	hub := NewHub()
	client := newTestClient("a")
	hub.Register(client)
	hub.Join(client, "room1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Broadcast("room1", []byte("m"))
		}
	}()
	hub.Unregister(client)
	<-done
}
