package roomhub

import (
	"testing"
	"time"

	"anonrooms/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

// mockClient is a hub client with a controllable buffer, no transport.
type mockClient struct {
	memberID string
	roomID   string
	send     chan models.RoomEvent
	closed   bool
}

func newMockClient(memberID, roomID string, buffer int) *mockClient {
	return &mockClient{
		memberID: memberID,
		roomID:   roomID,
		send:     make(chan models.RoomEvent, buffer),
	}
}

func (c *mockClient) GetMemberID() string { return c.memberID }

func (c *mockClient) GetRoomID() string { return c.roomID }

func (c *mockClient) GetSendChannel() chan<- models.RoomEvent { return c.send }

func (c *mockClient) Run() {}

func (c *mockClient) Close() { c.closed = true }

func messageEvent(roomID string) models.RoomEvent {
	return models.RoomEvent{
		Type:      models.EventMessage,
		RoomID:    roomID,
		Content:   "hello",
		CreatedAt: time.Now(),
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	client := newMockClient("m1", "room1", 1)
	h.RegisterCh <- client
	h.UnregisterCh <- client

	// A second unregister is a no-op; once it is accepted the first one,
	// including the Close, has already been processed.
	h.UnregisterCh <- client

	assert.Empty(t, client.send)
	assert.True(t, client.closed)
}

func TestBroadcast_OnlyToMatchingRoom(t *testing.T) {
	h := NewHub(nil)
	inRoom := newMockClient("m1", "room1", 1)
	elsewhere := newMockClient("m2", "room2", 1)
	h.Clients[inRoom.memberID] = inRoom
	h.Clients[elsewhere.memberID] = elsewhere

	h.broadcast(messageEvent("room1"))

	assert.Len(t, inRoom.send, 1)
	assert.Empty(t, elsewhere.send)

	got := <-inRoom.send
	assert.Equal(t, "hello", got.Content)
}

func TestBroadcast_DropsSlowClient(t *testing.T) {
	h := NewHub(nil)
	slow := newMockClient("m1", "room1", 1)
	fine := newMockClient("m2", "room1", 2)
	h.Clients[slow.memberID] = slow
	h.Clients[fine.memberID] = fine

	// The first event fills slow's buffer; the second overflows it.
	h.broadcast(messageEvent("room1"))
	h.broadcast(messageEvent("room1"))

	assert.NotContains(t, h.Clients, "m1")
	assert.True(t, slow.closed)
	assert.Contains(t, h.Clients, "m2")
	assert.False(t, fine.closed)
	assert.Len(t, fine.send, 2)
}
