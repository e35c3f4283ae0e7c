package roomhub

import (
	"encoding/json"
	"log"

	"anonrooms/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Subscriber hands the hub its firehose of room events.
type Subscriber interface {
	SubscribeEvents() *redis.PubSub
}

// Hub fans room events out to the connected clients of each room. Events
// arrive over Redis Pub/Sub, so every instance's hub sees every event no
// matter which instance persisted it.
type Hub struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	// EventsCh receives decoded room events for fanout. The Pub/Sub
	// listener feeds it; tests may feed it directly.
	EventsCh chan models.RoomEvent

	subscriber Subscriber
}

// NewHub creates a hub. Call StartPubSubListener and Run to make it live.
func NewHub(subscriber Subscriber) *Hub {
	return &Hub{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventsCh:     make(chan models.RoomEvent, 64),
		subscriber:   subscriber,
	}
}

// StartPubSubListener pumps the Redis subscription into EventsCh.
func (h *Hub) StartPubSubListener() {
	go func() {
		pubsub := h.subscriber.SubscribeEvents()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var ev models.RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("ERROR: Failed to unmarshal room event: %v", err)
				continue
			}
			h.EventsCh <- ev
		}
	}()
}

// Run is the hub's dispatch loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.RegisterCh:
			h.Clients[client.GetMemberID()] = client

		case client := <-h.UnregisterCh:
			if _, ok := h.Clients[client.GetMemberID()]; ok {
				delete(h.Clients, client.GetMemberID())
				client.Close()
			}

		case ev := <-h.EventsCh:
			h.broadcast(ev)
		}
	}
}

// broadcast delivers an event to every client in its room. A client whose
// send buffer is full is dropped rather than allowed to stall the others.
func (h *Hub) broadcast(ev models.RoomEvent) {
	for id, client := range h.Clients {
		if client.GetRoomID() != ev.RoomID {
			continue
		}
		select {
		case client.GetSendChannel() <- ev:
		default:
			delete(h.Clients, id)
			client.Close()
			log.Printf("WARNING: Dropped slow client %s in room %s", id, ev.RoomID)
		}
	}
}
