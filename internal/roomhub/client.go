package roomhub

import "anonrooms/backend/internal/models"

// Client is the interface for one connected room stream. It abstracts the
// underlying transport so the hub can manage client types uniformly.
type Client interface {
	// GetMemberID returns the membership the stream belongs to.
	GetMemberID() string
	// GetRoomID returns the room whose events the client receives.
	GetRoomID() string

	// GetSendChannel returns the channel the hub pushes this client's
	// events into. It is a send-only channel.
	GetSendChannel() chan<- models.RoomEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's connection and channels.
	Close()
}
