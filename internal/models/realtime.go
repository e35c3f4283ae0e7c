package models

import "time"

// Room event types fanned out to connected clients.
const (
	EventMessage      = "message"
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
	EventMemberKicked = "member_kicked"
	EventRoomReset    = "room_reset"
)

// RoomEvent is the wire format published over Redis and pushed to websocket
// clients. Authors are only ever surfaced by anonymous id and nickname.
type RoomEvent struct {
	Type        string    `json:"type"`
	RoomID      string    `json:"room_id"`
	MessageID   uint      `json:"message_id,omitempty"`
	AnonymousID string    `json:"anonymous_id,omitempty"`
	Nickname    string    `json:"nickname,omitempty"`
	Content     string    `json:"content,omitempty"`
	Format      string    `json:"format,omitempty"`
	ReplyToID   *uint     `json:"reply_to,omitempty"`
	IsSystem    bool      `json:"is_system,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
