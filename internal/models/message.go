package models

import "gorm.io/gorm"

// Message content formats.
const (
	FormatPlain    = "plain"
	FormatMarkdown = "markdown"
)

// RoomMessage represents a message stored for a room. The author is the
// membership, not the user — the anonymity boundary runs through this table.
// The embedded gorm.Model provides ID, CreatedAt, UpdatedAt, and DeletedAt.
type RoomMessage struct {
	gorm.Model

	RoomID string `gorm:"type:uuid;not null;index:idx_room_msg" json:"room_id"`
	// MemberID is the authoring membership. Empty for system messages.
	MemberID string `gorm:"type:text;index" json:"-"`
	// AuthorAnonID and AuthorNickname snapshot the author's identity at send
	// time. Reads surface the snapshot and never re-resolve through the
	// membership row: a rotated identity must not be linkable to the
	// messages sent under the previous one.
	AuthorAnonID   string `gorm:"type:text" json:"anonymous_id,omitempty"`
	AuthorNickname string `gorm:"type:text" json:"nickname,omitempty"`
	Content        string `gorm:"type:text;not null" json:"content"`
	Format         string `gorm:"type:text;not null;default:plain" json:"format"`
	// ReplyToID references another message in the same room.
	ReplyToID *uint `gorm:"index" json:"reply_to,omitempty"`

	// IsSystem marks system-generated announcements ("X joined the room").
	IsSystem bool `gorm:"not null;default:false" json:"is_system"`
	// IsAdminDeleted marks moderation masking. Once set, Content holds a
	// fixed notice and the original text is gone for good.
	IsAdminDeleted bool `gorm:"not null;default:false" json:"is_admin_deleted"`
}
