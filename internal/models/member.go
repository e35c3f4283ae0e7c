package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room-scoped member roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// RoomMember is the single membership record for a (room, user) pair.
// A pair only ever has one row: leaving deactivates it, rejoining
// reactivates it in place with a fresh anonymous identity.
type RoomMember struct {
	ID     string `gorm:"primaryKey" json:"id"`
	RoomID string `gorm:"type:uuid;not null;uniqueIndex:idx_room_user" json:"room_id"`
	// UserID is the external user identity. It is never exposed to other
	// members; all member-facing surfaces use AnonymousID instead.
	UserID string `gorm:"type:text;not null;uniqueIndex:idx_room_user" json:"-"`

	// AnonymousID is the opaque room-scoped identity. It rotates on every
	// reactivation so sessions across a leave/rejoin cannot be correlated.
	AnonymousID string `gorm:"type:text;not null;index" json:"anonymous_id"`
	// Nickname is an optional room-scoped display name.
	Nickname string `gorm:"type:text" json:"nickname,omitempty"`
	Role     string `gorm:"type:text;not null;default:user" json:"role"`

	IsMuted bool `gorm:"not null;default:false" json:"is_muted"`
	// MuteExpiresAt is nil while IsMuted for a permanent mute.
	MuteExpiresAt *time.Time `json:"mute_expires_at,omitempty"`

	// IsKicked is terminal: once set the pair can never become active again.
	IsKicked bool       `gorm:"not null;default:false" json:"is_kicked"`
	KickedAt *time.Time `json:"kicked_at,omitempty"`
	// KickedByMemberID references the moderator's membership, not their
	// user, so the moderator stays anonymous too.
	KickedByMemberID *string `json:"kicked_by,omitempty"`

	JoinedAt     time.Time `gorm:"not null" json:"joined_at"`
	LastActiveAt time.Time `gorm:"not null" json:"-"`
	IsActive     bool      `gorm:"not null;default:false" json:"is_active"`
}

// BeforeCreate generates the membership id if the caller did not supply one.
func (m *RoomMember) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Online reports the derived presence status: the member is active and has
// heartbeated within the given window. It is computed at read time and
// never stored.
func (m *RoomMember) Online(at time.Time, window time.Duration) bool {
	return m.IsActive && at.Sub(m.LastActiveAt) <= window
}

// MuteActive reports whether a mute is in force at the given instant.
// An expired timed mute counts as lifted even though IsMuted is still set;
// clearing the flag is left to an explicit Unmute.
func (m *RoomMember) MuteActive(at time.Time) bool {
	if !m.IsMuted {
		return false
	}
	if m.MuteExpiresAt == nil {
		return true
	}
	return at.Before(*m.MuteExpiresAt)
}
