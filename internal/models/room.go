package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Room type discriminator.
const (
	RoomTypeOfficial = "official"
	RoomTypeUser     = "user"
)

// Room represents an ephemeral, topic-based chat room. Official rooms are
// permanent and only undergo periodic message resets; user-created rooms
// additionally carry a fixed lifetime after which they are deleted.
type Room struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"type:text;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `gorm:"type:text;not null;index" json:"category"`
	// RoomType is either RoomTypeOfficial or RoomTypeUser.
	RoomType string `gorm:"type:text;not null" json:"room_type"`

	// ResetIntervalHours controls the periodic message wipe.
	ResetIntervalHours int       `gorm:"not null" json:"reset_interval_hours"`
	NextResetAt        time.Time `gorm:"not null;index" json:"next_reset_at"`
	// ExpiresAt is nil for official rooms, which never expire.
	// For user-created rooms it is set at creation and immutable.
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	// MaxParticipants is nil for unbounded rooms.
	MaxParticipants *int `json:"max_participants,omitempty"`
	// ParticipantCount is a denormalized counter of active memberships,
	// maintained with atomic conditional updates.
	ParticipantCount int `gorm:"not null;default:0" json:"participant_count"`

	// CreatedByUserID is nil for official rooms.
	CreatedByUserID *string        `json:"-"`
	Tags            pq.StringArray `gorm:"type:text[]" json:"tags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// BeforeCreate generates the room id if the caller did not supply one.
func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// Expired reports whether the room is past its lifetime at the given instant.
// Official rooms never expire.
func (r *Room) Expired(at time.Time) bool {
	return r.ExpiresAt != nil && at.After(*r.ExpiresAt)
}
