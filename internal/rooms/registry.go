// Package rooms owns room creation, the capacity-guarded join path, and the
// background reset/expiry scheduler.
package rooms

import (
	"fmt"
	"log"
	"strings"
	"time"

	"anonrooms/backend/internal/config"
	"anonrooms/backend/internal/membership"
	"anonrooms/backend/internal/models"
)

// Store is the slice of the storage layer the registry needs.
type Store interface {
	CreateRoom(room *models.Room) error
	GetRoomByID(roomID string) (*models.Room, error)
	ListRooms(limit int, cursor string) ([]models.Room, string, error)
	FindMember(roomID, userID string) (*models.RoomMember, error)
	IncrementParticipantsBelowCap(roomID string) (bool, error)
	DecrementParticipants(roomID string) error
	IsKickedCached(roomID, userID string) (bool, error)
}

// Registry creates rooms and guards the join path.
type Registry struct {
	store   Store
	members *membership.Service
	now     func() time.Time
}

func NewRegistry(store Store, members *membership.Service) *Registry {
	return &Registry{store: store, members: members, now: time.Now}
}

// CreateSpec describes a room to create. Duration is required for
// user-created rooms and forbidden for official ones.
type CreateSpec struct {
	Name               string
	Description        string
	Category           string
	RoomType           string
	ResetIntervalHours int
	MaxParticipants    *int
	Duration           *time.Duration
	Tags               []string
	CreatedByUserID    string
}

func (spec *CreateSpec) validate() error {
	name := strings.TrimSpace(spec.Name)
	if len(name) < config.NameMinLen || len(name) > config.NameMaxLen {
		return fmt.Errorf("%w: name must be %d-%d characters", models.ErrInvalidRoomSpec, config.NameMinLen, config.NameMaxLen)
	}
	if len(spec.Description) > config.DescriptionMaxLen {
		return fmt.Errorf("%w: description too long", models.ErrInvalidRoomSpec)
	}
	if !contains(config.Categories, spec.Category) {
		return fmt.Errorf("%w: unknown category %q", models.ErrInvalidRoomSpec, spec.Category)
	}
	if !containsInt(config.AllowedResetIntervalHours, spec.ResetIntervalHours) {
		return fmt.Errorf("%w: reset interval %dh not allowed", models.ErrInvalidRoomSpec, spec.ResetIntervalHours)
	}
	if spec.MaxParticipants != nil && !containsInt(config.AllowedCapacities, *spec.MaxParticipants) {
		return fmt.Errorf("%w: capacity %d not allowed", models.ErrInvalidRoomSpec, *spec.MaxParticipants)
	}
	if len(spec.Tags) > config.MaxTags {
		return fmt.Errorf("%w: too many tags", models.ErrInvalidRoomSpec)
	}

	switch spec.RoomType {
	case models.RoomTypeOfficial:
		if spec.Duration != nil {
			return fmt.Errorf("%w: official rooms have no lifetime", models.ErrInvalidRoomSpec)
		}
	case models.RoomTypeUser:
		if spec.Duration == nil || !containsDuration(config.AllowedLifetimes, *spec.Duration) {
			return fmt.Errorf("%w: lifetime not allowed", models.ErrInvalidRoomSpec)
		}
		if spec.CreatedByUserID == "" {
			return fmt.Errorf("%w: user-created room needs a creator", models.ErrInvalidRoomSpec)
		}
	default:
		return fmt.Errorf("%w: unknown room type %q", models.ErrInvalidRoomSpec, spec.RoomType)
	}
	return nil
}

// CreateRoom validates the spec and creates the room. A user-created room
// gets its immutable expiresAt and its creator as the first, admin-role
// membership; official rooms start empty and never expire.
func (r *Registry) CreateRoom(spec CreateSpec) (*models.Room, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	now := r.now()
	room := &models.Room{
		Name:               strings.TrimSpace(spec.Name),
		Description:        spec.Description,
		Category:           spec.Category,
		RoomType:           spec.RoomType,
		ResetIntervalHours: spec.ResetIntervalHours,
		NextResetAt:        now.Add(time.Duration(spec.ResetIntervalHours) * time.Hour),
		MaxParticipants:    spec.MaxParticipants,
		Tags:               spec.Tags,
	}
	if spec.RoomType == models.RoomTypeUser {
		expires := now.Add(*spec.Duration)
		room.ExpiresAt = &expires
		creator := spec.CreatedByUserID
		room.CreatedByUserID = &creator
	}

	if err := r.store.CreateRoom(room); err != nil {
		return nil, err
	}

	if spec.RoomType == models.RoomTypeUser {
		if _, err := r.members.CreateFounder(room.ID, spec.CreatedByUserID); err != nil {
			return nil, err
		}
		reserved, err := r.store.IncrementParticipantsBelowCap(room.ID)
		if err != nil {
			return nil, err
		}
		if !reserved {
			// Cannot happen while every allowed capacity seats the founder,
			// but the counter invariant must not depend on the config set.
			return nil, models.ErrRoomFull
		}
		room.ParticipantCount = 1
	}
	return room, nil
}

// JoinResult is what a successful join hands back to the caller.
type JoinResult struct {
	MemberID    string `json:"membership_id"`
	AnonymousID string `json:"anonymous_id"`
	Nickname    string `json:"nickname,omitempty"`
	Role        string `json:"role"`
}

// JoinRoom runs the full join path: expiry check, kicked fast path, atomic
// capacity reservation, then membership activation. The counter bump and the
// activation converge: if this call did not end up activating (idempotent
// rejoin, lost race, ban), the reservation is released.
func (r *Registry) JoinRoom(roomID, userID string) (*JoinResult, error) {
	room, err := r.store.GetRoomByID(roomID)
	if err != nil {
		return nil, err
	}
	if room.Expired(r.now()) {
		return nil, models.ErrRoomExpired
	}

	// Fast path for repeat offenders; the membership row is re-checked
	// below either way.
	if kicked, err := r.store.IsKickedCached(roomID, userID); err == nil && kicked {
		return nil, models.ErrPermanentlyBanned
	}

	// A pre-existing record can short-circuit before any seat is reserved:
	// a kicked pair is banned for good, an active one rejoins idempotently
	// without counting twice.
	if existing, err := r.store.FindMember(roomID, userID); err == nil {
		if existing.IsKicked {
			return nil, models.ErrPermanentlyBanned
		}
		if existing.IsActive {
			return &JoinResult{
				MemberID:    existing.ID,
				AnonymousID: existing.AnonymousID,
				Nickname:    existing.Nickname,
				Role:        existing.Role,
			}, nil
		}
	}

	reserved, err := r.store.IncrementParticipantsBelowCap(roomID)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, models.ErrRoomFull
	}

	member, activated, err := r.members.Join(roomID, userID)
	if err != nil || !activated {
		// The seat was reserved but not taken by this call.
		if decErr := r.store.DecrementParticipants(roomID); decErr != nil {
			log.Printf("ERROR: Failed to release capacity for room %s: %v", roomID, decErr)
		}
	}
	if err != nil {
		return nil, err
	}

	return &JoinResult{
		MemberID:    member.ID,
		AnonymousID: member.AnonymousID,
		Nickname:    member.Nickname,
		Role:        member.Role,
	}, nil
}

// LeaveRoom deactivates the caller's membership.
func (r *Registry) LeaveRoom(roomID, userID string) error {
	return r.members.Leave(roomID, userID)
}

// ListRooms pages the room directory.
func (r *Registry) ListRooms(limit int, cursor string) ([]models.Room, string, error) {
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}
	return r.store.ListRooms(limit, cursor)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsDuration(set []time.Duration, v time.Duration) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
