// Package membership owns the per-room membership record and its state
// machine: first join, leave, rejoin with identity rotation, heartbeat, and
// the terminal kicked state. A (room, user) pair only ever has one record.
package membership

import (
	"errors"
	"log"
	"strings"
	"time"

	"anonrooms/backend/internal/config"
	"anonrooms/backend/internal/identity"
	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/notices"
)

// Store is the slice of the storage layer membership needs.
type Store interface {
	FindMember(roomID, userID string) (*models.RoomMember, error)
	GetMemberByID(memberID string) (*models.RoomMember, error)
	EnsureMember(member *models.RoomMember) error
	ActivateMember(roomID, userID, anonID string, at time.Time) (bool, error)
	DeactivateMember(memberID string) (bool, error)
	TouchMember(memberID string, at time.Time) error
	SetNickname(memberID, nickname string) error
	DecrementParticipants(roomID string) error
	MarkKicked(roomID, userID string) error
	ListMembers(roomID string, includeInactive bool) ([]models.RoomMember, error)
	PublishEvent(roomID string, ev models.RoomEvent) error
}

// Messenger inserts system announcements for membership changes.
type Messenger interface {
	System(roomID, content string) (*models.RoomMessage, error)
}

// Service is the membership manager.
type Service struct {
	store     Store
	issuer    *identity.Issuer
	messenger Messenger
	notices   *notices.Catalog
	now       func() time.Time
}

func NewService(store Store, issuer *identity.Issuer, messenger Messenger, catalog *notices.Catalog) *Service {
	return &Service{
		store:     store,
		issuer:    issuer,
		messenger: messenger,
		notices:   catalog,
		now:       time.Now,
	}
}

// MemberView is the roster entry surfaced to other members. The membership
// id is itself opaque; the underlying user id never appears.
type MemberView struct {
	MemberID    string `json:"membership_id"`
	AnonymousID string `json:"anonymous_id"`
	Nickname    string `json:"nickname,omitempty"`
	Role        string `json:"role"`
	Online      bool   `json:"online"`
}

// Join creates or reactivates the membership for (roomID, userID). On every
// inactive-to-active edge the anonymous identity rotates, so sessions across
// a leave/rejoin boundary cannot be linked. Joining while already active is
// idempotent and keeps the current identity.
//
// The second return reports whether this call performed the activation; the
// caller (RoomRegistry) uses it to reconcile the capacity counter it bumped.
func (s *Service) Join(roomID, userID string) (*models.RoomMember, bool, error) {
	now := s.now()

	// Insert the pair's single record if it never existed. ON CONFLICT
	// DO NOTHING keeps concurrent first joins down to one row.
	placeholder := &models.RoomMember{
		RoomID:       roomID,
		UserID:       userID,
		AnonymousID:  s.issuer.New(),
		Role:         models.RoleUser,
		JoinedAt:     now,
		LastActiveAt: now,
		IsActive:     false,
	}
	if err := s.store.EnsureMember(placeholder); err != nil {
		return nil, false, err
	}

	activated, err := s.store.ActivateMember(roomID, userID, s.issuer.New(), now)
	if err != nil {
		return nil, false, err
	}

	member, err := s.store.FindMember(roomID, userID)
	if err != nil {
		return nil, false, err
	}

	if !activated {
		if member.IsKicked {
			// Terminal: a kicked pair can never become active again.
			if err := s.store.MarkKicked(roomID, userID); err != nil {
				log.Printf("WARNING: failed to cache kick for room %s: %v", roomID, err)
			}
			return nil, false, models.ErrPermanentlyBanned
		}
		if member.IsActive {
			// Lost the activation race, or a repeat join: same single
			// membership, identity unchanged.
			return member, false, nil
		}
		return nil, false, models.ErrMemberNotFound
	}

	s.announce(roomID, notices.MemberJoined, member.AnonymousID)
	if err := s.store.PublishEvent(roomID, models.RoomEvent{
		Type:        models.EventMemberJoined,
		RoomID:      roomID,
		AnonymousID: member.AnonymousID,
		Nickname:    member.Nickname,
		CreatedAt:   now,
	}); err != nil {
		log.Printf("ERROR: Failed to publish join event for room %s: %v", roomID, err)
	}
	return member, true, nil
}

// Leave deactivates the membership. Mute state persists across the leave;
// kicked state was already terminal. Leaving twice is a no-op.
func (s *Service) Leave(roomID, userID string) error {
	member, err := s.store.FindMember(roomID, userID)
	if err != nil {
		if errors.Is(err, models.ErrMemberNotFound) {
			return nil
		}
		return err
	}

	deactivated, err := s.store.DeactivateMember(member.ID)
	if err != nil {
		return err
	}
	if !deactivated {
		return nil
	}

	if err := s.store.DecrementParticipants(roomID); err != nil {
		return err
	}

	s.announce(roomID, notices.MemberLeft, member.AnonymousID)
	if err := s.store.PublishEvent(roomID, models.RoomEvent{
		Type:        models.EventMemberLeft,
		RoomID:      roomID,
		AnonymousID: member.AnonymousID,
		Nickname:    member.Nickname,
		CreatedAt:   s.now(),
	}); err != nil {
		log.Printf("ERROR: Failed to publish leave event for room %s: %v", roomID, err)
	}
	return nil
}

// CreateFounder seeds a brand-new room with its creator as an active admin
// membership. The room is not visible to anyone else yet, so no racing join
// can exist.
func (s *Service) CreateFounder(roomID, userID string) (*models.RoomMember, error) {
	now := s.now()
	founder := &models.RoomMember{
		RoomID:       roomID,
		UserID:       userID,
		AnonymousID:  s.issuer.New(),
		Role:         models.RoleAdmin,
		JoinedAt:     now,
		LastActiveAt: now,
		IsActive:     true,
	}
	if err := s.store.EnsureMember(founder); err != nil {
		return nil, err
	}
	return founder, nil
}

// Member resolves the membership record for a (room, user) pair.
func (s *Service) Member(roomID, userID string) (*models.RoomMember, error) {
	return s.store.FindMember(roomID, userID)
}

// Heartbeat refreshes lastActiveAt for the online computation. Only active
// memberships can heartbeat.
func (s *Service) Heartbeat(memberID string) error {
	return s.store.TouchMember(memberID, s.now())
}

// SetNickname sets the optional room-scoped display name.
func (s *Service) SetNickname(roomID, userID, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if len(nickname) > config.NicknameMaxLen {
		return models.ErrInvalidNickname
	}
	member, err := s.store.FindMember(roomID, userID)
	if err != nil {
		return models.ErrNotAMember
	}
	return s.store.SetNickname(member.ID, nickname)
}

// ListMembers returns the active roster with the derived online flag:
// active AND a heartbeat within the online window. Online is computed here
// at read time and never stored.
func (s *Service) ListMembers(roomID string) ([]MemberView, error) {
	members, err := s.store.ListMembers(roomID, false)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, MemberView{
			MemberID:    m.ID,
			AnonymousID: m.AnonymousID,
			Nickname:    m.Nickname,
			Role:        m.Role,
			Online:      m.Online(now, config.OnlineWindow),
		})
	}
	return views, nil
}

// ListMembersAdmin returns the full roster including inactive and kicked
// records. This is the explicit admin view; the member-facing roster never
// includes them.
func (s *Service) ListMembersAdmin(roomID string) ([]models.RoomMember, error) {
	return s.store.ListMembers(roomID, true)
}

func (s *Service) announce(roomID, key string, args ...interface{}) {
	if s.messenger == nil {
		return
	}
	if _, err := s.messenger.System(roomID, s.notices.Render(key, args...)); err != nil {
		log.Printf("ERROR: Failed to insert system message for room %s: %v", roomID, err)
	}
}
