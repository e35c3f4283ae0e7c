// Package moderation implements mute, unmute, and kick, plus the speak gate
// the message path runs through. All moderation is performed by memberships,
// never by users, so moderators stay as anonymous as everyone else.
package moderation

import (
	"log"
	"time"

	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/notices"
)

// Store is the slice of the storage layer moderation needs.
type Store interface {
	GetMemberByID(memberID string) (*models.RoomMember, error)
	SetMute(memberID string, muted bool, until *time.Time) error
	KickMember(memberID, byMemberID string, at time.Time) (bool, error)
	DecrementParticipants(roomID string) error
	MarkKicked(roomID, userID string) error
	PublishEvent(roomID string, ev models.RoomEvent) error
}

// Messenger inserts system announcements for moderation actions.
type Messenger interface {
	System(roomID, content string) (*models.RoomMessage, error)
}

// Service is the moderation engine.
type Service struct {
	store     Store
	messenger Messenger
	notices   *notices.Catalog
	now       func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// AttachMessenger wires the announcement sink. It is set after construction
// because the message service itself gates sends through this service.
func (s *Service) AttachMessenger(messenger Messenger, catalog *notices.Catalog) {
	s.messenger = messenger
	s.notices = catalog
}

// requireAdmin resolves byMemberID and checks it is an active admin of the
// room. Anything short of that is ErrUnauthorized; the caller never learns
// whether the membership exists at all.
func (s *Service) requireAdmin(roomID, byMemberID string) (*models.RoomMember, error) {
	by, err := s.store.GetMemberByID(byMemberID)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	if by.RoomID != roomID || !by.IsActive || by.Role != models.RoleAdmin {
		return nil, models.ErrUnauthorized
	}
	return by, nil
}

// target resolves targetMemberID and checks it belongs to the room.
func (s *Service) target(roomID, targetMemberID string) (*models.RoomMember, error) {
	target, err := s.store.GetMemberByID(targetMemberID)
	if err != nil {
		return nil, err
	}
	if target.RoomID != roomID {
		return nil, models.ErrMemberNotFound
	}
	return target, nil
}

// Mute silences a member. A nil duration is a permanent mute, lifted only by
// an explicit Unmute.
func (s *Service) Mute(roomID, targetMemberID, byMemberID string, duration *time.Duration) error {
	if _, err := s.requireAdmin(roomID, byMemberID); err != nil {
		return err
	}
	target, err := s.target(roomID, targetMemberID)
	if err != nil {
		return err
	}

	var until *time.Time
	if duration != nil {
		t := s.now().Add(*duration)
		until = &t
	}
	return s.store.SetMute(target.ID, true, until)
}

// Unmute lifts a mute, timed or permanent.
func (s *Service) Unmute(roomID, targetMemberID, byMemberID string) error {
	if _, err := s.requireAdmin(roomID, byMemberID); err != nil {
		return err
	}
	target, err := s.target(roomID, targetMemberID)
	if err != nil {
		return err
	}
	return s.store.SetMute(target.ID, false, nil)
}

// CanSpeak reports whether the member may send right now. The check is pure:
// an expired timed mute reads as lifted, but the stored flag is never
// cleared here — every caller applies the same predicate against
// muteExpiresAt, so concurrent readers always agree. The second return is
// the mute deadline when one is set, for the caller's remaining-time hint.
func (s *Service) CanSpeak(memberID string) (bool, *time.Time, error) {
	member, err := s.store.GetMemberByID(memberID)
	if err != nil {
		return false, nil, err
	}
	if !member.MuteActive(s.now()) {
		return true, nil, nil
	}
	return false, member.MuteExpiresAt, nil
}

// Kick permanently removes a member from the room. The transition is
// terminal: the storage guard refuses to unset is_kicked and Join refuses
// kicked pairs forever.
func (s *Service) Kick(roomID, targetMemberID, byMemberID string) error {
	by, err := s.requireAdmin(roomID, byMemberID)
	if err != nil {
		return err
	}
	target, err := s.target(roomID, targetMemberID)
	if err != nil {
		return err
	}
	if target.ID == by.ID {
		return models.ErrUnauthorized
	}

	kicked, err := s.store.KickMember(target.ID, by.ID, s.now())
	if err != nil {
		return err
	}
	if !kicked {
		// Already kicked; nothing left to do.
		return nil
	}

	if target.IsActive {
		if err := s.store.DecrementParticipants(roomID); err != nil {
			return err
		}
	}
	if err := s.store.MarkKicked(roomID, target.UserID); err != nil {
		// Cache only; the membership row already records the kick.
		log.Printf("WARNING: failed to cache kick for room %s: %v", roomID, err)
	}

	s.announce(roomID, notices.MemberKicked, target.AnonymousID)
	return s.store.PublishEvent(roomID, models.RoomEvent{
		Type:        models.EventMemberKicked,
		RoomID:      roomID,
		AnonymousID: target.AnonymousID,
		Nickname:    target.Nickname,
		CreatedAt:   s.now(),
	})
}

func (s *Service) announce(roomID, key string, args ...interface{}) {
	if s.messenger == nil {
		return
	}
	if _, err := s.messenger.System(roomID, s.notices.Render(key, args...)); err != nil {
		log.Printf("ERROR: Failed to insert system message for room %s: %v", roomID, err)
	}
}
