// Package messages appends, lists, and masks room messages. Authorship is
// bound to the membership, never the user, and sends are gated through the
// moderation engine.
package messages

import (
	"log"
	"strings"
	"time"

	"anonrooms/backend/internal/config"
	"anonrooms/backend/internal/models"
)

// Store is the slice of the storage layer the message store needs.
type Store interface {
	GetRoomByID(roomID string) (*models.Room, error)
	GetMemberByID(memberID string) (*models.RoomMember, error)
	SaveMessage(msg *models.RoomMessage) error
	GetMessageByID(id uint) (*models.RoomMessage, error)
	ListMessages(roomID string, limit int, cursor string) ([]models.RoomMessage, string, error)
	MaskMessage(id uint, notice string) error
	PublishEvent(roomID string, ev models.RoomEvent) error
}

// Gate answers whether a membership may send right now.
type Gate interface {
	CanSpeak(memberID string) (bool, *time.Time, error)
}

// Service is the message store.
type Service struct {
	store Store
	gate  Gate
	now   func() time.Time
}

func NewService(store Store, gate Gate) *Service {
	return &Service{store: store, gate: gate, now: time.Now}
}

// View is a message as surfaced to members: the author appears only as
// anonymous id and nickname.
type View struct {
	ID             uint      `json:"id"`
	AnonymousID    string    `json:"anonymous_id,omitempty"`
	Nickname       string    `json:"nickname,omitempty"`
	Content        string    `json:"content"`
	Format         string    `json:"format"`
	ReplyToID      *uint     `json:"reply_to,omitempty"`
	IsSystem       bool      `json:"is_system,omitempty"`
	IsAdminDeleted bool      `json:"is_admin_deleted,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Send appends a member-authored message. The membership must be active in
// the room and allowed to speak; a reply must target a message of the same
// room.
func (s *Service) Send(roomID, memberID, content, format string, replyTo *uint) (*models.RoomMessage, error) {
	room, err := s.store.GetRoomByID(roomID)
	if err != nil {
		return nil, err
	}
	if room.Expired(s.now()) {
		return nil, models.ErrRoomExpired
	}

	member, err := s.store.GetMemberByID(memberID)
	if err != nil {
		return nil, models.ErrNotAMember
	}
	if member.RoomID != roomID || !member.IsActive || member.IsKicked {
		return nil, models.ErrNotAMember
	}

	content = strings.TrimSpace(content)
	if content == "" || len(content) > config.MaxMessageLen {
		return nil, models.ErrInvalidMessage
	}
	if format == "" {
		format = models.FormatPlain
	}
	if format != models.FormatPlain && format != models.FormatMarkdown {
		return nil, models.ErrInvalidMessage
	}

	ok, until, err := s.gate.CanSpeak(memberID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &models.MutedError{Until: until}
	}

	if replyTo != nil {
		parent, err := s.store.GetMessageByID(*replyTo)
		if err != nil || parent.RoomID != roomID {
			return nil, models.ErrInvalidReply
		}
	}

	// The author's identity is frozen into the row here. Reads surface this
	// snapshot, never the membership's current identity: re-resolving would
	// let an observer link a rotated identity to its pre-rotation messages.
	msg := &models.RoomMessage{
		RoomID:         roomID,
		MemberID:       member.ID,
		AuthorAnonID:   member.AnonymousID,
		AuthorNickname: member.Nickname,
		Content:        content,
		Format:         format,
		ReplyToID:      replyTo,
	}
	if err := s.store.SaveMessage(msg); err != nil {
		return nil, err
	}

	s.publish(msg)
	return msg, nil
}

// System appends a system announcement. There is no author membership and
// no speak gate.
func (s *Service) System(roomID, content string) (*models.RoomMessage, error) {
	msg := &models.RoomMessage{
		RoomID:   roomID,
		Content:  content,
		Format:   models.FormatPlain,
		IsSystem: true,
	}
	if err := s.store.SaveMessage(msg); err != nil {
		return nil, err
	}
	s.publish(msg)
	return msg, nil
}

func (s *Service) publish(msg *models.RoomMessage) {
	ev := models.RoomEvent{
		Type:        models.EventMessage,
		RoomID:      msg.RoomID,
		MessageID:   msg.ID,
		AnonymousID: msg.AuthorAnonID,
		Nickname:    msg.AuthorNickname,
		Content:     msg.Content,
		Format:      msg.Format,
		ReplyToID:   msg.ReplyToID,
		IsSystem:    msg.IsSystem,
		CreatedAt:   msg.CreatedAt,
	}
	// Fanout is best-effort; the message is already durable.
	if err := s.store.PublishEvent(msg.RoomID, ev); err != nil {
		log.Printf("ERROR: Failed to publish message event for room %s: %v", msg.RoomID, err)
	}
}

// AdminDelete masks a message with the fixed moderation notice. Irreversible:
// the original content is overwritten in place and retained nowhere.
func (s *Service) AdminDelete(messageID uint, byMemberID string) error {
	msg, err := s.store.GetMessageByID(messageID)
	if err != nil {
		return err
	}
	by, err := s.store.GetMemberByID(byMemberID)
	if err != nil {
		return models.ErrUnauthorized
	}
	if by.RoomID != msg.RoomID || !by.IsActive || by.Role != models.RoleAdmin {
		return models.ErrUnauthorized
	}
	return s.store.MaskMessage(messageID, config.ModerationNotice)
}

// List pages a room's messages oldest-first. Authors are surfaced from the
// send-time identity snapshot; system messages carry no author.
func (s *Service) List(roomID string, limit int, cursor string) ([]View, string, error) {
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}

	msgs, next, err := s.store.ListMessages(roomID, limit, cursor)
	if err != nil {
		return nil, "", err
	}

	views := make([]View, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, View{
			ID:             msg.ID,
			AnonymousID:    msg.AuthorAnonID,
			Nickname:       msg.AuthorNickname,
			Content:        msg.Content,
			Format:         msg.Format,
			ReplyToID:      msg.ReplyToID,
			IsSystem:       msg.IsSystem,
			IsAdminDeleted: msg.IsAdminDeleted,
			CreatedAt:      msg.CreatedAt,
		})
	}
	return views, next, nil
}
