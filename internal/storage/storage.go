package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"anonrooms/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the full persistence contract. Services depend on narrow
// subsets of it; *Service implements all of it over PostgreSQL and Redis.
type Storage interface {
	CreateRoom(room *models.Room) error
	GetRoomByID(roomID string) (*models.Room, error)
	ListRooms(limit int, cursor string) ([]models.Room, string, error)
	IncrementParticipantsBelowCap(roomID string) (bool, error)
	DecrementParticipants(roomID string) error
	AdvanceNextReset(ctx context.Context, roomID string, next time.Time) error
	RoomsDueForReset(ctx context.Context, at time.Time, limit int) ([]models.Room, error)
	RoomsDueForExpiry(ctx context.Context, at time.Time, limit int) ([]models.Room, error)
	DeleteRoomCascade(ctx context.Context, roomID string) error
	ReconcileParticipantCounts(ctx context.Context) error

	EnsureMember(member *models.RoomMember) error
	FindMember(roomID, userID string) (*models.RoomMember, error)
	GetMemberByID(memberID string) (*models.RoomMember, error)
	ActivateMember(roomID, userID, anonID string, at time.Time) (bool, error)
	DeactivateMember(memberID string) (bool, error)
	TouchMember(memberID string, at time.Time) error
	SetNickname(memberID, nickname string) error
	SetMute(memberID string, muted bool, until *time.Time) error
	KickMember(memberID, byMemberID string, at time.Time) (bool, error)
	ListMembers(roomID string, includeInactive bool) ([]models.RoomMember, error)

	SaveMessage(msg *models.RoomMessage) error
	GetMessageByID(id uint) (*models.RoomMessage, error)
	ListMessages(roomID string, limit int, cursor string) ([]models.RoomMessage, string, error)
	MaskMessage(id uint, notice string) error
	DeleteRoomMessages(ctx context.Context, roomID string) error

	SaveReport(report *models.Report) error
	OpenReportWeight(targetMemberID string) (int, error)
	HasOpenReport(messageID uint, reporterMemberID string) (bool, error)
	ListOpenReports(limit int) ([]models.Report, error)
	ResolveReport(id uint) error

	PublishEvent(roomID string, ev models.RoomEvent) error
	SubscribeEvents() *redis.PubSub
	MarkKicked(roomID, userID string) error
	IsKickedCached(roomID, userID string) (bool, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// ---- Rooms ----

func (s *Service) CreateRoom(room *models.Room) error {
	return s.DB.Create(room).Error
}

func (s *Service) GetRoomByID(roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrRoomNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		return nil, err
	}
	return &room, nil
}

// ListRooms pages rooms newest-first with a keyset cursor on (created_at, id).
func (s *Service) ListRooms(limit int, cursorStr string) ([]models.Room, string, error) {
	cur, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	q := s.DB.Order("created_at DESC, id DESC").Limit(limit)
	if cur != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cur.CreatedAt, cur.CreatedAt, cur.ID)
	}

	var rooms []models.Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, "", err
	}

	var next string
	if len(rooms) == limit {
		last := rooms[len(rooms)-1]
		next, _ = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rooms, next, nil
}

// IncrementParticipantsBelowCap bumps the participant counter only while it
// is still below the cap, in a single statement. Two concurrent joins can
// therefore never overshoot maxParticipants. Returns false when the room is
// at capacity (or missing).
func (s *Service) IncrementParticipantsBelowCap(roomID string) (bool, error) {
	res := s.DB.Model(&models.Room{}).
		Where("id = ?", roomID).
		Where("max_participants IS NULL OR participant_count < max_participants").
		UpdateColumn("participant_count", gorm.Expr("participant_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) DecrementParticipants(roomID string) error {
	return s.DB.Model(&models.Room{}).
		Where("id = ?", roomID).
		UpdateColumn("participant_count", gorm.Expr("GREATEST(participant_count - 1, 0)")).Error
}

func (s *Service) AdvanceNextReset(ctx context.Context, roomID string, next time.Time) error {
	return s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", roomID).
		UpdateColumn("next_reset_at", next).Error
}

func (s *Service) RoomsDueForReset(ctx context.Context, at time.Time, limit int) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Where("next_reset_at <= ?", at).
		Order("next_reset_at ASC").
		Limit(limit).
		Find(&rooms).Error
	return rooms, err
}

func (s *Service) RoomsDueForExpiry(ctx context.Context, at time.Time, limit int) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", at).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rooms).Error
	return rooms, err
}

// DeleteRoomCascade removes an expired room together with its reports,
// messages, and memberships in one transaction.
func (s *Service) DeleteRoomCascade(ctx context.Context, roomID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("room_id = ?", roomID).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("room_id = ?", roomID).Delete(&models.RoomMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&models.Room{}).Error
	})
}

// ReconcileParticipantCounts repairs counter drift against the true number
// of active memberships. Drift can only come from crash windows; the atomic
// conditional increment remains the primary capacity defense.
func (s *Service) ReconcileParticipantCounts(ctx context.Context) error {
	return s.DB.WithContext(ctx).Exec(`
		UPDATE rooms SET participant_count = sub.cnt
		FROM (
			SELECT r.id, COUNT(m.id) FILTER (WHERE m.is_active) AS cnt
			FROM rooms r
			LEFT JOIN room_members m ON m.room_id = r.id
			GROUP BY r.id
		) AS sub
		WHERE rooms.id = sub.id AND rooms.participant_count <> sub.cnt
	`).Error
}

// ---- Members ----

// EnsureMember inserts the (room, user) row if the pair has never joined
// before. The unique index on (room_id, user_id) plus ON CONFLICT DO NOTHING
// makes concurrent first joins converge on exactly one record.
func (s *Service) EnsureMember(member *models.RoomMember) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(member).Error
}

func (s *Service) FindMember(roomID, userID string) (*models.RoomMember, error) {
	var member models.RoomMember
	err := s.DB.Where("room_id = ? AND user_id = ?", roomID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *Service) GetMemberByID(memberID string) (*models.RoomMember, error) {
	var member models.RoomMember
	err := s.DB.Where("id = ?", memberID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// ActivateMember flips an inactive, unkicked membership to active and
// rotates its anonymous identity, all in one conditional update. Returns
// false when no row matched: the member is already active, kicked, or
// missing — the caller re-reads to tell those apart.
func (s *Service) ActivateMember(roomID, userID, anonID string, at time.Time) (bool, error) {
	res := s.DB.Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ? AND is_active = ? AND is_kicked = ?", roomID, userID, false, false).
		Updates(map[string]interface{}{
			"anonymous_id":   anonID,
			"is_active":      true,
			"last_active_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) DeactivateMember(memberID string) (bool, error) {
	res := s.DB.Model(&models.RoomMember{}).
		Where("id = ? AND is_active = ?", memberID, true).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) TouchMember(memberID string, at time.Time) error {
	res := s.DB.Model(&models.RoomMember{}).
		Where("id = ? AND is_active = ?", memberID, true).
		UpdateColumn("last_active_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotAMember
	}
	return nil
}

func (s *Service) SetNickname(memberID, nickname string) error {
	res := s.DB.Model(&models.RoomMember{}).
		Where("id = ? AND is_active = ?", memberID, true).
		UpdateColumn("nickname", nickname)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotAMember
	}
	return nil
}

func (s *Service) SetMute(memberID string, muted bool, until *time.Time) error {
	return s.DB.Model(&models.RoomMember{}).
		Where("id = ?", memberID).
		Updates(map[string]interface{}{
			"is_muted":        muted,
			"mute_expires_at": until,
		}).Error
}

// KickMember marks a membership kicked and inactive. The is_kicked guard
// makes the transition one-way; a second kick of the same member is a no-op.
func (s *Service) KickMember(memberID, byMemberID string, at time.Time) (bool, error) {
	res := s.DB.Model(&models.RoomMember{}).
		Where("id = ? AND is_kicked = ?", memberID, false).
		Updates(map[string]interface{}{
			"is_kicked":           true,
			"is_active":           false,
			"kicked_at":           at,
			"kicked_by_member_id": byMemberID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListMembers returns a room's roster. Inactive and kicked records are
// excluded unless includeInactive is set; there is deliberately no implicit
// global filter, callers state what they want.
func (s *Service) ListMembers(roomID string, includeInactive bool) ([]models.RoomMember, error) {
	q := s.DB.Where("room_id = ?", roomID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var members []models.RoomMember
	if err := q.Order("joined_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ---- Messages ----

func (s *Service) SaveMessage(msg *models.RoomMessage) error {
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return err
	}
	return nil
}

func (s *Service) GetMessageByID(id uint) (*models.RoomMessage, error) {
	var msg models.RoomMessage
	err := s.DB.First(&msg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages pages a room's messages oldest-first with a keyset cursor on
// (created_at, id), which stays stable under concurrent appends.
func (s *Service) ListMessages(roomID string, limit int, cursorStr string) ([]models.RoomMessage, string, error) {
	cur, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	q := s.DB.Where("room_id = ?", roomID).Order("created_at ASC, id ASC").Limit(limit)
	if cur != nil {
		curID, err := parseMessageCursorID(cur.ID)
		if err != nil {
			return nil, "", err
		}
		q = q.Where("created_at > ? OR (created_at = ? AND id > ?)", cur.CreatedAt, cur.CreatedAt, curID)
	}

	var msgs []models.RoomMessage
	if err := q.Find(&msgs).Error; err != nil {
		return nil, "", err
	}

	var next string
	if len(msgs) == limit {
		last := msgs[len(msgs)-1]
		next, _ = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: messageCursorID(last.ID)})
	}
	return msgs, next, nil
}

// MaskMessage overwrites the content with the moderation notice in a single
// update. The original text is gone once this commits.
func (s *Service) MaskMessage(id uint, notice string) error {
	res := s.DB.Model(&models.RoomMessage{}).
		Where("id = ? AND is_admin_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_admin_deleted": true,
			"content":          notice,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}

// DeleteRoomMessages wipes a room's messages for a periodic reset.
// Memberships are untouched.
func (s *Service) DeleteRoomMessages(ctx context.Context, roomID string) error {
	return s.DB.WithContext(ctx).Unscoped().
		Where("room_id = ?", roomID).
		Delete(&models.RoomMessage{}).Error
}

// ---- Reports ----

func (s *Service) SaveReport(report *models.Report) error {
	if report.Status == "" {
		report.Status = models.ReportStatusOpen
	}
	if err := s.DB.Create(report).Error; err != nil {
		log.Printf("ERROR: Failed to save report for room %s: %v", report.RoomID, err)
		return err
	}
	return nil
}

func (s *Service) OpenReportWeight(targetMemberID string) (int, error) {
	var total int
	err := s.DB.Model(&models.Report{}).
		Where("target_member_id = ? AND status = ?", targetMemberID, models.ReportStatusOpen).
		Select("COALESCE(SUM(weight), 0)").
		Scan(&total).Error
	return total, err
}

func (s *Service) HasOpenReport(messageID uint, reporterMemberID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Report{}).
		Where("message_id = ? AND reporter_member_id = ? AND status = ?",
			messageID, reporterMemberID, models.ReportStatusOpen).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) ListOpenReports(limit int) ([]models.Report, error) {
	var reports []models.Report
	err := s.DB.Where("status = ?", models.ReportStatusOpen).
		Order("created_at ASC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}

func (s *Service) ResolveReport(id uint) error {
	res := s.DB.Model(&models.Report{}).
		Where("id = ? AND status = ?", id, models.ReportStatusOpen).
		UpdateColumn("status", models.ReportStatusResolved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrReportNotFound
	}
	return nil
}

// ---- Redis ----

const eventChannelPrefix = "room:"

// PublishEvent fans a room event out over Redis Pub/Sub so every instance's
// hub sees it.
func (s *Service) PublishEvent(roomID string, ev models.RoomEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, eventChannelPrefix+roomID, string(payload)).Err()
}

func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, eventChannelPrefix+"*")
}

// MarkKicked caches a kick so repeated rejoin attempts are rejected without
// touching PostgreSQL. The database row stays the source of truth.
func (s *Service) MarkKicked(roomID, userID string) error {
	key := "kicked:" + roomID + ":" + userID
	return s.Redis.Set(s.Ctx, key, "1", 0).Err()
}

func (s *Service) IsKickedCached(roomID, userID string) (bool, error) {
	key := "kicked:" + roomID + ":" + userID
	status, err := s.Redis.Get(s.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}
