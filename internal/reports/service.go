// Package reports handles member complaints about messages, including the
// automatic indefinite mute once a member's open-report weight crosses the
// review threshold.
package reports

import (
	"time"

	"anonrooms/backend/internal/analysis"
	"anonrooms/backend/internal/config"
	"anonrooms/backend/internal/models"
)

// Store is the slice of the storage layer reports need.
type Store interface {
	GetMemberByID(memberID string) (*models.RoomMember, error)
	GetMessageByID(id uint) (*models.RoomMessage, error)
	SaveReport(report *models.Report) error
	HasOpenReport(messageID uint, reporterMemberID string) (bool, error)
	OpenReportWeight(targetMemberID string) (int, error)
	SetMute(memberID string, muted bool, until *time.Time) error
	ListOpenReports(limit int) ([]models.Report, error)
	ResolveReport(id uint) error
}

// Service handles the business logic for reports.
type Service struct {
	store Store
}

// NewService creates a new report service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Report files a complaint about a message in the reporter's room. Filing
// the same message twice from one membership is rejected. When the target's
// accumulated open-report weight reaches the threshold, the target is muted
// indefinitely pending admin review.
func (s *Service) Report(roomID, byMemberID string, messageID uint, reason string) (*models.Report, error) {
	weight := analysis.GetWeight(reason)
	if weight == 0 {
		return nil, models.ErrInvalidReason
	}

	by, err := s.store.GetMemberByID(byMemberID)
	if err != nil {
		return nil, models.ErrNotAMember
	}
	if by.RoomID != roomID || !by.IsActive {
		return nil, models.ErrNotAMember
	}

	msg, err := s.store.GetMessageByID(messageID)
	if err != nil {
		return nil, err
	}
	if msg.RoomID != roomID || msg.IsSystem || msg.MemberID == "" {
		return nil, models.ErrMessageNotFound
	}

	dup, err := s.store.HasOpenReport(messageID, by.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, models.ErrAlreadyReported
	}

	report := &models.Report{
		RoomID:           roomID,
		MessageID:        messageID,
		ReporterMemberID: by.ID,
		TargetMemberID:   msg.MemberID,
		Reason:           reason,
		Weight:           weight,
	}
	if err := s.store.SaveReport(report); err != nil {
		return nil, err
	}

	if err := s.checkAutoMute(msg.MemberID); err != nil {
		return nil, err
	}
	return report, nil
}

// checkAutoMute mutes the target indefinitely once their open reports weigh
// enough. Only an admin Unmute lifts it.
func (s *Service) checkAutoMute(targetMemberID string) error {
	total, err := s.store.OpenReportWeight(targetMemberID)
	if err != nil {
		return err
	}
	if total < config.AutoMuteWeight {
		return nil
	}

	target, err := s.store.GetMemberByID(targetMemberID)
	if err != nil {
		return err
	}
	if target.IsMuted && target.MuteExpiresAt == nil {
		return nil
	}
	return s.store.SetMute(targetMemberID, true, nil)
}

// ListOpen returns open reports oldest-first for admin review.
func (s *Service) ListOpen(limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	return s.store.ListOpenReports(limit)
}

// Resolve closes a report. The target's mute, automatic or not, is left to
// an explicit moderation decision.
func (s *Service) Resolve(reportID uint) error {
	return s.store.ResolveReport(reportID)
}
