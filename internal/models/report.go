package models

import "gorm.io/gorm"

// Report statuses.
const (
	ReportStatusOpen     = "open"
	ReportStatusResolved = "resolved"
)

// Report is a member's complaint about a message in the same room. Both the
// reporter and the target are referenced by membership so that resolving a
// report never requires deanonymizing anyone.
type Report struct {
	gorm.Model

	RoomID           string `gorm:"type:uuid;not null;index"`
	MessageID        uint   `gorm:"not null;index"`
	ReporterMemberID string `gorm:"type:text;not null"`
	TargetMemberID   string `gorm:"type:text;not null;index"`
	Reason           string `gorm:"type:text;not null"`
	// Weight is the severity score resolved from the reason at filing time.
	Weight int    `gorm:"not null"`
	Status string `gorm:"type:text;not null;default:open"`
}
