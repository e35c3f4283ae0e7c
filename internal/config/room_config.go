package config

import "time"

const (
	// Room spec validation
	NameMinLen        = 3
	NameMaxLen        = 64
	DescriptionMaxLen = 500
	NicknameMaxLen    = 32
	MaxTags           = 8

	// Presence
	OnlineWindow      = 5 * time.Minute
	HeartbeatInterval = 30 * time.Second

	// Scheduler
	SchedulerTick      = time.Minute
	RoomOpTimeout      = 10 * time.Second
	ReconcileEveryTick = 10

	// Messages
	MaxMessageLen    = 4000
	DefaultPageSize  = 50
	MaxPageSize      = 200
	ModerationNotice = "[message removed by a moderator]"

	// Reports
	AutoMuteWeight = 250
)

// AllowedResetIntervalHours is the set resetIntervalHours must come from.
var AllowedResetIntervalHours = []int{1, 3, 6, 12, 24, 72, 168}

// AllowedLifetimes are the valid durations for user-created rooms.
var AllowedLifetimes = []time.Duration{
	time.Hour,
	6 * time.Hour,
	24 * time.Hour,
	3 * 24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// AllowedCapacities are the valid maxParticipants values; a nil
// maxParticipants means unbounded.
var AllowedCapacities = []int{2, 5, 10, 25, 50, 100, 500}

// Categories a room may be filed under.
var Categories = []string{
	"general",
	"support",
	"gaming",
	"music",
	"tech",
	"random",
	"confessions",
}

// ReportWeights maps a report reason to its severity score. A member whose
// open-report weight in one room reaches AutoMuteWeight is muted
// indefinitely pending admin review.
var ReportWeights = map[string]int{
	"spam":       5,
	"offensive":  50,
	"harassment": 100,
	"illegal":    250,
}
