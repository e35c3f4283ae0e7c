package models

import (
	"errors"
	"fmt"
	"time"
)

// Caller-facing error taxonomy. All of these are synchronous and
// non-retryable as-is: the caller has to change its input (or wait out a
// mute) before trying again.
var (
	ErrInvalidRoomSpec   = errors.New("invalid room spec")
	ErrRoomFull          = errors.New("room is full")
	ErrRoomExpired       = errors.New("room has expired")
	ErrRoomNotFound      = errors.New("room not found")
	ErrPermanentlyBanned = errors.New("permanently banned from this room")
	ErrNotAMember        = errors.New("not an active member of this room")
	ErrUnauthorized      = errors.New("membership lacks the required role")
	ErrInvalidReply      = errors.New("reply target is not a message in this room")
	ErrMemberNotFound    = errors.New("membership not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrReportNotFound    = errors.New("report not found")
	ErrInvalidNickname   = errors.New("invalid nickname")
	ErrInvalidMessage    = errors.New("invalid message content")
	ErrInvalidReason     = errors.New("unknown report reason")
	ErrAlreadyReported   = errors.New("message already reported by this member")
)

// MutedError is returned on Send while a mute is in force. Until is nil for
// an indefinite mute.
type MutedError struct {
	Until *time.Time
}

func (e *MutedError) Error() string {
	if e.Until == nil {
		return "muted indefinitely"
	}
	return fmt.Sprintf("muted until %s", e.Until.Format(time.RFC3339))
}

// Remaining returns the time left on the mute at the given instant, or nil
// for an indefinite mute.
func (e *MutedError) Remaining(at time.Time) *time.Duration {
	if e.Until == nil {
		return nil
	}
	d := e.Until.Sub(at)
	if d < 0 {
		d = 0
	}
	return &d
}
