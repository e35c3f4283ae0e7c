package rooms

import (
	"context"
	"fmt"
	"log"
	"time"

	"anonrooms/backend/internal/config"
	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/notices"
)

// SchedulerStore is the slice of the storage layer the scheduler needs.
type SchedulerStore interface {
	RoomsDueForReset(ctx context.Context, at time.Time, limit int) ([]models.Room, error)
	RoomsDueForExpiry(ctx context.Context, at time.Time, limit int) ([]models.Room, error)
	DeleteRoomMessages(ctx context.Context, roomID string) error
	AdvanceNextReset(ctx context.Context, roomID string, next time.Time) error
	DeleteRoomCascade(ctx context.Context, roomID string) error
	ReconcileParticipantCounts(ctx context.Context) error
	PublishEvent(roomID string, ev models.RoomEvent) error
}

const scanBatchSize = 100

// Scheduler is the single background loop that resets and expires rooms.
// One loop scans all rooms by the indexed next_reset_at / expires_at columns
// instead of keeping a timer per room, so resource usage stays flat as the
// room count grows.
type Scheduler struct {
	store   SchedulerStore
	notices *notices.Catalog
	tick    time.Duration
	timeout time.Duration
	now     func() time.Time
}

func NewScheduler(store SchedulerStore, catalog *notices.Catalog) *Scheduler {
	return &Scheduler{
		store:   store,
		notices: catalog,
		tick:    config.SchedulerTick,
		timeout: config.RoomOpTimeout,
		now:     time.Now,
	}
}

// Run drives the scheduler until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Println("Room scheduler started.")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	tickCount := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("Room scheduler stopped.")
			return
		case <-ticker.C:
			tickCount++
			s.Tick(ctx, tickCount%config.ReconcileEveryTick == 0)
		}
	}
}

// Tick runs one scan. A failure on one room is logged and skipped; the room
// stays due and is retried on the next tick. Each room's work runs under its
// own timeout so a pathological room cannot stall the rest of the scan.
func (s *Scheduler) Tick(ctx context.Context, reconcile bool) {
	now := s.now()

	due, err := s.store.RoomsDueForReset(ctx, now, scanBatchSize)
	if err != nil {
		log.Printf("ERROR: Scheduler failed to scan rooms due for reset: %v", err)
	}
	for _, room := range due {
		if err := s.resetRoom(ctx, room, now); err != nil {
			log.Printf("ERROR: Failed to reset room %s: %v", room.ID, err)
		}
	}

	expired, err := s.store.RoomsDueForExpiry(ctx, now, scanBatchSize)
	if err != nil {
		log.Printf("ERROR: Scheduler failed to scan rooms due for expiry: %v", err)
	}
	for _, room := range expired {
		if err := s.expireRoom(ctx, room); err != nil {
			log.Printf("ERROR: Failed to expire room %s: %v", room.ID, err)
		}
	}

	if reconcile {
		if err := s.store.ReconcileParticipantCounts(ctx); err != nil {
			log.Printf("ERROR: Failed to reconcile participant counters: %v", err)
		}
	}
}

// resetRoom wipes the room's messages and advances next_reset_at, leaving
// every membership (role, mute state included) untouched.
func (s *Scheduler) resetRoom(ctx context.Context, room models.Room, now time.Time) error {
	// A non-positive interval would make the catch-up loop below spin
	// forever and wedge the whole scan.
	interval := time.Duration(room.ResetIntervalHours) * time.Hour
	if interval <= 0 {
		return fmt.Errorf("room has a non-positive reset interval (%dh)", room.ResetIntervalHours)
	}

	roomCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.DeleteRoomMessages(roomCtx, room.ID); err != nil {
		return err
	}

	// Step past any missed intervals so a room that was due for days does
	// not reset once per tick until it catches up.
	next := room.NextResetAt
	for !next.After(now) {
		next = next.Add(interval)
	}
	if err := s.store.AdvanceNextReset(roomCtx, room.ID, next); err != nil {
		return err
	}

	if err := s.store.PublishEvent(room.ID, models.RoomEvent{
		Type:      models.EventRoomReset,
		RoomID:    room.ID,
		Content:   s.notices.Render(notices.RoomReset),
		IsSystem:  true,
		CreatedAt: now,
	}); err != nil {
		log.Printf("ERROR: Failed to publish reset event for room %s: %v", room.ID, err)
	}

	log.Printf("INFO: Reset room %s, next reset at %s", room.ID, next.Format(time.RFC3339))
	return nil
}

// expireRoom deletes a user-created room past its lifetime together with
// all its memberships and messages.
func (s *Scheduler) expireRoom(ctx context.Context, room models.Room) error {
	roomCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.DeleteRoomCascade(roomCtx, room.ID); err != nil {
		return err
	}
	log.Printf("INFO: Expired room %s (%s)", room.ID, room.Name)
	return nil
}
