package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"anonrooms/backend/internal/config"
	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	s := storage.NewStorageService(db, nil) // No redis needed for admin CLI
	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create-official":
		if len(os.Args) < 4 {
			fmt.Println("Usage: admin create-official <name> <category> [reset_interval_hours]")
			os.Exit(1)
		}
		interval := 24
		if len(os.Args) > 4 {
			interval, err = strconv.Atoi(os.Args[4])
			if err != nil {
				fmt.Println("Invalid reset interval. Please provide an integer.")
				os.Exit(1)
			}
		}
		if !allowedInterval(interval) {
			fmt.Printf("Reset interval %dh is not allowed. Allowed: %v\n", interval, config.AllowedResetIntervalHours)
			os.Exit(1)
		}
		room, err := createOfficialRoom(s, os.Args[2], os.Args[3], interval)
		if err != nil {
			log.Fatalf("Error creating official room: %v", err)
		}
		fmt.Printf("Official room %s created (id %s).\n", room.Name, room.ID)
	case "reset":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin reset <room_id>")
			os.Exit(1)
		}
		if err := resetRoom(ctx, s, os.Args[2]); err != nil {
			log.Fatalf("Error resetting room: %v", err)
		}
		fmt.Printf("Room %s has been reset.\n", os.Args[2])
	case "expire":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin expire <room_id>")
			os.Exit(1)
		}
		if err := s.DeleteRoomCascade(ctx, os.Args[2]); err != nil {
			log.Fatalf("Error expiring room: %v", err)
		}
		fmt.Printf("Room %s and all its data have been removed.\n", os.Args[2])
	case "reports":
		reports, err := s.ListOpenReports(100)
		if err != nil {
			log.Fatalf("Error listing reports: %v", err)
		}
		for _, r := range reports {
			fmt.Printf("#%d room=%s message=%d target=%s reason=%s weight=%d\n",
				r.ID, r.RoomID, r.MessageID, r.TargetMemberID, r.Reason, r.Weight)
		}
		fmt.Printf("%d open report(s).\n", len(reports))
	case "resolve-report":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin resolve-report <report_id>")
			os.Exit(1)
		}
		id, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Println("Invalid report ID. Please provide an integer.")
			os.Exit(1)
		}
		if err := s.ResolveReport(uint(id)); err != nil {
			log.Fatalf("Error resolving report: %v", err)
		}
		fmt.Printf("Report %d has been resolved.\n", id)
	case "members":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin members <room_id>")
			os.Exit(1)
		}
		members, err := s.ListMembers(os.Args[2], true)
		if err != nil {
			log.Fatalf("Error listing members: %v", err)
		}
		for _, m := range members {
			fmt.Printf("%s anon=%s role=%s active=%t kicked=%t muted=%t\n",
				m.ID, m.AnonymousID, m.Role, m.IsActive, m.IsKicked, m.IsMuted)
		}
		fmt.Printf("%d membership record(s).\n", len(members))
	case "recount":
		if err := s.ReconcileParticipantCounts(ctx); err != nil {
			log.Fatalf("Error reconciling counters: %v", err)
		}
		fmt.Println("Participant counters reconciled.")
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func allowedInterval(hours int) bool {
	for _, h := range config.AllowedResetIntervalHours {
		if h == hours {
			return true
		}
	}
	return false
}

func createOfficialRoom(s *storage.Service, name, category string, resetIntervalHours int) (*models.Room, error) {
	now := time.Now()
	room := &models.Room{
		Name:               name,
		Category:           category,
		RoomType:           models.RoomTypeOfficial,
		ResetIntervalHours: resetIntervalHours,
		NextResetAt:        now.Add(time.Duration(resetIntervalHours) * time.Hour),
	}
	if err := s.CreateRoom(room); err != nil {
		return nil, err
	}
	return room, nil
}

func resetRoom(ctx context.Context, s *storage.Service, roomID string) error {
	room, err := s.GetRoomByID(roomID)
	if err != nil {
		return err
	}
	if err := s.DeleteRoomMessages(ctx, roomID); err != nil {
		return err
	}
	next := time.Now().Add(time.Duration(room.ResetIntervalHours) * time.Hour)
	return s.AdvanceNextReset(ctx, roomID, next)
}
