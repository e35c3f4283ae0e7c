package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"anonrooms/backend/internal/api/handler"
	"anonrooms/backend/internal/identity"
	"anonrooms/backend/internal/membership"
	"anonrooms/backend/internal/messages"
	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/moderation"
	"anonrooms/backend/internal/notices"
	"anonrooms/backend/internal/reports"
	"anonrooms/backend/internal/roomhub"
	"anonrooms/backend/internal/rooms"
	"anonrooms/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies() (*gorm.DB, *redis.Client) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		getenv("DB_HOST", "localhost"),
		getenv("DB_USER", "user"),
		getenv("DB_PASSWORD", "password"),
		getenv("DB_NAME", "anonroomsdb"),
		getenv("DB_PORT", "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     getenv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.Room{},
		&models.RoomMember{},
		&models.RoomMessage{},
		&models.Report{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.Println("Starting anonrooms backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	db, rdb := setupDependencies()
	s := storage.NewStorageService(db, rdb)

	catalog := notices.NewCatalog()
	if path := os.Getenv("NOTICES_FILE"); path != "" {
		if err := catalog.LoadOverrides(path); err != nil {
			log.Printf("Warning: failed to load notices overrides: %v", err)
		}
	}

	issuer := identity.NewIssuer()
	mod := moderation.NewService(s)
	msgs := messages.NewService(s, mod)
	mod.AttachMessenger(msgs, catalog)
	members := membership.NewService(s, issuer, msgs, catalog)
	registry := rooms.NewRegistry(s, members)
	reps := reports.NewService(s)

	hub := roomhub.NewHub(s)
	scheduler := rooms.NewScheduler(s, catalog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub.StartPubSubListener()
	go hub.Run()
	go scheduler.Run(ctx)

	r := gin.Default()
	h := handler.NewHandler(registry, members, msgs, mod, reps, hub, []byte(jwtSecret))
	h.Register(r)

	server := &http.Server{
		Addr:           ":" + getenv("PORT", "8080"),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
