package server

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"jackpot/internal/cache"
	"jackpot/internal/database"
	"jackpot/internal/game"
)

type FiberServer struct {
	*fiber.App

	db          database.Service
	cache       cache.Service
	gameManager *game.Manager
	gameHub     *game.Hub
}

func New() *FiberServer {
	// Initialize database
	db := database.New()

	// Initialize Redis cache; nil means run without snapshot caching
	redisService := cache.New()

	var redisClient *redis.Client
	if redisService != nil {
		redisClient = redisService.GetClient()
	}

	// Initialize game components
	hub := game.NewHub()
	manager := game.NewManager(db, hub, redisClient)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "jackpot",
			AppName:       "jackpot",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:          db,
		cache:       redisService,
		gameManager: manager,
		gameHub:     hub,
	}

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	// Start game components
	go hub.Run()

	// Re-arm closure timers for rounds that were live before a restart
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	manager.RescheduleActive(ctx)

	log.Println("[SERVER] Game manager started")

	return server
}

// Shutdown gracefully shuts down the server and game components
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.gameManager != nil {
		s.gameManager.Stop()
	}

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
