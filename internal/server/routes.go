package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type,X-User-ID",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	// Basic routes
	s.App.Get("/health", s.healthHandler)

	// Clock sync for animation replay
	s.App.Get("/api/time", s.serverTimeHandler)

	// Jackpot routes
	api := s.App.Group("/api/v1/jackpot")

	api.Post("/", s.createGameHandler)
	api.Post("/join", s.joinGameHandler)
	api.Get("/active", s.activeGamesHandler)
	api.Get("/history", s.historyHandler)
	api.Get("/:gameId/players", s.gamePlayersHandler)
	api.Get("/:gameId/animation", s.animationTicketHandler)

	// WebSocket route
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}
