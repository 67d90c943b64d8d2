package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"jackpot/internal/game"
)

// Health handler
func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.gameHub.GetClientCount(),
		},
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	} else {
		health["cache"] = fiber.Map{"status": "disabled"}
	}
	return c.JSON(health)
}

// serverTimeHandler exposes the server clock in epoch milliseconds. Clients
// compute their clock offset from it before replaying the spin animation.
func (s *FiberServer) serverTimeHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"server_time": time.Now().UnixMilli(),
	})
}

// Jackpot game handlers

func (s *FiberServer) createGameHandler(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	var req game.CreateRoundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.UserID = userID

	resp, err := s.gameManager.CreateRound(c.Context(), req)
	if err != nil {
		if errors.Is(err, game.ErrInvalidTimeLimit) {
			return c.Status(400).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("[SERVER] Create game failed for user %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to create game",
		})
	}

	if resp.Created {
		return c.Status(201).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) joinGameHandler(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	var req game.JoinRoundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.UserID = userID

	if req.RoundID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Game ID is required",
		})
	}

	resp, err := s.gameManager.JoinRound(c.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrRoundNotFound):
			return c.Status(404).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, game.ErrInvalidWager), errors.Is(err, game.ErrAlreadyJoined):
			return c.Status(400).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("[SERVER] Join game failed for user %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to join game",
		})
	}

	return c.JSON(resp)
}

func (s *FiberServer) activeGamesHandler(c *fiber.Ctx) error {
	rounds, err := s.gameManager.ActiveRounds(c.Context())
	if err != nil {
		log.Printf("[SERVER] Active games query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to fetch active games",
		})
	}
	return c.JSON(fiber.Map{
		"games": rounds,
	})
}

func (s *FiberServer) historyHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", game.HistoryLimit)

	entries, err := s.gameManager.History(c.Context(), limit)
	if err != nil {
		log.Printf("[SERVER] History query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to fetch game history",
		})
	}
	return c.JSON(fiber.Map{
		"history": entries,
	})
}

func (s *FiberServer) gamePlayersHandler(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if gameID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Game ID is required",
		})
	}

	players, totalPot, err := s.gameManager.RoundPlayers(c.Context(), gameID)
	if err != nil {
		if errors.Is(err, game.ErrRoundNotFound) {
			return c.Status(404).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		log.Printf("[SERVER] Players query failed for game %s: %v", gameID, err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to fetch players",
		})
	}

	return c.JSON(fiber.Map{
		"game_id":   gameID,
		"total_pot": totalPot,
		"players":   players,
	})
}

// animationTicketHandler is the polling fallback for clients that missed the
// animation_started broadcast.
func (s *FiberServer) animationTicketHandler(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	if gameID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Game ID is required",
		})
	}

	ticket := s.gameManager.CachedTicket(c.Context(), gameID)
	if ticket == nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "No animation for this game",
		})
	}
	return c.JSON(ticket)
}

func requestUserID(c *fiber.Ctx) string {
	if id := c.Get("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}

// WebSocket handler

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "anonymous")

	log.Printf("[WS] New connection from user: %s", userID)

	s.gameHub.RegisterClient(conn, userID)

	currentRound := s.gameManager.CurrentRound(context.Background())
	if currentRound != nil {
		stateJSON, _ := json.Marshal(game.WSMessage{
			Type: "initial_state",
			Data: currentRound,
		})
		conn.WriteMessage(websocket.TextMessage, stateJSON)
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for user %s: %v", userID, err)
			s.gameHub.UnregisterClient(conn)
			break
		}

		if messageType == websocket.TextMessage {
			var clientMsg map[string]interface{}
			if err := json.Unmarshal(message, &clientMsg); err != nil {
				continue
			}

			msgType, ok := clientMsg["type"].(string)
			if !ok {
				continue
			}

			switch msgType {
			case "join_room":
				roomID := fmt.Sprintf("%v", clientMsg["game_id"])
				if roomID == "" || roomID == "<nil>" {
					continue
				}
				s.gameHub.JoinRoom(conn, roomID)

				ackJSON, _ := json.Marshal(game.WSMessage{
					Type: "room_joined",
					Data: fiber.Map{"game_id": roomID},
				})
				conn.WriteMessage(websocket.TextMessage, ackJSON)

			case "ping":
				pongJSON, _ := json.Marshal(map[string]string{"type": "pong"})
				conn.WriteMessage(websocket.TextMessage, pongJSON)
			}
		}
	}
}
