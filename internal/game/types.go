package game

import (
	"context"
	"time"
)

// Round status values. A round is created open, moves to in_progress on the
// first contribution and is finished exactly once by the closure routine.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

type Round struct {
	ID                 string     `json:"id"`
	CreatorID          string     `json:"creator_id"`
	Status             string     `json:"status"`
	TimeLimit          int        `json:"time_limit"` // seconds
	TotalPot           int64      `json:"total_pot"`
	Result             string     `json:"result,omitempty"` // winner user id, set once
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	AnimationStartTime *time.Time `json:"animation_start_time,omitempty"`
}

// Active reports whether the round still accepts contributions.
func (r *Round) Active() bool {
	return r.Status == StatusOpen || r.Status == StatusInProgress
}

// EndTime is the instant the closure timer fires: started_at + time_limit.
// Only meaningful once the round is in progress.
func (r *Round) EndTime() time.Time {
	if r.StartedAt == nil {
		return time.Time{}
	}
	return r.StartedAt.Add(time.Duration(r.TimeLimit) * time.Second)
}

type Contribution struct {
	RoundID     string    `json:"round_id"`
	UserID      string    `json:"user_id"`
	WagerAmount int64     `json:"wager_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// Entry is one (participant, wager) pair fed to the lottery and tape builder.
type Entry struct {
	UserID      string `json:"user_id"`
	WagerAmount int64  `json:"wager_amount"`
}

// Player is a contribution joined with its share of the pot, as returned to
// callers and broadcast to rooms.
type Player struct {
	UserID          string    `json:"user_id"`
	WagerAmount     int64     `json:"wager_amount"`
	JoinedAt        time.Time `json:"joined_at"`
	PercentageOfPot string    `json:"percentage_of_pot"`
}

// AnimationTicket is the contract broadcast to every client after a round
// finishes. Clients rebuild the tape from the seed alone; the shuffled tape
// itself is never transmitted.
type AnimationTicket struct {
	RoundID            string    `json:"game_id"`
	WinnerID           string    `json:"winner_id"`
	Seed               uint32    `json:"seed"`
	WinnerIndex        int       `json:"winner_index"`
	TargetOffset       float64   `json:"target_offset"`
	AnimationStartTime time.Time `json:"animation_start_time"`
}

type CreateRoundRequest struct {
	UserID    string `json:"-"`
	TimeLimit int    `json:"time_limit"`
}

type CreateRoundResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Round   *Round `json:"game,omitempty"`
	Created bool   `json:"created"`
}

type JoinRoundRequest struct {
	UserID      string `json:"-"`
	RoundID     string `json:"game_id"`
	WagerAmount int64  `json:"wager_amount"`
}

type JoinRoundResponse struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	Round        *Round        `json:"updated_game,omitempty"`
	Contribution *Contribution `json:"contribution,omitempty"`
}

// HistoryEntry is one finished round with the winner's pot share.
type HistoryEntry struct {
	RoundID          string     `json:"game_id"`
	TotalPot         int64      `json:"total_pot"`
	WinnerID         string     `json:"winner_id"`
	WinnerPercentage string     `json:"winner_percentage"`
	FinishedAt       *time.Time `json:"finished_at"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Event names carried in WSMessage.Type. timer_update and the finish events go
// to the global channel; player_joined is scoped to the round's room.
const (
	EventRoundCreated     = "round_created"
	EventGameStarted      = "game_started"
	EventPlayerJoined     = "player_joined"
	EventTimerUpdate      = "timer_update"
	EventJackpotUpdate    = "jackpot_update"
	EventAnimationStarted = "animation_started"
)

type TimerUpdate struct {
	RoundID  string `json:"game_id"`
	TimeLeft int    `json:"time_left"`
}

type JackpotUpdate struct {
	RoundID  string `json:"game_id"`
	Status   string `json:"status"`
	WinnerID string `json:"winner_id,omitempty"`
	Message  string `json:"message"`
}

type PlayerJoined struct {
	RoundID  string   `json:"game_id"`
	TotalPot int64    `json:"total_pot"`
	Players  []Player `json:"players"`
}

// Store is the persistent-storage collaborator. Rounds and contributions are
// externally durable rows the manager reads and requests mutations on.
type Store interface {
	CreateRound(ctx context.Context, creatorID string, timeLimit int) (*Round, error)
	GetRound(ctx context.Context, roundID string) (*Round, error)
	ActiveRounds(ctx context.Context) ([]*Round, error)
	FinishedRounds(ctx context.Context, limit int) ([]*Round, error)

	// StartRound records the open -> in_progress transition caused by the
	// first contribution: status, started_at and the opening pot.
	StartRound(ctx context.Context, roundID string, startedAt time.Time, pot int64) (*Round, error)
	AddToPot(ctx context.Context, roundID string, amount int64) (*Round, error)
	FinishRound(ctx context.Context, roundID, winnerID string, finishedAt time.Time) error
	SetAnimationStartTime(ctx context.Context, roundID string, startTime time.Time) error

	InsertContribution(ctx context.Context, c *Contribution) error
	ContributionsByRound(ctx context.Context, roundID string) ([]*Contribution, error)
	HasContribution(ctx context.Context, roundID, userID string) (bool, error)
	ContributionCount(ctx context.Context, roundID string) (int, error)
	WinnerContribution(ctx context.Context, roundID, userID string) (*Contribution, error)
}

// Broadcaster is the realtime transport consumed by the manager: a global
// channel plus one addressable room per round.
type Broadcaster interface {
	Broadcast(message interface{})
	BroadcastToRoom(roomID string, message interface{})
}
