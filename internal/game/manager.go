package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	HistoryLimit = 10

	RedisKeyRoundPrefix  = "jackpot:round:"
	RedisKeyTicketPrefix = "jackpot:ticket:"
)

var (
	ErrInvalidTimeLimit = errors.New("invalid time limit")
	ErrInvalidWager     = errors.New("invalid wager amount")
	ErrRoundNotFound    = errors.New("game not found or already finished")
	ErrAlreadyJoined    = errors.New("you have already made a bet")
)

// Manager is the jackpot lifecycle state machine. It owns the open ->
// in_progress -> finished progression of the single active round, the
// countdown and closure timers, and the one-shot latch that guarantees at
// most one animation ticket per round.
type Manager struct {
	store       Store
	hub         Broadcaster
	scheduler   *Scheduler
	redisClient *redis.Client
	ctx         context.Context

	mu     sync.Mutex
	closed map[string]bool // per-round closure latch
}

// NewManager wires the state machine to its collaborators. redisClient may be
// nil; snapshot caching is then skipped.
func NewManager(store Store, hub Broadcaster, redisClient *redis.Client) *Manager {
	return &Manager{
		store:       store,
		hub:         hub,
		scheduler:   NewScheduler(),
		redisClient: redisClient,
		ctx:         context.Background(),
		closed:      make(map[string]bool),
	}
}

// Stop cancels all live timers. Persisted rounds survive; RescheduleActive
// re-arms them on the next start.
func (m *Manager) Stop() {
	m.scheduler.Stop()
}

// CreateRound creates a new open round, or returns the existing one when an
// open or in_progress round already exists (idempotent creation: at most one
// active round process-wide).
func (m *Manager) CreateRound(ctx context.Context, req CreateRoundRequest) (*CreateRoundResponse, error) {
	if req.TimeLimit <= 0 {
		return nil, ErrInvalidTimeLimit
	}

	active, err := m.store.ActiveRounds(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return &CreateRoundResponse{
			Success: true,
			Message: "An active jackpot game already exists.",
			Round:   active[0],
			Created: false,
		}, nil
	}

	round, err := m.store.CreateRound(ctx, req.UserID, req.TimeLimit)
	if err != nil {
		return nil, err
	}

	m.cacheRound(round)
	m.hub.Broadcast(WSMessage{Type: EventRoundCreated, Data: round})
	log.Printf("[GAME] Round %s created (time limit %ds)", round.ID, round.TimeLimit)

	return &CreateRoundResponse{
		Success: true,
		Message: "Jackpot game created successfully!",
		Round:   round,
		Created: true,
	}, nil
}

// JoinRound records a participant's contribution. The first contribution
// starts the round: status flips to in_progress, started_at is recorded and
// the countdown plus closure timers are armed. Later contributions only grow
// the pot; the countdown is never extended.
func (m *Manager) JoinRound(ctx context.Context, req JoinRoundRequest) (*JoinRoundResponse, error) {
	if req.WagerAmount <= 0 {
		return nil, ErrInvalidWager
	}

	round, err := m.store.GetRound(ctx, req.RoundID)
	if err != nil {
		return nil, err
	}
	if round == nil || !round.Active() {
		return nil, ErrRoundNotFound
	}

	joined, err := m.store.HasContribution(ctx, req.RoundID, req.UserID)
	if err != nil {
		return nil, err
	}
	if joined {
		return nil, ErrAlreadyJoined
	}

	contribution := &Contribution{
		RoundID:     req.RoundID,
		UserID:      req.UserID,
		WagerAmount: req.WagerAmount,
		CreatedAt:   time.Now(),
	}
	if err := m.store.InsertContribution(ctx, contribution); err != nil {
		return nil, err
	}

	// Whether this was the first bet is decided after the insert commits, so
	// two concurrent joiners cannot both start the round.
	count, err := m.store.ContributionCount(ctx, req.RoundID)
	if err != nil {
		return nil, err
	}

	var updated *Round
	if count == 1 {
		startedAt := contribution.CreatedAt
		updated, err = m.store.StartRound(ctx, req.RoundID, startedAt, req.WagerAmount)
		if err != nil {
			return nil, err
		}
		log.Printf("[GAME] First bet placed for round %s. Starting countdown.", req.RoundID)

		m.hub.Broadcast(WSMessage{Type: EventGameStarted, Data: updated})
		m.startCountdown(updated)
		m.scheduleClosure(updated)
	} else {
		updated, err = m.store.AddToPot(ctx, req.RoundID, req.WagerAmount)
		if err != nil {
			return nil, err
		}
	}

	m.cacheRound(updated)

	players, _, err := m.RoundPlayers(ctx, req.RoundID)
	if err != nil {
		log.Printf("[GAME] Failed to fetch players for round %s: %v", req.RoundID, err)
	} else {
		m.hub.BroadcastToRoom(req.RoundID, WSMessage{
			Type: EventPlayerJoined,
			Data: PlayerJoined{RoundID: req.RoundID, TotalPot: updated.TotalPot, Players: players},
		})
	}

	return &JoinRoundResponse{
		Success:      true,
		Message:      "Bet placed successfully!",
		Round:        updated,
		Contribution: contribution,
	}, nil
}

// ActiveRounds lists rounds still accepting contributions.
func (m *Manager) ActiveRounds(ctx context.Context) ([]*Round, error) {
	return m.store.ActiveRounds(ctx)
}

// CurrentRound returns the single active round, or nil when none exists.
func (m *Manager) CurrentRound(ctx context.Context) *Round {
	active, err := m.store.ActiveRounds(ctx)
	if err != nil || len(active) == 0 {
		return nil
	}
	return active[0]
}

// RoundPlayers returns the round's contributions with each participant's
// share of the pot.
func (m *Manager) RoundPlayers(ctx context.Context, roundID string) ([]Player, int64, error) {
	contributions, err := m.store.ContributionsByRound(ctx, roundID)
	if err != nil {
		return nil, 0, err
	}

	var totalPot int64
	for _, c := range contributions {
		totalPot += c.WagerAmount
	}

	players := make([]Player, 0, len(contributions))
	for _, c := range contributions {
		pct := "0.00"
		if totalPot > 0 {
			pct = fmt.Sprintf("%.2f", float64(c.WagerAmount)/float64(totalPot)*100)
		}
		players = append(players, Player{
			UserID:          c.UserID,
			WagerAmount:     c.WagerAmount,
			JoinedAt:        c.CreatedAt,
			PercentageOfPot: pct,
		})
	}

	return players, totalPot, nil
}

// History lists the last finished rounds with each winner's pot share.
func (m *Manager) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}

	rounds, err := m.store.FinishedRounds(ctx, limit)
	if err != nil {
		return nil, err
	}

	history := make([]HistoryEntry, 0, len(rounds))
	for _, r := range rounds {
		entry := HistoryEntry{
			RoundID:          r.ID,
			TotalPot:         r.TotalPot,
			WinnerID:         r.Result,
			WinnerPercentage: "N/A",
			FinishedAt:       r.FinishedAt,
		}
		if r.Result != "" && r.TotalPot > 0 {
			if c, err := m.store.WinnerContribution(ctx, r.ID, r.Result); err == nil && c != nil {
				entry.WinnerPercentage = fmt.Sprintf("%.2f%%", float64(c.WagerAmount)/float64(r.TotalPot)*100)
			}
		}
		history = append(history, entry)
	}

	return history, nil
}

// RescheduleActive re-arms closure timers and countdown tickers for every
// in_progress round found in storage. In-memory timer state does not survive
// a restart; persisted rounds do. Rounds whose deadline already elapsed are
// closed immediately.
func (m *Manager) RescheduleActive(ctx context.Context) {
	active, err := m.store.ActiveRounds(ctx)
	if err != nil {
		log.Printf("[GAME] Reconciliation sweep failed: %v", err)
		return
	}

	for _, round := range active {
		if round.Status != StatusInProgress || round.StartedAt == nil {
			continue
		}
		log.Printf("[TIMER] Rescheduling closure for round %s", round.ID)
		m.startCountdown(round)
		m.scheduleClosure(round)
	}
}

// scheduleClosure arms the closure timer at started_at + time_limit. The
// scheduler's per-round key prevents a reconciliation sweep from arming a
// second competing timer.
func (m *Manager) scheduleClosure(round *Round) {
	delay := time.Until(round.EndTime())
	roundID := round.ID
	if !m.scheduler.Schedule(roundID, delay, func() { m.closeRound(roundID) }) {
		log.Printf("[TIMER] Closure already scheduled for round %s", roundID)
	}
}

// startCountdown emits timer_update once per second with the whole seconds
// remaining until the closure deadline. Values are computed from the fixed
// deadline, so they are monotonically non-increasing down to zero.
func (m *Manager) startCountdown(round *Round) {
	endTime := round.EndTime()
	roundID := round.ID
	m.scheduler.StartTicker(roundID, func() {
		timeLeft := int(time.Until(endTime).Seconds())
		if timeLeft < 0 {
			timeLeft = 0
		}
		m.hub.Broadcast(WSMessage{
			Type: EventTimerUpdate,
			Data: TimerUpdate{RoundID: roundID, TimeLeft: timeLeft},
		})
		if timeLeft == 0 {
			m.scheduler.StopTicker(roundID)
		}
	})
}

// closeRound is the in_progress -> finished transition. It runs the weighted
// lottery, persists the result, computes the animation ticket and broadcasts
// it exactly once. A per-round latch makes a duplicate invocation (live timer
// plus reconciliation sweep) a no-op; on winner-selection failure the latch
// is released so a retry stays possible and the round remains in_progress.
func (m *Manager) closeRound(roundID string) {
	m.mu.Lock()
	if m.closed[roundID] {
		m.mu.Unlock()
		log.Printf("[GAME] Skipping duplicate closure for round %s", roundID)
		return
	}
	m.closed[roundID] = true
	m.mu.Unlock()

	m.scheduler.StopTicker(roundID)
	m.scheduler.Cancel(roundID)

	ctx := m.ctx

	round, err := m.store.GetRound(ctx, roundID)
	if err != nil || round == nil {
		log.Printf("[GAME] Closure: failed to fetch round %s: %v", roundID, err)
		m.releaseLatch(roundID)
		return
	}
	if round.Status != StatusInProgress {
		log.Printf("[GAME] Closure: round %s is %s, nothing to do", roundID, round.Status)
		return
	}

	contributions, err := m.store.ContributionsByRound(ctx, roundID)
	if err != nil {
		log.Printf("[GAME] Closure: failed to fetch contributions for round %s: %v", roundID, err)
		m.releaseLatch(roundID)
		return
	}

	entries := make([]Entry, 0, len(contributions))
	for _, c := range contributions {
		entries = append(entries, Entry{UserID: c.UserID, WagerAmount: c.WagerAmount})
	}

	winnerID, err := SelectWinner(entries)
	if err != nil {
		// The round is not finished on a failed draw; broadcast the error and
		// leave the latch clear so operator intervention can retry.
		log.Printf("[GAME] No valid winner for round %s: %v", roundID, err)
		m.hub.Broadcast(WSMessage{
			Type: EventJackpotUpdate,
			Data: JackpotUpdate{
				RoundID: roundID,
				Status:  "error",
				Message: fmt.Sprintf("No valid winner found. Reason: %v", err),
			},
		})
		m.releaseLatch(roundID)
		return
	}

	finishedAt := time.Now()
	if err := m.store.FinishRound(ctx, roundID, winnerID, finishedAt); err != nil {
		log.Printf("[GAME] Closure: failed to finish round %s: %v", roundID, err)
		m.releaseLatch(roundID)
		return
	}

	log.Printf("[GAME] Round %s finished! Winner: %s", roundID, winnerID)
	m.hub.Broadcast(WSMessage{
		Type: EventJackpotUpdate,
		Data: JackpotUpdate{
			RoundID:  roundID,
			Status:   StatusFinished,
			WinnerID: winnerID,
			Message:  fmt.Sprintf("Game finished! Winner: %s", winnerID),
		},
	})

	// The winner is durably committed at this point. A failed ticket
	// computation only means no animation is sent; clients fall back to
	// polling the round status.
	seed := GenerateSeed()
	winnerIndex, targetOffset, err := ComputeOffset(entries, winnerID, seed)
	if err != nil {
		log.Printf("[GAME] Failed to compute animation offset for round %s: %v", roundID, err)
		return
	}

	animationStart := time.Now()
	if err := m.store.SetAnimationStartTime(ctx, roundID, animationStart); err != nil {
		log.Printf("[GAME] Failed to persist animation start for round %s: %v", roundID, err)
	}

	ticket := AnimationTicket{
		RoundID:            roundID,
		WinnerID:           winnerID,
		Seed:               seed,
		WinnerIndex:        winnerIndex,
		TargetOffset:       targetOffset,
		AnimationStartTime: animationStart,
	}
	m.cacheTicket(&ticket)

	log.Printf("[GAME] Sending ticket for round %s: targetOffset=%.1f winnerIndex=%d seed=%d",
		roundID, targetOffset, winnerIndex, seed)
	m.hub.Broadcast(WSMessage{Type: EventAnimationStarted, Data: ticket})
}

func (m *Manager) releaseLatch(roundID string) {
	m.mu.Lock()
	delete(m.closed, roundID)
	m.mu.Unlock()
}

// cacheRound mirrors the live round into Redis so websocket initial state is
// served without a storage read.
func (m *Manager) cacheRound(round *Round) {
	if m.redisClient == nil || round == nil {
		return
	}
	data, err := json.Marshal(round)
	if err != nil {
		return
	}
	m.redisClient.Set(m.ctx, RedisKeyRoundPrefix+round.ID, data, 1*time.Hour)
}

func (m *Manager) cacheTicket(ticket *AnimationTicket) {
	if m.redisClient == nil {
		return
	}
	data, err := json.Marshal(ticket)
	if err != nil {
		return
	}
	m.redisClient.Set(m.ctx, RedisKeyTicketPrefix+ticket.RoundID, data, 1*time.Hour)
}

// CachedTicket returns the animation ticket for a recently finished round, or
// nil when none is cached. Late room joiners use it to replay the reveal.
func (m *Manager) CachedTicket(ctx context.Context, roundID string) *AnimationTicket {
	if m.redisClient == nil {
		return nil
	}
	data, err := m.redisClient.Get(ctx, RedisKeyTicketPrefix+roundID).Bytes()
	if err != nil {
		return nil
	}
	var ticket AnimationTicket
	if err := json.Unmarshal(data, &ticket); err != nil {
		return nil
	}
	return &ticket
}
