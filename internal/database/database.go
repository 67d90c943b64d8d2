package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"

	"jackpot/internal/game"
)

// Service is the persistent-storage collaborator: row-level operations on
// jackpot rounds and contributions, plus connection health reporting.
type Service interface {
	game.Store

	Health() map[string]string
	Close() error
}

type service struct {
	db *sql.DB
}

var (
	database   = os.Getenv("JACKPOT_DB_DATABASE")
	password   = os.Getenv("JACKPOT_DB_PASSWORD")
	username   = os.Getenv("JACKPOT_DB_USERNAME")
	port       = os.Getenv("JACKPOT_DB_PORT")
	host       = os.Getenv("JACKPOT_DB_HOST")
	schema     = os.Getenv("JACKPOT_DB_SCHEMA")
	dbInstance *service
)

func New() Service {
	// Reuse connection
	if dbInstance != nil {
		return dbInstance
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatal(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	dbInstance = &service{
		db: db,
	}
	return dbInstance
}

const roundColumns = `id, creator_id, status, time_limit, total_pot,
	COALESCE(result, ''), created_at, started_at, finished_at, animation_start_time`

func scanRound(row interface{ Scan(...interface{}) error }) (*game.Round, error) {
	var r game.Round
	var startedAt, finishedAt, animationStart sql.NullTime
	err := row.Scan(&r.ID, &r.CreatorID, &r.Status, &r.TimeLimit, &r.TotalPot,
		&r.Result, &r.CreatedAt, &startedAt, &finishedAt, &animationStart)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	if animationStart.Valid {
		r.AnimationStartTime = &animationStart.Time
	}
	return &r, nil
}

func (s *service) CreateRound(ctx context.Context, creatorID string, timeLimit int) (*game.Round, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO jackpot_games (creator_id, status, time_limit, total_pot)
		VALUES ($1, $2, $3, 0)
		RETURNING `+roundColumns,
		creatorID, game.StatusOpen, timeLimit)
	return scanRound(row)
}

func (s *service) GetRound(ctx context.Context, roundID string) (*game.Round, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM jackpot_games WHERE id = $1`, roundID)
	round, err := scanRound(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return round, err
}

func (s *service) ActiveRounds(ctx context.Context) ([]*game.Round, error) {
	return s.queryRounds(ctx, `
		SELECT `+roundColumns+` FROM jackpot_games
		WHERE status IN ($1, $2)
		ORDER BY created_at`,
		game.StatusOpen, game.StatusInProgress)
}

func (s *service) FinishedRounds(ctx context.Context, limit int) ([]*game.Round, error) {
	return s.queryRounds(ctx, `
		SELECT `+roundColumns+` FROM jackpot_games
		WHERE status = $1
		ORDER BY finished_at DESC
		LIMIT $2`,
		game.StatusFinished, limit)
}

func (s *service) queryRounds(ctx context.Context, query string, args ...interface{}) ([]*game.Round, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*game.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

func (s *service) StartRound(ctx context.Context, roundID string, startedAt time.Time, pot int64) (*game.Round, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE jackpot_games
		SET status = $2, started_at = $3, total_pot = total_pot + $4
		WHERE id = $1
		RETURNING `+roundColumns,
		roundID, game.StatusInProgress, startedAt, pot)
	return scanRound(row)
}

func (s *service) AddToPot(ctx context.Context, roundID string, amount int64) (*game.Round, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE jackpot_games
		SET total_pot = total_pot + $2
		WHERE id = $1
		RETURNING `+roundColumns,
		roundID, amount)
	return scanRound(row)
}

func (s *service) FinishRound(ctx context.Context, roundID, winnerID string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jackpot_games
		SET status = $2, result = $3, finished_at = $4
		WHERE id = $1 AND status = $5`,
		roundID, game.StatusFinished, winnerID, finishedAt, game.StatusInProgress)
	return err
}

func (s *service) SetAnimationStartTime(ctx context.Context, roundID string, startTime time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jackpot_games
		SET animation_start_time = $2
		WHERE id = $1 AND animation_start_time IS NULL`,
		roundID, startTime)
	return err
}

func (s *service) InsertContribution(ctx context.Context, c *game.Contribution) error {
	// The (game_id, user_id) primary key enforces at most one contribution
	// per participant; a concurrent duplicate join fails here.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jackpot_contributions (game_id, user_id, wager_amount, created_at)
		VALUES ($1, $2, $3, $4)`,
		c.RoundID, c.UserID, c.WagerAmount, c.CreatedAt)
	return err
}

func (s *service) ContributionsByRound(ctx context.Context, roundID string) ([]*game.Contribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, user_id, wager_amount, created_at
		FROM jackpot_contributions
		WHERE game_id = $1
		ORDER BY created_at`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contributions []*game.Contribution
	for rows.Next() {
		var c game.Contribution
		if err := rows.Scan(&c.RoundID, &c.UserID, &c.WagerAmount, &c.CreatedAt); err != nil {
			return nil, err
		}
		contributions = append(contributions, &c)
	}
	return contributions, rows.Err()
}

func (s *service) HasContribution(ctx context.Context, roundID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM jackpot_contributions WHERE game_id = $1 AND user_id = $2
		)`, roundID, userID).Scan(&exists)
	return exists, err
}

func (s *service) ContributionCount(ctx context.Context, roundID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jackpot_contributions WHERE game_id = $1`, roundID).Scan(&count)
	return count, err
}

func (s *service) WinnerContribution(ctx context.Context, roundID, userID string) (*game.Contribution, error) {
	var c game.Contribution
	err := s.db.QueryRowContext(ctx, `
		SELECT game_id, user_id, wager_amount, created_at
		FROM jackpot_contributions
		WHERE game_id = $1 AND user_id = $2`, roundID, userID).
		Scan(&c.RoundID, &c.UserID, &c.WagerAmount, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	// Ping the database
	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	// Database is up, add more statistics
	stats["status"] = "up"
	stats["message"] = "It's healthy"

	// Get database stats (like open connections, in use, idle, etc.)
	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	// Evaluate stats to provide a health message
	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Printf("[DB] Disconnected from database: %s", database)
	return s.db.Close()
}
