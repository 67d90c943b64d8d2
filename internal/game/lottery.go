package game

import (
	"crypto/rand"
	"errors"
	"math/big"
)

var (
	ErrNoParticipants = errors.New("no participants in round")
	ErrEmptyPool      = errors.New("weighted pool is empty")
)

// SelectWinner picks one participant with probability proportional to wager
// amount. Each participant occupies wager-many tickets in a weighted pool and
// a single index is drawn with crypto/rand, so the odds follow the wager
// size, not the number of contributions. Pure function; the caller persists
// the result.
//
// Wagers are integer units. A non-positive wager contributes no tickets;
// upstream validation rejects those, but the engine still fails closed on a
// degenerate pool rather than fabricating a winner.
func SelectWinner(entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", ErrNoParticipants
	}

	var pool []string
	for _, e := range entries {
		for i := int64(0); i < e.WagerAmount; i++ {
			pool = append(pool, e.UserID)
		}
	}
	if len(pool) == 0 {
		return "", ErrEmptyPool
	}

	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return "", err
	}

	return pool[idx.Int64()], nil
}
