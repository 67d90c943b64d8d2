package game

import (
	"errors"
)

// Tape geometry shared with clients. CardWidth and ContainerWidth are pixel
// constants of the reel viewport; TapeLength is the fixed slot count every
// tape is normalized to.
const (
	CardWidth      = 80
	ContainerWidth = 400
	TapeLength     = 100
)

var (
	ErrEmptyTape       = errors.New("no players available for tape")
	ErrZeroTotalWager  = errors.New("total wager is zero")
	ErrWinnerNotInTape = errors.New("winner not found in shuffled tape")
)

// BuildTape allocates each entry a slot count proportional to its share of
// the total wager, rounded to nearest with a minimum of one slot, then
// corrects rounding drift against the first entry so the result is exactly
// TapeLength slots. Clients run the identical construction.
func BuildTape(entries []Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTape
	}

	var totalWager int64
	for _, e := range entries {
		totalWager += e.WagerAmount
	}
	if totalWager <= 0 {
		return nil, ErrZeroTotalWager
	}

	tape := make([]string, 0, TapeLength)
	for _, e := range entries {
		count := int(float64(e.WagerAmount)/float64(totalWager)*TapeLength + 0.5)
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			tape = append(tape, e.UserID)
		}
	}

	// Pad with the first entry or truncate the tail until the length is exact.
	for len(tape) < TapeLength {
		tape = append(tape, entries[0].UserID)
	}
	if len(tape) > TapeLength {
		tape = tape[:TapeLength]
	}

	return tape, nil
}

// ComputeOffset builds the weighted tape, shuffles it with seed, locates the
// first occurrence of the winner and returns the pixel offset that centers
// that slot under the viewport. Only (seed, winnerIndex, targetOffset) travel
// to clients; each client rebuilds the identical tape locally.
func ComputeOffset(entries []Entry, winnerID string, seed uint32) (winnerIndex int, targetOffset float64, err error) {
	tape, err := BuildTape(entries)
	if err != nil {
		return 0, 0, err
	}

	ShuffleWithSeed(tape, seed)

	winnerIndex = -1
	for i, id := range tape {
		if id == winnerID {
			winnerIndex = i
			break
		}
	}
	// Provably impossible given the construction, but a broken animation must
	// never be emitted.
	if winnerIndex == -1 {
		return 0, 0, ErrWinnerNotInTape
	}

	targetOffset = float64(winnerIndex*CardWidth) - (float64(ContainerWidth)/2 - float64(CardWidth)/2)
	return winnerIndex, targetOffset, nil
}
