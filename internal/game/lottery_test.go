package game

import (
	"testing"
)

func TestSelectWinner_Errors(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr error
	}{
		{name: "no participants", entries: nil, wantErr: ErrNoParticipants},
		{name: "empty slice", entries: []Entry{}, wantErr: ErrNoParticipants},
		{
			name:    "degenerate pool",
			entries: []Entry{{UserID: "a", WagerAmount: 0}, {UserID: "b", WagerAmount: 0}},
			wantErr: ErrEmptyPool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectWinner(tt.entries)
			if err != tt.wantErr {
				t.Errorf("SelectWinner() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSelectWinner_SoleParticipant(t *testing.T) {
	entries := []Entry{{UserID: "only", WagerAmount: 5}}

	for i := 0; i < 20; i++ {
		winner, err := SelectWinner(entries)
		if err != nil {
			t.Fatalf("SelectWinner() error = %v", err)
		}
		if winner != "only" {
			t.Fatalf("SelectWinner() = %q, want %q", winner, "only")
		}
	}
}

func TestSelectWinner_ValidWinner(t *testing.T) {
	entries := []Entry{
		{UserID: "alice", WagerAmount: 10},
		{UserID: "bob", WagerAmount: 20},
		{UserID: "carol", WagerAmount: 5},
	}
	valid := map[string]bool{"alice": true, "bob": true, "carol": true}

	for i := 0; i < 100; i++ {
		winner, err := SelectWinner(entries)
		if err != nil {
			t.Fatalf("SelectWinner() error = %v", err)
		}
		if !valid[winner] {
			t.Fatalf("SelectWinner() = %q, not a participant", winner)
		}
	}
}

func TestSelectWinner_ProportionalToWager(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping distribution test in short mode")
	}

	// 30/70 wager split should converge on 30/70 win frequency, not on the
	// 50/50 a per-contribution draw would give.
	entries := []Entry{
		{UserID: "small", WagerAmount: 30},
		{UserID: "big", WagerAmount: 70},
	}

	const draws = 20000
	wins := make(map[string]int)
	for i := 0; i < draws; i++ {
		winner, err := SelectWinner(entries)
		if err != nil {
			t.Fatalf("SelectWinner() error = %v", err)
		}
		wins[winner]++
	}

	bigShare := float64(wins["big"]) / draws
	if bigShare < 0.66 || bigShare > 0.74 {
		t.Errorf("big wager win share = %.3f, want ~0.70", bigShare)
	}
	smallShare := float64(wins["small"]) / draws
	if smallShare < 0.26 || smallShare > 0.34 {
		t.Errorf("small wager win share = %.3f, want ~0.30", smallShare)
	}
}

func BenchmarkSelectWinner(b *testing.B) {
	entries := []Entry{
		{UserID: "alice", WagerAmount: 100},
		{UserID: "bob", WagerAmount: 250},
		{UserID: "carol", WagerAmount: 50},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SelectWinner(entries)
	}
}
