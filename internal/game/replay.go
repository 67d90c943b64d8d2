package game

import (
	"math"
	"time"
)

// AnimationDuration is the full length of the winner-reveal animation. Every
// observer runs the same easing curve over the same wall-clock window, so all
// clients converge on the winner at the same instant regardless of when they
// received the ticket.
const AnimationDuration = 8 * time.Second

// EaseOut is the quintic deceleration curve applied to the tape scroll.
// t is clamped to [0, 1].
func EaseOut(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return 1 - math.Pow(1-t, 5)
}

// ClockOffset is the measured client-server skew from one time-sync
// exchange: the amount to add to a local clock reading to approximate the
// server clock.
func ClockOffset(serverTime, clientTime time.Time) time.Duration {
	return serverTime.Sub(clientTime)
}

// TapeOffsetAt replays the animation at a local instant. The ticket's start
// time is a server timestamp; adjusting the local clock by the measured
// offset puts every observer on the same effective timeline.
func TapeOffsetAt(ticket *AnimationTicket, localNow time.Time, clockOffset time.Duration) float64 {
	effectiveNow := localNow.Add(clockOffset)
	elapsed := effectiveNow.Sub(ticket.AnimationStartTime)
	t := float64(elapsed) / float64(AnimationDuration)
	return ticket.TargetOffset * EaseOut(t)
}

// AnimationDone reports whether the animation window has fully elapsed at the
// adjusted local instant.
func AnimationDone(ticket *AnimationTicket, localNow time.Time, clockOffset time.Duration) bool {
	effectiveNow := localNow.Add(clockOffset)
	return effectiveNow.Sub(ticket.AnimationStartTime) >= AnimationDuration
}
