package game

import (
	"crypto/rand"
	"encoding/binary"
)

// mulberry32 is the pinned PRNG shared with every client implementation. The
// seed-to-permutation mapping is a protocol contract: the increment constant,
// the two imul mixing steps and the /2^32 float output must never change, or
// clients rebuilding the tape from a broadcast seed diverge from the server.
type mulberry32 struct {
	state uint32
}

func newMulberry32(seed uint32) *mulberry32 {
	return &mulberry32{state: seed}
}

// next returns the next float in [0, 1). All arithmetic is 32-bit wrapping,
// matching JS Math.imul and >>> semantics exactly.
func (m *mulberry32) next() float64 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// ShuffleWithSeed permutes items in place with a descending Fisher-Yates
// driven by mulberry32. Identical (items, seed) inputs always yield an
// identical order. Length 0 or 1 is returned unchanged.
func ShuffleWithSeed[T any](items []T, seed uint32) {
	rng := newMulberry32(seed)
	for i := len(items) - 1; i > 0; i-- {
		j := int(rng.next() * float64(i+1))
		items[i], items[j] = items[j], items[i]
	}
}

// GenerateSeed draws a cryptographically random 32-bit shuffle seed. The seed
// is generated once server-side per animation and broadcast; it is never
// derived from client input.
func GenerateSeed() uint32 {
	var b [4]byte
	rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
