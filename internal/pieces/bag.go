// internal/pieces/bag.go
//
// Shuffle-bag piece supplier.
// Responsibilities:
//   - Hold a permutation of every catalog shape not yet dispensed.
//   - Refill + Fisher–Yates shuffle only when a draw finds the bag empty.
//   - Deal the three pieces offered to the player each round.
//
// Notes:
//   - Randomness comes from an injected RNG so tests (and the daily
//     challenge) can fix the sequence.
//   - DrawThree may straddle a refill; the third piece can come from a
//     fresh permutation.

package pieces

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// pcgRNG adapts a math/rand/v2 generator to RNG.
type pcgRNG struct{ r *rand.Rand }

func (p pcgRNG) Intn(n int) int { return p.r.IntN(n) }

// NewRNG returns a deterministic RNG for seed.
func NewRNG(seed uint64) RNG {
	return pcgRNG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomRNG returns an RNG seeded from crypto/rand.
func NewRandomRNG() RNG {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return NewRNG(binary.LittleEndian.Uint64(b[:]))
}

// Bag dispenses shapes so that every shape appears once per full cycle.
// A Bag is not safe for concurrent use.
type Bag struct {
	rng   RNG
	items []Shape
}

// NewBag creates a bag that draws from rng. A nil rng uses NewRandomRNG.
// The bag starts full.
func NewBag(rng RNG) *Bag {
	if rng == nil {
		rng = NewRandomRNG()
	}
	b := &Bag{rng: rng}
	b.Refill()
	return b
}

// Refill resets the bag to every shape exactly once and shuffles it.
func (b *Bag) Refill() {
	b.items = append(b.items[:0], All()...)
	for i := len(b.items) - 1; i > 0; i-- {
		j := b.rng.Intn(i + 1)
		b.items[i], b.items[j] = b.items[j], b.items[i]
	}
}

// Remaining reports how many shapes are left before the next refill.
func (b *Bag) Remaining() int { return len(b.items) }

// Draw removes and returns one shape, refilling first if the bag is empty.
func (b *Bag) Draw() Shape {
	if len(b.items) == 0 {
		b.Refill()
	}
	last := len(b.items) - 1
	s := b.items[last]
	b.items = b.items[:last]
	return s
}

// DrawThree draws the three pieces offered in one round.
func (b *Bag) DrawThree() []Shape {
	return []Shape{b.Draw(), b.Draw(), b.Draw()}
}
