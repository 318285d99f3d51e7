// sponge.go - Poseidon2 sponge over the Goldilocks field.
//
// State layout (width 12): [capacity(4) | rate(8)]. Absorption overwrites the
// rate; the digest is the first word of the rate after the final permutation.

package sponge

import (
	"sync"

	"github.com/consensys/gnark-crypto/field/goldilocks/poseidon2"

	"zkutxo/internal/field"
)

const (
	Width    = 12
	Capacity = 4
	Rate     = Width - Capacity
)

// permutation uses the library's default round counts, which it specifies
// for both the width-8 compression and the width-12 sponge.
var permutation = sync.OnceValue(func() *poseidon2.Permutation {
	d := poseidon2.GetDefaultParameters()
	return poseidon2.NewPermutation(Width, d.NbFullRounds, d.NbPartialRounds)
})

func permute(state *[Width]field.Felt) {
	// only fails on a buffer of the wrong width
	if err := permutation().Permutation(state[:]); err != nil {
		panic(err)
	}
}

// Sponge absorbs field elements and squeezes an arbitrary number back out.
type Sponge struct {
	state    [Width]field.Felt
	pos      int
	squeezed bool
}

// New returns a sponge whose first capacity element is set to domain.
func New(domain uint64) *Sponge {
	s := &Sponge{}
	s.state[0] = field.NewFelt(domain)
	return s
}

// Absorb feeds elements into the rate, permuting after every full block.
func (s *Sponge) Absorb(elems ...field.Felt) {
	if s.squeezed {
		panic("sponge: absorb after squeeze")
	}
	for _, e := range elems {
		s.state[Capacity+s.pos] = e
		s.pos++
		if s.pos == Rate {
			permute(&s.state)
			s.pos = 0
		}
	}
}

// Squeeze returns n elements of output.
func (s *Sponge) Squeeze(n int) []field.Felt {
	out := make([]field.Felt, 0, n)
	if !s.squeezed {
		permute(&s.state)
		s.squeezed = true
		s.pos = 0
	}
	for len(out) < n {
		if s.pos == Rate {
			permute(&s.state)
			s.pos = 0
		}
		out = append(out, s.state[Capacity+s.pos])
		s.pos++
	}
	return out
}

// HashElements hashes a sequence of field elements into a word. The input length
// is bound into the capacity, so no padding element is needed.
func HashElements(elems []field.Felt) field.Word {
	s := New(uint64(len(elems)))
	s.Absorb(elems...)
	var w field.Word
	copy(w[:], s.Squeeze(field.WordSize))
	return w
}

// Merge is the 2-to-1 compression used for Merkle inner nodes.
func Merge(left, right field.Word) field.Word {
	var state [Width]field.Felt
	copy(state[Capacity:Capacity+field.WordSize], left[:])
	copy(state[Capacity+field.WordSize:], right[:])
	permute(&state)
	var w field.Word
	copy(w[:], state[Capacity:Capacity+field.WordSize])
	return w
}
