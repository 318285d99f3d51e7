package sponge

import (
	"testing"

	"github.com/consensys/gnark-crypto/field/goldilocks/poseidon2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkutxo/internal/field"
)

func felts(vs ...uint64) []field.Felt {
	out := make([]field.Felt, len(vs))
	for i, v := range vs {
		out[i] = field.NewFelt(v)
	}
	return out
}

func TestHashElementsDeterministic(t *testing.T) {
	a := HashElements(felts(1, 2, 3, 4, 5))
	b := HashElements(felts(1, 2, 3, 4, 5))
	assert.True(t, a.Equal(b))
	assert.False(t, a.IsZero())
}

func TestHashElementsLengthSensitive(t *testing.T) {
	// a trailing zero must change the digest
	a := HashElements(felts(1, 2, 3))
	b := HashElements(felts(1, 2, 3, 0))
	assert.False(t, a.Equal(b))

	assert.False(t, HashElements(nil).IsZero())
}

func TestHashElementsMultiBlock(t *testing.T) {
	long := make([]uint64, 3*Rate+1)
	for i := range long {
		long[i] = uint64(i)
	}
	a := HashElements(felts(long...))
	long[len(long)-1]++
	b := HashElements(felts(long...))
	assert.False(t, a.Equal(b))
}

func TestMergeDomainSeparated(t *testing.T) {
	l := field.NewWord(1, 2, 3, 4)
	r := field.NewWord(5, 6, 7, 8)

	m := Merge(l, r)
	assert.False(t, m.Equal(Merge(r, l)))

	flat := append(l.Elements(), r.Elements()...)
	assert.False(t, m.Equal(HashElements(flat)))
}

func TestSqueezeStream(t *testing.T) {
	s := New(7)
	s.Absorb(felts(9, 9, 9)...)
	out := s.Squeeze(2*Rate + 3)
	require.Len(t, out, 2*Rate+3)

	s2 := New(7)
	s2.Absorb(felts(9, 9, 9)...)
	first := s2.Squeeze(Rate)
	rest := s2.Squeeze(Rate + 3)
	assert.Equal(t, out, append(first, rest...))

	assert.Panics(t, func() { s2.Absorb(field.NewFelt(1)) })
}

func TestPermutationUsesLibraryRounds(t *testing.T) {
	d := poseidon2.GetDefaultParameters()
	want := poseidon2.NewPermutation(Width, d.NbFullRounds, d.NbPartialRounds)

	var got, expected [Width]field.Felt
	for i := range got {
		got[i] = field.NewFelt(uint64(i + 1))
	}
	expected = got
	permute(&got)
	require.NoError(t, want.Permutation(expected[:]))
	assert.Equal(t, expected, got)

	other := poseidon2.NewPermutation(Width, d.NbFullRounds, d.NbPartialRounds+1)
	alt := [Width]field.Felt{}
	for i := range alt {
		alt[i] = field.NewFelt(uint64(i + 1))
	}
	require.NoError(t, other.Permutation(alt[:]))
	assert.NotEqual(t, got, alt)
}
