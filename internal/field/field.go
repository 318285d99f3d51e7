// field.go - Field elements and 4-element words over the Goldilocks prime.
//
// Felt is a gnark-crypto goldilocks.Element (p = 2^64 - 2^32 + 1). Words are used
// both as digests and as public keys. All comparisons go through the canonical
// integer representative, never the internal Montgomery form.

package field

import (
	"github.com/consensys/gnark-crypto/field/goldilocks"
	"github.com/pkg/errors"
)

// WordSize is the number of field elements in a word.
const WordSize = 4

// FeltBytes is the size of one encoded field element.
const FeltBytes = goldilocks.Bytes

// WordBytes is the size of one encoded word.
const WordBytes = WordSize * FeltBytes

// Felt is an element of the Goldilocks field.
type Felt = goldilocks.Element

// Word is an ordered 4-tuple of field elements.
type Word [WordSize]Felt

// Key is the canonical integer form of a word, usable as a map key.
type Key [WordSize]uint64

var ErrInvalidEncoding = errors.New("invalid field encoding")

// NewFelt returns v reduced into the field.
func NewFelt(v uint64) Felt {
	return goldilocks.NewElement(v)
}

// CanonicalFelt returns v as a field element, rejecting values at or above
// the prime instead of reducing them.
func CanonicalFelt(v uint64) (Felt, error) {
	if v >= Modulus() {
		return Felt{}, errors.Wrapf(ErrInvalidEncoding, "%d is not below the field modulus", v)
	}
	return NewFelt(v), nil
}

// Modulus returns the field prime as a uint64.
func Modulus() uint64 {
	return goldilocks.Modulus().Uint64()
}

// NewWord builds a word from four integers.
func NewWord(a, b, c, d uint64) Word {
	return Word{NewFelt(a), NewFelt(b), NewFelt(c), NewFelt(d)}
}

// ZeroWord is the empty-slot marker.
var ZeroWord Word

// IsZero reports whether every element of w is zero.
func (w Word) IsZero() bool {
	for i := range w {
		if !w[i].IsZero() {
			return false
		}
	}
	return true
}

func (w Word) Equal(o Word) bool {
	return w.Key() == o.Key()
}

// Key returns the canonical integers of w.
func (w Word) Key() Key {
	var k Key
	for i := range w {
		k[i] = w[i].Uint64()
	}
	return k
}

// Word rebuilds the word a key was taken from.
func (k Key) Word() Word {
	return NewWord(k[0], k[1], k[2], k[3])
}

// Elements returns the word as a slice.
func (w Word) Elements() []Felt {
	out := make([]Felt, WordSize)
	copy(out, w[:])
	return out
}

// WordFromElements reads a word from the first four elements of e.
func WordFromElements(e []Felt) (Word, error) {
	var w Word
	if len(e) < WordSize {
		return w, errors.Wrapf(ErrInvalidEncoding, "need %d elements, got %d", WordSize, len(e))
	}
	copy(w[:], e[:WordSize])
	return w, nil
}

// Bytes encodes w as four canonical big-endian elements.
func (w Word) Bytes() []byte {
	out := make([]byte, 0, WordBytes)
	for i := range w {
		b := w[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// WordFromBytes decodes exactly WordBytes bytes into a word.
func WordFromBytes(b []byte) (Word, error) {
	var w Word
	if len(b) != WordBytes {
		return w, errors.Wrapf(ErrInvalidEncoding, "word needs %d bytes, got %d", WordBytes, len(b))
	}
	for i := range w {
		f, err := FeltFromBytes(b[i*FeltBytes : (i+1)*FeltBytes])
		if err != nil {
			return w, err
		}
		w[i] = f
	}
	return w, nil
}

// FeltToBytes encodes f in the field's canonical byte order (big-endian).
func FeltToBytes(f Felt) []byte {
	b := f.Bytes()
	return b[:]
}

// FeltFromBytes decodes exactly FeltBytes canonical bytes. Values >= p are rejected.
func FeltFromBytes(b []byte) (Felt, error) {
	var f Felt
	if len(b) != FeltBytes {
		return f, errors.Wrapf(ErrInvalidEncoding, "element needs %d bytes, got %d", FeltBytes, len(b))
	}
	if err := f.SetBytesCanonical(b); err != nil {
		return f, errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	return f, nil
}

func (w Word) String() string {
	return string(NewHexString(w.Bytes()))
}
