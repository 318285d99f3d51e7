package falcon

import (
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/crypto/sha3"
)

// NewSeededReader returns a deterministic randomness stream (SHAKE256 of seed),
// suitable for reproducible key generation.
func NewSeededReader(seed []byte) io.Reader {
	h := sha3.NewShake256()
	h.Write(seed)
	return h
}

// sampler draws integers and floats from a byte stream. The first read error
// is kept and every later draw returns zero.
type sampler struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (s *sampler) uint64() uint64 {
	if s.err != nil {
		return 0
	}
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		s.err = err
		return 0
	}
	return binary.LittleEndian.Uint64(s.buf[:])
}

// float64 is uniform in [0, 1).
func (s *sampler) float64() float64 {
	return float64(s.uint64()>>11) / (1 << 53)
}

// gaussian samples a centered discrete Gaussian by rejection from a box of
// six standard deviations.
func (s *sampler) gaussian(sigma float64) int64 {
	bound := int64(math.Ceil(6 * sigma))
	for {
		z := int64(s.uint64()%uint64(2*bound+1)) - bound
		if s.float64() < math.Exp(-float64(z*z)/(2*sigma*sigma)) || s.err != nil {
			return z
		}
	}
}

// round rounds x up with probability equal to its fractional part.
func (s *sampler) round(x float64) int64 {
	fl := math.Floor(x)
	if s.float64() < x-fl {
		return int64(fl) + 1
	}
	return int64(fl)
}

func (s *sampler) roundAll(xs []float64) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = s.round(x)
	}
	return out
}
