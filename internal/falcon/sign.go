// sign.go - Signing and verification over field-word messages.

package falcon

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"zkutxo/internal/field"
	"zkutxo/internal/sponge"
)

// hashToPointDomain separates hash-to-point from every other sponge use.
const hashToPointDomain = 0x46414c434f4e // "FALCON"

// Signature is a nonce, the signer's public polynomial h and the short
// polynomial s2.
type Signature struct {
	nonce [NonceBytes]byte
	h     Polynomial
	s2    Polynomial
}

// Nonce returns the raw nonce.
func (s *Signature) Nonce() [NonceBytes]byte { return s.nonce }

// PubKeyPoly returns h.
func (s *Signature) PubKeyPoly() Polynomial { return s.h }

// SigPoly returns s2.
func (s *Signature) SigPoly() Polynomial { return s.s2 }

// NonceElements lifts the nonce into field elements, 5 big-endian bytes each.
func (s *Signature) NonceElements() [NonceElements]field.Felt {
	return NonceToElements(s.nonce)
}

func NonceToElements(nonce [NonceBytes]byte) [NonceElements]field.Felt {
	var out [NonceElements]field.Felt
	var buf [8]byte
	for i := range out {
		copy(buf[3:], nonce[5*i:5*i+5])
		out[i] = field.NewFelt(binary.BigEndian.Uint64(buf[:]))
	}
	return out
}

// HashToPoint maps (message, nonce) to a ring element with uniform-looking
// coefficients mod q.
func HashToPoint(msg field.Word, nonce [NonceElements]field.Felt) Polynomial {
	sp := sponge.New(hashToPointDomain)
	sp.Absorb(nonce[:]...)
	sp.Absorb(msg[:]...)
	var c Polynomial
	for i, e := range sp.Squeeze(N) {
		c[i] = uint16(e.Uint64() % Q)
	}
	return c
}

// Sign signs msg. A nil reader means crypto/rand.
func (kp *KeyPair) Sign(msg field.Word, r io.Reader) (*Signature, error) {
	if r == nil {
		r = rand.Reader
	}
	s := &sampler{r: r}
	for attempt := 0; attempt < maxSignAttempts; attempt++ {
		sig := &Signature{h: kp.pk.h}
		if _, err := io.ReadFull(r, sig.nonce[:]); err != nil {
			return nil, errors.Wrap(ErrSigning, err.Error())
		}
		c := HashToPoint(msg, sig.NonceElements())
		s1, s2 := kp.sk.sample(&c, s)
		if s.err != nil {
			return nil, errors.Wrap(ErrSigning, s.err.Error())
		}
		if sqNorm(s1, s2) > SigBound {
			continue
		}
		sig.s2 = polynomialFromInts(s2)
		return sig, nil
	}
	return nil, errors.Wrap(ErrSigning, "no short vector found")
}

// sample finds (s1, s2) with s1 + s2*h = c mod q by rounding the target
// t = (-cF/q, cf/q) onto the lattice, last Gram-Schmidt vector first.
func (sk *secretKey) sample(c *Polynomial, s *sampler) ([]int64, []int64) {
	ci := make([]int64, N)
	for i := range ci {
		ci[i] = int64(c[i])
	}
	ch := fftInts(ci)

	t0 := make([]complex128, N)
	t1 := make([]complex128, N)
	for j := range ch {
		t0[j] = -ch[j] * sk.bigF[j] / Q
		t1[j] = ch[j] * sk.fFFT[j] / Q
	}

	z1 := s.roundAll(ifft(t1))
	z1h := fftInts(z1)
	for j := range t0 {
		t0[j] += (t1[j] - z1h[j]) * sk.l10[j]
	}
	z0 := s.roundAll(ifft(t0))

	// s1 = c - z0*g - z1*G, s2 = z0*f + z1*F
	z0g, z1G := negacyclic(z0, sk.g), negacyclic(z1, sk.G)
	z0f, z1F := negacyclic(z0, sk.f), negacyclic(z1, sk.F)
	s1 := make([]int64, N)
	s2 := make([]int64, N)
	for i := 0; i < N; i++ {
		s1[i] = ci[i] - z0g[i] - z1G[i]
		s2[i] = z0f[i] + z1F[i]
	}
	return s1, s2
}

// S1 recomputes s1 = c - s2*h mod q, centered.
func (s *Signature) S1(msg field.Word) []int64 {
	c := HashToPoint(msg, s.NonceElements())
	s2h := s.s2.Mul(&s.h)
	out := make([]int64, N)
	for i := range out {
		out[i] = center(modQ(int64(c[i]) - int64(s2h[i])))
	}
	return out
}

// Verify checks the signature over msg against a public key word.
func (s *Signature) Verify(msg, pubKey field.Word) bool {
	if !NewPublicKey(s.h).Word().Equal(pubKey) {
		return false
	}
	s2 := make([]int64, N)
	for i := range s2 {
		s2[i] = s.s2.Centered(i)
	}
	return sqNorm(s.S1(msg), s2) <= SigBound
}
