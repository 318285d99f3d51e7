// keys.go - NTRU key generation and key types.

package falcon

import (
	"crypto/rand"
	"io"
	"math/cmplx"

	"github.com/pkg/errors"

	"zkutxo/internal/field"
	"zkutxo/internal/sponge"
)

// PublicKey is the polynomial h = g/f mod q.
type PublicKey struct {
	h Polynomial
}

// NewPublicKey wraps a public polynomial.
func NewPublicKey(h Polynomial) *PublicKey {
	return &PublicKey{h: h}
}

// Poly returns h.
func (pk *PublicKey) Poly() Polynomial { return pk.h }

// Word is the digest of h. Owners of UTXOs are identified by this word.
func (pk *PublicKey) Word() field.Word {
	return sponge.HashElements(pk.h.Elements())
}

// secretKey is the short NTRU basis together with the FFT data used to sign.
type secretKey struct {
	f, g, F, G []int64

	fFFT []complex128
	bigF []complex128
	l10  []complex128
}

func newSecretKey(f, g, F, G []int64) *secretKey {
	sk := &secretKey{f: f, g: g, F: F, G: G}
	fh, gh := fftInts(f), fftInts(g)
	Fh, Gh := fftInts(F), fftInts(G)
	den := selfAdjoint(fh, gh)
	sk.fFFT = fh
	sk.bigF = Fh
	sk.l10 = make([]complex128, N)
	for j := range sk.l10 {
		num := Gh[j]*cmplx.Conj(gh[j]) + Fh[j]*cmplx.Conj(fh[j])
		sk.l10[j] = num / complex(den[j], 0)
	}
	return sk
}

// KeyPair holds a secret basis and its public key.
type KeyPair struct {
	sk *secretKey
	pk *PublicKey
}

// PublicKey returns the public half.
func (kp *KeyPair) PublicKey() *PublicKey { return kp.pk }

// Owner is shorthand for kp.PublicKey().Word().
func (kp *KeyPair) Owner() field.Word { return kp.pk.Word() }

// GenerateKey samples a fresh key pair. A nil reader means crypto/rand.
func GenerateKey(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	s := &sampler{r: r}
	for attempt := 0; attempt < maxKeygenAttempts; attempt++ {
		f := make([]int64, N)
		g := make([]int64, N)
		for i := range f {
			f[i] = s.gaussian(keygenSigma)
			g[i] = s.gaussian(keygenSigma)
		}
		if s.err != nil {
			return nil, errors.Wrap(ErrKeyGeneration, s.err.Error())
		}

		// Step 1: reject bases that would sign with large vectors
		if gramSchmidtNorm(f, g) > gsBound {
			continue
		}

		// Step 2: f must be invertible mod q for h to exist
		h, ok := divModQ(g, f)
		if !ok {
			continue
		}

		// Step 3: complete the basis
		bigF, bigG, err := ntruSolve(bigPolyFromInts(f), bigPolyFromInts(g))
		if err != nil {
			continue
		}
		F, okF := smallInts(bigF)
		G, okG := smallInts(bigG)
		if !okF || !okG {
			continue
		}
		return &KeyPair{sk: newSecretKey(f, g, F, G), pk: &PublicKey{h: h}}, nil
	}
	return nil, errors.Wrap(ErrKeyGeneration, "no suitable basis found")
}

func smallInts(p bigPoly) ([]int64, bool) {
	out := make([]int64, len(p))
	for i, c := range p {
		if !c.IsInt64() {
			return nil, false
		}
		v := c.Int64()
		if v > maxSecretCoefficient || v < -maxSecretCoefficient {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// checkBasis verifies fG - gF = q and h = g/f for a decoded key.
func checkBasis(f, g, F, G []int64, h *Polynomial) bool {
	fG := negacyclic(f, G)
	gF := negacyclic(g, F)
	for i := range fG {
		want := int64(0)
		if i == 0 {
			want = Q
		}
		if fG[i]-gF[i] != want {
			return false
		}
	}
	want, ok := divModQ(g, f)
	return ok && want == *h
}
