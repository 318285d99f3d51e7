package falcon

import (
	"math"
	"math/big"
	"math/cmplx"

	"github.com/pkg/errors"
)

// NTRUSolve: given short f, g find F, G with fG - gF = q. The equation is
// solved over the tower of field norms down to degree 1 with an extended gcd,
// lifted back up, and Babai-reduced against (f, g) at every level.

var bigQ = big.NewInt(Q)

type bigPoly []*big.Int

func newBigPoly(n int) bigPoly {
	p := make(bigPoly, n)
	for i := range p {
		p[i] = new(big.Int)
	}
	return p
}

func bigPolyFromInts(a []int64) bigPoly {
	p := make(bigPoly, len(a))
	for i, v := range a {
		p[i] = big.NewInt(v)
	}
	return p
}

// mul multiplies in Z[X]/(X^n+1).
func (a bigPoly) mul(b bigPoly) bigPoly {
	n := len(a)
	out := newBigPoly(n)
	var t big.Int
	for i := 0; i < n; i++ {
		if a[i].Sign() == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			if b[j].Sign() == 0 {
				continue
			}
			t.Mul(a[i], b[j])
			if k := i + j; k < n {
				out[k].Add(out[k], &t)
			} else {
				out[k-n].Sub(out[k-n], &t)
			}
		}
	}
	return out
}

// fieldNorm maps a(X) to a(X)a(-X) seen as a polynomial in X^2.
func (a bigPoly) fieldNorm() bigPoly {
	h := len(a) / 2
	even, odd := make(bigPoly, h), make(bigPoly, h)
	for i := 0; i < h; i++ {
		even[i] = a[2*i]
		odd[i] = a[2*i+1]
	}
	e2, o2 := even.mul(even), odd.mul(odd)
	out := e2
	for i := 0; i < h-1; i++ {
		out[i+1].Sub(out[i+1], o2[i])
	}
	out[0].Add(out[0], o2[h-1])
	return out
}

// lift maps a(Y) to a(X^2).
func (a bigPoly) lift() bigPoly {
	out := newBigPoly(2 * len(a))
	for i, c := range a {
		out[2*i].Set(c)
	}
	return out
}

// galoisConjugate maps a(X) to a(-X).
func (a bigPoly) galoisConjugate() bigPoly {
	out := newBigPoly(len(a))
	for i, c := range a {
		if i%2 == 0 {
			out[i].Set(c)
		} else {
			out[i].Neg(c)
		}
	}
	return out
}

// bitsize is the byte-rounded bit length of the largest coefficient.
func bitsize(ps ...bigPoly) int {
	m := 0
	for _, p := range ps {
		for _, c := range p {
			if b := (c.BitLen() + 7) / 8 * 8; b > m {
				m = b
			}
		}
	}
	return m
}

// adjusted shifts every coefficient right by s bits (floor) so it fits a float64.
func (a bigPoly) adjusted(s int) []float64 {
	out := make([]float64, len(a))
	var t big.Int
	for i, c := range a {
		t.Rsh(c, uint(s))
		out[i] = float64(t.Int64())
	}
	return out
}

// reduce subtracts multiples of (f, g) from (F, G) until they stop shrinking.
func reduce(f, g, F, G bigPoly) error {
	n := len(f)
	size := max(53, bitsize(f, g))
	fa, ga := fft(f.adjusted(size-53)), fft(g.adjusted(size-53))
	den := selfAdjoint(fa, ga)

	for iter := 0; ; iter++ {
		if iter == maxReduceIterations {
			return errors.Wrap(errNotSolvable, "babai reduction did not converge")
		}
		Size := max(53, bitsize(F, G))
		if Size < size {
			return nil
		}
		Fa, Ga := fft(F.adjusted(Size-53)), fft(G.adjusted(Size-53))
		kv := make([]complex128, n)
		for j := range kv {
			num := Fa[j]*cmplx.Conj(fa[j]) + Ga[j]*cmplx.Conj(ga[j])
			kv[j] = num / complex(den[j], 0)
		}
		kr := ifft(kv)

		k := make(bigPoly, n)
		zero := true
		for i, v := range kr {
			r := math.Round(v)
			if math.IsNaN(r) || math.Abs(r) > 1<<62 {
				return errors.Wrap(errNotSolvable, "reduction factor out of range")
			}
			if r != 0 {
				zero = false
			}
			k[i] = big.NewInt(int64(r))
		}
		if zero {
			return nil
		}

		fk, gk := f.mul(k), g.mul(k)
		shift := uint(Size - size)
		var t big.Int
		for i := 0; i < n; i++ {
			F[i].Sub(F[i], t.Lsh(fk[i], shift))
			G[i].Sub(G[i], t.Lsh(gk[i], shift))
		}
	}
}

func ntruSolve(f, g bigPoly) (bigPoly, bigPoly, error) {
	if len(f) == 1 {
		var u, v, d big.Int
		d.GCD(&u, &v, f[0], g[0])
		if d.Cmp(big.NewInt(1)) != 0 {
			return nil, nil, errNotSolvable
		}
		F := bigPoly{new(big.Int).Mul(&v, bigQ)}
		F[0].Neg(F[0])
		G := bigPoly{new(big.Int).Mul(&u, bigQ)}
		return F, G, nil
	}

	Fp, Gp, err := ntruSolve(f.fieldNorm(), g.fieldNorm())
	if err != nil {
		return nil, nil, err
	}
	F := Fp.lift().mul(g.galoisConjugate())
	G := Gp.lift().mul(f.galoisConjugate())
	if err := reduce(f, g, F, G); err != nil {
		return nil, nil, err
	}
	return F, G, nil
}

// gramSchmidtNorm is the larger squared norm of the two Gram-Schmidt vectors
// of the basis [[g, -f], [G, -F]].
func gramSchmidtNorm(f, g []int64) float64 {
	fg := float64(sqNorm(f, g))
	ff := selfAdjoint(fftInts(f), fftInts(g))
	var inv float64
	for _, v := range ff {
		inv += 1 / v
	}
	other := float64(Q) * float64(Q) * inv / float64(len(f))
	return math.Max(fg, other)
}
