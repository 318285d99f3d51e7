package falcon

import (
	"zkutxo/internal/field"
)

// Polynomial is an element of Z_q[X]/(X^N+1), coefficients in [0, Q).
type Polynomial [N]uint16

// polynomialFromInts reduces integer coefficients into [0, Q).
func polynomialFromInts(a []int64) Polynomial {
	var p Polynomial
	for i := range p {
		p[i] = uint16(modQ(a[i]))
	}
	return p
}

func modQ(v int64) int64 {
	v %= Q
	if v < 0 {
		v += Q
	}
	return v
}

// center maps [0, Q) onto (-Q/2, Q/2].
func center(v int64) int64 {
	if v > Q/2 {
		return v - Q
	}
	return v
}

// Centered returns coefficient i as a signed integer.
func (p *Polynomial) Centered(i int) int64 {
	return center(int64(p[i]))
}

// Mul multiplies in Z_q[X]/(X^N+1).
func (p *Polynomial) Mul(o *Polynomial) Polynomial {
	var acc [N]int64
	for i := 0; i < N; i++ {
		if p[i] == 0 {
			continue
		}
		pi := int64(p[i])
		for j := 0; j < N; j++ {
			k := i + j
			if k < N {
				acc[k] += pi * int64(o[j])
			} else {
				acc[k-N] -= pi * int64(o[j])
			}
		}
	}
	return polynomialFromInts(acc[:])
}

// MulModuloP returns the product of a and b in Z[X] with no reduction by
// X^N+1 or by q. Every coefficient is below N*Q^2, so the result is also the
// product over the Goldilocks field.
func MulModuloP(a, b *Polynomial) [ProductLen]uint64 {
	var out [ProductLen]uint64
	for i := 0; i < N; i++ {
		if a[i] == 0 {
			continue
		}
		ai := uint64(a[i])
		for j := 0; j < N; j++ {
			out[i+j] += ai * uint64(b[j])
		}
	}
	return out
}

// ReduceNegacyclic folds an unreduced product back into the ring, mod q.
func ReduceNegacyclic(prod *[ProductLen]uint64) Polynomial {
	var p Polynomial
	for i := 0; i < N; i++ {
		v := int64(prod[i]%Q) - int64(prod[i+N]%Q)
		p[i] = uint16(modQ(v))
	}
	return p
}

// Elements lifts the coefficients into field elements.
func (p *Polynomial) Elements() []field.Felt {
	out := make([]field.Felt, N)
	for i, c := range p {
		out[i] = field.NewFelt(uint64(c))
	}
	return out
}

// PolynomialFromElements is the inverse of Elements. Every element must be below Q.
func PolynomialFromElements(e []field.Felt) (Polynomial, bool) {
	var p Polynomial
	if len(e) != N {
		return p, false
	}
	for i := range e {
		v := e[i].Uint64()
		if v >= Q {
			return p, false
		}
		p[i] = uint16(v)
	}
	return p, true
}

// negacyclic multiplies integer polynomials in Z[X]/(X^n+1).
func negacyclic(a, b []int64) []int64 {
	n := len(a)
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		if a[i] == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			k := i + j
			if k < n {
				out[k] += a[i] * b[j]
			} else {
				out[k-n] -= a[i] * b[j]
			}
		}
	}
	return out
}

func sqNorm(vs ...[]int64) int64 {
	var s int64
	for _, v := range vs {
		for _, c := range v {
			s += c * c
		}
	}
	return s
}
