package falcon

import (
	"math"
	"math/cmplx"
)

// Complex evaluation of real polynomials in R[X]/(X^n+1) at the n roots
// zeta_j = exp(i*pi*(2j+1)/n). Transforms are direct O(n^2) sums over a root
// table, which keeps rounding error at the level of a single sum.

func rootTable(n int) []complex128 {
	t := make([]complex128, 2*n)
	for k := range t {
		t[k] = cmplx.Rect(1, math.Pi*float64(k)/float64(n))
	}
	return t
}

func fft(a []float64) []complex128 {
	n := len(a)
	roots := rootTable(n)
	out := make([]complex128, n)
	for j := 0; j < n; j++ {
		step := 2*j + 1
		e := 0
		var acc complex128
		for k := 0; k < n; k++ {
			if a[k] != 0 {
				acc += complex(a[k], 0) * roots[e]
			}
			e = (e + step) % (2 * n)
		}
		out[j] = acc
	}
	return out
}

func ifft(v []complex128) []float64 {
	n := len(v)
	roots := rootTable(n)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		e := (2*n - k%(2*n)) % (2 * n)
		step := (2*n - (2*k)%(2*n)) % (2 * n)
		var acc complex128
		for j := 0; j < n; j++ {
			acc += v[j] * roots[e]
			e = (e + step) % (2 * n)
		}
		out[k] = real(acc) / float64(n)
	}
	return out
}

func fftInts(a []int64) []complex128 {
	f := make([]float64, len(a))
	for i, v := range a {
		f[i] = float64(v)
	}
	return fft(f)
}

// selfAdjoint returns |a_j|^2 + |b_j|^2 for every evaluation point.
func selfAdjoint(a, b []complex128) []float64 {
	out := make([]float64, len(a))
	for j := range a {
		out[j] = real(a[j]*cmplx.Conj(a[j])) + real(b[j]*cmplx.Conj(b[j]))
	}
	return out
}
