package falcon

// Evaluation of ring elements mod q at the N roots of X^N+1, used for
// inversion during key generation and for validating decoded keys.

var (
	// psiPow[i] = psi^i mod Q for a primitive 2N-th root of unity psi.
	psiPow [2 * N]uint64
	invN   uint64
)

func init() {
	psi := powModQ(generatorModQ(), (Q-1)/(2*N))
	psiPow[0] = 1
	for i := 1; i < 2*N; i++ {
		psiPow[i] = psiPow[i-1] * psi % Q
	}
	invN = powModQ(N, Q-2)
}

func powModQ(b, e uint64) uint64 {
	r, x := uint64(1), b%Q
	for e > 0 {
		if e&1 == 1 {
			r = r * x % Q
		}
		x = x * x % Q
		e >>= 1
	}
	return r
}

// generatorModQ finds the smallest generator of Z_q^*. q-1 = 2^12 * 3.
func generatorModQ() uint64 {
	for g := uint64(2); ; g++ {
		if powModQ(g, (Q-1)/2) != 1 && powModQ(g, (Q-1)/3) != 1 {
			return g
		}
	}
}

// evalModQ evaluates a (coefficients in [0, Q)) at psi^(2j+1) for every j.
func evalModQ(a *[N]uint64) [N]uint64 {
	var out [N]uint64
	for j := 0; j < N; j++ {
		step := 2*j + 1
		e := 0
		var acc uint64
		for k := 0; k < N; k++ {
			acc += a[k] * psiPow[e]
			e += step
			if e >= 2*N {
				e -= 2 * N
			}
		}
		out[j] = acc % Q
	}
	return out
}

// interpModQ inverts evalModQ.
func interpModQ(v *[N]uint64) [N]uint64 {
	var out [N]uint64
	for k := 0; k < N; k++ {
		// exponent -(2j+1)k mod 2N, stepping by -2k
		e := (2*N - k%(2*N)) % (2 * N)
		step := (2*N - (2*k)%(2*N)) % (2 * N)
		var acc uint64
		for j := 0; j < N; j++ {
			acc += v[j] * psiPow[e]
			e += step
			if e >= 2*N {
				e -= 2 * N
			}
		}
		out[k] = acc % Q * invN % Q
	}
	return out
}

// divModQ computes num/den in Z_q[X]/(X^N+1). ok is false when den is not invertible.
func divModQ(num, den []int64) (Polynomial, bool) {
	var a, b [N]uint64
	for i := 0; i < N; i++ {
		a[i] = uint64(modQ(num[i]))
		b[i] = uint64(modQ(den[i]))
	}
	ea, eb := evalModQ(&a), evalModQ(&b)
	for j := range eb {
		if eb[j] == 0 {
			return Polynomial{}, false
		}
		ea[j] = ea[j] * powModQ(eb[j], Q-2) % Q
	}
	r := interpModQ(&ea)
	var p Polynomial
	for i := range r {
		p[i] = uint16(r[i])
	}
	return p, true
}
