package prover

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"

	"zkutxo/internal/falcon"
)

// Range check widths.
const (
	coeffBits    = 14 // centered coefficient + Q/2 < 2^14
	quotientBits = 24 // quotient + 2^23 < 2^24
	halfQ        = falcon.Q / 2
)

// curve is the pairing curve every proof is made on.
var curve = ecc.BN254

// SignatureCircuit proves knowledge of a short (s1, s2) with s1 + s2*h = c in
// Z_q[X]/(X^N+1), for public c and h.
//
// The product h*s2 is supplied unreduced as Pi and checked at a point drawn
// from a commitment to S2 and Pi. Folding Pi by X^N+1 must then equal c - s1
// up to a multiple of q in every coefficient.
type SignatureCircuit struct {
	// Public inputs
	C [falcon.N]frontend.Variable `gnark:",public"`
	H [falcon.N]frontend.Variable `gnark:",public"`

	// Private inputs
	S2    [falcon.N]frontend.Variable
	S2Neg [falcon.N]frontend.Variable
	Pi    [falcon.ProductLen]frontend.Variable
	S1    [falcon.N]frontend.Variable
	K     [falcon.N]frontend.Variable
}

func (c *SignatureCircuit) Define(api frontend.API) error {
	// Step 1: challenge point bound to the product witness
	committer, ok := api.(frontend.Committer)
	if !ok {
		return errors.New("builder does not support commitments")
	}
	committed := make([]frontend.Variable, 0, falcon.N+falcon.ProductLen)
	committed = append(committed, c.S2[:]...)
	committed = append(committed, c.Pi[:]...)
	r, err := committer.Commit(committed...)
	if err != nil {
		return err
	}

	// Step 2: Pi = H*S2 over the integers
	api.AssertIsEqual(horner(api, c.Pi[:], r), api.Mul(horner(api, c.H[:], r), horner(api, c.S2[:], r)))

	// Step 3: coefficient-wise reduction and the norm
	norm := frontend.Variable(0)
	for i := 0; i < falcon.N; i++ {
		api.AssertIsBoolean(c.S2Neg[i])
		s2c := api.Sub(c.S2[i], api.Mul(c.S2Neg[i], falcon.Q))
		api.ToBinary(api.Add(s2c, halfQ), coeffBits)
		api.ToBinary(api.Add(c.S1[i], halfQ), coeffBits)
		api.ToBinary(api.Add(c.K[i], 1<<(quotientBits-1)), quotientBits)

		folded := api.Sub(c.Pi[i], c.Pi[i+falcon.N])
		api.AssertIsEqual(api.Sub(api.Sub(c.C[i], folded), c.S1[i]), api.Mul(c.K[i], falcon.Q))

		norm = api.Add(norm, api.Mul(c.S1[i], c.S1[i]), api.Mul(s2c, s2c))
	}
	api.AssertIsLessOrEqual(norm, falcon.SigBound)
	return nil
}

// horner evaluates sum coeffs[i]*x^i.
func horner(api frontend.API, coeffs []frontend.Variable, x frontend.Variable) frontend.Variable {
	acc := frontend.Variable(0)
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = api.Add(api.Mul(acc, x), coeffs[i])
	}
	return acc
}

// PublicAssignment fills the public inputs only.
func PublicAssignment(c, h *falcon.Polynomial) *SignatureCircuit {
	var a SignatureCircuit
	for i := 0; i < falcon.N; i++ {
		a.C[i] = uint64(c[i])
		a.H[i] = uint64(h[i])
	}
	return &a
}

// Assignment is the full witness for sw.
func (sw *SignatureWitness) Assignment() *SignatureCircuit {
	a := PublicAssignment(&sw.C, &sw.H)
	for i := 0; i < falcon.N; i++ {
		s2 := int64(sw.S2[i])
		a.S2[i] = s2
		if s2 > halfQ {
			a.S2Neg[i] = 1
		} else {
			a.S2Neg[i] = 0
		}
		a.S1[i] = signed(sw.S1[i])

		folded := int64(sw.Pi[i]) - int64(sw.Pi[i+falcon.N])
		a.K[i] = signed((int64(sw.C[i]) - folded - sw.S1[i]) / falcon.Q)
	}
	for i, v := range sw.Pi {
		a.Pi[i] = v
	}
	return a
}

// signed maps v into the scalar field.
func signed(v int64) *big.Int {
	return new(big.Int).Mod(big.NewInt(v), curve.ScalarField())
}
