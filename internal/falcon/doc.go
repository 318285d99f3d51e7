// doc.go - Package falcon documentation.
//
// Package falcon implements a Falcon-512 style lattice signature over the ring
// Z_q[X]/(X^512+1) with q = 12289.
//
// Keys are NTRU lattices: a short secret basis (f, g, F, G) with fG - gF = q and
// the public polynomial h = g/f mod q. A signature over a field word is a
// 40-byte nonce, the public polynomial h and a short polynomial s2 such that
// s1 = c - s2*h mod q is also short, where c is the hash of (nonce, message) to
// a point of the ring. The public key is carried around as the sponge digest of
// h, which is what UTXO owners are.
//
// Signing uses nearest-plane rounding over the NTRU basis in the FFT domain
// with randomized rounding, not the full ffSampling tree, and nothing here is
// constant-time. The package is intended for the ledger and its proving
// pipeline, which only ever consume the verification relation.
//
// The verification relation is exposed piecewise so a prover can check it
// with a bounded-size computation: MulModuloP gives the unreduced integer
// product h*s2 (1024 coefficients), from which s1 follows by a fold mod X^512+1.
package falcon
