package falcon

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// N is the ring degree.
	N    = 512
	logN = 9

	// Q is the coefficient modulus.
	Q = 12289

	// SigBound is the bound on the squared norm of (s1, s2).
	SigBound = 34034726

	// NonceBytes is the size of a signature nonce.
	NonceBytes = 40
	// NonceElements is the number of field elements a nonce lifts to (5 bytes each).
	NonceElements = 8

	// ProductLen is the number of coefficients of an unreduced product of two ring elements.
	ProductLen = 2 * N
)

var (
	// keygenSigma is the standard deviation used to sample f and g.
	keygenSigma = 1.17 * math.Sqrt(Q/(2.0*N))
	// gsBound bounds the squared Gram-Schmidt norm of an accepted basis.
	gsBound = 1.17 * 1.17 * Q
)

const (
	maxSignAttempts      = 1000
	maxReduceIterations  = 10000
	maxKeygenAttempts    = 1000
	maxSecretCoefficient = math.MaxInt16
)

var (
	ErrInvalidEncoding = errors.New("invalid falcon encoding")
	ErrKeyGeneration   = errors.New("falcon key generation failed")
	ErrSigning         = errors.New("falcon signing failed")
)

var errNotSolvable = errors.New("ntru equation has no solution")
