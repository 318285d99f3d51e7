// program.go - The transition program the engine proves.
//
// Execute re-derives a state transition from nothing but its stack inputs and
// the advice provider: it never sees the State or the SignedTransaction. Every
// value it uses is either a public input or checked against one.
//
// Advice consumed, in order:
//
//	stack: padded tx elements, spent owner
//	map:   tx.Input -> spent utxo elements
//	store: leaves and paths under the pre-transition root
//	sig:   nonce(8) | h(512) | s2(512) | h*s2(1024), pushed then popped

package prover

import (
	"context"
	"fmt"

	"zkutxo/internal/advice"
	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/merkle"
	"zkutxo/internal/sponge"
	"zkutxo/internal/utxo"
)

// maxProductCoefficient bounds every coefficient of h*s2 over the integers.
const maxProductCoefficient = falcon.N * (falcon.Q - 1) * (falcon.Q - 1)

// Execution is the outcome of a successful run.
type Execution struct {
	OldRoot field.Word
	NewRoot field.Word
	TxHash  field.Word
	Owner   field.Word
	Nonce   [falcon.NonceElements]field.Felt

	// Signature is the witness for SignatureCircuit.
	Signature *SignatureWitness
}

// SignatureWitness holds the integer values the circuit checks.
type SignatureWitness struct {
	C  falcon.Polynomial
	H  falcon.Polynomial
	S2 falcon.Polynomial
	Pi [falcon.ProductLen]uint64
	S1 [falcon.N]int64
}

// Execute runs the transition program.
func Execute(ctx context.Context, in StackInputs, host advice.Provider) (*Execution, error) {
	// Step 1: the transaction, checked against its public hash
	tx, err := readTransaction(in, host)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 2: the spent owner
	owner, err := host.PopStackWord()
	if err != nil {
		return nil, fail(err, "owner")
	}

	// Step 3: the spent utxo, bound to the input hash and the owner
	vals, err := host.GetMappedValues(tx.Input)
	if err != nil {
		return nil, fail(err, "spent utxo")
	}
	spent, err := utxo.UtxoFromElements(vals)
	if err != nil {
		return nil, fail(err, "spent utxo")
	}
	if !spent.Hash().Equal(tx.Input) {
		return nil, fail(utxo.ErrInvalidInputHash, "spent utxo")
	}
	if !spent.Owner.Equal(owner) {
		return nil, fail(utxo.ErrInvalidSignature, "spent owner does not match advice")
	}

	// Step 4: the input leaf
	leaf, err := findLeaf(host, in.Root, tx.Input)
	if err != nil {
		return nil, err
	}

	// Step 5: value conservation
	total, ok := tx.OutputTotal()
	if !ok || total > spent.Amount() {
		return nil, fail(utxo.ErrExcessiveOutput, "conservation")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 6: the signature witness, through the advice stack
	sigAdvice, err := host.GetSignature(advice.Falcon512, owner, in.TxHash)
	if err != nil {
		return nil, fail(err, "signature witness")
	}
	host.PushStack(sigAdvice...)
	nonce, h, s2, pi, err := popSignature(host)
	if err != nil {
		return nil, err
	}

	// Step 7: the signature relation
	sw, err := verifySignature(in.TxHash, owner, nonce, h, s2, pi)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 8: tombstone the input, then insert the outputs first-fit
	root, err := setLeaf(host, in.Root, leaf, field.ZeroWord)
	if err != nil {
		return nil, fail(err, "tombstone input")
	}
	for i, o := range tx.Outputs {
		free, err := findLeaf(host, root, field.ZeroWord)
		if err != nil {
			return nil, fail(utxo.ErrFull, fmt.Sprintf("output %d", i))
		}
		if root, err = setLeaf(host, root, free, o.Hash()); err != nil {
			return nil, fail(err, fmt.Sprintf("output %d", i))
		}
	}

	return &Execution{
		OldRoot:   in.Root,
		NewRoot:   root,
		TxHash:    in.TxHash,
		Owner:     owner,
		Nonce:     nonce,
		Signature: sw,
	}, nil
}

func readTransaction(in StackInputs, host advice.Provider) (*utxo.Transaction, error) {
	if !in.validSize() {
		return nil, fail(ErrTxHashMismatch, fmt.Sprintf("transaction size %d", in.TxSize))
	}
	padded := make([]field.Felt, 0, in.paddedSize())
	for uint64(len(padded)) < in.paddedSize() {
		w, err := host.PopStackWord()
		if err != nil {
			return nil, fail(err, "transaction")
		}
		padded = append(padded, w[:]...)
	}
	for _, e := range padded[in.TxSize:] {
		if !e.IsZero() {
			return nil, fail(ErrTxHashMismatch, "non-zero transaction padding")
		}
	}
	elems := padded[:in.TxSize]
	if !sponge.HashElements(elems).Equal(in.TxHash) {
		return nil, ErrTxHashMismatch
	}
	tx, err := utxo.TransactionFromElements(elems)
	if err != nil {
		return nil, fail(err, "transaction")
	}
	return tx, nil
}

// findLeaf returns the leftmost leaf under root equal to value.
func findLeaf(host advice.Provider, root, value field.Word) (uint64, error) {
	for i := uint64(0); i < utxo.MaxSize; i++ {
		node, err := host.GetTreeNode(root, merkle.NodeIndex{Depth: utxo.TreeDepth, Value: i})
		if err != nil {
			return 0, fail(err, "leaf scan")
		}
		if node.Equal(value) {
			return i, nil
		}
	}
	return 0, fail(utxo.ErrUnknownUtxoHash, value.String())
}

func setLeaf(host advice.Provider, root field.Word, leaf uint64, value field.Word) (field.Word, error) {
	_, newRoot, err := host.UpdateMerkleNode(root, merkle.NodeIndex{Depth: utxo.TreeDepth, Value: leaf}, value)
	return newRoot, err
}

func popSignature(host advice.Provider) (nonce [falcon.NonceElements]field.Felt, h, s2, pi []field.Felt, err error) {
	pop := func(n int) ([]field.Felt, error) {
		out := make([]field.Felt, n)
		for i := range out {
			v, err := host.PopStack()
			if err != nil {
				return nil, fail(err, "signature advice")
			}
			out[i] = v
		}
		return out, nil
	}
	var ne []field.Felt
	if ne, err = pop(falcon.NonceElements); err != nil {
		return
	}
	copy(nonce[:], ne)
	if h, err = pop(falcon.N); err != nil {
		return
	}
	if s2, err = pop(falcon.N); err != nil {
		return
	}
	pi, err = pop(falcon.ProductLen)
	return
}

// verifySignature checks s1 + s2*h = c for a short (s1, s2) without reducing
// a product in the ring: pi is checked to be h*s2 at a challenge point derived
// from h, s2 and pi, then folded by X^N+1 and reduced mod q.
func verifySignature(msg, owner field.Word, nonce [falcon.NonceElements]field.Felt, hE, s2E, piE []field.Felt) (*SignatureWitness, error) {
	h, ok := falcon.PolynomialFromElements(hE)
	if !ok {
		return nil, fail(utxo.ErrInvalidSignature, "h out of range")
	}
	s2, ok := falcon.PolynomialFromElements(s2E)
	if !ok {
		return nil, fail(utxo.ErrInvalidSignature, "s2 out of range")
	}
	if !sponge.HashElements(hE).Equal(owner) {
		return nil, fail(utxo.ErrInvalidSignature, "public key does not hash to owner")
	}

	sw := &SignatureWitness{H: h, S2: s2}
	for i, e := range piE {
		v := e.Uint64()
		if v > maxProductCoefficient {
			return nil, fail(utxo.ErrInvalidSignature, fmt.Sprintf("product coefficient %d out of range", i))
		}
		sw.Pi[i] = v
	}

	transcript := make([]field.Felt, 0, len(hE)+len(s2E)+len(piE))
	transcript = append(append(append(transcript, hE...), s2E...), piE...)
	tau := sponge.HashElements(transcript)[0]
	lhs, r1, r2 := evaluate(piE, &tau), evaluate(hE, &tau), evaluate(s2E, &tau)
	var rhs field.Felt
	rhs.Mul(&r1, &r2)
	if !lhs.Equal(&rhs) {
		return nil, fail(utxo.ErrInvalidSignature, "product does not match h*s2")
	}

	sw.C = falcon.HashToPoint(msg, nonce)
	w := falcon.ReduceNegacyclic(&sw.Pi)
	var norm int64
	for i := 0; i < falcon.N; i++ {
		s1 := centerModQ(int64(sw.C[i]) - int64(w[i]))
		s2c := s2.Centered(i)
		sw.S1[i] = s1
		norm += s1*s1 + s2c*s2c
	}
	if norm > falcon.SigBound {
		return nil, fail(utxo.ErrInvalidSignature, "norm bound exceeded")
	}
	return sw, nil
}

// evaluate computes sum coeffs[i]*x^i by Horner's rule.
func evaluate(coeffs []field.Felt, x *field.Felt) field.Felt {
	var acc field.Felt
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc.Mul(&acc, x)
		acc.Add(&acc, &coeffs[i])
	}
	return acc
}

func centerModQ(v int64) int64 {
	v %= falcon.Q
	if v < 0 {
		v += falcon.Q
	}
	if v > falcon.Q/2 {
		v -= falcon.Q
	}
	return v
}

// programError reports both ErrProgramFailed and the check that failed.
type programError struct {
	cause error
	msg   string
}

func (e *programError) Error() string {
	return ErrProgramFailed.Error() + ": " + e.msg + ": " + e.cause.Error()
}

func (e *programError) Unwrap() []error { return []error{ErrProgramFailed, e.cause} }

func fail(cause error, msg string) error {
	return &programError{cause: cause, msg: msg}
}
