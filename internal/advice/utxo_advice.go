// utxo_advice.go - Advice for proving one UTXO state transition.
//
// UtxoAdvice is built from the pre-transition state and the signed
// transaction. It seeds the engine's advice and answers signature witness
// requests, but only for the transaction and key it was built with.
//
// Advice layout:
//
//	stack: tx elements, zero-padded to a multiple of 4 | spent owner (4)
//	map:   tx.Input -> spent utxo elements (owner | value)
//	store: every inner node of the state tree
//
// A new UtxoAdvice must be built for every proving attempt.

package advice

import (
	"github.com/pkg/errors"

	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/merkle"
	"zkutxo/internal/utxo"
)

// UtxoAdvice embeds a MemProvider and overrides GetSignature.
type UtxoAdvice struct {
	*MemProvider

	knownTransactions map[field.Key]utxo.SignedTransaction
	knownUtxos        map[field.Key]utxo.Utxo
}

var _ Provider = (*UtxoAdvice)(nil)

// NewUtxoAdvice builds advice for applying stx to state. It fails with
// ErrNoSuchInput when the input is not an unspent output of state.
func NewUtxoAdvice(state *utxo.State, stx *utxo.SignedTransaction) (*UtxoAdvice, error) {
	tx := stx.Transaction
	spent, ok := state.Lookup(tx.Input)
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchInput, "%s", tx.Input)
	}

	// Step 1: merkle store with the pre-transition tree
	store := merkle.NewStore()
	store.AddTree(state.Tree())

	// Step 2: stack and map
	in := &Inputs{Store: store}
	in.WithStack(PaddedElements(tx.ToElements())...).
		WithStack(spent.Owner.Elements()...).
		WithMap(tx.Input, spent.ToElements())

	// Step 3: the only transaction and utxo this advice will vouch for
	return &UtxoAdvice{
		MemProvider:       NewMemProvider(*in),
		knownTransactions: map[field.Key]utxo.SignedTransaction{tx.Hash().Key(): *stx},
		knownUtxos:        map[field.Key]utxo.Utxo{tx.Input.Key(): spent},
	}, nil
}

// PaddedElements zero-pads e to a whole number of words.
func PaddedElements(e []field.Felt) []field.Felt {
	n := (len(e) + field.WordSize - 1) / field.WordSize * field.WordSize
	out := make([]field.Felt, n)
	copy(out, e)
	return out
}

// GetSignature returns the verification witness of the known transaction's
// signature: nonce | h | s2 | h*s2 (unreduced), reversed so the engine can
// consume it from the tail.
func (a *UtxoAdvice) GetSignature(kind SignatureKind, pubKey, msg field.Word) ([]field.Felt, error) {
	if kind != Falcon512 {
		return nil, errors.Wrapf(ErrUnsupportedSignature, "%s", kind)
	}
	stx, ok := a.knownTransactions[msg.Key()]
	if !ok {
		return nil, ErrUnknownTransactionHash
	}
	spent, ok := a.knownUtxos[stx.Transaction.Input.Key()]
	if !ok {
		return nil, ErrUnknownInputUtxo
	}
	if !spent.Owner.Equal(pubKey) {
		return nil, ErrInvalidPublicKey
	}
	if stx.Signature == nil {
		return nil, errors.Wrap(ErrFailedSignatureGeneration, "transaction is unsigned")
	}
	return SignatureWitness(stx.Signature), nil
}

// SignatureWitness lays out a signature for the engine: nonce elements, h, s2
// and the unreduced product h*s2, reversed.
func SignatureWitness(sig *falcon.Signature) []field.Felt {
	h, s2 := sig.PubKeyPoly(), sig.SigPoly()
	pi := falcon.MulModuloP(&h, &s2)
	nonce := sig.NonceElements()

	out := make([]field.Felt, 0, WitnessLen)
	out = append(out, nonce[:]...)
	out = append(out, h.Elements()...)
	out = append(out, s2.Elements()...)
	for _, c := range pi {
		out = append(out, field.NewFelt(c))
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// WitnessLen is the number of elements returned by GetSignature.
const WitnessLen = falcon.NonceElements + 2*falcon.N + falcon.ProductLen
