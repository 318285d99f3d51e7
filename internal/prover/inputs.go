package prover

import (
	"github.com/pkg/errors"

	"zkutxo/internal/field"
	"zkutxo/internal/utxo"
)

// Engine errors.
var (
	ErrTxHashMismatch = errors.New("transaction hash does not match advice")
	ErrProgramFailed  = errors.New("transition program failed")
	ErrInvalidProof   = errors.New("invalid proof")
)

// StackInputs are the public inputs of one transition: the pre-transition
// root, the transaction hash and the size of its serialization.
type StackInputs struct {
	Root   field.Word
	TxHash field.Word
	TxSize uint64
}

// PrepareStackInputs returns the inputs for applying tx to state.
func PrepareStackInputs(state *utxo.State, tx *utxo.Transaction) StackInputs {
	return StackInputs{
		Root:   state.Root(),
		TxHash: tx.Hash(),
		TxSize: uint64(tx.Size()),
	}
}

// Elements is root | txHash | txSize.
func (in StackInputs) Elements() []field.Felt {
	out := make([]field.Felt, 0, 2*field.WordSize+1)
	out = append(out, in.Root[:]...)
	out = append(out, in.TxHash[:]...)
	return append(out, field.NewFelt(in.TxSize))
}

// maxTxSize is the largest serialization of a transaction that can fit the
// state: one that spends a leaf and fills every slot.
const maxTxSize = field.WordSize + utxo.UtxoElements*utxo.MaxSize

// validSize reports whether TxSize is the size of some transaction the state
// could accept.
func (in StackInputs) validSize() bool {
	if in.TxSize < field.WordSize || in.TxSize > maxTxSize {
		return false
	}
	return (in.TxSize-field.WordSize)%utxo.UtxoElements == 0
}

// paddedSize rounds the serialization up to whole words.
func (in StackInputs) paddedSize() uint64 {
	return (in.TxSize + field.WordSize - 1) / field.WordSize * field.WordSize
}
