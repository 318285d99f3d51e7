// provider.go - The advice interface a proving engine calls while it
// re-executes a state transition.
//
// Advice is the nondeterministic input of the engine's program: values popped
// from an advice stack, groups of values resolved from a keyed map, Merkle
// nodes resolved from a content-addressed store, and signature witnesses.

package advice

import (
	"fmt"

	"github.com/pkg/errors"

	"zkutxo/internal/field"
	"zkutxo/internal/merkle"
)

// SignatureKind names a signature scheme the engine may request a witness for.
type SignatureKind int

const (
	// Falcon512 is the lattice scheme used to authorize spends.
	Falcon512 SignatureKind = iota + 1
)

func (k SignatureKind) String() string {
	switch k {
	case Falcon512:
		return "falcon512"
	default:
		return fmt.Sprintf("signature-kind(%d)", int(k))
	}
}

var (
	ErrStackEmpty           = errors.New("advice stack is empty")
	ErrMapKeyNotFound       = errors.New("advice map key not found")
	ErrUnsupportedSignature = errors.New("unsupported signature kind")
	ErrNoSuchInput          = errors.New("no such input")

	// ErrFailedSignatureGeneration is the parent of every refusal to build a
	// signature witness.
	ErrFailedSignatureGeneration = errors.New("failed signature generation")
	ErrUnknownTransactionHash    = &signatureError{"unknown transaction hash"}
	ErrUnknownInputUtxo          = &signatureError{"unknown input utxo"}
	ErrInvalidPublicKey          = &signatureError{"invalid public key for transaction"}
)

type signatureError struct {
	reason string
}

func (e *signatureError) Error() string {
	return ErrFailedSignatureGeneration.Error() + ": " + e.reason
}

func (e *signatureError) Unwrap() error { return ErrFailedSignatureGeneration }

// Provider is everything the engine may ask of its advice source.
type Provider interface {
	// PopStack removes the top element of the advice stack.
	PopStack() (field.Felt, error)
	// PopStackWord removes the top four elements as a word (first popped first).
	PopStackWord() (field.Word, error)
	// PopStackDWord removes two words.
	PopStackDWord() ([2]field.Word, error)
	// PushStack pushes values in order, so the last value ends on top.
	PushStack(values ...field.Felt)

	GetMappedValues(key field.Word) ([]field.Felt, error)
	InsertIntoMap(key field.Word, values []field.Felt)

	GetTreeNode(root field.Word, index merkle.NodeIndex) (field.Word, error)
	GetMerklePath(root field.Word, index merkle.NodeIndex) (merkle.Path, error)
	// UpdateMerkleNode replaces a node and returns the old path and the new root.
	UpdateMerkleNode(root field.Word, index merkle.NodeIndex, value field.Word) (merkle.Path, field.Word, error)
	MergeRoots(left, right field.Word) (field.Word, error)
	GetStoreSubset(roots ...field.Word) *merkle.Store

	// GetSignature returns the witness for verifying a signature by pubKey over msg.
	GetSignature(kind SignatureKind, pubKey, msg field.Word) ([]field.Felt, error)
}

// Inputs is the initial advice of one execution.
type Inputs struct {
	// Stack values, first element popped first.
	Stack []field.Felt
	Map   map[field.Key][]field.Felt
	Store *merkle.Store
}

// WithStack appends values to the stack inputs.
func (in *Inputs) WithStack(values ...field.Felt) *Inputs {
	in.Stack = append(in.Stack, values...)
	return in
}

// WithMap adds one map entry.
func (in *Inputs) WithMap(key field.Word, values []field.Felt) *Inputs {
	if in.Map == nil {
		in.Map = make(map[field.Key][]field.Felt)
	}
	in.Map[key.Key()] = values
	return in
}
