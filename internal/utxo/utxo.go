// utxo.go - Unspent outputs, transactions and their canonical serialization.
//
// Every entity serializes to a flat list of field elements and is identified
// by the sponge hash of that list:
//
//	Utxo:        owner(4) | value(1)
//	Transaction: input(4) | output_0(5) | ... | output_n-1(5)

package utxo

import (
	"math/bits"

	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/sponge"
)

// UtxoElements is the serialized size of one Utxo.
const UtxoElements = field.WordSize + 1

// Utxo is a value owned by a public-key word.
type Utxo struct {
	Owner field.Word
	Value field.Felt
}

// NewUtxo builds an output worth value for owner. value must be below the
// field modulus; use NewCheckedUtxo for untrusted amounts.
func NewUtxo(owner field.Word, value uint64) Utxo {
	return Utxo{Owner: owner, Value: field.NewFelt(value)}
}

// NewCheckedUtxo is NewUtxo for amounts that may not fit the field.
func NewCheckedUtxo(owner field.Word, value uint64) (Utxo, error) {
	v, err := field.CanonicalFelt(value)
	if err != nil {
		return Utxo{}, err
	}
	return Utxo{Owner: owner, Value: v}, nil
}

// Amount is the value as a plain integer.
func (u Utxo) Amount() uint64 { return u.Value.Uint64() }

// ToElements returns the canonical serialization.
func (u Utxo) ToElements() []field.Felt {
	return append(u.Owner.Elements(), u.Value)
}

// Hash identifies the Utxo in the state tree.
func (u Utxo) Hash() field.Word {
	return sponge.HashElements(u.ToElements())
}

// UtxoFromElements is the inverse of ToElements.
func UtxoFromElements(e []field.Felt) (Utxo, error) {
	if len(e) != UtxoElements {
		return Utxo{}, ErrMalformedElements
	}
	owner, err := field.WordFromElements(e)
	if err != nil {
		return Utxo{}, err
	}
	return Utxo{Owner: owner, Value: e[field.WordSize]}, nil
}

// Transaction spends the Utxo whose hash is Input and creates Outputs.
type Transaction struct {
	Input   field.Word
	Outputs []Utxo
}

// Size is the number of elements in the serialization.
func (tx *Transaction) Size() int {
	return field.WordSize + UtxoElements*len(tx.Outputs)
}

// ToElements returns the canonical serialization.
func (tx *Transaction) ToElements() []field.Felt {
	out := make([]field.Felt, 0, tx.Size())
	out = append(out, tx.Input[:]...)
	for _, o := range tx.Outputs {
		out = append(out, o.ToElements()...)
	}
	return out
}

// Hash is the message signed by the spender.
func (tx *Transaction) Hash() field.Word {
	return sponge.HashElements(tx.ToElements())
}

// TransactionFromElements parses input(4) followed by whole outputs.
func TransactionFromElements(e []field.Felt) (*Transaction, error) {
	if len(e) < field.WordSize || (len(e)-field.WordSize)%UtxoElements != 0 {
		return nil, ErrMalformedElements
	}
	input, _ := field.WordFromElements(e)
	tx := &Transaction{Input: input}
	for rest := e[field.WordSize:]; len(rest) > 0; rest = rest[UtxoElements:] {
		o, err := UtxoFromElements(rest[:UtxoElements])
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, o)
	}
	return tx, nil
}

// OutputTotal sums the output values. ok is false if the sum overflows 64 bits.
func (tx *Transaction) OutputTotal() (total uint64, ok bool) {
	for _, o := range tx.Outputs {
		var carry uint64
		total, carry = bits.Add64(total, o.Amount(), 0)
		if carry != 0 {
			return 0, false
		}
	}
	return total, true
}

// Verify checks the transaction against the Utxo it claims to spend: input
// linkage, value conservation and the spender's signature, in that order.
func (tx *Transaction) Verify(spent Utxo, sig *falcon.Signature) error {
	if !spent.Hash().Equal(tx.Input) {
		return ErrInvalidInputHash
	}
	total, ok := tx.OutputTotal()
	if !ok || total > spent.Amount() {
		return ErrExcessiveOutput
	}
	if sig == nil || !sig.Verify(tx.Hash(), spent.Owner) {
		return ErrInvalidSignature
	}
	return nil
}

// SignedTransaction is a transaction with the spender's signature over its hash.
type SignedTransaction struct {
	Transaction Transaction
	Signature   *falcon.Signature
}

// Sign signs tx with kp.
func Sign(tx Transaction, kp *falcon.KeyPair) (*SignedTransaction, error) {
	sig, err := kp.Sign(tx.Hash(), nil)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{Transaction: tx, Signature: sig}, nil
}

// Verify checks the signed transaction against the spent Utxo.
func (stx *SignedTransaction) Verify(spent Utxo) error {
	return stx.Transaction.Verify(spent, stx.Signature)
}
