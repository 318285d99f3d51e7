package utxo

import "github.com/pkg/errors"

// State errors.
var (
	ErrFull               = errors.New("state is full")
	ErrUnknownUtxoHash    = errors.New("unknown utxo hash")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrCorruptState       = errors.New("persisted state is inconsistent")
)

// Transaction errors. ProcessTx reports them wrapped in ErrInvalidTransaction.
var (
	ErrInvalidInputHash = errors.New("input hash does not match spent utxo")
	ErrExcessiveOutput  = errors.New("outputs exceed input value")
	ErrInvalidSignature = errors.New("invalid signature")
)

var ErrMalformedElements = errors.New("malformed element serialization")

// txError keeps both the state-level and the transaction-level cause visible to errors.Is.
type txError struct {
	cause error
}

func (e *txError) Error() string {
	return ErrInvalidTransaction.Error() + ": " + e.cause.Error()
}

func (e *txError) Unwrap() []error {
	return []error{ErrInvalidTransaction, e.cause}
}
