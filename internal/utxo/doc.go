// Package utxo implements the ledger state: a fixed-size Merkle tree of UTXO
// hashes and the transactions that move value between owners.
//
// Overview:
//   - A Utxo is an owner (the sponge digest of a Falcon public key) and a value
//   - A Transaction spends one UTXO, named by its hash, into zero or more outputs
//   - A SignedTransaction carries the owner's signature over the transaction hash
//   - State holds 8 leaves; empty and spent leaves are the zero word
//
// Rules:
//   - Insert takes the first empty leaf
//   - ProcessTx applies a transaction completely or not at all
//   - When two leaves hold the same hash, the leftmost one is spent
//   - Outputs may not exceed the spent value; the difference is burnt
//
// The element serialization here (ToElements, UtxoFromElements and
// TransactionFromElements) is the layout the transition program in package
// prover reads from the advice stack.
package utxo
