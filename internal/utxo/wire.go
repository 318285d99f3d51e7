// wire.go - JSON wire forms. Every word and element is a 0x-prefixed hex
// string of its canonical big-endian bytes.

package utxo

import (
	"encoding/json"

	"github.com/pkg/errors"

	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/merkle"
)

type serializedUtxo struct {
	Owner field.HexString `json:"owner"`
	Value field.HexString `json:"value"`
}

type serializedTransaction struct {
	Input   field.HexString `json:"input"`
	Outputs []Utxo          `json:"outputs"`
}

type serializedSignedTransaction struct {
	Transaction Transaction     `json:"transaction"`
	Signature   field.HexString `json:"signature"`
}

type serializedTree struct {
	Depth  uint8             `json:"depth"`
	Leaves []field.HexString `json:"leaves"`
	Root   field.HexString   `json:"root"`
}

type serializedState struct {
	Tree  serializedTree `json:"tree"`
	Utxos []Utxo         `json:"utxos"`
}

func (u Utxo) MarshalJSON() ([]byte, error) {
	return json.Marshal(serializedUtxo{
		Owner: field.NewHexString(u.Owner.Bytes()),
		Value: field.FeltHex(u.Value),
	})
}

func (u *Utxo) UnmarshalJSON(data []byte) error {
	var s serializedUtxo
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	owner, err := s.Owner.Word()
	if err != nil {
		return errors.Wrap(err, "utxo owner")
	}
	value, err := s.Value.Felt()
	if err != nil {
		return errors.Wrap(err, "utxo value")
	}
	*u = Utxo{Owner: owner, Value: value}
	return nil
}

func (tx Transaction) MarshalJSON() ([]byte, error) {
	outputs := tx.Outputs
	if outputs == nil {
		outputs = []Utxo{}
	}
	return json.Marshal(serializedTransaction{
		Input:   field.NewHexString(tx.Input.Bytes()),
		Outputs: outputs,
	})
}

func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var s serializedTransaction
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	input, err := s.Input.Word()
	if err != nil {
		return errors.Wrap(err, "transaction input")
	}
	*tx = Transaction{Input: input, Outputs: s.Outputs}
	return nil
}

func (stx SignedTransaction) MarshalJSON() ([]byte, error) {
	if stx.Signature == nil {
		return nil, errors.New("signed transaction without signature")
	}
	return json.Marshal(serializedSignedTransaction{
		Transaction: stx.Transaction,
		Signature:   field.NewHexString(stx.Signature.Bytes()),
	})
}

func (stx *SignedTransaction) UnmarshalJSON(data []byte) error {
	var s serializedSignedTransaction
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := s.Signature.Bytes()
	if err != nil {
		return errors.Wrap(err, "signature")
	}
	sig, err := falcon.SignatureFromBytes(raw)
	if err != nil {
		return err
	}
	*stx = SignedTransaction{Transaction: s.Transaction, Signature: sig}
	return nil
}

func (s *State) MarshalJSON() ([]byte, error) {
	leaves := s.tree.Leaves()
	st := serializedState{
		Tree: serializedTree{
			Depth:  s.tree.Depth(),
			Leaves: make([]field.HexString, len(leaves)),
			Root:   field.NewHexString(s.Root().Bytes()),
		},
		Utxos: s.Utxos(),
	}
	for i, l := range leaves {
		st.Tree.Leaves[i] = field.NewHexString(l.Bytes())
	}
	return json.Marshal(st)
}

// UnmarshalJSON rebuilds the tree from its leaves and pairs every Utxo with a
// leaf holding its hash. Any disagreement between the two is an error.
func (s *State) UnmarshalJSON(data []byte) error {
	var st serializedState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Tree.Depth != TreeDepth || len(st.Tree.Leaves) != MaxSize {
		return errors.Wrapf(ErrCorruptState, "tree of depth %d with %d leaves", st.Tree.Depth, len(st.Tree.Leaves))
	}
	leaves := make([]field.Word, MaxSize)
	for i, l := range st.Tree.Leaves {
		w, err := l.Word()
		if err != nil {
			return errors.Wrapf(err, "leaf %d", i)
		}
		leaves[i] = w
	}
	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return err
	}
	root, err := st.Tree.Root.Word()
	if err != nil {
		return errors.Wrap(err, "root")
	}
	if !root.Equal(tree.Root()) {
		return errors.Wrap(ErrCorruptState, "root does not match leaves")
	}

	next := State{tree: tree, index: make(map[field.Key][]uint64)}
	for _, u := range st.Utxos {
		h := u.Hash()
		placed := false
		for i := range leaves {
			if next.slots[i] == nil && leaves[i].Equal(h) {
				v := u
				next.slots[i] = &v
				next.index[h.Key()] = insertSorted(next.index[h.Key()], uint64(i))
				placed = true
				break
			}
		}
		if !placed {
			return errors.Wrapf(ErrCorruptState, "utxo %s has no leaf", h)
		}
	}
	for i := range leaves {
		if next.slots[i] == nil && !leaves[i].IsZero() {
			return errors.Wrapf(ErrCorruptState, "leaf %d has no utxo", i)
		}
	}
	*s = next
	return nil
}
