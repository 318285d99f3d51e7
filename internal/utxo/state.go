// state.go - Merkle-committed UTXO set and the transition algorithm.
//
// The tree has MaxSize leaves. A leaf is either the zero word (free slot) or
// the hash of the Utxo held in the slot with the same index. The index maps a
// hash to every leaf currently holding it, lowest first, so lookups resolve to
// the leftmost match exactly as a left-to-right scan would.
//
// NOTE: State is not safe for concurrent use; one caller owns it for the
// duration of a transition.

package utxo

import (
	"sort"

	"github.com/pkg/errors"

	"zkutxo/internal/field"
	"zkutxo/internal/merkle"
)

const (
	// MaxSize is the number of leaves (UTXO slots) in the state tree.
	MaxSize = 8
	// TreeDepth is log2(MaxSize).
	TreeDepth = 3
)

func init() {
	if MaxSize < 2 || MaxSize&(MaxSize-1) != 0 || 1<<TreeDepth != MaxSize {
		panic("utxo: MaxSize must be a power of two >= 2")
	}
}

// State is the UTXO set and its commitment.
type State struct {
	tree  *merkle.Tree
	slots [MaxSize]*Utxo
	index map[field.Key][]uint64
}

// NewState returns an empty state: every leaf zero, no UTXOs.
func NewState() *State {
	tree, err := merkle.NewEmptyTree(MaxSize)
	if err != nil {
		panic(err)
	}
	return &State{tree: tree, index: make(map[field.Key][]uint64)}
}

// Root is the commitment to the whole state.
func (s *State) Root() field.Word { return s.tree.Root() }

// Tree exposes the commitment tree. Callers must not modify it.
func (s *State) Tree() *merkle.Tree { return s.tree }

// Len is the number of unspent outputs.
func (s *State) Len() int {
	n := 0
	for _, u := range s.slots {
		if u != nil {
			n++
		}
	}
	return n
}

// Free is the number of empty slots.
func (s *State) Free() int { return MaxSize - s.Len() }

// Utxos returns the unspent outputs. Order carries no meaning.
func (s *State) Utxos() []Utxo {
	out := make([]Utxo, 0, MaxSize)
	for _, u := range s.slots {
		if u != nil {
			out = append(out, *u)
		}
	}
	return out
}

// Lookup returns the Utxo with the given hash, if present.
func (s *State) Lookup(hash field.Word) (Utxo, bool) {
	leaves := s.index[hash.Key()]
	if len(leaves) == 0 {
		return Utxo{}, false
	}
	return *s.slots[leaves[0]], true
}

// LeafIndex returns the leftmost leaf holding hash.
func (s *State) LeafIndex(hash field.Word) (uint64, bool) {
	leaves := s.index[hash.Key()]
	if len(leaves) == 0 {
		return 0, false
	}
	return leaves[0], true
}

// Insert places u in the first free slot.
func (s *State) Insert(u Utxo) error {
	for i := uint64(0); i < MaxSize; i++ {
		if s.slots[i] == nil {
			return s.put(i, u)
		}
	}
	return ErrFull
}

func (s *State) put(leaf uint64, u Utxo) error {
	h := u.Hash()
	if err := s.tree.UpdateLeaf(leaf, h); err != nil {
		return err
	}
	s.slots[leaf] = &u
	k := h.Key()
	s.index[k] = insertSorted(s.index[k], leaf)
	return nil
}

func (s *State) clear(leaf uint64) error {
	u := s.slots[leaf]
	if err := s.tree.UpdateLeaf(leaf, field.ZeroWord); err != nil {
		return err
	}
	s.slots[leaf] = nil
	k := u.Hash().Key()
	s.index[k] = removeValue(s.index[k], leaf)
	if len(s.index[k]) == 0 {
		delete(s.index, k)
	}
	return nil
}

// ProcessTx spends the transaction's input and inserts its outputs.
//
// Every check, capacity included, runs before the first edit, so a rejected
// transaction leaves the state untouched.
func (s *State) ProcessTx(stx *SignedTransaction) error {
	tx := &stx.Transaction

	// Step 1: find the leaf holding the input
	leaf, ok := s.LeafIndex(tx.Input)
	if !ok {
		return errors.Wrapf(ErrUnknownUtxoHash, "%s", tx.Input)
	}

	// Step 2: find the Utxo in that slot
	spent := s.slots[leaf]
	if spent == nil || !spent.Hash().Equal(tx.Input) {
		return errors.Wrapf(ErrUnknownUtxoHash, "%s", tx.Input)
	}

	// Step 3: input linkage, conservation, signature
	if err := stx.Verify(*spent); err != nil {
		return &txError{cause: err}
	}

	// Step 4: the spent slot is freed before outputs are placed
	if len(tx.Outputs) > s.Free()+1 {
		return errors.Wrapf(ErrFull, "%d outputs, %d free slots", len(tx.Outputs), s.Free()+1)
	}

	// Step 5: tombstone the input leaf
	if err := s.clear(leaf); err != nil {
		return err
	}

	// Step 6: outputs go first-fit, in order
	for _, o := range tx.Outputs {
		if err := s.Insert(o); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an independent copy, e.g. for a dry run.
func (s *State) Clone() *State {
	c := &State{tree: s.tree.Clone(), index: make(map[field.Key][]uint64, len(s.index))}
	for i, u := range s.slots {
		if u != nil {
			v := *u
			c.slots[i] = &v
		}
	}
	for k, v := range s.index {
		c.index[k] = append([]uint64(nil), v...)
	}
	return c
}

func insertSorted(xs []uint64, v uint64) []uint64 {
	i := sort.Search(len(xs), func(i int) bool { return xs[i] >= v })
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:])
	xs[i] = v
	return xs
}

func removeValue(xs []uint64, v uint64) []uint64 {
	for i, x := range xs {
		if x == v {
			return append(xs[:i], xs[i+1:]...)
		}
	}
	return xs
}
