package advice

import (
	"github.com/pkg/errors"

	"zkutxo/internal/field"
	"zkutxo/internal/merkle"
)

// MemProvider keeps all advice in memory. It holds no transactions and so
// cannot produce signature witnesses.
type MemProvider struct {
	// stack top is the last element
	stack  []field.Felt
	values map[field.Key][]field.Felt
	store  *merkle.Store
}

var _ Provider = (*MemProvider)(nil)

// NewMemProvider takes ownership of the given inputs.
func NewMemProvider(in Inputs) *MemProvider {
	p := &MemProvider{
		stack:  make([]field.Felt, len(in.Stack)),
		values: in.Map,
		store:  in.Store,
	}
	for i, v := range in.Stack {
		p.stack[len(in.Stack)-1-i] = v
	}
	if p.values == nil {
		p.values = make(map[field.Key][]field.Felt)
	}
	if p.store == nil {
		p.store = merkle.NewStore()
	}
	return p
}

// StackLen is the number of values left on the advice stack.
func (p *MemProvider) StackLen() int { return len(p.stack) }

func (p *MemProvider) PopStack() (field.Felt, error) {
	if len(p.stack) == 0 {
		return field.Felt{}, ErrStackEmpty
	}
	v := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return v, nil
}

func (p *MemProvider) PopStackWord() (field.Word, error) {
	var w field.Word
	if len(p.stack) < field.WordSize {
		return w, errors.Wrapf(ErrStackEmpty, "need a word, %d values left", len(p.stack))
	}
	for i := range w {
		w[i], _ = p.PopStack()
	}
	return w, nil
}

func (p *MemProvider) PopStackDWord() ([2]field.Word, error) {
	var dw [2]field.Word
	if len(p.stack) < 2*field.WordSize {
		return dw, errors.Wrapf(ErrStackEmpty, "need two words, %d values left", len(p.stack))
	}
	dw[0], _ = p.PopStackWord()
	dw[1], _ = p.PopStackWord()
	return dw, nil
}

func (p *MemProvider) PushStack(values ...field.Felt) {
	p.stack = append(p.stack, values...)
}

func (p *MemProvider) GetMappedValues(key field.Word) ([]field.Felt, error) {
	v, ok := p.values[key.Key()]
	if !ok {
		return nil, errors.Wrapf(ErrMapKeyNotFound, "%s", key)
	}
	return v, nil
}

func (p *MemProvider) InsertIntoMap(key field.Word, values []field.Felt) {
	p.values[key.Key()] = values
}

func (p *MemProvider) GetTreeNode(root field.Word, index merkle.NodeIndex) (field.Word, error) {
	return p.store.GetNode(root, index)
}

func (p *MemProvider) GetMerklePath(root field.Word, index merkle.NodeIndex) (merkle.Path, error) {
	vp, err := p.store.GetPath(root, index)
	if err != nil {
		return nil, err
	}
	return vp.Path, nil
}

func (p *MemProvider) UpdateMerkleNode(root field.Word, index merkle.NodeIndex, value field.Word) (merkle.Path, field.Word, error) {
	rp, err := p.store.SetNode(root, index, value)
	if err != nil {
		return nil, field.Word{}, err
	}
	return rp.Path, rp.Root, nil
}

func (p *MemProvider) MergeRoots(left, right field.Word) (field.Word, error) {
	return p.store.MergeRoots(left, right), nil
}

func (p *MemProvider) GetStoreSubset(roots ...field.Word) *merkle.Store {
	return p.store.Subset(roots...)
}

func (p *MemProvider) GetSignature(kind SignatureKind, _, _ field.Word) ([]field.Felt, error) {
	return nil, errors.Wrapf(ErrUnsupportedSignature, "%s: in-memory advice holds no keys", kind)
}
