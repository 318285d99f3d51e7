// tree.go - Fixed-depth binary Merkle tree over field words.
//
// Nodes are stored in a flat array: nodes[1] is the root and leaf i lives at
// nodes[n+i]. Slot 0 is unused. The shape never changes after construction; a
// leaf can only be overwritten.

package merkle

import (
	"math/bits"

	"github.com/pkg/errors"

	"zkutxo/internal/field"
	"zkutxo/internal/sponge"
)

var (
	ErrInvalidIndex    = errors.New("invalid node index")
	ErrInvalidTreeSize = errors.New("number of leaves must be a power of two >= 2")
	ErrRootNotInStore  = errors.New("root not in store")
	ErrNodeNotInStore  = errors.New("node not in store")
)

// NodeIndex addresses a node by depth (root = 0) and position within that depth.
type NodeIndex struct {
	Depth uint8
	Value uint64
}

// NewNodeIndex validates that value fits at the given depth.
func NewNodeIndex(depth uint8, value uint64) (NodeIndex, error) {
	if depth > 64 || (depth < 64 && value>>depth != 0) {
		return NodeIndex{}, errors.Wrapf(ErrInvalidIndex, "depth %d, value %d", depth, value)
	}
	return NodeIndex{Depth: depth, Value: value}, nil
}

// IsRoot reports whether the index addresses the root.
func (i NodeIndex) IsRoot() bool { return i.Depth == 0 }

// Path is the list of sibling nodes from the leaf level up to (but excluding) the root.
type Path []field.Word

// ComputeRoot folds node up the path. index is the node's position at the path's depth.
func (p Path) ComputeRoot(index uint64, node field.Word) field.Word {
	for _, sibling := range p {
		if index&1 == 0 {
			node = sponge.Merge(node, sibling)
		} else {
			node = sponge.Merge(sibling, node)
		}
		index >>= 1
	}
	return node
}

// Verify checks that node sits at index under root.
func (p Path) Verify(index uint64, node, root field.Word) bool {
	return p.ComputeRoot(index, node).Equal(root)
}

// InnerNode is one parent with its two children.
type InnerNode struct {
	Value field.Word
	Left  field.Word
	Right field.Word
}

// Tree is a complete binary Merkle tree.
type Tree struct {
	nodes []field.Word
}

// NewTree builds a tree over the given leaves.
func NewTree(leaves []field.Word) (*Tree, error) {
	n := len(leaves)
	if n < 2 || n&(n-1) != 0 {
		return nil, errors.Wrapf(ErrInvalidTreeSize, "got %d", n)
	}
	t := &Tree{nodes: make([]field.Word, 2*n)}
	copy(t.nodes[n:], leaves)
	for i := n - 1; i >= 1; i-- {
		t.nodes[i] = sponge.Merge(t.nodes[2*i], t.nodes[2*i+1])
	}
	return t, nil
}

// NewEmptyTree builds a tree of n zero leaves.
func NewEmptyTree(n int) (*Tree, error) {
	return NewTree(make([]field.Word, n))
}

func (t *Tree) Root() field.Word { return t.nodes[1] }

func (t *Tree) size() uint64 { return uint64(len(t.nodes) / 2) }

// Depth is the number of edges from the root to a leaf.
func (t *Tree) Depth() uint8 {
	return uint8(bits.TrailingZeros64(t.size()))
}

// Leaves returns a copy of the leaf level.
func (t *Tree) Leaves() []field.Word {
	out := make([]field.Word, t.size())
	copy(out, t.nodes[t.size():])
	return out
}

func (t *Tree) Leaf(i uint64) (field.Word, error) {
	if i >= t.size() {
		return field.Word{}, errors.Wrapf(ErrInvalidIndex, "leaf %d", i)
	}
	return t.nodes[t.size()+i], nil
}

// GetNode returns the node at index.
func (t *Tree) GetNode(index NodeIndex) (field.Word, error) {
	if index.Depth > t.Depth() || index.Value >= 1<<index.Depth {
		return field.Word{}, errors.Wrapf(ErrInvalidIndex, "depth %d, value %d", index.Depth, index.Value)
	}
	return t.nodes[(uint64(1)<<index.Depth)+index.Value], nil
}

// UpdateLeaf overwrites leaf i and rehashes the path to the root.
func (t *Tree) UpdateLeaf(i uint64, value field.Word) error {
	if i >= t.size() {
		return errors.Wrapf(ErrInvalidIndex, "leaf %d", i)
	}
	pos := t.size() + i
	t.nodes[pos] = value
	for pos > 1 {
		pos >>= 1
		t.nodes[pos] = sponge.Merge(t.nodes[2*pos], t.nodes[2*pos+1])
	}
	return nil
}

// Path returns the authentication path for the node at index.
func (t *Tree) Path(index NodeIndex) (Path, error) {
	if index.Depth == 0 || index.Depth > t.Depth() || index.Value >= 1<<index.Depth {
		return nil, errors.Wrapf(ErrInvalidIndex, "depth %d, value %d", index.Depth, index.Value)
	}
	pos := (uint64(1) << index.Depth) + index.Value
	path := make(Path, 0, index.Depth)
	for pos > 1 {
		path = append(path, t.nodes[pos^1])
		pos >>= 1
	}
	return path, nil
}

// InnerNodes lists every parent node, root first.
func (t *Tree) InnerNodes() []InnerNode {
	out := make([]InnerNode, 0, t.size()-1)
	for i := uint64(1); i < t.size(); i++ {
		out = append(out, InnerNode{Value: t.nodes[i], Left: t.nodes[2*i], Right: t.nodes[2*i+1]})
	}
	return out
}

// Clone returns an independent copy.
func (t *Tree) Clone() *Tree {
	nodes := make([]field.Word, len(t.nodes))
	copy(nodes, t.nodes)
	return &Tree{nodes: nodes}
}
