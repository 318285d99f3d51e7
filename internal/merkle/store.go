// store.go - Content-addressed store of Merkle nodes.
//
// Every parent is keyed by its own digest and maps to its two children, so any
// number of trees (and every historical version of a tree) can share one store.
// Updates never delete: setting a node adds the new path and leaves the old
// one reachable from the old root.

package merkle

import (
	"github.com/pkg/errors"

	"zkutxo/internal/field"
	"zkutxo/internal/sponge"
)

type children struct {
	left  field.Word
	right field.Word
}

// ValuePath is a node together with its authentication path.
type ValuePath struct {
	Value field.Word
	Path  Path
}

// RootPath is the result of an update: the new root and the path of the
// replaced node (siblings are unchanged by the update).
type RootPath struct {
	Root field.Word
	Path Path
}

type Store struct {
	nodes map[field.Key]children
}

func NewStore() *Store {
	return &Store{nodes: make(map[field.Key]children)}
}

// Len is the number of parent nodes held.
func (s *Store) Len() int { return len(s.nodes) }

// Extend inserts inner nodes, e.g. from Tree.InnerNodes.
func (s *Store) Extend(nodes []InnerNode) {
	for _, n := range nodes {
		s.nodes[n.Value.Key()] = children{left: n.Left, right: n.Right}
	}
}

// AddTree inserts every inner node of t and returns its root.
func (s *Store) AddTree(t *Tree) field.Word {
	s.Extend(t.InnerNodes())
	return t.Root()
}

// walk descends from root to index, returning the node and the siblings seen
// on the way down (top first).
func (s *Store) walk(root field.Word, index NodeIndex) (field.Word, []field.Word, error) {
	if _, ok := s.nodes[root.Key()]; !ok {
		return field.Word{}, nil, errors.Wrapf(ErrRootNotInStore, "%s", root)
	}
	if index.Depth < 64 && index.Value>>index.Depth != 0 {
		return field.Word{}, nil, errors.Wrapf(ErrInvalidIndex, "depth %d, value %d", index.Depth, index.Value)
	}
	node := root
	siblings := make([]field.Word, 0, index.Depth)
	for d := int(index.Depth) - 1; d >= 0; d-- {
		c, ok := s.nodes[node.Key()]
		if !ok {
			return field.Word{}, nil, errors.Wrapf(ErrNodeNotInStore, "%s at depth %d", node, int(index.Depth)-1-d)
		}
		if (index.Value>>uint(d))&1 == 1 {
			siblings = append(siblings, c.left)
			node = c.right
		} else {
			siblings = append(siblings, c.right)
			node = c.left
		}
	}
	return node, siblings, nil
}

// GetNode resolves the node at index under root.
func (s *Store) GetNode(root field.Word, index NodeIndex) (field.Word, error) {
	node, _, err := s.walk(root, index)
	return node, err
}

// GetPath resolves a node and its authentication path (leaf level first).
func (s *Store) GetPath(root field.Word, index NodeIndex) (ValuePath, error) {
	node, siblings, err := s.walk(root, index)
	if err != nil {
		return ValuePath{}, err
	}
	return ValuePath{Value: node, Path: reversed(siblings)}, nil
}

// SetNode replaces the node at index under root and returns the new root.
func (s *Store) SetNode(root field.Word, index NodeIndex, value field.Word) (RootPath, error) {
	vp, err := s.GetPath(root, index)
	if err != nil {
		return RootPath{}, err
	}
	if index.Depth == 0 {
		return RootPath{Root: value, Path: vp.Path}, nil
	}
	node := value
	pos := index.Value
	for _, sibling := range vp.Path {
		c := children{left: node, right: sibling}
		if pos&1 == 1 {
			c = children{left: sibling, right: node}
		}
		parent := sponge.Merge(c.left, c.right)
		s.nodes[parent.Key()] = c
		node = parent
		pos >>= 1
	}
	return RootPath{Root: node, Path: vp.Path}, nil
}

// MergeRoots joins two subtrees under a new parent.
func (s *Store) MergeRoots(left, right field.Word) field.Word {
	parent := sponge.Merge(left, right)
	s.nodes[parent.Key()] = children{left: left, right: right}
	return parent
}

// Subset copies every node reachable from the given roots into a new store.
// Roots that are not present are skipped.
func (s *Store) Subset(roots ...field.Word) *Store {
	out := NewStore()
	stack := append([]field.Word(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		k := n.Key()
		if _, seen := out.nodes[k]; seen {
			continue
		}
		c, ok := s.nodes[k]
		if !ok {
			continue
		}
		out.nodes[k] = c
		stack = append(stack, c.left, c.right)
	}
	return out
}

// Has reports whether root is a known parent node.
func (s *Store) Has(root field.Word) bool {
	_, ok := s.nodes[root.Key()]
	return ok
}

func reversed(in []field.Word) Path {
	out := make(Path, len(in))
	for i, w := range in {
		out[len(in)-1-i] = w
	}
	return out
}
