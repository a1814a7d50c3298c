// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides the merkle tree used to commit to the transactions
// of a block. Nodes are hashed with the ledger hasher unless another strategy
// is provided.
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ixledger/node/foundation/blockchain/hasher"
)

// ErrNotFound is returned when a value isn't a leaf of the tree.
var ErrNotFound = errors.New("merkle: value not found in tree")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// Proof order values. A sibling on the left is hashed before the running
// hash, one on the right after it.
const (
	SiblingLeft  int64 = 0
	SiblingRight int64 = 1
)

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   []byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy replaces the ledger hasher used to combine nodes.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: hasher.New,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate builds the tree level by level from the values. An odd value
// count pads the leaf level with a copy of the last leaf, upper levels pair
// an odd node with itself. Generating again discards the previous tree.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		return errors.New("merkle: cannot construct tree with no content")
	}

	leafs := make([]*Node[T], 0, len(values)+1)
	for i, value := range values {
		h, err := value.Hash()
		if err != nil {
			return fmt.Errorf("merkle: hash value %d: %w", i, err)
		}
		leafs = append(leafs, &Node[T]{Tree: t, Hash: h, Value: value, leaf: true})
	}

	if len(leafs)%2 == 1 {
		last := leafs[len(leafs)-1]
		leafs = append(leafs, &Node[T]{Tree: t, Hash: last.Hash, Value: last.Value, leaf: true, dup: true})
	}

	level := leafs
	for len(level) > 1 {
		next := make([]*Node[T], 0, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			left, right := level[i], level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}

			h, err := t.combine(left.Hash, right.Hash)
			if err != nil {
				return err
			}

			parent := Node[T]{Tree: t, Left: left, Right: right, Hash: h}
			left.Parent = &parent
			right.Parent = &parent
			next = append(next, &parent)
		}

		level = next
	}

	t.Root = level[0]
	t.Leafs = leafs
	t.MerkleRoot = t.Root.Hash

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds in the leaves.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.Values())
}

// Proof returns the sibling hashes on the path from the value to the root
// and, for each one, whether it sits on the left or the right of the path.
// Hashing the value and folding the proof with the tree's hash strategy
// reproduces the merkle root.
func (t *Tree[T]) Proof(data T) ([][]byte, []int64, error) {
	node, ok := t.find(data)
	if !ok {
		return nil, nil, ErrNotFound
	}

	var proof [][]byte
	var order []int64

	for ; node.Parent != nil; node = node.Parent {
		parent := node.Parent
		switch parent.Left {
		case node:
			proof = append(proof, parent.Right.Hash)
			order = append(order, SiblingRight)
		default:
			proof = append(proof, parent.Left.Hash)
			order = append(order, SiblingLeft)
		}
	}

	return proof, order, nil
}

// Verify recomputes every node from the leaf values and checks the result
// against the merkle root.
func (t *Tree[T]) Verify() error {
	root, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.MerkleRoot, root) {
		return errors.New("merkle: root hash invalid")
	}

	return nil
}

// VerifyData checks the value is a leaf of the tree and that every node on
// its path to the root holds the hash of its children.
func (t *Tree[T]) VerifyData(data T) error {
	node, ok := t.find(data)
	if !ok {
		return ErrNotFound
	}

	h, err := data.Hash()
	if err != nil {
		return err
	}
	if !bytes.Equal(h, node.Hash) {
		return errors.New("merkle: leaf hash doesn't match the value")
	}

	for parent := node.Parent; parent != nil; parent = parent.Parent {
		h, err := t.combine(parent.Left.Hash, parent.Right.Hash)
		if err != nil {
			return err
		}

		if !bytes.Equal(h, parent.Hash) {
			return errors.New("merkle: node hash doesn't match its children on the path to the root")
		}
	}

	if !bytes.Equal(t.Root.Hash, t.MerkleRoot) {
		return errors.New("merkle: root hash invalid")
	}

	return nil
}

// Values returns the values stored in the tree without the padding leaf.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, leaf := range t.Leafs {
		if leaf.dup {
			continue
		}
		values = append(values, leaf.Value)
	}

	return values
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.MerkleRoot)
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	var b strings.Builder
	for _, leaf := range t.Leafs {
		b.WriteString(leaf.String())
		b.WriteByte('\n')
	}

	return b.String()
}

// MarshalText implements the TextMarshaler interface. A tree is never
// marshaled, the Values are.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

// find returns the first leaf holding the value.
func (t *Tree[T]) find(data T) (*Node[T], bool) {
	for _, leaf := range t.Leafs {
		if leaf.Value.Equals(data) {
			return leaf, true
		}
	}

	return nil, false
}

// combine hashes two child hashes into their parent's hash.
func (t *Tree[T]) combine(left []byte, right []byte) ([]byte, error) {
	h := t.hashStrategy()
	if _, err := h.Write(left); err != nil {
		return nil, err
	}
	if _, err := h.Write(right); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. Leaves carry the value,
// inner nodes the hash of their children.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
	dup    bool
}

// verify returns the hash of the node recomputed from the leaf values
// below it.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	left, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	right, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	return n.Tree.combine(left, right)
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %x %v", n.leaf, n.dup, n.Hash, n.Value)
}
