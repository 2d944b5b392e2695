// Package merkle implements the binary merkle tree used to commit to the
// parts and receipt proofs of a chunk. Leaves are hashed with a fixed leaf
// hash; when a level has an odd number of nodes the last node is duplicated,
// so every node has a sibling and all roots are reproducible across nodes.
package merkle

import (
	"bytes"

	"golang.org/x/crypto/blake2b"
)

// NodeLen is the byte length of a tree node.
const NodeLen = blake2b.Size256

// leaf and interior hashes use distinct domain tags to rule out second
// preimage attacks that move a node between levels.
var (
	leafTag     = []byte{0x00}
	interiorTag = []byte{0x01}
)

// Tree is a binary merkle tree over a fixed, ordered set of leaves.
type Tree struct {
	levels [][][]byte // levels[0] holds the leaf hashes, last level the root
}

// NewTree builds the tree over the given leaf preimages, in order. An empty
// leaf set yields a tree with an all-zero root.
func NewTree(leaves [][]byte) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}

	level := make([][]byte, 0, len(leaves))
	for _, leaf := range leaves {
		level = append(level, hashLeaf(leaf))
	}

	levels := [][][]byte{level}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashInterior(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}
}

// Root returns the root hash of the tree.
func (t *Tree) Root() [NodeLen]byte {
	var root [NodeLen]byte
	if len(t.levels) == 0 {
		return root
	}
	top := t.levels[len(t.levels)-1]
	copy(root[:], top[0])
	return root
}

// Proof returns the inclusion proof for the leaf at the given index: the
// sibling hashes from the leaf level up to (excluding) the root.
func (t *Tree) Proof(index int) ([][]byte, bool) {
	if len(t.levels) == 0 || index < 0 || index >= len(t.levels[0]) {
		return nil, false
	}

	path := make([][]byte, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling >= len(level) {
			// odd level, the last node is its own sibling
			sibling = index
		}
		node := make([]byte, NodeLen)
		copy(node, level[sibling])
		path = append(path, node)
		index >>= 1
	}
	return path, true
}

// Verify checks the inclusion proof of a leaf preimage at the given index
// against the expected root.
func Verify(root [NodeLen]byte, leaf []byte, index int, path [][]byte) bool {
	if index < 0 {
		return false
	}
	current := hashLeaf(leaf)
	for _, sibling := range path {
		if len(sibling) != NodeLen {
			return false
		}
		if index%2 == 0 {
			current = hashInterior(current, sibling)
		} else {
			current = hashInterior(sibling, current)
		}
		index >>= 1
	}
	return bytes.Equal(current, root[:])
}

func hashLeaf(leaf []byte) []byte {
	h, _ := blake2b.New256(nil)
	_, _ = h.Write(leafTag)
	_, _ = h.Write(leaf)
	return h.Sum(nil)
}

func hashInterior(left []byte, right []byte) []byte {
	h, _ := blake2b.New256(nil)
	_, _ = h.Write(interiorTag)
	_, _ = h.Write(left)
	_, _ = h.Write(right)
	return h.Sum(nil)
}
