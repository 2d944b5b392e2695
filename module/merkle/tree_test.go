package merkle_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-foundation/lattice-go/module/merkle"
	"github.com/lattice-foundation/lattice-go/utils/unittest"
)

func leavesFixture(n int) [][]byte {
	leaves := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		leaves = append(leaves, unittest.RandomBytes(64))
	}
	return leaves
}

// TestProofVerifies builds trees of assorted sizes, including odd leaf
// counts, and verifies the proof of every leaf.
func TestProofVerifies(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 6, 7, 8, 13} {
		t.Run(fmt.Sprintf("%d_leaves", n), func(t *testing.T) {
			leaves := leavesFixture(n)
			tree := merkle.NewTree(leaves)
			root := tree.Root()

			for i := 0; i < n; i++ {
				proof, ok := tree.Proof(i)
				require.True(t, ok)
				assert.True(t, merkle.Verify(root, leaves[i], i, proof), "leaf %d", i)
			}
		})
	}
}

// TestProofRejectsTampering checks that changing the leaf, the index or the
// path breaks verification.
func TestProofRejectsTampering(t *testing.T) {
	leaves := leavesFixture(6)
	tree := merkle.NewTree(leaves)
	root := tree.Root()

	proof, ok := tree.Proof(2)
	require.True(t, ok)
	require.True(t, merkle.Verify(root, leaves[2], 2, proof))

	// wrong leaf
	assert.False(t, merkle.Verify(root, leaves[3], 2, proof))

	// wrong index
	assert.False(t, merkle.Verify(root, leaves[2], 3, proof))

	// tampered path node
	tampered := make([][]byte, len(proof))
	copy(tampered, proof)
	tampered[0] = unittest.RandomBytes(merkle.NodeLen)
	assert.False(t, merkle.Verify(root, leaves[2], 2, tampered))

	// truncated path
	assert.False(t, merkle.Verify(root, leaves[2], 2, proof[:len(proof)-1]))
}

// TestRootChangesWithLeaves checks that distinct leaf sets yield distinct
// roots.
func TestRootChangesWithLeaves(t *testing.T) {
	leaves := leavesFixture(4)
	root := merkle.NewTree(leaves).Root()

	modified := make([][]byte, len(leaves))
	copy(modified, leaves)
	modified[1] = unittest.RandomBytes(64)

	assert.NotEqual(t, root, merkle.NewTree(modified).Root())

	// order matters
	swapped := [][]byte{leaves[1], leaves[0], leaves[2], leaves[3]}
	assert.NotEqual(t, root, merkle.NewTree(swapped).Root())
}

// TestDuplicatedLastLeaf checks the odd-count duplication rule: the last
// leaf proves with itself as sibling.
func TestDuplicatedLastLeaf(t *testing.T) {
	leaves := leavesFixture(5)
	tree := merkle.NewTree(leaves)
	root := tree.Root()

	proof, ok := tree.Proof(4)
	require.True(t, ok)
	assert.True(t, merkle.Verify(root, leaves[4], 4, proof))
}

// TestEmptyAndOutOfRange covers the degenerate inputs.
func TestEmptyAndOutOfRange(t *testing.T) {
	empty := merkle.NewTree(nil)
	assert.Equal(t, [merkle.NodeLen]byte{}, empty.Root())
	_, ok := empty.Proof(0)
	assert.False(t, ok)

	tree := merkle.NewTree(leavesFixture(3))
	_, ok = tree.Proof(-1)
	assert.False(t, ok)
	_, ok = tree.Proof(3)
	assert.False(t, ok)
}
