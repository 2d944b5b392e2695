package assignment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-foundation/lattice-go/module/assignment"
	"github.com/lattice-foundation/lattice-go/utils/unittest"
)

func TestStaticAssignment(t *testing.T) {
	identities, _ := unittest.IdentityListFixture(3)
	assigner, err := assignment.NewStatic(identities, 4,
		assignment.WithEpochLength(10),
		assignment.WithDataShardBound(8),
	)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), assigner.EpochOf(9))
	assert.Equal(t, uint64(1), assigner.EpochOf(10))
	assert.Equal(t, uint64(4), assigner.ShardCount(0))

	bound, err := assigner.DataShardCount(0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), bound)

	// producers rotate with height and differ across shards
	first, err := assigner.ChunkProducer(0, 0, 0)
	require.NoError(t, err)
	second, err := assigner.ChunkProducer(0, 0, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, identities[0].NodeID, first)
	assert.Equal(t, identities[1].NodeID, second)

	// lookups are deterministic
	again, err := assigner.ChunkProducer(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	owner, err := assigner.OwnerOf(0, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, identities[(1+3)%3].NodeID, owner)

	identity, err := assigner.Identity(identities[2].NodeID)
	require.NoError(t, err)
	assert.Equal(t, identities[2], identity)
	_, err = assigner.Identity(unittest.IdentifierFixture())
	require.Error(t, err)

	validators, err := assigner.Validators(0)
	require.NoError(t, err)
	assert.Equal(t, identities, validators)
}

func TestStaticRejectsInvalidConfig(t *testing.T) {
	identities, _ := unittest.IdentityListFixture(1)

	_, err := assignment.NewStatic(nil, 4)
	require.Error(t, err)

	_, err = assignment.NewStatic(identities, 0)
	require.Error(t, err)
}
