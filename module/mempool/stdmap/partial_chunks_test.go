package stdmap_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-foundation/lattice-go/model/chunks"
	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/module/mempool"
	"github.com/lattice-foundation/lattice-go/module/mempool/stdmap"
	"github.com/lattice-foundation/lattice-go/utils/unittest"
)

func chunkFixture(t *testing.T, codec *erasure.Codec) *unittest.ProducedChunk {
	t.Helper()
	_, sk := unittest.IdentityFixture()
	body := unittest.ChunkBodyFixture(3, 1, 2)
	return unittest.ProducedChunkFixture(sk, codec, body, 0, 5, 4)
}

func poolFixture(t *testing.T, codec *erasure.Codec, options ...stdmap.OptionFunc) *stdmap.PartialChunks {
	t.Helper()
	pool, err := stdmap.NewPartialChunks(codec, options...)
	require.NoError(t, err)
	return pool
}

// TestAssemblyOrderIndependence inserts the fragments of a chunk in several
// random orders, with the header first, last and in between, and checks the
// reconstruction always yields the same payload.
func TestAssemblyOrderIndependence(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(128))
	produced := chunkFixture(t, codec)
	chunkID := produced.ID()

	for trial := 0; trial < 10; trial++ {
		pool := poolFixture(t, codec)

		type insert func()
		inserts := []insert{
			func() { pool.InsertHeader(produced.Header) },
		}
		for _, part := range produced.Parts {
			part := part
			inserts = append(inserts, func() { pool.InsertPart(chunkID, part) })
		}
		for _, proof := range produced.ReceiptProofs {
			proof := proof
			inserts = append(inserts, func() { pool.InsertReceiptProof(chunkID, proof) })
		}
		rand.Shuffle(len(inserts), func(i, j int) { inserts[i], inserts[j] = inserts[j], inserts[i] })
		for _, ins := range inserts {
			ins()
		}

		require.Equal(t, chunks.StatusDecodable, pool.Status(chunkID), "trial %d", trial)
		chunk, err := pool.TryComplete(chunkID)
		require.NoError(t, err, "trial %d", trial)
		assert.Equal(t, produced.Payload, chunk.Payload, "trial %d", trial)
		assert.Len(t, chunk.ReceiptProofs, len(produced.ReceiptProofs))
	}
}

// TestPreHeaderBuffering inserts parts before the header and checks they
// get verified and admitted when the header arrives.
func TestPreHeaderBuffering(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(128))
	produced := chunkFixture(t, codec)
	chunkID := produced.ID()
	pool := poolFixture(t, codec)

	for _, part := range produced.Parts {
		require.Equal(t, mempool.InsertAccepted, pool.InsertPart(chunkID, part))
	}
	assert.Equal(t, chunks.StatusAwaitingHeader, pool.Status(chunkID))
	assert.Nil(t, pool.MissingParts(chunkID), "bounds are unknown before the header")

	// a garbage part buffered alongside must be dropped on verification
	garbage := &lattice.Part{Index: 1, Data: unittest.RandomBytes(64), Proof: produced.Parts[1].Proof}
	require.Equal(t, mempool.InsertAccepted, pool.InsertPart(chunkID, garbage))

	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(produced.Header))
	assert.Equal(t, chunks.StatusDecodable, pool.Status(chunkID))
	assert.Empty(t, pool.MissingParts(chunkID))

	chunk, err := pool.TryComplete(chunkID)
	require.NoError(t, err)
	assert.Equal(t, produced.Payload, chunk.Payload)
}

// TestInsertStatuses covers duplicate, out-of-bounds and proof-mismatch
// classification.
func TestInsertStatuses(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(128))
	produced := chunkFixture(t, codec)
	chunkID := produced.ID()
	pool := poolFixture(t, codec)

	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(produced.Header))
	assert.Equal(t, mempool.InsertDuplicate, pool.InsertHeader(produced.Header))

	part := produced.Parts[0]
	require.Equal(t, mempool.InsertAccepted, pool.InsertPart(chunkID, part))
	assert.Equal(t, mempool.InsertDuplicate, pool.InsertPart(chunkID, part))

	outOfBounds := &lattice.Part{Index: produced.Header.TotalShardCount, Data: part.Data, Proof: part.Proof}
	assert.Equal(t, mempool.InsertInvalidIndex, pool.InsertPart(chunkID, outOfBounds))

	tampered := &lattice.Part{Index: 1, Data: unittest.RandomBytes(len(produced.Parts[1].Data)), Proof: produced.Parts[1].Proof}
	assert.Equal(t, mempool.InsertProofMismatch, pool.InsertPart(chunkID, tampered))

	proof := produced.ReceiptProofs[0]
	require.Equal(t, mempool.InsertAccepted, pool.InsertReceiptProof(chunkID, proof))
	assert.Equal(t, mempool.InsertDuplicate, pool.InsertReceiptProof(chunkID, proof))

	wrongOrigin := &lattice.ReceiptProof{
		FromShard: proof.FromShard + 1,
		ToShard:   proof.ToShard,
		Receipts:  proof.Receipts,
		Proof:     proof.Proof,
	}
	assert.Equal(t, mempool.InsertProofMismatch, pool.InsertReceiptProof(chunkID, wrongOrigin))
}

// TestDecodeThreshold checks that reconstruction requires exactly the
// data shard count and works from any sufficient subset.
func TestDecodeThreshold(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(128))
	produced := chunkFixture(t, codec)
	chunkID := produced.ID()
	pool := poolFixture(t, codec)

	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(produced.Header))

	dataCount := int(produced.Header.DataShardCount)
	// parity-heavy subset: skip the first data shard
	subset := produced.Parts[1 : dataCount+1]

	for i, part := range subset {
		if i < dataCount-1 {
			pool.InsertPart(chunkID, part)
			_, err := pool.TryComplete(chunkID)
			require.ErrorIs(t, err, mempool.ErrIncomplete, "below threshold with %d parts", i+1)
			assert.Equal(t, chunks.StatusAwaitingParts, pool.Status(chunkID))
		} else {
			pool.InsertPart(chunkID, part)
		}
	}

	require.Equal(t, chunks.StatusDecodable, pool.Status(chunkID))
	chunk, err := pool.TryComplete(chunkID)
	require.NoError(t, err)
	assert.Equal(t, produced.Payload, chunk.Payload)
}

// TestCorruptChunkMarkedInvalid checks that a decodable part set which
// fails reconstruction sends the chunk to the invalid state for good.
func TestCorruptChunkMarkedInvalid(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(128))
	produced := chunkFixture(t, codec)
	pool := poolFixture(t, codec)

	// a header lying about the original length passes the per-part proof
	// checks but cannot decode
	lying := *produced.Header
	lying.OriginalLength = lying.EncodedLength + 1000
	chunkID := lying.ID()

	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(&lying))
	for _, part := range produced.Parts {
		require.Equal(t, mempool.InsertAccepted, pool.InsertPart(chunkID, part))
	}

	_, err := pool.TryComplete(chunkID)
	require.ErrorIs(t, err, erasure.ErrCorruptParts)

	assert.Equal(t, chunks.StatusInvalid, pool.Status(chunkID))
	assert.Equal(t, mempool.InsertRejected, pool.InsertHeader(&lying))
	assert.Equal(t, mempool.InsertRejected, pool.InsertPart(chunkID, produced.Parts[0]))
	assert.False(t, pool.MarkInvalid(chunkID), "terminal transition happens once")
}

// TestTerminalExactlyOnce checks the exactly-once gating of the terminal
// transitions and that terminal chunk hashes are never re-admitted.
func TestTerminalExactlyOnce(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(128))
	produced := chunkFixture(t, codec)
	chunkID := produced.ID()
	pool := poolFixture(t, codec)

	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(produced.Header))

	require.True(t, pool.MarkComplete(chunkID))
	assert.False(t, pool.MarkComplete(chunkID))
	assert.False(t, pool.MarkInvalid(chunkID))

	assert.Equal(t, chunks.StatusComplete, pool.Status(chunkID))
	assert.Equal(t, uint(0), pool.Size(), "terminal entries leave the cache")
	assert.Equal(t, mempool.InsertRejected, pool.InsertHeader(produced.Header))
	assert.Equal(t, mempool.InsertRejected, pool.InsertPart(chunkID, produced.Parts[0]))
	assert.Empty(t, pool.PendingChunkIDs())
}

// TestEvictionPrefersUnpinned fills a bounded pool past its limit and
// checks the pinned entry survives while the least recently touched
// unpinned entry goes.
func TestEvictionPrefersUnpinned(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(128))
	pool := poolFixture(t, codec, stdmap.WithLimit(2))

	var evicted []lattice.Identifier
	pool.OnEject(func(chunkID lattice.Identifier) {
		evicted = append(evicted, chunkID)
	})

	first := chunkFixture(t, codec)
	second := chunkFixture(t, codec)
	third := chunkFixture(t, codec)

	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(first.Header))
	pool.Pin(first.ID())
	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(second.Header))
	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(third.Header))

	require.Len(t, evicted, 1)
	assert.Equal(t, second.ID(), evicted[0])
	assert.Equal(t, chunks.StatusAwaitingParts, pool.Status(first.ID()))
	assert.Equal(t, chunks.StatusUnknown, pool.Status(second.ID()), "evicted chunk is unknown again")

	pool.Unpin(first.ID())
}

// TestPartAndReceiptAccessors checks the fragment accessors used by the
// provide path.
func TestPartAndReceiptAccessors(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(128))
	produced := chunkFixture(t, codec)
	chunkID := produced.ID()
	pool := poolFixture(t, codec)

	require.Equal(t, mempool.InsertAccepted, pool.InsertHeader(produced.Header))
	require.Equal(t, mempool.InsertAccepted, pool.InsertPart(chunkID, produced.Parts[2]))
	require.Equal(t, mempool.InsertAccepted, pool.InsertReceiptProof(chunkID, produced.ReceiptProofs[0]))

	part, ok := pool.Part(chunkID, 2)
	require.True(t, ok)
	assert.Equal(t, produced.Parts[2], part)
	_, ok = pool.Part(chunkID, 0)
	assert.False(t, ok)

	proof, ok := pool.ReceiptProof(chunkID, produced.ReceiptProofs[0].ToShard)
	require.True(t, ok)
	assert.Equal(t, produced.ReceiptProofs[0], proof)

	held := pool.HeldReceiptShards(chunkID)
	assert.Equal(t, []uint64{produced.ReceiptProofs[0].ToShard}, held)
}
