package badger_test

import (
	"testing"

	badgerdb "github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/storage"
	badgerstorage "github.com/lattice-foundation/lattice-go/storage/badger"
	"github.com/lattice-foundation/lattice-go/utils/unittest"
)

// TestChunksStoreRetrieve persists a chunk and reads it back by hash and by
// height.
func TestChunksStoreRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		store := badgerstorage.NewChunks(db)

		_, sk := unittest.IdentityFixture()
		codec := erasure.NewCodec(erasure.WithShardSize(256))
		produced := unittest.ProducedChunkFixture(sk, codec, unittest.ChunkBodyFixture(2, 1), 0, 7, 4)
		chunk := produced.Chunk()

		require.NoError(t, store.Store(chunk))

		byID, err := store.ByID(chunk.ID())
		require.NoError(t, err)
		assert.Equal(t, chunk.Header, byID.Header)
		assert.Equal(t, chunk.Payload, byID.Payload)
		assert.Equal(t, chunk.ID(), byID.ID())

		byHeight, err := store.ByHeight(0, 7)
		require.NoError(t, err)
		assert.Equal(t, chunk.ID(), byHeight.ID())

		has, err := store.Has(chunk.ID())
		require.NoError(t, err)
		assert.True(t, has)
	})
}

// TestChunksStoreIdempotent stores the same chunk twice without error.
func TestChunksStoreIdempotent(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		store := badgerstorage.NewChunks(db)

		_, sk := unittest.IdentityFixture()
		codec := erasure.NewCodec(erasure.WithShardSize(256))
		chunk := unittest.ProducedChunkFixture(sk, codec, unittest.ChunkBodyFixture(1), 1, 3, 4).Chunk()

		require.NoError(t, store.Store(chunk))
		require.NoError(t, store.Store(chunk))

		got, err := store.ByID(chunk.ID())
		require.NoError(t, err)
		assert.Equal(t, chunk.Payload, got.Payload)
	})
}

// TestChunksNotFound maps missing keys to the storage sentinel.
func TestChunksNotFound(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		store := badgerstorage.NewChunks(db)

		_, err := store.ByID(unittest.IdentifierFixture())
		require.ErrorIs(t, err, storage.ErrNotFound)

		has, err := store.Has(unittest.IdentifierFixture())
		require.NoError(t, err)
		assert.False(t, has)
	})
}

// TestChunksRemove deletes a stored chunk.
func TestChunksRemove(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		store := badgerstorage.NewChunks(db)

		_, sk := unittest.IdentityFixture()
		codec := erasure.NewCodec(erasure.WithShardSize(256))
		chunk := unittest.ProducedChunkFixture(sk, codec, unittest.ChunkBodyFixture(1), 2, 9, 4).Chunk()

		require.NoError(t, store.Store(chunk))
		require.NoError(t, store.Remove(chunk.ID()))

		_, err := store.ByID(chunk.ID())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
