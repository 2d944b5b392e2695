package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/lattice-foundation/lattice-go/model/lattice"
)

func InsertChunk(chunkID lattice.Identifier, chunk *lattice.Chunk) func(*badger.Txn) error {
	return insert(makePrefix(codeChunk, chunkID), chunk)
}

func RetrieveChunk(chunkID lattice.Identifier, chunk *lattice.Chunk) func(*badger.Txn) error {
	return retrieve(makePrefix(codeChunk, chunkID), chunk)
}

func HasChunk(chunkID lattice.Identifier, has *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeChunk, chunkID), has)
}

func RemoveChunk(chunkID lattice.Identifier) func(*badger.Txn) error {
	return remove(makePrefix(codeChunk, chunkID))
}

// IndexChunkHeight indexes the chunk hash by its (shard, height) position,
// so the chunk of a slot can be looked up without knowing its hash.
func IndexChunkHeight(shardID uint64, height uint64, chunkID lattice.Identifier) func(*badger.Txn) error {
	return insert(makePrefix(codeChunkHeight, shardID, height), chunkID)
}

func LookupChunkHeight(shardID uint64, height uint64, chunkID *lattice.Identifier) func(*badger.Txn) error {
	return retrieve(makePrefix(codeChunkHeight, shardID, height), chunkID)
}
