// Package badger implements the storage interfaces on a badger key-value
// store.
package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/storage"
	"github.com/lattice-foundation/lattice-go/storage/badger/operation"
)

// Chunks persists assembled chunks in badger, indexed by chunk hash and by
// (shard, height).
type Chunks struct {
	db *badger.DB
}

var _ storage.Chunks = (*Chunks)(nil)

func NewChunks(db *badger.DB) *Chunks {
	return &Chunks{db: db}
}

func (c *Chunks) Store(chunk *lattice.Chunk) error {
	chunkID := chunk.ID()
	return operation.RetryOnConflict(c.db.Update, func(tx *badger.Txn) error {
		err := operation.SkipDuplicates(operation.InsertChunk(chunkID, chunk))(tx)
		if err != nil {
			return fmt.Errorf("could not insert chunk: %w", err)
		}
		err = operation.SkipDuplicates(operation.IndexChunkHeight(chunk.Header.ShardID, chunk.Header.Height, chunkID))(tx)
		if err != nil {
			return fmt.Errorf("could not index chunk height: %w", err)
		}
		return nil
	})
}

func (c *Chunks) ByID(chunkID lattice.Identifier) (*lattice.Chunk, error) {
	var chunk lattice.Chunk
	err := c.db.View(operation.RetrieveChunk(chunkID, &chunk))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve chunk: %w", err)
	}
	return &chunk, nil
}

// ByHeight looks up the chunk stored for the given shard and height.
func (c *Chunks) ByHeight(shardID uint64, height uint64) (*lattice.Chunk, error) {
	var chunkID lattice.Identifier
	err := c.db.View(operation.LookupChunkHeight(shardID, height, &chunkID))
	if err != nil {
		return nil, fmt.Errorf("could not look up chunk height: %w", err)
	}
	return c.ByID(chunkID)
}

func (c *Chunks) Has(chunkID lattice.Identifier) (bool, error) {
	var has bool
	err := c.db.View(operation.HasChunk(chunkID, &has))
	if err != nil {
		return false, fmt.Errorf("could not check chunk: %w", err)
	}
	return has, nil
}

func (c *Chunks) Remove(chunkID lattice.Identifier) error {
	return operation.RetryOnConflict(c.db.Update, operation.RemoveChunk(chunkID))
}
