// Package storage defines the persistent storage interfaces of the node.
package storage

import (
	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// Chunks persists fully assembled chunks, keyed by chunk hash.
type Chunks interface {

	// Store persists the chunk. Storing the same chunk hash twice is a
	// no-op; chunks are content-addressed, so the contents cannot differ.
	Store(chunk *lattice.Chunk) error

	// ByID retrieves the chunk with the given chunk hash. It returns
	// ErrNotFound if no chunk with that hash is stored.
	ByID(chunkID lattice.Identifier) (*lattice.Chunk, error)

	// Has checks whether a chunk with the given hash is stored.
	Has(chunkID lattice.Identifier) (bool, error)

	// Remove deletes the chunk with the given hash, if stored.
	Remove(chunkID lattice.Identifier) error
}
