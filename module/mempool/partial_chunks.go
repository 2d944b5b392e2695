package mempool

import (
	"github.com/lattice-foundation/lattice-go/model/chunks"
	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// OnEjection is called for every entry evicted from the chunk cache, with
// the chunk hash of the evicted entry. Callbacks must be non-blocking.
type OnEjection func(chunkID lattice.Identifier)

// PartialChunks is the bounded cache of chunks under assembly. It is the
// single concurrency boundary of the chunk pipeline: all fragment mutation
// goes through its operations, and operations on distinct chunk hashes never
// block each other beyond map access.
//
// An entry is created on first sight of any fragment of a chunk and removed
// on completion, invalidation, or eviction. Chunk hashes that reached a
// terminal state are remembered and never re-admitted.
type PartialChunks interface {
	// InsertHeader stores the chunk header, creating the entry if needed.
	// Parts received before the header are proof-checked against it; the
	// ones that fail verification are discarded.
	InsertHeader(header *lattice.ChunkHeader) InsertStatus

	// InsertPart stores one erasure-coded part. If the header is already
	// held, the part is verified against the parts root before admission;
	// otherwise it is buffered and verified when the header arrives.
	InsertPart(chunkID lattice.Identifier, part *lattice.Part) InsertStatus

	// InsertReceiptProof stores the receipt proof for one target shard,
	// verified against the receipts root when the header is held.
	InsertReceiptProof(chunkID lattice.Identifier, proof *lattice.ReceiptProof) InsertStatus

	// TryComplete attempts to decode the chunk once its held parts crossed
	// the data-shard threshold. It returns ErrIncomplete below the
	// threshold. If decoding fails despite a sufficient part set, the
	// chunk is marked invalid and erasure.ErrCorruptParts is returned; it
	// is never retried with the same set.
	TryComplete(chunkID lattice.Identifier) (*lattice.Chunk, error)

	// Header returns the header of the chunk, if held.
	Header(chunkID lattice.Identifier) (*lattice.ChunkHeader, bool)

	// Part returns the verified part with the given index, if held.
	Part(chunkID lattice.Identifier, index uint32) (*lattice.Part, bool)

	// ReceiptProof returns the verified receipt proof for the given target
	// shard, if held.
	ReceiptProof(chunkID lattice.Identifier, toShard uint64) (*lattice.ReceiptProof, bool)

	// Status returns the assembly status of the chunk hash.
	Status(chunkID lattice.Identifier) chunks.Status

	// MissingParts returns the part indices not yet held; it returns nil
	// before the header is known, since the bounds are undeclared.
	MissingParts(chunkID lattice.Identifier) []uint32

	// HeldReceiptShards returns the target shards whose receipt proofs are
	// held.
	HeldReceiptShards(chunkID lattice.Identifier) []uint64

	// Pin excludes the entry from eviction while it backs an active
	// production or validation attempt; Unpin lifts the exclusion.
	Pin(chunkID lattice.Identifier)
	Unpin(chunkID lattice.Identifier)

	// MarkComplete transitions the chunk to the terminal complete state and
	// drops the entry. It returns true only on the first call per chunk
	// hash, which gates the exactly-once completion callback.
	MarkComplete(chunkID lattice.Identifier) bool

	// MarkInvalid transitions the chunk to the terminal invalid state and
	// drops the entry. It returns true only on the first call.
	MarkInvalid(chunkID lattice.Identifier) bool

	// PendingChunkIDs returns the chunk hashes of all entries still under
	// assembly, for the request engine to sweep.
	PendingChunkIDs() lattice.IdentifierList

	// OnEject registers an ejection callback.
	OnEject(callback OnEjection)

	// Size returns the number of cache entries.
	Size() uint

	// Bytes returns the total byte footprint of all entries.
	Bytes() uint64
}
