package module

import (
	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// ChunkAssigner exposes the epoch-dependent validator assignment consumed by
// the chunk pipeline. All lookups are pure and deterministic; the chunk
// layer never computes validator sets itself. Implementations are free to be
// queried concurrently without synchronization.
type ChunkAssigner interface {

	// EpochOf returns the epoch containing the given block height.
	EpochOf(height uint64) uint64

	// ShardCount returns the number of shards in the given epoch.
	ShardCount(epoch uint64) uint64

	// OwnerOf returns the validator responsible for holding and forwarding
	// the part with the given index of chunks in the given (epoch, shard).
	OwnerOf(epoch uint64, shard uint64, index uint32) (lattice.Identifier, error)

	// ChunkProducer returns the validator assigned to produce the chunk of
	// the given shard at the given height.
	ChunkProducer(epoch uint64, shard uint64, height uint64) (lattice.Identifier, error)

	// DataShardCount returns the maximum number of data shards a chunk of
	// the given (epoch, shard) may declare; it bounds per-chunk erasure
	// coding by the capacity of the validator set.
	DataShardCount(epoch uint64, shard uint64) (uint32, error)

	// Identity resolves a validator identity, including its staking key.
	Identity(nodeID lattice.Identifier) (*lattice.Identity, error)

	// Validators returns all validator identities of the given epoch.
	Validators(epoch uint64) (lattice.IdentityList, error)
}
