// Package assignment provides assigner implementations. The static assigner
// covers deployments with a fixed validator set and deterministic
// round-robin assignment; consensus-driven assignment plugs in behind the
// same interface.
package assignment

import (
	"fmt"

	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/module"
)

// DefaultEpochLength is the number of heights per epoch of the static
// assigner.
const DefaultEpochLength = 100

// DefaultDataShardBound caps the data shard count of a single chunk.
const DefaultDataShardBound = 64

// StaticAssigner assigns producers and part owners by rotating through a
// fixed validator list. All lookups are pure functions of their inputs.
type StaticAssigner struct {
	identities     lattice.IdentityList
	shards         uint64
	epochLength    uint64
	dataShardBound uint32
}

var _ module.ChunkAssigner = (*StaticAssigner)(nil)

type Option func(*StaticAssigner)

func WithEpochLength(length uint64) Option {
	return func(a *StaticAssigner) {
		a.epochLength = length
	}
}

func WithDataShardBound(bound uint32) Option {
	return func(a *StaticAssigner) {
		a.dataShardBound = bound
	}
}

func NewStatic(identities lattice.IdentityList, shards uint64, options ...Option) (*StaticAssigner, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("empty validator set")
	}
	if shards == 0 {
		return nil, fmt.Errorf("need at least one shard")
	}
	a := &StaticAssigner{
		identities:     identities,
		shards:         shards,
		epochLength:    DefaultEpochLength,
		dataShardBound: DefaultDataShardBound,
	}
	for _, option := range options {
		option(a)
	}
	return a, nil
}

func (a *StaticAssigner) EpochOf(height uint64) uint64 {
	return height / a.epochLength
}

func (a *StaticAssigner) ShardCount(epoch uint64) uint64 {
	return a.shards
}

func (a *StaticAssigner) OwnerOf(epoch uint64, shard uint64, index uint32) (lattice.Identifier, error) {
	pick := (shard + uint64(index)) % uint64(len(a.identities))
	return a.identities[pick].NodeID, nil
}

func (a *StaticAssigner) ChunkProducer(epoch uint64, shard uint64, height uint64) (lattice.Identifier, error) {
	pick := (shard + height) % uint64(len(a.identities))
	return a.identities[pick].NodeID, nil
}

func (a *StaticAssigner) DataShardCount(epoch uint64, shard uint64) (uint32, error) {
	return a.dataShardBound, nil
}

func (a *StaticAssigner) Identity(nodeID lattice.Identifier) (*lattice.Identity, error) {
	for _, identity := range a.identities {
		if identity.NodeID == nodeID {
			return identity, nil
		}
	}
	return nil, fmt.Errorf("unknown validator (%x)", nodeID[:8])
}

func (a *StaticAssigner) Validators(epoch uint64) (lattice.IdentityList, error) {
	return a.identities, nil
}
