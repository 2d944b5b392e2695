package module

import (
	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// ChunkConsumer is implemented by the chain layer to receive fully assembled
// and verified chunks. OnChunkComplete is invoked exactly once per chunk
// hash, only after the chunk has reached the complete state.
type ChunkConsumer interface {
	OnChunkComplete(chunk *lattice.Chunk)
}

// ChunkConsumerFunc adapts a plain function into a ChunkConsumer.
type ChunkConsumerFunc func(chunk *lattice.Chunk)

func (f ChunkConsumerFunc) OnChunkComplete(chunk *lattice.Chunk) {
	f(chunk)
}
