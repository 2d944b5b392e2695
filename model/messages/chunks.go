package messages

import (
	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// ChunkHeaderPush announces a newly produced chunk header to the validators
// of the network.
type ChunkHeaderPush struct {
	Header *lattice.ChunkHeader
}

// ChunkPartPush delivers one erasure-coded part of a chunk. It is sent both
// proactively by the chunk producer to the part owner and in response to a
// ChunkPartRequest. The header is attached when the sender cannot assume the
// receiver has seen it; it may be nil otherwise.
type ChunkPartPush struct {
	ChunkID lattice.Identifier
	Header  *lattice.ChunkHeader
	Part    *lattice.Part
}

// ReceiptProofPush delivers the outgoing-receipt proof of one target shard
// for a chunk, proactively or in response to a ReceiptProofRequest.
type ReceiptProofPush struct {
	ChunkID lattice.Identifier
	Header  *lattice.ChunkHeader
	Proof   *lattice.ReceiptProof
}

// ChunkPartRequest asks the assigned owner of a part to deliver it. The
// nonce distinguishes retries of the same request from duplicates.
type ChunkPartRequest struct {
	ChunkID lattice.Identifier
	Index   uint32
	Nonce   uint64
}

// ReceiptProofRequest asks a validator holding a chunk to deliver the
// receipt proof for the given target shard.
type ReceiptProofRequest struct {
	ChunkID lattice.Identifier
	ToShard uint64
	Nonce   uint64
}
