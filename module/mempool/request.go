package mempool

import (
	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// PieceKind distinguishes the two kinds of chunk fragments the request
// engine can ask peers for.
type PieceKind uint8

const (
	KindPart PieceKind = iota + 1
	KindReceipt
)

func (k PieceKind) String() string {
	switch k {
	case KindPart:
		return "part"
	case KindReceipt:
		return "receipt"
	default:
		return "unexpected"
	}
}

// PieceRequest identifies one missing part or receipt proof of a chunk,
// together with the validator assigned to hold it. At most one request per
// (chunk, kind, index) is outstanding at a time; a new request for the same
// identifier supersedes the existing one.
type PieceRequest struct {
	ChunkID lattice.Identifier
	Kind    PieceKind
	Index   uint32 // part index for parts, target shard for receipts
	Target  lattice.Identifier
	ShardID uint64
	Height  uint64
}

// RequestID derives the unique identifier of a piece request from the tuple
// that deduplicates it.
func RequestID(chunkID lattice.Identifier, kind PieceKind, index uint32) lattice.Identifier {
	return lattice.MakeID(struct {
		ChunkID lattice.Identifier
		Kind    uint8
		Index   uint32
	}{chunkID, uint8(kind), index})
}

func (r *PieceRequest) ID() lattice.Identifier {
	return RequestID(r.ChunkID, r.Kind, r.Index)
}

func (r *PieceRequest) Checksum() lattice.Identifier {
	return lattice.MakeID(r)
}

// ByteSize returns the fixed memory footprint of a request for cache byte
// accounting.
func (r *PieceRequest) ByteSize() uint64 {
	return 2*lattice.HashLen + 32
}
