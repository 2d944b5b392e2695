package lattice

import (
	"encoding/binary"
	"fmt"
)

// SignatureLen is the byte length of a chunk producer signature (raw r||s
// ECDSA over the P-256 curve).
const SignatureLen = 64

// headerWireLen is the exact wire size of an encoded chunk header.
const headerWireLen = 8 + 8 + HashLen + HashLen + HashLen + 8 + 8 + 4 + 4 + SignatureLen

// ChunkHeader is the immutable header of one chunk, the per-shard unit of a
// block. It commits to the erasure-coded parts and the outgoing receipt
// proofs of the chunk, and is signed by the assigned chunk producer. The
// header is immutable once signed; its identity is the hash of its contents.
type ChunkHeader struct {
	ShardID         uint64
	Height          uint64
	PrevBlockHash   Identifier
	PartsRoot       Identifier
	ReceiptsRoot    Identifier
	EncodedLength   uint64 // payload length after zero-padding for erasure coding
	OriginalLength  uint64 // payload length before padding
	DataShardCount  uint32
	TotalShardCount uint32
	Signature       []byte
}

// ID returns the content hash of the header, which identifies the chunk
// across the network. The signature is not part of the identity, so that the
// chunk hash is fully determined by the chunk contents.
func (h *ChunkHeader) ID() Identifier {
	return HashToID(h.SignableMessage())
}

// Checksum covers the full header including the signature.
func (h *ChunkHeader) Checksum() Identifier {
	return HashToID(h.Encode())
}

// SignableMessage returns the wire encoding of the header without the
// signature; this is the message signed by the chunk producer.
func (h *ChunkHeader) SignableMessage() []byte {
	buf := make([]byte, 0, headerWireLen-SignatureLen)
	buf = binary.BigEndian.AppendUint64(buf, h.ShardID)
	buf = binary.BigEndian.AppendUint64(buf, h.Height)
	buf = append(buf, h.PrevBlockHash[:]...)
	buf = append(buf, h.PartsRoot[:]...)
	buf = append(buf, h.ReceiptsRoot[:]...)
	buf = binary.BigEndian.AppendUint64(buf, h.EncodedLength)
	buf = binary.BigEndian.AppendUint64(buf, h.OriginalLength)
	buf = binary.BigEndian.AppendUint32(buf, h.DataShardCount)
	buf = binary.BigEndian.AppendUint32(buf, h.TotalShardCount)
	return buf
}

// Encode returns the full wire encoding of the header. All fields are
// big-endian and fixed-size so that the encoding is reproducible across
// nodes.
func (h *ChunkHeader) Encode() []byte {
	buf := h.SignableMessage()
	sig := h.Signature
	if len(sig) != SignatureLen {
		sig = make([]byte, SignatureLen)
		copy(sig, h.Signature)
	}
	return append(buf, sig...)
}

// DecodeChunkHeader decodes a header from its wire encoding.
func DecodeChunkHeader(data []byte) (*ChunkHeader, error) {
	if len(data) != headerWireLen {
		return nil, fmt.Errorf("invalid header length (%d != %d)", len(data), headerWireLen)
	}
	var h ChunkHeader
	h.ShardID = binary.BigEndian.Uint64(data[0:8])
	h.Height = binary.BigEndian.Uint64(data[8:16])
	copy(h.PrevBlockHash[:], data[16:48])
	copy(h.PartsRoot[:], data[48:80])
	copy(h.ReceiptsRoot[:], data[80:112])
	h.EncodedLength = binary.BigEndian.Uint64(data[112:120])
	h.OriginalLength = binary.BigEndian.Uint64(data[120:128])
	h.DataShardCount = binary.BigEndian.Uint32(data[128:132])
	h.TotalShardCount = binary.BigEndian.Uint32(data[132:136])
	h.Signature = make([]byte, SignatureLen)
	copy(h.Signature, data[136:])
	return &h, nil
}
