package lattice

import (
	"encoding/binary"
	"fmt"
)

// Part is one erasure-coded shard of a chunk's serialized payload, together
// with a merkle proof of inclusion under the chunk header's parts root.
type Part struct {
	Index uint32
	Data  []byte
	Proof [][]byte // ordered sequence of 32-byte sibling hashes, leaf to root
}

// Encode returns the wire encoding of the part: index, length-prefixed data
// bytes, then the proof nodes.
func (p *Part) Encode() []byte {
	size := 4 + 4 + len(p.Data) + 4 + len(p.Proof)*HashLen
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, p.Index)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Data)))
	buf = append(buf, p.Data...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Proof)))
	for _, node := range p.Proof {
		buf = append(buf, node...)
	}
	return buf
}

// DecodePart decodes a part from its wire encoding.
func DecodePart(data []byte) (*Part, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("part encoding too short (%d)", len(data))
	}
	var p Part
	p.Index = binary.BigEndian.Uint32(data[0:4])
	dataLen := binary.BigEndian.Uint32(data[4:8])
	rest := data[8:]
	// lengths are widened before comparison so declared lengths near the
	// uint32 maximum cannot wrap the bounds checks
	if uint64(len(rest)) < uint64(dataLen)+4 {
		return nil, fmt.Errorf("part data truncated (%d < %d)", len(rest), uint64(dataLen)+4)
	}
	p.Data = make([]byte, dataLen)
	copy(p.Data, rest[:dataLen])
	rest = rest[dataLen:]
	proofLen := binary.BigEndian.Uint32(rest[0:4])
	rest = rest[4:]
	if uint64(len(rest)) != uint64(proofLen)*HashLen {
		return nil, fmt.Errorf("part proof truncated (%d != %d)", len(rest), uint64(proofLen)*HashLen)
	}
	p.Proof = make([][]byte, 0, proofLen)
	for i := uint32(0); i < proofLen; i++ {
		node := make([]byte, HashLen)
		copy(node, rest[i*HashLen:(i+1)*HashLen])
		p.Proof = append(p.Proof, node)
	}
	return &p, nil
}

// ByteSize returns the approximate memory footprint of the part, used for
// cache byte accounting.
func (p *Part) ByteSize() uint64 {
	return uint64(12 + len(p.Data) + len(p.Proof)*HashLen)
}
