package lattice

import (
	"encoding/binary"
)

// Receipt is one outgoing receipt produced by chunk execution, addressed to
// a target shard. The receipt body is opaque to the chunk layer.
type Receipt struct {
	ToShard uint64
	Body    []byte
}

// ReceiptProof bundles the outgoing receipts of one (shard -> target shard)
// pair with a merkle proof of inclusion under the chunk header's receipts
// root. Proof leaves are ordered by target shard, so the target shard doubles
// as the leaf index.
type ReceiptProof struct {
	FromShard uint64
	ToShard   uint64
	Receipts  []Receipt
	Proof     [][]byte
}

// LeafBody returns the deterministic encoding of the proof contents without
// the merkle path; this is the leaf preimage of the receipts root.
func (rp *ReceiptProof) LeafBody() []byte {
	size := 16 + 4
	for _, rec := range rp.Receipts {
		size += 12 + len(rec.Body)
	}
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint64(buf, rp.FromShard)
	buf = binary.BigEndian.AppendUint64(buf, rp.ToShard)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(rp.Receipts)))
	for _, rec := range rp.Receipts {
		buf = binary.BigEndian.AppendUint64(buf, rec.ToShard)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(rec.Body)))
		buf = append(buf, rec.Body...)
	}
	return buf
}

// ByteSize returns the approximate memory footprint of the proof, used for
// cache byte accounting.
func (rp *ReceiptProof) ByteSize() uint64 {
	size := uint64(20 + len(rp.Proof)*HashLen)
	for _, rec := range rp.Receipts {
		size += uint64(12 + len(rec.Body))
	}
	return size
}
