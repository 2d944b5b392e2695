package lattice

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ChunkBody is the serialized content of a chunk before erasure coding: the
// transactions of the shard at this height, the outgoing receipts they
// produced, and the previous state root the chunk builds on. Transactions
// are opaque at this layer; execution is owned by a collaborator subsystem.
type ChunkBody struct {
	Transactions  [][]byte
	Receipts      []Receipt
	PrevStateRoot Identifier
}

// Encode serializes the body into the chunk payload using the deterministic
// encoding, so that the payload bytes (and therefore the erasure-coded
// parts) are reproducible across nodes.
func (b *ChunkBody) Encode() ([]byte, error) {
	data, err := fingerprintMode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("could not encode chunk body: %w", err)
	}
	return data, nil
}

// DecodeChunkBody decodes a chunk payload back into its body.
func DecodeChunkBody(payload []byte) (*ChunkBody, error) {
	var body ChunkBody
	err := cbor.Unmarshal(payload, &body)
	if err != nil {
		return nil, fmt.Errorf("could not decode chunk body: %w", err)
	}
	return &body, nil
}

// Chunk is a fully assembled and verified chunk: the signed header, the
// decoded payload, and the receipt proofs for every target shard. A chunk in
// this form is what gets handed to the chain layer and written to storage.
type Chunk struct {
	Header        *ChunkHeader
	Payload       []byte
	ReceiptProofs []*ReceiptProof
}

// ID returns the chunk hash, which equals the header ID.
func (c *Chunk) ID() Identifier {
	return c.Header.ID()
}

func (c *Chunk) Checksum() Identifier {
	return c.Header.Checksum()
}

// Body decodes the payload into the chunk body.
func (c *Chunk) Body() (*ChunkBody, error) {
	return DecodeChunkBody(c.Payload)
}
