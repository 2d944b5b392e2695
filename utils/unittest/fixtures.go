// Package unittest provides the fixtures and helpers shared by the tests of
// the module.
package unittest

import (
	"crypto/rand"
	"fmt"

	"github.com/onflow/flow-go/crypto"

	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/module/merkle"
)

// IdentifierFixture returns a random identifier.
func IdentifierFixture() lattice.Identifier {
	var id lattice.Identifier
	_, _ = rand.Read(id[:])
	return id
}

// RandomBytes returns n random bytes.
func RandomBytes(n int) []byte {
	data := make([]byte, n)
	_, _ = rand.Read(data)
	return data
}

// StakingKeyFixture returns a freshly generated staking private key.
func StakingKeyFixture() crypto.PrivateKey {
	seed := make([]byte, 64)
	_, _ = rand.Read(seed)
	sk, err := crypto.GeneratePrivateKey(crypto.ECDSAP256, seed)
	if err != nil {
		panic(fmt.Sprintf("could not generate staking key: %s", err))
	}
	return sk
}

// IdentityFixture returns a validator identity with a real staking key. The
// private key is returned alongside so tests can sign as the validator.
func IdentityFixture() (*lattice.Identity, crypto.PrivateKey) {
	sk := StakingKeyFixture()
	identity := &lattice.Identity{
		NodeID:    IdentifierFixture(),
		PublicKey: sk.PublicKey(),
		Stake:     1000,
	}
	return identity, sk
}

// IdentityListFixture returns n validator identities with their private
// keys, indexed in the same order.
func IdentityListFixture(n int) (lattice.IdentityList, []crypto.PrivateKey) {
	identities := make(lattice.IdentityList, 0, n)
	keys := make([]crypto.PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		identity, sk := IdentityFixture()
		identities = append(identities, identity)
		keys = append(keys, sk)
	}
	return identities, keys
}

// ReceiptFixture returns a receipt addressed to the given shard.
func ReceiptFixture(toShard uint64) lattice.Receipt {
	return lattice.Receipt{
		ToShard: toShard,
		Body:    RandomBytes(48),
	}
}

// ChunkBodyFixture returns a chunk body with the given number of random
// transactions and one receipt per given target shard.
func ChunkBodyFixture(transactions int, receiptShards ...uint64) *lattice.ChunkBody {
	body := &lattice.ChunkBody{
		PrevStateRoot: IdentifierFixture(),
	}
	for i := 0; i < transactions; i++ {
		body.Transactions = append(body.Transactions, RandomBytes(120))
	}
	for _, shard := range receiptShards {
		body.Receipts = append(body.Receipts, ReceiptFixture(shard))
	}
	return body
}

// ProducedChunk is a fully materialized chunk fixture: the signed header,
// the payload, every part with its proof, and the receipt proofs of all
// target shards.
type ProducedChunk struct {
	Header        *lattice.ChunkHeader
	Payload       []byte
	Parts         []*lattice.Part
	ReceiptProofs []*lattice.ReceiptProof
}

func (pc *ProducedChunk) ID() lattice.Identifier {
	return pc.Header.ID()
}

// Chunk returns the assembled form of the fixture.
func (pc *ProducedChunk) Chunk() *lattice.Chunk {
	return &lattice.Chunk{
		Header:        pc.Header,
		Payload:       pc.Payload,
		ReceiptProofs: pc.ReceiptProofs,
	}
}

// ProducedChunkFixture builds a valid chunk the way a chunk producer would:
// the body is serialized, erasure-coded and committed to with merkle roots,
// and the header is signed with the given producer key.
func ProducedChunkFixture(
	producer crypto.PrivateKey,
	codec *erasure.Codec,
	body *lattice.ChunkBody,
	shardID uint64,
	height uint64,
	shardCount uint64,
) *ProducedChunk {

	payload, err := body.Encode()
	if err != nil {
		panic(fmt.Sprintf("could not encode chunk body: %s", err))
	}
	dataCount, totalCount := codec.Counts(len(payload))
	shards, err := codec.Encode(payload, dataCount, totalCount)
	if err != nil {
		panic(fmt.Sprintf("could not erasure-code payload: %s", err))
	}
	partsTree := merkle.NewTree(shards)

	grouped := make(map[uint64][]lattice.Receipt)
	for _, receipt := range body.Receipts {
		grouped[receipt.ToShard] = append(grouped[receipt.ToShard], receipt)
	}
	all := make([]*lattice.ReceiptProof, 0, shardCount)
	leaves := make([][]byte, 0, shardCount)
	for toShard := uint64(0); toShard < shardCount; toShard++ {
		proof := &lattice.ReceiptProof{
			FromShard: shardID,
			ToShard:   toShard,
			Receipts:  grouped[toShard],
		}
		all = append(all, proof)
		leaves = append(leaves, proof.LeafBody())
	}
	receiptsTree := merkle.NewTree(leaves)

	header := &lattice.ChunkHeader{
		ShardID:         shardID,
		Height:          height,
		PrevBlockHash:   IdentifierFixture(),
		PartsRoot:       partsTree.Root(),
		ReceiptsRoot:    receiptsTree.Root(),
		EncodedLength:   codec.EncodedLength(len(payload), dataCount),
		OriginalLength:  uint64(len(payload)),
		DataShardCount:  dataCount,
		TotalShardCount: totalCount,
	}
	header.Signature = SignHeader(producer, header)

	parts := make([]*lattice.Part, 0, totalCount)
	for index := uint32(0); index < totalCount; index++ {
		path, _ := partsTree.Proof(int(index))
		parts = append(parts, &lattice.Part{
			Index: index,
			Data:  shards[index],
			Proof: path,
		})
	}

	proofs := make([]*lattice.ReceiptProof, 0, shardCount)
	for _, proof := range all {
		if proof.ToShard == shardID {
			continue
		}
		path, _ := receiptsTree.Proof(int(proof.ToShard))
		proof.Proof = path
		proofs = append(proofs, proof)
	}

	return &ProducedChunk{
		Header:        header,
		Payload:       payload,
		Parts:         parts,
		ReceiptProofs: proofs,
	}
}

// SignHeader signs the header with the given producer key.
func SignHeader(producer crypto.PrivateKey, header *lattice.ChunkHeader) crypto.Signature {
	sig, err := signMessage(producer, header.SignableMessage())
	if err != nil {
		panic(fmt.Sprintf("could not sign header: %s", err))
	}
	return sig
}

