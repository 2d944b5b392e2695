// Package producer implements the engine that produces the chunk of the
// local shard: it erasure-codes the serialized chunk body, commits to the
// parts and outgoing receipts with merkle roots, signs the header, and
// distributes the fragments to their assigned holders.
package producer

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lattice-foundation/lattice-go/engine"
	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/model/messages"
	"github.com/lattice-foundation/lattice-go/module"
	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/module/mempool"
	"github.com/lattice-foundation/lattice-go/module/merkle"
	"github.com/lattice-foundation/lattice-go/network"
	"github.com/lattice-foundation/lattice-go/storage"
)

// Engine produces and distributes the chunks the local node is assigned to
// produce.
type Engine struct {
	unit     *engine.Unit
	log      zerolog.Logger
	metrics  module.ChunkMetrics
	me       module.Local
	assigner module.ChunkAssigner
	pending  mempool.PartialChunks
	chunks   storage.Chunks
	codec    *erasure.Codec
	con      network.Conduit
}

func New(
	log zerolog.Logger,
	metrics module.ChunkMetrics,
	net network.Network,
	me module.Local,
	assigner module.ChunkAssigner,
	pending mempool.PartialChunks,
	chunks storage.Chunks,
	codec *erasure.Codec,
) (*Engine, error) {

	con, err := net.Conduit(network.PushChunks)
	if err != nil {
		return nil, fmt.Errorf("could not obtain push conduit: %w", err)
	}

	e := &Engine{
		unit:     engine.NewUnit(),
		log:      log.With().Str("engine", "producer").Logger(),
		metrics:  metrics,
		me:       me,
		assigner: assigner,
		pending:  pending,
		chunks:   chunks,
		codec:    codec,
		con:      con,
	}
	return e, nil
}

func (e *Engine) Ready() <-chan struct{} {
	return e.unit.Ready()
}

func (e *Engine) Done() <-chan struct{} {
	return e.unit.Done()
}

// ProduceChunk builds, signs, persists and distributes the chunk of the
// given shard and height from the executed chunk body. The local node must
// be the assigned chunk producer for the slot.
func (e *Engine) ProduceChunk(body *lattice.ChunkBody, shardID uint64, height uint64, prevBlockHash lattice.Identifier) (*lattice.Chunk, error) {
	var chunk *lattice.Chunk
	err := e.unit.Do(func() error {
		var err error
		chunk, err = e.produce(body, shardID, height, prevBlockHash)
		return err
	})
	return chunk, err
}

func (e *Engine) produce(body *lattice.ChunkBody, shardID uint64, height uint64, prevBlockHash lattice.Identifier) (*lattice.Chunk, error) {

	epoch := e.assigner.EpochOf(height)
	shardCount := e.assigner.ShardCount(epoch)
	if shardID >= shardCount {
		return nil, fmt.Errorf("unknown shard (%d)", shardID)
	}
	producerID, err := e.assigner.ChunkProducer(epoch, shardID, height)
	if err != nil {
		return nil, fmt.Errorf("could not determine chunk producer: %w", err)
	}
	if producerID != e.me.NodeID() {
		return nil, fmt.Errorf("node is not the assigned producer of shard %d at height %d", shardID, height)
	}

	payload, err := body.Encode()
	if err != nil {
		return nil, fmt.Errorf("could not encode chunk body: %w", err)
	}

	// the shard count of the chunk is bounded by the validator capacity of
	// the shard, growing shard size rather than shard count near the cap
	maxData, err := e.assigner.DataShardCount(epoch, shardID)
	if err != nil {
		return nil, fmt.Errorf("could not determine data shard bound: %w", err)
	}
	dataCount, totalCount := e.codec.CountsCapped(len(payload), maxData)

	shards, err := e.codec.Encode(payload, dataCount, totalCount)
	if err != nil {
		return nil, fmt.Errorf("could not erasure-code payload: %w", err)
	}
	partsTree := merkle.NewTree(shards)

	proofs, receiptsTree, err := e.buildReceiptProofs(body, shardID, shardCount)
	if err != nil {
		return nil, err
	}

	header := &lattice.ChunkHeader{
		ShardID:         shardID,
		Height:          height,
		PrevBlockHash:   prevBlockHash,
		PartsRoot:       partsTree.Root(),
		ReceiptsRoot:    receiptsTree.Root(),
		EncodedLength:   e.codec.EncodedLength(len(payload), dataCount),
		OriginalLength:  uint64(len(payload)),
		DataShardCount:  dataCount,
		TotalShardCount: totalCount,
	}
	signature, err := e.me.Sign(header.SignableMessage())
	if err != nil {
		return nil, fmt.Errorf("could not sign chunk header: %w", err)
	}
	header.Signature = signature

	chunk := &lattice.Chunk{
		Header:        header,
		Payload:       payload,
		ReceiptProofs: proofs,
	}
	chunkID := chunk.ID()

	err = e.chunks.Store(chunk)
	if err != nil {
		return nil, fmt.Errorf("could not persist chunk: %w", err)
	}

	// the own chunk is complete by construction; marking it terminal keeps
	// echoed fragments from re-entering the cache
	e.pending.MarkComplete(chunkID)
	e.metrics.OnChunkComplete()

	e.distribute(chunk, epoch, shardCount)

	e.log.Info().
		Hex("chunk_id", chunkID[:]).
		Uint64("shard", shardID).
		Uint64("height", height).
		Uint32("data_shards", dataCount).
		Uint32("total_shards", totalCount).
		Int("payload_bytes", len(payload)).
		Msg("chunk produced")

	return chunk, nil
}

// buildReceiptProofs groups the outgoing receipts by target shard and builds
// the receipts tree with one leaf per shard, so the target shard doubles as
// the leaf index.
func (e *Engine) buildReceiptProofs(body *lattice.ChunkBody, shardID uint64, shardCount uint64) ([]*lattice.ReceiptProof, *merkle.Tree, error) {

	grouped := make(map[uint64][]lattice.Receipt)
	for _, receipt := range body.Receipts {
		if receipt.ToShard >= shardCount {
			return nil, nil, fmt.Errorf("receipt targets unknown shard (%d)", receipt.ToShard)
		}
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
	tree := merkle.NewTree(leaves)

	proofs := make([]*lattice.ReceiptProof, 0, shardCount-1)
	for _, proof := range all {
		if proof.ToShard == shardID {
			continue
		}
		path, ok := tree.Proof(int(proof.ToShard))
		if !ok {
			return nil, nil, fmt.Errorf("could not build receipt proof (to_shard=%d)", proof.ToShard)
		}
		proof.Proof = path
		proofs = append(proofs, proof)
	}
	return proofs, tree, nil
}

// distribute pushes the header to all validators of the epoch, each part to
// its assigned owner, and each receipt proof to the producer of its target
// shard. Distribution is best effort; holders that miss their fragment fetch
// it through the request path.
func (e *Engine) distribute(chunk *lattice.Chunk, epoch uint64, shardCount uint64) {
	header := chunk.Header
	chunkID := chunk.ID()

	validators, err := e.assigner.Validators(epoch)
	if err != nil {
		e.log.Error().Err(err).Msg("could not resolve epoch validators")
		return
	}
	targets := make(lattice.IdentifierList, 0, len(validators))
	for _, validator := range validators {
		if validator.NodeID == e.me.NodeID() {
			continue
		}
		targets = append(targets, validator.NodeID)
	}
	err = e.con.Publish(&messages.ChunkHeaderPush{Header: header}, targets...)
	if err != nil {
		e.log.Warn().Err(err).Msg("could not broadcast chunk header")
	}

	shards, err := e.codec.Encode(chunk.Payload, header.DataShardCount, header.TotalShardCount)
	if err != nil {
		e.log.Error().Err(err).Msg("could not re-encode chunk for distribution")
		return
	}
	partsTree := merkle.NewTree(shards)

	for index := uint32(0); index < header.TotalShardCount; index++ {
		owner, err := e.assigner.OwnerOf(epoch, header.ShardID, index)
		if err != nil {
			e.log.Warn().Err(err).Uint32("index", index).Msg("could not determine part owner")
			continue
		}
		if owner == e.me.NodeID() {
			continue
		}
		path, _ := partsTree.Proof(int(index))
		push := &messages.ChunkPartPush{
			ChunkID: chunkID,
			Header:  header,
			Part: &lattice.Part{
				Index: index,
				Data:  shards[index],
				Proof: path,
			},
		}
		err = e.con.Unicast(push, owner)
		if err != nil {
			e.log.Warn().Err(err).Uint32("index", index).Msg("could not push part")
		}
	}

	for _, proof := range chunk.ReceiptProofs {
		recipient, err := e.assigner.ChunkProducer(epoch, proof.ToShard, header.Height)
		if err != nil {
			e.log.Warn().Err(err).Uint64("to_shard", proof.ToShard).Msg("could not determine receipt recipient")
			continue
		}
		if recipient == e.me.NodeID() {
			continue
		}
		push := &messages.ReceiptProofPush{
			ChunkID: chunkID,
			Header:  header,
			Proof:   proof,
		}
		err = e.con.Unicast(push, recipient)
		if err != nil {
			e.log.Warn().Err(err).Uint64("to_shard", proof.ToShard).Msg("could not push receipt proof")
		}
	}
}
