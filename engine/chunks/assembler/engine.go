// Package assembler implements the engine that assembles chunks from the
// fragments arriving over the network. It verifies fragments against the
// signed chunk header, drives the chunk cache, decodes chunks once enough
// parts are held, and hands completed chunks to the chain layer exactly
// once.
package assembler

import (
	"errors"
	"fmt"

	"github.com/gammazero/workerpool"
	"github.com/onflow/flow-go/crypto/hash"
	"github.com/rs/zerolog"

	"github.com/lattice-foundation/lattice-go/engine"
	"github.com/lattice-foundation/lattice-go/model/chunks"
	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/model/messages"
	"github.com/lattice-foundation/lattice-go/module"
	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/module/mempool"
	"github.com/lattice-foundation/lattice-go/module/merkle"
	"github.com/lattice-foundation/lattice-go/network"
	"github.com/lattice-foundation/lattice-go/storage"
)

// defaultDecodeWorkers bounds the number of concurrent chunk
// reconstructions, keeping decode work off the message-processing path.
const defaultDecodeWorkers = 4

// defaultInboundCapacity bounds each inbound message queue.
const defaultInboundCapacity = 10_000

// Engine assembles chunks from headers, parts and receipt proofs. It is the
// sole registrant of the push and provide channels, receiving both proactive
// pushes and the responses to requests dispatched by the request engine.
type Engine struct {
	unit     *engine.Unit
	log      zerolog.Logger
	metrics  module.ChunkMetrics
	me       module.Local
	assigner module.ChunkAssigner
	pending  mempool.PartialChunks
	requests mempool.ChunkRequests
	chunks   storage.Chunks
	codec    *erasure.Codec
	consumer module.ChunkConsumer
	workers  *workerpool.WorkerPool
	handler  *engine.MessageHandler
	headers  *engine.FifoMessageStore
	parts    *engine.FifoMessageStore
	receipts *engine.FifoMessageStore
}

var _ network.MessageProcessor = (*Engine)(nil)

func New(
	log zerolog.Logger,
	metrics module.ChunkMetrics,
	net network.Network,
	me module.Local,
	assigner module.ChunkAssigner,
	pending mempool.PartialChunks,
	requests mempool.ChunkRequests,
	chunks storage.Chunks,
	codec *erasure.Codec,
	consumer module.ChunkConsumer,
) (*Engine, error) {

	headers := engine.NewFifoMessageStore(defaultInboundCapacity)
	parts := engine.NewFifoMessageStore(defaultInboundCapacity)
	receipts := engine.NewFifoMessageStore(defaultInboundCapacity)

	handler := engine.NewMessageHandler(
		log,
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.ChunkHeaderPush)
				return ok
			},
			Store: headers,
		},
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.ChunkPartPush)
				return ok
			},
			Store: parts,
		},
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				_, ok := msg.Payload.(*messages.ReceiptProofPush)
				return ok
			},
			Store: receipts,
		},
	)

	e := &Engine{
		unit:     engine.NewUnit(),
		log:      log.With().Str("engine", "assembler").Logger(),
		metrics:  metrics,
		me:       me,
		assigner: assigner,
		pending:  pending,
		requests: requests,
		chunks:   chunks,
		codec:    codec,
		consumer: consumer,
		workers:  workerpool.New(defaultDecodeWorkers),
		handler:  handler,
		headers:  headers,
		parts:    parts,
		receipts: receipts,
	}

	// an evicted chunk is gone; its outstanding requests go with it
	pending.OnEject(func(chunkID lattice.Identifier) {
		requests.RemByChunkID(chunkID)
		metrics.OnCacheEviction()
	})

	_, err := net.Register(network.PushChunks, e)
	if err != nil {
		return nil, fmt.Errorf("could not register on push channel: %w", err)
	}
	_, err = net.Register(network.ProvideChunks, e)
	if err != nil {
		return nil, fmt.Errorf("could not register on provide channel: %w", err)
	}

	return e, nil
}

// Ready returns a channel that is closed when the engine is up and
// processing messages.
func (e *Engine) Ready() <-chan struct{} {
	e.unit.Launch(e.loop)
	return e.unit.Ready()
}

// Done drains the engine and its decode workers.
func (e *Engine) Done() <-chan struct{} {
	return e.unit.Done(e.workers.StopWait)
}

// Process receives an event from the network and queues it for handling.
// It never returns an error for malformed input; bad fragments are dropped
// and accounted, since any peer can send anything.
func (e *Engine) Process(channel network.Channel, originID lattice.Identifier, event interface{}) error {
	e.handler.Process(originID, event)
	return nil
}

func (e *Engine) loop() {
	for {
		select {
		case <-e.unit.Quit():
			return
		case <-e.handler.GetNotifier():
			e.processAvailableMessages()
		}
	}
}

func (e *Engine) processAvailableMessages() {
	for {
		// headers first: they unlock the verification of buffered fragments
		if msg, ok := e.headers.Get(); ok {
			e.onChunkHeader(msg.OriginID, msg.Payload.(*messages.ChunkHeaderPush).Header)
			continue
		}
		if msg, ok := e.parts.Get(); ok {
			push := msg.Payload.(*messages.ChunkPartPush)
			e.onChunkPart(msg.OriginID, push)
			continue
		}
		if msg, ok := e.receipts.Get(); ok {
			push := msg.Payload.(*messages.ReceiptProofPush)
			e.onReceiptProof(msg.OriginID, push)
			continue
		}
		return
	}
}

// onChunkHeader validates the header signature against the assigned chunk
// producer and admits it into the cache. Fragments buffered ahead of the
// header get verified as part of the insert.
func (e *Engine) onChunkHeader(originID lattice.Identifier, header *lattice.ChunkHeader) {
	if header == nil {
		return
	}
	chunkID := header.ID()
	log := e.log.With().
		Hex("chunk_id", chunkID[:]).
		Hex("origin_id", originID[:]).
		Uint64("shard", header.ShardID).
		Uint64("height", header.Height).
		Logger()

	err := e.validateHeader(header)
	if err != nil {
		e.metrics.OnInvalidFragment()
		log.Warn().Err(err).Msg("dropping invalid chunk header")
		return
	}

	status := e.pending.InsertHeader(header)
	switch status {
	case mempool.InsertAccepted:
		log.Debug().Msg("chunk header admitted")
	case mempool.InsertDuplicate:
		e.metrics.OnDuplicateFragment()
		return
	case mempool.InsertRejected:
		log.Debug().Msg("chunk header for terminal chunk dropped")
		return
	default:
		e.metrics.OnInvalidFragment()
		return
	}
	e.metrics.CacheSize(e.pending.Size(), e.pending.Bytes())

	// buffered fragments may already cross the decode threshold
	e.maybeDecode(chunkID)
}

// onChunkPart admits one part into the cache and kicks off reconstruction
// when the part crosses the decode threshold.
func (e *Engine) onChunkPart(originID lattice.Identifier, push *messages.ChunkPartPush) {
	if push.Part == nil {
		return
	}
	if push.Header != nil {
		e.onChunkHeader(originID, push.Header)
	}

	chunkID := push.ChunkID
	log := e.log.With().
		Hex("chunk_id", chunkID[:]).
		Hex("origin_id", originID[:]).
		Uint32("index", push.Part.Index).
		Logger()

	status := e.pending.InsertPart(chunkID, push.Part)
	switch status {
	case mempool.InsertAccepted:
		e.metrics.OnPartReceived()
		e.requests.Rem(mempool.RequestID(chunkID, mempool.KindPart, push.Part.Index))
	case mempool.InsertDuplicate:
		e.metrics.OnDuplicateFragment()
		return
	case mempool.InsertInvalidIndex, mempool.InsertProofMismatch:
		// the pending request, if any, stays outstanding so the part is
		// fetched again from its assigned owner
		e.metrics.OnInvalidFragment()
		log.Warn().Str("reason", status.String()).Msg("dropping invalid chunk part")
		return
	case mempool.InsertRejected:
		return
	}
	e.metrics.CacheSize(e.pending.Size(), e.pending.Bytes())

	e.maybeDecode(chunkID)
}

// onReceiptProof admits the receipt proof of one target shard.
func (e *Engine) onReceiptProof(originID lattice.Identifier, push *messages.ReceiptProofPush) {
	if push.Proof == nil {
		return
	}
	if push.Header != nil {
		e.onChunkHeader(originID, push.Header)
	}

	chunkID := push.ChunkID
	status := e.pending.InsertReceiptProof(chunkID, push.Proof)
	switch status {
	case mempool.InsertAccepted:
		e.metrics.OnReceiptProofReceived()
		e.requests.Rem(mempool.RequestID(chunkID, mempool.KindReceipt, uint32(push.Proof.ToShard)))
	case mempool.InsertDuplicate:
		e.metrics.OnDuplicateFragment()
		return
	case mempool.InsertInvalidIndex, mempool.InsertProofMismatch:
		e.metrics.OnInvalidFragment()
		e.log.Warn().
			Hex("chunk_id", chunkID[:]).
			Hex("origin_id", originID[:]).
			Uint64("to_shard", push.Proof.ToShard).
			Str("reason", status.String()).
			Msg("dropping invalid receipt proof")
		return
	case mempool.InsertRejected:
		return
	}
	e.metrics.CacheSize(e.pending.Size(), e.pending.Bytes())
}

// validateHeader runs the structural and signature checks a header must pass
// before anything of the chunk is trusted.
func (e *Engine) validateHeader(header *lattice.ChunkHeader) error {
	if header.DataShardCount < 1 {
		return fmt.Errorf("header declares no data shards")
	}
	if header.TotalShardCount <= header.DataShardCount {
		return fmt.Errorf("header declares no parity shards (data=%d, total=%d)",
			header.DataShardCount, header.TotalShardCount)
	}
	if header.OriginalLength > header.EncodedLength {
		return fmt.Errorf("header declares original length beyond encoded length (%d > %d)",
			header.OriginalLength, header.EncodedLength)
	}
	if len(header.Signature) != lattice.SignatureLen {
		return fmt.Errorf("header signature has wrong length (%d)", len(header.Signature))
	}

	epoch := e.assigner.EpochOf(header.Height)
	if header.ShardID >= e.assigner.ShardCount(epoch) {
		return fmt.Errorf("header declares unknown shard (%d)", header.ShardID)
	}

	producerID, err := e.assigner.ChunkProducer(epoch, header.ShardID, header.Height)
	if err != nil {
		return fmt.Errorf("could not determine chunk producer: %w", err)
	}
	producer, err := e.assigner.Identity(producerID)
	if err != nil {
		return fmt.Errorf("could not resolve chunk producer identity: %w", err)
	}

	valid, err := producer.PublicKey.Verify(header.Signature, header.SignableMessage(), hash.NewSHA3_256())
	if err != nil {
		return fmt.Errorf("could not verify header signature: %w", err)
	}
	if !valid {
		return fmt.Errorf("header signature invalid for assigned producer %x", producerID[:8])
	}
	return nil
}

// maybeDecode dispatches chunk reconstruction to the worker pool once the
// chunk is decodable. Decoding runs off the message-processing path so a
// large chunk never stalls fragment intake.
func (e *Engine) maybeDecode(chunkID lattice.Identifier) {
	if e.pending.Status(chunkID) != chunks.StatusDecodable {
		return
	}
	e.workers.Submit(func() {
		e.unit.Do(func() error {
			e.complete(chunkID)
			return nil
		})
	})
}

// complete reconstructs the chunk, verifies the decoded payload against the
// header commitment, and hands it downstream exactly once.
func (e *Engine) complete(chunkID lattice.Identifier) {
	log := e.log.With().Hex("chunk_id", chunkID[:]).Logger()

	// pinned so eviction cannot race the reconstruction
	e.pending.Pin(chunkID)
	defer e.pending.Unpin(chunkID)

	chunk, err := e.pending.TryComplete(chunkID)
	if errors.Is(err, mempool.ErrIncomplete) || errors.Is(err, mempool.ErrNotFound) {
		return
	}
	if errors.Is(err, erasure.ErrCorruptParts) {
		e.onInvalidChunk(chunkID, err)
		return
	}
	if err != nil {
		engine.LogError(log, err)
		return
	}

	// the parts were verified individually; re-encoding the decoded payload
	// confirms the full part set is consistent with the parts root
	err = e.verifyReconstruction(chunk)
	if err != nil {
		e.pending.MarkInvalid(chunkID)
		e.onInvalidChunk(chunkID, err)
		return
	}

	if !e.pending.MarkComplete(chunkID) {
		return
	}
	e.requests.RemByChunkID(chunkID)
	e.metrics.OnChunkComplete()
	e.metrics.CacheSize(e.pending.Size(), e.pending.Bytes())

	err = e.chunks.Store(chunk)
	if err != nil {
		log.Error().Err(err).Msg("could not persist completed chunk")
	}

	log.Info().
		Uint64("shard", chunk.Header.ShardID).
		Uint64("height", chunk.Header.Height).
		Int("payload_bytes", len(chunk.Payload)).
		Msg("chunk assembled")

	e.consumer.OnChunkComplete(chunk)
}

func (e *Engine) onInvalidChunk(chunkID lattice.Identifier, err error) {
	e.requests.RemByChunkID(chunkID)
	e.metrics.OnChunkInvalid()
	e.metrics.CacheSize(e.pending.Size(), e.pending.Bytes())
	e.log.Warn().
		Hex("chunk_id", chunkID[:]).
		Err(err).
		Msg("chunk marked invalid")
}

// verifyReconstruction re-encodes the decoded payload and checks the shard
// set against the parts root of the header.
func (e *Engine) verifyReconstruction(chunk *lattice.Chunk) error {
	header := chunk.Header
	shards, err := e.codec.Encode(chunk.Payload, header.DataShardCount, header.TotalShardCount)
	if err != nil {
		return fmt.Errorf("could not re-encode payload: %w", err)
	}
	if e.codec.EncodedLength(len(chunk.Payload), header.DataShardCount) != header.EncodedLength {
		return fmt.Errorf("encoded length disagrees with header")
	}
	root := merkle.NewTree(shards).Root()
	if lattice.Identifier(root) != header.PartsRoot {
		return fmt.Errorf("re-encoded parts disagree with parts root: %w", erasure.ErrCorruptParts)
	}
	return nil
}
