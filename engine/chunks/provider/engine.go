// Package provider implements the engine that serves chunk fragments to
// requesting peers. Fragments are served from the chunk cache when the chunk
// is still under assembly, or regenerated from the persisted chunk when it
// has already been completed and stored.
package provider

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lattice-foundation/lattice-go/engine"
	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/model/messages"
	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/module/mempool"
	"github.com/lattice-foundation/lattice-go/module/merkle"
	"github.com/lattice-foundation/lattice-go/network"
	"github.com/lattice-foundation/lattice-go/storage"
)

const defaultInboundCapacity = 10_000

// Engine receives fragment requests and answers them with unicast pushes on
// the provide channel.
type Engine struct {
	unit    *engine.Unit
	log     zerolog.Logger
	pending mempool.PartialChunks
	chunks  storage.Chunks
	codec   *erasure.Codec
	con     network.Conduit
	handler *engine.MessageHandler
	inbound *engine.FifoMessageStore
}

var _ network.MessageProcessor = (*Engine)(nil)

func New(
	log zerolog.Logger,
	net network.Network,
	pending mempool.PartialChunks,
	chunks storage.Chunks,
	codec *erasure.Codec,
) (*Engine, error) {

	inbound := engine.NewFifoMessageStore(defaultInboundCapacity)
	handler := engine.NewMessageHandler(
		log,
		engine.Pattern{
			Match: func(msg *engine.Message) bool {
				switch msg.Payload.(type) {
				case *messages.ChunkPartRequest, *messages.ReceiptProofRequest:
					return true
				}
				return false
			},
			Store: inbound,
		},
	)

	e := &Engine{
		unit:    engine.NewUnit(),
		log:     log.With().Str("engine", "provider").Logger(),
		pending: pending,
		chunks:  chunks,
		codec:   codec,
		handler: handler,
		inbound: inbound,
	}

	_, err := net.Register(network.RequestChunks, e)
	if err != nil {
		return nil, fmt.Errorf("could not register on request channel: %w", err)
	}
	e.con, err = net.Conduit(network.ProvideChunks)
	if err != nil {
		return nil, fmt.Errorf("could not obtain provide conduit: %w", err)
	}

	return e, nil
}

func (e *Engine) Ready() <-chan struct{} {
	e.unit.Launch(e.loop)
	return e.unit.Ready()
}

func (e *Engine) Done() <-chan struct{} {
	return e.unit.Done()
}

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
			for {
				msg, ok := e.inbound.Get()
				if !ok {
					break
				}
				e.onRequest(msg)
			}
		}
	}
}

func (e *Engine) onRequest(msg *engine.Message) {
	var err error
	switch request := msg.Payload.(type) {
	case *messages.ChunkPartRequest:
		err = e.onPartRequest(msg.OriginID, request)
	case *messages.ReceiptProofRequest:
		err = e.onReceiptProofRequest(msg.OriginID, request)
	}
	if err != nil {
		// not holding the fragment is normal; the requester retries against
		// other sources or gives up on its own schedule
		e.log.Debug().Err(err).
			Hex("origin_id", msg.OriginID[:]).
			Msg("could not serve request")
	}
}

func (e *Engine) onPartRequest(originID lattice.Identifier, request *messages.ChunkPartRequest) error {
	header, part, err := e.lookupPart(request.ChunkID, request.Index)
	if err != nil {
		return err
	}
	return e.con.Unicast(&messages.ChunkPartPush{
		ChunkID: request.ChunkID,
		Header:  header,
		Part:    part,
	}, originID)
}

func (e *Engine) onReceiptProofRequest(originID lattice.Identifier, request *messages.ReceiptProofRequest) error {
	header, proof, err := e.lookupReceiptProof(request.ChunkID, request.ToShard)
	if err != nil {
		return err
	}
	return e.con.Unicast(&messages.ReceiptProofPush{
		ChunkID: request.ChunkID,
		Header:  header,
		Proof:   proof,
	}, originID)
}

// lookupPart serves a part from the cache when held, falling back to
// regenerating it from the persisted chunk.
func (e *Engine) lookupPart(chunkID lattice.Identifier, index uint32) (*lattice.ChunkHeader, *lattice.Part, error) {
	if part, ok := e.pending.Part(chunkID, index); ok {
		header, _ := e.pending.Header(chunkID)
		return header, part, nil
	}

	chunk, err := e.loadChunk(chunkID)
	if err != nil {
		return nil, nil, err
	}
	header := chunk.Header
	if index >= header.TotalShardCount {
		return nil, nil, fmt.Errorf("part index out of bounds (%d >= %d)", index, header.TotalShardCount)
	}

	// parts are not persisted; the payload is re-encoded and the proof
	// rebuilt, which is cheap relative to keeping all parts on disk
	shards, err := e.codec.Encode(chunk.Payload, header.DataShardCount, header.TotalShardCount)
	if err != nil {
		return nil, nil, fmt.Errorf("could not re-encode chunk: %w", err)
	}
	tree := merkle.NewTree(shards)
	proof, ok := tree.Proof(int(index))
	if !ok {
		return nil, nil, fmt.Errorf("could not build part proof (index=%d)", index)
	}
	part := &lattice.Part{
		Index: index,
		Data:  shards[index],
		Proof: proof,
	}
	return header, part, nil
}

func (e *Engine) lookupReceiptProof(chunkID lattice.Identifier, toShard uint64) (*lattice.ChunkHeader, *lattice.ReceiptProof, error) {
	if proof, ok := e.pending.ReceiptProof(chunkID, toShard); ok {
		header, _ := e.pending.Header(chunkID)
		return header, proof, nil
	}

	chunk, err := e.loadChunk(chunkID)
	if err != nil {
		return nil, nil, err
	}
	for _, proof := range chunk.ReceiptProofs {
		if proof.ToShard == toShard {
			return chunk.Header, proof, nil
		}
	}
	return nil, nil, fmt.Errorf("receipt proof not held (to_shard=%d)", toShard)
}

func (e *Engine) loadChunk(chunkID lattice.Identifier) (*lattice.Chunk, error) {
	chunk, err := e.chunks.ByID(chunkID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("chunk not held (%x)", chunkID[:8])
	}
	if err != nil {
		return nil, fmt.Errorf("could not load chunk: %w", err)
	}
	return chunk, nil
}
