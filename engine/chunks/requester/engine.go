// Package requester implements the engine that fetches the missing
// fragments of chunks under assembly. It periodically sweeps the chunk
// cache, maintains one outstanding request per missing fragment, and retries
// with capped exponential backoff until the fragment arrives or the attempt
// budget runs out.
package requester

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/lattice-foundation/lattice-go/engine"
	"github.com/lattice-foundation/lattice-go/model/chunks"
	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/model/messages"
	"github.com/lattice-foundation/lattice-go/module"
	"github.com/lattice-foundation/lattice-go/module/mempool"
	"github.com/lattice-foundation/lattice-go/network"
)

// Config tunes the retry behavior of the request engine.
type Config struct {
	// SweepInterval is the period of the dispatch sweep over outstanding
	// requests.
	SweepInterval time.Duration
	// RetryInitial is the interval until the first retry of a request.
	RetryInitial time.Duration
	// RetryMultiplier grows the retry interval on every attempt.
	RetryMultiplier float64
	// RetryMaximum caps the retry interval.
	RetryMaximum time.Duration
	// MaxAttempts bounds the number of dispatches per request before the
	// chunk is given up as unreachable. Zero means no bound.
	MaxAttempts uint64
}

func DefaultConfig() Config {
	return Config{
		SweepInterval:   time.Second,
		RetryInitial:    time.Second,
		RetryMultiplier: 2,
		RetryMaximum:    time.Minute,
		MaxAttempts:     0,
	}
}

// Engine is the chunk fragment request engine.
type Engine struct {
	unit     *engine.Unit
	log      zerolog.Logger
	cfg      Config
	metrics  module.ChunkMetrics
	me       module.Local
	assigner module.ChunkAssigner
	pending  mempool.PartialChunks
	requests mempool.ChunkRequests
	con      network.Conduit
	nonce    *atomic.Uint64
}

func New(
	log zerolog.Logger,
	cfg Config,
	metrics module.ChunkMetrics,
	net network.Network,
	me module.Local,
	assigner module.ChunkAssigner,
	pending mempool.PartialChunks,
	requests mempool.ChunkRequests,
) (*Engine, error) {

	// a multiplier below one would make the backoff updater refuse every
	// dispatch, stalling all chunks without ever exhausting the attempt budget
	if cfg.RetryMultiplier < 1 {
		return nil, fmt.Errorf("retry multiplier must be at least 1 (got %f)", cfg.RetryMultiplier)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive (got %s)", cfg.SweepInterval)
	}

	con, err := net.Conduit(network.RequestChunks)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		unit:     engine.NewUnit(),
		log:      log.With().Str("engine", "requester").Logger(),
		cfg:      cfg,
		metrics:  metrics,
		me:       me,
		assigner: assigner,
		pending:  pending,
		requests: requests,
		con:      con,
		nonce:    atomic.NewUint64(0),
	}
	return e, nil
}

func (e *Engine) Ready() <-chan struct{} {
	e.unit.LaunchPeriodically(e.sweep, e.cfg.SweepInterval, e.cfg.SweepInterval)
	return e.unit.Ready()
}

func (e *Engine) Done() <-chan struct{} {
	return e.unit.Done()
}

// sweep refreshes the outstanding request set from the chunk cache and
// dispatches every request whose backoff interval has elapsed.
func (e *Engine) sweep() {
	e.refreshRequests()
	e.dispatchRequests()
}

// refreshRequests walks the chunks under assembly and registers a request
// for every missing fragment. Only chunks with a verified header are
// handled; without the header neither the fragment bounds nor the assigned
// owners are known.
func (e *Engine) refreshRequests() {
	for _, chunkID := range e.pending.PendingChunkIDs() {
		if e.pending.Status(chunkID) != chunks.StatusAwaitingParts {
			continue
		}
		header, ok := e.pending.Header(chunkID)
		if !ok {
			continue
		}
		epoch := e.assigner.EpochOf(header.Height)

		for _, index := range e.pending.MissingParts(chunkID) {
			target, err := e.assigner.OwnerOf(epoch, header.ShardID, index)
			if err != nil {
				e.log.Warn().Err(err).
					Hex("chunk_id", chunkID[:]).
					Uint32("index", index).
					Msg("could not determine part owner")
				continue
			}
			if target == e.me.NodeID() {
				continue
			}
			e.requests.Add(&mempool.PieceRequest{
				ChunkID: chunkID,
				Kind:    mempool.KindPart,
				Index:   index,
				Target:  target,
				ShardID: header.ShardID,
				Height:  header.Height,
			})
		}

		e.refreshReceiptRequests(chunkID, header, epoch)
	}
}

// refreshReceiptRequests registers requests for the receipt proofs of all
// target shards not yet held. The chunk producer holds every proof, so it is
// the request target.
func (e *Engine) refreshReceiptRequests(chunkID lattice.Identifier, header *lattice.ChunkHeader, epoch uint64) {
	producer, err := e.assigner.ChunkProducer(epoch, header.ShardID, header.Height)
	if err != nil || producer == e.me.NodeID() {
		return
	}

	held := make(map[uint64]struct{})
	for _, shard := range e.pending.HeldReceiptShards(chunkID) {
		held[shard] = struct{}{}
	}
	for shard := uint64(0); shard < e.assigner.ShardCount(epoch); shard++ {
		if shard == header.ShardID {
			continue
		}
		if _, ok := held[shard]; ok {
			continue
		}
		e.requests.Add(&mempool.PieceRequest{
			ChunkID: chunkID,
			Kind:    mempool.KindReceipt,
			Index:   uint32(shard),
			Target:  producer,
			ShardID: header.ShardID,
			Height:  header.Height,
		})
	}
}

// dispatchRequests sends every outstanding request whose retry interval has
// elapsed, updating its history atomically so concurrent sweeps never
// double-dispatch.
func (e *Engine) dispatchRequests() {
	updater := mempool.ExponentialUpdater(e.cfg.RetryMultiplier, e.cfg.RetryMaximum, e.cfg.RetryInitial)

	for _, request := range e.requests.All() {
		requestID := request.ID()

		attempts, lastAttempt, retryAfter, exists := e.requests.RequestHistory(requestID)
		if !exists {
			continue
		}
		if time.Since(lastAttempt) < retryAfter {
			continue
		}
		if e.cfg.MaxAttempts > 0 && attempts >= e.cfg.MaxAttempts {
			e.giveUp(request, attempts)
			continue
		}

		_, _, _, committed := e.requests.UpdateRequestHistory(requestID, updater)
		if !committed {
			continue
		}

		e.send(request)
	}
}

func (e *Engine) send(request *mempool.PieceRequest) {
	var event interface{}
	switch request.Kind {
	case mempool.KindPart:
		event = &messages.ChunkPartRequest{
			ChunkID: request.ChunkID,
			Index:   request.Index,
			Nonce:   e.nonce.Inc(),
		}
	case mempool.KindReceipt:
		event = &messages.ReceiptProofRequest{
			ChunkID: request.ChunkID,
			ToShard: uint64(request.Index),
			Nonce:   e.nonce.Inc(),
		}
	default:
		return
	}

	err := e.con.Unicast(event, request.Target)
	if err != nil {
		// transient network failure; the request stays outstanding and the
		// next sweep retries it
		e.log.Warn().Err(err).
			Hex("chunk_id", request.ChunkID[:]).
			Str("kind", request.Kind.String()).
			Uint32("index", request.Index).
			Msg("could not dispatch request")
		return
	}
	e.metrics.OnPartRequested()
}

// giveUp abandons the chunk after a request exhausted its attempt budget.
func (e *Engine) giveUp(request *mempool.PieceRequest, attempts uint64) {
	e.requests.Rem(request.ID())
	if !e.pending.MarkInvalid(request.ChunkID) {
		return
	}
	e.requests.RemByChunkID(request.ChunkID)
	e.metrics.OnChunkInvalid()
	e.log.Warn().
		Hex("chunk_id", request.ChunkID[:]).
		Uint64("attempts", attempts).
		Msg("giving up on chunk, fragment unreachable")
}
