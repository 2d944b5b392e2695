package stdmap

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/lattice-foundation/lattice-go/model/chunks"
	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/module/mempool"
	"github.com/lattice-foundation/lattice-go/module/merkle"
)

// DefaultTerminalCacheSize bounds the set of remembered terminal chunk
// hashes. Entries pushed out can in principle be re-admitted, but hashes are
// content-derived, so re-assembly converges to the same outcome.
const DefaultTerminalCacheSize = 16384

// partialChunk is the internal aggregate of all fragments held for one
// chunk hash. It is only ever mutated under the backend lock.
type partialChunk struct {
	chunkID        lattice.Identifier
	header         *lattice.ChunkHeader
	parts          map[uint32]*lattice.Part
	receipts       map[uint64]*lattice.ReceiptProof
	orphanParts    []*lattice.Part        // received before the header, unverified
	orphanReceipts []*lattice.ReceiptProof
	status         chunks.Status
}

func newPartialChunk(chunkID lattice.Identifier) *partialChunk {
	return &partialChunk{
		chunkID:  chunkID,
		parts:    make(map[uint32]*lattice.Part),
		receipts: make(map[uint64]*lattice.ReceiptProof),
		status:   chunks.StatusAwaitingHeader,
	}
}

func (pc *partialChunk) ID() lattice.Identifier {
	return pc.chunkID
}

func (pc *partialChunk) Checksum() lattice.Identifier {
	return pc.chunkID
}

func (pc *partialChunk) ByteSize() uint64 {
	size := uint64(0)
	if pc.header != nil {
		size += uint64(len(pc.header.Encode()))
	}
	for _, part := range pc.parts {
		size += part.ByteSize()
	}
	for _, part := range pc.orphanParts {
		size += part.ByteSize()
	}
	for _, proof := range pc.receipts {
		size += proof.ByteSize()
	}
	for _, proof := range pc.orphanReceipts {
		size += proof.ByteSize()
	}
	return size
}

// refresh re-derives the assembly status from the held fragments.
func (pc *partialChunk) refresh() {
	if pc.header == nil {
		pc.status = chunks.StatusAwaitingHeader
		return
	}
	if uint32(len(pc.parts)) >= pc.header.DataShardCount {
		pc.status = chunks.StatusDecodable
		return
	}
	pc.status = chunks.StatusAwaitingParts
}

// admitPart verifies and stores a part under a known header. Must run under
// the backend lock.
func (pc *partialChunk) admitPart(part *lattice.Part) mempool.InsertStatus {
	if part.Index >= pc.header.TotalShardCount {
		return mempool.InsertInvalidIndex
	}
	if _, held := pc.parts[part.Index]; held {
		return mempool.InsertDuplicate
	}
	if !merkle.Verify(pc.header.PartsRoot, part.Data, int(part.Index), part.Proof) {
		return mempool.InsertProofMismatch
	}
	pc.parts[part.Index] = part
	return mempool.InsertAccepted
}

// admitReceiptProof verifies and stores a receipt proof under a known
// header. Must run under the backend lock.
func (pc *partialChunk) admitReceiptProof(proof *lattice.ReceiptProof) mempool.InsertStatus {
	if proof.FromShard != pc.header.ShardID {
		return mempool.InsertProofMismatch
	}
	if _, held := pc.receipts[proof.ToShard]; held {
		return mempool.InsertDuplicate
	}
	if !merkle.Verify(pc.header.ReceiptsRoot, proof.LeafBody(), int(proof.ToShard), proof.Proof) {
		return mempool.InsertProofMismatch
	}
	pc.receipts[proof.ToShard] = proof
	return mempool.InsertAccepted
}

// PartialChunks implements the bounded chunk cache on the stdmap backend.
type PartialChunks struct {
	backend  *Backend
	codec    *erasure.Codec
	tmu      sync.Mutex
	terminal *lru.Cache // chunk hash -> terminal chunks.Status
}

var _ mempool.PartialChunks = (*PartialChunks)(nil)

func NewPartialChunks(codec *erasure.Codec, options ...OptionFunc) (*PartialChunks, error) {
	terminal, err := lru.New(DefaultTerminalCacheSize)
	if err != nil {
		return nil, err
	}
	pcs := &PartialChunks{
		backend:  NewBackend(options...),
		codec:    codec,
		terminal: terminal,
	}
	return pcs, nil
}

func (pcs *PartialChunks) InsertHeader(header *lattice.ChunkHeader) mempool.InsertStatus {
	chunkID := header.ID()
	if pcs.isTerminal(chunkID) {
		return mempool.InsertRejected
	}

	result := mempool.InsertAccepted
	pcs.backend.Upsert(chunkID,
		func() lattice.Entity { return newPartialChunk(chunkID) },
		func(entity lattice.Entity) {
			pc := entity.(*partialChunk)
			if pc.header != nil {
				result = mempool.InsertDuplicate
				return
			}
			pc.header = header

			// fragments buffered before the header are verified now;
			// the ones that fail are dropped
			for _, part := range pc.orphanParts {
				_ = pc.admitPart(part)
			}
			pc.orphanParts = nil
			for _, proof := range pc.orphanReceipts {
				_ = pc.admitReceiptProof(proof)
			}
			pc.orphanReceipts = nil

			pc.refresh()
		})
	return result
}

func (pcs *PartialChunks) InsertPart(chunkID lattice.Identifier, part *lattice.Part) mempool.InsertStatus {
	if pcs.isTerminal(chunkID) {
		return mempool.InsertRejected
	}

	var result mempool.InsertStatus
	pcs.backend.Upsert(chunkID,
		func() lattice.Entity { return newPartialChunk(chunkID) },
		func(entity lattice.Entity) {
			pc := entity.(*partialChunk)
			if pc.header == nil {
				result = pc.bufferPart(part)
				return
			}
			result = pc.admitPart(part)
			pc.refresh()
		})
	return result
}

func (pcs *PartialChunks) InsertReceiptProof(chunkID lattice.Identifier, proof *lattice.ReceiptProof) mempool.InsertStatus {
	if pcs.isTerminal(chunkID) {
		return mempool.InsertRejected
	}

	var result mempool.InsertStatus
	pcs.backend.Upsert(chunkID,
		func() lattice.Entity { return newPartialChunk(chunkID) },
		func(entity lattice.Entity) {
			pc := entity.(*partialChunk)
			if pc.header == nil {
				result = pc.bufferReceiptProof(proof)
				return
			}
			result = pc.admitReceiptProof(proof)
			pc.refresh()
		})
	return result
}

// bufferPart stores a pre-header part. Without the parts root nothing can be
// verified, so equality with an already-buffered part of the same index is
// the only duplicate criterion.
func (pc *partialChunk) bufferPart(part *lattice.Part) mempool.InsertStatus {
	for _, buffered := range pc.orphanParts {
		if buffered.Index == part.Index && bytes.Equal(buffered.Data, part.Data) {
			return mempool.InsertDuplicate
		}
	}
	pc.orphanParts = append(pc.orphanParts, part)
	return mempool.InsertAccepted
}

func (pc *partialChunk) bufferReceiptProof(proof *lattice.ReceiptProof) mempool.InsertStatus {
	body := proof.LeafBody()
	for _, buffered := range pc.orphanReceipts {
		if buffered.ToShard == proof.ToShard && bytes.Equal(buffered.LeafBody(), body) {
			return mempool.InsertDuplicate
		}
	}
	pc.orphanReceipts = append(pc.orphanReceipts, proof)
	return mempool.InsertAccepted
}

// TryComplete attempts to decode the chunk. The shard snapshot is taken
// under the pool lock, while the decode itself runs outside of it, so one
// chunk's reconstruction never blocks inserts for other chunks. Parts are
// immutable once admitted, which makes the snapshot safe.
func (pcs *PartialChunks) TryComplete(chunkID lattice.Identifier) (*lattice.Chunk, error) {
	var header *lattice.ChunkHeader
	var shards [][]byte
	var receipts []*lattice.ReceiptProof
	cerr := mempool.ErrNotFound

	pcs.backend.View(chunkID, func(entity lattice.Entity) {
		pc := entity.(*partialChunk)
		if pc.header == nil || uint32(len(pc.parts)) < pc.header.DataShardCount {
			cerr = mempool.ErrIncomplete
			return
		}
		cerr = nil
		header = pc.header
		shards = make([][]byte, header.TotalShardCount)
		for index, part := range pc.parts {
			shards[index] = part.Data
		}
		receipts = make([]*lattice.ReceiptProof, 0, len(pc.receipts))
		for _, proof := range pc.receipts {
			receipts = append(receipts, proof)
		}
	})
	if cerr != nil {
		return nil, cerr
	}

	payload, err := pcs.codec.Decode(shards, header.DataShardCount, header.TotalShardCount, header.OriginalLength)
	if err != nil {
		if errors.Is(err, erasure.ErrCorruptParts) {
			// a sufficient part set that fails to decode signals corrupted
			// or malicious parts; the chunk is rejected, not retried
			pcs.MarkInvalid(chunkID)
		}
		return nil, err
	}

	sort.Slice(receipts, func(i, j int) bool { return receipts[i].ToShard < receipts[j].ToShard })
	chunk := &lattice.Chunk{
		Header:        header,
		Payload:       payload,
		ReceiptProofs: receipts,
	}
	return chunk, nil
}

func (pcs *PartialChunks) Header(chunkID lattice.Identifier) (*lattice.ChunkHeader, bool) {
	var header *lattice.ChunkHeader
	pcs.backend.View(chunkID, func(entity lattice.Entity) {
		header = entity.(*partialChunk).header
	})
	return header, header != nil
}

func (pcs *PartialChunks) Part(chunkID lattice.Identifier, index uint32) (*lattice.Part, bool) {
	var part *lattice.Part
	pcs.backend.View(chunkID, func(entity lattice.Entity) {
		part = entity.(*partialChunk).parts[index]
	})
	return part, part != nil
}

func (pcs *PartialChunks) ReceiptProof(chunkID lattice.Identifier, toShard uint64) (*lattice.ReceiptProof, bool) {
	var proof *lattice.ReceiptProof
	pcs.backend.View(chunkID, func(entity lattice.Entity) {
		proof = entity.(*partialChunk).receipts[toShard]
	})
	return proof, proof != nil
}

func (pcs *PartialChunks) Status(chunkID lattice.Identifier) chunks.Status {
	pcs.tmu.Lock()
	if status, terminal := pcs.terminal.Get(chunkID); terminal {
		pcs.tmu.Unlock()
		return status.(chunks.Status)
	}
	pcs.tmu.Unlock()

	status := chunks.StatusUnknown
	pcs.backend.View(chunkID, func(entity lattice.Entity) {
		status = entity.(*partialChunk).status
	})
	return status
}

func (pcs *PartialChunks) MissingParts(chunkID lattice.Identifier) []uint32 {
	var missing []uint32
	pcs.backend.View(chunkID, func(entity lattice.Entity) {
		pc := entity.(*partialChunk)
		if pc.header == nil {
			return
		}
		for index := uint32(0); index < pc.header.TotalShardCount; index++ {
			if _, held := pc.parts[index]; !held {
				missing = append(missing, index)
			}
		}
	})
	return missing
}

func (pcs *PartialChunks) HeldReceiptShards(chunkID lattice.Identifier) []uint64 {
	var held []uint64
	pcs.backend.View(chunkID, func(entity lattice.Entity) {
		pc := entity.(*partialChunk)
		for shard := range pc.receipts {
			held = append(held, shard)
		}
	})
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	return held
}

func (pcs *PartialChunks) Pin(chunkID lattice.Identifier) {
	pcs.backend.Pin(chunkID)
}

func (pcs *PartialChunks) Unpin(chunkID lattice.Identifier) {
	pcs.backend.Unpin(chunkID)
}

func (pcs *PartialChunks) MarkComplete(chunkID lattice.Identifier) bool {
	return pcs.markTerminal(chunkID, chunks.StatusComplete)
}

func (pcs *PartialChunks) MarkInvalid(chunkID lattice.Identifier) bool {
	return pcs.markTerminal(chunkID, chunks.StatusInvalid)
}

func (pcs *PartialChunks) markTerminal(chunkID lattice.Identifier, status chunks.Status) bool {
	pcs.tmu.Lock()
	if pcs.terminal.Contains(chunkID) {
		pcs.tmu.Unlock()
		return false
	}
	pcs.terminal.Add(chunkID, status)
	pcs.tmu.Unlock()

	pcs.backend.Rem(chunkID)
	return true
}

func (pcs *PartialChunks) PendingChunkIDs() lattice.IdentifierList {
	return pcs.backend.Identifiers()
}

func (pcs *PartialChunks) OnEject(callback mempool.OnEjection) {
	pcs.backend.OnEjection(callback)
}

func (pcs *PartialChunks) Size() uint {
	return pcs.backend.Size()
}

func (pcs *PartialChunks) Bytes() uint64 {
	return pcs.backend.Bytes()
}

func (pcs *PartialChunks) isTerminal(chunkID lattice.Identifier) bool {
	pcs.tmu.Lock()
	defer pcs.tmu.Unlock()
	return pcs.terminal.Contains(chunkID)
}
