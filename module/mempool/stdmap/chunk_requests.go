package stdmap

import (
	"time"

	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/module/mempool"
)

// ChunkRequests maintains the outstanding piece requests of the request
// engine, wrapping each request in an internal status object that carries
// its retry history.
type ChunkRequests struct {
	backend *Backend
}

var _ mempool.ChunkRequests = (*ChunkRequests)(nil)

func NewChunkRequests(limit uint) *ChunkRequests {
	return &ChunkRequests{
		backend: NewBackend(WithLimit(limit)),
	}
}

// requestStatus wraps a PieceRequest with the auxiliary retry attributes
// internal to this pool.
type requestStatus struct {
	*mempool.PieceRequest
	LastAttempt time.Time     // timestamp of the last dispatched request
	RetryAfter  time.Duration // interval until the request may be retried
	Attempts    uint64        // number of times the request has been dispatched
}

func toRequestStatus(entity lattice.Entity) *requestStatus {
	status, ok := entity.(*requestStatus)
	if !ok {
		panic("unexpected entity type in chunk requests pool")
	}
	return status
}

func (cs *ChunkRequests) Add(request *mempool.PieceRequest) bool {
	return cs.backend.Add(&requestStatus{PieceRequest: request})
}

func (cs *ChunkRequests) Rem(requestID lattice.Identifier) bool {
	return cs.backend.Rem(requestID)
}

func (cs *ChunkRequests) RemByChunkID(chunkID lattice.Identifier) uint {
	removed := uint(0)
	for _, entity := range cs.backend.All() {
		status := toRequestStatus(entity)
		if status.ChunkID != chunkID {
			continue
		}
		if cs.backend.Rem(status.ID()) {
			removed++
		}
	}
	return removed
}

func (cs *ChunkRequests) All() []*mempool.PieceRequest {
	entities := cs.backend.All()
	requests := make([]*mempool.PieceRequest, 0, len(entities))
	for _, entity := range entities {
		requests = append(requests, toRequestStatus(entity).PieceRequest)
	}
	return requests
}

// RequestHistory returns the attempt count, last attempt time and
// retry-after interval of the request, plus whether it exists. Reading does
// not count as a recency touch.
func (cs *ChunkRequests) RequestHistory(requestID lattice.Identifier) (uint64, time.Time, time.Duration, bool) {
	var attempts uint64
	var lastAttempt time.Time
	var retryAfter time.Duration

	exists := cs.backend.View(requestID, func(entity lattice.Entity) {
		status := toRequestStatus(entity)
		attempts = status.Attempts
		lastAttempt = status.LastAttempt
		retryAfter = status.RetryAfter
	})
	return attempts, lastAttempt, retryAfter, exists
}

// UpdateRequestHistory atomically applies the updater to the request history
// and stamps the last attempt time. The update only commits if the updater
// approves it.
func (cs *ChunkRequests) UpdateRequestHistory(requestID lattice.Identifier, updater mempool.ChunkRequestHistoryUpdaterFunc) (uint64, time.Time, time.Duration, bool) {
	var attempts uint64
	var lastAttempt time.Time
	var retryAfter time.Duration
	committed := false

	cs.backend.Adjust(requestID, func(entity lattice.Entity) {
		status := toRequestStatus(entity)

		var ok bool
		attempts, retryAfter, ok = updater(status.Attempts, status.RetryAfter)
		if !ok {
			return
		}
		lastAttempt = time.Now()

		status.Attempts = attempts
		status.RetryAfter = retryAfter
		status.LastAttempt = lastAttempt
		committed = true
	})
	return attempts, lastAttempt, retryAfter, committed
}

func (cs *ChunkRequests) Size() uint {
	return cs.backend.Size()
}
