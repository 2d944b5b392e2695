package mempool

import (
	"time"

	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// ChunkRequestHistoryUpdaterFunc is a function type that used by the
// request engine to atomically update the request history of a piece.
//
// The updater receives the current number of attempts and retry-after
// interval and returns the updated values. The last return value signals
// whether the update should be committed.
type ChunkRequestHistoryUpdaterFunc func(attempts uint64, retryAfter time.Duration) (uint64, time.Duration, bool)

// ExponentialUpdater increments the attempt count and doubles the
// retry-after interval by the given multiplier, capped at maxInterval and
// floored at minInterval.
func ExponentialUpdater(multiplier float64, maxInterval time.Duration, minInterval time.Duration) ChunkRequestHistoryUpdaterFunc {
	return func(attempts uint64, retryAfter time.Duration) (uint64, time.Duration, bool) {
		if multiplier < 1 {
			return attempts, retryAfter, false
		}
		retryAfter = time.Duration(float64(retryAfter) * multiplier)
		if retryAfter < minInterval {
			retryAfter = minInterval
		}
		if retryAfter > maxInterval {
			retryAfter = maxInterval
		}
		return attempts + 1, retryAfter, true
	}
}

// IncrementalAttemptUpdater increments the attempt count and leaves the
// retry-after interval untouched.
func IncrementalAttemptUpdater() ChunkRequestHistoryUpdaterFunc {
	return func(attempts uint64, retryAfter time.Duration) (uint64, time.Duration, bool) {
		return attempts + 1, retryAfter, true
	}
}

// ChunkRequests is an in-memory pool of outstanding piece requests, keyed by
// request ID. It maintains the per-request retry history the request engine
// uses for backoff decisions.
type ChunkRequests interface {
	// Add adds the request to the pool. It returns false if a request with
	// the same ID is already outstanding.
	Add(request *PieceRequest) bool

	// Rem removes the request with the given ID, returning whether it was
	// outstanding.
	Rem(requestID lattice.Identifier) bool

	// RemByChunkID removes all requests for the given chunk and returns
	// how many were removed.
	RemByChunkID(chunkID lattice.Identifier) uint

	// All returns all outstanding requests.
	All() []*PieceRequest

	// RequestHistory returns the attempt count, last attempt time and
	// retry-after interval of the request, and whether it exists.
	RequestHistory(requestID lattice.Identifier) (uint64, time.Time, time.Duration, bool)

	// UpdateRequestHistory atomically applies the updater to the request
	// history and stamps the last attempt time. It returns the updated
	// values and whether the update was committed.
	UpdateRequestHistory(requestID lattice.Identifier, updater ChunkRequestHistoryUpdaterFunc) (uint64, time.Time, time.Duration, bool)

	// Size returns the number of outstanding requests.
	Size() uint
}
