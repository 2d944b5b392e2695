package mempool

import (
	"errors"
)

var (
	// ErrNotFound indicates that the requested entity is not in the pool.
	ErrNotFound = errors.New("entity not found in memory pool")

	// ErrIncomplete indicates that a chunk is still below its decode
	// threshold; retryable by collecting more parts.
	ErrIncomplete = errors.New("chunk below decode threshold")
)

// InsertStatus is the outcome of inserting a fragment into the chunk cache.
type InsertStatus int

const (
	// InsertAccepted means the fragment was verified and stored.
	InsertAccepted InsertStatus = iota
	// InsertDuplicate means an equal fragment is already held; no state
	// change happened.
	InsertDuplicate
	// InsertInvalidIndex means the fragment is outside the bounds declared
	// by the chunk header; it is discarded and never requested.
	InsertInvalidIndex
	// InsertProofMismatch means the fragment failed merkle proof
	// verification against the header root; the source is untrusted.
	InsertProofMismatch
	// InsertRejected means the chunk hash is in a terminal state and no
	// fragment for it is admitted anymore.
	InsertRejected
)

func (s InsertStatus) String() string {
	switch s {
	case InsertAccepted:
		return "accepted"
	case InsertDuplicate:
		return "duplicate"
	case InsertInvalidIndex:
		return "invalid_index"
	case InsertProofMismatch:
		return "proof_mismatch"
	case InsertRejected:
		return "rejected"
	default:
		return "unexpected"
	}
}
