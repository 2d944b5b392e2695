// Package chunks holds the assembly-side model of a chunk: the lifecycle
// status a partially assembled chunk moves through while its fragments are
// collected from the network.
package chunks

// Status captures the assembly state of one chunk hash.
//
// Allowed transitions:
//
//	Unknown -> AwaitingHeader | AwaitingParts
//	AwaitingHeader -> AwaitingHeader | AwaitingParts
//	AwaitingParts -> AwaitingParts | Decodable
//	Decodable -> Complete | Invalid
//
// Complete and Invalid are terminal: a chunk hash that has reached either is
// never re-admitted for assembly under the same hash.
type Status int

const (
	// StatusUnknown means no fragment of the chunk has ever been seen.
	StatusUnknown Status = iota
	// StatusAwaitingHeader means at least one fragment is held but the
	// header is not; part proofs cannot be checked yet.
	StatusAwaitingHeader
	// StatusAwaitingParts means the header is known but the held parts are
	// below the decode threshold.
	StatusAwaitingParts
	// StatusDecodable means the held parts crossed the data-shard
	// threshold and decoding has not been attempted yet.
	StatusDecodable
	// StatusComplete means the chunk has been decoded and verified.
	StatusComplete
	// StatusInvalid means decoding or verification failed; the chunk is
	// rejected and never retried automatically.
	StatusInvalid
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusInvalid
}

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusAwaitingHeader:
		return "awaiting_header"
	case StatusAwaitingParts:
		return "awaiting_parts"
	case StatusDecodable:
		return "decodable"
	case StatusComplete:
		return "complete"
	case StatusInvalid:
		return "invalid"
	default:
		return "unexpected"
	}
}
