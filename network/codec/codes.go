package codec

import (
	"fmt"

	"github.com/lattice-foundation/lattice-go/model/messages"
)

// Message type codes. The code is prepended to the encoded payload so the
// decoder can allocate the right concrete type. Codes are part of the wire
// protocol and must never be reused.
const (
	CodeChunkHeaderPush uint8 = iota + 1
	CodeChunkPartPush
	CodeReceiptProofPush
	CodeChunkPartRequest
	CodeReceiptProofRequest
)

func codeOf(v interface{}) (uint8, error) {
	switch v.(type) {
	case *messages.ChunkHeaderPush:
		return CodeChunkHeaderPush, nil
	case *messages.ChunkPartPush:
		return CodeChunkPartPush, nil
	case *messages.ReceiptProofPush:
		return CodeReceiptProofPush, nil
	case *messages.ChunkPartRequest:
		return CodeChunkPartRequest, nil
	case *messages.ReceiptProofRequest:
		return CodeReceiptProofRequest, nil
	default:
		return 0, fmt.Errorf("unknown message type %T", v)
	}
}

func messageOf(code uint8) (interface{}, error) {
	switch code {
	case CodeChunkHeaderPush:
		return &messages.ChunkHeaderPush{}, nil
	case CodeChunkPartPush:
		return &messages.ChunkPartPush{}, nil
	case CodeReceiptProofPush:
		return &messages.ReceiptProofPush{}, nil
	case CodeChunkPartRequest:
		return &messages.ChunkPartRequest{}, nil
	case CodeReceiptProofRequest:
		return &messages.ReceiptProofRequest{}, nil
	default:
		return nil, fmt.Errorf("unknown message code %d", code)
	}
}
