// Package erasure wraps a systematic Reed-Solomon coder to split chunk
// payloads into data and parity shards and to reconstruct the payload from
// any sufficient subset of shards.
package erasure

import (
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/reedsolomon"
)

var (
	// ErrInsufficientParts indicates that fewer than data-shard-count
	// distinct parts were supplied; retryable by requesting more parts.
	ErrInsufficientParts = errors.New("insufficient parts for reconstruction")

	// ErrCorruptParts indicates that reconstruction went through but the
	// resulting payload disagrees with the header; the part set contains
	// corrupted or malicious parts and must not be retried as-is.
	ErrCorruptParts = errors.New("reconstructed payload disagrees with header")
)

// DefaultShardSize is the default byte size of one data shard.
const DefaultShardSize = 64 * 1024

// DefaultParityRatio is the default ratio of parity shards to data shards.
const DefaultParityRatio = 0.5

// Codec derives shard counts from payload sizes and runs the systematic
// Reed-Solomon code. A Codec is stateless apart from its policy parameters
// and safe for concurrent use.
type Codec struct {
	shardSize   int
	parityRatio float64
}

type Option func(*Codec)

// WithShardSize overrides the per-data-shard byte size.
func WithShardSize(size int) Option {
	return func(c *Codec) {
		c.shardSize = size
	}
}

// WithParityRatio overrides the parity-to-data shard ratio.
func WithParityRatio(ratio float64) Option {
	return func(c *Codec) {
		c.parityRatio = ratio
	}
}

func NewCodec(options ...Option) *Codec {
	c := &Codec{
		shardSize:   DefaultShardSize,
		parityRatio: DefaultParityRatio,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Counts derives the data and total shard counts for a payload of the given
// length: data shards from the payload length divided by the shard size
// (rounded up, floor of one), parity shards from the fixed parity ratio.
func (c *Codec) Counts(payloadLen int) (uint32, uint32) {
	data := (payloadLen + c.shardSize - 1) / c.shardSize
	if data < 1 {
		data = 1
	}
	parity := int(math.Ceil(float64(data) * c.parityRatio))
	if parity < 1 {
		parity = 1
	}
	return uint32(data), uint32(data + parity)
}

// CountsCapped derives shard counts like Counts, but caps the data shard
// count at the given bound; the shards grow instead of the shard count.
func (c *Codec) CountsCapped(payloadLen int, maxData uint32) (uint32, uint32) {
	data, total := c.Counts(payloadLen)
	if maxData >= 1 && data > maxData {
		data = maxData
		parity := uint32(math.Ceil(float64(data) * c.parityRatio))
		if parity < 1 {
			parity = 1
		}
		total = data + parity
	}
	return data, total
}

// EncodedLength returns the padded payload length for the given data shard
// count: the payload is zero-padded to an exact multiple of the shard
// length before splitting.
func (c *Codec) EncodedLength(payloadLen int, dataCount uint32) uint64 {
	return uint64(dataCount) * uint64(shardLength(payloadLen, dataCount))
}

// Encode splits the payload into dataCount data shards, zero-padding to an
// exact multiple of the shard length, and computes totalCount-dataCount
// parity shards. The returned shards are ordered by part index and all have
// equal length.
func (c *Codec) Encode(payload []byte, dataCount uint32, totalCount uint32) ([][]byte, error) {
	if dataCount < 1 || totalCount <= dataCount {
		return nil, fmt.Errorf("invalid shard counts (data=%d, total=%d)", dataCount, totalCount)
	}

	enc, err := reedsolomon.New(int(dataCount), int(totalCount-dataCount))
	if err != nil {
		return nil, fmt.Errorf("could not create coder: %w", err)
	}

	shardLen := shardLength(len(payload), dataCount)
	shards := make([][]byte, totalCount)
	for i := uint32(0); i < totalCount; i++ {
		shards[i] = make([]byte, shardLen)
	}
	for i := uint32(0); i < dataCount; i++ {
		start := int(i) * shardLen
		if start >= len(payload) {
			break
		}
		copy(shards[i], payload[start:])
	}

	err = enc.Encode(shards)
	if err != nil {
		return nil, fmt.Errorf("could not compute parity shards: %w", err)
	}

	return shards, nil
}

// Decode reconstructs the payload from the given shards. The slice must have
// totalCount entries, with nil marking missing shards at their index. It
// requires at least dataCount present shards and truncates the joined data
// shards to originalLength. Decoding from exactly dataCount shards yields
// output bit-identical to decoding from all shards, as the code is
// systematic.
func (c *Codec) Decode(shards [][]byte, dataCount uint32, totalCount uint32, originalLength uint64) ([]byte, error) {
	if uint32(len(shards)) != totalCount {
		return nil, fmt.Errorf("wrong shard slice length (%d != %d)", len(shards), totalCount)
	}

	present := uint32(0)
	for _, shard := range shards {
		if shard != nil {
			present++
		}
	}
	if present < dataCount {
		return nil, fmt.Errorf("have %d of %d required parts: %w", present, dataCount, ErrInsufficientParts)
	}

	enc, err := reedsolomon.New(int(dataCount), int(totalCount-dataCount))
	if err != nil {
		return nil, fmt.Errorf("could not create coder: %w", err)
	}

	err = enc.ReconstructData(shards)
	if err != nil {
		return nil, fmt.Errorf("reconstruction failed: %w (%s)", ErrCorruptParts, err)
	}

	joined := make([]byte, 0, int(dataCount)*len(shards[0]))
	for i := uint32(0); i < dataCount; i++ {
		joined = append(joined, shards[i]...)
	}
	if originalLength > uint64(len(joined)) {
		return nil, fmt.Errorf("reconstructed %d bytes, header declares %d: %w", len(joined), originalLength, ErrCorruptParts)
	}

	return joined[:originalLength], nil
}

func shardLength(payloadLen int, dataCount uint32) int {
	shardLen := (payloadLen + int(dataCount) - 1) / int(dataCount)
	if shardLen < 1 {
		shardLen = 1
	}
	return shardLen
}
