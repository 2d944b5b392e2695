package erasure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/utils/unittest"
)

// TestCounts checks the shard count derivation across payload sizes.
func TestCounts(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(1024))

	cases := []struct {
		payloadLen int
		data       uint32
		total      uint32
	}{
		{0, 1, 2}, // empty payloads still get one data shard
		{1, 1, 2},
		{1024, 1, 2},
		{1025, 2, 3},
		{4096, 4, 6},
		{4097, 5, 8},
	}
	for _, tc := range cases {
		data, total := codec.Counts(tc.payloadLen)
		assert.Equal(t, tc.data, data, "payload of %d bytes", tc.payloadLen)
		assert.Equal(t, tc.total, total, "payload of %d bytes", tc.payloadLen)
	}
}

// TestCountsCapped checks that the data shard bound grows shard size rather
// than shard count.
func TestCountsCapped(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(1024))

	data, total := codec.CountsCapped(16*1024, 4)
	assert.Equal(t, uint32(4), data)
	assert.Equal(t, uint32(6), total)

	// under the cap the counts are unchanged
	data, total = codec.CountsCapped(2048, 16)
	assert.Equal(t, uint32(2), data)
	assert.Equal(t, uint32(3), total)
}

// TestEncodeDecodeRoundTrip reconstructs payloads of assorted sizes from the
// full shard set.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(1024))

	for _, size := range []int{1, 7, 1023, 1024, 1025, 10_000, 1 << 20} {
		payload := unittest.RandomBytes(size)
		dataCount, totalCount := codec.Counts(size)

		shards, err := codec.Encode(payload, dataCount, totalCount)
		require.NoError(t, err)
		require.Len(t, shards, int(totalCount))

		decoded, err := codec.Decode(shards, dataCount, totalCount, uint64(size))
		require.NoError(t, err)
		assert.Equal(t, payload, decoded, "payload of %d bytes", size)
	}
}

// TestDecodeFromMinimalSets reconstructs a 10,000-byte payload coded as 4
// data and 2 parity shards from every 4-element subset of the shards, and
// checks the output is bit-identical to decoding from the full set.
func TestDecodeFromMinimalSets(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(2500))
	payload := unittest.RandomBytes(10_000)

	dataCount, totalCount := codec.Counts(len(payload))
	require.Equal(t, uint32(4), dataCount)
	require.Equal(t, uint32(6), totalCount)

	full, err := codec.Encode(payload, dataCount, totalCount)
	require.NoError(t, err)

	reference, err := codec.Decode(cloneShards(full), dataCount, totalCount, uint64(len(payload)))
	require.NoError(t, err)
	require.Equal(t, payload, reference)

	// every choice of 4 retained shards out of 6
	for a := 0; a < 6; a++ {
		for b := a + 1; b < 6; b++ {
			subset := cloneShards(full)
			subset[a] = nil
			subset[b] = nil

			decoded, err := codec.Decode(subset, dataCount, totalCount, uint64(len(payload)))
			require.NoError(t, err, "dropped shards %d and %d", a, b)
			assert.Equal(t, reference, decoded, "dropped shards %d and %d", a, b)
		}
	}
}

// TestDecodeInsufficient drops one shard too many.
func TestDecodeInsufficient(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(2500))
	payload := unittest.RandomBytes(10_000)
	dataCount, totalCount := codec.Counts(len(payload))

	shards, err := codec.Encode(payload, dataCount, totalCount)
	require.NoError(t, err)

	shards[0] = nil
	shards[2] = nil
	shards[4] = nil

	_, err = codec.Decode(shards, dataCount, totalCount, uint64(len(payload)))
	require.ErrorIs(t, err, erasure.ErrInsufficientParts)
}

// TestDecodeRejectsOverlongOriginal rejects a declared original length past
// the reconstructed data.
func TestDecodeRejectsOverlongOriginal(t *testing.T) {
	codec := erasure.NewCodec(erasure.WithShardSize(256))
	payload := unittest.RandomBytes(1000)
	dataCount, totalCount := codec.Counts(len(payload))

	shards, err := codec.Encode(payload, dataCount, totalCount)
	require.NoError(t, err)

	_, err = codec.Decode(shards, dataCount, totalCount, 1<<32)
	require.ErrorIs(t, err, erasure.ErrCorruptParts)
}

// TestEncodeInvalidCounts rejects shard counts without parity.
func TestEncodeInvalidCounts(t *testing.T) {
	codec := erasure.NewCodec()
	_, err := codec.Encode([]byte("data"), 2, 2)
	require.Error(t, err)
	_, err = codec.Encode([]byte("data"), 0, 3)
	require.Error(t, err)
}

func cloneShards(shards [][]byte) [][]byte {
	out := make([][]byte, len(shards))
	for i, shard := range shards {
		if shard == nil {
			continue
		}
		out[i] = append([]byte(nil), shard...)
	}
	return out
}
