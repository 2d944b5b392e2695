package provider_test

import (
	"sync"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-foundation/lattice-go/engine/chunks/provider"
	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/model/messages"
	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/module/mempool/stdmap"
	"github.com/lattice-foundation/lattice-go/module/merkle"
	"github.com/lattice-foundation/lattice-go/network"
	"github.com/lattice-foundation/lattice-go/network/stub"
	badgerstorage "github.com/lattice-foundation/lattice-go/storage/badger"
	"github.com/lattice-foundation/lattice-go/utils/unittest"
)

// collector is a test engine capturing the events delivered on a channel.
type collector struct {
	mu     sync.Mutex
	events []interface{}
}

func (c *collector) Process(channel network.Channel, originID lattice.Identifier, event interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *collector) all() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.events...)
}

func withProvider(t *testing.T, f func(pending *stdmap.PartialChunks, store *badgerstorage.Chunks, requestCon network.Conduit, responses *collector)) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		log := zerolog.Nop()
		codec := erasure.NewCodec(erasure.WithShardSize(128))

		hub := stub.NewNetworkHub()
		providerID := unittest.IdentifierFixture()
		providerNet := stub.NewNetwork(hub, providerID)

		pending, err := stdmap.NewPartialChunks(codec)
		require.NoError(t, err)
		store := badgerstorage.NewChunks(db)

		prov, err := provider.New(log, providerNet, pending, store, codec)
		require.NoError(t, err)
		<-prov.Ready()
		defer func() {
			unittest.RequireCloseBefore(t, prov.Done(), time.Second, "provider shutdown")
		}()

		requesterID := unittest.IdentifierFixture()
		requesterNet := stub.NewNetwork(hub, requesterID)
		responses := &collector{}
		_, err = requesterNet.Register(network.ProvideChunks, responses)
		require.NoError(t, err)
		requestCon, err := requesterNet.Conduit(network.RequestChunks)
		require.NoError(t, err)

		f(pending, store, requestCon, responses)
	})
}

// TestServePartFromStore requests a part of a persisted chunk and verifies
// the regenerated part against the parts root.
func TestServePartFromStore(t *testing.T) {
	withProvider(t, func(pending *stdmap.PartialChunks, store *badgerstorage.Chunks, con network.Conduit, responses *collector) {
		_, sk := unittest.IdentityFixture()
		codec := erasure.NewCodec(erasure.WithShardSize(128))
		produced := unittest.ProducedChunkFixture(sk, codec, unittest.ChunkBodyFixture(3, 2), 1, 4, 4)
		require.NoError(t, store.Store(produced.Chunk()))

		require.NoError(t, con.Publish(&messages.ChunkPartRequest{
			ChunkID: produced.ID(),
			Index:   3,
			Nonce:   1,
		}))

		require.Eventually(t, func() bool {
			return len(responses.all()) == 1
		}, 2*time.Second, 10*time.Millisecond, "no response received")

		push, ok := responses.all()[0].(*messages.ChunkPartPush)
		require.True(t, ok)
		assert.Equal(t, produced.ID(), push.ChunkID)
		require.NotNil(t, push.Header)
		require.NotNil(t, push.Part)
		assert.Equal(t, uint32(3), push.Part.Index)
		assert.Equal(t, produced.Parts[3].Data, push.Part.Data)
		assert.True(t, merkle.Verify(push.Header.PartsRoot, push.Part.Data, int(push.Part.Index), push.Part.Proof))
	})
}

// TestServePartFromCache serves a part still under assembly.
func TestServePartFromCache(t *testing.T) {
	withProvider(t, func(pending *stdmap.PartialChunks, store *badgerstorage.Chunks, con network.Conduit, responses *collector) {
		_, sk := unittest.IdentityFixture()
		codec := erasure.NewCodec(erasure.WithShardSize(128))
		produced := unittest.ProducedChunkFixture(sk, codec, unittest.ChunkBodyFixture(3, 2), 1, 4, 4)
		chunkID := produced.ID()

		pending.InsertHeader(produced.Header)
		pending.InsertPart(chunkID, produced.Parts[1])

		require.NoError(t, con.Publish(&messages.ChunkPartRequest{ChunkID: chunkID, Index: 1, Nonce: 2}))

		require.Eventually(t, func() bool {
			return len(responses.all()) == 1
		}, 2*time.Second, 10*time.Millisecond, "no response received")

		push, ok := responses.all()[0].(*messages.ChunkPartPush)
		require.True(t, ok)
		assert.Equal(t, produced.Parts[1], push.Part)
	})
}

// TestServeReceiptProof requests the receipt proof of one target shard.
func TestServeReceiptProof(t *testing.T) {
	withProvider(t, func(pending *stdmap.PartialChunks, store *badgerstorage.Chunks, con network.Conduit, responses *collector) {
		_, sk := unittest.IdentityFixture()
		codec := erasure.NewCodec(erasure.WithShardSize(128))
		produced := unittest.ProducedChunkFixture(sk, codec, unittest.ChunkBodyFixture(3, 2), 1, 4, 4)
		require.NoError(t, store.Store(produced.Chunk()))

		want := produced.ReceiptProofs[0]
		require.NoError(t, con.Publish(&messages.ReceiptProofRequest{
			ChunkID: produced.ID(),
			ToShard: want.ToShard,
			Nonce:   3,
		}))

		require.Eventually(t, func() bool {
			return len(responses.all()) == 1
		}, 2*time.Second, 10*time.Millisecond, "no response received")

		push, ok := responses.all()[0].(*messages.ReceiptProofPush)
		require.True(t, ok)
		require.NotNil(t, push.Proof)
		assert.Equal(t, want.ToShard, push.Proof.ToShard)
		assert.True(t, merkle.Verify(push.Header.ReceiptsRoot, push.Proof.LeafBody(), int(push.Proof.ToShard), push.Proof.Proof))
	})
}

// TestUnknownChunkIgnored checks that requests for unknown chunks are
// dropped without a response.
func TestUnknownChunkIgnored(t *testing.T) {
	withProvider(t, func(pending *stdmap.PartialChunks, store *badgerstorage.Chunks, con network.Conduit, responses *collector) {
		require.NoError(t, con.Publish(&messages.ChunkPartRequest{
			ChunkID: unittest.IdentifierFixture(),
			Index:   0,
			Nonce:   4,
		}))

		time.Sleep(100 * time.Millisecond)
		assert.Empty(t, responses.all())
	})
}
