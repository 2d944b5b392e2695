// Command lattice runs a single validator node of the chunk layer: the
// assembly, request, provide and produce engines wired over a local network
// hub, with badger persistence and a prometheus endpoint.
//
// The production transport is owned by a separate layer; this binary wires
// the in-process network, which is enough to run the chunk pipeline of one
// process and to exercise it end to end.
package main

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badgerdb "github.com/dgraph-io/badger/v2"
	"github.com/onflow/flow-go/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/lattice-foundation/lattice-go/engine/chunks/assembler"
	"github.com/lattice-foundation/lattice-go/engine/chunks/producer"
	"github.com/lattice-foundation/lattice-go/engine/chunks/provider"
	"github.com/lattice-foundation/lattice-go/engine/chunks/requester"
	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/module"
	"github.com/lattice-foundation/lattice-go/module/assignment"
	"github.com/lattice-foundation/lattice-go/module/erasure"
	"github.com/lattice-foundation/lattice-go/module/local"
	"github.com/lattice-foundation/lattice-go/module/mempool/stdmap"
	"github.com/lattice-foundation/lattice-go/module/metrics"
	"github.com/lattice-foundation/lattice-go/network/stub"
	storagebadger "github.com/lattice-foundation/lattice-go/storage/badger"
)

func main() {

	var (
		datadir       string
		level         string
		metricsAddr   string
		shardID       uint64
		shardCount    uint64
		cacheLimit    uint
		cacheBudget   uint64
		shardSize     int
		sweepInterval time.Duration
		retryInitial  time.Duration
		retryMaximum  time.Duration
		maxAttempts   uint64
	)

	pflag.StringVar(&datadir, "datadir", "data", "directory for the badger database")
	pflag.StringVar(&level, "loglevel", "info", "log level (debug, info, warn, error)")
	pflag.StringVar(&metricsAddr, "metrics-addr", ":9090", "address for the prometheus endpoint")
	pflag.Uint64Var(&shardID, "shard", 0, "shard of the local node")
	pflag.Uint64Var(&shardCount, "shard-count", 4, "number of shards")
	pflag.UintVar(&cacheLimit, "cache-limit", 1000, "maximum chunks under assembly")
	pflag.Uint64Var(&cacheBudget, "cache-bytes", 1<<30, "byte budget of the chunk cache")
	pflag.IntVar(&shardSize, "shard-size", erasure.DefaultShardSize, "target data shard size in bytes")
	pflag.DurationVar(&sweepInterval, "sweep-interval", time.Second, "request sweep interval")
	pflag.DurationVar(&retryInitial, "retry-initial", time.Second, "initial request retry interval")
	pflag.DurationVar(&retryMaximum, "retry-maximum", time.Minute, "maximum request retry interval")
	pflag.Uint64Var(&maxAttempts, "max-attempts", 0, "request attempts before a chunk is given up (0 = unbounded)")
	pflag.Parse()

	zlvl, err := zerolog.ParseLevel(level)
	if err != nil {
		zlvl = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zlvl)

	err = run(log, config{
		datadir:       datadir,
		metricsAddr:   metricsAddr,
		shardID:       shardID,
		shardCount:    shardCount,
		cacheLimit:    cacheLimit,
		cacheBudget:   cacheBudget,
		shardSize:     shardSize,
		sweepInterval: sweepInterval,
		retryInitial:  retryInitial,
		retryMaximum:  retryMaximum,
		maxAttempts:   maxAttempts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("node failed")
	}
}

type config struct {
	datadir       string
	metricsAddr   string
	shardID       uint64
	shardCount    uint64
	cacheLimit    uint
	cacheBudget   uint64
	shardSize     int
	sweepInterval time.Duration
	retryInitial  time.Duration
	retryMaximum  time.Duration
	maxAttempts   uint64
}

func run(log zerolog.Logger, cfg config) error {

	seed := make([]byte, 64)
	_, err := rand.Read(seed)
	if err != nil {
		return fmt.Errorf("could not read entropy: %w", err)
	}
	sk, err := crypto.GeneratePrivateKey(crypto.ECDSAP256, seed)
	if err != nil {
		return fmt.Errorf("could not generate staking key: %w", err)
	}
	nodeID := lattice.HashToID(sk.PublicKey().Encode())
	me, err := local.New(nodeID, sk)
	if err != nil {
		return fmt.Errorf("could not initialize local identity: %w", err)
	}
	log = log.With().Hex("node_id", nodeID[:8]).Logger()

	db, err := badgerdb.Open(badgerdb.DefaultOptions(cfg.datadir).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer db.Close()

	collector := metrics.NewChunkCollector()
	chunkStore := storagebadger.NewChunks(db)
	codec := erasure.NewCodec(erasure.WithShardSize(cfg.shardSize))

	pending, err := stdmap.NewPartialChunks(codec,
		stdmap.WithLimit(cfg.cacheLimit),
		stdmap.WithByteBudget(cfg.cacheBudget),
	)
	if err != nil {
		return fmt.Errorf("could not initialize chunk cache: %w", err)
	}
	requests := stdmap.NewChunkRequests(10 * cfg.cacheLimit)

	identity := &lattice.Identity{NodeID: nodeID, PublicKey: sk.PublicKey(), Stake: 1000}
	assigner, err := assignment.NewStatic(lattice.IdentityList{identity}, cfg.shardCount)
	if err != nil {
		return fmt.Errorf("could not initialize assigner: %w", err)
	}

	hub := stub.NewNetworkHub()
	net := stub.NewNetwork(hub, nodeID)

	consumer := module.ChunkConsumerFunc(func(chunk *lattice.Chunk) {
		chunkID := chunk.ID()
		log.Info().
			Hex("chunk_id", chunkID[:]).
			Uint64("shard", chunk.Header.ShardID).
			Uint64("height", chunk.Header.Height).
			Msg("chunk delivered to chain layer")
	})

	asm, err := assembler.New(log, collector, net, me, assigner, pending, requests, chunkStore, codec, consumer)
	if err != nil {
		return fmt.Errorf("could not initialize assembler: %w", err)
	}
	req, err := requester.New(log, requester.Config{
		SweepInterval:   cfg.sweepInterval,
		RetryInitial:    cfg.retryInitial,
		RetryMultiplier: 2,
		RetryMaximum:    cfg.retryMaximum,
		MaxAttempts:     cfg.maxAttempts,
	}, collector, net, me, assigner, pending, requests)
	if err != nil {
		return fmt.Errorf("could not initialize requester: %w", err)
	}
	prov, err := provider.New(log, net, pending, chunkStore, codec)
	if err != nil {
		return fmt.Errorf("could not initialize provider: %w", err)
	}
	prod, err := producer.New(log, collector, net, me, assigner, pending, chunkStore, codec)
	if err != nil {
		return fmt.Errorf("could not initialize producer: %w", err)
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe(cfg.metricsAddr, nil)
		if err != nil {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	<-asm.Ready()
	<-req.Ready()
	<-prov.Ready()
	<-prod.Ready()
	log.Info().Uint64("shard", cfg.shardID).Msg("node up")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	<-prod.Done()
	<-prov.Done()
	<-req.Done()
	<-asm.Done()
	return nil
}
