// Package metrics implements the metrics interfaces on prometheus
// collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lattice-foundation/lattice-go/module"
)

const (
	namespaceLattice = "lattice"
	subsystemChunks  = "chunks"
)

// ChunkCollector implements the chunk pipeline metrics on prometheus.
type ChunkCollector struct {
	partsReceived    prometheus.Counter
	receiptsReceived prometheus.Counter
	duplicates       prometheus.Counter
	invalidFragments prometheus.Counter
	partsRequested   prometheus.Counter
	chunksComplete   prometheus.Counter
	chunksInvalid    prometheus.Counter
	cacheEntries     prometheus.Gauge
	cacheBytes       prometheus.Gauge
	cacheEvictions   prometheus.Counter
}

var _ module.ChunkMetrics = (*ChunkCollector)(nil)

func NewChunkCollector() *ChunkCollector {
	return &ChunkCollector{
		partsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "parts_received_total",
			Help:      "number of erasure-coded parts accepted into the cache",
		}),
		receiptsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "receipt_proofs_received_total",
			Help:      "number of receipt proofs accepted into the cache",
		}),
		duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "duplicate_fragments_total",
			Help:      "number of fragments dropped as already held",
		}),
		invalidFragments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "invalid_fragments_total",
			Help:      "number of fragments dropped for failing proof or bounds checks",
		}),
		partsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "requests_dispatched_total",
			Help:      "number of part and receipt proof requests sent, including retries",
		}),
		chunksComplete: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "chunks_complete_total",
			Help:      "number of chunks decoded and verified",
		}),
		chunksInvalid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "chunks_invalid_total",
			Help:      "number of chunks rejected as invalid",
		}),
		cacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "cache_entries",
			Help:      "number of chunks currently under assembly",
		}),
		cacheBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "cache_bytes",
			Help:      "byte footprint of the chunk cache",
		}),
		cacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceLattice,
			Subsystem: subsystemChunks,
			Name:      "cache_evictions_total",
			Help:      "number of cache entries evicted to stay within bounds",
		}),
	}
}

func (cc *ChunkCollector) OnPartReceived() {
	cc.partsReceived.Inc()
}

func (cc *ChunkCollector) OnReceiptProofReceived() {
	cc.receiptsReceived.Inc()
}

func (cc *ChunkCollector) OnDuplicateFragment() {
	cc.duplicates.Inc()
}

func (cc *ChunkCollector) OnInvalidFragment() {
	cc.invalidFragments.Inc()
}

func (cc *ChunkCollector) OnPartRequested() {
	cc.partsRequested.Inc()
}

func (cc *ChunkCollector) OnChunkComplete() {
	cc.chunksComplete.Inc()
}

func (cc *ChunkCollector) OnChunkInvalid() {
	cc.chunksInvalid.Inc()
}

func (cc *ChunkCollector) CacheSize(entries uint, bytes uint64) {
	cc.cacheEntries.Set(float64(entries))
	cc.cacheBytes.Set(float64(bytes))
}

func (cc *ChunkCollector) OnCacheEviction() {
	cc.cacheEvictions.Inc()
}
