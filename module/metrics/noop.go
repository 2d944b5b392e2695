package metrics

import (
	"github.com/lattice-foundation/lattice-go/module"
)

// NoopCollector satisfies the metrics interfaces without recording anything;
// used in tests and tools.
type NoopCollector struct{}

var _ module.ChunkMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) OnPartReceived()                      {}
func (nc *NoopCollector) OnReceiptProofReceived()              {}
func (nc *NoopCollector) OnDuplicateFragment()                 {}
func (nc *NoopCollector) OnInvalidFragment()                   {}
func (nc *NoopCollector) OnPartRequested()                     {}
func (nc *NoopCollector) OnChunkComplete()                     {}
func (nc *NoopCollector) OnChunkInvalid()                      {}
func (nc *NoopCollector) CacheSize(entries uint, bytes uint64) {}
func (nc *NoopCollector) OnCacheEviction()                     {}
