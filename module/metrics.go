package module

// ChunkMetrics exposes the observability hooks of the chunk pipeline.
type ChunkMetrics interface {

	// OnPartReceived is called for every part accepted into the cache.
	OnPartReceived()

	// OnReceiptProofReceived is called for every accepted receipt proof.
	OnReceiptProofReceived()

	// OnDuplicateFragment is called when an already-held fragment arrives.
	OnDuplicateFragment()

	// OnInvalidFragment is called when a fragment fails proof or bounds
	// checks and is discarded.
	OnInvalidFragment()

	// OnPartRequested is called for every part/receipt request dispatched,
	// including retries.
	OnPartRequested()

	// OnChunkComplete is called when a chunk is decoded and verified.
	OnChunkComplete()

	// OnChunkInvalid is called when a chunk reaches the invalid state.
	OnChunkInvalid()

	// CacheSize reports the current entry count and byte footprint of the
	// chunk cache.
	CacheSize(entries uint, bytes uint64)

	// OnCacheEviction is called for every evicted cache entry.
	OnCacheEviction()
}
