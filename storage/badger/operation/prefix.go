package operation

// Key prefixes. Never reuse a code for a different entity.
const (
	codeChunk       = 10 // chunk hash -> stored chunk
	codeChunkHeight = 11 // (shard, height) -> chunk hash
)
