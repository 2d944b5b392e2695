package network

// Channel identifies a logical message stream between counterpart engines
// on different nodes.
type Channel string

func (c Channel) String() string {
	return string(c)
}

// Channels used by the chunk subsystem.
const (
	// PushChunks carries unsolicited chunk headers, parts and receipt
	// proofs from producers and providers to assemblers.
	PushChunks = Channel("push-chunks")

	// RequestChunks carries part and receipt proof requests from
	// assembling nodes to the nodes holding the data.
	RequestChunks = Channel("request-chunks")

	// ProvideChunks carries the responses to chunk requests.
	ProvideChunks = Channel("provide-chunks")
)
