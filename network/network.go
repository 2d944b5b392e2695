// Package network defines the interfaces engines use to exchange messages
// with their counterparts on other nodes.
package network

import (
	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// Network represents the networking layer of the node. Engines register on
// a channel to obtain a conduit for sending, and to receive the messages
// their counterparts publish on the same channel.
type Network interface {
	// Register attaches the engine as the receiver of the given channel and
	// returns the conduit for sending messages on it. Each channel can only
	// be registered once per node.
	Register(channel Channel, engine MessageProcessor) (Conduit, error)

	// Conduit returns a send-only conduit for the given channel, for
	// engines that send on a channel whose inbound messages are received by
	// another engine.
	Conduit(channel Channel) (Conduit, error)
}

// MessageProcessor handles messages delivered from the network. Process is
// called by networking layer goroutines; implementations must not block on
// expensive work.
type MessageProcessor interface {
	Process(channel Channel, originID lattice.Identifier, event interface{}) error
}

// Conduit sends messages on the channel it was registered for.
type Conduit interface {

	// Publish delivers the event to all subscribers of the channel, on a
	// best-effort basis.
	Publish(event interface{}, targetIDs ...lattice.Identifier) error

	// Unicast delivers the event to a single target, on a best-effort basis.
	Unicast(event interface{}, targetID lattice.Identifier) error

	// Multicast delivers the event to the given targets, on a best-effort
	// basis.
	Multicast(event interface{}, targetIDs ...lattice.Identifier) error
}

// Codec encodes and decodes network events for transmission.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}
