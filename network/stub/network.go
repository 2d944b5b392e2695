// Package stub provides an in-memory network for testing engines against
// their counterparts without real networking. Messages pass through the
// production codec, so encoding bugs surface in engine tests.
package stub

import (
	"fmt"
	"sync"

	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/network"
	"github.com/lattice-foundation/lattice-go/network/codec"
)

// Hub wires the stub networks of a test's nodes together.
type Hub struct {
	mu       sync.Mutex
	networks map[lattice.Identifier]*Network
}

func NewNetworkHub() *Hub {
	return &Hub{
		networks: make(map[lattice.Identifier]*Network),
	}
}

func (h *Hub) addNetwork(net *Network) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.networks[net.originID] = net
}

func (h *Hub) getNetwork(nodeID lattice.Identifier) (*Network, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	net, ok := h.networks[nodeID]
	return net, ok
}

func (h *Hub) identifiers() lattice.IdentifierList {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make(lattice.IdentifierList, 0, len(h.networks))
	for id := range h.networks {
		ids = append(ids, id)
	}
	return ids
}

// Network is the stub network of a single node. Sent messages are encoded,
// decoded and delivered synchronously to the registered engine of each
// target node.
type Network struct {
	mu       sync.Mutex
	hub      *Hub
	originID lattice.Identifier
	codec    network.Codec
	engines  map[network.Channel]network.MessageProcessor
}

var _ network.Network = (*Network)(nil)

func NewNetwork(hub *Hub, originID lattice.Identifier) *Network {
	net := &Network{
		hub:      hub,
		originID: originID,
		codec:    codec.NewCodec(),
		engines:  make(map[network.Channel]network.MessageProcessor),
	}
	hub.addNetwork(net)
	return net
}

func (n *Network) Register(channel network.Channel, engine network.MessageProcessor) (network.Conduit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.engines[channel]; ok {
		return nil, fmt.Errorf("channel already registered (%s)", channel)
	}
	n.engines[channel] = engine
	return &conduit{net: n, channel: channel}, nil
}

func (n *Network) Conduit(channel network.Channel) (network.Conduit, error) {
	return &conduit{net: n, channel: channel}, nil
}

func (n *Network) engine(channel network.Channel) (network.MessageProcessor, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	engine, ok := n.engines[channel]
	return engine, ok
}

// deliver routes one event to one target, through an encode/decode
// round-trip. Targets without a registered engine drop the message, like a
// real network would.
func (n *Network) deliver(channel network.Channel, event interface{}, targetID lattice.Identifier) error {
	data, err := n.codec.Encode(event)
	if err != nil {
		return fmt.Errorf("could not encode event: %w", err)
	}

	target, ok := n.hub.getNetwork(targetID)
	if !ok {
		return nil
	}
	engine, ok := target.engine(channel)
	if !ok {
		return nil
	}

	decoded, err := n.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("could not decode event: %w", err)
	}
	return engine.Process(channel, n.originID, decoded)
}

type conduit struct {
	net     *Network
	channel network.Channel
}

var _ network.Conduit = (*conduit)(nil)

func (c *conduit) Publish(event interface{}, targetIDs ...lattice.Identifier) error {
	if len(targetIDs) == 0 {
		for _, id := range c.net.hub.identifiers() {
			if id == c.net.originID {
				continue
			}
			targetIDs = append(targetIDs, id)
		}
	}
	return c.Multicast(event, targetIDs...)
}

func (c *conduit) Unicast(event interface{}, targetID lattice.Identifier) error {
	return c.net.deliver(c.channel, event, targetID)
}

func (c *conduit) Multicast(event interface{}, targetIDs ...lattice.Identifier) error {
	for _, targetID := range targetIDs {
		err := c.net.deliver(c.channel, event, targetID)
		if err != nil {
			return fmt.Errorf("could not deliver to %x: %w", targetID[:8], err)
		}
	}
	return nil
}
