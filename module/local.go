package module

import (
	"github.com/onflow/flow-go/crypto"

	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// Local encapsulates the stable identity of the local node and its staking
// key operations.
type Local interface {

	// NodeID returns the node ID of the local node.
	NodeID() lattice.Identifier

	// PublicKey returns the staking public key of the local node.
	PublicKey() crypto.PublicKey

	// Sign signs the given message with the staking key of the local node.
	Sign(message []byte) (crypto.Signature, error)
}
