// Package local implements the module.Local interface over the staking key
// of the node.
package local

import (
	"fmt"

	"github.com/onflow/flow-go/crypto"
	"github.com/onflow/flow-go/crypto/hash"

	"github.com/lattice-foundation/lattice-go/model/lattice"
)

type Local struct {
	nodeID lattice.Identifier
	sk     crypto.PrivateKey
}

func New(nodeID lattice.Identifier, sk crypto.PrivateKey) (*Local, error) {
	if sk == nil {
		return nil, fmt.Errorf("missing staking key for node %x", nodeID)
	}
	l := &Local{
		nodeID: nodeID,
		sk:     sk,
	}
	return l, nil
}

func (l *Local) NodeID() lattice.Identifier {
	return l.nodeID
}

func (l *Local) PublicKey() crypto.PublicKey {
	return l.sk.PublicKey()
}

// Sign signs the message with the staking key. A fresh hasher is created per
// call because hashers are not safe for concurrent use.
func (l *Local) Sign(message []byte) (crypto.Signature, error) {
	return l.sk.Sign(message, hash.NewSHA3_256())
}
