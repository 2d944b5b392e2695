package lattice

import (
	"github.com/onflow/flow-go/crypto"
)

// Identity represents one validator of the network, as seen through the
// validator-assignment collaborator. The identity is keyed by the node ID,
// which is derived from the staking public key.
type Identity struct {
	NodeID    Identifier
	PublicKey crypto.PublicKey
	Stake     uint64
}

// ID returns the node ID of the validator.
func (iy *Identity) ID() Identifier {
	return iy.NodeID
}

// Checksum includes the stake, which may change between epochs.
func (iy *Identity) Checksum() Identifier {
	return MakeID(struct {
		NodeID    Identifier
		PublicKey []byte
		Stake     uint64
	}{iy.NodeID, iy.PublicKey.Encode(), iy.Stake})
}

// IdentityList is a list of validator identities.
type IdentityList []*Identity

// NodeIDs returns the node IDs of all identities in the list.
func (il IdentityList) NodeIDs() IdentifierList {
	ids := make(IdentifierList, 0, len(il))
	for _, iy := range il {
		ids = append(ids, iy.NodeID)
	}
	return ids
}

// ByNodeID returns the identity with the given node ID, if it exists.
func (il IdentityList) ByNodeID(nodeID Identifier) (*Identity, bool) {
	for _, iy := range il {
		if iy.NodeID == nodeID {
			return iy, true
		}
	}
	return nil, false
}
