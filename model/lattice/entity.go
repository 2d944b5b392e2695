package lattice

// Entity defines how a data structure exposes its identity and integrity to
// generic components such as memory pools and storage.
type Entity interface {

	// ID returns a unique id for this entity using a dedicated scheme for
	// each concrete type; the ID is used to address the entity internally
	// and on the network.
	ID() Identifier

	// Checksum returns a checksum over the full contents of the entity,
	// including mutable attributes not covered by the ID.
	Checksum() Identifier
}

// GetIDs extracts the IDs from a slice of entities.
func GetIDs(entities []Entity) IdentifierList {
	ids := make(IdentifierList, 0, len(entities))
	for _, entity := range entities {
		ids = append(ids, entity.ID())
	}
	return ids
}
