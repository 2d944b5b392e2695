package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a resource cannot be found.
	ErrNotFound = errors.New("could not find the entity in storage")

	// ErrAlreadyExists is returned when the entity is already stored.
	ErrAlreadyExists = errors.New("entity already exists in storage")

	// ErrDataMismatch is returned when the stored entity differs from the
	// one being inserted under the same key.
	ErrDataMismatch = errors.New("data for key is different from stored entity")
)
