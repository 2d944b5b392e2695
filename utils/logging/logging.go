// Package logging holds small helpers for structured log fields.
package logging

import (
	"fmt"

	"github.com/lattice-foundation/lattice-go/model/lattice"
)

// Type returns the dynamic type name of the value, for logging unknown
// payloads.
func Type(obj interface{}) string {
	return fmt.Sprintf("%T", obj)
}

// ID returns the identifier as a hex-encoded log field value.
func ID(id lattice.Identifier) string {
	return id.String()
}
