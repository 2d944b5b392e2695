package lattice

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// HashLen is the byte length of all content hashes in the protocol.
const HashLen = 32

// Identifier represents a 32-byte unique identifier for an entity, derived
// from the hash of its canonical encoding.
type Identifier [HashLen]byte

// IdentifierList is a list of identifiers, mostly used to address sets of
// validators on the network.
type IdentifierList []Identifier

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

// fingerprint encoding must be deterministic so that all nodes derive the
// same identifier for the same entity.
var fingerprintMode cbor.EncMode

func init() {
	var err error
	fingerprintMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not initialize fingerprint encoding: %s", err))
	}
}

// HashToID hashes the given bytes into an identifier.
func HashToID(data []byte) Identifier {
	return Identifier(blake2b.Sum256(data))
}

// MakeID creates an identifier from the canonical encoding of the given
// entity. Only exported fields participate in the fingerprint.
func MakeID(entity interface{}) Identifier {
	data, err := fingerprintMode.Marshal(entity)
	if err != nil {
		panic(fmt.Sprintf("could not fingerprint entity: %s", err))
	}
	return HashToID(data)
}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identifier) UnmarshalText(text []byte) error {
	var err error
	_, err = hex.Decode(id[:], text)
	return err
}

// Contains checks whether the list contains the given identifier.
func (il IdentifierList) Contains(target Identifier) bool {
	for _, id := range il {
		if id == target {
			return true
		}
	}
	return false
}

// Strings converts the list into a list of hex strings, mainly for logging.
func (il IdentifierList) Strings() []string {
	ss := make([]string, 0, len(il))
	for _, id := range il {
		ss = append(ss, id.String())
	}
	return ss
}
