// Package codec implements the wire encoding of network events: a one-byte
// message code followed by the CBOR encoding of the event.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lattice-foundation/lattice-go/network"
)

var encMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not create cbor encoding mode: %v", err))
	}
	return mode
}()

type Codec struct{}

var _ network.Codec = (*Codec)(nil)

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Encode(v interface{}) ([]byte, error) {
	code, err := codeOf(v)
	if err != nil {
		return nil, fmt.Errorf("could not determine message code: %w", err)
	}
	payload, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode message: %w", err)
	}
	data := make([]byte, 0, len(payload)+1)
	data = append(data, code)
	data = append(data, payload...)
	return data, nil
}

func (c *Codec) Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	v, err := messageOf(data[0])
	if err != nil {
		return nil, fmt.Errorf("could not determine message type: %w", err)
	}
	err = cbor.Unmarshal(data[1:], v)
	if err != nil {
		return nil, fmt.Errorf("could not decode message: %w", err)
	}
	return v, nil
}
