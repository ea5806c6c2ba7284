// Package content implements the LwM2M content-format codecs (spec §6):
// SenML CBOR (the mandatory format), plaintext, opaque, and TLV, plus
// LwM2M CBOR. Formats are a closed set dispatched through a Format enum,
// not a registry of function pointers, mirroring the teacher stack's
// closed od.ODR-style switch rather than an open-ended plugin vtable
// (spec Design Notes §9).
package content

import (
	"fmt"

	"github.com/samsamfire/golwm2m/pkg/dm"
)

// Format is the CoAP Content-Format number (spec §6) identifying the
// encoding used on the wire.
type Format uint16

const (
	FormatText        Format = 1541
	FormatOpaque      Format = 1544
	FormatTLV         Format = 11542
	FormatSenMLJSON   Format = 110
	FormatSenMLCBOR   Format = 112
	FormatLwM2MJSON   Format = 11543
	FormatLwM2MCBOR   Format = 11544
	FormatLinkFormat  Format = 40
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text/plain"
	case FormatOpaque:
		return "application/octet-stream"
	case FormatTLV:
		return "application/vnd.oma.lwm2m+tlv"
	case FormatSenMLCBOR:
		return "application/senml+cbor"
	case FormatSenMLJSON:
		return "application/senml+json"
	case FormatLwM2MCBOR:
		return "application/vnd.oma.lwm2m+cbor"
	case FormatLwM2MJSON:
		return "application/vnd.oma.lwm2m+json"
	case FormatLinkFormat:
		return "application/link-format"
	default:
		return fmt.Sprintf("format(%d)", uint16(f))
	}
}

// Codec encodes a set of dm.Leaf values to, and decodes them from, one
// wire representation. base is the path all encoded leaves are relative
// to (the request URI), needed because SenML/TLV/LwM2M-CBOR all encode
// paths relative to it rather than in absolute form.
type Codec interface {
	Format() Format
	Encode(base dm.Path, leaves []dm.Leaf) ([]byte, error)
	Decode(base dm.Path, body []byte) ([]dm.Leaf, error)
}

var ErrUnsupportedFormat = fmt.Errorf("content: unsupported content format")

// byFormat is the closed dispatch table every codec registers itself
// into at package init, so callers never need a type switch at each call
// site (spec §6's "tagged-union dispatch" requirement).
var byFormat = map[Format]Codec{}

func register(c Codec) { byFormat[c.Format()] = c }

// Lookup returns the Codec for f, or ErrUnsupportedFormat.
func Lookup(f Format) (Codec, error) {
	c, ok := byFormat[f]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	return c, nil
}

// IsSupported reports whether f has a registered Codec.
func IsSupported(f Format) bool {
	_, ok := byFormat[f]
	return ok
}
