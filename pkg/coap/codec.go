package coap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version1       = 1
	payloadMarker  = 0xFF
	maxTokenLength = 8
)

// Error is a protocol-level decode failure. When the failing message was a
// server request, ResponseCode names the CoAP error the caller should send
// back (e.g. 4.02 Bad Option); when decoding a response, ResponseCode is
// zero and the caller simply fails the exchange. This mirrors the teacher
// stack's od.ODR -> SDOAbortCode conversion at the codec boundary.
type Error struct {
	Msg          string
	ResponseCode Code
}

func (e *Error) Error() string { return e.Msg }

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), ResponseCode: code}
}

var (
	ErrShortHeader   = errors.New("coap: message shorter than 4-byte header")
	ErrTokenTooLong  = errors.New("coap: token length exceeds 8 bytes")
	ErrWrongVersion  = errors.New("coap: unsupported CoAP version")
	ErrTokenTruncate = errors.New("coap: token truncated")
)

// Encode serializes m into the caller-owned buffer buf and returns the
// slice actually written, or an error if buf is too small. Encoding never
// allocates beyond the returned slice's backing array when buf is large
// enough (an internal OptionSet sort is the only transient allocation).
func Encode(m *Message, buf []byte) ([]byte, error) {
	if len(m.Token) > maxTokenLength {
		return nil, ErrTokenTooLong
	}
	opts := append(OptionSet(nil), m.Options...)
	opts.SortPtr()

	need := 4 + len(m.Token)
	if len(buf) < need {
		return nil, fmt.Errorf("coap: buffer too small for header+token (%d < %d)", len(buf), need)
	}

	buf[0] = (version1 << 6) | (uint8(m.Type) << 4) | uint8(len(m.Token))
	buf[1] = uint8(m.Code)
	binary.BigEndian.PutUint16(buf[2:4], m.MessageID)
	n := 4
	n += copy(buf[n:], m.Token)

	lastID := OptionID(0)
	for _, o := range opts {
		delta := int(o.ID) - int(lastID)
		if delta < 0 {
			return nil, errors.New("coap: options not sorted ascending")
		}
		lastID = o.ID
		length := len(o.Value)

		deltaNibble, deltaExt, deltaExtLen := splitExtended(delta)
		lenNibble, lenExt, lenExtLen := splitExtended(length)

		hdrLen := 1 + deltaExtLen + lenExtLen
		if len(buf) < n+hdrLen+length {
			return nil, errors.New("coap: buffer too small for options")
		}
		buf[n] = (deltaNibble << 4) | lenNibble
		n++
		if deltaExtLen == 1 {
			buf[n] = deltaExt[0]
			n++
		} else if deltaExtLen == 2 {
			buf[n] = deltaExt[0]
			buf[n+1] = deltaExt[1]
			n += 2
		}
		if lenExtLen == 1 {
			buf[n] = lenExt[0]
			n++
		} else if lenExtLen == 2 {
			buf[n] = lenExt[0]
			buf[n+1] = lenExt[1]
			n += 2
		}
		n += copy(buf[n:], o.Value)
	}

	if len(m.Payload) > 0 {
		if len(buf) < n+1+len(m.Payload) {
			return nil, errors.New("coap: buffer too small for payload")
		}
		buf[n] = payloadMarker
		n++
		n += copy(buf[n:], m.Payload)
	}
	return buf[:n], nil
}

// splitExtended returns the 4-bit nibble to write plus 0/1/2 extension
// bytes for a delta or length value, per RFC 7252 §3.1's 13/14 extended
// encoding (13 => +13 in one byte, 14 => +269 in two bytes).
func splitExtended(v int) (nibble uint8, ext [2]byte, extLen int) {
	switch {
	case v < 13:
		return uint8(v), ext, 0
	case v < 13+256:
		ext[0] = byte(v - 13)
		return 13, ext, 1
	default:
		x := v - 269
		ext[0] = byte(x >> 8)
		ext[1] = byte(x)
		return 14, ext, 2
	}
}

// Decode parses a wire-format CoAP message. A header shorter than 4
// bytes, a wrong version, or a truncated token returns the plain
// ErrShortHeader / ErrWrongVersion / ErrTokenTruncate sentinels; a token
// length over 8, out-of-order options, a payload marker with no payload,
// or an option whose declared length overruns the buffer return an
// *Error; an unknown critical
// option decodes successfully (callers must check UnknownCritical and
// answer 4.02 themselves per spec §4.1, since only server-request handling
// knows whether a response is expected).
func Decode(buf []byte) (*Message, error) {
	if len(buf) < 4 {
		return nil, ErrShortHeader
	}
	ver := buf[0] >> 6
	if ver != version1 {
		return nil, ErrWrongVersion
	}
	typ := Type((buf[0] >> 4) & 0x03)
	tkl := int(buf[0] & 0x0F)
	if tkl > maxTokenLength {
		return nil, newErr(BadRequest, "coap: token length %d > 8", tkl)
	}
	code := Code(buf[1])
	mid := binary.BigEndian.Uint16(buf[2:4])

	pos := 4
	if pos+tkl > len(buf) {
		return nil, ErrTokenTruncate
	}
	token := append([]byte(nil), buf[pos:pos+tkl]...)
	pos += tkl

	var opts OptionSet
	lastID := OptionID(0)
	for pos < len(buf) {
		first := buf[pos]
		if first == payloadMarker {
			pos++
			if pos >= len(buf) {
				return nil, newErr(BadOption, "coap: payload marker with no payload")
			}
			return &Message{
				Type: typ, Code: code, MessageID: mid, Token: token,
				Options: opts, Payload: append([]byte(nil), buf[pos:]...),
			}, nil
		}
		pos++
		deltaNibble := first >> 4
		lenNibble := first & 0x0F

		delta, newPos, err := readExtended(buf, pos, deltaNibble)
		if err != nil {
			return nil, newErr(BadOption, "coap: %v", err)
		}
		pos = newPos
		length, newPos, err := readExtended(buf, pos, lenNibble)
		if err != nil {
			return nil, newErr(BadOption, "coap: %v", err)
		}
		pos = newPos

		id := lastID + OptionID(delta)
		if id < lastID {
			return nil, newErr(BadOption, "coap: option number decreased")
		}
		lastID = id

		if pos+length > len(buf) {
			return nil, newErr(BadOption, "coap: option value overruns message")
		}
		val := append([]byte(nil), buf[pos:pos+length]...)
		pos += length
		opts = append(opts, Option{ID: id, Value: val})
	}

	return &Message{Type: typ, Code: code, MessageID: mid, Token: token, Options: opts}, nil
}

func readExtended(buf []byte, pos int, nibble uint8) (value, newPos int, err error) {
	switch nibble {
	case 15:
		return 0, pos, errors.New("reserved option nibble 15")
	case 13:
		if pos >= len(buf) {
			return 0, pos, errors.New("truncated extended option byte")
		}
		return int(buf[pos]) + 13, pos + 1, nil
	case 14:
		if pos+1 >= len(buf) {
			return 0, pos, errors.New("truncated extended option bytes")
		}
		return int(binary.BigEndian.Uint16(buf[pos:pos+2])) + 269, pos + 2, nil
	default:
		return int(nibble), pos, nil
	}
}
