package content

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samsamfire/golwm2m/pkg/dm"
)

func init() { register(tlvCodec{}) }

// TLV type-field bits (OMA-TS-LwM2M §6.3.3): identifier width, length
// width, and the 2-bit "kind": 0 Object-Instance, 1 Resource-Instance,
// 2 multiple-Resource, 3 Resource-with-value. Framing is a fixed
// binary header plus a byte run, the same shape as the teacher stack's
// SDO segment header (pkg/sdo/client.go), so it is decoded with the same
// explicit byte-counting style rather than reflection.
const (
	tlvKindInstance     = 0 << 6
	tlvKindMultiRes     = 2 << 6
	tlvKindResource     = 3 << 6
	tlvKindResourceInst = 1 << 6

	tlvLenMask = 0x18
	tlvIDMask  = 0x20
)

type tlvCodec struct{}

func (tlvCodec) Format() Format { return FormatTLV }

func (tlvCodec) Encode(base dm.Path, leaves []dm.Leaf) ([]byte, error) {
	var out []byte
	for _, leaf := range leaves {
		id := leaf.Path.ResourceID()
		kind := byte(tlvKindResource)
		if leaf.Path.Len() == 4 {
			id = leaf.Path.ResourceInstanceID()
			kind = tlvKindResourceInst
		}
		raw, err := encodeTLVValue(leaf.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, encodeTLVRecord(kind, id, raw)...)
	}
	return out, nil
}

func encodeTLVValue(v dm.Value) ([]byte, error) {
	switch v.Kind {
	case dm.KindInt:
		return encodeTLVInt(v.Int), nil
	case dm.KindUint:
		return encodeTLVInt(int64(v.Uint)), nil
	case dm.KindTime:
		return encodeTLVInt(v.Time), nil
	case dm.KindFloat:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.Float))
		return buf, nil
	case dm.KindBool:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case dm.KindString:
		return []byte(v.Str), nil
	case dm.KindBytes:
		return v.Bytes, nil
	case dm.KindObjLink:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], v.Link.ObjectID)
		binary.BigEndian.PutUint16(buf[2:4], v.Link.InstanceID)
		return buf, nil
	default:
		return nil, fmt.Errorf("content: tlv: unsupported value kind %s", v.Kind)
	}
}

// encodeTLVInt picks the smallest of the widths the spec allows (1/2/4/8
// bytes), matching the teacher stack's habit of never emitting a wider
// field than the value needs (pkg/sdo expedited-transfer size selection).
func encodeTLVInt(v int64) []byte {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return []byte{byte(v)}
	case v >= math.MinInt16 && v <= math.MaxInt16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(v))
		return buf
	case v >= math.MinInt32 && v <= math.MaxInt32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(v))
		return buf
	default:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v))
		return buf
	}
}

func encodeTLVRecord(kind byte, id uint16, value []byte) []byte {
	typeByte := kind
	if id > 255 {
		typeByte |= tlvIDMask
	}
	var lenBytes []byte
	switch {
	case len(value) <= 7:
		typeByte |= byte(len(value))
	case len(value) <= 255:
		typeByte |= 1 << 3
		lenBytes = []byte{byte(len(value))}
	case len(value) <= 65535:
		typeByte |= 2 << 3
		lenBytes = []byte{byte(len(value) >> 8), byte(len(value))}
	default:
		typeByte |= 3 << 3
		lenBytes = []byte{byte(len(value) >> 16), byte(len(value) >> 8), byte(len(value))}
	}
	header := []byte{typeByte}
	if id > 255 {
		header = append(header, byte(id>>8), byte(id))
	} else {
		header = append(header, byte(id))
	}
	header = append(header, lenBytes...)
	return append(header, value...)
}

func (tlvCodec) Decode(base dm.Path, body []byte) ([]dm.Leaf, error) {
	var leaves []dm.Leaf
	pos := 0
	for pos < len(body) {
		typeByte := body[pos]
		pos++
		kind := typeByte &^ (tlvIDMask | tlvLenMask | 0x07)
		idWide := typeByte&tlvIDMask != 0
		lenWidth := (typeByte & tlvLenMask) >> 3

		var id uint16
		if idWide {
			if pos+2 > len(body) {
				return nil, fmt.Errorf("content: tlv: truncated identifier")
			}
			id = binary.BigEndian.Uint16(body[pos : pos+2])
			pos += 2
		} else {
			if pos+1 > len(body) {
				return nil, fmt.Errorf("content: tlv: truncated identifier")
			}
			id = uint16(body[pos])
			pos++
		}

		var length int
		if lenWidth == 0 {
			length = int(typeByte & 0x07)
		} else {
			n := int(lenWidth)
			if pos+n > len(body) {
				return nil, fmt.Errorf("content: tlv: truncated length")
			}
			for i := 0; i < n; i++ {
				length = (length << 8) | int(body[pos+i])
			}
			pos += n
		}
		if pos+length > len(body) {
			return nil, fmt.Errorf("content: tlv: value overruns buffer")
		}
		value := body[pos : pos+length]
		pos += length

		if base.Len() >= 4 {
			return nil, fmt.Errorf("content: tlv: records cannot nest below a resource-instance path")
		}
		var path dm.Path
		switch kind {
		case tlvKindResource:
			path = base.Child(id)
		case tlvKindResourceInst:
			path = base.Child(id)
		default:
			return nil, fmt.Errorf("content: tlv: nested instance/multi-resource records not supported at this depth")
		}
		leaves = append(leaves, dm.Leaf{Path: path, Value: dm.Bytes(append([]byte(nil), value...))})
	}
	return leaves, nil
}

// ResolveTLVScalar reinterprets a decoded TLV leaf's raw byte run as want,
// the resource's declared Kind. TLV carries no type tag of its own (OMA-
// TS-LwM2M §6.3.3): the receiver must already know each resource's type,
// the same way the teacher stack's od.Entry already knows a subindex's
// DataType before a Streamer ever touches its bytes.
func ResolveTLVScalar(raw []byte, want dm.Kind) (dm.Value, error) {
	switch want {
	case dm.KindInt:
		return dm.Int(decodeTLVSignedInt(raw)), nil
	case dm.KindUint:
		return dm.Uint(uint64(decodeTLVSignedInt(raw))), nil
	case dm.KindTime:
		return dm.Time(decodeTLVSignedInt(raw)), nil
	case dm.KindFloat:
		switch len(raw) {
		case 4:
			return dm.Float(float64(math.Float32frombits(binary.BigEndian.Uint32(raw)))), nil
		case 8:
			return dm.Float(math.Float64frombits(binary.BigEndian.Uint64(raw))), nil
		default:
			return dm.Value{}, fmt.Errorf("content: tlv: invalid float width %d", len(raw))
		}
	case dm.KindBool:
		if len(raw) != 1 {
			return dm.Value{}, fmt.Errorf("content: tlv: invalid bool width %d", len(raw))
		}
		return dm.Bool(raw[0] != 0), nil
	case dm.KindString:
		return dm.String(string(raw)), nil
	case dm.KindBytes:
		return dm.Bytes(raw), nil
	case dm.KindObjLink:
		if len(raw) != 4 {
			return dm.Value{}, fmt.Errorf("content: tlv: invalid objlnk width %d", len(raw))
		}
		return dm.Link(dm.ObjLink{
			ObjectID:   binary.BigEndian.Uint16(raw[0:2]),
			InstanceID: binary.BigEndian.Uint16(raw[2:4]),
		}), nil
	default:
		return dm.Value{}, fmt.Errorf("content: tlv: unsupported target kind %s", want)
	}
}

func decodeTLVSignedInt(raw []byte) int64 {
	var v int64
	if len(raw) > 0 && raw[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range raw {
		v = (v << 8) | int64(b)
	}
	return v
}
