package content

import (
	"fmt"
	"strconv"

	"github.com/samsamfire/golwm2m/pkg/dm"
)

func init() {
	register(textCodec{})
	register(opaqueCodec{})
}

// textCodec implements text/plain (spec §6): valid only for exactly one
// single-instance resource of a scalar type.
type textCodec struct{}

func (textCodec) Format() Format { return FormatText }

func (textCodec) Encode(base dm.Path, leaves []dm.Leaf) ([]byte, error) {
	if len(leaves) != 1 {
		return nil, fmt.Errorf("content: text/plain requires exactly one value, got %d", len(leaves))
	}
	v := leaves[0].Value
	switch v.Kind {
	case dm.KindInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case dm.KindUint:
		return []byte(strconv.FormatUint(v.Uint, 10)), nil
	case dm.KindFloat:
		return []byte(strconv.FormatFloat(v.Float, 'g', -1, 64)), nil
	case dm.KindBool:
		if v.Bool {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case dm.KindString:
		return []byte(v.Str), nil
	case dm.KindTime:
		return []byte(strconv.FormatInt(v.Time, 10)), nil
	case dm.KindObjLink:
		return []byte(v.Link.String()), nil
	default:
		return nil, fmt.Errorf("content: text/plain: unsupported value kind %s", v.Kind)
	}
}

func (textCodec) Decode(base dm.Path, body []byte) ([]dm.Leaf, error) {
	return []dm.Leaf{{Path: base, Value: dm.String(string(body))}}, nil
}

// opaqueCodec implements application/octet-stream (spec §6): valid only
// for a single opaque resource, transported byte-for-byte.
type opaqueCodec struct{}

func (opaqueCodec) Format() Format { return FormatOpaque }

func (opaqueCodec) Encode(base dm.Path, leaves []dm.Leaf) ([]byte, error) {
	if len(leaves) != 1 {
		return nil, fmt.Errorf("content: opaque requires exactly one value, got %d", len(leaves))
	}
	if leaves[0].Value.Kind != dm.KindBytes {
		return nil, fmt.Errorf("content: opaque: value is not bytes")
	}
	return leaves[0].Value.Bytes, nil
}

func (opaqueCodec) Decode(base dm.Path, body []byte) ([]dm.Leaf, error) {
	return []dm.Leaf{{Path: base, Value: dm.Bytes(append([]byte(nil), body...))}}, nil
}
