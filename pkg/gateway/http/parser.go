package http

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/samsamfire/golwm2m/pkg/dm"
)

// leafToWire renders one dm.Leaf as its JSON-safe string form, the same
// "always a string on the wire, typed by a sibling field" convention the
// teacher gateway uses for SDOReadResponse.Data (a hex string regardless
// of the underlying CANopen datatype).
func leafToWire(l dm.Leaf) Leaf {
	v := l.Value
	var s string
	switch v.Kind {
	case dm.KindInt:
		s = strconv.FormatInt(v.Int, 10)
	case dm.KindUint:
		s = strconv.FormatUint(v.Uint, 10)
	case dm.KindFloat:
		s = strconv.FormatFloat(v.Float, 'g', -1, 64)
	case dm.KindBool:
		s = strconv.FormatBool(v.Bool)
	case dm.KindString:
		s = v.Str
	case dm.KindBytes:
		s = hex.EncodeToString(v.Bytes)
	case dm.KindObjLink:
		s = v.Link.String()
	case dm.KindTime:
		s = strconv.FormatInt(v.Time, 10)
	}
	return Leaf{Path: l.Path.String(), Value: s, Kind: v.Kind.String()}
}

// wireToLeaf parses a gateway Leaf back into a dm.Leaf using kind to pick
// the parse rule; Registry.Write's Coerce-free strict path relies on the
// caller (this gateway) supplying the exact Kind a text/plain or SenML
// decode would otherwise have inferred.
func wireToLeaf(in Leaf) (dm.Leaf, error) {
	path, err := parsePath(in.Path)
	if err != nil {
		return dm.Leaf{}, err
	}
	var v dm.Value
	switch in.Kind {
	case "int", "":
		n, err := strconv.ParseInt(in.Value, 10, 64)
		if err != nil {
			return dm.Leaf{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		v = dm.Int(n)
	case "uint":
		n, err := strconv.ParseUint(in.Value, 10, 64)
		if err != nil {
			return dm.Leaf{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		v = dm.Uint(n)
	case "float":
		f, err := strconv.ParseFloat(in.Value, 64)
		if err != nil {
			return dm.Leaf{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		v = dm.Float(f)
	case "bool":
		b, err := strconv.ParseBool(in.Value)
		if err != nil {
			return dm.Leaf{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		v = dm.Bool(b)
	case "string":
		v = dm.String(in.Value)
	case "bytes":
		b, err := hex.DecodeString(in.Value)
		if err != nil {
			return dm.Leaf{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		v = dm.Bytes(b)
	default:
		return dm.Leaf{}, fmt.Errorf("%w: unknown kind %q", ErrBadRequest, in.Kind)
	}
	return dm.Leaf{Path: path, Value: v}, nil
}

// parsePath parses a "/3303/0/5700"-shaped URL path into a dm.Path.
func parsePath(raw string) (dm.Path, error) {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return dm.RootPath, nil
	}
	return dm.ParsePath(strings.Split(raw, "/"))
}
