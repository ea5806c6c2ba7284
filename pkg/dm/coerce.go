package dm

import (
	"fmt"
	"strconv"
)

// Coerce converts v, as decoded from a content format that carries looser
// typing (text/plain and JSON decode every scalar as a string; SenML
// numbers decode as float64), into the resource's declared Kind. Values
// already of the right Kind pass through unchanged. This is the one place
// format decoders and the registry disagree on typing get reconciled,
// rather than every Codec needing schema knowledge of the object it is
// decoding into.
func Coerce(v Value, want Kind) (Value, error) {
	if v.Kind == want {
		return v, nil
	}
	switch want {
	case KindInt:
		switch v.Kind {
		case KindFloat:
			return Int(int64(v.Float)), nil
		case KindUint:
			return Int(int64(v.Uint)), nil
		case KindString:
			n, err := strconv.ParseInt(v.Str, 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("dm: coerce to int: %w", err)
			}
			return Int(n), nil
		}
	case KindUint:
		switch v.Kind {
		case KindFloat:
			return Uint(uint64(v.Float)), nil
		case KindInt:
			return Uint(uint64(v.Int)), nil
		case KindString:
			n, err := strconv.ParseUint(v.Str, 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("dm: coerce to uint: %w", err)
			}
			return Uint(n), nil
		}
	case KindFloat:
		switch v.Kind {
		case KindInt:
			return Float(float64(v.Int)), nil
		case KindUint:
			return Float(float64(v.Uint)), nil
		case KindString:
			f, err := strconv.ParseFloat(v.Str, 64)
			if err != nil {
				return Value{}, fmt.Errorf("dm: coerce to float: %w", err)
			}
			return Float(f), nil
		}
	case KindBool:
		switch v.Kind {
		case KindString:
			switch v.Str {
			case "1", "true":
				return Bool(true), nil
			case "0", "false":
				return Bool(false), nil
			}
		case KindFloat:
			return Bool(v.Float != 0), nil
		case KindInt:
			return Bool(v.Int != 0), nil
		}
	case KindTime:
		switch v.Kind {
		case KindFloat:
			return Time(int64(v.Float)), nil
		case KindString:
			n, err := strconv.ParseInt(v.Str, 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("dm: coerce to time: %w", err)
			}
			return Time(n), nil
		}
	case KindString:
		return String(fmt.Sprint(rawOf(v))), nil
	}
	return Value{}, fmt.Errorf("dm: cannot coerce %s to %s", v.Kind, want)
}

func rawOf(v Value) any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindUint:
		return v.Uint
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	case KindBytes:
		return v.Bytes
	case KindTime:
		return v.Time
	default:
		return v.Str
	}
}
