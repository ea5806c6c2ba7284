package content

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/samsamfire/golwm2m/pkg/dm"
)

func init() { register(senMLCBORCodec{}) }

// senmlRecord is one SenML Pack entry (RFC 8428 §6, CBOR labels per
// RFC 8428 Table 4). Numeric keys are mapped via fxamacker/cbor's
// keyasint struct tag so the wire form is a CBOR map, not a Go-shaped
// object.
type senmlRecord struct {
	BaseName    string   `cbor:"-2,keyasint,omitempty"`
	BaseTime    float64  `cbor:"-3,keyasint,omitempty"`
	Name        string   `cbor:"0,keyasint,omitempty"`
	Value       *float64 `cbor:"2,keyasint,omitempty"`
	StringValue *string  `cbor:"3,keyasint,omitempty"`
	BoolValue   *bool    `cbor:"4,keyasint,omitempty"`
	Time        float64  `cbor:"6,keyasint,omitempty"`
	DataValue   []byte   `cbor:"8,keyasint,omitempty"`
}

// senMLCBORCodec implements the mandatory content format (spec §6).
type senMLCBORCodec struct{}

func (senMLCBORCodec) Format() Format { return FormatSenMLCBOR }

func (senMLCBORCodec) Encode(base dm.Path, leaves []dm.Leaf) ([]byte, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("content: cannot encode zero leaves")
	}
	records := make([]senmlRecord, 0, len(leaves))
	for i, leaf := range leaves {
		rec := senmlRecord{Name: relativeName(base, leaf.Path)}
		if i == 0 {
			rec.BaseName = base.String()
			if rec.BaseName == "/" {
				rec.BaseName = ""
			}
		}
		if err := setSenMLValue(&rec, leaf.Value); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return cbor.Marshal(records)
}

func setSenMLValue(rec *senmlRecord, v dm.Value) error {
	switch v.Kind {
	case dm.KindInt:
		f := float64(v.Int)
		rec.Value = &f
	case dm.KindUint:
		f := float64(v.Uint)
		rec.Value = &f
	case dm.KindFloat:
		f := v.Float
		rec.Value = &f
	case dm.KindTime:
		f := float64(v.Time)
		rec.Value = &f
	case dm.KindBool:
		b := v.Bool
		rec.BoolValue = &b
	case dm.KindString:
		s := v.Str
		rec.StringValue = &s
	case dm.KindBytes:
		rec.DataValue = v.Bytes
	case dm.KindObjLink:
		s := v.Link.String()
		rec.StringValue = &s
	default:
		return fmt.Errorf("content: senml+cbor: unsupported value kind %s", v.Kind)
	}
	return nil
}

func (senMLCBORCodec) Decode(base dm.Path, body []byte) ([]dm.Leaf, error) {
	var records []senmlRecord
	if err := cbor.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("content: senml+cbor decode: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("content: senml+cbor: empty pack")
	}
	baseName := records[0].BaseName
	leaves := make([]dm.Leaf, 0, len(records))
	for _, rec := range records {
		name := rec.Name
		if rec.BaseName != "" {
			baseName = rec.BaseName
		}
		full := baseName + name
		path, err := pathFromName(base, full)
		if err != nil {
			return nil, err
		}
		v, err := valueFromSenML(rec)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, dm.Leaf{Path: path, Value: v})
	}
	return leaves, nil
}

func valueFromSenML(rec senmlRecord) (dm.Value, error) {
	switch {
	case rec.Value != nil:
		return dm.Float(*rec.Value), nil
	case rec.BoolValue != nil:
		return dm.Bool(*rec.BoolValue), nil
	case rec.StringValue != nil:
		return dm.String(*rec.StringValue), nil
	case rec.DataValue != nil:
		return dm.Bytes(rec.DataValue), nil
	default:
		return dm.Value{}, fmt.Errorf("content: senml+cbor: record has no value field")
	}
}

// relativeName renders leaf relative to base, e.g. base=/3/0, leaf=/3/0/1
// => "/1". The root leaf of a single-resource request encodes as "".
func relativeName(base, leaf dm.Path) string {
	if base.Len() >= leaf.Len() {
		return ""
	}
	full := leaf.String()
	prefix := base.String()
	if prefix == "/" {
		return full
	}
	return strings.TrimPrefix(full, prefix)
}

// pathFromName resolves a SenML record's fully-qualified name (the
// concatenation of bn and n) back into a dm.Path.
func pathFromName(base dm.Path, full string) (dm.Path, error) {
	full = strings.TrimPrefix(full, "/")
	if full == "" {
		return base, nil
	}
	segs := strings.Split(full, "/")
	p, err := dm.ParsePath(segs)
	if err != nil {
		return dm.Path{}, fmt.Errorf("content: senml+cbor: %w", err)
	}
	return p, nil
}
