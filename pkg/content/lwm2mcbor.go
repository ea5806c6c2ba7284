package content

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/samsamfire/golwm2m/pkg/dm"
)

func init() { register(lwm2mCBORCodec{}) }

// lwm2mCBORCodec implements application/vnd.oma.lwm2m+cbor (spec §4.4).
// LwM2M CBOR reuses SenML CBOR's per-record label set (RFC 8428 Table 4)
// and path-relative naming; it differs from SenML CBOR only in content-
// format number, the same way the teacher stack's EDS text and binary
// concise-DCF readers share one od.Entry decoding path behind two file
// formats. Sharing senmlRecord here keeps that one decoding path instead
// of duplicating it under a second name.
type lwm2mCBORCodec struct{}

func (lwm2mCBORCodec) Format() Format { return FormatLwM2MCBOR }

func (lwm2mCBORCodec) Encode(base dm.Path, leaves []dm.Leaf) ([]byte, error) {
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

func (lwm2mCBORCodec) Decode(base dm.Path, body []byte) ([]dm.Leaf, error) {
	var records []senmlRecord
	if err := cbor.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("content: lwm2m+cbor decode: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("content: lwm2m+cbor: empty pack")
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
