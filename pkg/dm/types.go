// Package dm implements the LwM2M resource-oriented data model: the
// Object/Object-Instance/Resource registry, URI paths, the discriminated
// value union, and the transactional Read/Write/Execute/Create/Delete/
// Discover operations described in spec §3 and §4.5. It plays the role the
// teacher stack's pkg/od package plays for the CANopen object dictionary,
// generalized from a flat index:subindex space to LwM2M's four-level path.
package dm

import "fmt"

// Invalid is the sentinel meaning "absent" for any of OID/IID/RID/RIID/SSID
// (spec §3).
const Invalid uint16 = 0xFFFF

// Kind discriminates the value union carried by a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindString
	KindBytes
	KindObjLink
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindObjLink:
		return "objlnk"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// ObjLink is the OID:IID pair carried by an objlnk-typed resource.
type ObjLink struct {
	ObjectID   uint16
	InstanceID uint16
}

func (l ObjLink) String() string { return fmt.Sprintf("%d:%d", l.ObjectID, l.InstanceID) }

// BytesProducer streams an opaque/string value too large to hold in
// memory at once, mirroring the teacher's Streamer read/write callback
// contract (od/streamer.go) generalized to an externally-owned producer
// instead of a fixed Data []byte.
type BytesProducer interface {
	Open() error
	Get(buf []byte) (n int, last bool, err error)
	Close() error
}

// Value is a tagged union, not an interface{}, so that the hot Read/Write
// path never boxes a value onto the heap beyond the struct itself — the
// same "no hidden allocation" discipline the teacher stack applies to OD
// Variables (spec Design Notes §9).
type Value struct {
	Kind     Kind
	Int      int64
	Uint     uint64
	Float    float64
	Bool     bool
	Str      string
	Bytes    []byte
	Link     ObjLink
	Time     int64
	Producer BytesProducer // set instead of Bytes/Str for streamed values
}

func Int(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func Uint(v uint64) Value   { return Value{Kind: KindUint, Uint: v} }
func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func Bool(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func String(v string) Value { return Value{Kind: KindString, Str: v} }
func Bytes(v []byte) Value  { return Value{Kind: KindBytes, Bytes: v} }
func Link(v ObjLink) Value  { return Value{Kind: KindObjLink, Link: v} }
func Time(v int64) Value    { return Value{Kind: KindTime, Time: v} }

// AsFloat64 returns a numeric Value as a float64 for attribute-threshold
// comparison (spec §4.7), or (0, false) if v is not numeric.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindUint:
		return float64(v.Uint), true
	case KindFloat:
		return v.Float, true
	case KindTime:
		return float64(v.Time), true
	default:
		return 0, false
	}
}
