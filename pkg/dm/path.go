package dm

import (
	"fmt"
	"strconv"
	"strings"
)

// Path is an ordered tuple of 0-4 identifiers: Object/Instance/Resource/
// Resource-Instance, as specified in §3. It is a value type (no slice) so
// that observation keys and registry lookups never allocate.
type Path struct {
	ids [4]uint16
	n   int
}

// RootPath is the zero-length path (the whole client).
var RootPath = Path{}

func ObjectPath(oid uint16) Path                            { return Path{ids: [4]uint16{oid}, n: 1} }
func InstancePath(oid, iid uint16) Path                      { return Path{ids: [4]uint16{oid, iid}, n: 2} }
func ResourcePath(oid, iid, rid uint16) Path                 { return Path{ids: [4]uint16{oid, iid, rid}, n: 3} }
func ResourceInstancePath(oid, iid, rid, riid uint16) Path   { return Path{ids: [4]uint16{oid, iid, rid, riid}, n: 4} }

func (p Path) Len() int { return p.n }

func (p Path) ObjectID() uint16 {
	if p.n < 1 {
		return Invalid
	}
	return p.ids[0]
}

func (p Path) InstanceID() uint16 {
	if p.n < 2 {
		return Invalid
	}
	return p.ids[1]
}

func (p Path) ResourceID() uint16 {
	if p.n < 3 {
		return Invalid
	}
	return p.ids[2]
}

func (p Path) ResourceInstanceID() uint16 {
	if p.n < 4 {
		return Invalid
	}
	return p.ids[3]
}

// Child returns p with one more identifier appended; panics if p already
// has 4 components (programmer error, never reachable from wire input
// because ParsePath caps at 4 segments).
func (p Path) Child(id uint16) Path {
	if p.n >= 4 {
		panic("dm: path already has 4 components")
	}
	p.ids[p.n] = id
	p.n++
	return p
}

// Parent returns p with its last component removed; the root's parent is
// itself.
func (p Path) Parent() Path {
	if p.n == 0 {
		return p
	}
	p.n--
	p.ids[p.n] = 0
	return p
}

// Less implements the lexicographic, component-wise ordering from §3.
func (p Path) Less(o Path) bool {
	for i := 0; i < 4; i++ {
		if i >= p.n && i >= o.n {
			return false
		}
		if i >= p.n {
			return true
		}
		if i >= o.n {
			return false
		}
		if p.ids[i] != o.ids[i] {
			return p.ids[i] < o.ids[i]
		}
	}
	return false
}

func (p Path) Equal(o Path) bool { return p == o }

// IsPrefixOf reports whether p is an ancestor of (or equal to) o, i.e.
// every attribute-inheritance or Discover-depth check can walk from a
// broad path down to a narrow one.
func (p Path) IsPrefixOf(o Path) bool {
	if p.n > o.n {
		return false
	}
	for i := 0; i < p.n; i++ {
		if p.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	if p.n == 0 {
		return "/"
	}
	var b strings.Builder
	for i := 0; i < p.n; i++ {
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(uint64(p.ids[i]), 10))
	}
	return b.String()
}

// ParsePath parses a CoAP Uri-Path segment list (already split on '/') into
// a Path. It rejects more than 4 segments or a non-numeric segment.
func ParsePath(segments []string) (Path, error) {
	if len(segments) > 4 {
		return Path{}, fmt.Errorf("dm: path has %d segments, max 4", len(segments))
	}
	var p Path
	for _, seg := range segments {
		v, err := strconv.ParseUint(seg, 10, 16)
		if err != nil {
			return Path{}, fmt.Errorf("dm: invalid path segment %q: %w", seg, err)
		}
		p = p.Child(uint16(v))
	}
	return p, nil
}
