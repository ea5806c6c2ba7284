package coap

import "sort"

// OptionID identifies a CoAP option number (RFC 7252 §5.10, RFC 7959 §2.1).
type OptionID uint16

const (
	OptionIfMatch       OptionID = 1
	OptionUriHost       OptionID = 3
	OptionETag          OptionID = 4
	OptionIfNoneMatch   OptionID = 5
	OptionObserve       OptionID = 6
	OptionUriPort       OptionID = 7
	OptionLocationPath  OptionID = 8
	OptionUriPath       OptionID = 11
	OptionContentFormat OptionID = 12
	OptionMaxAge        OptionID = 14
	OptionUriQuery      OptionID = 15
	OptionAccept        OptionID = 17
	OptionLocationQuery OptionID = 20
	OptionBlock2        OptionID = 23
	OptionBlock1        OptionID = 27
	OptionSize2         OptionID = 28
	OptionProxyUri      OptionID = 35
	OptionProxyScheme   OptionID = 39
	OptionSize1         OptionID = 60
)

// critical reports whether an unknown option with this number must be
// rejected with 4.02 Bad Option (odd option numbers are critical, RFC 7252
// §5.4.6).
func (id OptionID) critical() bool { return id%2 == 1 }

// repeatable lists options that may appear more than once in a message.
var repeatable = map[OptionID]bool{
	OptionIfMatch:      true,
	OptionETag:         true,
	OptionLocationPath: true,
	OptionUriPath:      true,
	OptionUriQuery:     true,
	OptionLocationQuery: true,
}

// Option is a single decoded option: number plus opaque value bytes.
type Option struct {
	ID    OptionID
	Value []byte
}

func (o Option) Uint() uint32 {
	var v uint32
	for _, b := range o.Value {
		v = v<<8 | uint32(b)
	}
	return v
}

func OptionUint(id OptionID, v uint32) Option {
	var b []byte
	switch {
	case v == 0:
		b = nil
	case v < 1<<8:
		b = []byte{byte(v)}
	case v < 1<<16:
		b = []byte{byte(v >> 8), byte(v)}
	case v < 1<<24:
		b = []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	default:
		b = []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	}
	return Option{ID: id, Value: b}
}

func OptionString(id OptionID, s string) Option {
	return Option{ID: id, Value: []byte(s)}
}

// OptionSet is a sorted-by-ID collection of options, mirroring the ordering
// RFC 7252 requires on the wire (strictly non-decreasing option numbers).
type OptionSet []Option

// Sort reorders the set ascending by option number; equal numbers keep
// their relative (insertion) order, matching repeated-option semantics.
func (s OptionSet) Sort() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}

// Add appends an option and keeps the set sorted.
func (s *OptionSet) Add(o Option) {
	*s = append(*s, o)
	s.SortPtr()
}

func (s *OptionSet) SortPtr() {
	sort.SliceStable(*s, func(i, j int) bool { return (*s)[i].ID < (*s)[j].ID })
}

// All returns every option with the given ID, in wire order.
func (s OptionSet) All(id OptionID) []Option {
	var out []Option
	for _, o := range s {
		if o.ID == id {
			out = append(out, o)
		}
	}
	return out
}

// Get returns the first option with the given ID.
func (s OptionSet) Get(id OptionID) (Option, bool) {
	for _, o := range s {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// UriPath reconstructs the path segments carried as repeated Uri-Path
// options, in order.
func (s OptionSet) UriPath() []string {
	var segs []string
	for _, o := range s.All(OptionUriPath) {
		segs = append(segs, string(o.Value))
	}
	return segs
}

// UriQuery reconstructs the repeated Uri-Query options.
func (s OptionSet) UriQuery() []string {
	var qs []string
	for _, o := range s.All(OptionUriQuery) {
		qs = append(qs, string(o.Value))
	}
	return qs
}

// AddUriPath appends one Uri-Path option per non-empty path segment.
func (s *OptionSet) AddUriPath(path string) {
	seg := ""
	for _, r := range path {
		if r == '/' {
			if seg != "" {
				s.Add(OptionString(OptionUriPath, seg))
			}
			seg = ""
			continue
		}
		seg += string(r)
	}
	if seg != "" {
		s.Add(OptionString(OptionUriPath, seg))
	}
}

func (s *OptionSet) AddUriQuery(q string) {
	s.Add(OptionString(OptionUriQuery, q))
}

func (s *OptionSet) SetContentFormat(cf uint16) {
	s.Add(OptionUint(OptionContentFormat, uint32(cf)))
}

func (s OptionSet) ContentFormat() (uint16, bool) {
	o, ok := s.Get(OptionContentFormat)
	if !ok {
		return 0, false
	}
	return uint16(o.Uint()), true
}

func (s *OptionSet) SetAccept(cf uint16) {
	s.Add(OptionUint(OptionAccept, uint32(cf)))
}

func (s OptionSet) Accept() (uint16, bool) {
	o, ok := s.Get(OptionAccept)
	if !ok {
		return 0, false
	}
	return uint16(o.Uint()), true
}

func (s *OptionSet) SetObserve(v uint32) {
	s.Add(OptionUint(OptionObserve, v))
}

func (s OptionSet) Observe() (uint32, bool) {
	o, ok := s.Get(OptionObserve)
	if !ok {
		return 0, false
	}
	return o.Uint(), true
}

func (s *OptionSet) SetETag(etag []byte) {
	s.Add(Option{ID: OptionETag, Value: etag})
}

func (s OptionSet) ETag() ([]byte, bool) {
	o, ok := s.Get(OptionETag)
	if !ok {
		return nil, false
	}
	return o.Value, true
}

// UnknownCritical returns the first critical (odd-numbered) option this
// codec does not understand, if any — such a message must be rejected with
// 4.02 Bad Option per spec §4.1.
func (s OptionSet) UnknownCritical() (OptionID, bool) {
	for _, o := range s {
		if !isSupported(o.ID) && o.ID.critical() {
			return o.ID, true
		}
	}
	return 0, false
}

func isSupported(id OptionID) bool {
	switch id {
	case OptionIfMatch, OptionUriHost, OptionETag, OptionIfNoneMatch, OptionObserve,
		OptionUriPort, OptionLocationPath, OptionUriPath, OptionContentFormat, OptionMaxAge,
		OptionUriQuery, OptionAccept, OptionLocationQuery, OptionBlock2, OptionBlock1,
		OptionSize2, OptionSize1:
		return true
	default:
		return false
	}
}
