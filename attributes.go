package lwm2m

import (
	"github.com/samsamfire/golwm2m/pkg/dm"
	"github.com/samsamfire/golwm2m/pkg/observe"
)

// AttributeStore holds the numeric-attribute overrides written to the
// /2 Access-Control-less attribute set described in spec §4.7 at the
// server default, Object, Object-Instance, and Resource levels, and
// resolves them through the Resource > Instance > Object > server
// default inheritance chain before a Scheduler ever sees an
// AttributeSet. It is a simple path-keyed map rather than a tree,
// mirroring the teacher stack's flat od.Index map keyed by a packed
// index:subindex integer.
type AttributeStore struct {
	serverDefault observe.AttributeSet
	byPath        map[dm.Path]observe.AttributeSet
}

func NewAttributeStore() *AttributeStore {
	return &AttributeStore{byPath: make(map[dm.Path]observe.AttributeSet)}
}

// Set installs the attribute overrides written at path (an Object,
// Object-Instance, or Resource path) via the Write-Attributes operation
// (spec §4.7).
func (a *AttributeStore) Set(path dm.Path, attrs observe.AttributeSet) {
	a.byPath[path] = attrs
}

// SetServerDefault installs the attributes that apply when nothing more
// specific overrides them.
func (a *AttributeStore) SetServerDefault(attrs observe.AttributeSet) {
	a.serverDefault = attrs
}

// Resolve walks Object -> Object-Instance -> Resource, merging each
// level found over the one before it, per the inheritance rule in spec
// §4.7 (child overrides ancestor, field by field).
func (a *AttributeStore) Resolve(path dm.Path) observe.AttributeSet {
	merged := a.serverDefault
	for n := 1; n <= path.Len(); n++ {
		var p dm.Path
		switch n {
		case 1:
			p = dm.ObjectPath(path.ObjectID())
		case 2:
			p = dm.InstancePath(path.ObjectID(), path.InstanceID())
		case 3:
			p = dm.ResourcePath(path.ObjectID(), path.InstanceID(), path.ResourceID())
		default:
			continue
		}
		if lvl, ok := a.byPath[p]; ok {
			merged = merged.Merge(lvl)
		}
	}
	return merged
}
