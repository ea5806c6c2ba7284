package dm

import "fmt"

// Registry is the client's whole data model: a fixed-capacity, sorted-by-
// OID array of Objects, playing the role of the teacher stack's
// ObjectDictionary (pkg/od/base.go) generalized from a single flat
// index:subindex space to LwM2M's four-level one.
type Registry struct {
	objects []*Object
	cap     int
}

func NewRegistry(capacity int) *Registry {
	return &Registry{objects: make([]*Object, 0, capacity), cap: capacity}
}

// Add registers obj, keeping objects sorted ascending by OID. It is an
// error to register the same OID twice or to exceed capacity.
func (r *Registry) Add(obj *Object) error {
	if r.Object(obj.OID) != nil {
		return fmt.Errorf("dm: object %d already registered", obj.OID)
	}
	if len(r.objects) >= r.cap {
		return fmt.Errorf("dm: registry capacity exhausted")
	}
	idx := len(r.objects)
	for i, o := range r.objects {
		if obj.OID < o.OID {
			idx = i
			break
		}
	}
	r.objects = append(r.objects, nil)
	copy(r.objects[idx+1:], r.objects[idx:])
	r.objects[idx] = obj
	return nil
}

// Object returns the registered object with the given OID, or nil.
func (r *Registry) Object(oid uint16) *Object {
	for _, o := range r.objects {
		if o.OID == oid {
			return o
		}
		if o.OID > oid {
			return nil
		}
	}
	return nil
}

// All returns every registered object, sorted ascending by OID.
func (r *Registry) All() []*Object { return r.objects }

// Resolve walks path down to whatever depth it specifies, returning the
// Object, and where applicable the Instance, it names. A missing Object
// or Instance is reported via the bool returns rather than an error, since
// "not found" is an ordinary, expected outcome the caller maps to a 4.04.
func (r *Registry) Resolve(path Path) (obj *Object, inst *Instance, objOK, instOK bool) {
	if path.Len() < 1 {
		return nil, nil, false, false
	}
	obj = r.Object(path.ObjectID())
	if obj == nil {
		return nil, nil, false, false
	}
	if path.Len() < 2 {
		return obj, nil, true, false
	}
	inst = obj.Instance(path.InstanceID())
	return obj, inst, true, inst != nil
}
