package dm

import (
	"fmt"
	"strings"
)

// Discover performs the Discover operation (spec §4.5), rendering a CoRE
// Link Format (RFC 6690) listing of one level beneath path: every Object
// at the root (with ver when it is not "1.0"), an Object's instances, or
// an Object Instance's resources (with dim for multi-instance ones). A
// deeper path returns ErrBadRequest. It takes no depth argument, and an
// Object path does not list the resources of its instances.
func (r *Registry) Discover(path Path) (string, error) {
	var b strings.Builder

	switch path.Len() {
	case 0:
		for _, obj := range r.All() {
			writeObjectLink(&b, obj)
		}
	case 1:
		obj := r.Object(path.ObjectID())
		if obj == nil {
			return "", ErrNotFound
		}
		for _, inst := range obj.Instances() {
			writeInstanceLink(&b, obj.OID, inst)
		}
	case 2:
		_, inst, objOK, instOK := r.Resolve(path)
		if !objOK || !instOK {
			return "", ErrNotFound
		}
		for _, res := range inst.Resources {
			writeResourceLink(&b, path.ObjectID(), inst.IID, res)
		}
	default:
		return "", ErrBadRequest
	}
	out := b.String()
	return strings.TrimSuffix(out, ","), nil
}

func writeObjectLink(b *strings.Builder, obj *Object) {
	fmt.Fprintf(b, "</%d>", obj.OID)
	if obj.Version != "" && obj.Version != "1.0" {
		fmt.Fprintf(b, ";ver=%q", obj.Version)
	}
	b.WriteByte(',')
}

func writeInstanceLink(b *strings.Builder, oid uint16, inst *Instance) {
	fmt.Fprintf(b, "</%d/%d>,", oid, inst.IID)
}

func writeResourceLink(b *strings.Builder, oid, iid uint16, res Resource) {
	fmt.Fprintf(b, "</%d/%d/%d>", oid, iid, res.RID)
	if res.Access.Multi() {
		b.WriteString(";dim=")
		fmt.Fprintf(b, "%d", len(res.RIIDs))
	}
	b.WriteByte(',')
}
