package dm

import "errors"

var (
	ErrNotFound          = errors.New("dm: path not found")
	ErrMethodNotAllowed  = errors.New("dm: operation not allowed on this resource")
	ErrBadRequest        = errors.New("dm: malformed operation")
	ErrTransactionFailed = errors.New("dm: transaction validation failed")
)

// txn wraps a single Handler invocation sequence in Begin/Validate/End,
// guaranteeing End is called exactly once even when the body panics or
// returns early on error (spec §4.5). It mirrors the begin/commit/abort
// bracketing the teacher stack's SDO block-transfer download applies
// around a multi-segment od.Entry write (pkg/sdo/client.go).
func txn(h Handler, ctx *OpContext, body func() error) (err error) {
	if err = h.TransactionBegin(ctx); err != nil {
		return err
	}
	ctx.InTxn = true
	committed := false
	defer func() {
		if !committed {
			h.TransactionEnd(ctx, false)
		}
	}()

	if err = body(); err != nil {
		return err
	}
	if err = h.TransactionValidate(ctx); err != nil {
		return err
	}
	h.TransactionEnd(ctx, true)
	committed = true
	return nil
}

// Leaf is one (path, value) pair produced by Read or consumed by Write,
// always naming a full resource or resource-instance path.
type Leaf struct {
	Path  Path
	Value Value
}

// Read performs the Read operation (spec §4.5) at any depth from a single
// resource-instance up to a whole object, returning every leaf beneath
// path in ascending path order. It opens a transaction for every path
// except a single resource-instance path.
func (r *Registry) Read(ctx *OpContext, path Path) ([]Leaf, error) {
	obj, inst, objOK, instOK := r.Resolve(path)
	if !objOK {
		return nil, ErrNotFound
	}
	ctx = &OpContext{OID: obj.OID, SSID: ctx.SSID}

	switch path.Len() {
	case 1:
		var leaves []Leaf
		err := txn(obj.Handler, ctx, func() error {
			for _, in := range obj.Instances() {
				ls, err := readInstance(obj.Handler, ctx, in)
				if err != nil {
					return err
				}
				leaves = append(leaves, ls...)
			}
			return nil
		})
		return leaves, err
	case 2:
		if !instOK {
			return nil, ErrNotFound
		}
		var leaves []Leaf
		err := txn(obj.Handler, ctx, func() error {
			var err error
			leaves, err = readInstance(obj.Handler, ctx, inst)
			return err
		})
		return leaves, err
	case 3:
		if !instOK {
			return nil, ErrNotFound
		}
		res := inst.Resource(path.ResourceID())
		if res == nil {
			return nil, ErrNotFound
		}
		if !res.Access.Readable() {
			return nil, ErrMethodNotAllowed
		}
		var leaves []Leaf
		err := txn(obj.Handler, ctx, func() error {
			var err error
			leaves, err = readResource(obj.Handler, ctx, inst.IID, res)
			return err
		})
		return leaves, err
	case 4:
		if !instOK {
			return nil, ErrNotFound
		}
		res := inst.Resource(path.ResourceID())
		if res == nil || !res.Access.Multi() || !res.HasInstance(path.ResourceInstanceID()) {
			return nil, ErrNotFound
		}
		if !res.Access.Readable() {
			return nil, ErrMethodNotAllowed
		}
		v, err := obj.Handler.Read(ctx, inst.IID, res.RID, path.ResourceInstanceID())
		if err != nil {
			return nil, err
		}
		return []Leaf{{Path: path, Value: v}}, nil
	default:
		return nil, ErrBadRequest
	}
}

func readInstance(h Handler, ctx *OpContext, inst *Instance) ([]Leaf, error) {
	var leaves []Leaf
	for i := range inst.Resources {
		res := &inst.Resources[i]
		if !res.Access.Readable() {
			continue
		}
		ls, err := readResource(h, ctx, inst.IID, res)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, ls...)
	}
	return leaves, nil
}

func readResource(h Handler, ctx *OpContext, iid uint16, res *Resource) ([]Leaf, error) {
	if !res.Access.Multi() {
		v, err := h.Read(ctx, iid, res.RID, Invalid)
		if err != nil {
			return nil, err
		}
		return []Leaf{{Path: ResourcePath(ctx.OID, iid, res.RID), Value: v}}, nil
	}
	leaves := make([]Leaf, 0, len(res.RIIDs))
	for _, riid := range res.RIIDs {
		v, err := h.Read(ctx, iid, res.RID, riid)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, Leaf{Path: ResourceInstancePath(ctx.OID, iid, res.RID, riid), Value: v})
	}
	return leaves, nil
}

// Write performs the Write operation (spec §4.5) over one or more leaves,
// all of which must resolve under the same object instance. replace, when
// true, is the LwM2M "Replace" write mode: any multi-instance resource not
// present in leaves is reset to empty before the new leaves are applied.
func (r *Registry) Write(ctx *OpContext, leaves []Leaf, replace bool) error {
	if len(leaves) == 0 {
		return ErrBadRequest
	}
	oid, iid := leaves[0].Path.ObjectID(), leaves[0].Path.InstanceID()
	obj, inst, objOK, instOK := r.Resolve(InstancePath(oid, iid))
	if !objOK || !instOK {
		return ErrNotFound
	}
	ctx = &OpContext{OID: obj.OID, SSID: ctx.SSID}

	return txn(obj.Handler, ctx, func() error {
		if replace {
			if err := obj.Handler.InstanceReset(ctx, iid); err != nil {
				return err
			}
			for i := range inst.Resources {
				res := &inst.Resources[i]
				if res.Access.Multi() {
					res.RIIDs = res.RIIDs[:0]
				}
			}
		}
		for _, leaf := range leaves {
			if leaf.Path.ObjectID() != oid || leaf.Path.InstanceID() != iid {
				return ErrBadRequest
			}
			res := inst.Resource(leaf.Path.ResourceID())
			if res == nil {
				return ErrNotFound
			}
			if !res.Access.Writable() {
				return ErrMethodNotAllowed
			}
			riid := Invalid
			if res.Access.Multi() {
				riid = leaf.Path.ResourceInstanceID()
				if !res.HasInstance(riid) {
					if err := res.AddInstance(riid); err != nil {
						return err
					}
				}
			}
			if err := obj.Handler.Write(ctx, iid, res.RID, riid, leaf.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Execute performs the Execute operation (spec §4.5) on a single resource.
func (r *Registry) Execute(ctx *OpContext, path Path, args []byte) error {
	if path.Len() != 3 {
		return ErrBadRequest
	}
	obj, inst, objOK, instOK := r.Resolve(path)
	if !objOK || !instOK {
		return ErrNotFound
	}
	res := inst.Resource(path.ResourceID())
	if res == nil {
		return ErrNotFound
	}
	if !res.Access.Executable() {
		return ErrMethodNotAllowed
	}
	ctx = &OpContext{OID: obj.OID, SSID: ctx.SSID}
	return txn(obj.Handler, ctx, func() error {
		return obj.Handler.Execute(ctx, inst.IID, res.RID, args)
	})
}

// Create performs the Create operation (spec §4.5): it instantiates iid
// within the target object and then applies leaves as an initial Write in
// Replace mode.
func (r *Registry) Create(ctx *OpContext, oid, iid uint16, leaves []Leaf) error {
	obj := r.Object(oid)
	if obj == nil {
		return ErrNotFound
	}
	if obj.Instance(iid) != nil {
		return ErrBadRequest
	}
	ctx = &OpContext{OID: obj.OID, SSID: ctx.SSID}
	err := txn(obj.Handler, ctx, func() error {
		return obj.Handler.InstanceCreate(ctx, iid)
	})
	if err != nil {
		return err
	}
	if len(leaves) == 0 {
		return nil
	}
	return r.Write(ctx, leaves, true)
}

// Delete performs the Delete operation (spec §4.5): it removes an Object
// Instance after letting the handler release any instance-owned state.
func (r *Registry) Delete(ctx *OpContext, oid, iid uint16) error {
	obj := r.Object(oid)
	if obj == nil {
		return ErrNotFound
	}
	if obj.Instance(iid) == nil {
		return ErrNotFound
	}
	ctx = &OpContext{OID: obj.OID, SSID: ctx.SSID}
	return txn(obj.Handler, ctx, func() error {
		if err := obj.Handler.InstanceDelete(ctx, iid); err != nil {
			return err
		}
		return obj.RemoveInstance(iid)
	})
}
