package dm

// OpContext carries the per-operation identity and transaction scope down
// to a Handler, mirroring the *od.Entry / Streamer pair the teacher stack
// threads through Read/Write (pkg/od/entry.go, pkg/od/streamer.go): the
// handler never sees transport state, only which object is being touched
// and whether a multi-resource transaction is in flight.
type OpContext struct {
	OID   uint16
	SSID  uint16 // short server ID issuing the operation, Invalid for bootstrap
	InTxn bool
}

// Handler is the vtable an Object registers to answer operations against
// its instances. It plays the role of od.Entry's extension read/write
// function pointers, generalized from a single index:subindex cell to a
// whole object's instance/resource space.
//
// Every multi-resource operation (Write on an instance, Create) is
// bracketed by TransactionBegin/TransactionValidate/TransactionEnd
// (spec §4.5): TransactionEnd(ctx, false) is guaranteed to be called if
// any handler method in between returns an error, so a handler mutating
// shared state in place MUST be able to roll back in TransactionEnd.
type Handler interface {
	Read(ctx *OpContext, iid, rid, riid uint16) (Value, error)
	Write(ctx *OpContext, iid, rid, riid uint16, v Value) error
	Execute(ctx *OpContext, iid, rid uint16, args []byte) error

	InstanceCreate(ctx *OpContext, iid uint16) error
	InstanceDelete(ctx *OpContext, iid uint16) error
	// InstanceReset is called at the start of a Replace write on iid
	// (spec §4.5), before any leaf is applied, so the handler can clear
	// every resource back to its default/empty state first.
	InstanceReset(ctx *OpContext, iid uint16) error

	// TransactionBegin is called before the first per-resource call of
	// every Registry Write, Execute, Create and Delete, and of every Read
	// except a single resource-instance Read.
	TransactionBegin(ctx *OpContext) error
	// TransactionValidate is called after all per-resource calls succeed
	// and before TransactionEnd(ctx, true); a handler MAY treat this as a
	// no-op if it has nothing left to cross-check (spec Open Question,
	// decided in DESIGN.md).
	TransactionValidate(ctx *OpContext) error
	// TransactionEnd commits (success == true) or rolls back
	// (success == false) the operation. It is always called exactly once
	// per TransactionBegin, even on handler error or context cancellation.
	TransactionEnd(ctx *OpContext, success bool)
}

// NopTransactions can be embedded by handlers whose resources have no
// cross-resource invariants to check, so they only need to implement
// Read/Write/Execute/InstanceCreate/InstanceDelete/InstanceReset.
type NopTransactions struct{}

func (NopTransactions) TransactionBegin(*OpContext) error    { return nil }
func (NopTransactions) TransactionValidate(*OpContext) error { return nil }
func (NopTransactions) TransactionEnd(*OpContext, bool)      {}
