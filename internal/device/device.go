// Package device is a minimal LwM2M Device Object (OID 3) handler, the
// demo instance cmd/lwm2mclient registers so the engine has something to
// serve out of the box, the way the teacher's cmd/canopen wires a single
// DOMAIN entry (0x200F) with a hand-written Extension before starting the
// node.
package device

import (
	"time"

	"github.com/samsamfire/golwm2m/pkg/dm"
)

const (
	RIDManufacturer  = 0
	RIDModelNumber   = 1
	RIDReboot        = 4
	RIDCurrentTime   = 13
	RIDSupportedBind = 16
)

// Device implements dm.Handler for a single instance (IID 0) of Object 3.
// It has no cross-resource invariants, so it embeds NopTransactions.
type Device struct {
	dm.NopTransactions

	Manufacturer string
	ModelNumber  string
	RebootCount  int
	BootTime     time.Time
}

func New(manufacturer, model string) *Device {
	return &Device{Manufacturer: manufacturer, ModelNumber: model, BootTime: time.Now()}
}

func (d *Device) Read(_ *dm.OpContext, iid, rid, _ uint16) (dm.Value, error) {
	if iid != 0 {
		return dm.Value{}, dm.ErrNotFound
	}
	switch rid {
	case RIDManufacturer:
		return dm.String(d.Manufacturer), nil
	case RIDModelNumber:
		return dm.String(d.ModelNumber), nil
	case RIDCurrentTime:
		return dm.Int(time.Now().Unix()), nil
	case RIDSupportedBind:
		return dm.String("UQ"), nil
	default:
		return dm.Value{}, dm.ErrNotFound
	}
}

func (d *Device) Write(_ *dm.OpContext, iid, rid, _ uint16, v dm.Value) error {
	if iid != 0 || rid != RIDCurrentTime {
		return dm.ErrMethodNotAllowed
	}
	// CurrentTime is writable per the object definition but this demo
	// handler does not adjust the process clock in response.
	return nil
}

func (d *Device) Execute(_ *dm.OpContext, iid, rid uint16, _ []byte) error {
	if iid != 0 || rid != RIDReboot {
		return dm.ErrMethodNotAllowed
	}
	d.RebootCount++
	d.BootTime = time.Now()
	return nil
}

func (d *Device) InstanceCreate(*dm.OpContext, uint16) error { return dm.ErrMethodNotAllowed }
func (d *Device) InstanceDelete(*dm.OpContext, uint16) error { return dm.ErrMethodNotAllowed }

// InstanceReset has nothing to clear: CurrentTime is this object's only
// writable resource and a Replace always supplies it explicitly.
func (d *Device) InstanceReset(_ *dm.OpContext, iid uint16) error {
	if iid != 0 {
		return dm.ErrNotFound
	}
	return nil
}

// Object builds the registry Object wrapping a Device at instance 0.
func Object(d *Device) *dm.Object {
	obj := dm.NewObject(3, "1.1", d, 1)
	_ = obj.AddInstance(dm.Instance{IID: 0, Resources: []dm.Resource{
		{RID: RIDManufacturer, Type: dm.KindString, Access: dm.AccessR},
		{RID: RIDModelNumber, Type: dm.KindString, Access: dm.AccessR},
		{RID: RIDReboot, Type: dm.KindString, Access: dm.AccessE},
		{RID: RIDCurrentTime, Type: dm.KindInt, Access: dm.AccessRW},
		{RID: RIDSupportedBind, Type: dm.KindString, Access: dm.AccessR},
	}})
	return obj
}
