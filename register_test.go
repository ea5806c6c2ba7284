package lwm2m

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/golwm2m/pkg/coap"
	"github.com/samsamfire/golwm2m/pkg/dm"
	"github.com/samsamfire/golwm2m/pkg/registration"
)

type nopHandler struct{ dm.NopTransactions }

func (nopHandler) Read(*dm.OpContext, uint16, uint16, uint16) (dm.Value, error) {
	return dm.Value{}, dm.ErrNotFound
}
func (nopHandler) Write(*dm.OpContext, uint16, uint16, uint16, dm.Value) error {
	return dm.ErrMethodNotAllowed
}
func (nopHandler) Execute(*dm.OpContext, uint16, uint16, []byte) error { return nil }
func (nopHandler) InstanceCreate(*dm.OpContext, uint16) error         { return nil }
func (nopHandler) InstanceDelete(*dm.OpContext, uint16) error         { return nil }
func (nopHandler) InstanceReset(*dm.OpContext, uint16) error          { return nil }

func newTestClient(t *testing.T) *Client {
	reg := dm.NewRegistry(4)
	obj := dm.NewObject(3, "1.1", nopHandler{}, 1)
	require.NoError(t, obj.AddInstance(dm.Instance{IID: 0, Resources: []dm.Resource{
		{RID: 0, Type: dm.KindString, Access: dm.AccessR},
	}}))
	require.NoError(t, reg.Add(obj))
	return NewClient(reg)
}

func TestBuildRegisterRequestCarriesQueryAndPayload(t *testing.T) {
	c := newTestClient(t)
	req, err := c.buildRegisterRequest("urn:imei:123", 3600*time.Second, "1.1")
	require.NoError(t, err)

	assert.Equal(t, coap.POST, req.Code)
	assert.Equal(t, coap.Confirmable, req.Type)
	queries := req.Options.UriQuery()
	assert.Contains(t, queries, "ep=urn:imei:123")
	assert.Contains(t, queries, "lt=3600")
	assert.Contains(t, queries, "lwm2m=1.1")
	assert.True(t, strings.Contains(string(req.Payload), "</3/0>"))
}

func TestDriveRegistrationStartsRegisterWhenAttemptDue(t *testing.T) {
	c := newTestClient(t)
	drv := registration.NewDriver(1, false, registration.DefaultRetryPolicy)
	c.Servers[1] = drv

	now := time.Now()
	drv.Start(now)

	ex, err := c.DriveRegistration(now, 1, "peer", "urn:imei:123", 3600*time.Second, "1.1", "")
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, coap.POST, ex.OutMsg.Code)
}

func TestDriveRegistrationUnknownSSIDErrors(t *testing.T) {
	c := newTestClient(t)
	_, err := c.DriveRegistration(time.Now(), 99, "peer", "ep", time.Hour, "1.1", "")
	assert.Error(t, err)
}

func TestDriveRegistrationBuildsUpdateWhenDriverUpdating(t *testing.T) {
	c := newTestClient(t)
	drv := registration.NewDriver(1, false, registration.DefaultRetryPolicy)
	c.Servers[1] = drv
	drv.StartUpdate()

	ex, err := c.DriveRegistration(time.Now(), 1, "peer", "ep", time.Hour, "1.1", "/rd/0")
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, coap.POST, ex.OutMsg.Code)
	assert.Equal(t, []string{"rd", "0"}, ex.OutMsg.Options.UriPath())
}
