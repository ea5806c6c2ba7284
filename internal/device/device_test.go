package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/golwm2m/pkg/dm"
)

func TestReadManufacturerAndModel(t *testing.T) {
	d := New("Acme Corp", "Model X")
	ctx := &dm.OpContext{}

	v, err := d.Read(ctx, 0, RIDManufacturer, 0)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", v.Str)

	v, err = d.Read(ctx, 0, RIDModelNumber, 0)
	require.NoError(t, err)
	assert.Equal(t, "Model X", v.Str)
}

func TestExecuteRebootIncrementsCount(t *testing.T) {
	d := New("Acme Corp", "Model X")
	ctx := &dm.OpContext{}
	require.NoError(t, d.Execute(ctx, 0, RIDReboot, nil))
	assert.Equal(t, 1, d.RebootCount)
}

func TestReadUnknownResourceReturnsNotFound(t *testing.T) {
	d := New("Acme Corp", "Model X")
	ctx := &dm.OpContext{}
	_, err := d.Read(ctx, 0, 99, 0)
	assert.ErrorIs(t, err, dm.ErrNotFound)
}

func TestObjectExposesExpectedResources(t *testing.T) {
	obj := Object(New("Acme Corp", "Model X"))
	reg := dm.NewRegistry(4)
	require.NoError(t, reg.Add(obj))
	leaves, err := reg.Read(&dm.OpContext{}, mustPath(t, "/3/0/0"))
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "Acme Corp", leaves[0].Value.Str)
}

func mustPath(t *testing.T, s string) dm.Path {
	t.Helper()
	p, err := dm.ParsePath(strings.Split(strings.Trim(s, "/"), "/"))
	require.NoError(t, err)
	return p
}
