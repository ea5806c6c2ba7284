package observe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/golwm2m/pkg/dm"
)

func TestFirstReadIsAlwaysDue(t *testing.T) {
	o := NewObservation(dm.ResourcePath(3303, 0, 5700), "peer", []byte{1}, 1, AttributeSet{})
	assert.True(t, o.Due(time.Now(), dm.Float(21.5)))
}

func TestPminSuppressesRapidNotifications(t *testing.T) {
	o := NewObservation(dm.ResourcePath(3303, 0, 5700), "peer", []byte{1}, 1, AttributeSet{Pmin: 10 * time.Second})
	now := time.Now()
	o.Record(now, dm.Float(20))

	assert.False(t, o.Due(now.Add(2*time.Second), dm.Float(25)))
	assert.True(t, o.Due(now.Add(11*time.Second), dm.Float(25)))
}

func TestPmaxForcesNotificationEvenWithoutChange(t *testing.T) {
	pmax := 60 * time.Second
	o := NewObservation(dm.ResourcePath(3303, 0, 5700), "peer", []byte{1}, 1, AttributeSet{Pmax: &pmax})
	now := time.Now()
	o.Record(now, dm.Float(20))

	assert.False(t, o.Due(now.Add(30*time.Second), dm.Float(20)))
	assert.True(t, o.Due(now.Add(61*time.Second), dm.Float(20)))
}

func TestGtThresholdFiresOnlyOnCrossing(t *testing.T) {
	gt := 25.0
	o := NewObservation(dm.ResourcePath(3303, 0, 5700), "peer", []byte{1}, 1, AttributeSet{Gt: &gt})
	now := time.Now()
	o.Record(now, dm.Float(20))

	assert.True(t, o.Due(now, dm.Float(30)), "crossing above gt should notify")
	o.Record(now, dm.Float(30))

	assert.False(t, o.Due(now, dm.Float(31)), "staying above gt should not re-notify")
}

func TestStGateSuppressesSmallChanges(t *testing.T) {
	st := 2.0
	o := NewObservation(dm.ResourcePath(3303, 0, 5700), "peer", []byte{1}, 1, AttributeSet{St: &st})
	now := time.Now()
	o.Record(now, dm.Float(20))

	assert.False(t, o.Due(now, dm.Float(21)))
	assert.True(t, o.Due(now, dm.Float(23)))
}

func TestStFiresEvenWithoutCrossingGtOrLt(t *testing.T) {
	gt := 100.0
	st := 2.0
	o := NewObservation(dm.ResourcePath(3303, 0, 5700), "peer", []byte{1}, 1, AttributeSet{Gt: &gt, St: &st})
	now := time.Now()
	o.Record(now, dm.Float(20))

	// Neither crosses gt (both stay below 100) nor stays unchanged, but the
	// absolute step exceeds st: st alone must trigger the notification.
	assert.True(t, o.Due(now, dm.Float(23)), "st should fire independently of gt/lt crossing")
}

func TestEdgeNotifiesOnlyOnBooleanTransition(t *testing.T) {
	o := NewObservation(dm.ResourcePath(3200, 0, 5500), "peer", []byte{1}, 1, AttributeSet{Edge: true})
	now := time.Now()
	o.Record(now, dm.Bool(false))

	assert.False(t, o.Due(now, dm.Bool(false)))
	assert.True(t, o.Due(now, dm.Bool(true)))
}

func TestSchedulerReplacesDuplicateRegistration(t *testing.T) {
	s := NewScheduler()
	token := []byte{0xAA}
	s.Start(NewObservation(dm.ResourcePath(3303, 0, 5700), "peer", token, 1, AttributeSet{}))
	s.Start(NewObservation(dm.ResourcePath(3303, 0, 5700), "peer", token, 1, AttributeSet{Pmin: 5 * time.Second}))

	require.Equal(t, 1, s.Len())
	assert.Equal(t, 5*time.Second, s.All()[0].Attrs.Pmin)
}

func TestStopAllClearsPeerObservations(t *testing.T) {
	s := NewScheduler()
	s.Start(NewObservation(dm.ResourcePath(3303, 0, 5700), "peer-a", []byte{1}, 1, AttributeSet{}))
	s.Start(NewObservation(dm.ResourcePath(3, 0, 0), "peer-a", []byte{2}, 1, AttributeSet{}))
	s.Start(NewObservation(dm.ResourcePath(3, 0, 0), "peer-b", []byte{3}, 1, AttributeSet{}))

	s.StopAll("peer-a")
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "peer-b", s.All()[0].Peer)
}

func TestAttributeMergeInheritance(t *testing.T) {
	st := 1.0
	object := AttributeSet{Pmin: 5 * time.Second}
	resource := AttributeSet{St: &st}
	merged := object.Merge(resource)
	assert.Equal(t, 5*time.Second, merged.Pmin)
	require.NotNil(t, merged.St)
	assert.Equal(t, 1.0, *merged.St)
}
