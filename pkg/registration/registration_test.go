package registration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapThenRegisterHappyPath(t *testing.T) {
	now := time.Now()

	bootstrap := NewDriver(0, true, DefaultRetryPolicy)
	bootstrap.Start(now)
	require.Equal(t, StateBootstrapRequesting, bootstrap.State)
	require.True(t, bootstrap.DueForAttempt(now))

	bootstrap.Succeeded(now)
	assert.Equal(t, StateBootstrapPending, bootstrap.State)

	reg := NewDriver(1, false, DefaultRetryPolicy)
	reg.Lifetime = 300 * time.Second
	reg.Start(now)
	require.True(t, reg.DueForAttempt(now))

	reg.Succeeded(now)
	assert.Equal(t, StateRegistered, reg.State)
	assert.False(t, reg.DueForUpdate(now))
	assert.True(t, reg.DueForUpdate(now.Add(208*time.Second)))
}

func TestRegistrationUpdateUsesLongerOfHalfLifetimeOrMargin(t *testing.T) {
	now := time.Now()
	reg := NewDriver(1, false, DefaultRetryPolicy)

	reg.Lifetime = 120 * time.Second // half=60s, margin=120-93=27s -> wait=60s
	reg.Start(now)
	reg.Succeeded(now)
	assert.False(t, reg.DueForUpdate(now.Add(59*time.Second)))
	assert.True(t, reg.DueForUpdate(now.Add(61*time.Second)))
}

func TestZeroLifetimeNeverSchedulesUpdate(t *testing.T) {
	now := time.Now()
	reg := NewDriver(1, false, DefaultRetryPolicy)
	reg.Lifetime = 0
	reg.Start(now)
	reg.Succeeded(now)
	assert.False(t, reg.DueForUpdate(now.Add(365*24*time.Hour)))
}

func TestFailedAttemptSchedulesRetryWithinRetryCount(t *testing.T) {
	now := time.Now()
	policy := RetryPolicy{RetryCount: 1, RetryTimer: 10 * time.Second, SeqRetryCount: 1, SeqDelayTimer: time.Hour}
	reg := NewDriver(1, false, policy)
	reg.Start(now)

	fellBack := false
	reg.Failed(now, func() { fellBack = true })
	assert.False(t, fellBack, "should not fall back to bootstrap before exhausting RetryCount")
	assert.False(t, reg.DueForAttempt(now))
	assert.True(t, reg.DueForAttempt(now.Add(15*time.Second)))
}

func TestRegistrationFallsBackToBootstrapAfterExhaustingRetries(t *testing.T) {
	now := time.Now()
	policy := RetryPolicy{RetryCount: 1, RetryTimer: time.Second, SeqRetryCount: 1, SeqDelayTimer: time.Second}
	reg := NewDriver(1, false, policy)
	reg.Start(now)

	fellBack := false
	fallback := func() { fellBack = true }

	reg.Failed(now, fallback) // consumes RetryCount=1
	reg.Failed(now, fallback) // consumes SeqRetryCount=1, should now fall back
	assert.True(t, fellBack)
	assert.Equal(t, StateFailed, reg.State)
}

func TestBootstrapDriverNeverFallsBackToItself(t *testing.T) {
	now := time.Now()
	policy := RetryPolicy{RetryCount: 0, SeqRetryCount: 0}
	bootstrap := NewDriver(0, true, policy)
	bootstrap.Start(now)

	called := false
	bootstrap.Failed(now, func() { called = true })
	assert.False(t, called, "a bootstrap driver has no further fallback")
	assert.Equal(t, StateFailed, bootstrap.State)
}

func TestDeregisterReturnsDriverToIdle(t *testing.T) {
	now := time.Now()
	reg := NewDriver(1, false, DefaultRetryPolicy)
	reg.Start(now)
	reg.Succeeded(now)

	reg.Deregister()
	assert.Equal(t, StateDeregistering, reg.State)
	reg.Succeeded(now)
	assert.Equal(t, StateIdle, reg.State)
}

func TestStateChangeCallbackFires(t *testing.T) {
	now := time.Now()
	reg := NewDriver(1, false, DefaultRetryPolicy)
	var seen []State
	reg.OnStateChange(func(s State) { seen = append(seen, s) })

	reg.Start(now)
	reg.Succeeded(now)
	require.Len(t, seen, 2)
	assert.Equal(t, StateRegistering, seen[0])
	assert.Equal(t, StateRegistered, seen[1])
}
