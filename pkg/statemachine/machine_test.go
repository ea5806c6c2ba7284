package statemachine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialGoesStraightToRegistrationWithValidServer(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)
	assert.Equal(t, StateRegistration, m.State)
}

func TestInitialGoesToBootstrapWithBootstrapOnlyInstance(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(false, true)
	assert.Equal(t, StateBootstrap, m.State)
}

func TestInitialFailsWithNoValidInstances(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(false, false)
	assert.Equal(t, StateFailure, m.State)
}

func TestBootstrapThenRegisterClearsQueueAndObservations(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(false, true)
	se := m.BootstrapFinished()
	require.Equal(t, StateRegistration, m.State)
	assert.True(t, se.CloseConnection)

	se = m.Registered()
	assert.Equal(t, StateRegistrationSession, m.State)
	assert.True(t, se.ClearObservations)
	assert.True(t, se.ClearSendQueue)
}

func TestRegistrationRetriesExhaustedFallsBackToBootstrapWhenConfigured(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)
	m.RegistrationRetriesExhausted(BootstrapOnRegFailure(true))
	assert.Equal(t, StateBootstrap, m.State)
}

func TestRegistrationRetriesExhaustedFailsWhenNotConfigured(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)
	m.RegistrationRetriesExhausted(BootstrapOnRegFailure(false))
	assert.Equal(t, StateFailure, m.State)
}

func TestDisableExecutedDeregistersAndSuspends(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)
	m.Registered()

	se := m.DisableExecuted(time.Now().Add(time.Hour))
	assert.Equal(t, StateSuspendMode, m.State)
	assert.True(t, se.Deregister)
	assert.True(t, se.CloseConnection)
}

func TestSuspendReturnsToInitialOnlyAfterTimeout(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)
	m.Registered()
	until := time.Now().Add(time.Hour)
	m.DisableExecuted(until)

	m.SuspendTimeoutElapsed(until.Add(-time.Minute))
	assert.Equal(t, StateSuspendMode, m.State, "timeout not yet elapsed")

	m.SuspendTimeoutElapsed(until.Add(time.Minute))
	assert.Equal(t, StateInitial, m.State)
}

func TestQueueModeRoundTrip(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)
	m.Registered()

	se := m.QueueTimeout()
	assert.Equal(t, StateQueueMode, m.State)
	assert.True(t, se.CloseConnection)

	se = m.OutgoingTrafficDue()
	assert.Equal(t, StateRegistrationSession, m.State)
	assert.True(t, se.ReopenConnection)
}

func TestProtocolErrorReRegistersRatherThanFailing(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)
	m.Registered()

	se := m.ProtocolOrNetworkError()
	assert.Equal(t, StateRegistration, m.State)
	assert.True(t, se.NetworkReset)
}

func TestUserRestartWorksFromAnyActiveState(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)
	m.Registered()
	m.QueueTimeout()

	se := m.UserRestart()
	assert.Equal(t, StateInitial, m.State)
	assert.True(t, se.CloseConnection)
}

func TestUserDisableServerDeregistersOnlyWhenRegistered(t *testing.T) {
	m := New()
	m.StartFromBootstrapInfo(true, false)

	se := m.UserDisableServer(time.Now().Add(time.Minute))
	assert.False(t, se.Deregister, "not registered yet, nothing to deregister")
	assert.Equal(t, StateSuspendMode, m.State)
}

func TestBusyFlagTracksInFlightExchange(t *testing.T) {
	m := New()
	assert.False(t, m.Busy())
	m.SetBusy(true)
	assert.True(t, m.Busy())
}

func TestTransitionCallbackFiresWithFromAndTo(t *testing.T) {
	m := New()
	var gotFrom, gotTo State
	m.OnTransition(func(from, to State) { gotFrom, gotTo = from, to })

	m.StartFromBootstrapInfo(true, false)
	assert.Equal(t, StateInitial, gotFrom)
	assert.Equal(t, StateRegistration, gotTo)
}
