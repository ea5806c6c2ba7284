// Package statemachine implements the LwM2M client state machine (spec
// §4.8): Initial, Bootstrap, Registration, Registration-Session,
// Queue-Mode, Suspend-Mode, and the terminal Failure state, plus the
// "busy" rule that answers incoming requests with 5.03 while another
// exchange is in flight. It generalizes the teacher stack's NMT driver
// (pkg/nmt/nmt.go) from CANopen's fixed five-state/five-command table to
// this larger, event-and-timer-driven table, keeping NMT's
// callback-on-transition shape but dropping its mutex: this machine is
// driven by a single caller-owned Step, never from a second goroutine.
package statemachine

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// State is one node of the table in spec §4.8.
type State uint8

const (
	StateInitial State = iota
	StateBootstrap
	StateRegistration
	StateRegistrationSession
	StateQueueMode
	StateSuspendMode
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateBootstrap:
		return "bootstrap"
	case StateRegistration:
		return "registration"
	case StateRegistrationSession:
		return "registration_session"
	case StateQueueMode:
		return "queue_mode"
	case StateSuspendMode:
		return "suspend_mode"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// BootstrapOnRegFailure is the /1/x/16 "Bootstrap-on-Registration-Failure"
// server resource: when true, exhausting Registration retries re-enters
// Bootstrap instead of Failure (spec §4.8's "Failure | Bootstrap" cell).
type BootstrapOnRegFailure bool

// SideEffects collects the actions Step asks the caller to perform for a
// transition; the machine itself does not deregister, close sockets, or
// clear queues — it only decides that those things must happen, keeping
// I/O and queue/observation ownership with the caller (spec §5).
type SideEffects struct {
	Deregister        bool
	CloseConnection   bool
	NetworkReset      bool
	ClearObservations bool
	ClearSendQueue    bool
	ReopenConnection  bool
}

// Machine holds the current state plus the timers the table's
// self-transitions and timeouts depend on.
type Machine struct {
	State State

	busy          bool // an exchange is currently in flight
	disableUntil  time.Time
	queueDeadline time.Time

	callbacks []func(from, to State)
}

func New() *Machine {
	return &Machine{State: StateInitial}
}

func (m *Machine) OnTransition(fn func(from, to State)) {
	m.callbacks = append(m.callbacks, fn)
}

func (m *Machine) transition(to State) SideEffects {
	from := m.State
	if from == to {
		return SideEffects{}
	}
	log.Debugf("[STATEMACHINE] %s -> %s", from, to)
	m.State = to
	for _, cb := range m.callbacks {
		cb(from, to)
	}
	return SideEffects{}
}

// Busy reports whether an exchange is in flight; the transport layer
// consults this to decide whether an inbound server request must be
// answered with 5.03 Service Unavailable (spec §4.8's "at most one
// exchange in-flight" rule).
func (m *Machine) Busy() bool { return m.busy }

// SetBusy records whether an exchange is in flight; Client.Step calls it
// on every tick with whether the exchange manager holds any exchange.
func (m *Machine) SetBusy(b bool) { m.busy = b }

// StartFromBootstrapInfo is the Initial state's single decision point
// (spec §4.8): valid Security+Server instances go straight to
// Registration, a Security-only (no matching Server) instance goes to
// Bootstrap, and anything else is an immediate Failure.
func (m *Machine) StartFromBootstrapInfo(hasValidServer, hasBootstrapOnly bool) SideEffects {
	switch {
	case hasValidServer:
		return m.transition(StateRegistration)
	case hasBootstrapOnly:
		return m.transition(StateBootstrap)
	default:
		return m.transition(StateFailure)
	}
}

// BootstrapFinished handles the bs-finish execute that ends Bootstrap.
func (m *Machine) BootstrapFinished() SideEffects {
	se := m.transition(StateRegistration)
	se.CloseConnection = true
	return se
}

// BootstrapRetriesExhausted moves to the terminal Failure state; there is
// no further fallback from Bootstrap (spec §4.8).
func (m *Machine) BootstrapRetriesExhausted() SideEffects {
	return m.transition(StateFailure)
}

// Registered handles the 2.01 response that completes Registration.
func (m *Machine) Registered() SideEffects {
	se := m.transition(StateRegistrationSession)
	se.ClearObservations = true
	se.ClearSendQueue = true
	return se
}

// RegistrationRetriesExhausted applies /1/x/16: fall back to Bootstrap if
// configured, else Failure.
func (m *Machine) RegistrationRetriesExhausted(policy BootstrapOnRegFailure) SideEffects {
	if policy {
		return m.transition(StateBootstrap)
	}
	return m.transition(StateFailure)
}

// DisableExecuted handles a /1/x/4 Disable execute while registered.
func (m *Machine) DisableExecuted(until time.Time) SideEffects {
	se := m.transition(StateSuspendMode)
	se.Deregister = true
	se.CloseConnection = true
	se.NetworkReset = true
	m.disableUntil = until
	return se
}

// RequestBootstrapExecuted handles a /1/x/9 execute while registered.
func (m *Machine) RequestBootstrapExecuted() SideEffects {
	se := m.transition(StateBootstrap)
	se.Deregister = true
	se.CloseConnection = true
	se.NetworkReset = true
	return se
}

// QueueTimeout handles the idle-connection timeout that, under Queue
// Mode, drops the transport without deregistering.
func (m *Machine) QueueTimeout() SideEffects {
	se := m.transition(StateQueueMode)
	se.CloseConnection = true
	return se
}

// OutgoingTrafficDue wakes Queue-Mode back into an active session when a
// notification, Send, or Update needs to go out.
func (m *Machine) OutgoingTrafficDue() SideEffects {
	se := m.transition(StateRegistrationSession)
	se.ReopenConnection = true
	return se
}

// ProtocolOrNetworkError handles a Registration-Session transport fault,
// which re-registers rather than failing outright.
func (m *Machine) ProtocolOrNetworkError() SideEffects {
	se := m.transition(StateRegistration)
	se.CloseConnection = true
	se.NetworkReset = true
	return se
}

// SuspendTimeoutElapsed handles the /1/x/5 disable-timeout expiry.
func (m *Machine) SuspendTimeoutElapsed(now time.Time) SideEffects {
	if now.Before(m.disableUntil) {
		return SideEffects{}
	}
	return m.transition(StateInitial)
}

// UserRestart is available from any active state (spec §4.8).
func (m *Machine) UserRestart() SideEffects {
	se := m.transition(StateInitial)
	se.CloseConnection = true
	se.NetworkReset = true
	return se
}

// UserRequestBootstrap is available from any active state.
func (m *Machine) UserRequestBootstrap() SideEffects {
	se := m.transition(StateBootstrap)
	se.CloseConnection = m.State == StateRegistrationSession || m.State == StateQueueMode
	se.Deregister = m.State == StateRegistrationSession
	se.NetworkReset = se.CloseConnection
	return se
}

// UserDisableServer is available from any active state.
func (m *Machine) UserDisableServer(until time.Time) SideEffects {
	wasRegistered := m.State == StateRegistrationSession || m.State == StateQueueMode
	se := m.transition(StateSuspendMode)
	se.Deregister = wasRegistered
	se.CloseConnection = true
	se.NetworkReset = true
	m.disableUntil = until
	return se
}
