package lwm2m

import (
	"github.com/samsamfire/golwm2m/pkg/result"
	"github.com/samsamfire/golwm2m/pkg/statemachine"
)

// Result is the outcome of a single non-blocking step of an engine
// component (see pkg/result for the full doc comment). It is aliased here
// so callers of the top-level client API don't need a separate import for
// a single enum type.
type Result = result.Result

const (
	Ready      = result.Ready
	WouldBlock = result.WouldBlock
	InProgress = result.InProgress
	Errored    = result.Errored
)

// State is the client's overall lifecycle state (spec §4.8), aliased here
// so Config.ConnectionStatusCallback and other top-level signatures don't
// need a separate pkg/statemachine import for a single enum type.
type State = statemachine.State

const (
	StateInitial             = statemachine.StateInitial
	StateBootstrap           = statemachine.StateBootstrap
	StateRegistration        = statemachine.StateRegistration
	StateRegistrationSession = statemachine.StateRegistrationSession
	StateQueueMode           = statemachine.StateQueueMode
	StateSuspendMode         = statemachine.StateSuspendMode
	StateFailure             = statemachine.StateFailure
)
