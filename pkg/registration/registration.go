// Package registration implements the Bootstrap and Registration drivers
// (spec §4.6): a caller-supplied retry policy (the Server object's
// /1/x/17-20 retry values), the Update scheduling rule, Deregister, and
// bootstrap-on-registration-failure fallback. Its state/callback shape is
// grounded on the teacher stack's NMT driver (pkg/nmt/nmt.go): a small
// enum of states, transitions triggered by either an inbound message or a
// timer, and a callback list fired on every state change, generalized
// from NMT's single always-on state machine to one instance per LwM2M
// Server Object entry.
package registration

import (
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// State is this driver's lifecycle stage for one server (spec §4.6).
type State uint8

const (
	StateIdle State = iota
	StateBootstrapRequesting
	StateBootstrapPending
	StateRegistering
	StateRegistered
	StateUpdating
	StateDeregistering
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBootstrapRequesting:
		return "bootstrap_requesting"
	case StateBootstrapPending:
		return "bootstrap_pending"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateUpdating:
		return "updating"
	case StateDeregistering:
		return "deregistering"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RetryPolicy carries the values of a Server object instance's
// Retry-Count / Retry-Timer / Sequence-Retry-Count / Sequence-Delay-Timer
// resources (/1/x/17-20), plus an account timeout. The caller fills it in
// and passes it to NewDriver; this package reads no resources itself.
type RetryPolicy struct {
	RetryCount         int
	RetryTimer         time.Duration
	SeqRetryCount      int
	SeqDelayTimer      time.Duration
	AccountTimeout     time.Duration // 0 means no timeout
}

// DefaultRetryPolicy matches Annex E.1's suggested defaults.
var DefaultRetryPolicy = RetryPolicy{
	RetryCount:    1,
	RetryTimer:    60 * time.Second,
	SeqRetryCount: 1,
	SeqDelayTimer: 24 * time.Hour,
}

// Driver runs one server's Bootstrap -> Register -> Update lifecycle. It
// owns no transport; the caller supplies outbound requests to send and
// feeds back responses/timeouts through the methods below, matching the
// rest of the core's "engine proposes, caller executes I/O" split
// (spec §5).
type Driver struct {
	SSID        uint16
	IsBootstrap bool
	State       State
	Lifetime    time.Duration
	Policy      RetryPolicy

	attempt      int
	seqAttempt   int
	nextAttempt  time.Time
	registeredAt time.Time
	nextUpdate   time.Time

	callbacks []func(State)
}

func NewDriver(ssid uint16, isBootstrap bool, policy RetryPolicy) *Driver {
	return &Driver{SSID: ssid, IsBootstrap: isBootstrap, Policy: policy, State: StateIdle}
}

// OnStateChange registers fn to be called every time State transitions,
// mirroring the teacher stack's NMT callback list (nmt.go's callbacks map)
// generalized from an unkeyed slice since a Driver is never shared across
// subscribers needing independent cancellation.
func (d *Driver) OnStateChange(fn func(State)) {
	d.callbacks = append(d.callbacks, fn)
}

func (d *Driver) setState(s State) {
	if d.State == s {
		return
	}
	log.Debugf("[REGISTRATION][%d] %s -> %s", d.SSID, d.State, s)
	d.State = s
	for _, cb := range d.callbacks {
		cb(s)
	}
}

// Start begins a bootstrap or registration attempt.
func (d *Driver) Start(now time.Time) {
	d.attempt = 0
	d.seqAttempt = 0
	if d.IsBootstrap {
		d.setState(StateBootstrapRequesting)
	} else {
		d.setState(StateRegistering)
	}
	d.nextAttempt = now
}

// Succeeded records that the in-flight Bootstrap/Register/Update exchange
// completed successfully.
func (d *Driver) Succeeded(now time.Time) {
	switch d.State {
	case StateBootstrapRequesting:
		d.setState(StateBootstrapPending)
	case StateRegistering, StateUpdating:
		d.registeredAt = now
		d.scheduleNextUpdate(now)
		d.setState(StateRegistered)
	case StateDeregistering:
		d.setState(StateIdle)
	}
	d.attempt = 0
	d.seqAttempt = 0
}

// scheduleNextUpdate applies the Update-scheduling rule from spec §4.6:
// MAX(lifetime/2, lifetime-MAX_TRANSMIT_WAIT), or never if Lifetime == 0.
const maxTransmitWait = 93 * time.Second // RFC 7252 EXCHANGE_LIFETIME-adjacent bound

func (d *Driver) scheduleNextUpdate(now time.Time) {
	if d.Lifetime == 0 {
		d.nextUpdate = time.Time{}
		return
	}
	half := d.Lifetime / 2
	margin := d.Lifetime - maxTransmitWait
	wait := half
	if margin > wait {
		wait = margin
	}
	if wait < 0 {
		wait = 0
	}
	d.nextUpdate = now.Add(wait)
}

// Failed records that the in-flight exchange failed (timeout or an
// explicit 4.xx response). It applies the retry policy, escalating from
// RetryCount to the longer SeqDelayTimer-gated SeqRetryCount band, and
// finally to bootstrap fallback for a Registration driver (spec §4.6,
// the Design Notes' S6 scenario).
func (d *Driver) Failed(now time.Time, fallbackToBootstrap func()) {
	d.attempt++
	if d.attempt <= d.Policy.RetryCount {
		jitter := time.Duration(rand.Int63n(int64(d.Policy.RetryTimer) / 4))
		d.nextAttempt = now.Add(d.Policy.RetryTimer + jitter)
		return
	}
	d.attempt = 0
	d.seqAttempt++
	if d.seqAttempt < d.Policy.SeqRetryCount {
		d.nextAttempt = now.Add(d.Policy.SeqDelayTimer)
		return
	}
	d.seqAttempt = 0
	if !d.IsBootstrap && fallbackToBootstrap != nil {
		log.Warnf("[REGISTRATION][%d] registration retries exhausted, requesting bootstrap", d.SSID)
		fallbackToBootstrap()
	}
	d.setState(StateFailed)
}

// DueForAttempt reports whether it is time to (re)send the current
// Bootstrap/Register request.
func (d *Driver) DueForAttempt(now time.Time) bool {
	switch d.State {
	case StateBootstrapRequesting, StateRegistering:
		return !now.Before(d.nextAttempt)
	default:
		return false
	}
}

// DueForUpdate reports whether a Registration Update should be sent now.
func (d *Driver) DueForUpdate(now time.Time) bool {
	if d.State != StateRegistered || d.nextUpdate.IsZero() {
		return false
	}
	return !now.Before(d.nextUpdate)
}

// StartUpdate transitions into the Update exchange.
func (d *Driver) StartUpdate() { d.setState(StateUpdating) }

// Deregister begins an explicit Deregister exchange.
func (d *Driver) Deregister() { d.setState(StateDeregistering) }
