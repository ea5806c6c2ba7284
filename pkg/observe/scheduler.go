package observe

import (
	"time"

	"github.com/samsamfire/golwm2m/pkg/dm"
)

// Observation is one active CoAP Observe registration on a path (spec
// §4.7): the inhibit timer is Pmin (never notify more often than this),
// the event timer is Pmax (notify at least this often even with no
// qualifying change), directly generalizing the teacher stack's TPDO
// inhibit/event-timer pair to a value-driven rather than SYNC-driven
// cadence.
type Observation struct {
	Path    dm.Path
	Token   []byte
	Peer    string
	SSID    uint16
	Attrs   AttributeSet
	SeqNum  uint32

	lastSent     time.Time
	lastValue    dm.Value
	haveLast     bool
	pendingEpoch int
}

// NewObservation starts tracking path for peer/token with attrs already
// resolved through inheritance.
func NewObservation(path dm.Path, peer string, token []byte, ssid uint16, attrs AttributeSet) *Observation {
	return &Observation{Path: path, Peer: peer, Token: token, SSID: ssid, Attrs: attrs}
}

// Due reports whether, given cur as the freshly read value, a notification
// should fire at instant now. It folds together the pmin inhibit window,
// the pmax mandatory cadence, and the lt/gt/st change gate (spec §4.7).
func (o *Observation) Due(now time.Time, cur dm.Value) bool {
	sincePmin := o.lastSent.IsZero() || now.Sub(o.lastSent) >= o.Attrs.Pmin
	if !sincePmin {
		return false
	}
	if o.Attrs.Pmax != nil && !o.lastSent.IsZero() && now.Sub(o.lastSent) >= *o.Attrs.Pmax {
		return true
	}
	if o.Attrs.Edge {
		return o.haveLast && o.lastValue.Bool != cur.Bool
	}
	curF, numeric := cur.AsFloat64()
	if !numeric {
		return !o.haveLast || !valueEqual(o.lastValue, cur)
	}
	lastF, _ := o.lastValue.AsFloat64()
	return o.Attrs.thresholdCrossed(lastF, curF, o.haveLast)
}

// Record marks a notification as sent at now carrying cur, resetting the
// pmin/pmax clock and bumping the Observe sequence number (RFC 7641 §4.4).
func (o *Observation) Record(now time.Time, cur dm.Value) {
	o.lastSent = now
	o.lastValue = cur
	o.haveLast = true
	o.SeqNum++
}

func valueEqual(a, b dm.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case dm.KindString:
		return a.Str == b.Str
	case dm.KindBytes:
		return string(a.Bytes) == string(b.Bytes)
	case dm.KindBool:
		return a.Bool == b.Bool
	case dm.KindObjLink:
		return a.Link == b.Link
	default:
		af, _ := a.AsFloat64()
		bf, _ := b.AsFloat64()
		return af == bf
	}
}

// Scheduler owns every active Observation and decides, once per Step,
// which are due. It does not itself read resource values or send
// notifications — the caller supplies cur via Registry.Read and hands
// due observations to the exchange engine, keeping Scheduler free of any
// transport or data-model dependency beyond dm.Value/dm.Path.
type Scheduler struct {
	observations map[string]*Observation // keyed by peer+":"+string(token)
}

func NewScheduler() *Scheduler {
	return &Scheduler{observations: make(map[string]*Observation)}
}

func key(peer string, token []byte) string { return peer + ":" + string(token) }

// Start registers or replaces the observation for (peer, token) per RFC
// 7641 §4.1's "replace, don't duplicate" rule.
func (s *Scheduler) Start(obs *Observation) {
	s.observations[key(obs.Peer, obs.Token)] = obs
}

// Stop removes an observation, e.g. on explicit deregistration or a Reset
// from the peer (spec §4.7).
func (s *Scheduler) Stop(peer string, token []byte) {
	delete(s.observations, key(peer, token))
}

// StopAll clears every observation belonging to peer, used when a new
// Registration Update or re-registration implicitly cancels prior
// observations (spec §4.7's "cleared on new registration" rule).
func (s *Scheduler) StopAll(peer string) {
	for k, o := range s.observations {
		if o.Peer == peer {
			delete(s.observations, k)
		}
	}
}

// All returns every active observation, for the driving loop to re-read
// each one's current value and check Due.
func (s *Scheduler) All() []*Observation {
	out := make([]*Observation, 0, len(s.observations))
	for _, o := range s.observations {
		out = append(out, o)
	}
	return out
}

func (s *Scheduler) Len() int { return len(s.observations) }
