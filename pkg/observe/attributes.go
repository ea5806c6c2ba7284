// Package observe implements the CoAP Observe (RFC 7641) notification
// engine and the LwM2M numeric attributes that gate it (spec §4.7):
// pmin/pmax/lt/gt/st/epmin/epmax/edge/con/hqmax. Its notification
// scheduling is grounded on the teacher stack's TPDO inhibit/event-timer
// pair (pkg/pdo/tpdo.go's inhibitTimeUs/eventTimeUs), generalized from a
// goroutine-driven syncHandler to a single Step call the driving loop
// polls, per the cooperative-scheduling core (spec §5).
package observe

import "time"

// AttributeSet is the resolved (inherited) attribute set in force for one
// observed path (spec §4.7). A zero value for any optional attribute
// means "not set"; Resolve applies object/instance-level inheritance
// before a Scheduler ever sees one of these.
type AttributeSet struct {
	Pmin  time.Duration // minimum period, default 0
	Pmax  *time.Duration
	Lt    *float64 // less-than threshold
	Gt    *float64 // greater-than threshold
	St    *float64 // step: minimum absolute change to report
	Epmin *time.Duration
	Epmax *time.Duration
	Edge  bool // notify only when a boolean resource's value transitions
	Con   bool // require Confirmable notifications
	Hqmax *time.Duration
}

// Merge layers child over the receiver (spec §4.7 inheritance: Resource
// overrides Instance overrides Object overrides Server default), letting
// callers fold nested attribute writes without re-deriving the whole
// inheritance chain each time.
func (a AttributeSet) Merge(child AttributeSet) AttributeSet {
	out := a
	if child.Pmin != 0 {
		out.Pmin = child.Pmin
	}
	if child.Pmax != nil {
		out.Pmax = child.Pmax
	}
	if child.Lt != nil {
		out.Lt = child.Lt
	}
	if child.Gt != nil {
		out.Gt = child.Gt
	}
	if child.St != nil {
		out.St = child.St
	}
	if child.Epmin != nil {
		out.Epmin = child.Epmin
	}
	if child.Epmax != nil {
		out.Epmax = child.Epmax
	}
	out.Edge = out.Edge || child.Edge
	out.Con = out.Con || child.Con
	if child.Hqmax != nil {
		out.Hqmax = child.Hqmax
	}
	return out
}

// thresholdCrossed reports whether moving from prev to cur should trigger
// a notification under lt/gt/st (spec §4.7, §8 edge cases). The three are
// independent, OR-combined triggers, not a combined gate: lt/gt fire only
// on the crossing, not merely being beyond the threshold, so a value that
// stays pinned above gt does not re-notify every pmin tick; st fires on
// its own whenever the absolute change reaches the step regardless of
// whether that change also crossed lt/gt.
func (a AttributeSet) thresholdCrossed(prev, cur float64, havePrev bool) bool {
	if !havePrev || cur == prev {
		return !havePrev
	}
	if a.Gt == nil && a.Lt == nil && a.St == nil {
		return true
	}
	crossedGt := a.Gt != nil && (prev <= *a.Gt) != (cur <= *a.Gt)
	crossedLt := a.Lt != nil && (prev >= *a.Lt) != (cur >= *a.Lt)
	steppedSt := a.St != nil && abs(cur-prev) >= *a.St
	return crossedGt || crossedLt || steppedSt
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
