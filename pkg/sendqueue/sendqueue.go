// Package sendqueue implements the LwM2M Send queue (spec §4.9): a
// bounded FIFO of already-encoded SenML-CBOR payloads awaiting delivery
// to a registered server, gated by the Server object's Mute-Send
// resource (/1/x/23) and cleared whenever that server's registration is
// reset. Its ring-buffer shape is grounded on the teacher stack's
// emergency.EMCY transmit history ring (pkg/emergency/emergency.go),
// generalized from fixed-size EMCY frames to variably-sized payload
// slices.
package sendqueue

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// ErrFull is returned by Push when the queue is at capacity and the
// oldest entry would have to be dropped to make room; the caller
// decides whether dropping-oldest is acceptable (it is not, for Send,
// per spec §4.9 — a full queue simply rejects new Sends until drained).
var ErrFull = errors.New("sendqueue: full")

// Entry is one queued Send awaiting delivery.
type Entry struct {
	Paths   []string // resource paths this Send payload covers, for logging/diagnostics
	Payload []byte   // pre-encoded SenML CBOR body
}

// Queue is a bounded FIFO, one per registered (non-bootstrap) server.
type Queue struct {
	SSID     uint16
	Muted    bool
	capacity int
	entries  []Entry
}

func New(ssid uint16, capacity int) *Queue {
	return &Queue{SSID: ssid, capacity: capacity, entries: make([]Entry, 0, capacity)}
}

// Push enqueues e. It returns ErrFull without enqueuing if the queue is
// at capacity, and nil without enqueuing if the server's Send resource
// is muted (spec §4.9: a muted server silently drops new Sends rather
// than accumulating a backlog it will never drain).
func (q *Queue) Push(e Entry) error {
	if q.Muted {
		log.Debugf("[SENDQUEUE][%d] dropping send, server muted", q.SSID)
		return nil
	}
	if len(q.entries) >= q.capacity {
		return ErrFull
	}
	q.entries = append(q.entries, e)
	return nil
}

// Peek returns the oldest queued entry without removing it, or false if
// the queue is empty.
func (q *Queue) Peek() (Entry, bool) {
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	return q.entries[0], true
}

// Pop removes and returns the oldest queued entry, called once its
// delivery exchange has finished successfully.
func (q *Queue) Pop() (Entry, bool) {
	e, ok := q.Peek()
	if !ok {
		return Entry{}, false
	}
	q.entries = q.entries[1:]
	return e, true
}

// Len reports how many entries are queued.
func (q *Queue) Len() int { return len(q.entries) }

// Clear empties the queue, called on Registration-Session reset (spec
// §4.8's state table: every Registration response event clears both
// observations and the send queue).
func (q *Queue) Clear() { q.entries = q.entries[:0] }

// SetMuted applies the Server object's Mute-Send resource (/1/x/23).
// Muting does not clear what is already queued; it only stops further
// enqueuing until unmuted.
func (q *Queue) SetMuted(muted bool) { q.Muted = muted }
