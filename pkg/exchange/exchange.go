// Package exchange implements the CoAP exchange engine (spec §4.2, §4.3,
// §4.4): the retransmission state machine for a single request/response,
// generalized from the teacher stack's SDOClient (pkg/sdo/client.go),
// whose downloadMain/upload state-switch-on-response loop is the model
// for Exchange.Step. Where SDOClient tracks one CAN segment transfer at a
// time, Exchange tracks one CoAP message exchange, optionally spanning
// several Block1/Block2 messages.
package exchange

import (
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/golwm2m/pkg/coap"
	"github.com/samsamfire/golwm2m/pkg/result"
)

// RFC 7252 §4.8 default transmission parameters.
const (
	AckTimeout      = 2 * time.Second
	AckRandomFactor = 1.5
	MaxRetransmit   = 4
	MaxTransmitSpan = AckTimeout * 15 * 3 / 2 // (2^4-1)*ACK_TIMEOUT*ACK_RANDOM_FACTOR
	NStart          = 1
)

// State is the exchange's lifecycle stage (spec §4.2), mirroring the
// teacher stack's SDO_STATE_* progression but generalized to CoAP's
// confirmable-request / notify / separate-response shapes.
type State uint8

const (
	StateMsgToSend State = iota
	StateWaitingSendConfirmation
	StateWaitingMsg
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateMsgToSend:
		return "msg_to_send"
	case StateWaitingSendConfirmation:
		return "waiting_send_confirmation"
	case StateWaitingMsg:
		return "waiting_msg"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Exchange tracks one in-flight CoAP request/response pair, including
// Confirmable retransmission and an optional Block1/Block2 continuation.
// It owns no socket; Step returns a Result telling the caller whether to
// send OutMsg, wait, or treat the exchange as done, the same
// EAGAIN/EINPROGRESS-replacement discipline the rest of the core uses
// (spec Design Notes §9).
type Exchange struct {
	Peer      string
	State     State
	OutMsg    *coap.Message
	InMsg     *coap.Message
	Err       error

	confirmable  bool
	retransmits  int
	nextDeadline time.Time

	// BlockCtx drives a Block1 (upload) or Block2 (download) sequence:
	// when non-nil, a WaitingMsg -> MsgToSend transition after a matching
	// response re-arms OutMsg with the next block instead of finishing.
	BlockCtx *BlockContext

	// PendingAck is the empty ACK owed back to the peer after receiving a
	// Confirmable separate response (spec §4.3): set by handleIncoming,
	// cleared once Manager.Step has surfaced it to the caller for sending.
	PendingAck *coap.Message

	onResponse func(resp *coap.Message) (done bool, err error)
}

// NewExchange starts a new client-initiated exchange for req, addressed
// to peer. If req.Type is Confirmable, Step will retransmit it up to
// MaxRetransmit times using a jittered exponential backoff.
func NewExchange(peer string, req *coap.Message) *Exchange {
	return &Exchange{
		Peer:        peer,
		State:       StateMsgToSend,
		OutMsg:      req,
		confirmable: req.Type == coap.Confirmable,
	}
}

// OnResponse installs a callback invoked once per matching inbound
// message; returning done == true finishes the exchange (used by
// block-wise transfer to keep the exchange alive across many messages).
func (e *Exchange) OnResponse(fn func(resp *coap.Message) (bool, error)) {
	e.onResponse = fn
}

// armTimer schedules the next retransmit deadline relative to now, the
// same clock value the driving loop passes into Step, so no component of
// the exchange engine reads the wall clock on its own (spec §5's
// single-threaded, caller-driven timing model).
func (e *Exchange) armTimer(now time.Time, base time.Duration) {
	jitter := time.Duration(float64(base) * (rand.Float64() * (AckRandomFactor - 1)))
	e.nextDeadline = now.Add(base + jitter)
}

// Step advances the exchange's state machine. now is injected so tests
// can drive retransmission deterministically without sleeping.
func (e *Exchange) Step(now time.Time) (result.Result, error) {
	switch e.State {
	case StateMsgToSend:
		e.armTimer(now, AckTimeout<<uint(e.retransmits))
		e.State = StateWaitingSendConfirmation
		return result.Ready, nil

	case StateWaitingSendConfirmation:
		if !e.confirmable {
			e.State = StateFinished
			return result.Ready, nil
		}
		e.State = StateWaitingMsg
		return result.WouldBlock, nil

	case StateWaitingMsg:
		if e.InMsg != nil {
			return e.handleIncoming()
		}
		if !e.confirmable {
			return result.WouldBlock, nil
		}
		if now.Before(e.nextDeadline) {
			return result.WouldBlock, nil
		}
		if e.retransmits >= MaxRetransmit {
			log.Warnf("[EXCHANGE][%s] giving up after %d retransmits, mid=%d", e.Peer, e.retransmits, e.OutMsg.MessageID)
			e.Err = ErrTimeout
			e.State = StateFinished
			return result.Errored, ErrTimeout
		}
		e.retransmits++
		log.Debugf("[EXCHANGE][%s] retransmit %d/%d mid=%d", e.Peer, e.retransmits, MaxRetransmit, e.OutMsg.MessageID)
		e.State = StateMsgToSend
		return e.Step(now)

	case StateFinished:
		return result.Ready, nil

	default:
		return result.Errored, ErrInvalidState
	}
}

func (e *Exchange) handleIncoming() (result.Result, error) {
	resp := e.InMsg
	e.InMsg = nil

	if resp.Type == coap.Reset {
		log.Debugf("[EXCHANGE][%s] peer reset mid=%d", e.Peer, resp.MessageID)
		e.Err = ErrReset
		e.State = StateFinished
		return result.Errored, ErrReset
	}

	if resp.Type == coap.Acknowledgement && resp.IsEmpty() {
		// Separate response: the ACK only confirms delivery; keep waiting
		// for the actual response to arrive as its own Confirmable message.
		e.retransmits = 0
		e.confirmable = false
		return result.WouldBlock, nil
	}

	if resp.Type == coap.Confirmable {
		// The separate response itself arrived Confirmable: RFC 7252 §4.2
		// requires an empty ACK back before (or alongside) delivering the
		// completion to the caller.
		e.PendingAck = coap.NewMessage(coap.Acknowledgement, coap.CodeEmpty, resp.MessageID, nil)
	}

	done := true
	var err error
	if e.onResponse != nil {
		done, err = e.onResponse(resp)
	}
	if err != nil {
		e.Err = err
		e.State = StateFinished
		return result.Errored, err
	}
	if !done {
		// Block-wise continuation: onResponse has re-armed OutMsg.
		e.confirmable = e.OutMsg.Type == coap.Confirmable
		e.retransmits = 0
		e.State = StateMsgToSend
		return result.InProgress, nil
	}
	e.State = StateFinished
	return result.Ready, nil
}

// Deliver feeds an inbound message matching this exchange's token into the
// state machine; the caller (Manager) is responsible for token/peer
// matching before calling Deliver.
func (e *Exchange) Deliver(msg *coap.Message) {
	e.InMsg = msg
}

func (e *Exchange) Done() bool { return e.State == StateFinished }
