package exchange

import (
	"fmt"
	"time"

	"github.com/samsamfire/golwm2m/pkg/coap"
	"github.com/samsamfire/golwm2m/pkg/result"
)

type exchangeKey struct {
	peer  string
	token string
}

// Manager multiplexes many concurrent Exchanges over one socket, the CoAP
// analogue of the teacher stack's BusManager routing CAN frames to
// subscribers by COB-ID (bus_manager.go) — here the routing key is
// (peer, token) instead of a numeric identifier.
type Manager struct {
	exchanges map[exchangeKey]*Exchange
}

func NewManager() *Manager {
	return &Manager{exchanges: make(map[exchangeKey]*Exchange)}
}

// Start registers a new client-initiated exchange and returns it; the
// caller still owns sending ex.OutMsg on the wire.
func (m *Manager) Start(peer string, req *coap.Message) *Exchange {
	ex := NewExchange(peer, req)
	m.exchanges[exchangeKey{peer: peer, token: string(req.Token)}] = ex
	return ex
}

// Dispatch routes an inbound message to the exchange matching its
// (peer, token), returning false if no exchange is waiting for it (the
// caller should treat this as an unsolicited message, e.g. a server-
// driven notification or a request the exchange engine doesn't own).
func (m *Manager) Dispatch(peer string, msg *coap.Message) bool {
	key := exchangeKey{peer: peer, token: string(msg.Token)}
	ex, ok := m.exchanges[key]
	if !ok {
		return false
	}
	ex.Deliver(msg)
	return true
}

// Step advances every tracked exchange once, removing any that finished,
// and returns the ones that have a message ready to send plus any empty
// ACKs owed back to peers for Confirmable separate responses (spec §4.3).
func (m *Manager) Step(now time.Time) (toSend []*Exchange, acks []*coap.Message, errs []error) {
	for key, ex := range m.exchanges {
		res, err := ex.Step(now)
		if err != nil && res == result.Errored {
			errs = append(errs, fmt.Errorf("exchange %s: %w", key.peer, err))
		}
		// A transition into waiting-send-confirmation, whether the first
		// send or a retransmit, is the signal that OutMsg is ready for the
		// wire (see Exchange.Step's StateMsgToSend/StateWaitingMsg cases).
		if res == result.Ready && ex.State == StateWaitingSendConfirmation {
			toSend = append(toSend, ex)
		}
		if ex.PendingAck != nil {
			acks = append(acks, ex.PendingAck)
			ex.PendingAck = nil
		}
		if ex.Done() {
			delete(m.exchanges, key)
		}
	}
	return toSend, acks, errs
}

func (m *Manager) Len() int { return len(m.exchanges) }
