// Package udp implements lwm2m.Conn over a connected net.UDPConn, the way
// the teacher's pkg/can/socketcan wraps brutella/can's Bus behind the
// core's Bus interface: one small adapter translating a concrete transport
// into the engine's own non-blocking connection abstraction.
package udp

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	lwm2m "github.com/samsamfire/golwm2m"
)

// pollDeadline bounds how long a single Recv/Send call may block the
// caller's Step loop. It is far below any CoAP retransmission timer, so a
// socket with nothing to read returns NetAgain almost immediately instead
// of stalling the whole engine.
const pollDeadline = time.Millisecond

// Conn is a udp.Conn adapter around a connected *net.UDPConn. It implements
// lwm2m.Conn; one instance exists per Bootstrap Server or LwM2M Server
// connection, matching SocketcanBus's one-bus-per-registered-interface
// lifetime.
type Conn struct {
	conn *net.UDPConn
	mtu  int
}

// New returns an unconnected Conn; call Connect before Send/Recv.
func New() *Conn {
	return &Conn{mtu: 1280}
}

func (c *Conn) Connect(host string, port uint16) (lwm2m.NetResult, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return lwm2m.NetError, fmt.Errorf("udp: resolving %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return lwm2m.NetError, fmt.Errorf("udp: dialing %s:%d: %w", host, port, err)
	}
	c.conn = conn
	log.Debugf("[TRANSPORT][UDP] connected to %s", addr)
	return lwm2m.NetOK, nil
}

func (c *Conn) Send(buf []byte) (lwm2m.NetResult, int, error) {
	if c.conn == nil {
		return lwm2m.NetError, 0, errors.New("udp: send on unconnected socket")
	}
	if len(buf) > c.mtu {
		return lwm2m.NetMsgTooLarge, 0, nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(pollDeadline)); err != nil {
		return lwm2m.NetError, 0, err
	}
	n, err := c.conn.Write(buf)
	if err != nil {
		if isTimeout(err) {
			return lwm2m.NetAgain, 0, nil
		}
		return lwm2m.NetError, 0, err
	}
	return lwm2m.NetOK, n, nil
}

func (c *Conn) Recv(buf []byte) (lwm2m.NetResult, int, error) {
	if c.conn == nil {
		return lwm2m.NetError, 0, errors.New("udp: recv on unconnected socket")
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
		return lwm2m.NetError, 0, err
	}
	n, err := c.conn.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return lwm2m.NetAgain, 0, nil
		}
		return lwm2m.NetError, 0, err
	}
	return lwm2m.NetOK, n, nil
}

func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Shutdown and Cleanup have no distinct meaning for a plain UDP socket
// (no handshake to tear down, no DTLS session cache to release): both
// just close the socket, matching Close.
func (c *Conn) Shutdown() error { return c.Close() }
func (c *Conn) Cleanup() error  { return c.Close() }

func (c *Conn) InnerMTU() int { return c.mtu }

// RemoteLabel identifies the connected peer for the exchange engine's
// (peer, token) routing key (pkg/exchange.Manager). It is stable for the
// lifetime of one Conn, the same role the CAN interface name plays as the
// SocketcanBus's implicit peer identity.
func (c *Conn) RemoteLabel() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// QueueModeRXOff has no effect on a plain UDP socket: there is no
// underlying radio or modem layer to suspend, unlike a cellular bearer.
func (c *Conn) QueueModeRXOff() {}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

var _ lwm2m.Conn = (*Conn)(nil)
