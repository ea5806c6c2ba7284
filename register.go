package lwm2m

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/samsamfire/golwm2m/pkg/coap"
	"github.com/samsamfire/golwm2m/pkg/dm"
	"github.com/samsamfire/golwm2m/pkg/exchange"
	"github.com/samsamfire/golwm2m/pkg/registration"
)

// newToken generates a CoAP token identifying one client-initiated
// exchange, the same role a freshly allocated SDO client-command
// transfer index plays in the teacher stack: unique enough to demux
// concurrent exchanges to the same peer, nothing more.
func newToken() []byte {
	tok := make([]byte, 4)
	rand.Read(tok) //nolint:errcheck // math/rand.Read never errors
	return tok
}

// buildRegisterRequest builds the CoAP POST /rd request for the Register
// operation (spec §4.6): ep/lt/lwm2m/b query parameters and the client's
// object/instance listing as the Core Link Format payload, the way the
// teacher's SDO client builds an upload request around od.Entry metadata
// before handing it to the exchange engine.
func (c *Client) buildRegisterRequest(endpointName string, lifetime time.Duration, lwm2mVersion string) (*coap.Message, error) {
	listing, err := c.Registry.Discover(dm.RootPath)
	if err != nil {
		return nil, fmt.Errorf("lwm2m: building registration payload: %w", err)
	}
	req := coap.NewMessage(coap.Confirmable, coap.POST, c.nextMessageID(), newToken())
	req.Options.AddUriPath("rd")
	req.Options.AddUriQuery("ep=" + endpointName)
	req.Options.AddUriQuery(fmt.Sprintf("lt=%d", int(lifetime.Seconds())))
	req.Options.AddUriQuery("lwm2m=" + lwm2mVersion)
	req.Options.AddUriQuery("b=U")
	req.Options.SetContentFormat(uint16(content40))
	req.Payload = []byte(listing)
	return req, nil
}

// content40 is application/link-format (RFC 6690 §4), used only for the
// Register payload; every other exchange goes through pkg/content.
const content40 = 40

// buildUpdateRequest builds the CoAP POST /rd/{location} request for the
// Update operation. location is the path the server returned in the
// Register response's Location-Path options.
func (c *Client) buildUpdateRequest(location string) *coap.Message {
	req := coap.NewMessage(coap.Confirmable, coap.POST, c.nextMessageID(), newToken())
	req.Options.AddUriPath(location)
	return req
}

// buildDeregisterRequest builds the CoAP DELETE /rd/{location} request.
func (c *Client) buildDeregisterRequest(location string) *coap.Message {
	req := coap.NewMessage(coap.Confirmable, coap.DELETE, c.nextMessageID(), newToken())
	req.Options.AddUriPath(location)
	return req
}

// DriveRegistration starts the next outbound exchange for ssid's
// registration driver when one is due (attempt, Update, or Deregister),
// mirroring how the teacher's NMT driver is polled once per Node.Process
// and only emits a CAN frame when its own internal timer fires. peer is
// the exchange engine's routing key (the transport's notion of "this
// connection", e.g. a UDP remote address) and is independent of location,
// the /rd/{...} path the server assigned a prior successful Register; the
// caller is responsible for sending the returned Exchange's OutMsg and
// feeding the response back through c.Exchanges.Dispatch.
func (c *Client) DriveRegistration(now time.Time, ssid uint16, peer, endpointName string, lifetime time.Duration, lwm2mVersion, location string) (*exchange.Exchange, error) {
	drv, ok := c.Servers[ssid]
	if !ok {
		return nil, fmt.Errorf("lwm2m: no registration driver for ssid %d", ssid)
	}

	switch drv.State {
	case registration.StateDeregistering:
		req := c.buildDeregisterRequest(location)
		return c.Exchanges.Start(peer, req), nil
	case registration.StateUpdating:
		req := c.buildUpdateRequest(location)
		return c.Exchanges.Start(peer, req), nil
	default:
		if !drv.DueForAttempt(now) {
			return nil, nil
		}
		req, err := c.buildRegisterRequest(endpointName, lifetime, lwm2mVersion)
		if err != nil {
			return nil, err
		}
		return c.Exchanges.Start(peer, req), nil
	}
}
