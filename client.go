package lwm2m

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/golwm2m/pkg/cache"
	"github.com/samsamfire/golwm2m/pkg/coap"
	"github.com/samsamfire/golwm2m/pkg/content"
	"github.com/samsamfire/golwm2m/pkg/dm"
	"github.com/samsamfire/golwm2m/pkg/exchange"
	"github.com/samsamfire/golwm2m/pkg/observe"
	"github.com/samsamfire/golwm2m/pkg/registration"
	"github.com/samsamfire/golwm2m/pkg/sendqueue"
	"github.com/samsamfire/golwm2m/pkg/statemachine"
)

// Client is the top-level LwM2M 1.1/1.2 engine, wiring every sub-package
// into the single cooperative Step loop described in spec §5. It plays
// the role the teacher stack's canopen.Node plays for one CANopen node:
// a struct owning every per-node driver (NMT, SDO, PDO, EMCY there;
// statemachine, registration, exchange, observe here), with exactly one
// entry point the host drives.
type Client struct {
	Registry  *dm.Registry
	Cache     *cache.Cache
	Exchanges *exchange.Manager
	Observe   *observe.Scheduler
	Machine   *statemachine.Machine

	Servers    map[uint16]*registration.Driver
	SendQ      map[uint16]*sendqueue.Queue
	Attrs      *AttributeStore
	ActiveSSID uint16

	msgIDCounter uint16
}

// NewClient assembles a Client around an already-populated Registry. The
// caller is responsible for registering Security/Server/Device/... object
// Handlers on reg before the first HandleRequest or Step call.
func NewClient(reg *dm.Registry) *Client {
	return &Client{
		Registry:  reg,
		Cache:     cache.New(64, nil),
		Exchanges: exchange.NewManager(),
		Observe:   observe.NewScheduler(),
		Machine:   statemachine.New(),
		Servers:   make(map[uint16]*registration.Driver),
		SendQ:     make(map[uint16]*sendqueue.Queue),
		Attrs:     NewAttributeStore(),
	}
}

// nextMessageID hands out CoAP Message-IDs for client-initiated requests,
// from one monotonically increasing counter shared by all peers, the discipline the
// teacher stack uses for CAN-side transfer sequence numbers.
func (c *Client) nextMessageID() uint16 {
	c.msgIDCounter++
	return c.msgIDCounter
}

// HandleRequest answers one inbound CoAP request from peer, performing
// cache de-duplication, the busy/5.03 rule, content negotiation, and
// dispatch into the Registry (spec §4.1, §4.5, §4.8). now is used only
// to record a new observation's initial value (the response cache keeps
// its own clock); the exchange engine that owns retransmission of
// the *response* lives one layer below this, in the transport loop.
func (c *Client) HandleRequest(now time.Time, peer string, req *coap.Message) *coap.Message {
	key := cache.Key{Peer: peer, MessageID: req.MessageID}
	if cached, ok := c.Cache.Get(key); ok {
		resp := &coap.Message{}
		if err := decodeCachedResponse(cached, resp); err == nil {
			log.Debugf("[CLIENT][RX][%s] replaying cached response mid=%d", peer, req.MessageID)
			return resp
		}
	}

	if c.Machine.Busy() {
		resp := c.errorResponse(req, coap.ServiceUnavailable)
		c.Cache.Put(key, encodeCachedResponse(resp))
		return resp
	}

	resp := c.dispatch(now, peer, req)
	c.Cache.Put(key, encodeCachedResponse(resp))
	return resp
}

func (c *Client) dispatch(now time.Time, peer string, req *coap.Message) *coap.Message {
	if _, bad := req.Options.UnknownCritical(); bad {
		return c.errorResponse(req, coap.BadOption)
	}

	segs := req.Options.UriPath()
	path, err := dm.ParsePath(segs)
	if err != nil {
		return c.errorResponse(req, coap.BadRequest)
	}

	ctx := &dm.OpContext{SSID: c.ActiveSSID}

	switch req.Code {
	case coap.GET:
		if _, isObserve := req.Options.Observe(); isObserve {
			return c.handleObserveStart(now, peer, req, path, ctx)
		}
		return c.handleRead(req, path, ctx)
	case coap.PUT:
		return c.handleWrite(req, path, ctx, true)
	case coap.POST:
		return c.handlePost(req, path, ctx)
	case coap.DELETE:
		return c.handleDelete(req, path)
	case coap.FETCH:
		return c.handleRead(req, path, ctx)
	default:
		return c.errorResponse(req, coap.MethodNotAllowed)
	}
}

func (c *Client) handleRead(req *coap.Message, path dm.Path, ctx *dm.OpContext) *coap.Message {
	if len(req.Payload) == 0 && req.Code == coap.GET {
		if accept, ok := req.Options.Accept(); ok && content.Format(accept) == content.FormatLinkFormat {
			return c.handleDiscover(req, path)
		}
	}
	leaves, err := c.Registry.Read(ctx, path)
	if err != nil {
		return c.errorResponse(req, dmErrToCode(err))
	}

	format := content.FormatSenMLCBOR
	if accept, ok := req.Options.Accept(); ok {
		format = content.Format(accept)
	}
	codec, err := content.Lookup(format)
	if err != nil {
		return c.errorResponse(req, coap.NotAcceptable)
	}
	body, err := codec.Encode(path, leaves)
	if err != nil {
		return c.errorResponse(req, coap.InternalServerError)
	}

	resp := ackOrConfirmable(req, coap.Content)
	resp.Options.SetContentFormat(uint16(format))
	resp.Payload = body
	return resp
}

func (c *Client) handleDiscover(req *coap.Message, path dm.Path) *coap.Message {
	listing, err := c.Registry.Discover(path)
	if err != nil {
		return c.errorResponse(req, dmErrToCode(err))
	}
	resp := ackOrConfirmable(req, coap.Content)
	resp.Options.SetContentFormat(uint16(content.FormatLinkFormat))
	resp.Payload = []byte(listing)
	return resp
}

func (c *Client) handleWrite(req *coap.Message, path dm.Path, ctx *dm.OpContext, replace bool) *coap.Message {
	format, ok := req.Options.ContentFormat()
	if !ok {
		format = uint16(content.FormatSenMLCBOR)
	}
	codec, err := content.Lookup(content.Format(format))
	if err != nil {
		return c.errorResponse(req, coap.UnsupportedContentFormat)
	}
	leaves, err := codec.Decode(path, req.Payload)
	if err != nil {
		return c.errorResponse(req, coap.BadRequest)
	}
	if err := c.Registry.Write(ctx, leaves, replace); err != nil {
		return c.errorResponse(req, dmErrToCode(err))
	}
	return ackOrConfirmable(req, coap.Changed)
}

// handlePost dispatches POST to Create (an Object path with no IID
// segment), Execute (a Resource path), or, for any other path, a
// partial-update Write, matching LwM2M's overload of a single CoAP
// method across several DM operations (spec §4.5).
func (c *Client) handlePost(req *coap.Message, path dm.Path, ctx *dm.OpContext) *coap.Message {
	switch path.Len() {
	case 1:
		format, ok := req.Options.ContentFormat()
		if !ok {
			format = uint16(content.FormatSenMLCBOR)
		}
		codec, err := content.Lookup(content.Format(format))
		if err != nil {
			return c.errorResponse(req, coap.UnsupportedContentFormat)
		}
		leaves, err := codec.Decode(path, req.Payload)
		if err != nil || len(leaves) == 0 {
			return c.errorResponse(req, coap.BadRequest)
		}
		iid := leaves[0].Path.InstanceID()
		if err := c.Registry.Create(ctx, path.ObjectID(), iid, leaves); err != nil {
			return c.errorResponse(req, dmErrToCode(err))
		}
		resp := ackOrConfirmable(req, coap.Created)
		resp.Options.AddUriPath(path.String())
		return resp
	case 3:
		if err := c.Registry.Execute(ctx, path, req.Payload); err != nil {
			return c.errorResponse(req, dmErrToCode(err))
		}
		return ackOrConfirmable(req, coap.Changed)
	default:
		return c.handleWrite(req, path, ctx, false)
	}
}

func (c *Client) handleDelete(req *coap.Message, path dm.Path) *coap.Message {
	if path.Len() != 2 {
		return c.errorResponse(req, coap.BadRequest)
	}
	ctx := &dm.OpContext{SSID: c.ActiveSSID}
	if err := c.Registry.Delete(ctx, path.ObjectID(), path.InstanceID()); err != nil {
		return c.errorResponse(req, dmErrToCode(err))
	}
	return ackOrConfirmable(req, coap.Deleted)
}

// handleObserveStart registers an Observe subscription and returns the
// initial notification (Observe option = 0) the server expects as the
// GET response (RFC 7641 §3.1, spec §4.7).
func (c *Client) handleObserveStart(now time.Time, peer string, req *coap.Message, path dm.Path, ctx *dm.OpContext) *coap.Message {
	leaves, err := c.Registry.Read(ctx, path)
	if err != nil {
		return c.errorResponse(req, dmErrToCode(err))
	}
	attrs := c.Attrs.Resolve(path)
	obs := observe.NewObservation(path, peer, req.Token, c.ActiveSSID, attrs)
	if len(leaves) == 1 {
		obs.Record(now, leaves[0].Value)
	}
	c.Observe.Start(obs)

	format := content.FormatSenMLCBOR
	if accept, ok := req.Options.Accept(); ok {
		format = content.Format(accept)
	}
	codec, err := content.Lookup(format)
	if err != nil {
		return c.errorResponse(req, coap.NotAcceptable)
	}
	body, err := codec.Encode(path, leaves)
	if err != nil {
		return c.errorResponse(req, coap.InternalServerError)
	}

	resp := ackOrConfirmable(req, coap.Content)
	resp.Options.SetObserve(obs.SeqNum)
	resp.Options.SetContentFormat(uint16(format))
	resp.Payload = body
	return resp
}

// DueNotifications re-reads every active observation and returns the ones
// that should fire a notification now (spec §4.7), recording them as sent
// so the next DueNotifications call measures from this instant. The caller is
// responsible for building and sending each one as a new exchange.
func (c *Client) DueNotifications(now time.Time) []DueNotification {
	var due []DueNotification
	for _, obs := range c.Observe.All() {
		ctx := &dm.OpContext{OID: obs.Path.ObjectID(), SSID: obs.SSID}
		leaves, err := c.Registry.Read(ctx, obs.Path)
		if err != nil || len(leaves) != 1 {
			continue
		}
		if !obs.Due(now, leaves[0].Value) {
			continue
		}
		obs.Record(now, leaves[0].Value)
		due = append(due, DueNotification{Observation: obs, Value: leaves[0].Value})
	}
	return due
}

// DueNotification pairs a due Observation with the value it should carry.
type DueNotification struct {
	Observation *observe.Observation
	Value       dm.Value
}

// Step sweeps the response cache, advances the exchange engine, marks the
// state machine busy while any exchange is in flight, and starts an
// Update for every server whose Update is due, by one tick (spec §5). It
// does not inspect the send queues. It performs no I/O itself, returning the set of exchanges with an OutMsg
// ready for the wire and any empty ACKs owed to peers for Confirmable
// separate responses (spec §4.3), so the transport loop can send both.
func (c *Client) Step(now time.Time) ([]*exchange.Exchange, []*coap.Message, []error) {
	c.Cache.Sweep()
	toSend, acks, errs := c.Exchanges.Step(now)
	c.Machine.SetBusy(c.Exchanges.Len() > 0)

	for ssid, drv := range c.Servers {
		if drv.DueForUpdate(now) {
			log.Debugf("[CLIENT] registration update due for ssid=%d", ssid)
			drv.StartUpdate()
		}
	}
	return toSend, acks, errs
}

// errorResponse builds a response carrying code for req, preserving its
// Type/Token the way ackOrConfirmable does for success responses.
func (c *Client) errorResponse(req *coap.Message, code coap.Code) *coap.Message {
	return ackOrConfirmable(req, code)
}

// ackOrConfirmable builds the response message for req: a Confirmable
// request always gets an Acknowledgement carrying the result piggybacked
// (spec §4.1); a Non-confirmable request gets a Non-confirmable response.
func ackOrConfirmable(req *coap.Message, code coap.Code) *coap.Message {
	typ := coap.Acknowledgement
	if req.Type == coap.NonConfirmable {
		typ = coap.NonConfirmable
	}
	return coap.NewMessage(typ, code, req.MessageID, req.Token)
}

func dmErrToCode(err error) coap.Code {
	switch err {
	case dm.ErrNotFound:
		return coap.NotFound
	case dm.ErrMethodNotAllowed:
		return coap.MethodNotAllowed
	case dm.ErrBadRequest:
		return coap.BadRequest
	case dm.ErrTransactionFailed:
		return coap.BadRequest
	default:
		return coap.InternalServerError
	}
}
