package lwm2m

import "github.com/samsamfire/golwm2m/pkg/coap"

// encodeCachedResponse/decodeCachedResponse let the de-duplication cache
// (spec §4.2) store whole wire-format CoAP messages instead of a
// bespoke struct, so replaying a cached response goes through exactly
// the same encode/decode path as a fresh one.
const cacheBufSize = 1280 // matches the default CoAP-over-UDP MTU budget

func encodeCachedResponse(m *coap.Message) []byte {
	buf := make([]byte, cacheBufSize)
	out, err := coap.Encode(m, buf)
	if err != nil {
		return nil
	}
	return append([]byte(nil), out...)
}

func decodeCachedResponse(raw []byte, out *coap.Message) error {
	m, err := coap.Decode(raw)
	if err != nil {
		return err
	}
	*out = *m
	return nil
}
