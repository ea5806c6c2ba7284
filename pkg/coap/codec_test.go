package coap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := NewMessage(Confirmable, GET, 0x1234, []byte{0xAA, 0xBB})
	m.Options.AddUriPath("/3/0/1")
	m.Options.SetContentFormat(11543)
	m.Options.SetObserve(0)
	m.Payload = []byte("hello")

	buf := make([]byte, 256)
	wire, err := Encode(m, buf)
	require.NoError(t, err)

	decoded, err := Decode(wire)
	require.NoError(t, err)

	assert.Equal(t, m.Type, decoded.Type)
	assert.Equal(t, m.Code, decoded.Code)
	assert.Equal(t, m.MessageID, decoded.MessageID)
	assert.Equal(t, m.Token, decoded.Token)
	assert.Equal(t, m.Payload, decoded.Payload)
	assert.Equal(t, []string{"3", "0", "1"}, decoded.Options.UriPath())
	cf, ok := decoded.Options.ContentFormat()
	assert.True(t, ok)
	assert.EqualValues(t, 11543, cf)
}

func TestDecodeShortHeader(t *testing.T) {
	_, err := Decode([]byte{0x40, 0x01})
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestDecodePayloadMarkerNoPayload(t *testing.T) {
	buf := []byte{0x40, 0x01, 0x00, 0x01, payloadMarker}
	_, err := Decode(buf)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, BadOption, cerr.ResponseCode)
}

func TestDecodeOptionOverrun(t *testing.T) {
	// Option (delta 5) claims an 11-byte value but only 1 byte remains.
	buf := []byte{0x40, 0x01, 0x00, 0x01, 0x5B, 0xFF}
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestBlockEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Block{
		{Num: 0, M: false, SZX: 0},
		{Num: 1, M: true, SZX: 4},
		{Num: (1 << 20) - 1, M: true, SZX: 6},
	}
	for _, b := range cases {
		v := EncodeBlock(b)
		got, err := DecodeBlock(v)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
}

func TestSZXForSize(t *testing.T) {
	assert.EqualValues(t, 0, SZXForSize(16))
	assert.EqualValues(t, 4, SZXForSize(256))
	assert.EqualValues(t, 6, SZXForSize(4096))
	assert.EqualValues(t, 0, SZXForSize(1))
}

func TestOptionsSortedOnEncode(t *testing.T) {
	m := NewMessage(Confirmable, GET, 1, nil)
	m.Options = OptionSet{
		OptionUint(OptionContentFormat, 0),
		OptionString(OptionUriPath, "a"),
	}
	buf := make([]byte, 64)
	wire, err := Encode(m, buf)
	require.NoError(t, err)
	decoded, err := Decode(wire)
	require.NoError(t, err)
	require.Len(t, decoded.Options, 2)
	assert.Equal(t, OptionUriPath, decoded.Options[0].ID)
	assert.Equal(t, OptionContentFormat, decoded.Options[1].ID)
}

func TestUnknownCriticalOption(t *testing.T) {
	m := NewMessage(Confirmable, GET, 1, nil)
	m.Options = OptionSet{{ID: 9, Value: []byte{1}}}
	id, found := m.Options.UnknownCritical()
	assert.True(t, found)
	assert.EqualValues(t, 9, id)
}
