package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/golwm2m/pkg/coap"
	"github.com/samsamfire/golwm2m/pkg/result"
)

func TestNonConfirmableFinishesImmediately(t *testing.T) {
	req := coap.NewMessage(coap.NonConfirmable, coap.GET, 1, []byte{0x01})
	ex := NewExchange("peer", req)

	now := time.Now()
	res, err := ex.Step(now) // MsgToSend -> WaitingSendConfirmation
	require.NoError(t, err)
	assert.Equal(t, result.Ready, res)

	res, err = ex.Step(now) // WaitingSendConfirmation -> Finished (non-confirmable)
	require.NoError(t, err)
	assert.Equal(t, result.Ready, res)
	assert.True(t, ex.Done())
}

func TestConfirmableRetransmitsUntilTimeout(t *testing.T) {
	req := coap.NewMessage(coap.Confirmable, coap.GET, 1, []byte{0x01})
	ex := NewExchange("peer", req)

	now := time.Now()
	_, err := ex.Step(now) // -> WaitingSendConfirmation
	require.NoError(t, err)
	_, err = ex.Step(now) // -> WaitingMsg
	require.NoError(t, err)
	assert.Equal(t, StateWaitingMsg, ex.State)

	for i := 0; i < MaxRetransmit; i++ {
		now = now.Add(AckTimeout * 20) // force past every backoff deadline
		res, err := ex.Step(now)       // retransmit -> WaitingSendConfirmation
		require.NoError(t, err)
		assert.Equal(t, result.Ready, res)
		_, err = ex.Step(now) // -> WaitingMsg again
		require.NoError(t, err)
	}

	now = now.Add(AckTimeout * 20)
	res, err := ex.Step(now)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, result.Errored, res)
	assert.True(t, ex.Done())
}

func TestAckedResponseFinishesExchange(t *testing.T) {
	req := coap.NewMessage(coap.Confirmable, coap.GET, 1, []byte{0x01})
	ex := NewExchange("peer", req)

	now := time.Now()
	ex.Step(now)
	ex.Step(now)

	resp := coap.NewMessage(coap.Acknowledgement, coap.Content, 1, []byte{0x01})
	resp.Payload = []byte("42")
	ex.Deliver(resp)

	res, err := ex.Step(now)
	require.NoError(t, err)
	assert.Equal(t, result.Ready, res)
	assert.True(t, ex.Done())
}

func TestSeparateResponseKeepsWaiting(t *testing.T) {
	req := coap.NewMessage(coap.Confirmable, coap.GET, 1, []byte{0x01})
	ex := NewExchange("peer", req)
	now := time.Now()
	ex.Step(now)
	ex.Step(now)

	emptyAck := coap.NewMessage(coap.Acknowledgement, coap.CodeEmpty, 1, nil)
	ex.Deliver(emptyAck)
	res, err := ex.Step(now)
	require.NoError(t, err)
	assert.Equal(t, result.WouldBlock, res)
	assert.False(t, ex.Done())

	resp := coap.NewMessage(coap.Confirmable, coap.Content, 2, []byte{0x01})
	ex.Deliver(resp)
	res, err = ex.Step(now)
	require.NoError(t, err)
	assert.Equal(t, result.Ready, res)
	assert.True(t, ex.Done())
	require.NotNil(t, ex.PendingAck)
	assert.Equal(t, coap.Acknowledgement, ex.PendingAck.Type)
	assert.Equal(t, coap.CodeEmpty, ex.PendingAck.Code)
	assert.Equal(t, resp.MessageID, ex.PendingAck.MessageID)
}

func TestResetAbortsExchange(t *testing.T) {
	req := coap.NewMessage(coap.Confirmable, coap.GET, 1, []byte{0x01})
	ex := NewExchange("peer", req)
	now := time.Now()
	ex.Step(now)
	ex.Step(now)

	rst := coap.NewMessage(coap.Reset, coap.CodeEmpty, 1, nil)
	ex.Deliver(rst)
	res, err := ex.Step(now)
	assert.ErrorIs(t, err, ErrReset)
	assert.Equal(t, result.Errored, res)
}

func TestBlock2DownloadContinuation(t *testing.T) {
	req := coap.NewMessage(coap.Confirmable, coap.GET, 1, []byte{0x01})
	ex := NewExchange("peer", req)
	blk := NewBlock2Download(0) // 16-byte blocks
	ex.BlockCtx = blk

	ex.OnResponse(func(resp *coap.Message) (bool, error) {
		more, err := blk.ApplyBlock2Response(resp)
		if err != nil {
			return false, err
		}
		if more {
			ex.OutMsg = blk.NextBlock2Request(ex.OutMsg)
			return false, nil
		}
		return true, nil
	})

	now := time.Now()
	ex.Step(now)
	ex.Step(now)

	first := coap.NewMessage(coap.Acknowledgement, coap.Content, 1, []byte{0x01})
	first.Options.SetBlock2(coap.Block{Num: 0, M: true, SZX: 0})
	first.Payload = []byte("0123456789abcdef")
	ex.Deliver(first)

	res, err := ex.Step(now)
	require.NoError(t, err)
	assert.Equal(t, result.InProgress, res)
	assert.Equal(t, StateMsgToSend, ex.State)

	ex.Step(now) // -> WaitingSendConfirmation
	ex.Step(now) // -> WaitingMsg

	last := coap.NewMessage(coap.Acknowledgement, coap.Content, 2, []byte{0x01})
	last.Options.SetBlock2(coap.Block{Num: 1, M: false, SZX: 0})
	last.Payload = []byte("final-chunk")
	ex.Deliver(last)

	res, err = ex.Step(now)
	require.NoError(t, err)
	assert.Equal(t, result.Ready, res)
	assert.True(t, ex.Done())
	assert.Equal(t, "0123456789abcdeffinal-chunk", string(blk.Body()))
}

func TestManagerRoutesResponseByPeerAndToken(t *testing.T) {
	mgr := NewManager()
	req := coap.NewMessage(coap.Confirmable, coap.GET, 1, []byte{0xAA})
	ex := mgr.Start("10.0.0.1:5683", req)

	now := time.Now()
	toSend, _, errs := mgr.Step(now)
	require.Empty(t, errs)
	require.Len(t, toSend, 1)
	assert.Same(t, ex, toSend[0])

	_, _, _ = mgr.Step(now) // advance to WaitingMsg

	ok := mgr.Dispatch("10.0.0.1:5683", coap.NewMessage(coap.Acknowledgement, coap.Content, 1, []byte{0xAA}))
	assert.True(t, ok)

	_, _, _ = mgr.Step(now)
	assert.Equal(t, 0, mgr.Len())
}

func TestManagerSurfacesAckForConfirmableSeparateResponse(t *testing.T) {
	mgr := NewManager()
	req := coap.NewMessage(coap.Confirmable, coap.GET, 1, []byte{0xAA})
	mgr.Start("10.0.0.1:5683", req)

	now := time.Now()
	_, _, _ = mgr.Step(now) // -> WaitingSendConfirmation
	_, _, _ = mgr.Step(now) // -> WaitingMsg

	mgr.Dispatch("10.0.0.1:5683", coap.NewMessage(coap.Acknowledgement, coap.CodeEmpty, 1, nil))
	_, _, _ = mgr.Step(now) // consume the empty ack, keep waiting

	resp := coap.NewMessage(coap.Confirmable, coap.Content, 2, []byte{0xAA})
	mgr.Dispatch("10.0.0.1:5683", resp)

	_, acks, errs := mgr.Step(now)
	require.Empty(t, errs)
	require.Len(t, acks, 1)
	assert.Equal(t, coap.Acknowledgement, acks[0].Type)
	assert.Equal(t, coap.CodeEmpty, acks[0].Code)
	assert.Equal(t, resp.MessageID, acks[0].MessageID)
	assert.Equal(t, 0, mgr.Len())
}

func TestManagerDispatchUnknownExchangeReturnsFalse(t *testing.T) {
	mgr := NewManager()
	ok := mgr.Dispatch("peer", coap.NewMessage(coap.Acknowledgement, coap.Content, 99, []byte{0x01}))
	assert.False(t, ok)
}
