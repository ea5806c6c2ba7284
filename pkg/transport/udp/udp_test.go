package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lwm2m "github.com/samsamfire/golwm2m"
)

func startEchoServer(t *testing.T) (host string, port uint16) {
	t.Helper()
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := pc.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_, _ = pc.WriteToUDP(buf[:n], addr)
		}
	}()

	addr := pc.LocalAddr().(*net.UDPAddr)
	return "127.0.0.1", uint16(addr.Port)
}

func TestConnectSendRecvRoundTrip(t *testing.T) {
	host, port := startEchoServer(t)

	c := New()
	res, err := c.Connect(host, port)
	require.NoError(t, err)
	require.Equal(t, lwm2m.NetOK, res)
	defer c.Close()

	res, n, err := c.Send([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, lwm2m.NetOK, res)
	require.Equal(t, 5, n)

	buf := make([]byte, 64)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		res, n, err = c.Recv(buf)
		require.NoError(t, err)
		if res == lwm2m.NetOK {
			break
		}
		assert.Equal(t, lwm2m.NetAgain, res)
	}
	require.Equal(t, lwm2m.NetOK, res)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestRecvWithNoDataReturnsNetAgain(t *testing.T) {
	host, port := startEchoServer(t)
	c := New()
	_, err := c.Connect(host, port)
	require.NoError(t, err)
	defer c.Close()

	buf := make([]byte, 64)
	res, _, err := c.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, lwm2m.NetAgain, res)
}

func TestSendOversizeReturnsMsgTooLarge(t *testing.T) {
	host, port := startEchoServer(t)
	c := New()
	_, err := c.Connect(host, port)
	require.NoError(t, err)
	defer c.Close()

	res, _, err := c.Send(make([]byte, c.InnerMTU()+1))
	require.NoError(t, err)
	assert.Equal(t, lwm2m.NetMsgTooLarge, res)
}

func TestSendOnUnconnectedSocketErrors(t *testing.T) {
	c := New()
	res, _, err := c.Send([]byte("x"))
	assert.Error(t, err)
	assert.Equal(t, lwm2m.NetError, res)
}

func TestCloseOnUnconnectedSocketIsNoop(t *testing.T) {
	c := New()
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Shutdown())
	assert.NoError(t, c.Cleanup())
}
