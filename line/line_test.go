package line

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jangala-dev/tinygo-uartq/line/websocket"
	"github.com/jangala-dev/tinygo-uartq/sim"
	"github.com/jangala-dev/tinygo-uartq/uartx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"))
}

func TestOpen_Loopback(t *testing.T) {
	l, err := Open(context.Background(), "loopback:")
	require.NoError(t, err)

	_, err = l.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := l.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	done := make(chan error, 1)
	go func() {
		_, err := l.Read(buf)
		done <- err
	}()
	require.NoError(t, l.Close())
	assert.Equal(t, io.EOF, <-done)

	_, err = l.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "serial:///dev/ttyUSB0")
	assert.ErrorContains(t, err, "unsupported scheme")
}

// TestOpen_WebsocketCarriesSimulatedUART sends bytes from a simulated UART to
// a websocket peer that echoes them back into the receive side.
func TestOpen_WebsocketCarriesSimulatedUART(t *testing.T) {
	srv := httptest.NewServer(websocket.Handler(func(rw io.ReadWriteCloser) {
		io.Copy(rw, rw)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l, err := Open(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	p := sim.New(l)
	u := uartx.NewUART(p, make([]byte, uartx.TxBufferSize), make([]byte, 32))
	p.Attach(u)
	u.Initialize(uartx.Clock16MHz{})

	runCtx, stop := context.WithCancel(ctx)
	ran := make(chan error, 1)
	pumped := make(chan error, 1)
	go func() { ran <- p.Run(runCtx, 10) }()
	go func() { pumped <- p.Pump(runCtx, l) }()

	msg := []byte("over the wire")
	_, err = u.Write(msg)
	require.NoError(t, err)

	got := make([]byte, len(msg))
	_, err = u.RecvFullContext(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	stop()
	<-ran
	require.NoError(t, l.Close())
	<-pumped
}
