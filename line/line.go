// Package line opens the remote end of a simulated UART wire.
package line

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/jangala-dev/tinygo-uartq/line/mqtt"
	"github.com/jangala-dev/tinygo-uartq/line/websocket"
)

// Open dials a line by URL scheme:
//
//	mqtt://[user:pass@]host:port/prefix?name=uart0&side=peer
//	ws://host:port/path
//	loopback:
func Open(ctx context.Context, rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}
	switch u.Scheme {
	case "mqtt", "mqtts", "tcp", "ssl":
		c, err := mqtt.Dial(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("line: mqtt %s: %w", u.Host, err)
		}
		return c, nil
	case "ws", "wss":
		c, err := websocket.Dial(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("line: websocket %s: %w", u.Host, err)
		}
		return c, nil
	case "loopback":
		return Loopback(), nil
	}
	return nil, fmt.Errorf("line: unsupported scheme %q", u.Scheme)
}

// Loopback returns a line on which everything written is read back. Read
// blocks until data is available and returns io.EOF once closed and drained.
func Loopback() io.ReadWriteCloser {
	l := &loopback{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

type loopback struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func (l *loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.buf.Len() == 0 && !l.closed {
		l.cond.Wait()
	}
	if l.buf.Len() == 0 {
		return 0, io.EOF
	}
	return l.buf.Read(p)
}

func (l *loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, io.ErrClosedPipe
	}
	n, _ := l.buf.Write(p)
	l.cond.Broadcast()
	return n, nil
}

func (l *loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
	return nil
}
