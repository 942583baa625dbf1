// uartx/uartx_extended.go

package uartx

import "io"

var (
	_ io.Reader     = (*UART)(nil)
	_ io.Writer     = (*UART)(nil)
	_ io.ByteReader = (*UART)(nil)
	_ io.ByteWriter = (*UART)(nil)
)

// Readable returns a coalesced notification for RX readiness. The receive
// handler sends on it after storing a byte; callers must re-check after waking.
func (u *UART) Readable() <-chan struct{} { return u.notify }

// Writable returns a coalesced notification for TX progress. The transmit
// handler sends on it after each pass; callers must re-check after waking.
func (u *UART) Writable() <-chan struct{} { return u.txNotify }

// ReadByte returns the oldest received byte or ErrBufferEmpty.
func (u *UART) ReadByte() (byte, error) {
	if b, ok := u.Receive(); ok {
		return b, nil
	}
	return 0, ErrBufferEmpty
}

// TryRead copies up to len(p) pending bytes and never blocks. 0 means
// "no data now".
func (u *UART) TryRead(p []byte) int {
	n := 0
	for n < len(p) {
		b, ok := u.Receive()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n
}

// Read implements io.Reader with machine.UART semantics: it does not block and
// returns 0, nil when nothing is pending.
func (u *UART) Read(p []byte) (int, error) {
	return u.TryRead(p), nil
}

// TryWrite queues as much of p as fits and never blocks. 0 means "no space now".
func (u *UART) TryWrite(p []byte) int {
	n := 0
	for n < len(p) && u.Transmit(p[n]) {
		n++
	}
	return n
}

// Write implements io.Writer. It blocks until every byte is queued, not until
// it is on the wire; use Flush for that. With TX polled, Service must be
// running on another goroutine or Write can wait forever on a full ring.
func (u *UART) Write(p []byte) (int, error) {
	select {
	case <-u.closed:
		return 0, ErrClosed
	default:
	}
	sent := 0
	for sent < len(p) {
		if u.TxFree() > 0 {
			sent += u.TryWrite(p[sent:])
			continue
		}
		select {
		case <-u.txNotify:
		case <-u.closed:
			return sent, ErrClosed
		}
	}
	return sent, nil
}

// WriteByte queues a single byte, blocking like Write.
func (u *UART) WriteByte(c byte) error {
	_, err := u.Write([]byte{c})
	return err
}

// Writev writes the buffers in sequence with the same blocking behaviour as
// Write and returns the total accepted up to the first error.
func (u *UART) Writev(bufs ...[]byte) (int, error) {
	sent := 0
	for _, p := range bufs {
		n, err := u.Write(p)
		sent += n
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}
