// uartx/uartx_blocking.go

package uartx

import (
	"context"
	"time"
)

// WaitReadableContext blocks until a byte is pending, ctx is done or the UART
// is closed.
func (u *UART) WaitReadableContext(ctx context.Context) error {
	for {
		if u.Buffered() > 0 {
			return nil
		}
		select {
		case <-u.notify:
			// re-check; the notification is coalesced
		case <-u.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RecvByteContext blocks for a single byte.
func (u *UART) RecvByteContext(ctx context.Context) (byte, error) {
	for {
		if b, ok := u.Receive(); ok {
			return b, nil
		}
		if err := u.WaitReadableContext(ctx); err != nil {
			return 0, err
		}
	}
}

// RecvSomeContext blocks until at least one byte is pending, then reads up to
// len(p).
func (u *UART) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n := u.TryRead(p); n > 0 {
			return n, nil
		}
		if err := u.WaitReadableContext(ctx); err != nil {
			return 0, err
		}
	}
}

// RecvFullContext blocks until len(p) bytes have been read.
func (u *UART) RecvFullContext(ctx context.Context, p []byte) (int, error) {
	read := 0
	for read < len(p) {
		n, err := u.RecvSomeContext(ctx, p[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// WaitWritableContext blocks until the transmit ring has space.
func (u *UART) WaitWritableContext(ctx context.Context) error {
	for {
		if u.TxFree() > 0 {
			return nil
		}
		select {
		case <-u.txNotify:
		case <-u.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SendSomeContext queues up to len(p) bytes, blocking until at least one is
// accepted.
func (u *UART) SendSomeContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n := u.TryWrite(p); n > 0 {
			return n, nil
		}
		if err := u.WaitWritableContext(ctx); err != nil {
			return 0, err
		}
	}
}

// Flush blocks until the transmit ring is empty, the interrupt has disarmed
// itself and the hardware transmit register is empty. The register empty flag
// raises no interrupt of its own once TX is disarmed, so Flush also polls at a
// short interval.
func (u *UART) Flush(ctx context.Context) error {
	tick := u.drainTick()
	for {
		if u.tx.Empty() && u.TxState() == TxIdle && u.Bus.TransmitRegisterEmpty() {
			return nil
		}
		select {
		case <-u.txNotify:
		case <-time.After(tick):
		case <-u.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainTick is about two character times, with a lower bound.
func (u *UART) drainTick() time.Duration {
	if u.clock == nil {
		return 50 * time.Microsecond
	}
	t := 2 * CharTime(u.clock)
	if t < 20*time.Microsecond {
		t = 20 * time.Microsecond
	}
	return t
}

// Close unblocks every waiter with ErrClosed and makes later Write calls fail.
// The rings and interrupt enables are left as they are.
func (u *UART) Close() error {
	u.once.Do(func() { close(u.closed) })
	return nil
}
