//go:build rp2040 || rp2350 || (atmega328p && serial.none)

// Command selftest exercises the buffered UART on a board with TX wired to RX.
// Results are printed with println; the LED blinks three times on success and
// keeps blinking slowly on failure.
//
//	tinygo flash -target=pico ./cmd/selftest
//	tinygo flash -target=arduino -serial=none ./cmd/selftest
package main

import (
	"context"
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-uartq/uartx"
)

func drain(u *uartx.UART) {
	var tmp [16]byte
	for u.TryRead(tmp[:]) > 0 {
	}
}

// settle waits a few character times so in-flight bytes land.
func settle() {
	time.Sleep(20 * uartx.CharTime(clock))
}

// prng is the stream generator shared by sender and checker.
type prng uint32

func (x *prng) next() byte {
	*x = 1664525*(*x) + 1013904223
	return byte(*x >> 24)
}

// stream sends n generated bytes and checks them on the way back. Sending and
// receiving are interleaved in one loop, so no goroutine is needed.
func stream(u *uartx.UART, n int, timeout time.Duration) string {
	tx, rx := prng(0x12345678), prng(0x12345678)
	sent, got := 0, 0
	var pend [16]byte
	pn, pi := 0, 0
	var buf [16]byte
	deadline := time.Now().Add(timeout)
	for got < n {
		if time.Now().After(deadline) {
			return "timeout at byte " + itoa(got)
		}
		if pi == pn && sent < n {
			pn, pi = 0, 0
			for pn < len(pend) && sent+pn < n {
				pend[pn] = tx.next()
				pn++
			}
			sent += pn
		}
		if pi < pn {
			pi += u.TryWrite(pend[pi:pn])
		}
		k := u.TryRead(buf[:])
		for i := 0; i < k; i++ {
			if buf[i] != rx.next() {
				return "mismatch at byte " + itoa(got+i)
			}
		}
		got += k
	}
	return ""
}

func ledBlink(times int, on time.Duration) {
	for i := 0; i < times; i++ {
		machine.LED.High()
		time.Sleep(on)
		machine.LED.Low()
		time.Sleep(on)
	}
}

func main() {
	// Give the monitor time to attach.
	time.Sleep(3 * time.Second)
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	println("uartq self-test starting")
	u.Initialize(clock)
	println("  clock =", clock.Hz(), "Hz, baud =", clock.Baud())

	pass, fail := 0, 0
	run := func(name string, f func() string) {
		println("")
		println("[Test]", name)
		drain(u)
		if msg := f(); msg == "" {
			println("  PASS")
			pass++
		} else {
			println("  FAIL:", msg)
			fail++
		}
	}

	run("round trip 0x41", func() string {
		if !u.Transmit(0x41) {
			return "transmit rejected"
		}
		settle()
		b, ok := u.Receive()
		if !ok {
			return "nothing received"
		}
		if b != 0x41 {
			return "wrong byte " + itoa(int(b))
		}
		if u.TxState() != uartx.TxIdle {
			return "transmit interrupt still armed"
		}
		return ""
	})

	run("polled transmit: queue holds exactly size-1", func() string {
		if err := u.Configure(uartx.Config{Clock: clock, TxPolled: true}); err != nil {
			return err.Error()
		}
		defer u.Initialize(clock)

		accepted := 0
		for u.Transmit(byte(accepted)) {
			accepted++
		}
		if accepted != uartx.TxBufferSize-1 {
			return "accepted " + itoa(accepted)
		}
		got := 0
		deadline := time.Now().Add(time.Second)
		for got < accepted && time.Now().Before(deadline) {
			u.Service()
			if b, ok := u.Receive(); ok {
				if b != byte(got) {
					return "out of order at " + itoa(got)
				}
				got++
			}
		}
		if got != accepted {
			return "received " + itoa(got)
		}
		return ""
	})

	run("receive overflow drops the newest bytes", func() string {
		u.ResetStats()
		burst := []byte("0123456789ABCDEFGHIJ")
		for _, c := range burst {
			for !u.Transmit(c) {
			}
		}
		time.Sleep(time.Duration(len(burst)+10) * uartx.CharTime(clock))

		keep := uartx.RxBufferSize - 1
		if u.Buffered() != keep {
			return "buffered " + itoa(u.Buffered())
		}
		var got [uartx.RxBufferSize]byte
		n := u.TryRead(got[:])
		if string(got[:n]) != string(burst[:keep]) {
			return "kept the wrong bytes"
		}
		if st := u.Stats(); int(st.RxOverflows) != len(burst)-keep {
			return "overflows " + itoa(int(st.RxOverflows))
		}
		return ""
	})

	run("stream integrity", func() string {
		return stream(u, streamBytes, 10*time.Second)
	})

	if blockingHelpers {
		run("blocking: Write, RecvFullContext, Flush", func() string {
			msg := []byte("hello, uartq\r\n")
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			done := make(chan error, 1)
			got := make([]byte, len(msg))
			go func() {
				_, err := u.RecvFullContext(ctx, got)
				done <- err
			}()
			if _, err := u.Write(msg); err != nil {
				return "write failed"
			}
			if err := u.Flush(ctx); err != nil {
				return "flush timeout"
			}
			if err := <-done; err != nil {
				return "read timeout"
			}
			if string(got) != string(msg) {
				return "mismatch"
			}
			return ""
		})
	}

	st := u.Stats()
	println("")
	println("Stats")
	println("  tx bytes =", st.TxBytes, "overflows =", st.TxOverflows, "disarms =", st.TxDisarms)
	println("  rx bytes =", st.RxBytes, "overflows =", st.RxOverflows)
	println("")
	println("Summary")
	println("  passed =", pass)
	println("  failed =", fail)
	if fail == 0 {
		ledBlink(3, 120*time.Millisecond)
		return
	}
	for {
		ledBlink(1, 600*time.Millisecond)
		time.Sleep(800 * time.Millisecond)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
