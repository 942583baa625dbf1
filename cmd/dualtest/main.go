//go:build rp2040 || rp2350

// Command dualtest runs traffic between UART0 and UART1 on an RP2 board.
//
// Wiring required:
//
//	UART0 TX (GP0) -> UART1 RX (GP9)
//	UART1 TX (GP8) -> UART0 RX (GP1)
package main

import (
	"context"
	"crypto/sha1"
	"hash"
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-uartq/uartx"
)

func patternA(i int) byte { return byte(i*31 + 0x55) }
func patternB(i int) byte { return byte(i*17 + 0xA6) }

func drain(u *uartx.UART) {
	var tmp [32]byte
	for u.TryRead(tmp[:]) > 0 {
	}
}

// sendPattern queues n generated bytes, blocking on ring space.
func sendPattern(ctx context.Context, u *uartx.UART, gen func(int) byte, n int) error {
	var chunk [32]byte
	for i := 0; i < n; {
		k := 0
		for k < len(chunk) && i+k < n {
			chunk[k] = gen(i + k)
			k++
		}
		for off := 0; off < k; {
			m, err := u.SendSomeContext(ctx, chunk[off:k])
			if err != nil {
				return err
			}
			off += m
		}
		i += k
	}
	return nil
}

// recvStream hashes n received bytes.
func recvStream(ctx context.Context, u *uartx.UART, n int, h hash.Hash) error {
	var buf [32]byte
	for got := 0; got < n; {
		want := len(buf)
		if n-got < want {
			want = n - got
		}
		k, err := u.RecvSomeContext(ctx, buf[:want])
		if err != nil {
			return err
		}
		h.Write(buf[:k])
		got += k
	}
	return nil
}

func patternSum(gen func(int) byte, n int) []byte {
	h := sha1.New()
	for i := 0; i < n; i++ {
		h.Write([]byte{gen(i)})
	}
	return h.Sum(nil)
}

// transfer streams n bytes from src to dst and compares hashes.
func transfer(ctx context.Context, src, dst *uartx.UART, gen func(int) byte, n int) string {
	sent := make(chan error, 1)
	go func() { sent <- sendPattern(ctx, src, gen, n) }()

	h := sha1.New()
	if err := recvStream(ctx, dst, n, h); err != nil {
		return "receive: " + err.Error()
	}
	if err := <-sent; err != nil {
		return "send: " + err.Error()
	}
	if string(h.Sum(nil)) != string(patternSum(gen, n)) {
		return "hash mismatch"
	}
	return ""
}

func blink(led machine.Pin, times int, on time.Duration) {
	for i := 0; i < times; i++ {
		led.High()
		time.Sleep(on)
		led.Low()
		time.Sleep(on)
	}
}

func main() {
	time.Sleep(3 * time.Second)
	println("uartq cross-UART test starting (UART0<->UART1)")

	u0, u1 := uartx.UART0, uartx.UART1
	u0.Initialize(clock)
	u1.Initialize(clock)
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	pass, fail := 0, 0
	run := func(name string, f func() string) {
		println("")
		println("[Test]", name)
		drain(u0)
		drain(u1)
		if msg := f(); msg == "" {
			println("  PASS")
			pass++
		} else {
			println("  FAIL:", msg)
			fail++
		}
	}

	run("U0 -> U1 short", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return transfer(ctx, u0, u1, patternA, 16)
	})

	run("U1 -> U0 short", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return transfer(ctx, u1, u0, patternB, 16)
	})

	run("full duplex: 8KiB each way", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		res := make(chan string, 2)
		go func() { res <- transfer(ctx, u0, u1, patternA, 8*1024) }()
		go func() { res <- transfer(ctx, u1, u0, patternB, 8*1024) }()
		if e := <-res; e != "" {
			return e
		}
		return <-res
	})

	run("throughput: 32KiB U0 -> U1", func() string {
		n := 32 * 1024
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		start := time.Now()
		if msg := transfer(ctx, u0, u1, patternA, n); msg != "" {
			return msg
		}
		ms := int(time.Since(start) / time.Millisecond)
		if ms <= 0 {
			ms = 1
		}
		println("  speed =", n*8/ms, "kbps")
		return ""
	})

	for _, u := range []*uartx.UART{u0, u1} {
		st := u.Stats()
		println("  tx bytes =", st.TxBytes, "rx bytes =", st.RxBytes, "rx overflows =", st.RxOverflows)
	}

	println("")
	println("Summary")
	println("  passed =", pass)
	println("  failed =", fail)
	if fail == 0 {
		blink(machine.LED, 3, 120*time.Millisecond)
		return
	}
	for {
		blink(machine.LED, 1, 600*time.Millisecond)
		time.Sleep(800 * time.Millisecond)
	}
}
