package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/jangala-dev/tinygo-uartq/line"
	"github.com/jangala-dev/tinygo-uartq/sim"
	"github.com/jangala-dev/tinygo-uartq/uartx"
)

var errRunning = errors.New("simulator running, stop it first")

// Board is a simulated peripheral with a driver bound to it.
type Board struct {
	Periph *sim.Peripheral
	UART   *uartx.UART

	wire *wire

	mu      sync.Mutex
	cancel  context.CancelFunc
	running chan struct{}
	line    io.ReadWriteCloser
	pumping chan struct{}
}

// wire captures shifted bytes, or forwards them to a remote line when one is
// attached.
type wire struct {
	mu       sync.Mutex
	captured []byte
	line     io.Writer
}

func (w *wire) Write(p []byte) (int, error) {
	w.mu.Lock()
	l := w.line
	if l == nil {
		w.captured = append(w.captured, p...)
	}
	w.mu.Unlock()
	if l != nil {
		return l.Write(p)
	}
	return len(p), nil
}

func (w *wire) setLine(l io.Writer) {
	w.mu.Lock()
	w.line = l
	w.mu.Unlock()
}

func (w *wire) drain() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.captured
	w.captured = nil
	return out
}

// NewBoard creates a Board with the given ring storage sizes.
func NewBoard(txSize, rxSize int) *Board {
	b := &Board{wire: &wire{}}
	b.Periph = sim.New(b.wire)
	b.UART = uartx.NewUART(b.Periph, make([]byte, txSize), make([]byte, rxSize))
	b.Periph.Attach(b.UART)
	return b
}

// Init (re)configures the driver. The clock must not be running.
func (b *Board) Init(cfg uartx.Config) error {
	if b.Running() {
		return errRunning
	}
	return b.UART.Configure(cfg)
}

// Step advances n character times and returns the bytes shifted onto the
// local wire.
func (b *Board) Step(n int) ([]byte, error) {
	if b.Running() {
		return nil, errRunning
	}
	for i := 0; i < n; i++ {
		b.Periph.Step()
	}
	return b.wire.drain(), nil
}

// Wire returns and clears the captured wire output.
func (b *Board) Wire() []byte { return b.wire.drain() }

// Running reports whether the free-running clock is active.
func (b *Board) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

// Start clocks the peripheral in the background.
func (b *Board) Start(speedup int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return errRunning
	}
	if b.UART.Clock() == nil {
		return uartx.ErrNoClock
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	b.cancel, b.running = cancel, done
	go func() {
		defer close(done)
		if err := b.Periph.Run(ctx, speedup); err != nil && !errors.Is(err, context.Canceled) {
			glog.Errorf("run: %v", err)
		}
	}()
	return nil
}

// Stop halts the background clock and waits for it.
func (b *Board) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.running
	b.cancel, b.running = nil, nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// AttachLine opens rawURL and connects it to the wire in both directions,
// replacing any previous line.
func (b *Board) AttachLine(ctx context.Context, rawURL string) error {
	l, err := line.Open(ctx, rawURL)
	if err != nil {
		return err
	}
	b.DetachLine()

	pumping := make(chan struct{})
	b.mu.Lock()
	b.line, b.pumping = l, pumping
	b.mu.Unlock()
	b.wire.setLine(l)

	go func() {
		defer close(pumping)
		if err := b.Periph.Pump(context.Background(), l); err != nil {
			glog.Warningf("line %s: %v", rawURL, err)
		}
	}()
	glog.Infof("line %s attached", rawURL)
	return nil
}

// DetachLine closes the remote line, if any.
func (b *Board) DetachLine() {
	b.mu.Lock()
	l, pumping := b.line, b.pumping
	b.line, b.pumping = nil, nil
	b.mu.Unlock()
	if l == nil {
		return
	}
	b.wire.setLine(nil)
	if err := l.Close(); err != nil {
		glog.Warningf("line close: %v", err)
	}
	<-pumping
}

// Close stops the clock, detaches the line and unblocks driver waiters.
func (b *Board) Close() {
	b.Stop()
	b.DetachLine()
	b.UART.Close()
}

// Describe renders the driver and register state.
func (b *Board) Describe() string {
	r := b.Periph.Registers()
	clock := "none"
	if c := b.UART.Clock(); c != nil {
		clock = fmt.Sprintf("%d Hz, %d baud", c.Hz(), c.Baud())
	}
	return fmt.Sprintf("clock: %s\ntx: %s, %d pending, %d free\nrx: %d buffered\n"+
		"regs: TXEN=%t RXEN=%t TXIE=%t RXIE=%t TDR=%t RDR=%t incoming=%d\nrunning: %t",
		clock, b.UART.TxState(), b.UART.TxPending(), b.UART.TxFree(), b.UART.Buffered(),
		r.TxEnabled, r.RxEnabled, r.TxIE, r.RxIE, r.TDRFull, r.RDRFull, r.Incoming, b.Running())
}

// DescribeStats renders the driver and wire counters.
func (b *Board) DescribeStats() string {
	s := b.UART.Stats()
	c := b.Periph.Counters()
	return fmt.Sprintf("tx: bytes=%d overflows=%d irqs=%d disarms=%d\n"+
		"rx: bytes=%d overflows=%d irqs=%d\n"+
		"wire: shifted=%d arrived=%d overruns=%d",
		s.TxBytes, s.TxOverflows, s.TxInterrupts, s.TxDisarms,
		s.RxBytes, s.RxOverflows, s.RxInterrupts,
		c.Shifted, c.Arrived, c.Overruns)
}
