// Package sim models a one-byte-register UART on the host so the uartx driver
// can run unchanged outside a microcontroller. Time advances one character per
// Step; interrupts are delivered by calling the attached Vectors.
package sim

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/jangala-dev/tinygo-uartq/uartx"
)

// ErrNoLineSpeed is returned by Run before SetLineSpeed was called.
var ErrNoLineSpeed = errors.New("sim: line speed not set")

// Vectors are the interrupt entry points raised by the Peripheral.
// *uartx.UART implements it.
type Vectors interface {
	HandleTransmitInterrupt()
	HandleReceiveInterrupt()
}

// Counters are the wire-side totals since the last SetLineSpeed.
type Counters struct {
	Shifted  uint64 // bytes shifted out of the transmit register onto the wire
	Arrived  uint64 // bytes taken off the incoming line
	Overruns uint64 // arrivals lost because the receive register was unread
}

// Registers is a snapshot of the register model.
type Registers struct {
	TxEnabled bool
	RxEnabled bool
	TxIE      bool
	RxIE      bool
	TDRFull   bool
	RDRFull   bool
	Incoming  int
}

// Peripheral implements uartx.Peripheral.
type Peripheral struct {
	// Wire receives every byte shifted out. nil discards.
	Wire io.Writer

	mu       sync.Mutex
	clock    uartx.Clock
	regs     Registers
	tdr      byte
	rdr      byte
	incoming []byte
	counters Counters

	irqMu   sync.Mutex
	vectors Vectors
}

var _ uartx.Peripheral = (*Peripheral)(nil)

// New creates a Peripheral shifting its output onto wire.
func New(wire io.Writer) *Peripheral {
	return &Peripheral{Wire: wire}
}

// Attach binds the interrupt vectors. Until then interrupts are not delivered.
func (p *Peripheral) Attach(v Vectors) {
	p.irqMu.Lock()
	p.vectors = v
	p.irqMu.Unlock()
}

// SetLineSpeed latches clock and resets the registers, like a peripheral
// reset followed by the divisor write.
func (p *Peripheral) SetLineSpeed(clock uartx.Clock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
	p.regs = Registers{}
	p.incoming = nil
	p.counters = Counters{}
	glog.V(1).Infof("sim: %d Hz, %d baud, divisor %d", clock.Hz(), clock.Baud(), clock.Divisor())
}

func (p *Peripheral) Enable(tx, rx bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs.TxEnabled, p.regs.RxEnabled = tx, rx
}

func (p *Peripheral) TransmitRegisterEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.regs.TDRFull
}

func (p *Peripheral) ReceiveDataReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs.RDRFull
}

// WriteTransmitRegister loads the holding register. A write while the
// transmitter is disabled is ignored.
func (p *Peripheral) WriteTransmitRegister(b byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.regs.TxEnabled {
		return
	}
	p.tdr = b
	p.regs.TDRFull = true
}

// ReadReceiveRegister returns the last received byte and clears data ready.
func (p *Peripheral) ReadReceiveRegister() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs.RDRFull = false
	return p.rdr
}

func (p *Peripheral) EnableReceiveInterrupt() {
	p.mu.Lock()
	p.regs.RxIE = true
	p.mu.Unlock()
}

func (p *Peripheral) EnableTransmitInterrupt() {
	p.mu.Lock()
	p.regs.TxIE = true
	p.mu.Unlock()
}

func (p *Peripheral) DisableTransmitInterrupt() {
	p.mu.Lock()
	p.regs.TxIE = false
	p.mu.Unlock()
}

// Inject queues bytes arriving from the remote end. One is delivered per Step.
func (p *Peripheral) Inject(b []byte) {
	p.mu.Lock()
	p.incoming = append(p.incoming, b...)
	p.mu.Unlock()
}

// Registers returns a snapshot of the register model.
func (p *Peripheral) Registers() Registers {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.regs
	r.Incoming = len(p.incoming)
	return r
}

// Counters returns the wire-side totals.
func (p *Peripheral) Counters() Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// Step advances one character time: the holding register is shifted onto the
// wire, one incoming byte is latched into the receive register, then the
// enabled interrupt sources are raised, receive first.
func (p *Peripheral) Step() {
	p.mu.Lock()
	var (
		out     byte
		shifted bool
	)
	if p.regs.TDRFull {
		out, shifted = p.tdr, true
		p.regs.TDRFull = false
		p.counters.Shifted++
	}
	if p.regs.RxEnabled && len(p.incoming) > 0 {
		c := p.incoming[0]
		p.incoming = p.incoming[1:]
		p.counters.Arrived++
		if p.regs.RDRFull {
			p.counters.Overruns++
			glog.V(2).Infof("sim: overrun, lost %#02x", c)
		} else {
			p.rdr = c
			p.regs.RDRFull = true
		}
	}
	raiseRx := p.regs.RxIE && p.regs.RDRFull
	raiseTx := p.regs.TxIE && !p.regs.TDRFull
	wire := p.Wire
	p.mu.Unlock()

	if shifted {
		glog.V(2).Infof("sim: TX %#02x", out)
		if wire != nil {
			if _, err := wire.Write([]byte{out}); err != nil {
				glog.Warningf("sim: wire write: %v", err)
			}
		}
	}
	p.Raise(raiseTx, raiseRx)
}

// Raise delivers the given interrupts regardless of the enable bits, as a
// spurious or forced interrupt would. Delivery is serialized, so a handler is
// never re-entered.
func (p *Peripheral) Raise(tx, rx bool) {
	if !tx && !rx {
		return
	}
	p.irqMu.Lock()
	defer p.irqMu.Unlock()
	if p.vectors == nil {
		return
	}
	if rx {
		p.vectors.HandleReceiveInterrupt()
	}
	if tx {
		p.vectors.HandleTransmitInterrupt()
	}
}

// Run calls Step once per character time divided by speedup until ctx is done.
func (p *Peripheral) Run(ctx context.Context, speedup int) error {
	p.mu.Lock()
	clock := p.clock
	p.mu.Unlock()
	if clock == nil {
		return ErrNoLineSpeed
	}
	if speedup < 1 {
		speedup = 1
	}
	period := uartx.CharTime(clock) / time.Duration(speedup)
	if period < time.Microsecond {
		period = time.Microsecond
	}
	glog.Infof("sim: running, one character every %v", period)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			glog.Info("sim: stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Step()
		}
	}
}

// Pump injects everything read from r until r fails or ctx is done. Closing r
// is the way to unblock a pending Read. io.EOF ends the pump without error.
func (p *Peripheral) Pump(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			glog.V(2).Infof("sim: RX line %d bytes", n)
			p.Inject(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
