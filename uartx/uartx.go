// uartx/uartx.go

// Package uartx provides an interrupt-driven, buffered UART driver for small
// controllers. A transmit ring is drained by the transmit-ready interrupt, which
// the driver arms when a byte is queued and disarms once the ring is empty. A
// receive ring is filled by the receive interrupt and drained by the
// foreground at its own pace. Transmit, Receive and Service never block; a
// full ring drops the byte and reports it through the return value only.
//
// Each ring index has exactly one writer (foreground or handler), so no locks
// are taken. Handlers for one interrupt source must not re-enter themselves.
package uartx

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrBufferEmpty is returned by ReadByte when no byte is pending.
	ErrBufferEmpty = errors.New("UART buffer empty")
	// ErrClosed is returned by blocking helpers after Close.
	ErrClosed = errors.New("UART closed")
	// ErrNoClock is returned by Configure when Config.Clock is nil.
	ErrNoClock = errors.New("UART clock not set")
)

// TxState is the transmit interrupt state.
type TxState uint32

const (
	// TxIdle: interrupt disarmed, nothing in flight from the ring.
	TxIdle TxState = iota
	// TxArmed: interrupt enabled, the handler is draining the ring.
	TxArmed
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "IDLE"
	case TxArmed:
		return "ARMED"
	}
	return "UNKNOWN"
}

// Config selects the line speed and which directions run from the polling
// fallback instead of interrupts.
type Config struct {
	Clock Clock

	// TxPolled leaves the transmit interrupt permanently disarmed; Service
	// must be called from the idle loop to move bytes to the hardware.
	TxPolled bool
	// RxPolled leaves the receive interrupt disabled; Service must be called
	// often enough to read every byte before the next one arrives.
	RxPolled bool
}

// UART is a buffered driver bound to one Peripheral.
type UART struct {
	Bus Peripheral

	tx *TxQueue
	rx *RxQueue

	txPolled bool
	rxPolled bool
	clock    Clock
	state    atomic.Uint32 // TxState

	notify   chan struct{} // coalesced RX readiness notifications
	txNotify chan struct{} // coalesced TX progress notifications
	closed   chan struct{}
	once     sync.Once

	stats counters
}

// NewUART binds bus to caller-provided transmit and receive storage. Board
// files pass static arrays so nothing is allocated per byte. len(rxbuf) must
// be a power of two.
func NewUART(bus Peripheral, txbuf, rxbuf []byte) *UART {
	return &UART{
		Bus:      bus,
		tx:       NewTxQueue(txbuf),
		rx:       NewRxQueue(rxbuf),
		notify:   make(chan struct{}, 1),
		txNotify: make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// Initialize configures the line for clock with both directions interrupt
// driven. It must run before any Transmit or Receive.
func (u *UART) Initialize(clock Clock) {
	if err := u.Configure(Config{Clock: clock}); err != nil {
		panic("uartx: " + err.Error())
	}
}

// Configure programs the line speed, enables transmitter and receiver, empties
// both rings and enables the receive interrupt unless RX is polled. The
// transmit interrupt is left disarmed; Transmit arms it on demand.
func (u *UART) Configure(cfg Config) error {
	if cfg.Clock == nil {
		return ErrNoClock
	}
	u.clock = cfg.Clock
	u.txPolled = cfg.TxPolled
	u.rxPolled = cfg.RxPolled

	u.Bus.SetLineSpeed(cfg.Clock)
	u.Bus.Enable(true, true)

	u.tx.Clear()
	u.rx.Clear()
	u.state.Store(uint32(TxIdle))

	if !cfg.RxPolled {
		u.Bus.EnableReceiveInterrupt()
	}

	// The ring starts empty, so writers may proceed.
	u.signal(u.txNotify)
	return nil
}

// Clock returns the configured clock, nil before Configure.
func (u *UART) Clock() Clock { return u.clock }

// TxState reports whether the transmit interrupt is armed.
func (u *UART) TxState() TxState { return TxState(u.state.Load()) }

// Transmit queues one byte. It returns false, without touching the ring, when
// the ring is full; the byte is lost and retrying is up to the caller. On
// success the transmit interrupt is armed (unless TX is polled).
func (u *UART) Transmit(b byte) bool {
	if !u.tx.Put(b) {
		u.stats.txOverflows.Add(1)
		return false
	}
	if !u.txPolled {
		u.state.Store(uint32(TxArmed))
		u.Bus.EnableTransmitInterrupt()
	}
	return true
}

// Receive returns the oldest received byte, or (0, false) when none is pending.
func (u *UART) Receive() (byte, bool) {
	return u.rx.Get()
}

// HandleTransmitInterrupt is the transmit-register-empty vector. Each call
// moves one byte to the hardware; a call that finds the ring empty disarms the
// interrupt, which is the only place it is turned off.
func (u *UART) HandleTransmitInterrupt() {
	u.stats.txInterrupts.Add(1)
	u.writeToUART()
}

// HandleReceiveInterrupt is the receive-data-ready vector.
func (u *UART) HandleReceiveInterrupt() {
	u.stats.rxInterrupts.Add(1)
	u.readFromUART()
}

// Service is the polling fallback, called from the idle loop. It does the
// handler work for every direction configured as polled and nothing for the
// interrupt-driven ones, so a handler and Service never both own one ring.
func (u *UART) Service() {
	if u.rxPolled && u.Bus.ReceiveDataReady() {
		u.readFromUART()
	}
	if u.txPolled && u.Bus.TransmitRegisterEmpty() {
		u.writeToUART()
	}
}

func (u *UART) writeToUART() {
	b, ok := u.tx.Get()
	if !ok {
		u.Bus.DisableTransmitInterrupt()
		u.state.Store(uint32(TxIdle))
		u.stats.txDisarms.Add(1)
		// A producer on another core can publish between Get and the disarm.
		if !u.txPolled && !u.tx.Empty() {
			u.state.Store(uint32(TxArmed))
			u.Bus.EnableTransmitInterrupt()
		}
		u.signal(u.txNotify)
		return
	}
	u.Bus.WriteTransmitRegister(b)
	u.stats.txBytes.Add(1)
	u.signal(u.txNotify)
}

func (u *UART) readFromUART() {
	// Always read: on most parts this is what clears the flag and overrun.
	c := u.Bus.ReadReceiveRegister()
	if !u.rx.Put(c) {
		u.stats.rxOverflows.Add(1)
		return
	}
	u.stats.rxBytes.Add(1)
	u.signal(u.notify)
}

// signal performs a coalesced, non-blocking wake-up. Safe from handlers.
func (u *UART) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Buffered returns the number of bytes waiting in the receive ring.
func (u *UART) Buffered() int { return u.rx.Used() }

// TxPending returns the number of bytes waiting in the transmit ring.
func (u *UART) TxPending() int { return u.tx.Used() }

// TxFree returns the remaining space in the transmit ring.
func (u *UART) TxFree() int { return u.tx.Free() }
