// uartx/rp2.go

//go:build rp2040 || rp2350

package uartx

import (
	"device/arm"
	"device/rp"
	"machine"
	"runtime/interrupt"
)

// pl011 drives one RP2 PL011 with its FIFOs disabled, so each direction has a
// single holding register like the classic one-byte UART the driver models.
// TXIM is the transmit-ready interrupt, RXIM the receive interrupt.
type pl011 struct {
	Bus       *rp.UART0_Type
	Interrupt interrupt.Interrupt

	irq    uint32
	reset  uint32
	tx, rx machine.Pin
}

var (
	uart0Tx [TxBufferSize]byte
	uart0Rx [RxBufferSize]byte
	uart1Tx [TxBufferSize]byte
	uart1Rx [RxBufferSize]byte

	pl0 = pl011{Bus: rp.UART0, irq: rp.IRQ_UART0_IRQ, reset: rp.RESETS_RESET_UART0,
		tx: machine.UART0_TX_PIN, rx: machine.UART0_RX_PIN}
	pl1 = pl011{Bus: rp.UART1, irq: rp.IRQ_UART1_IRQ, reset: rp.RESETS_RESET_UART1,
		tx: machine.UART1_TX_PIN, rx: machine.UART1_RX_PIN}

	// UART0 and UART1 are constructed once at boot and live for the process
	// lifetime; the interrupt vectors reach them through these variables.
	UART0 = NewUART(&pl0, uart0Tx[:], uart0Rx[:])
	UART1 = NewUART(&pl1, uart1Tx[:], uart1Rx[:])
)

func init() {
	pl0.Interrupt = interrupt.New(rp.IRQ_UART0_IRQ, func(interrupt.Interrupt) { pl0.dispatch(UART0) })
	pl1.Interrupt = interrupt.New(rp.IRQ_UART1_IRQ, func(interrupt.Interrupt) { pl1.dispatch(UART1) })
}

// SetLineSpeed resets the block, programs the integer and fractional
// divisors and writes LCR_H (8N1, FEN clear) to latch them.
func (p *pl011) SetLineSpeed(clock Clock) {
	rp.RESETS.RESET.SetBits(p.reset)
	rp.RESETS.RESET.ClearBits(p.reset)
	for !rp.RESETS.RESET_DONE.HasBits(p.reset) {
	}

	d := pl011Divisors(clock.Hz(), clock.Baud())
	p.Bus.UARTIBRD.Set(d >> 8)
	p.Bus.UARTFBRD.Set(d & 0xff)
	p.Bus.UARTLCR_H.Set(3 << rp.UART0_UARTLCR_H_WLEN_Pos)
}

func (p *pl011) Enable(tx, rx bool) {
	cr := uint32(rp.UART0_UARTCR_UARTEN)
	if tx {
		cr |= rp.UART0_UARTCR_TXE
		p.tx.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if rx {
		cr |= rp.UART0_UARTCR_RXE
		p.rx.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	// Clear pending sources and purge a stale receive byte.
	p.Bus.UARTICR.Set(0x7FF)
	for !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = p.Bus.UARTDR.Get()
	}
	p.Bus.UARTRSR.Set(0)
	p.Bus.UARTCR.Set(cr)

	p.Interrupt.SetPriority(0x80)
	p.Interrupt.Enable()
}

func (p *pl011) TransmitRegisterEmpty() bool {
	return p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFE)
}

func (p *pl011) ReceiveDataReady() bool {
	return !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE)
}

func (p *pl011) WriteTransmitRegister(b byte) { p.Bus.UARTDR.Set(uint32(b)) }

// ReadReceiveRegister returns the data bits; reading DR also clears the
// per-byte error flags.
func (p *pl011) ReadReceiveRegister() byte { return byte(p.Bus.UARTDR.Get()) }

func (p *pl011) EnableReceiveInterrupt() {
	mask := interrupt.Disable()
	p.Bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_RXIM)
	interrupt.Restore(mask)
}

// EnableTransmitInterrupt unmasks TXIM. The PL011 only raises TX on a
// transition, so when the holding register is already empty and nothing is
// pending the NVIC line is pended by hand to get the first handler pass.
func (p *pl011) EnableTransmitInterrupt() {
	mask := interrupt.Disable()
	if !p.Bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_TXIM) {
		p.Bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_TXIM)
		if p.TransmitRegisterEmpty() && !p.Bus.UARTMIS.HasBits(rp.UART0_UARTMIS_TXMIS) {
			arm.NVIC.ISPR[p.irq>>5].Set(1 << (p.irq & 0x1f))
		}
	}
	interrupt.Restore(mask)
}

func (p *pl011) DisableTransmitInterrupt() {
	mask := interrupt.Disable()
	p.Bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_TXIM)
	interrupt.Restore(mask)
}

// dispatch services the shared PL011 vector: receive while RXIM reports data,
// then one transmit pass if TXIM is unmasked and the holding register is empty.
func (p *pl011) dispatch(u *UART) {
	mis := p.Bus.UARTMIS.Get()
	if mis&(rp.UART0_UARTMIS_RXMIS|rp.UART0_UARTMIS_RTMIS) != 0 {
		for p.ReceiveDataReady() {
			u.HandleReceiveInterrupt()
		}
		p.Bus.UARTICR.Set(rp.UART0_UARTICR_RXIC | rp.UART0_UARTICR_RTIC)
		p.Bus.UARTRSR.Set(0)
	}
	if p.Bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_TXIM) && p.TransmitRegisterEmpty() {
		p.Bus.UARTICR.Set(rp.UART0_UARTICR_TXIC)
		u.HandleTransmitInterrupt()
	}
}
