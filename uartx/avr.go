// uartx/avr.go

//go:build atmega328p && serial.none

// USART0 is also the port TinyGo's machine package uses for the runtime
// console. Build with -serial=none so machine never registers its own
// USART_RX vector and println output never shares the line with this driver.

package uartx

import (
	"device/avr"
	"runtime/interrupt"
)

// avrUSART drives USART0 of the ATmega328P. UDRIE0 is the transmit-ready
// interrupt, RXCIE0 the receive interrupt.
type avrUSART struct{}

var (
	usart0Tx [TxBufferSize]byte
	usart0Rx [RxBufferSize]byte
	usart0   avrUSART

	// UART0 is constructed once at boot and lives for the process lifetime;
	// the USART vectors reach it through this variable.
	UART0 = NewUART(usart0, usart0Tx[:], usart0Rx[:])
)

func init() {
	interrupt.New(avr.IRQ_USART_RX, func(interrupt.Interrupt) { UART0.HandleReceiveInterrupt() })
	interrupt.New(avr.IRQ_USART_UDRE, func(interrupt.Interrupt) { UART0.HandleTransmitInterrupt() })
}

func (avrUSART) SetLineSpeed(clock Clock) {
	ubrr := clock.Divisor()
	avr.UBRR0H.Set(uint8(ubrr >> 8))
	avr.UBRR0L.Set(uint8(ubrr))
	avr.UCSR0A.ClearBits(avr.UCSR0A_U2X0)
	avr.UCSR0C.Set(avr.UCSR0C_UCSZ01 | avr.UCSR0C_UCSZ00) // 8N1
}

func (avrUSART) Enable(tx, rx bool) {
	var bits uint8
	if tx {
		bits |= avr.UCSR0B_TXEN0
	}
	if rx {
		bits |= avr.UCSR0B_RXEN0
	}
	setUCSR0B(bits)
}

func (avrUSART) TransmitRegisterEmpty() bool  { return avr.UCSR0A.HasBits(avr.UCSR0A_UDRE0) }
func (avrUSART) ReceiveDataReady() bool       { return avr.UCSR0A.HasBits(avr.UCSR0A_RXC0) }
func (avrUSART) WriteTransmitRegister(b byte) { avr.UDR0.Set(b) }
func (avrUSART) ReadReceiveRegister() byte    { return avr.UDR0.Get() }

func (avrUSART) EnableReceiveInterrupt()   { setUCSR0B(avr.UCSR0B_RXCIE0) }
func (avrUSART) EnableTransmitInterrupt()  { setUCSR0B(avr.UCSR0B_UDRIE0) }
func (avrUSART) DisableTransmitInterrupt() { clearUCSR0B(avr.UCSR0B_UDRIE0) }

// UCSR0B sits above the sbi/cbi range, so bit updates are read-modify-write
// and run with interrupts masked.
func setUCSR0B(bits uint8) {
	mask := interrupt.Disable()
	avr.UCSR0B.SetBits(bits)
	interrupt.Restore(mask)
}

func clearUCSR0B(bits uint8) {
	mask := interrupt.Disable()
	avr.UCSR0B.ClearBits(bits)
	interrupt.Restore(mask)
}
