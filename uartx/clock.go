// uartx/clock.go

package uartx

import "time"

// Clock is a supported system clock frequency. The set is closed: only the
// clock types declared in this package implement it, so selecting a clock the
// driver has no divisor for fails to compile.
type Clock interface {
	// Hz is the peripheral clock frequency.
	Hz() uint32
	// Baud is the line speed the driver programs for this clock.
	Baud() uint32
	// Divisor is the integer baud-rate divisor register value for the
	// peripheral family that runs at this clock (UBRR on AVR, IBRD on PL011).
	Divisor() uint16

	supportedClock()
}

// Clock8MHz selects 38400 baud from an 8 MHz clock (UBRR=12).
type Clock8MHz struct{}

func (Clock8MHz) Hz() uint32      { return 8000000 }
func (Clock8MHz) Baud() uint32    { return 38400 }
func (Clock8MHz) Divisor() uint16 { return 12 }
func (Clock8MHz) supportedClock() {}

// Clock16MHz selects 38400 baud from a 16 MHz clock (UBRR=25).
type Clock16MHz struct{}

func (Clock16MHz) Hz() uint32      { return 16000000 }
func (Clock16MHz) Baud() uint32    { return 38400 }
func (Clock16MHz) Divisor() uint16 { return 25 }
func (Clock16MHz) supportedClock() {}

// Clock125MHz selects 115200 baud from the RP2040 default 125 MHz system clock.
type Clock125MHz struct{}

func (Clock125MHz) Hz() uint32      { return 125000000 }
func (Clock125MHz) Baud() uint32    { return 115200 }
func (Clock125MHz) Divisor() uint16 { return uint16(pl011Divisors(125000000, 115200) >> 8) }
func (Clock125MHz) supportedClock() {}

// Clock150MHz selects 115200 baud from the RP2350 default 150 MHz system clock.
type Clock150MHz struct{}

func (Clock150MHz) Hz() uint32      { return 150000000 }
func (Clock150MHz) Baud() uint32    { return 115200 }
func (Clock150MHz) Divisor() uint16 { return uint16(pl011Divisors(150000000, 115200) >> 8) }
func (Clock150MHz) supportedClock() {}

// pl011Divisors returns the PL011 integer divisor in the upper bits and the
// 6-bit fractional divisor in the low byte.
func pl011Divisors(hz, baud uint32) uint32 {
	div := 8 * hz / baud
	ibrd := div >> 7
	var fbrd uint32
	switch {
	case ibrd == 0:
		ibrd, fbrd = 1, 0
	case ibrd >= 65535:
		ibrd, fbrd = 65535, 0
	default:
		fbrd = ((div & 0x7f) + 1) / 2
	}
	return ibrd<<8 | fbrd
}

// CharTime returns the duration of one 8N1 character (10 bit times) at the
// clock's line speed.
func CharTime(c Clock) time.Duration {
	return 10 * time.Second / time.Duration(c.Baud())
}
