//go:build atmega328p && serial.none

package main

import "github.com/jangala-dev/tinygo-uartq/uartx"

// Wire D1 (TX) to D0 (RX) and disconnect the USB serial adapter. Build with
// -serial=none: println is silent and the LED reports the result.
var (
	u     = uartx.UART0
	clock = uartx.Clock16MHz{}
)

const (
	streamBytes     = 2048
	blockingHelpers = false
)
