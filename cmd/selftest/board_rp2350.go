//go:build rp2350

package main

import "github.com/jangala-dev/tinygo-uartq/uartx"

// Wire GP0 (TX) to GP1 (RX).
var (
	u     = uartx.UART0
	clock = uartx.Clock150MHz{}
)

const (
	streamBytes     = 32 * 1024
	blockingHelpers = true
)
