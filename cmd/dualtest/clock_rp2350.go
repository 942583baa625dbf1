//go:build rp2350

package main

import "github.com/jangala-dev/tinygo-uartq/uartx"

var clock = uartx.Clock150MHz{}
