//go:build rp2040

package main

import "github.com/jangala-dev/tinygo-uartq/uartx"

var clock = uartx.Clock125MHz{}
