package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/jangala-dev/tinygo-uartq/uartx"
)

// Config holds the simulator options.
type Config struct {
	// Clock is the system clock in MHz: 8, 16, 125 or 150.
	Clock    string
	TxPolled bool
	RxPolled bool

	// LineURL optionally carries the wire to a remote peer,
	// e.g. mqtt://host:1883/lab/?name=uart0 or ws://host:8080/line
	LineURL string
	// Speedup divides the character time used by run.
	Speedup int

	TxSize int
	RxSize int
}

var defaultConfig = Config{
	Clock:   "16",
	Speedup: 1,
	TxSize:  uartx.TxBufferSize,
	RxSize:  uartx.RxBufferSize,
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
}

func loadEnv(c *Config, getenv func(string) string) {
	if val := getenv("UARTSIM_CLOCK"); val != "" {
		c.Clock = val
	}
	if val, err := strconv.ParseBool(getenv("UARTSIM_TX_POLLED")); err == nil {
		c.TxPolled = val
	}
	if val, err := strconv.ParseBool(getenv("UARTSIM_RX_POLLED")); err == nil {
		c.RxPolled = val
	}
	if val := getenv("UARTSIM_LINE"); val != "" {
		c.LineURL = val
	}
	if val, err := strconv.Atoi(getenv("UARTSIM_SPEEDUP")); err == nil && val > 0 {
		c.Speedup = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Clock, "clock", defaultConfig.Clock, "System clock in MHz (8, 16, 125, 150).")
	flag.BoolVar(&defaultConfig.TxPolled, "tx-polled", defaultConfig.TxPolled, "Drive transmit from service instead of the interrupt.")
	flag.BoolVar(&defaultConfig.RxPolled, "rx-polled", defaultConfig.RxPolled, "Drive receive from service instead of the interrupt.")
	flag.StringVar(&defaultConfig.LineURL, "line", defaultConfig.LineURL, "Remote line URL (mqtt://, ws://, loopback:).")
	flag.IntVar(&defaultConfig.Speedup, "speedup", defaultConfig.Speedup, "Run faster than the real character time.")
	flag.IntVar(&defaultConfig.TxSize, "tx-size", defaultConfig.TxSize, "Transmit ring storage in bytes.")
	flag.IntVar(&defaultConfig.RxSize, "rx-size", defaultConfig.RxSize, "Receive ring storage in bytes (power of two).")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the ring sizes before any storage is allocated.
func (c *Config) Validate() error {
	if c.TxSize < 2 {
		return fmt.Errorf("tx-size %d: need at least 2 bytes", c.TxSize)
	}
	if c.RxSize < 2 || c.RxSize&(c.RxSize-1) != 0 {
		return fmt.Errorf("rx-size %d: need a power of two, at least 2", c.RxSize)
	}
	return nil
}

// UARTConfig converts to the driver configuration.
func (c *Config) UARTConfig() (uartx.Config, error) {
	if err := c.Validate(); err != nil {
		return uartx.Config{}, err
	}
	clock, err := ParseClock(c.Clock)
	if err != nil {
		return uartx.Config{}, err
	}
	return uartx.Config{Clock: clock, TxPolled: c.TxPolled, RxPolled: c.RxPolled}, nil
}

// ParseClock maps a clock in MHz to one of the supported clocks.
func ParseClock(mhz string) (uartx.Clock, error) {
	switch mhz {
	case "8":
		return uartx.Clock8MHz{}, nil
	case "16":
		return uartx.Clock16MHz{}, nil
	case "125":
		return uartx.Clock125MHz{}, nil
	case "150":
		return uartx.Clock150MHz{}, nil
	}
	return nil, fmt.Errorf("unsupported clock %q MHz", mhz)
}
