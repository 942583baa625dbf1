package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jangala-dev/tinygo-uartq/uartx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"))
}

func TestLoadEnv(t *testing.T) {
	env := map[string]string{
		"UARTSIM_CLOCK":     "125",
		"UARTSIM_RX_POLLED": "true",
		"UARTSIM_LINE":      "loopback:",
		"UARTSIM_SPEEDUP":   "bogus",
	}
	c := Config{Clock: "16", Speedup: 3, TxSize: 16, RxSize: 16}
	loadEnv(&c, func(k string) string { return env[k] })

	assert.Equal(t, "125", c.Clock)
	assert.True(t, c.RxPolled)
	assert.False(t, c.TxPolled)
	assert.Equal(t, "loopback:", c.LineURL)
	assert.Equal(t, 3, c.Speedup)

	cfg, err := c.UARTConfig()
	require.NoError(t, err)
	assert.Equal(t, uartx.Config{Clock: uartx.Clock125MHz{}, RxPolled: true}, cfg)
}

func TestConfig_RejectsBadRingSizes(t *testing.T) {
	for _, c := range []Config{
		{Clock: "16", TxSize: 128, RxSize: 6},
		{Clock: "16", TxSize: 1, RxSize: 8},
		{Clock: "16", TxSize: 128, RxSize: 1},
		{Clock: "16", TxSize: 128, RxSize: 0},
	} {
		c := c
		_, err := c.UARTConfig()
		assert.Error(t, err, "tx=%d rx=%d", c.TxSize, c.RxSize)
		assert.NotPanics(t, func() {
			s, err := NewShell(&c)
			assert.Nil(t, s)
			assert.Error(t, err)
		})
	}

	c := Config{Clock: "16", TxSize: 2, RxSize: 2}
	require.NoError(t, c.Validate())
}

func TestParseClock(t *testing.T) {
	for mhz, want := range map[string]uartx.Clock{
		"8":   uartx.Clock8MHz{},
		"16":  uartx.Clock16MHz{},
		"125": uartx.Clock125MHz{},
		"150": uartx.Clock150MHz{},
	} {
		got, err := ParseClock(mhz)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseClock("20")
	assert.Error(t, err)
}

func TestSplitCommands(t *testing.T) {
	got := splitCommands([]string{"tx", "hi", ";", ";", "step", "4", ";"})
	assert.Equal(t, [][]string{{"tx", "hi"}, {"step", "4"}}, got)
}

func TestBoard_StepCapturesWire(t *testing.T) {
	b := NewBoard(16, 8)
	defer b.Close()
	require.NoError(t, b.Init(uartx.Config{Clock: uartx.Clock16MHz{}}))

	b.UART.TryWrite([]byte("hi"))
	out, err := b.Step(3)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))
	assert.Contains(t, b.Describe(), "IDLE")
	assert.Contains(t, b.DescribeStats(), "shifted=2")
}

func TestBoard_RunRejectsStepAndInit(t *testing.T) {
	b := NewBoard(16, 8)
	defer b.Close()
	require.ErrorIs(t, b.Start(1), uartx.ErrNoClock)
	require.NoError(t, b.Init(uartx.Config{Clock: uartx.Clock125MHz{}}))

	require.NoError(t, b.Start(10))
	assert.True(t, b.Running())
	assert.ErrorIs(t, b.Start(10), errRunning)
	_, err := b.Step(1)
	assert.ErrorIs(t, err, errRunning)
	assert.ErrorIs(t, b.Init(uartx.Config{Clock: uartx.Clock8MHz{}}), errRunning)

	b.Stop()
	assert.False(t, b.Running())
}

func TestBoard_LoopbackLine(t *testing.T) {
	b := NewBoard(32, 32)
	defer b.Close()
	require.NoError(t, b.Init(uartx.Config{Clock: uartx.Clock125MHz{}}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.AttachLine(ctx, "loopback:"))
	require.NoError(t, b.Start(10))

	_, err := b.UART.Write([]byte("echo"))
	require.NoError(t, err)
	got := make([]byte, 4)
	_, err = b.UART.RecvFullContext(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "echo", string(got))
	assert.Empty(t, b.Wire(), "bytes go to the line, not the capture")

	b.DetachLine()
}
