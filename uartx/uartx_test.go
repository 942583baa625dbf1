package uartx

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_EnablesReceiveInterruptOnly(t *testing.T) {
	u, bus := newTestUART(TxBufferSize, RxBufferSize)

	assert.Equal(t, Clock16MHz{}, bus.clock)
	assert.True(t, bus.txEnabled)
	assert.True(t, bus.rxEnabled)
	assert.True(t, bus.rxie)
	assert.False(t, bus.txie)
	assert.Zero(t, bus.enableTx)
	assert.Equal(t, TxIdle, u.TxState())
	assert.Equal(t, Clock16MHz{}, u.Clock())
}

func TestConfigure_RequiresClock(t *testing.T) {
	u := NewUART(&mockBus{}, make([]byte, 4), make([]byte, 8))
	require.ErrorIs(t, u.Configure(Config{}), ErrNoClock)
	require.Panics(t, func() { u.Initialize(nil) })
}

func TestInitialize_ResetsRings(t *testing.T) {
	u, bus := newTestUART(8, 8)
	require.True(t, u.Transmit('a'))
	fireRx(u, bus, 'b')
	require.Equal(t, 1, u.TxPending())
	require.Equal(t, 1, u.Buffered())

	u.Initialize(Clock8MHz{})

	assert.Zero(t, u.TxPending())
	assert.Zero(t, u.Buffered())
	assert.Equal(t, TxIdle, u.TxState())
	assert.Equal(t, Clock8MHz{}, bus.clock)
}

func TestRoundTrip_SingleByte(t *testing.T) {
	u, bus := newTestUART(TxBufferSize, RxBufferSize)

	require.True(t, u.Transmit(0x41))
	u.HandleTransmitInterrupt()

	assert.Equal(t, []byte{0x41}, bus.output())
	u.HandleTransmitInterrupt()
	assert.Equal(t, []byte{0x41}, bus.output(), "byte written more than once")
	assert.False(t, bus.txArmed())
}

func TestTransmit_FourSlotRing(t *testing.T) {
	u, bus := newTestUART(4, RxBufferSize)

	require.True(t, u.Transmit(1))
	require.Equal(t, TxArmed, u.TxState())
	require.True(t, u.Transmit(2))
	require.True(t, u.Transmit(3))
	require.False(t, u.Transmit(4), "fourth byte must not fit")
	require.Equal(t, 3, u.TxPending())
	require.Zero(t, u.TxFree())

	for i := 0; i < 3; i++ {
		u.HandleTransmitInterrupt()
		assert.True(t, bus.txArmed(), "disarmed with bytes still pending")
		assert.Equal(t, TxArmed, u.TxState())
	}
	assert.Equal(t, []byte{1, 2, 3}, bus.output())

	u.HandleTransmitInterrupt()
	assert.False(t, bus.txArmed())
	assert.Equal(t, TxIdle, u.TxState())
	assert.Equal(t, []byte{1, 2, 3}, bus.output())

	st := u.Stats()
	assert.Equal(t, uint32(3), st.TxBytes)
	assert.Equal(t, uint32(1), st.TxOverflows)
	assert.Equal(t, uint32(4), st.TxInterrupts)
	assert.Equal(t, uint32(1), st.TxDisarms)
}

func TestTransmit_FailureLeavesIndicesAlone(t *testing.T) {
	u, bus := newTestUART(4, RxBufferSize)
	for _, b := range []byte{1, 2, 3} {
		require.True(t, u.Transmit(b))
	}
	head, tail := u.tx.head.Load(), u.tx.tail.Load()
	for i := 0; i < 5; i++ {
		require.False(t, u.Transmit(0xEE))
	}
	assert.Equal(t, head, u.tx.head.Load())
	assert.Equal(t, tail, u.tx.tail.Load())

	// Space reappears after one drain and the ring keeps its order.
	u.HandleTransmitInterrupt()
	require.True(t, u.Transmit(4))
	for i := 0; i < 4; i++ {
		u.HandleTransmitInterrupt()
	}
	assert.Equal(t, []byte{1, 2, 3, 4}, bus.output())
}

func TestTransmitHandler_EmptyRingDisarmsWithoutMutation(t *testing.T) {
	u, bus := newTestUART(TxBufferSize, RxBufferSize)
	head, tail := u.tx.head.Load(), u.tx.tail.Load()

	u.HandleTransmitInterrupt()
	u.HandleTransmitInterrupt()

	assert.Empty(t, bus.output())
	assert.False(t, bus.txArmed())
	assert.Equal(t, 2, bus.disableTx)
	assert.Equal(t, head, u.tx.head.Load())
	assert.Equal(t, tail, u.tx.tail.Load())
	assert.Equal(t, TxIdle, u.TxState())
}

func TestReceive_EightSlotRing(t *testing.T) {
	u, bus := newTestUART(TxBufferSize, 8)

	fireRx(u, bus, 'A', 'B', 'C', 'D', 'E', 'F', 'G')
	require.Equal(t, 7, u.Buffered())

	head, tail := u.rx.head.Load(), u.rx.tail.Load()
	fireRx(u, bus, 'H')
	assert.Equal(t, head, u.rx.head.Load())
	assert.Equal(t, tail, u.rx.tail.Load())
	assert.Equal(t, 8, bus.reads, "dropped byte must still be read from hardware")
	assert.False(t, bus.ReceiveDataReady())

	var got []byte
	for i := 0; i < 7; i++ {
		b, ok := u.Receive()
		require.True(t, ok)
		got = append(got, b)
	}
	assert.Equal(t, []byte("ABCDEFG"), got)

	_, ok := u.Receive()
	assert.False(t, ok)

	st := u.Stats()
	assert.Equal(t, uint32(7), st.RxBytes)
	assert.Equal(t, uint32(1), st.RxOverflows)
	assert.Equal(t, uint32(8), st.RxInterrupts)
}

func TestReceive_DropDoesNotShiftLaterBytes(t *testing.T) {
	u, bus := newTestUART(TxBufferSize, 4)

	fireRx(u, bus, 1, 2, 3, 4) // 4 is dropped
	b, ok := u.Receive()
	require.True(t, ok)
	require.Equal(t, byte(1), b)

	fireRx(u, bus, 5)

	got := make([]byte, 8)
	n := u.TryRead(got)
	assert.Equal(t, []byte{2, 3, 5}, got[:n])
}

func TestReceive_EmptyReturnsNothing(t *testing.T) {
	u, _ := newTestUART(TxBufferSize, RxBufferSize)
	b, ok := u.Receive()
	assert.False(t, ok)
	assert.Zero(t, b)
}

func TestService_PolledDirections(t *testing.T) {
	bus := &mockBus{}
	u := NewUART(bus, make([]byte, 8), make([]byte, 8))
	require.NoError(t, u.Configure(Config{Clock: Clock8MHz{}, TxPolled: true, RxPolled: true}))
	require.False(t, bus.rxie)

	require.True(t, u.Transmit('x'))
	require.True(t, u.Transmit('y'))
	assert.False(t, bus.txArmed(), "polled TX must not arm the interrupt")
	assert.Equal(t, TxIdle, u.TxState())

	bus.setBusy(true)
	u.Service()
	assert.Empty(t, bus.output())

	bus.setBusy(false)
	u.Service()
	u.Service()
	assert.Equal(t, []byte("xy"), bus.output())
	u.Service()
	assert.Equal(t, []byte("xy"), bus.output())
	assert.Zero(t, bus.enableTx)

	bus.arrive('z')
	u.Service()
	b, ok := u.Receive()
	require.True(t, ok)
	assert.Equal(t, byte('z'), b)

	u.Service()
	assert.Equal(t, 1, bus.reads, "Service must not read without data ready")
}

func TestService_SkipsInterruptDrivenDirections(t *testing.T) {
	u, bus := newTestUART(8, 8)
	require.True(t, u.Transmit('q'))
	bus.arrive('r')

	u.Service()

	assert.Empty(t, bus.output())
	assert.Zero(t, bus.reads)
	assert.Equal(t, 1, u.TxPending())
}

func TestService_MixedModes(t *testing.T) {
	bus := &mockBus{}
	u := NewUART(bus, make([]byte, 8), make([]byte, 8))
	require.NoError(t, u.Configure(Config{Clock: Clock16MHz{}, TxPolled: true}))
	require.True(t, bus.rxie)

	require.True(t, u.Transmit('t'))
	bus.arrive('r')
	u.Service()

	assert.Equal(t, []byte("t"), bus.output())
	assert.Zero(t, bus.reads, "interrupt-driven RX is left to the handler")
}

// TestTransmit_ConcurrentHandler runs the handler on its own goroutine as a
// second core would, and checks that nothing is lost, duplicated or stranded
// with the interrupt disarmed.
func TestTransmit_ConcurrentHandler(t *testing.T) {
	u, bus := newTestUART(16, RxBufferSize)

	const total = 20000
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if bus.txArmed() {
				u.HandleTransmitInterrupt()
			}
		}
	}()

	want := make([]byte, total)
	for i := range want {
		want[i] = byte(i * 7)
		for !u.Transmit(want[i]) {
		}
	}
	require.Eventually(t, func() bool { return len(bus.output()) == total },
		5*time.Second, time.Millisecond, "bytes stranded with TX disarmed")
	close(done)
	wg.Wait()

	assert.Equal(t, want, bus.output())
}

func TestTxState_String(t *testing.T) {
	assert.Equal(t, "IDLE", TxIdle.String())
	assert.Equal(t, "ARMED", TxArmed.String())
	assert.Equal(t, "UNKNOWN", TxState(7).String())
}

func TestClock_Divisors(t *testing.T) {
	for _, c := range []Clock{Clock8MHz{}, Clock16MHz{}} {
		want := c.Hz()/(16*c.Baud()) - 1
		assert.Equal(t, uint16(want), c.Divisor(), "%T", c)
	}
	assert.Equal(t, uint32(67<<8|52), pl011Divisors(125000000, 115200))
	assert.Equal(t, uint16(67), Clock125MHz{}.Divisor())
	assert.Equal(t, uint32(1<<8), pl011Divisors(1000, 115200))
}

func TestStats_Reset(t *testing.T) {
	u, bus := newTestUART(4, 4)
	u.Transmit(1)
	u.HandleTransmitInterrupt()
	fireRx(u, bus, 9)
	require.NotZero(t, u.Stats())

	u.ResetStats()
	assert.Equal(t, Stats{}, u.Stats())
}
